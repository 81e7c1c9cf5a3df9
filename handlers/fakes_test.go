package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/media-gallery/backend/models"
	"github.com/media-gallery/backend/store"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeUserStore is an in-memory UserStore.
type fakeUserStore struct {
	mu        sync.Mutex
	users     map[primitive.ObjectID]*models.User
	emailLogs []models.EmailLog
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[primitive.ObjectID]*models.User{}}
}

func (s *fakeUserStore) UserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeUserStore) UserByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *fakeUserStore) CreateUser(_ context.Context, user *models.User) (primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := primitive.NewObjectID()
	cp := *user
	cp.ID = id
	s.users[id] = &cp
	return id, nil
}

func (s *fakeUserStore) DeleteUser(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	return nil
}

func (s *fakeUserStore) ListUsers(_ context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *fakeUserStore) SetOTP(_ context.Context, id primitive.ObjectID, code string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.OTP = &models.OTP{Code: code, ExpiresAt: expiresAt}
	return nil
}

func (s *fakeUserStore) MarkVerified(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.Verified = true
	u.OTP = nil
	return nil
}

func (s *fakeUserStore) SetResetToken(_ context.Context, id primitive.ObjectID, hash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.ResetTokenHash = hash
	u.ResetTokenExpiry = expiresAt
	return nil
}

func (s *fakeUserStore) ClearResetToken(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.ResetTokenHash = ""
	u.ResetTokenExpiry = time.Time{}
	return nil
}

func (s *fakeUserStore) UserByResetTokenHash(_ context.Context, hash string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ResetTokenHash != "" && u.ResetTokenHash == hash {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeUserStore) ResetPassword(_ context.Context, id primitive.ObjectID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.Password = passwordHash
	u.ResetTokenHash = ""
	u.ResetTokenExpiry = time.Time{}
	return nil
}

func (s *fakeUserStore) UpdateUserRole(_ context.Context, id primitive.ObjectID, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.Role = role
	return nil
}

func (s *fakeUserStore) UpsertOAuthUser(ctx context.Context, name, email, googleID, avatar, passwordHash string) (*models.User, bool, error) {
	existing, err := s.UserByEmail(ctx, email)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		u := &models.User{
			Name:      name,
			Email:     email,
			Password:  passwordHash,
			Role:      models.RoleUser,
			GoogleID:  googleID,
			Avatar:    avatar,
			Verified:  true,
			CreatedAt: time.Now().UTC(),
		}
		id, err := s.CreateUser(ctx, u)
		if err != nil {
			return nil, false, err
		}
		u.ID = id
		return u, true, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[existing.ID]
	if u.GoogleID == "" {
		u.GoogleID = googleID
	}
	if u.Avatar == "" {
		u.Avatar = avatar
	}
	u.Verified = true
	cp := *u
	return &cp, false, nil
}

func (s *fakeUserStore) InsertEmailLog(_ context.Context, log *models.EmailLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emailLogs = append(s.emailLogs, *log)
	return nil
}

// mutate edits a stored user in place, for test setup.
func (s *fakeUserStore) mutate(id primitive.ObjectID, fn func(*models.User)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		fn(u)
	}
}

// sentMail is one email recorded by fakeSender.
type sentMail struct {
	To      string
	Subject string
	Body    string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMail
	fail bool
}

func (s *fakeSender) Send(to, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("smtp unavailable")
	}
	s.sent = append(s.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

// fakeMediaStore is an in-memory MediaStore.
type fakeMediaStore struct {
	mu    sync.Mutex
	items []models.Media
}

func (s *fakeMediaStore) InsertMedia(_ context.Context, media *models.Media) (primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := primitive.NewObjectID()
	cp := *media
	cp.ID = id
	s.items = append(s.items, cp)
	return id, nil
}

func (s *fakeMediaStore) MediaByID(_ context.Context, id primitive.ObjectID) (*models.Media, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			cp := s.items[i]
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *fakeMediaStore) ListOwnMedia(_ context.Context, owner primitive.ObjectID, tags []string, page, limit int64) (*store.MediaPage, error) {
	return s.list(func(m *models.Media) bool { return m.UploadedBy == owner }, tags, page, limit)
}

func (s *fakeMediaStore) ListSharedMedia(_ context.Context, tags []string, page, limit int64) (*store.MediaPage, error) {
	return s.list(func(m *models.Media) bool { return m.Shared }, tags, page, limit)
}

func (s *fakeMediaStore) list(match func(*models.Media) bool, tags []string, page, limit int64) (*store.MediaPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var filtered []models.Media
	for i := range s.items {
		m := s.items[i]
		if !match(&m) {
			continue
		}
		if len(tags) > 0 && !hasAnyTag(m.Tags, tags) {
			continue
		}
		filtered = append(filtered, m)
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].CreatedAt.After(filtered[j].CreatedAt) })
	total := int64(len(filtered))
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return &store.MediaPage{Items: filtered[start:end], Total: total}, nil
}

func hasAnyTag(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

func (s *fakeMediaStore) AccessibleMedia(_ context.Context, ids []primitive.ObjectID, requester primitive.ObjectID) ([]models.Media, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := map[primitive.ObjectID]bool{}
	for _, id := range ids {
		wanted[id] = true
	}
	var out []models.Media
	for i := range s.items {
		m := s.items[i]
		if wanted[m.ID] && (m.UploadedBy == requester || m.Shared) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeMediaStore) UpdateMedia(_ context.Context, id primitive.ObjectID, upd store.MediaUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID != id {
			continue
		}
		if upd.Title != nil {
			s.items[i].Title = *upd.Title
		}
		if upd.Description != nil {
			s.items[i].Description = *upd.Description
		}
		if upd.Tags != nil {
			s.items[i].Tags = upd.Tags
		}
		if upd.Shared != nil {
			s.items[i].Shared = *upd.Shared
		}
		return nil
	}
	return store.ErrNotFound
}

func (s *fakeMediaStore) DeleteMedia(_ context.Context, id primitive.ObjectID) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			key := s.items[i].StorageKey
			s.items = append(s.items[:i], s.items[i+1:]...)
			return key, nil
		}
	}
	return "", store.ErrNotFound
}

// fakeStorage is an in-memory Storage. Keys listed in failKeys error on
// GetObject, to exercise the ZIP export's skip-on-failure path.
type fakeStorage struct {
	mu       sync.Mutex
	objects  map[string][]byte
	failKeys map[string]bool
	deleted  []string
	uploads  int
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string][]byte{}, failKeys: map[string]bool{}}
}

func (s *fakeStorage) Upload(_ context.Context, prefix, originalFilename string, body io.Reader, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	s.uploads++
	key := fmt.Sprintf("%s%d-%s", prefix, s.uploads, originalFilename)
	s.objects[key] = data
	return key, nil
}

func (s *fakeStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *fakeStorage) GetObject(_ context.Context, key string) (io.ReadCloser, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failKeys[key] {
		return nil, "", errors.New("fetch failed")
	}
	data, ok := s.objects[key]
	if !ok {
		return nil, "", errors.New("no such object")
	}
	return io.NopCloser(bytes.NewReader(data)), "", nil
}

func (s *fakeStorage) ObjectURL(key string) string {
	return "https://storage.test/" + key
}
