package service

import (
	"fmt"

	mail "github.com/go-mail/mail/v2"
)

// Sender dispatches a plain-text email. Constructed once at startup and
// injected into the handlers that send OTPs and reset links.
type Sender interface {
	Send(to, subject, body string) error
}

// SMTPSender sends mail through a single SMTP account.
type SMTPSender struct {
	dialer *mail.Dialer
	from   string
}

func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	d := mail.NewDialer(host, port, username, password)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	if from == "" {
		from = username
	}
	return &SMTPSender{dialer: d, from: from}
}

func (s *SMTPSender) Send(to, subject, body string) error {
	m := mail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	return s.dialer.DialAndSend(m)
}

// OTPMessage builds the verification email for a freshly issued OTP.
func OTPMessage(otp string) (subject, body string) {
	return "Email Verification OTP",
		fmt.Sprintf("Your email verification OTP is: %s. Valid for 10 minutes.", otp)
}

// ResetMessage builds the password reset email. The raw token is embedded
// in a link to the frontend reset page.
func ResetMessage(clientURL, token string) (subject, body string) {
	return "Reset Your Password",
		fmt.Sprintf("Reset your password within 10 minutes using this link: %s/reset-password?token=%s", clientURL, token)
}
