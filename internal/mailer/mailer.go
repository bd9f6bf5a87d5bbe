package mailer

import (
	"fmt"
	"log"

	"gopkg.in/gomail.v2"
)

// Mailer delivers transactional mail. Delivery failures must be reported so
// callers can roll back state that assumed a successful send.
type Mailer interface {
	SendPasswordReset(to, name, resetLink string) error
}

// SMTPMailer sends mail through an SMTP relay using gomail.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTP creates an SMTP mailer.
func NewSMTP(host string, port int, username, password, from string) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

// SendPasswordReset emails a reset link. The token travels only in this
// out-of-band message, never in an API response.
func (m *SMTPMailer) SendPasswordReset(to, name, resetLink string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "Password Reset Request")
	msg.SetBody("text/html", resetBody(name, resetLink))

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send reset mail: %w", err)
	}
	return nil
}

func resetBody(name, resetLink string) string {
	return fmt.Sprintf(`<p>Hello %s,</p>
<p>We received a request to reset your password. Click the link below to proceed:</p>
<p><a href="%s">Reset Password</a></p>
<p>This link will expire in 1 hour. If you didn't request a password reset, please ignore this email.</p>`,
		name, resetLink)
}

// LogMailer writes mail to the application log instead of sending it. Used in
// development when no SMTP relay is configured.
type LogMailer struct{}

// SendPasswordReset logs the reset link.
func (LogMailer) SendPasswordReset(to, name, resetLink string) error {
	log.Printf("password reset for %s: %s", to, resetLink)
	return nil
}
