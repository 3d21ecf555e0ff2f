package core

import (
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// EmailNotifier sends messages over SMTP. This is the low-cost channel:
// no per-message price, so it is never rate limited by the engine.
type EmailNotifier struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	Recipients []string
	Timeout    time.Duration
}

// NewEmailNotifier creates a new email notifier
func NewEmailNotifier(config map[string]interface{}) *EmailNotifier {
	en := &EmailNotifier{
		Port:    587,
		Timeout: 10 * time.Second,
	}

	en.Host = configString(config, "host")
	en.Username = configString(config, "username")
	en.Password = configString(config, "password")
	en.From = configString(config, "from")
	en.Recipients = configStrings(config, "recipients")
	if port, ok := config["port"].(int); ok && port > 0 {
		en.Port = port
	}

	if en.Password == "" || en.Password == "${SMTP_PASSWORD}" {
		en.Password = os.Getenv("SMTP_PASSWORD")
	}

	return en
}

// Send sends the notification as a single email to all recipients
func (en *EmailNotifier) Send(subject, body string, severity Severity) error {
	if en.Host == "" {
		return fmt.Errorf("smtp host is empty")
	}
	if len(en.Recipients) == 0 {
		return fmt.Errorf("email recipient list is empty")
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", en.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(en.Recipients, ", "))
	fmt.Fprintf(&msg, "Subject: [%s] %s\r\n", severity, subject)
	fmt.Fprintf(&msg, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)
	msg.WriteString("\r\n")

	addr := fmt.Sprintf("%s:%d", en.Host, en.Port)

	// A hung SMTP server must not park the calling goroutine, so every
	// exchange carries a deadline just like the HTTP channels do
	conn, err := net.DialTimeout("tcp", addr, en.Timeout)
	if err != nil {
		return fmt.Errorf("failed to reach smtp server: %w", err)
	}

	client := smtp.NewClient(conn)
	defer client.Close()
	client.CommandTimeout = en.Timeout
	client.SubmissionTimeout = en.Timeout

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: en.Host}); err != nil {
			return fmt.Errorf("starttls failed: %w", err)
		}
	}
	if en.Username != "" {
		if err := client.Auth(sasl.NewPlainClient("", en.Username, en.Password)); err != nil {
			return fmt.Errorf("smtp auth failed: %w", err)
		}
	}
	if err := client.SendMail(en.From, en.Recipients, strings.NewReader(msg.String())); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return client.Quit()
}
