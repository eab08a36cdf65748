// Package mailer provides an SMTP implementation of the core's MailSender
// collaborator.
package mailer

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"gopkg.in/gomail.v2"
)

// Config holds SMTP connection settings.
type Config struct {
	Host     string `env:"GATEKEEPER_SMTP_HOST"`
	Port     int    `env:"GATEKEEPER_SMTP_PORT" envDefault:"587"`
	Username string `env:"GATEKEEPER_SMTP_USERNAME"`
	Password string `env:"GATEKEEPER_SMTP_PASSWORD"`
	From     string `env:"GATEKEEPER_SMTP_FROM"`
}

func (c *Config) validate() error {
	if c.Host == "" {
		return fmt.Errorf("smtp host is required")
	}
	if c.Port == 0 {
		return fmt.Errorf("smtp port is required")
	}
	if c.From == "" {
		return fmt.Errorf("smtp from address is required")
	}
	return nil
}

// LoadConfig reads SMTP settings from GATEKEEPER_SMTP_* environment
// variables.
func LoadConfig() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer sends plain-text mail over SMTP. It satisfies the core's
// MailSender interface.
type Mailer struct {
	from   string
	dialer dialer
}

// New builds a Mailer from the given configuration.
func New(cfg *Config) (*Mailer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Mailer{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}, nil
}

// Send delivers a single plain-text message.
func (m *Mailer) Send(to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("sending mail to %s: %w", to, err)
	}
	return nil
}
