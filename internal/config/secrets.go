package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Secrets holds mail credentials pulled from the process environment.
type Secrets struct {
	SMTPUsername string `envconfig:"SMTP_USERNAME"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	MailFrom     string `envconfig:"MAIL_FROM"`
	MailTo       string `envconfig:"MAIL_TO"`
}

// LoadDotEnv loads a .env file from the working directory if one exists.
// Variables already present in the environment win.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil {
		if _, statErr := os.Stat(".env"); statErr == nil {
			log.Printf("Warning: .env file found but could not be loaded: %v", err)
		}
	}
}

// LoadSecrets reads DIGEST_* variables into a Secrets value.
func LoadSecrets() (*Secrets, error) {
	var s Secrets
	if err := envconfig.Process("DIGEST", &s); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	if s.MailFrom == "" {
		s.MailFrom = s.SMTPUsername
	}
	return &s, nil
}

// Recipients splits MailTo on commas.
func (s *Secrets) Recipients() []string {
	var out []string
	for _, addr := range strings.Split(s.MailTo, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

// MailConfigured reports whether enough is set to submit mail.
func (s *Secrets) MailConfigured() error {
	var missing []string
	if s.SMTPUsername == "" {
		missing = append(missing, "DIGEST_SMTP_USERNAME")
	}
	if s.SMTPPassword == "" {
		missing = append(missing, "DIGEST_SMTP_PASSWORD")
	}
	if len(s.Recipients()) == 0 {
		missing = append(missing, "DIGEST_MAIL_TO")
	}
	if len(missing) > 0 {
		return fmt.Errorf("mail not configured, missing %s", strings.Join(missing, ", "))
	}
	return nil
}
