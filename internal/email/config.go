package email

import "fmt"

// Config holds the assistant's single mail account. Sending is
// optional; omit the smtp section to run read-only.
type Config struct {
	IMAP IMAPConfig `yaml:"imap"`
	SMTP SMTPConfig `yaml:"smtp"`

	// From is the sender address for outbound mail, e.g.
	// "LEO <leo@example.com>". Required when SMTP is configured.
	From string `yaml:"from"`
}

// IMAPConfig holds IMAP connection parameters.
type IMAPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	TLS      bool   `yaml:"tls"`
}

// SMTPConfig holds SMTP submission parameters.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// StartTLS upgrades a plain connection. Leave false for port 465
	// implicit TLS.
	StartTLS bool `yaml:"starttls"`
}

// Configured reports whether the account can at least read mail.
func (c Config) Configured() bool {
	return c.IMAP.Host != "" && c.IMAP.Username != ""
}

// CanSend reports whether outbound mail is configured.
func (c Config) CanSend() bool {
	return c.SMTP.Host != "" && c.SMTP.Username != "" && c.From != ""
}

// ApplyDefaults fills zero-value ports and the TLS conventions: IMAPS
// on 993, submission with STARTTLS on 587, implicit TLS on 465, plain
// only on 143.
func (c *Config) ApplyDefaults() {
	if c.IMAP.Port == 0 {
		c.IMAP.Port = 993
	}
	if !c.IMAP.TLS && c.IMAP.Port != 143 {
		c.IMAP.TLS = true
	}
	if c.SMTP.Host != "" {
		if c.SMTP.Port == 0 {
			c.SMTP.Port = 587
		}
		if !c.SMTP.StartTLS && c.SMTP.Port != 465 {
			c.SMTP.StartTLS = true
		}
	}
}

// Validate reports the first inconsistency in the configuration.
func (c Config) Validate() error {
	if c.IMAP.Host == "" {
		return fmt.Errorf("email: imap.host is required")
	}
	if c.IMAP.Username == "" {
		return fmt.Errorf("email: imap.username is required")
	}
	if c.IMAP.Port < 1 || c.IMAP.Port > 65535 {
		return fmt.Errorf("email: imap.port %d out of range", c.IMAP.Port)
	}
	if c.SMTP.Host != "" {
		if c.SMTP.Username == "" {
			return fmt.Errorf("email: smtp.username is required when smtp.host is set")
		}
		if c.SMTP.Port < 1 || c.SMTP.Port > 65535 {
			return fmt.Errorf("email: smtp.port %d out of range", c.SMTP.Port)
		}
		if c.From == "" {
			return fmt.Errorf("email: from is required when smtp is configured")
		}
	}
	return nil
}
