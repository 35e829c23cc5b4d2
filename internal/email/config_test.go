package email

import (
	"strings"
	"testing"
)

func TestApplyDefaults(t *testing.T) {
	cfg := Config{
		IMAP: IMAPConfig{Host: "imap.example.com", Username: "leo"},
		SMTP: SMTPConfig{Host: "smtp.example.com", Username: "leo"},
	}
	cfg.ApplyDefaults()

	if cfg.IMAP.Port != 993 || !cfg.IMAP.TLS {
		t.Errorf("imap defaults = port %d, tls %v", cfg.IMAP.Port, cfg.IMAP.TLS)
	}
	if cfg.SMTP.Port != 587 || !cfg.SMTP.StartTLS {
		t.Errorf("smtp defaults = port %d, starttls %v", cfg.SMTP.Port, cfg.SMTP.StartTLS)
	}
}

func TestApplyDefaultsImplicitTLS(t *testing.T) {
	cfg := Config{
		IMAP: IMAPConfig{Host: "imap.example.com", Username: "leo", Port: 143},
		SMTP: SMTPConfig{Host: "smtp.example.com", Username: "leo", Port: 465},
	}
	cfg.ApplyDefaults()

	if cfg.IMAP.TLS {
		t.Error("port 143 should stay plaintext")
	}
	if cfg.SMTP.StartTLS {
		t.Error("port 465 should use implicit TLS, not STARTTLS")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "missing imap host",
			cfg:     Config{IMAP: IMAPConfig{Username: "leo", Port: 993}},
			wantErr: "imap.host",
		},
		{
			name:    "missing username",
			cfg:     Config{IMAP: IMAPConfig{Host: "h", Port: 993}},
			wantErr: "imap.username",
		},
		{
			name:    "port out of range",
			cfg:     Config{IMAP: IMAPConfig{Host: "h", Username: "u", Port: 99999}},
			wantErr: "out of range",
		},
		{
			name: "smtp without from",
			cfg: Config{
				IMAP: IMAPConfig{Host: "h", Username: "u", Port: 993},
				SMTP: SMTPConfig{Host: "s", Username: "u", Port: 587},
			},
			wantErr: "from is required",
		},
		{
			name: "valid",
			cfg: Config{
				IMAP: IMAPConfig{Host: "h", Username: "u", Port: 993},
				SMTP: SMTPConfig{Host: "s", Username: "u", Port: 587},
				From: "leo@example.com",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfiguredAndCanSend(t *testing.T) {
	var empty Config
	if empty.Configured() || empty.CanSend() {
		t.Error("empty config should not be configured")
	}

	readOnly := Config{IMAP: IMAPConfig{Host: "h", Username: "u"}}
	if !readOnly.Configured() {
		t.Error("imap-only config should be configured")
	}
	if readOnly.CanSend() {
		t.Error("imap-only config should not send")
	}
}
