package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// Client is an IMAP client with lazy connection and mutex-serialized
// access. All public methods are goroutine-safe.
type Client struct {
	cfg    IMAPConfig
	logger *slog.Logger

	mu   sync.Mutex
	conn *imapclient.Client
}

// NewClient creates an IMAP client. The connection is established on
// first use.
func NewClient(cfg IMAPConfig, logger *slog.Logger) *Client {
	return &Client{cfg: cfg, logger: logger}
}

// connectLocked dials and authenticates. Caller holds c.mu.
func (c *Client) connectLocked(ctx context.Context) error {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}

	addr := net.JoinHostPort(c.cfg.Host, fmt.Sprintf("%d", c.cfg.Port))
	c.logger.Debug("connecting to imap server", "host", c.cfg.Host, "port", c.cfg.Port, "tls", c.cfg.TLS)

	var conn *imapclient.Client
	var err error
	if c.cfg.TLS {
		conn, err = imapclient.DialTLS(addr, &imapclient.Options{
			TLSConfig: &tls.Config{ServerName: c.cfg.Host},
		})
	} else {
		conn, err = imapclient.DialInsecure(addr, &imapclient.Options{})
	}
	if err != nil {
		return fmt.Errorf("dial imap %s: %w", addr, err)
	}

	if err := conn.Login(c.cfg.Username, c.cfg.Password).Wait(); err != nil {
		_ = conn.Close()
		return fmt.Errorf("login as %s: %w", c.cfg.Username, err)
	}

	c.conn = conn
	c.logger.Info("imap connected", "host", c.cfg.Host, "user", c.cfg.Username)
	return nil
}

// ensureConnected reuses a live connection or reconnects. Caller holds
// c.mu. Liveness is probed with NOOP.
func (c *Client) ensureConnected(ctx context.Context) error {
	if c.conn != nil {
		if err := c.conn.Noop().Wait(); err == nil {
			return nil
		}
		c.logger.Debug("imap connection stale, reconnecting", "host", c.cfg.Host)
	}
	return c.connectLocked(ctx)
}

// Ping verifies the connection, reconnecting if needed. Used by the
// status endpoint.
func (c *Client) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensureConnected(ctx)
}

// Close logs out and drops the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// selectFolder selects a mailbox, defaulting to INBOX. Caller holds
// c.mu.
func (c *Client) selectFolder(folder string) (*imap.SelectData, error) {
	if folder == "" {
		folder = "INBOX"
	}
	data, err := c.conn.Select(folder, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", folder, err)
	}
	return data, nil
}
