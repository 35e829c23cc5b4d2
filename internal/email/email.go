// Package email gives the assistant a mailbox: IMAP for listing and
// reading, SMTP for sending, with markdown bodies composed into
// multipart/alternative MIME messages.
package email

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-imap/v2"
)

// Envelope is the summary metadata shown in list output.
type Envelope struct {
	UID     uint32
	Date    time.Time
	From    string
	To      []string
	Subject string
	Flags   []string
	Size    uint32
}

// Message is a fully fetched email with the body extracted from the
// MIME structure. TextBody is preferred for model consumption.
type Message struct {
	Envelope

	MessageID string
	Cc        []string
	ReplyTo   string
	TextBody  string
	HTMLBody  string
}

// ListOptions controls ListMessages.
type ListOptions struct {
	// Folder is the mailbox to list. Default "INBOX".
	Folder string
	// Limit caps the number of messages returned. Default 20.
	Limit int
	// Unseen restricts the listing to unread messages.
	Unseen bool
}

// SendOptions describes an outbound message. Body is markdown; the
// compose layer renders text/plain and text/html parts from it.
type SendOptions struct {
	To      []string
	Cc      []string
	Subject string
	Body    string
}

// drainLiteral discards an unread IMAP literal so the stream stays in
// sync. Nil readers are fine.
func drainLiteral(r imap.LiteralReader) {
	if r == nil {
		return
	}
	_, _ = io.Copy(io.Discard, r)
}

// formatAddress renders an IMAP address as "Name <user@host>", or the
// bare address when no display name is set.
func formatAddress(addr imap.Address) string {
	email := addr.Addr()
	if addr.Name != "" {
		return fmt.Sprintf("%s <%s>", addr.Name, email)
	}
	return email
}
