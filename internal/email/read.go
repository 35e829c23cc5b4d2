package email

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
)

// maxBodyChars bounds the extracted text handed to the model.
const maxBodyChars = 32 * 1024

// maxRawMessage bounds how much of the RFC 822 literal is buffered.
// The remainder is drained to keep the IMAP stream in sync.
const maxRawMessage = 5 * 1024 * 1024

// ReadMessage fetches one message by UID and extracts its text/plain
// and text/html bodies. Reading marks the message seen.
func (c *Client) ReadMessage(ctx context.Context, folder string, uid uint32) (*Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}
	if _, err := c.selectFolder(folder); err != nil {
		return nil, err
	}

	uidSet := imap.UIDSet{}
	uidSet.AddNum(imap.UID(uid))

	fetchCmd := c.conn.Fetch(uidSet, &imap.FetchOptions{
		UID:         true,
		Envelope:    true,
		Flags:       true,
		RFC822Size:  true,
		BodySection: []*imap.FetchItemBodySection{{}},
	})

	msg := fetchCmd.Next()
	if msg == nil {
		_ = fetchCmd.Close()
		return nil, fmt.Errorf("message UID %d not found", uid)
	}

	result := &Message{}
	var rawBody []byte

	for {
		item := msg.Next()
		if item == nil {
			break
		}
		switch data := item.(type) {
		case imapclient.FetchItemDataUID:
			result.UID = uint32(data.UID)
		case imapclient.FetchItemDataFlags:
			for _, f := range data.Flags {
				result.Flags = append(result.Flags, string(f))
			}
		case imapclient.FetchItemDataRFC822Size:
			result.Size = uint32(data.Size)
		case imapclient.FetchItemDataEnvelope:
			if data.Envelope != nil {
				result.Date = data.Envelope.Date
				result.Subject = data.Envelope.Subject
				result.MessageID = data.Envelope.MessageID
				if len(data.Envelope.From) > 0 {
					result.From = formatAddress(data.Envelope.From[0])
				}
				for _, addr := range data.Envelope.To {
					result.To = append(result.To, formatAddress(addr))
				}
				for _, addr := range data.Envelope.Cc {
					result.Cc = append(result.Cc, formatAddress(addr))
				}
				if len(data.Envelope.ReplyTo) > 0 {
					result.ReplyTo = formatAddress(data.Envelope.ReplyTo[0])
				}
			}
		case imapclient.FetchItemDataBodySection:
			// The literal streams from the connection; it must be
			// consumed before msg.Next() advances past it.
			if data.Literal == nil {
				continue
			}
			var readErr error
			rawBody, readErr = io.ReadAll(io.LimitReader(data.Literal, maxRawMessage))
			drainLiteral(data.Literal)
			if readErr != nil {
				c.logger.Debug("body read failed", "uid", uid, "error", readErr)
				rawBody = nil
			}
		}
	}

	if rawBody != nil {
		if err := c.parseBody(result, bytes.NewReader(rawBody)); err != nil {
			c.logger.Debug("body parse failed", "uid", uid, "error", err)
		}
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("fetch message UID %d: %w", uid, err)
	}
	return result, nil
}

// parseBody walks the MIME parts for text content. go-message may
// return a usable reader alongside an unknown-charset error; those are
// non-fatal, the content is still worth showing.
func (c *Client) parseBody(msg *Message, r io.Reader) error {
	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return fmt.Errorf("create mail reader: %w", err)
	}
	if mr == nil {
		return fmt.Errorf("create mail reader: %v", err)
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return fmt.Errorf("next part: %w", err)
		}
		if part == nil {
			continue
		}

		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			// Attachments are skipped entirely.
			continue
		}
		contentType, _, _ := header.ContentType()

		switch {
		case contentType == "text/plain" && msg.TextBody == "":
			msg.TextBody = readPart(part.Body)
		case contentType == "text/html" && msg.HTMLBody == "":
			msg.HTMLBody = readPart(part.Body)
		}
	}
	return nil
}

func readPart(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, maxBodyChars+1))
	if err != nil {
		return ""
	}
	text := string(body)
	if len(body) > maxBodyChars {
		text = text[:maxBodyChars] + "\n\n[truncated]"
	}
	return strings.TrimSpace(text)
}
