package email

import (
	"context"
	"fmt"
	"strings"

	"github.com/Hezy4/LEO/internal/tools"
)

// Mailbox is the read side the tools depend on. *Client implements it.
type Mailbox interface {
	ListMessages(ctx context.Context, opts ListOptions) ([]Envelope, error)
	ReadMessage(ctx context.Context, folder string, uid uint32) (*Message, error)
}

// Service bundles the mailbox and the outbound path for tool handlers.
type Service struct {
	cfg     Config
	mailbox Mailbox

	// send is swappable for tests; defaults to SendMail.
	send func(ctx context.Context, cfg SMTPConfig, from string, recipients []string, msg []byte) error
}

// NewService creates the email tool service.
func NewService(cfg Config, mailbox Mailbox) *Service {
	return &Service{cfg: cfg, mailbox: mailbox, send: SendMail}
}

// Send composes and delivers a markdown-bodied message.
func (s *Service) Send(ctx context.Context, opts SendOptions) error {
	if !s.cfg.CanSend() {
		return fmt.Errorf("outbound email is not configured")
	}
	if len(opts.To) == 0 {
		return fmt.Errorf("at least one recipient is required")
	}
	msg, err := Compose(s.cfg.From, opts)
	if err != nil {
		return err
	}
	return s.send(ctx, s.cfg.SMTP, s.cfg.From, collectRecipients(opts.To, opts.Cc), msg)
}

// RegisterTools adds the email tools backed by the service.
func RegisterTools(registry *tools.Registry, svc *Service) {
	registry.Register(&tools.Tool{
		Name:        "email.list_messages",
		Description: "List recent emails in a folder, newest first.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"folder": map[string]any{
					"type":        "string",
					"description": "Mailbox to list (default INBOX)",
				},
				"limit": map[string]any{
					"type":        "number",
					"description": "Maximum messages to return (default 20)",
				},
				"unseen": map[string]any{
					"type":        "boolean",
					"description": "Only unread messages",
				},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			opts := ListOptions{
				Folder: stringArg(args, "folder"),
				Limit:  intArg(args, "limit"),
				Unseen: boolArg(args, "unseen"),
			}
			envelopes, err := svc.mailbox.ListMessages(ctx, opts)
			if err != nil {
				return "", err
			}
			if len(envelopes) == 0 {
				folder := opts.Folder
				if folder == "" {
					folder = "INBOX"
				}
				return fmt.Sprintf("No messages in %s", folder), nil
			}
			return formatEnvelopeList(envelopes), nil
		},
	})

	registry.Register(&tools.Tool{
		Name:        "email.get_message",
		Description: "Read one email by UID. Use email.list_messages first to find the UID.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"uid": map[string]any{
					"type":        "number",
					"description": "Message UID",
				},
				"folder": map[string]any{
					"type":        "string",
					"description": "Mailbox containing the message (default INBOX)",
				},
			},
			"required": []string{"uid"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			uid := uint32(intArg(args, "uid"))
			if uid == 0 {
				return "", fmt.Errorf("uid is required")
			}
			msg, err := svc.mailbox.ReadMessage(ctx, stringArg(args, "folder"), uid)
			if err != nil {
				return "", err
			}
			return formatMessage(msg), nil
		},
	})

	registry.Register(&tools.Tool{
		Name:        "email.send",
		Description: "Send an email. The body is markdown and is delivered as both plain text and HTML.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"to": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Recipient addresses",
				},
				"cc": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "CC addresses",
				},
				"subject": map[string]any{
					"type":        "string",
					"description": "Subject line",
				},
				"body": map[string]any{
					"type":        "string",
					"description": "Message body in markdown",
				},
			},
			"required": []string{"to", "subject", "body"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			opts := SendOptions{
				To:      stringSliceArg(args, "to"),
				Cc:      stringSliceArg(args, "cc"),
				Subject: stringArg(args, "subject"),
				Body:    stringArg(args, "body"),
			}
			if opts.Subject == "" {
				return "", fmt.Errorf("subject is required")
			}
			if opts.Body == "" {
				return "", fmt.Errorf("body is required")
			}
			if err := svc.Send(ctx, opts); err != nil {
				return "", err
			}
			return fmt.Sprintf("Email sent to %s", strings.Join(opts.To, ", ")), nil
		},
	})
}

func formatEnvelopeList(envelopes []Envelope) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d message(s):\n", len(envelopes))
	for _, env := range envelopes {
		fmt.Fprintf(&sb, "\nUID: %d\nFrom: %s\nSubject: %s\nDate: %s\n",
			env.UID, env.From, env.Subject, env.Date.Format("2006-01-02 15:04"))
		if len(env.Flags) > 0 {
			fmt.Fprintf(&sb, "Flags: %s\n", strings.Join(env.Flags, ", "))
		}
	}
	return sb.String()
}

func formatMessage(msg *Message) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s\n", msg.From)
	fmt.Fprintf(&sb, "To: %s\n", strings.Join(msg.To, ", "))
	if len(msg.Cc) > 0 {
		fmt.Fprintf(&sb, "Cc: %s\n", strings.Join(msg.Cc, ", "))
	}
	fmt.Fprintf(&sb, "Subject: %s\n", msg.Subject)
	fmt.Fprintf(&sb, "Date: %s\n", msg.Date.Format("2006-01-02 15:04 MST"))
	sb.WriteString("\n---\n\n")

	switch {
	case msg.TextBody != "":
		sb.WriteString(msg.TextBody)
	case msg.HTMLBody != "":
		sb.WriteString("[HTML only, no plain text version]\n\n")
		sb.WriteString(msg.HTMLBody)
	default:
		sb.WriteString("[No text content]")
	}
	return sb.String()
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func intArg(args map[string]any, key string) int {
	if v, ok := args[key].(float64); ok {
		return int(v)
	}
	return 0
}

func boolArg(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}

func stringSliceArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
