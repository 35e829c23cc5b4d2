package email

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/emersion/go-message/mail"
)

func TestComposeMultipartAlternative(t *testing.T) {
	msg, err := Compose("LEO <leo@example.com>", SendOptions{
		To:      []string{"Henry <henry@example.com>"},
		Cc:      []string{"cc@example.com"},
		Subject: "Weekly summary",
		Body:    "# Summary\n\nYou have **3** open tasks. See [the list](https://example.com/tasks).",
	})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	mr, err := mail.CreateReader(bytes.NewReader(msg))
	if err != nil {
		t.Fatalf("parse composed message: %v", err)
	}

	if subject, err := mr.Header.Subject(); err != nil || subject != "Weekly summary" {
		t.Errorf("subject = %q (%v)", subject, err)
	}
	from, err := mr.Header.AddressList("From")
	if err != nil || len(from) != 1 || from[0].Address != "leo@example.com" {
		t.Errorf("from = %v (%v)", from, err)
	}
	if id, err := mr.Header.MessageID(); err != nil || id == "" {
		t.Errorf("missing message-id (%v)", err)
	}

	var plain, html string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("next part: %v", err)
		}
		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := header.ContentType()
		body, _ := io.ReadAll(part.Body)
		switch contentType {
		case "text/plain":
			plain = string(body)
		case "text/html":
			html = string(body)
		}
	}

	if !strings.Contains(plain, "You have 3 open tasks") {
		t.Errorf("plain part not stripped of markdown:\n%s", plain)
	}
	if !strings.Contains(plain, "the list (https://example.com/tasks)") {
		t.Errorf("plain part missing link target:\n%s", plain)
	}
	if !strings.Contains(html, "<strong>3</strong>") {
		t.Errorf("html part not rendered:\n%s", html)
	}
	if !strings.Contains(html, `<a href="https://example.com/tasks">`) {
		t.Errorf("html part missing link:\n%s", html)
	}
}

func TestComposeBadAddress(t *testing.T) {
	_, err := Compose("leo@example.com", SendOptions{
		To:      []string{"not an address"},
		Subject: "x",
		Body:    "y",
	})
	if err == nil {
		t.Error("expected error for bad recipient address")
	}
}

func TestMarkdownToPlain(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"**bold** and *italic*", "bold and italic"},
		{"## Heading\ntext", "Heading\ntext"},
		{"`code` inline", "code inline"},
		{"```go\nx := 1\n```", "x := 1"},
		{"![alt](img.png) done", "alt done"},
		{"- item one\n- item two", "- item one\n- item two"},
	}
	for _, tt := range tests {
		if got := markdownToPlain(tt.in); got != tt.want {
			t.Errorf("markdownToPlain(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
