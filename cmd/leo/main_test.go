package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunInit(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer

	if err := runInit(&out, dir); err != nil {
		t.Fatalf("runInit: %v", err)
	}

	for _, name := range []string{"config.yaml", "persona.yaml"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "var")); err != nil {
		t.Errorf("var directory not created: %v", err)
	}

	// Second run must not clobber the operator's edits.
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("edited: true\n"), 0644); err != nil {
		t.Fatal(err)
	}
	out.Reset()
	if err := runInit(&out, dir); err != nil {
		t.Fatalf("second runInit: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "edited: true\n" {
		t.Error("existing config.yaml was overwritten")
	}
	if !strings.Contains(out.String(), "skipping") {
		t.Errorf("output = %q, want skip notice", out.String())
	}
}

func TestRunVersionJSON(t *testing.T) {
	var out bytes.Buffer
	if err := runVersion(&out, "json"); err != nil {
		t.Fatalf("runVersion: %v", err)
	}
	var info map[string]string
	if err := json.Unmarshal(out.Bytes(), &info); err != nil {
		t.Fatalf("not valid JSON: %v", err)
	}
	if info["version"] == "" {
		t.Error("version missing")
	}
}

func TestRunArgParsing(t *testing.T) {
	ctx := context.Background()

	var out bytes.Buffer
	if err := run(ctx, &out, &out, nil); err != nil {
		t.Errorf("no args should print usage, got %v", err)
	}
	if !strings.Contains(out.String(), "serve") {
		t.Errorf("usage output = %q", out.String())
	}

	if err := run(ctx, &out, &out, []string{"bogus"}); err == nil {
		t.Error("unknown command should fail")
	}
	if err := run(ctx, &out, &out, []string{"-bogus"}); err == nil {
		t.Error("unknown flag should fail")
	}
	if err := run(ctx, &out, &out, []string{"-o", "xml", "version"}); err == nil {
		t.Error("unknown output format should fail")
	}
}
