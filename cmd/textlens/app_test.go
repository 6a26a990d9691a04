package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "textlens.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewApp_SeedsPresets(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, `
logging:
  level: error
database:
  path: `+filepath.Join(dir, "data", "textlens.db")+`
transport:
  read_timeout: 90s
`)

	a, err := newApp(context.Background(), cfgPath)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.close()

	list, err := a.templates.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(list) == 0 {
		t.Error("expected preset templates to be seeded")
	}
	if a.pipeline == nil {
		t.Error("pipeline not built")
	}
}

func TestNewApp_WrongPassphrase(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "textlens.db")

	first := writeConfig(t, "logging:\n  level: error\ndatabase:\n  path: "+db+"\nsecrets:\n  passphrase: correct horse\n")
	a, err := newApp(context.Background(), first)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	a.close()

	second := writeConfig(t, "logging:\n  level: error\ndatabase:\n  path: "+db+"\nsecrets:\n  passphrase: battery staple\n")
	if _, err := newApp(context.Background(), second); err == nil {
		t.Fatal("expected wrong passphrase to fail")
	}
}

func TestNewApp_BadConfig(t *testing.T) {
	cfgPath := writeConfig(t, "logging:\n  level: shouty\n")
	if _, err := newApp(context.Background(), cfgPath); err == nil {
		t.Fatal("expected invalid log level to fail")
	}
}
