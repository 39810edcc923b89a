package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFormatCodesSorted(t *testing.T) {
	if got := formatCodes(map[int]int{409: 10, 201: 10, -1: 1}); got != "-1=1 201=10 409=10" {
		t.Fatalf("formatCodes = %q", got)
	}
}

func TestExtractTablesAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"0001_a.sql": "CREATE TABLE IF NOT EXISTS tours (id TEXT);\ncreate table if not exists departures (id TEXT);",
		"0002_b.sql": "CREATE TABLE IF NOT EXISTS rooms (id TEXT);",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	tables, err := extractTables(dir)
	if err != nil {
		t.Fatalf("extractTables: %v", err)
	}
	if len(tables) != 3 || tables[0] != "tours" || tables[2] != "rooms" {
		t.Fatalf("unexpected tables %v", tables)
	}
	if _, err := extractTables(t.TempDir()); err == nil {
		t.Fatal("expected error for empty dir")
	}
}
