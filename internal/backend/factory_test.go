package backend

import (
	"context"
	"path/filepath"
	"testing"

	"carteira/internal/config"
	"carteira/internal/core"
	"carteira/internal/storage/memory"
)

func TestCreateBackend(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name            string
		config          Config
		wantErr         bool
		wantAttachments bool
	}{
		{"memory without attachments", Config{Type: MemoryBackend, DataDirectory: dir}, false, false},
		{"memory with local attachments", Config{Type: MemoryBackend, AttachmentBackend: "local", AttachmentDir: filepath.Join(dir, "att")}, false, true},
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(dir, "db", "carteira.db")}, false, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true, false},
		{"unknown type", Config{Type: "sheets"}, true, false},
		{"gcs without bucket", Config{Type: MemoryBackend, AttachmentBackend: "gcs"}, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := NewFactory(nil).CreateBackend(context.Background(), tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CreateBackend() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer res.Cleanup()

			if res.Events != nil {
				t.Error("expected no event publisher without AMQP_URL")
			}
			if (res.Attachments != nil) != tt.wantAttachments {
				t.Errorf("attachments = %v, want present %v", res.Attachments, tt.wantAttachments)
			}
			if got := len(res.LedgerOptions()); got != map[bool]int{true: 1, false: 0}[tt.wantAttachments] {
				t.Errorf("LedgerOptions() returned %d options", got)
			}
		})
	}
}

func TestCreateBackend_MemorySeedsCategories(t *testing.T) {
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend, DataDirectory: t.TempDir()})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Cleanup()

	if _, ok := res.Backend.(*memory.Store); !ok {
		t.Fatalf("expected *memory.Store, got %T", res.Backend)
	}
	cats, err := res.Backend.ListCategories(context.Background())
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(cats) == 0 {
		t.Fatal("expected default categories")
	}

	if err := res.Backend.Preferences().Set(context.Background(), "k", "v"); err != nil {
		t.Fatalf("Preferences().Set: %v", err)
	}
	rows, err := res.Backend.InsertMany(context.Background(), []core.Transaction{{Date: core.NewDate(2025, 1, 1), Description: "x", Amount: -1}})
	if err != nil || len(rows) != 1 || rows[0].ID == "" {
		t.Fatalf("InsertMany = %v, %v", rows, err)
	}
}

func TestFromAppConfig(t *testing.T) {
	cfg := &config.Config{
		DataBackend:       "sqlite",
		SQLiteDBPath:      "/tmp/x.db",
		AttachmentBackend: "gcs",
		GCSBucket:         "receipts",
		AMQPURL:           "amqp://localhost",
	}
	bc, err := FromAppConfig(cfg)
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if bc.Type != SQLiteBackend || bc.GCSBucket != "receipts" || bc.AMQPURL != "amqp://localhost" {
		t.Errorf("unexpected backend config %+v", bc)
	}

	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Error("expected error for unknown backend")
	}
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
}
