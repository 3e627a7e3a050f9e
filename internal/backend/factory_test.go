package backend

import (
	"context"
	"path/filepath"
	"testing"

	"kakeibo/internal/config"
	"kakeibo/internal/core"
)

func TestFromAppConfig(t *testing.T) {
	cfg := config.Load()
	cfg.DataBackend = "xlsx"
	cfg.LedgerFile = "ledger.xlsx"
	cfg.MirrorBackend = "sqlite"

	bc, err := FromAppConfig(cfg)
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if bc.Type != XLSXBackend || bc.LedgerFile != "ledger.xlsx" {
		t.Errorf("unexpected config: %+v", bc)
	}

	mc, err := MirrorFromAppConfig(cfg)
	if err != nil {
		t.Fatalf("MirrorFromAppConfig: %v", err)
	}
	if mc.Type != SQLiteBackend {
		t.Errorf("expected sqlite mirror, got %s", mc.Type)
	}

	cfg.DataBackend = "csv"
	if _, err := FromAppConfig(cfg); err == nil {
		t.Error("expected error for invalid backend")
	}
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"xlsx ok", Config{Type: XLSXBackend, LedgerFile: "k.xlsx"}, false},
		{"xlsx missing file", Config{Type: XLSXBackend}, true},
		{"sqlite missing path", Config{Type: SQLiteBackend}, true},
		{"sheets missing credentials", Config{Type: SheetsBackend, GoogleSpreadsheetID: "x"}, true},
		{"memory ok", Config{Type: MemoryBackend}, false},
		{"unknown", Config{Type: "csv"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetBackendTypeStrings(t *testing.T) {
	got := GetBackendTypeStrings()
	if len(got) != 4 || got[0] != "xlsx" {
		t.Errorf("unexpected backend types: %v", got)
	}
}

func TestCreateBackend(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(nil)
	dir := t.TempDir()

	t.Run("xlsx", func(t *testing.T) {
		res, err := f.CreateBackend(ctx, Config{Type: XLSXBackend, LedgerFile: filepath.Join(dir, "k.xlsx")})
		if err != nil {
			t.Fatalf("CreateBackend: %v", err)
		}
		if res.Watcher == nil {
			t.Error("xlsx backend should be watchable")
		}
		records, err := res.Table.Load(ctx)
		if err != nil || len(records) != 0 {
			t.Errorf("expected empty ledger, got %v, %v", records, err)
		}
		if err := res.Cleanup.Close(); err != nil {
			t.Errorf("nil cleanup should close cleanly: %v", err)
		}
	})

	t.Run("sqlite", func(t *testing.T) {
		res, err := f.CreateBackend(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(dir, "k.db")})
		if err != nil {
			t.Fatalf("CreateBackend: %v", err)
		}
		defer res.Cleanup()
		if res.Taxonomy == nil {
			t.Fatal("sqlite backend should provide categories")
		}
		cats, err := res.Taxonomy.Categories(ctx, core.Income)
		if err != nil || len(cats) == 0 {
			t.Errorf("expected seeded categories, got %v, %v", cats, err)
		}
	})

	t.Run("memory", func(t *testing.T) {
		res, err := f.CreateBackend(ctx, Config{Type: MemoryBackend})
		if err != nil {
			t.Fatalf("CreateBackend: %v", err)
		}
		if res.Table == nil {
			t.Error("expected a table")
		}
	})

	t.Run("invalid", func(t *testing.T) {
		if _, err := f.CreateBackend(ctx, Config{Type: SheetsBackend}); err == nil {
			t.Error("expected validation error")
		}
	})
}
