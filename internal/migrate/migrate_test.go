package migrate

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/lib/pq"

	"github.com/offerdesk/tracker/migrations"
)

func TestLoad_Ordering(t *testing.T) {
	fsys := fstest.MapFS{
		"000002_domains.up.sql":   {Data: []byte("CREATE TABLE b ();")},
		"000002_domains.down.sql": {Data: []byte("DROP TABLE b;")},
		"000001_init.up.sql":      {Data: []byte("CREATE TABLE a ();")},
		"000001_init.down.sql":    {Data: []byte("DROP TABLE a;")},
		"README.md":               {Data: []byte("ignored")},
	}

	got, err := Load(fsys)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(got))
	}
	if got[0].Version != "000001" || got[0].Name != "init" || got[1].Version != "000002" {
		t.Errorf("unexpected order: %+v", got)
	}
	if got[1].Down != "DROP TABLE b;" {
		t.Errorf("down script not paired: %q", got[1].Down)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		fsys fstest.MapFS
	}{
		{"empty", fstest.MapFS{}},
		{"missing up", fstest.MapFS{"000001_init.down.sql": {Data: []byte("x")}}},
		{"bad suffix", fstest.MapFS{"000001_init.sql": {Data: []byte("x")}}},
		{"bad prefix", fstest.MapFS{"init.up.sql": {Data: []byte("x")}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(tt.fsys); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := Load(fstest.MapFS{}); !errors.Is(err, ErrNoMigrations) {
		t.Errorf("expected ErrNoMigrations, got %v", err)
	}
}

func TestLoad_EmbeddedMigrations(t *testing.T) {
	got, err := Load(migrations.FS)
	if err != nil {
		t.Fatalf("Load embedded migrations: %v", err)
	}
	if got[0].Version != "000001" || got[0].Up == "" || got[0].Down == "" {
		t.Errorf("unexpected first migration: %+v", got[0])
	}
}

func TestDescribe(t *testing.T) {
	err := &pq.Error{Code: "42P07", Message: `relation "offers" already exists`}
	if got := describe(err); got != `relation "offers" already exists (SQLSTATE 42P07)` {
		t.Errorf("describe(pq.Error) = %q", got)
	}
	if got := describe(errors.New("plain")); got != "plain" {
		t.Errorf("describe(plain) = %q", got)
	}
}
