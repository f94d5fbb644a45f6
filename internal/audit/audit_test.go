package audit

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/schoolhub-core/internal/events"
	"github.com/nerrad567/schoolhub-core/internal/infrastructure/database"
	"github.com/nerrad567/schoolhub-core/migrations"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "audit.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db.DB
}

func TestRepository_CreateAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRepository(testDB(t))

	base := time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)
	entries := []*Entry{
		{Action: "signup", EntityType: "student", EntityID: "1", Actor: "jane@school.test", Source: SourceAPI, CreatedAt: base},
		{Action: "login", EntityType: "student", EntityID: "1", Actor: "jane@school.test", Source: SourceAPI, CreatedAt: base.Add(time.Minute)},
		{Action: "account_approved", EntityType: "teacher", EntityID: "2", Source: SourceAPI, CreatedAt: base.Add(2 * time.Minute),
			Details: map[string]any{"by": "schooladmin"}},
	}
	for _, e := range entries {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if len(e.ID) != len("aud-")+8 {
			t.Errorf("generated ID %q", e.ID)
		}
	}

	page, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.Total != 3 || len(page.Entries) != 3 || page.Limit != DefaultLimit {
		t.Fatalf("List() = total %d, %d entries, limit %d", page.Total, len(page.Entries), page.Limit)
	}
	if page.Entries[0].Action != "account_approved" {
		t.Errorf("newest entry = %q, want account_approved", page.Entries[0].Action)
	}
	if page.Entries[0].Details["by"] != "schooladmin" {
		t.Errorf("details = %v", page.Entries[0].Details)
	}
	if page.Entries[0].Actor != "" {
		t.Errorf("actor = %q, want empty", page.Entries[0].Actor)
	}

	page, err = repo.List(ctx, Filter{EntityType: "student", Action: "login"})
	if err != nil {
		t.Fatalf("List(filter) error = %v", err)
	}
	if page.Total != 1 || page.Entries[0].Action != "login" {
		t.Errorf("filtered list = %+v", page)
	}

	page, err = repo.List(ctx, Filter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("List(page) error = %v", err)
	}
	if page.Total != 3 || len(page.Entries) != 1 || page.Entries[0].Action != "login" {
		t.Errorf("second page = %+v", page)
	}

	page, err = repo.List(ctx, Filter{Limit: 10_000})
	if err != nil {
		t.Fatalf("List(large) error = %v", err)
	}
	if page.Limit != MaxLimit {
		t.Errorf("Limit = %d, want %d", page.Limit, MaxLimit)
	}
}

type memoryRepo struct {
	entries []*Entry
}

func (m *memoryRepo) Create(_ context.Context, e *Entry) error {
	m.entries = append(m.entries, e)
	return nil
}

func (m *memoryRepo) List(context.Context, Filter) (*Page, error) {
	return &Page{}, nil
}

func TestSink(t *testing.T) {
	repo := &memoryRepo{}
	sink := NewSink(repo)
	ctx := context.Background()

	at := time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)
	_ = sink.Handle(ctx, events.Event{Type: events.TypeTokenRefreshed, Role: "student", EntityID: 1})
	_ = sink.Handle(ctx, events.Event{
		Type: events.TypePasswordChanged, Role: "teacher", EntityID: 4, Actor: "t@school.test", At: at,
		Details: map[string]any{"token_version": 2},
	})
	_ = sink.Handle(ctx, events.Event{Type: events.TypeLoginFailed, Role: "student", Actor: "who@school.test"})

	if len(repo.entries) != 2 {
		t.Fatalf("recorded %d entries, want 2", len(repo.entries))
	}
	got := repo.entries[0]
	if got.Action != "password_changed" || got.EntityType != "teacher" || got.EntityID != "4" ||
		got.Actor != "t@school.test" || !got.CreatedAt.Equal(at) || got.Source != SourceAPI {
		t.Errorf("entry = %+v", got)
	}
	if repo.entries[1].EntityID != "" {
		t.Errorf("entity ID for unknown account = %q, want empty", repo.entries[1].EntityID)
	}
}
