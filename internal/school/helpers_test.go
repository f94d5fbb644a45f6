package school

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/nerrad567/schoolhub-core/internal/auth"
	"github.com/nerrad567/schoolhub-core/internal/infrastructure/database"
	"github.com/nerrad567/schoolhub-core/migrations"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(t.Context(), database.Config{
		Path:        filepath.Join(t.TempDir(), "school-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(t.Context(), migrations.FS); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	return db.DB
}

type fixture struct {
	repo     *SQLiteRepository
	students *auth.SQLiteAccountRepository
	teachers *auth.SQLiteAccountRepository
	svc      *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testDB(t)
	students, err := auth.NewAccountRepository(db, auth.RoleStudent)
	if err != nil {
		t.Fatalf("NewAccountRepository(student) error = %v", err)
	}
	teachers, err := auth.NewAccountRepository(db, auth.RoleTeacher)
	if err != nil {
		t.Fatalf("NewAccountRepository(teacher) error = %v", err)
	}
	repo := NewRepository(db)

	svc := NewService(Deps{
		Repo:     repo,
		Students: students,
		Teachers: teachers,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return &fixture{repo: repo, students: students, teachers: teachers, svc: svc}
}

func (f *fixture) createTeacher(t *testing.T, name, email string) *auth.Account {
	t.Helper()
	a := &auth.Account{Name: name, Email: email, PasswordHash: "h", Approved: true}
	if err := f.teachers.Create(context.Background(), a); err != nil {
		t.Fatalf("creating teacher: %v", err)
	}
	return a
}

func (f *fixture) createStudent(t *testing.T, name, email string) *auth.Account {
	t.Helper()
	a := &auth.Account{Name: name, Email: email, PasswordHash: "h", Approved: true}
	if err := f.students.Create(context.Background(), a); err != nil {
		t.Fatalf("creating student: %v", err)
	}
	return a
}
