package auth

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/schoolhub-core/internal/infrastructure/database"
	"github.com/nerrad567/schoolhub-core/migrations"
)

// testDB creates a temporary SQLite database with every migration applied.
// The database file is removed with the test's temp dir.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(t.Context(), database.Config{
		Path:        filepath.Join(t.TempDir(), "auth-test.db"),
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

// testLogger discards output so test runs stay quiet.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fastHasher uses bcrypt's minimum cost to keep tests quick.
func fastHasher() Hasher {
	return NewBcryptHasher(4)
}

func testRepo(t *testing.T, db *sql.DB, role Role) *SQLiteAccountRepository {
	t.Helper()
	repo, err := NewAccountRepository(db, role)
	if err != nil {
		t.Fatalf("NewAccountRepository(%s) error = %v", role, err)
	}
	return repo
}

// recordingMailer captures reset links instead of sending them.
type recordingMailer struct {
	sent []sentReset
	err  error
}

type sentReset struct {
	to, name, link string
}

func (m *recordingMailer) SendPasswordReset(_ context.Context, to, name, link string) error {
	m.sent = append(m.sent, sentReset{to: to, name: name, link: link})
	return m.err
}

// testClock is a settable clock shared by a service and its codec.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type serviceFixture struct {
	db     *sql.DB
	repo   *SQLiteAccountRepository
	svc    *Service
	codec  *TokenCodec
	mailer *recordingMailer
	clock  *testClock
}

func newServiceFixture(t *testing.T, role Role) *serviceFixture {
	t.Helper()

	db := testDB(t)
	clock := &testClock{now: time.Now()}
	codec := NewTokenCodec(TokenConfig{
		AccessSecret:  testSecret,
		RefreshSecret: testSecret + "-refresh",
		Now:           clock.Now,
	})
	repo := testRepo(t, db, role)
	mailer := &recordingMailer{}

	svc, err := NewService(role, ServiceDeps{
		Accounts: repo,
		Codec:    codec,
		Hasher:   fastHasher(),
		Mailer:   mailer,
		Logger:   testLogger(),
		Hostname: "https://school.example.com",
		Now:      clock.Now,
	})
	if err != nil {
		t.Fatalf("NewService(%s) error = %v", role, err)
	}

	return &serviceFixture{db: db, repo: repo, svc: svc, codec: codec, mailer: mailer, clock: clock}
}

// signUpApproved creates an account and approves it when the role needs it.
func (f *serviceFixture) signUpApproved(t *testing.T, in SignUpInput) *Account {
	t.Helper()

	ctx := context.Background()
	account, err := f.svc.SignUp(ctx, in)
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if f.svc.Role().RequiresApproval() {
		if _, err := f.repo.SetApproved(ctx, account.ID, true); err != nil {
			t.Fatalf("SetApproved() error = %v", err)
		}
	}
	return account
}
