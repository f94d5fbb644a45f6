package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/schoolhub-core/internal/audit"
	"github.com/nerrad567/schoolhub-core/internal/auth"
	"github.com/nerrad567/schoolhub-core/internal/infrastructure/cache"
	"github.com/nerrad567/schoolhub-core/internal/infrastructure/config"
	"github.com/nerrad567/schoolhub-core/internal/infrastructure/database"
	"github.com/nerrad567/schoolhub-core/internal/infrastructure/logging"
	"github.com/nerrad567/schoolhub-core/internal/metrics"
	"github.com/nerrad567/schoolhub-core/internal/ratelimit"
	"github.com/nerrad567/schoolhub-core/internal/school"
	"github.com/nerrad567/schoolhub-core/migrations"
)

const (
	testSecret        = "test-secret-key-at-least-32-characters-long"
	testPassword      = "Pw123456"
	testAdminUsername = "headmaster"
	testAdminEmail    = "head@school.example.com"
)

// testEnv is a fully wired server over a temporary SQLite database.
type testEnv struct {
	srv     *Server
	router  http.Handler
	db      *database.DB
	repos   map[auth.Role]*auth.SQLiteAccountRepository
	hasher  auth.Hasher
	cache   *cache.Memory
	mailer  *recordingMailer
	audit   *audit.SQLiteRepository
	metrics *metrics.Metrics
}

// recordingMailer captures reset links instead of sending them.
type recordingMailer struct {
	links []string
}

func (m *recordingMailer) SendPasswordReset(_ context.Context, _, _, link string) error {
	m.links = append(m.links, link)
	return nil
}

// newTestEnv builds the server. opts may adjust Deps before New is called.
func newTestEnv(t *testing.T, opts ...func(*Deps)) *testEnv {
	t.Helper()

	db, err := database.Open(t.Context(), database.Config{
		Path:        filepath.Join(t.TempDir(), "api-test.db"),
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

	log := logging.Discard()
	codec := auth.NewTokenCodec(auth.TokenConfig{
		AccessSecret:  testSecret,
		RefreshSecret: testSecret + "-refresh",
	})
	hasher := auth.NewBcryptHasher(4)
	mailer := &recordingMailer{}

	env := &testEnv{
		db:      db,
		repos:   make(map[auth.Role]*auth.SQLiteAccountRepository),
		hasher:  hasher,
		cache:   cache.NewMemory(),
		mailer:  mailer,
		audit:   audit.NewSQLiteRepository(db.DB),
		metrics: metrics.New(),
	}

	services := make(map[auth.Role]*auth.Service)
	repos := make([]auth.AccountRepository, 0, len(auth.Roles))
	for _, role := range auth.Roles {
		repo, err := auth.NewAccountRepository(db.DB, role)
		if err != nil {
			t.Fatalf("NewAccountRepository(%s) error = %v", role, err)
		}
		svc, err := auth.NewService(role, auth.ServiceDeps{
			Accounts: repo,
			Codec:    codec,
			Hasher:   hasher,
			Mailer:   mailer,
			Logger:   log.Logger,
			Hostname: "https://school.example.com",
		})
		if err != nil {
			t.Fatalf("NewService(%s) error = %v", role, err)
		}
		env.repos[role] = repo
		services[role] = svc
		repos = append(repos, repo)
	}

	deps := Deps{
		Config: config.APIConfig{Host: "127.0.0.1", Port: 0},
		WS:     config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10},
		Logger: log,
		Accounts: services,
		Guard:    auth.NewGuard(codec, repos...),
		School: school.NewService(school.Deps{
			Repo:     school.NewRepository(db.DB),
			Students: env.repos[auth.RoleStudent],
			Teachers: env.repos[auth.RoleTeacher],
			Logger:   log.Logger,
		}),
		Audit:        env.audit,
		Cache:        env.cache,
		CacheTTL:     time.Minute,
		LoginLimiter: ratelimit.NewMemory(100, time.Minute),
		Metrics:      env.metrics,
		Hub:          NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, log),
		DB:           db.DB,
		Health:       map[string]HealthChecker{"database": db},
		Version:      "test",
	}
	for _, opt := range opts {
		opt(&deps)
	}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	env.srv = srv
	env.router = srv.Handler()
	return env
}

// do sends a request through the router. body is JSON-encoded when non-nil.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// createAccount inserts an account directly, bypassing sign-up.
func (e *testEnv) createAccount(t *testing.T, role auth.Role, name, email string, approved bool) *auth.Account {
	t.Helper()

	hash, err := e.hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	a := &auth.Account{Email: email, PasswordHash: hash, Approved: approved}
	if role == auth.RoleAdmin {
		a.Username = name
	} else {
		a.Name = name
	}
	if err := e.repos[role].Create(context.Background(), a); err != nil {
		t.Fatalf("creating %s: %v", role, err)
	}
	return a
}

// login logs in through the API and fails the test unless it succeeds.
func (e *testEnv) login(t *testing.T, role auth.Role, login string) *auth.TokenPair {
	t.Helper()

	body := map[string]string{"email": login, "password": testPassword}
	if role == auth.RoleAdmin {
		body = map[string]string{"username": login, "password": testPassword}
	}
	w := e.do(t, http.MethodPost, "/"+string(role)+"/login", "", body)
	if w.Code != http.StatusOK {
		t.Fatalf("login %s %s: status = %d, body = %s", role, login, w.Code, w.Body.String())
	}
	pair := decode[auth.TokenPair](t, w)
	return &pair
}

// adminToken creates the test admin and returns its access token.
func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	e.createAccount(t, auth.RoleAdmin, testAdminUsername, testAdminEmail, true)
	return e.login(t, auth.RoleAdmin, testAdminUsername).AccessToken
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding response %q: %v", w.Body.String(), err)
	}
	return v
}

// expectError checks the status and message of an error response.
func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, status, w.Body.String())
	}
	resp := decode[Error](t, w)
	if message != "" && resp.Message != message {
		t.Errorf("message = %q, want %q", resp.Message, message)
	}
}
