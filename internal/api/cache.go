package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/nerrad567/schoolhub-core/internal/auth"
	"github.com/nerrad567/schoolhub-core/internal/infrastructure/cache"
)

// Cache keys. Patterns ending in * are invalidated with cache.Match.
func profileKey(role auth.Role, id int64) string {
	return fmt.Sprintf("%s/%d/me", role, id)
}

func gradesKey(studentID int64) string {
	return fmt.Sprintf("student/%d/grades", studentID)
}

func teacherSubjectsKey(teacherID int64) string {
	return fmt.Sprintf("teacher/%d/subjects", teacherID)
}

// adminAccountsPattern covers the admin listing and detail keys of a role.
func adminAccountsPattern(role auth.Role) string {
	return fmt.Sprintf("admin/%ss*", role)
}

const adminSubjectsPattern = "admin/subjects*"

// serveCached writes the JSON cached under key, or runs load, caches its
// result and writes it. Cache failures are logged and bypassed.
func (s *Server) serveCached(w http.ResponseWriter, r *http.Request, key string, load func(ctx context.Context) (any, error)) {
	ctx := r.Context()

	data, err := s.cache.Get(ctx, key)
	if err == nil {
		w.Header().Set("X-Cache", "HIT")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		//nolint:errcheck // best-effort write
		w.Write(data)
		return
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("cache read failed", "key", key, "error", err)
	}

	v, err := load(ctx)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	data, err = json.Marshal(v)
	if err != nil {
		s.writeServiceError(w, r, fmt.Errorf("encoding %s: %w", key, err))
		return
	}
	data = append(data, '\n')
	if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
		s.logger.Warn("cache write failed", "key", key, "error", err)
	}

	w.Header().Set("X-Cache", "MISS")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // best-effort write
	w.Write(data)
}

// invalidate drops cached entries matching patterns. Failures are logged:
// stale reads expire with the TTL.
func (s *Server) invalidate(ctx context.Context, patterns ...string) {
	if err := s.cache.Invalidate(ctx, patterns...); err != nil {
		s.logger.Warn("cache invalidation failed", "patterns", patterns, "error", err)
	}
}
