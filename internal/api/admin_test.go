package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/nerrad567/schoolhub-core/internal/auth"
	"github.com/nerrad567/schoolhub-core/internal/school"
)

func TestAdminListAccounts(t *testing.T) {
	env := newTestEnv(t)
	admin := env.adminToken(t)
	env.createAccount(t, auth.RoleStudent, "student one", "one@school.example.com", true)
	pending := env.createAccount(t, auth.RoleStudent, "student two", "two@school.example.com", false)

	w := env.do(t, http.MethodGet, "/admin/students", admin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", w.Code, w.Body.String())
	}
	if all := decode[[]auth.Account](t, w); len(all) != 2 {
		t.Errorf("listed %d students, want 2", len(all))
	}

	w = env.do(t, http.MethodGet, "/admin/students?approved=false", admin, nil)
	waiting := decode[[]auth.Account](t, w)
	if len(waiting) != 1 || waiting[0].ID != pending.ID {
		t.Errorf("unapproved = %+v, want only %d", waiting, pending.ID)
	}

	w = env.do(t, http.MethodGet, "/admin/students?approved=maybe", admin, nil)
	expectError(t, w, http.StatusBadRequest, "")

	// Approving invalidates the cached listings.
	w = env.do(t, http.MethodPost, fmt.Sprintf("/admin/students/%d/approve", pending.ID), admin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("approve status = %d", w.Code)
	}
	w = env.do(t, http.MethodGet, "/admin/students?approved=false", admin, nil)
	if w.Header().Get("X-Cache") != "MISS" {
		t.Errorf("X-Cache = %q, want MISS", w.Header().Get("X-Cache"))
	}
	if waiting := decode[[]auth.Account](t, w); len(waiting) != 0 {
		t.Errorf("unapproved after approval = %+v, want none", waiting)
	}
}

func TestAdminApproval(t *testing.T) {
	env := newTestEnv(t)
	admin := env.adminToken(t)
	teacher := env.createAccount(t, auth.RoleTeacher, "teacher one", "t1@school.example.com", false)
	base := fmt.Sprintf("/admin/teachers/%d", teacher.ID)

	w := env.do(t, http.MethodPost, base+"/disapprove", admin, nil)
	expectError(t, w, http.StatusConflict, "")

	w = env.do(t, http.MethodPost, base+"/approve", admin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("approve status = %d", w.Code)
	}
	w = env.do(t, http.MethodPost, base+"/approve", admin, nil)
	expectError(t, w, http.StatusConflict, "")

	w = env.do(t, http.MethodPost, "/admin/teachers/999/approve", admin, nil)
	expectError(t, w, http.StatusNotFound, "")
}

func TestAdminGetAndDeleteAccount(t *testing.T) {
	env := newTestEnv(t)
	admin := env.adminToken(t)
	student := env.createAccount(t, auth.RoleStudent, "student one", "one@school.example.com", true)
	path := fmt.Sprintf("/admin/students/%d", student.ID)

	w := env.do(t, http.MethodGet, path, admin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d (body %s)", w.Code, w.Body.String())
	}
	got := decode[auth.Account](t, w)
	if got.Email != "one@school.example.com" {
		t.Errorf("Email = %q", got.Email)
	}

	w = env.do(t, http.MethodDelete, path, admin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d (body %s)", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodGet, path, admin, nil)
	expectError(t, w, http.StatusNotFound, "")
	w = env.do(t, http.MethodDelete, path, admin, nil)
	expectError(t, w, http.StatusNotFound, "")
}

func TestAdminSubjects(t *testing.T) {
	env := newTestEnv(t)
	admin := env.adminToken(t)
	first := env.createAccount(t, auth.RoleTeacher, "teacher one", "t1@school.example.com", true)
	second := env.createAccount(t, auth.RoleTeacher, "teacher two", "t2@school.example.com", true)

	w := env.do(t, http.MethodPost, "/admin/subjects", admin, map[string]any{"name": "History"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d (body %s)", w.Code, w.Body.String())
	}
	subject := decode[school.Subject](t, w)

	w = env.do(t, http.MethodPost, "/admin/subjects", admin, map[string]any{"name": "HISTORY"})
	expectError(t, w, http.StatusConflict, "")

	w = env.do(t, http.MethodPost, "/admin/subjects", admin, map[string]any{"name": "  "})
	expectError(t, w, http.StatusBadRequest, "Invalid name!")

	w = env.do(t, http.MethodGet, "/admin/subjects", admin, nil)
	if subjects := decode[[]school.Subject](t, w); len(subjects) != 1 {
		t.Fatalf("subjects = %+v, want 1", subjects)
	}

	assign := fmt.Sprintf("/admin/subjects/%d/teacher/", subject.ID)
	w = env.do(t, http.MethodPost, assign+fmt.Sprint(first.ID), admin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("assign status = %d (body %s)", w.Code, w.Body.String())
	}
	w = env.do(t, http.MethodPost, assign+fmt.Sprint(second.ID), admin, nil)
	expectError(t, w, http.StatusConflict, "")
	w = env.do(t, http.MethodPost, "/admin/subjects/999/teacher/"+fmt.Sprint(first.ID), admin, nil)
	expectError(t, w, http.StatusNotFound, "")

	w = env.do(t, http.MethodGet, fmt.Sprintf("/admin/subjects/%d", subject.ID), admin, nil)
	got := decode[school.Subject](t, w)
	if got.TeacherID == nil || *got.TeacherID != first.ID {
		t.Errorf("TeacherID = %v, want %d", got.TeacherID, first.ID)
	}

	w = env.do(t, http.MethodDelete, fmt.Sprintf("/admin/subjects/%d", subject.ID), admin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	w = env.do(t, http.MethodGet, fmt.Sprintf("/admin/subjects/%d", subject.ID), admin, nil)
	expectError(t, w, http.StatusNotFound, "")
}
