package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smarthub-edu/smarthub/internal/auth"
)

func serve(t *testing.T, mw func(http.Handler) http.Handler, subject, role, target string) int {
	t.Helper()
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest("GET", target, nil)
	ctx := auth.WithSubject(req.Context(), subject)
	ctx = auth.WithRole(ctx, role)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w.Code
}

func TestRequire(t *testing.T) {
	if got := serve(t, Require("quiz:take"), "u1", "student", "/x"); got != http.StatusOK {
		t.Errorf("student quiz:take = %d; want 200", got)
	}
	if got := serve(t, Require("quiz:create"), "u1", "student", "/x"); got != http.StatusForbidden {
		t.Errorf("student quiz:create = %d; want 403", got)
	}
	if got := serve(t, Require("quiz:take"), "u1", "", "/x"); got != http.StatusForbidden {
		t.Errorf("missing role = %d; want 403", got)
	}
}

func TestRequireAny(t *testing.T) {
	mw := RequireAny("attempt:view-all", "attempt:view-own")
	if got := serve(t, mw, "u1", "student", "/x"); got != http.StatusOK {
		t.Errorf("student = %d; want 200", got)
	}
	if got := serve(t, mw, "u1", "ghost", "/x"); got != http.StatusForbidden {
		t.Errorf("unknown role = %d; want 403", got)
	}
}

func TestRequireOwnerOr(t *testing.T) {
	ownQuery := func(r *http.Request) bool {
		u := r.URL.Query().Get("userId")
		return u == "" || u == auth.SubjectFromContext(r.Context())
	}
	mw := RequireOwnerOr("quiz:stats-any", ownQuery)

	// owner passes without the permission
	if got := serve(t, mw, "u1", "student", "/stats?userId=u1"); got != http.StatusOK {
		t.Errorf("own stats = %d; want 200", got)
	}
	if got := serve(t, mw, "u1", "student", "/stats"); got != http.StatusOK {
		t.Errorf("implicit own stats = %d; want 200", got)
	}
	// a student poking at someone else's resource is rejected
	if got := serve(t, mw, "u1", "student", "/stats?userId=u2"); got != http.StatusForbidden {
		t.Errorf("foreign stats as student = %d; want 403", got)
	}
	// the permission opens every resource
	if got := serve(t, mw, "t1", "teacher", "/stats?userId=u2"); got != http.StatusOK {
		t.Errorf("foreign stats as teacher = %d; want 200", got)
	}
}
