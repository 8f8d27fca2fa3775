package rbac_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tripdesk/tripdesk/internal/rbac"
	"github.com/tripdesk/tripdesk/internal/shared"
)

func serveGated(t *testing.T, mw func(http.Handler) http.Handler, principal *shared.Principal) int {
	t.Helper()
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if principal != nil {
		req = req.WithContext(shared.ContextWithPrincipal(req.Context(), principal))
	}
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res.Code
}

func grantedMiddleware(codes ...string) rbac.Middleware {
	repo := newStubRepo()
	for i, code := range codes {
		repo.addPermission(int64(i+1), code)
	}
	role := repo.addRole("Granted", "granted")
	ids := make([]int64, 0, len(codes))
	for i := range codes {
		ids = append(ids, int64(i+1))
	}
	repo.grants[role.ID] = ids
	repo.users[7] = []int64{role.ID}
	return rbac.Middleware{Service: newService(repo)}
}

func TestRequireAnyNoPrincipal(t *testing.T) {
	mw := grantedMiddleware("hotels.view")
	assert.Equal(t, http.StatusForbidden, serveGated(t, mw.RequireAny("hotels.view"), nil))
}

func TestRequireAnyGranted(t *testing.T) {
	mw := grantedMiddleware("hotels.view")
	code := serveGated(t, mw.RequireAny("visa.view", "hotels.view"), &shared.Principal{ID: 7})
	assert.Equal(t, http.StatusNoContent, code)
}

func TestRequireAnyDenied(t *testing.T) {
	mw := grantedMiddleware("hotels.view")
	code := serveGated(t, mw.RequireAny("visa.view"), &shared.Principal{ID: 7})
	assert.Equal(t, http.StatusForbidden, code)
}

func TestRequireAnySuperuserBypass(t *testing.T) {
	mw := grantedMiddleware()
	code := serveGated(t, mw.RequireAny("rbac.manage_roles"), &shared.Principal{ID: 1, IsSuperuser: true})
	assert.Equal(t, http.StatusNoContent, code)
}

func TestRequireAnyComparesCodesExactly(t *testing.T) {
	mw := grantedMiddleware("hotels.view")
	code := serveGated(t, mw.RequireAny("Hotels.View"), &shared.Principal{ID: 7})
	assert.Equal(t, http.StatusForbidden, code, "permission codes are exact identifiers, not case-folded")
}

func TestRequireAllNeedsEveryCode(t *testing.T) {
	mw := grantedMiddleware("hotels.view", "visa.view")
	assert.Equal(t, http.StatusNoContent,
		serveGated(t, mw.RequireAll("hotels.view", "visa.view"), &shared.Principal{ID: 7}))

	partial := grantedMiddleware("hotels.view")
	assert.Equal(t, http.StatusForbidden,
		serveGated(t, partial.RequireAll("hotels.view", "visa.view"), &shared.Principal{ID: 7}))
}

func TestRequireAnyNoCodesIsOpen(t *testing.T) {
	mw := grantedMiddleware()
	assert.Equal(t, http.StatusNoContent, serveGated(t, mw.RequireAny(), nil))
}
