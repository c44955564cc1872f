package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testHash(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

// echoUser answers with the user the auth middleware resolved.
var echoUser = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(requestUser(r)))
})

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)

	am := NewAuthManager("admin", hash)
	defer am.Stop()
	assert.True(t, am.Enabled())
	assert.True(t, am.checkPassword("s3cret"))
	assert.False(t, am.checkPassword("wrong"))
}

func TestAuthManager_Disabled(t *testing.T) {
	am := NewAuthManager("admin", "")
	defer am.Stop()
	assert.False(t, am.Enabled())

	rec := httptest.NewRecorder()
	am.Middleware(am.RequireAdmin(echoUser)).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/actions/clusters", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, anonymousUser, rec.Body.String())
}

func TestAuthManager_ValidCredentials(t *testing.T) {
	am := NewAuthManager("admin", testHash(t, "pw"))
	defer am.Stop()

	req := httptest.NewRequest(http.MethodPost, "/api/actions/clusters", nil)
	req.SetBasicAuth("admin", "pw")
	rec := httptest.NewRecorder()
	am.Middleware(am.RequireAdmin(echoUser)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin", rec.Body.String())
}

func TestAuthManager_RequireAdmin(t *testing.T) {
	am := NewAuthManager("admin", testHash(t, "pw"))
	defer am.Stop()
	handler := am.Middleware(am.RequireAdmin(echoUser))

	tests := []struct {
		name string
		user string
		pass string
		auth bool
	}{
		{name: "no credentials"},
		{name: "wrong password", user: "admin", pass: "nope", auth: true},
		{name: "wrong user", user: "root", pass: "pw", auth: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/actions/clusters", nil)
			if tt.auth {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, authRealm, rec.Header().Get("WWW-Authenticate"))
		})
	}
}

func TestAuthManager_StripsSpoofedUsername(t *testing.T) {
	am := NewAuthManager("admin", testHash(t, "pw"))
	defer am.Stop()

	req := httptest.NewRequest(http.MethodPost, "/api/actions/clusters", nil)
	req.Header.Set(headerUsername, "admin")
	rec := httptest.NewRecorder()
	am.Middleware(am.RequireAdmin(echoUser)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthManager_BruteForceLimited(t *testing.T) {
	am := NewAuthManager("admin", testHash(t, "pw"))
	defer am.Stop()
	handler := am.Middleware(am.RequireAdmin(echoUser))

	attempt := func(pass string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/actions/clusters", nil)
		req.RemoteAddr = "198.51.100.4:4000"
		req.SetBasicAuth("admin", pass)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusUnauthorized, attempt("bad"), "attempt %d", i+1)
	}
	assert.Equal(t, http.StatusTooManyRequests, attempt("bad"))
}

func TestRequestUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, anonymousUser, requestUser(req))
	req.Header.Set(headerUsername, "alice")
	assert.Equal(t, "alice", requestUser(req))
}
