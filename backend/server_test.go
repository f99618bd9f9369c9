package backend_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jrsteele09/go-token-trust/auth"
	"github.com/jrsteele09/go-token-trust/backend"
	"github.com/jrsteele09/go-token-trust/identity"
	identityrepofake "github.com/jrsteele09/go-token-trust/identity/repofake"
	"github.com/jrsteele09/go-token-trust/internal/config"
	"github.com/jrsteele09/go-token-trust/server"
	"github.com/jrsteele09/go-token-trust/token"
	"github.com/jrsteele09/go-token-trust/token/keys"
	"github.com/jrsteele09/go-token-trust/token/refresh"
	refreshrepofake "github.com/jrsteele09/go-token-trust/token/refresh/repofake"
	fakeuserrepo "github.com/jrsteele09/go-token-trust/users/repofake"
	"github.com/jrsteele09/go-token-trust/verifier"
)

var (
	sharedKeyPair     *keys.KeyPair
	sharedKeyPairOnce sync.Once
)

func testKeyPair() *keys.KeyPair {
	sharedKeyPairOnce.Do(func() {
		kp, err := keys.GenerateRSAKeyPair("", 2048)
		if err != nil {
			panic("failed to generate shared key pair: " + err.Error())
		}
		sharedKeyPair = kp
	})
	return sharedKeyPair
}

type testFixture struct {
	issuer     *token.Issuer
	identities *identityrepofake.FakeIdentityRepo
	consumer   *backend.Server
}

// setupTestFixture runs a real issuer behind httptest and points the
// consumer's key fetcher at it.
func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	c := config.New(config.WithDefault("ENV", "TEST"))

	refreshRepo := refreshrepofake.NewFakeRefreshTokenRepo()
	issuer := token.NewIssuer(keys.NewProvider(keys.WithKeyPair(testKeyPair())))
	service, err := auth.NewService(auth.Repos{Users: fakeuserrepo.NewFakeUserRepo(), RefreshTokens: refreshRepo},
		issuer, refresh.NewManager(refreshRepo, c), auth.WithPasswordCost(bcrypt.MinCost))
	require.NoError(t, err)
	issuerServer, err := server.New(c, service)
	require.NoError(t, err)

	ts := httptest.NewServer(issuerServer)
	t.Cleanup(ts.Close)

	identities := identityrepofake.NewFakeIdentityRepo()
	cache := verifier.NewKeyCache(verifier.NewHTTPKeyFetcher(ts.URL, 2*time.Second))
	consumer, err := backend.New(c, verifier.NewValidator(cache), identity.NewReconciler(identities))
	require.NoError(t, err)

	return &testFixture{issuer: issuer, identities: identities, consumer: consumer}
}

func (f *testFixture) me(t *testing.T, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, backend.RouteMe, nil)
	if bearer != "" {
		r.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	f.consumer.ServeHTTP(w, r)
	return w
}

func (f *testFixture) token(t *testing.T, sub token.Subject) string {
	t.Helper()
	raw, err := f.issuer.IssueAccessToken(sub, 0)
	require.NoError(t, err)
	return raw
}

func decodeIdentity(t *testing.T, w *httptest.ResponseRecorder) identity.Identity {
	t.Helper()
	var id identity.Identity
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &id))
	return id
}

func TestMe_FirstContactThenClaimChange(t *testing.T) {
	f := setupTestFixture(t)

	w := f.me(t, f.token(t, token.Subject{ID: 123, Email: "a@x.com"}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	first := decodeIdentity(t, w)
	require.Equal(t, int64(123), first.AuthSubjectID)
	require.Equal(t, "a@x.com", first.Email)
	require.False(t, first.Admin)
	require.True(t, first.Active)
	require.NotContains(t, w.Body.String(), "password")

	w = f.me(t, f.token(t, token.Subject{ID: 123, Email: "a@x.com", Admin: true}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	second := decodeIdentity(t, w)
	require.Equal(t, first.ID, second.ID)
	require.True(t, second.Admin)

	require.Equal(t, 1, f.identities.Count())
	inserts, updates := f.identities.Writes()
	require.Equal(t, 1, inserts)
	require.Equal(t, 1, updates)
}

func TestMe_Unauthorized(t *testing.T) {
	f := setupTestFixture(t)

	other, err := keys.GenerateRSAKeyPair("", 2048)
	require.NoError(t, err)
	forged, err := token.NewIssuer(keys.NewProvider(keys.WithKeyPair(other))).
		IssueAccessToken(token.Subject{ID: 1, Email: "a@x.com"}, 0)
	require.NoError(t, err)

	tests := []struct {
		name   string
		bearer string
	}{
		{name: "missing header", bearer: ""},
		{name: "garbage", bearer: "not-a-jwt"},
		{name: "wrong key", bearer: forged},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.me(t, tt.bearer)
			require.Equal(t, http.StatusUnauthorized, w.Code)
			require.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
			require.Contains(t, w.Body.String(), server.MsgCouldNotValidate)
		})
	}
	require.Zero(t, f.identities.Count())
}

func TestMe_IssuerUnreachable(t *testing.T) {
	c := config.New(config.WithDefault("ENV", "TEST"))
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	identities := identityrepofake.NewFakeIdentityRepo()
	cache := verifier.NewKeyCache(verifier.NewHTTPKeyFetcher(url, time.Second))
	consumer, err := backend.New(c, verifier.NewValidator(cache), identity.NewReconciler(identities))
	require.NoError(t, err)

	raw, err := token.NewIssuer(keys.NewProvider(keys.WithKeyPair(testKeyPair()))).
		IssueAccessToken(token.Subject{ID: 1, Email: "a@x.com"}, 0)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, backend.RouteMe, nil)
	r.Header.Set("Authorization", "Bearer "+raw)
	w := httptest.NewRecorder()
	consumer.ServeHTTP(w, r)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMe_InactiveIdentity(t *testing.T) {
	f := setupTestFixture(t)
	f.identities.Put(identity.Identity{AuthSubjectID: 123, Email: "a@x.com", Active: false})

	w := f.me(t, f.token(t, token.Subject{ID: 123, Email: "a@x.com"}))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), backend.MsgInactiveUser)
}

func TestMe_StoreFailure(t *testing.T) {
	f := setupTestFixture(t)
	f.identities.InsertErr = errors.New("disk full")

	w := f.me(t, f.token(t, token.Subject{ID: 123, Email: "a@x.com"}))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, w.Body.String(), server.MsgInternalError)
}

func TestRoutes(t *testing.T) {
	f := setupTestFixture(t)
	require.Contains(t, f.consumer.Routes(), "GET "+backend.RouteMe)
	require.Contains(t, f.consumer.Routes(), "GET "+backend.RouteHealth)

	w := httptest.NewRecorder()
	f.consumer.ServeHTTP(w, httptest.NewRequest(http.MethodGet, backend.RouteHealth, nil))
	require.Equal(t, http.StatusOK, w.Code)

	r := httptest.NewRequest(http.MethodOptions, backend.RouteMe, nil)
	r.Header.Set("Origin", "http://localhost:5173")
	w = httptest.NewRecorder()
	f.consumer.ServeHTTP(w, r)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}
