package authclient_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mentorlink/mentorlink-client/internal/authclient"
)

func TestLogin_LocalValidationSkipsNetwork(t *testing.T) {
	var hits atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	client := authclient.New(srv.URL)

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"malformed email", "not-an-email", "password123"},
		{"short password", "sam@example.com", "short"},
		{"empty email", "", "password123"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := client.Login(context.Background(), tc.email, tc.password)

			if !errors.Is(err, authclient.ErrValidation) {
				t.Fatalf("got %v, want ValidationError", err)
			}
		})
	}

	if n := hits.Load(); n != 0 {
		t.Fatalf("expected no network calls, got %d", n)
	}
}

func TestLogin_ValidationErrorNamesJSONFields(t *testing.T) {
	client := authclient.New("http://127.0.0.1:0")

	_, err := client.Login(context.Background(), "nope", "short")

	var e *authclient.Error

	if !errors.As(err, &e) {
		t.Fatalf("expected *authclient.Error, got %v", err)
	}

	found := map[string]string{}
	for _, f := range e.Fields {
		found[f.Field] = f.Rule
	}

	if found["email"] != "email" {
		t.Fatalf("expected email field error, got %+v", e.Fields)
	}
	if found["password"] != "min" {
		t.Fatalf("expected password min error, got %+v", e.Fields)
	}
}

func TestLogin_UnwrapsEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/login" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"user":{"id":7,"email":"sam@example.com","name":"Sam","role":"MENTOR"},"accessToken":"at-1","refreshToken":"rt-1","expiresIn":900}}`))
	}))
	defer srv.Close()

	client := authclient.New(srv.URL)

	result, err := client.Login(context.Background(), "sam@example.com", "password123")

	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if result.User.ID != 7 || result.User.Role != "MENTOR" {
		t.Fatalf("unexpected user: %+v", result.User)
	}
	if result.TokenPair.AccessToken != "at-1" || result.TokenPair.RefreshToken != "rt-1" {
		t.Fatalf("unexpected token pair: %+v", result.TokenPair)
	}
	if result.TokenPair.ExpiresIn != 900 {
		t.Fatalf("expected expiresIn 900, got %d", result.TokenPair.ExpiresIn)
	}
}

func TestLogin_BarePayloadWithoutEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"user":{"id":3,"name":"Ada","role":"ADMIN"},"accessToken":"at-2"}`))
	}))
	defer srv.Close()

	client := authclient.New(srv.URL)

	result, err := client.Login(context.Background(), "ada@example.com", "password123")

	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if result.User.ID != 3 || result.TokenPair.AccessToken != "at-2" {
		t.Fatalf("unexpected result: %+v", result)
	}

	// absent refresh token is legal: the session just cannot be
	// silently renewed
	if result.TokenPair.RefreshToken != "" {
		t.Fatalf("expected empty refresh token, got %q", result.TokenPair.RefreshToken)
	}
}

func TestLogin_ServerRejectionIsAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"code":"invalid_credentials","message":"Email or password is incorrect."}}`))
	}))
	defer srv.Close()

	client := authclient.New(srv.URL)

	_, err := client.Login(context.Background(), "sam@example.com", "password123")

	if !errors.Is(err, authclient.ErrAuth) {
		t.Fatalf("got %v, want AuthError", err)
	}

	var e *authclient.Error
	errors.As(err, &e)

	if e.Code != "invalid_credentials" {
		t.Fatalf("expected server code to survive, got %q", e.Code)
	}
}

func TestLogin_ShapeMismatchIsProtocolError(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing access token", `{"user":{"id":1,"name":"Sam","role":"LEARNER"}}`},
		{"unknown role", `{"user":{"id":1,"name":"Sam","role":"ROOT"},"accessToken":"at"}`},
		{"missing user", `{"accessToken":"at"}`},
		{"not json", `<!doctype html>`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			client := authclient.New(srv.URL)

			_, err := client.Login(context.Background(), "sam@example.com", "password123")

			if !errors.Is(err, authclient.ErrProtocol) {
				t.Fatalf("got %v, want ProtocolError", err)
			}
			if errors.Is(err, authclient.ErrAuth) {
				t.Fatalf("a protocol error must never be coerced into an auth error")
			}
		})
	}
}

func TestRefresh_SendsTokenAsQueryParameter(t *testing.T) {
	var gotQuery atomic.Value

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query().Get("refreshToken"))

		body, _ := io.ReadAll(r.Body)
		if len(body) != 0 {
			t.Errorf("refresh token must not travel in the body, got %q", body)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"accessToken":"at-new","refreshToken":"rt-new"}}`))
	}))
	defer srv.Close()

	client := authclient.New(srv.URL)

	pair, err := client.Refresh(context.Background(), "rt-old/with?chars")

	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	if got := gotQuery.Load(); got != "rt-old/with?chars" {
		t.Fatalf("got query token %q, want original", got)
	}

	if pair.AccessToken != "at-new" || pair.RefreshToken != "rt-new" {
		t.Fatalf("unexpected pair: %+v", pair)
	}
}

func TestRefresh_ExpiredTokenIsAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"code":"invalid_refresh","message":"Invalid refresh token"}}`))
	}))
	defer srv.Close()

	client := authclient.New(srv.URL)

	_, err := client.Refresh(context.Background(), "rt-spent")

	if !errors.Is(err, authclient.ErrAuth) {
		t.Fatalf("got %v, want AuthError", err)
	}
}

func TestExchange_TimeoutSurfacesAsTimeoutKind(t *testing.T) {
	release := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	client := authclient.New(srv.URL, authclient.WithTimeout(50*time.Millisecond))

	_, err := client.Login(context.Background(), "sam@example.com", "password123")

	if !errors.Is(err, authclient.ErrTimeout) {
		t.Fatalf("got %v, want Timeout", err)
	}

	// a timeout still counts as an auth failure for fail-safe handling
	if !authclient.IsAuthFailure(err) {
		t.Fatalf("timeouts must be treated as auth failures")
	}
}

func TestLogout_FailureIsReportedNotFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer at-1" {
			t.Errorf("expected bearer header, got %q", got)
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := authclient.New(srv.URL)

	err := client.Logout(context.Background(), "at-1")

	if !errors.Is(err, authclient.ErrAuth) {
		t.Fatalf("got %v, want AuthError for the caller to swallow", err)
	}
}

func TestRegister_ReturnsValidatedUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/register" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":12,"email":"new@example.com","name":"New User","role":"LEARNER","status":"ACTIVE"}`))
	}))
	defer srv.Close()

	client := authclient.New(srv.URL)

	u, err := client.Register(context.Background(), "new@example.com", "New User", "password123")

	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if u.ID != 12 || u.Role != "LEARNER" {
		t.Fatalf("unexpected user: %+v", u)
	}
}
