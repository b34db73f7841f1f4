package rointe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient creates a client pointed entirely at the given base URL
// with a fixed clock.
func newTestClient(baseURL string, now time.Time) *Client {
	c := NewClient(Config{
		AuthBaseURL:    baseURL,
		RefreshBaseURL: baseURL,
		DataBaseURL:    baseURL,
		APIKey:         "test-key",
	})
	c.now = func() time.Time { return now }
	return c
}

func TestLogin_Success(t *testing.T) {
	var loginCalls int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/identitytoolkit/v3/relyingparty/verifyPassword", r.URL.Path)
		loginCalls++

		// Identity calls carry the app key as a query parameter.
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "user@example.com", r.PostForm.Get("email"))
		assert.Equal(t, "hunter2", r.PostForm.Get("password"))
		assert.Equal(t, "true", r.PostForm.Get("returnSecureToken"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"idToken":"tok-1","refreshToken":"ref-1","expiresIn":"3600"}`))
	}))
	defer server.Close()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	client := newTestClient(server.URL, now)

	err := client.Login(context.Background(), "user@example.com", "hunter2")
	require.NoError(t, err)

	assert.True(t, client.LoggedIn())
	assert.Equal(t, "tok-1", client.session.accessToken)
	assert.Equal(t, "ref-1", client.session.refreshToken)
	assert.Equal(t, now.Add(time.Hour), client.session.expiry)

	// A fresh session must pass the gate without another network call.
	require.NoError(t, client.ensureValid(context.Background()))
	assert.Equal(t, 1, loginCalls)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"INVALID_PASSWORD"}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, time.Now())
	client.session = session{accessToken: "stale", refreshToken: "stale"}

	err := client.Login(context.Background(), "user@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidAuth)

	// A failed login clears any previous session entirely.
	assert.False(t, client.LoggedIn())
	assert.Equal(t, session{}, client.session)
}

func TestLogin_UnexpectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(server.URL, time.Now())

	err := client.Login(context.Background(), "user@example.com", "hunter2")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.False(t, client.LoggedIn())
}

func TestLogin_MalformedResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "welcome!"},
		{"missing idToken", `{"refreshToken":"ref-1","expiresIn":"3600"}`},
		{"missing refreshToken", `{"idToken":"tok-1","expiresIn":"3600"}`},
		{"bad ttl", `{"idToken":"tok-1","refreshToken":"ref-1","expiresIn":"soon"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := newTestClient(server.URL, time.Now())

			err := client.Login(context.Background(), "user@example.com", "hunter2")
			assert.ErrorIs(t, err, ErrInvalidAuthResponse)
			assert.False(t, client.LoggedIn())
		})
	}
}

func TestLogin_CannotConnect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // nothing listening

	client := newTestClient(server.URL, time.Now())

	err := client.Login(context.Background(), "user@example.com", "hunter2")
	assert.ErrorIs(t, err, ErrCannotConnect)
	assert.False(t, client.LoggedIn())
}

func TestEnsureValid_ExpiryBoundary(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	var refreshCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++
		w.Write([]byte(`{"idToken":"tok-2","refresh_token":"ref-2","expiresIn":"3600"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, now)

	// Expiry equal to now still counts as valid: no refresh.
	client.session = session{accessToken: "tok-1", refreshToken: "ref-1", expiry: now}
	require.NoError(t, client.ensureValid(context.Background()))
	assert.Equal(t, 0, refreshCalls)

	// One instant past expiry triggers a refresh.
	client.session = session{accessToken: "tok-1", refreshToken: "ref-1", expiry: now.Add(-time.Nanosecond)}
	require.NoError(t, client.ensureValid(context.Background()))
	assert.Equal(t, 1, refreshCalls)
	assert.Equal(t, "tok-2", client.session.accessToken)
}

func TestEnsureValid_NoExpiryReported(t *testing.T) {
	client := newTestClient("http://localhost:1", time.Now())
	client.session = session{accessToken: "tok-1", refreshToken: "ref-1"}

	// An absent expiry never forces a refresh.
	assert.NoError(t, client.ensureValid(context.Background()))
}

func TestEnsureValid_NoSession(t *testing.T) {
	var refreshCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++
	}))
	defer server.Close()

	client := newTestClient(server.URL, time.Now())

	// Without a refresh token there is nothing to exchange: fail fast,
	// no network call.
	err := client.ensureValid(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Equal(t, 0, refreshCalls)
}

func TestRefresh_FailureKeepsSession(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"bad status", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		}},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"idToken":""}`))
		}},
		{"bad ttl", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"idToken":"tok-2","refresh_token":"ref-2","expiresIn":"never"}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := newTestClient(server.URL, now)
			expired := session{accessToken: "tok-1", refreshToken: "ref-1", expiry: now.Add(-time.Minute)}
			client.session = expired

			// Repeated failures keep the last issued tokens untouched.
			for i := 0; i < 3; i++ {
				err := client.ensureValid(context.Background())
				assert.ErrorIs(t, err, ErrNotAuthenticated)
				assert.Equal(t, expired, client.session)
			}
		})
	}
}

func TestRefresh_Success(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "ref-1", r.PostForm.Get("refresh_token"))

		w.Write([]byte(`{"idToken":"tok-2","refresh_token":"ref-2","expiresIn":"1800"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, now)
	client.session = session{accessToken: "tok-1", refreshToken: "ref-1", expiry: now.Add(-time.Minute)}

	require.NoError(t, client.ensureValid(context.Background()))

	// All three session fields are replaced together.
	assert.Equal(t, session{
		accessToken:  "tok-2",
		refreshToken: "ref-2",
		expiry:       now.Add(30 * time.Minute),
	}, client.session)
}
