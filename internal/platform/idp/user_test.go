package idp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestServer serves the token endpoint plus whatever SCIM handler the
// test supplies, and asserts every SCIM call carries the issued token.
func newTestServer(t *testing.T, scim http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"test-token","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/scim2/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		scim(w, r)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, NewClient(server.URL, "client-id", "client-secret", []string{"internal_user_mgt_create"})
}

func TestNewClient(t *testing.T) {
	c := NewClient("https://idp.example.org/t/clinic/", "id", "secret", []string{"a", "b"})

	assert.Equal(t, "https://idp.example.org/t/clinic", c.BaseURL)
	assert.Equal(t, "https://idp.example.org/t/clinic/oauth2/token", c.OAuthConfig.TokenURL)
	assert.Equal(t, []string{"a", "b"}, c.OAuthConfig.Scopes)
	assert.NotNil(t, c.HTTP)
}

func TestInviteUser(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/scim2/Users", r.URL.Path)
			assert.Equal(t, scimContentType, r.Header.Get("Content-Type"))

			var body inviteRequestBody
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "new.nurse@clinic.test", body.UserName)
			assert.Equal(t, true, body.Ext["askPassword"])
			assert.Equal(t, "https://desk.test/auth/callback", body.Ext["redirectTo"])

			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":"acc-1","userName":"new.nurse@clinic.test","emails":[{"value":"new.nurse@clinic.test","primary":true}]}`))
		})

		acc, err := client.InviteUser(context.Background(), "new.nurse@clinic.test", "https://desk.test/auth/callback")
		require.NoError(t, err)
		assert.Equal(t, "acc-1", acc.ID)
		assert.Equal(t, "new.nurse@clinic.test", acc.Email)
	})

	t.Run("already exists converges", func(t *testing.T) {
		_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost:
				w.WriteHeader(http.StatusConflict)
				w.Write([]byte(`{"detail":"User already exists"}`))
			case http.MethodGet:
				assert.Contains(t, r.URL.Query().Get("filter"), `userName eq "dup@clinic.test"`)
				w.Write([]byte(`{"totalResults":1,"Resources":[{"id":"acc-9","userName":"DUP@clinic.test"}]}`))
			}
		})

		acc, err := client.InviteUser(context.Background(), "dup@clinic.test", "https://desk.test/auth/callback")
		require.NoError(t, err)
		assert.Equal(t, "acc-9", acc.ID)
	})

	t.Run("provider error surfaces message", func(t *testing.T) {
		_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"detail":"Invalid email address"}`))
		})

		_, err := client.InviteUser(context.Background(), "bad", "https://desk.test/auth/callback")
		require.Error(t, err)

		var se *StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, http.StatusBadRequest, se.StatusCode)
		assert.Contains(t, err.Error(), "Invalid email address")
	})

	t.Run("missing id", func(t *testing.T) {
		_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{}`))
		})

		_, err := client.InviteUser(context.Background(), "x@clinic.test", "")
		assert.Error(t, err)
	})
}

func TestGetUser(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch strings.TrimPrefix(r.URL.Path, "/scim2/Users/") {
		case "acc-1":
			w.Write([]byte(`{"id":"acc-1","userName":"doc@clinic.test"}`))
		case "gone":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	})

	acc, err := client.GetUser(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "doc@clinic.test", acc.Email)

	_, err = client.GetUser(context.Background(), "gone")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	_, err = client.GetUser(context.Background(), "boom")
	assert.ErrorContains(t, err, "status code: 500")
}

func TestDeleteUser(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"no content", http.StatusNoContent, false},
		{"already gone", http.StatusNotFound, false},
		{"forbidden", http.StatusForbidden, true},
		{"server error", http.StatusInternalServerError, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodDelete, r.Method)
				assert.Equal(t, "/scim2/Users/acc-1", r.URL.Path)
				w.WriteHeader(tt.status)
			})

			err := client.DeleteUser(context.Background(), "acc-1")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDisabled(t *testing.T) {
	var d Disabled
	_, err := d.InviteUser(context.Background(), "a@b.c", "")
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.ErrorIs(t, d.DeleteUser(context.Background(), "x"), ErrNotConfigured)
	_, err = d.GetUser(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
