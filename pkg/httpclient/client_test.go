package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmacdonaldsmith/facetproxy-go/pkg/proxy"
)

func TestNewClient(t *testing.T) {
	t.Run("valid_config", func(t *testing.T) {
		client, err := NewClient(Config{
			ServerURL: "http://localhost:8080",
			Identity:  "address:0x01",
		})
		require.NoError(t, err)
		assert.Equal(t, 30*time.Second, client.config.Timeout)
		assert.False(t, client.IsAuthenticated())
	})

	t.Run("preset_token", func(t *testing.T) {
		client, err := NewClient(Config{ServerURL: "http://localhost:8080", Token: "abc"})
		require.NoError(t, err)
		assert.True(t, client.IsAuthenticated())
		assert.Equal(t, "abc", client.GetToken())
	})

	t.Run("missing_server_url", func(t *testing.T) {
		client, err := NewClient(Config{Identity: "address:0x01"})
		assert.Nil(t, client)
		assert.ErrorContains(t, err, "ServerURL is required")
	})

	t.Run("invalid_identity", func(t *testing.T) {
		_, err := NewClient(Config{ServerURL: "http://localhost:8080", Identity: "someone"})
		assert.ErrorIs(t, err, proxy.ErrInvalidIdentity)
	})

	t.Run("invalid_server_url", func(t *testing.T) {
		_, err := NewClient(Config{ServerURL: "://invalid-url"})
		assert.ErrorContains(t, err, "invalid ServerURL")
	})
}

func TestClient_Authenticate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/auth/login", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "address:0x01", req["identity"])

		_ = json.NewEncoder(w).Encode(AuthResponse{Token: "jwt-token", Identity: req["identity"]})
	}))
	defer server.Close()

	client, err := NewClient(Config{ServerURL: server.URL, Identity: "address:0x01"})
	require.NoError(t, err)

	require.NoError(t, client.Authenticate(context.Background()))
	assert.Equal(t, "jwt-token", client.GetToken())

	anonymous, err := NewClient(Config{ServerURL: server.URL})
	require.NoError(t, err)
	assert.Error(t, anonymous.Authenticate(context.Background()))
}

func TestClient_HeadersAndErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "address:0x01", r.Header.Get(identityHeader))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(ErrorResponse{
			Error:      "Forbidden",
			Message:    "transaction reverted: Auth",
			Code:       http.StatusForbidden,
			RevertKind: "authorization",
			Reason:     "Auth",
			TxID:       "tx-1",
		})
	}))
	defer server.Close()

	client, err := NewClient(Config{ServerURL: server.URL, Identity: "address:0x01", Token: "tok"})
	require.NoError(t, err)

	_, err = client.RevokeOwnership(context.Background(), proxy.BytesToAddress([]byte{1}))
	require.Error(t, err)
	assert.ErrorIs(t, err, proxy.ErrAuth)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "tx-1", apiErr.Response.TxID)
	assert.Contains(t, apiErr.Error(), "Auth")
}

func TestClient_NonJSONError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway exploded", http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := NewClient(Config{ServerURL: server.URL})
	require.NoError(t, err)

	_, err = client.Contracts(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Contains(t, apiErr.Response.Message, "gateway exploded")
	_, isRevert := apiErr.Revert()
	assert.False(t, isRevert)
}

func TestClient_TransactRequiresCaller(t *testing.T) {
	client, err := NewClient(Config{ServerURL: "http://localhost:1"})
	require.NoError(t, err)

	_, err = client.Call(context.Background(), CallRequest{To: "0x01", Signature: "double(u64)"})
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}
