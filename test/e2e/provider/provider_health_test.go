package provider_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestHealthEndpoint verifies /health answers without an API key.
func TestHealthEndpoint(t *testing.T) {
	baseURL := setupProvider(t, nil)

	health, err := newClient(baseURL).Health(t.Context())
	require.NoError(t, err)
	require.Equal(t, "devprovider", health.Name)
	require.NotEmpty(t, health.Version)
}

// TestSwaggerUI verifies the API documentation is served.
func TestSwaggerUI(t *testing.T) {
	baseURL := setupProvider(t, nil)

	resp, err := http.Get(baseURL + "/swagger/doc.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

// TestAPIKeyRequired verifies requests without the apikey header are refused.
func TestAPIKeyRequired(t *testing.T) {
	baseURL := setupProvider(t, nil)

	resp, err := http.Post(baseURL+"/token?grant_type=password", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
