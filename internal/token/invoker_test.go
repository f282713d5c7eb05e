package token

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuntimeInvokerPostsEmptyPayload(t *testing.T) {
	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		w.Write([]byte(`{"access_token":"t","expires_in":3600}`))
	}))
	defer srv.Close()

	inv := NewRuntimeInvoker(srv.URL, "kyc.sv1.TokenService", "token", "IssueToken")
	require.NoError(t, inv.Invoke(context.Background()))
	assert.Equal(t, "/kyc.sv1.TokenService/token/IssueToken", gotPath)
	assert.Equal(t, http.MethodPost, gotMethod)
}

func TestRuntimeInvokerNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	inv := NewRuntimeInvoker(srv.URL, "kyc.sv1.TokenService", "token", "IssueToken")
	err := inv.Invoke(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=500")
}

func TestRuntimeInvokerReportedHandlerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errorMessage":"upstream rejected credentials"}`))
	}))
	defer srv.Close()

	inv := NewRuntimeInvoker(srv.URL, "kyc.sv1.TokenService", "token", "IssueToken")
	err := inv.Invoke(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream rejected credentials")
}
