package refreshclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	kiterrors "github.com/sessionkit/sessionkit/internal/errors"
	"github.com/sessionkit/sessionkit/refreshclient"
)

const testRefreshToken = "refresh-token-1"

func newClient(baseURL string) *refreshclient.Client {
	return refreshclient.New(refreshclient.DefaultConfig(baseURL))
}

func TestRefreshSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/auth/refresh", r.URL.Path)
		require.Equal(t, "Bearer "+testRefreshToken, r.Header.Get("Authorization"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"NEW","token_type":"bearer","expires_in":900}`))
	}))
	defer srv.Close()

	accessToken, err := newClient(srv.URL).Refresh(context.Background(), testRefreshToken)
	require.NoError(t, err)
	require.Equal(t, "NEW", accessToken)
}

func TestRefreshTrimsTrailingSlash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/refresh", r.URL.Path)
		_, _ = w.Write([]byte(`{"access_token":"NEW"}`))
	}))
	defer srv.Close()

	_, err := newClient(srv.URL + "/").Refresh(context.Background(), testRefreshToken)
	require.NoError(t, err)
}

func TestRefreshNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).Refresh(context.Background(), testRefreshToken)
	require.ErrorIs(t, err, kiterrors.ErrRefreshFailed)
}

func TestRefreshMissingAccessToken(t *testing.T) {
	// A 2xx response without access_token is still a failure.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"token_type":"bearer"}`))
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).Refresh(context.Background(), testRefreshToken)
	require.ErrorIs(t, err, kiterrors.ErrMalformedResponse)
}

func TestRefreshUnparseableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).Refresh(context.Background(), testRefreshToken)
	require.ErrorIs(t, err, kiterrors.ErrMalformedResponse)
}

func TestRefreshNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := newClient(srv.URL).Refresh(context.Background(), testRefreshToken)
	require.Error(t, err)
}
