package app

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	healthcheck "github.com/vladislavdragonenkov/ims/internal/health"
)

func TestHTTPMux_Endpoints(t *testing.T) {
	handler := healthcheck.NewHandler("test")
	server := httptest.NewServer(newHTTPMux(handler))
	defer server.Close()

	tests := []struct {
		path string
		code int
		body string
	}{
		{"/metrics", http.StatusOK, ""},
		{"/healthz", http.StatusOK, ""},
		{"/livez", http.StatusOK, "ok"},
		{"/readyz", http.StatusOK, "ready"},
		{"/unknown", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(server.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.code, resp.StatusCode)
			if tt.body != "" {
				body, err := io.ReadAll(resp.Body)
				require.NoError(t, err)
				assert.Equal(t, tt.body, string(body))
			}
		})
	}
}

func TestHTTPMux_ReadyzReflectsCheckers(t *testing.T) {
	handler := healthcheck.NewHandler("test")
	handler.RegisterChecker("postgres", healthcheck.NewSimpleChecker("postgres", func(context.Context) error {
		return fmt.Errorf("connection refused")
	}))
	server := httptest.NewServer(newHTTPMux(handler))
	defer server.Close()

	resp, err := http.Get(server.URL + "/readyz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestStartMetricsServer_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv, err := startMetricsServer(ctx, "127.0.0.1:0", quietLogger(), healthcheck.NewHandler("test"))
	require.NoError(t, err)
	require.NotNil(t, srv)

	cancel()
	// Shutdown асинхронный; повторный вызов безопасен.
	time.Sleep(50 * time.Millisecond)
	shutdownHTTP(srv, quietLogger())
	shutdownHTTP(nil, quietLogger())
}

func TestStartMetricsServer_AddressInUse(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer lis.Close()

	_, err = startMetricsServer(context.Background(), lis.Addr().String(), quietLogger(), healthcheck.NewHandler("test"))
	require.Error(t, err)
}
