package server

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/eardogger/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := &config.Config{}
	c.LoadDefaults()
	c.ListenAddr = "127.0.0.1:0"
	c.DatabaseFile = filepath.Join(t.TempDir(), "eardogger.db")
	c.ReaderPoolSize = 2
	c.LogLevel = "error"
	return c
}

func TestApp_RunServesAndStops(t *testing.T) {
	app, err := NewApp(t.Context(), testConfig(t))
	require.NoError(t, err)
	app.pruneDelay = time.Millisecond
	require.NoError(t, app.Listen())

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	resp, err := http.Get("http://" + app.Addr().String() + "/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewApp_RejectsBadConfig(t *testing.T) {
	c := testConfig(t)
	c.Mode = "carrier-pigeon"
	_, err := NewApp(t.Context(), c)
	assert.Error(t, err)
}

func TestNewApp_ValidateMigrationsOnFreshDB(t *testing.T) {
	c := testConfig(t)
	c.ValidateMigrations = true
	_, err := NewApp(t.Context(), c)
	assert.Error(t, err)
}
