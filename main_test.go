package main

import (
	"HealthConnect/server"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_FullCoverage(t *testing.T) {
	isTest = true
	defer func() { isTest = false }()
	t.Setenv("APP_ENV", "test")
	t.Setenv("CONFIG_FILE", "configs/app.yaml")
	t.Setenv("MONGO_ENABLED", "false")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("SMTP_ENABLED", "false")
	t.Setenv("LOG_DEVELOPMENT", "true")

	var capturedOpts server.Options

	// intercept options
	orig := startServer
	startServer = func(opts server.Options) error {
		capturedOpts = opts
		return nil
	}
	defer func() { startServer = orig }()

	require.NoError(t, run())
	assert.False(t, capturedOpts.JobsEnabled)
	assert.False(t, capturedOpts.MigrationEnabled)

	app, err := server.Bootstrap(context.Background(), capturedOpts)
	require.NoError(t, err)
	defer app.Close(context.Background())

	require.NoError(t, capturedOpts.JobsHandler(app))
	require.NoError(t, capturedOpts.MigrationHandler(app))

	r := app.Engine(capturedOpts.WebServerPreHandler)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	r.ServeHTTP(w, req)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBootstrapWithoutBackends(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("MONGO_ENABLED", "false")
	t.Setenv("REDIS_ENABLED", "false")

	opts, err := server.GetDefaultOptions()
	require.NoError(t, err)
	opts.MongoEnabled = false
	opts.CacheEnabled = false
	app, err := server.Bootstrap(context.Background(), opts)
	require.NoError(t, err)
	defer app.Close(context.Background())
	assert.Len(t, app.MemoryLimiters, 2)
	assert.Nil(t, app.Mongo)
}
