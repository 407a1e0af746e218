package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-modular/app"
)

// unreachableDatabase enables the database module against a port nothing
// listens on, so any connection attempt fails.
func unreachableDatabase(t *testing.T) {
	t.Setenv("DATABASE_ENABLED", "true")
	t.Setenv("DATABASE_HOST", "127.0.0.1")
	t.Setenv("DATABASE_PORT", "1")
	t.Setenv("LOGS_DIR", filepath.Join(t.TempDir(), "logs"))
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("ADMIN_TOKEN", "")
}

func TestCompose_WithoutDatabaseSkipsModule(t *testing.T) {
	unreachableDatabase(t)

	a, err := compose(context.Background(), false)

	require.NoError(t, err)
	assert.NotContains(t, a.Modules().Tokens(), app.DatabaseModuleToken)
	assert.NotEmpty(t, a.Routes())
}

func TestRoutesCommand_DoesNotConnect(t *testing.T) {
	unreachableDatabase(t)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"routes"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.ExecuteContext(context.Background()))

	assert.Contains(t, out.String(), "GET /health")
	assert.Contains(t, out.String(), "GET /admin/users")
}
