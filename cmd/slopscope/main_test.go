package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRun_MissingConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	opts := Opts{
		Config: "non-existent-config.yml",
	}

	err := run(ctx, opts)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to load config")
}

func TestRun_InvalidConfig(t *testing.T) {
	tmpFile, err := os.CreateTemp(t.TempDir(), "invalid-config-*.yml")
	require.NoError(t, err)

	_, err = tmpFile.WriteString("invalid: yaml: content: [")
	require.NoError(t, err)
	tmpFile.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	opts := Opts{
		Config: tmpFile.Name(),
	}

	err = run(ctx, opts)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to load config")
}

func TestRun_ServerStartStop(t *testing.T) {
	tmpDir := t.TempDir()

	cfgYml := `
server:
  listen: "127.0.0.1:0"
  timeout: 5s
database:
  dsn: "file:` + filepath.ToSlash(filepath.Join(tmpDir, "test.db")) + `?cache=shared&mode=rwc"
classifier:
  endpoint: "http://127.0.0.1:1/v1"
  api_key: "test-key"
`
	cfgPath := filepath.Join(tmpDir, "config.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgYml), 0o600))

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()

	opts := Opts{Config: cfgPath}

	// the server runs until the context expires, then shuts down cleanly
	err := run(ctx, opts)
	require.NoError(t, err)
}
