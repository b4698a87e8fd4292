package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunUsage(t *testing.T) {
	stderr := new(bytes.Buffer)
	require.Equal(t, 2, run(context.Background(), nil, new(bytes.Buffer), stderr))
	require.Contains(t, stderr.String(), "usage:")
}

func TestRunWithConfig(t *testing.T) {
	t.Setenv("WORKSPACE_ID", "ws")
	t.Setenv("SYNC_ENABLED", "false")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("REDIS_ADDR", "")

	stderr := new(bytes.Buffer)
	require.Equal(t, 2, run(context.Background(), []string{"bogus"}, new(bytes.Buffer), stderr))

	stderr.Reset()
	require.Equal(t, 1, run(context.Background(), []string{"migrate"}, new(bytes.Buffer), stderr))
	require.Contains(t, stderr.String(), "has no schema")

	stderr.Reset()
	require.Equal(t, 1, run(context.Background(), []string{"seed"}, new(bytes.Buffer), stderr))
	require.Contains(t, stderr.String(), "seed: store driver memory")

	stderr.Reset()
	require.Equal(t, 1, run(context.Background(), []string{"jobs", "stats"}, new(bytes.Buffer), stderr))
	require.Contains(t, stderr.String(), "REDIS_ADDR")
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	t.Setenv("WORKSPACE_ID", "ws")
	t.Setenv("SYNC_ENABLED", "true")
	t.Setenv("REMOTE_URL", "")

	stderr := new(bytes.Buffer)
	require.Equal(t, 1, run(context.Background(), []string{"jobs", "stats"}, new(bytes.Buffer), stderr))
	require.Contains(t, stderr.String(), "remote url")
}
