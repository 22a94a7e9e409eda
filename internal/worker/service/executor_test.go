package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestProcessExecutorSuccess(t *testing.T) {
	workDir := t.TempDir()
	outputDir := filepath.Join(workDir, "output")
	require.NoError(t, os.MkdirAll(outputDir, 0o755))

	script := filepath.Join(workDir, "script.sh")
	require.NoError(t, os.WriteFile(script, []byte(`printf done > "$2/out.txt"`), 0o644))

	executor := NewProcessExecutor("sh", &mockLogger{})
	elapsed, err := executor.Execute(context.Background(), workDir, script, workDir, outputDir)
	require.NoError(t, err)
	require.Greater(t, elapsed, time.Duration(0))

	got, err := os.ReadFile(filepath.Join(outputDir, "out.txt"))
	require.NoError(t, err)
	require.Equal(t, "done", string(got))
}

func TestProcessExecutorFailure(t *testing.T) {
	workDir := t.TempDir()
	script := filepath.Join(workDir, "script.sh")
	require.NoError(t, os.WriteFile(script, []byte("exit 3"), 0o644))

	executor := NewProcessExecutor("sh", &mockLogger{})
	_, err := executor.Execute(context.Background(), workDir, script, workDir, workDir)
	require.Error(t, err)
}

func TestProcessExecutorCancellation(t *testing.T) {
	workDir := t.TempDir()
	script := filepath.Join(workDir, "script.sh")
	require.NoError(t, os.WriteFile(script, []byte("sleep 10"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	executor := NewProcessExecutor("sh", &mockLogger{})
	start := time.Now()
	_, err := executor.Execute(ctx, workDir, script, workDir, workDir)
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, time.Since(start), 5*time.Second)
}
