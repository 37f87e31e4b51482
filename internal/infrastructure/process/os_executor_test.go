package process

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plughost.dev/cli/internal/core/domain/process"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecutor_ReadsOutputAfterExit(t *testing.T) {
	requireShell(t)

	cmd, err := process.NewCommand("sh", []string{"-c", "printf '#one\\n#two\\npartial'; exit 3"}, t.TempDir())
	require.NoError(t, err)

	proc, err := NewExecutor().Execute(context.Background(), cmd)
	require.NoError(t, err)
	assert.Greater(t, proc.PID(), 0)

	out, err := io.ReadAll(proc.Stdout())
	require.NoError(t, err)
	assert.Equal(t, "#one\n#two\npartial", string(out))

	assert.Error(t, proc.Wait())
	assert.Equal(t, 3, proc.ExitCode())
	assert.False(t, proc.IsRunning())
}

func TestExecutor_WorkingDirectory(t *testing.T) {
	requireShell(t)

	dir := t.TempDir()
	cmd, err := process.NewCommand("sh", []string{"-c", "pwd"}, dir)
	require.NoError(t, err)

	proc, err := NewExecutor().Execute(context.Background(), cmd)
	require.NoError(t, err)

	line, err := bufio.NewReader(proc.Stdout()).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(dir), filepath.Base(strings.TrimSpace(line)))
	require.NoError(t, proc.Wait())
}

func TestExecutor_StdinAndTerminate(t *testing.T) {
	requireShell(t)

	cmd, err := process.NewCommand("sh", []string{"-c", "read line; echo \"got $line\"; sleep 30"}, "")
	require.NoError(t, err)

	proc, err := NewExecutor().Execute(context.Background(), cmd)
	require.NoError(t, err)

	_, err = io.WriteString(proc.Stdin(), "ping\n")
	require.NoError(t, err)

	line, err := bufio.NewReader(proc.Stdout()).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "got ping\n", line)

	require.NoError(t, proc.Signal(process.SignalKill))

	done := make(chan struct{})
	go func() {
		proc.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit after kill")
	}
	assert.False(t, proc.IsRunning())
}

func TestExecutor_MissingProgram(t *testing.T) {
	cmd, err := process.NewCommand("/definitely/not/a/program", nil, "")
	require.NoError(t, err)

	_, err = NewExecutor().Execute(context.Background(), cmd)
	assert.Error(t, err)
}

func TestExecutor_CancelledContext(t *testing.T) {
	cmd, err := process.NewCommand("sh", nil, "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = NewExecutor().Execute(ctx, cmd)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConvertSignal(t *testing.T) {
	assert.NotNil(t, ConvertSignal(process.SignalTerminate))
	assert.NotEqual(t, ConvertSignal(process.SignalKill), ConvertSignal(process.SignalTerminate))
}
