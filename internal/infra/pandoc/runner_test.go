package pandoc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// stubConverter writes a shell script acting as the converter binary.
func stubConverter(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "fake-pandoc")
	script := "#!/bin/sh\n" + body + "\n"
	require.NoError(t, os.WriteFile(p, []byte(script), 0o755))
	return p
}

func TestRun_Success(t *testing.T) {
	// $1 = input path, $3 = output path (after -o).
	bin := stubConverter(t, `cat "$1" > "$3"`)
	cli := NewCLI(bin, 5*time.Second)

	dir := t.TempDir()
	in := filepath.Join(dir, "doc.md")
	out := filepath.Join(dir, "doc.docx")
	require.NoError(t, os.WriteFile(in, []byte("# Hi"), 0o600))

	res, err := cli.Run(context.Background(), in, out)
	require.NoError(t, err)
	require.Equal(t, 0, res.ExitCode)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, "# Hi", string(data))
}

func TestRun_NonZeroExitCapturesStderr(t *testing.T) {
	bin := stubConverter(t, `echo "unknown input format" >&2; exit 64`)
	cli := NewCLI(bin, 5*time.Second)

	res, err := cli.Run(context.Background(), "in.md", "out.docx")
	require.NoError(t, err)
	require.Equal(t, 64, res.ExitCode)
	require.Contains(t, res.Stderr, "unknown input format")
}

func TestRun_TimeoutKillsProcess(t *testing.T) {
	bin := stubConverter(t, `sleep 10`)
	cli := NewCLI(bin, 100*time.Millisecond)

	start := time.Now()
	_, err := cli.Run(context.Background(), "in.md", "out.docx")
	require.ErrorIs(t, err, ErrTimeout)
	require.Less(t, time.Since(start), 5*time.Second, "process was not killed promptly")
}

func TestRun_SpawnFailure(t *testing.T) {
	cli := NewCLI("/definitely/missing/pandoc", time.Second)

	_, err := cli.Run(context.Background(), "in.md", "out.docx")
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrTimeout))
}

func TestAvailable(t *testing.T) {
	require.True(t, NewCLI("sh", time.Second).Available())
	require.False(t, NewCLI("no-such-binary-md2docx", time.Second).Available())
}
