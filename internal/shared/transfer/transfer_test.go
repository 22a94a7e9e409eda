package transfer

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nemanja-m/jobgrid/internal/shared/protocol"
)

const testTimeout = 2 * time.Second

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestUploadRoundTrip(t *testing.T) {
	srcDir := t.TempDir()
	script := writeFile(t, srcDir, "script.py", "print('hello')")
	data1 := writeFile(t, srcDir, "a.txt", "first data file")
	data2 := writeFile(t, srcDir, "b.txt", "second data file")

	destDir := t.TempDir()
	destScript := filepath.Join(destDir, "script.py")
	destData := filepath.Join(destDir, "data")
	require.NoError(t, os.MkdirAll(destData, 0o755))

	left, right := net.Pipe()
	defer left.Close()
	defer right.Close()

	sendErr := make(chan error, 1)
	go func() {
		sendErr <- SendUpload(left, script, []string{data1, data2}, testTimeout)
	}()

	require.NoError(t, ReceiveUpload(right, destScript, destData, testTimeout))
	require.NoError(t, <-sendErr)

	gotScript, err := os.ReadFile(destScript)
	require.NoError(t, err)
	require.Equal(t, "print('hello')", string(gotScript))

	gotData, err := os.ReadFile(filepath.Join(destData, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "first data file", string(gotData))

	gotData, err = os.ReadFile(filepath.Join(destData, "b.txt"))
	require.NoError(t, err)
	require.Equal(t, "second data file", string(gotData))
}

func TestUploadWithNoDataFiles(t *testing.T) {
	srcDir := t.TempDir()
	script := writeFile(t, srcDir, "script.py", "pass")

	destDir := t.TempDir()
	destScript := filepath.Join(destDir, "script.py")

	left, right := net.Pipe()
	defer left.Close()
	defer right.Close()

	sendErr := make(chan error, 1)
	go func() {
		sendErr <- SendUpload(left, script, nil, testTimeout)
	}()

	require.NoError(t, ReceiveUpload(right, destScript, destDir, testTimeout))
	require.NoError(t, <-sendErr)
	require.FileExists(t, destScript)
}

func TestDownloadRoundTrip(t *testing.T) {
	srcDir := t.TempDir()
	out1 := writeFile(t, srcDir, "part-0.txt", "alpha")
	out2 := writeFile(t, srcDir, "part-1.txt", "beta")
	destDir := t.TempDir()

	left, right := net.Pipe()
	defer left.Close()
	defer right.Close()

	sendErr := make(chan error, 1)
	go func() {
		sendErr <- SendFiles(left, []string{out1, out2}, testTimeout)
	}()

	received, err := ReceiveFiles(right, destDir, testTimeout)
	require.NoError(t, err)
	require.NoError(t, <-sendErr)
	require.Len(t, received, 2)

	got, err := os.ReadFile(filepath.Join(destDir, "part-0.txt"))
	require.NoError(t, err)
	require.Equal(t, "alpha", string(got))

	got, err = os.ReadFile(filepath.Join(destDir, "part-1.txt"))
	require.NoError(t, err)
	require.Equal(t, "beta", string(got))
}

func TestReceiveUploadRejectsUnsafeNames(t *testing.T) {
	destDir := t.TempDir()
	destScript := filepath.Join(destDir, "script.py")

	left, right := net.Pipe()
	defer left.Close()
	defer right.Close()

	go func() {
		left.SetDeadline(time.Now().Add(testTimeout))
		protocol.WritePayload(left, &nopReader{}, 0)
		protocol.WriteCount(left, 1)
		protocol.WriteName(left, "../evil.txt")
		protocol.WritePayload(left, &nopReader{}, 0)
	}()

	err := ReceiveUpload(right, destScript, destDir, testTimeout)
	require.Error(t, err)
	require.NoFileExists(t, filepath.Join(filepath.Dir(destDir), "evil.txt"))
}

func TestReceiveTimesOutOnStalledPeer(t *testing.T) {
	destDir := t.TempDir()

	left, right := net.Pipe()
	defer left.Close()
	defer right.Close()

	// The peer never writes anything; the deadline must fire.
	err := ReceiveUpload(right, filepath.Join(destDir, "script.py"), destDir, 50*time.Millisecond)
	require.Error(t, err)
}

func TestListenAcceptRoundTrip(t *testing.T) {
	ln, port, err := Listen()
	require.NoError(t, err)
	defer ln.Close()
	require.NotZero(t, port)

	go func() {
		conn, dialErr := net.Dial("tcp", ln.Addr().String())
		if dialErr == nil {
			conn.Close()
		}
	}()

	conn, err := Accept(ln, testTimeout)
	require.NoError(t, err)
	conn.Close()
}

func TestAcceptTimesOut(t *testing.T) {
	ln, _, err := Listen()
	require.NoError(t, err)
	defer ln.Close()

	_, err = Accept(ln, 50*time.Millisecond)
	require.Error(t, err)
}

type nopReader struct{}

func (*nopReader) Read(p []byte) (int, error) { return 0, nil }
