package testutil

import (
	"bufio"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"
)

// serverSource is the server main, relative to the module root.
const serverSource = "test/cmd/nats-server/main.go"

var (
	binaryCache     string
	binaryCacheLock sync.Mutex
)

// ExternalNATS is a JetStream server running in a child process.
type ExternalNATS struct {
	// URL is the client URL of the server.
	URL string
	// Conn is a client connected to URL.
	Conn *nats.Conn

	cmd    *exec.Cmd
	cancel context.CancelFunc
}

// Stop closes the client and terminates the server process.
func (e *ExternalNATS) Stop() {
	e.Conn.Close()
	e.cancel()
	_ = e.cmd.Wait()
}

// findModuleRoot walks up from the working directory to the directory holding go.mod.
func findModuleRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("go.mod not found")
		}
		dir = parent
	}
}

// serverBinary returns the compiled server, building it on first use.
//
// The cache path carries a hash of the source, so an edited server is rebuilt.
func serverBinary() (string, error) {
	binaryCacheLock.Lock()
	defer binaryCacheLock.Unlock()

	if binaryCache != "" {
		if _, err := os.Stat(binaryCache); err == nil {
			return binaryCache, nil
		}
	}

	root, err := findModuleRoot()
	if err != nil {
		return "", fmt.Errorf("failed to find module root: %w", err)
	}

	data, err := os.ReadFile(filepath.Join(root, serverSource))
	if err != nil {
		return "", fmt.Errorf("failed to read server source: %w", err)
	}
	sum := sha256.Sum256(data)
	cachePath := filepath.Join(os.TempDir(), fmt.Sprintf("busbench-nats-server-%x", sum[:8]))

	if _, err := os.Stat(cachePath); err == nil {
		binaryCache = cachePath
		return cachePath, nil
	}

	//nolint:noctx // one-off build of a test helper
	cmd := exec.Command("go", "build", "-o", cachePath, "./"+filepath.Dir(serverSource))
	cmd.Dir = root
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("compilation failed: %w\nOutput: %s", err, output)
	}
	binaryCache = cachePath

	return cachePath, nil
}

// StartExternalNATS starts a JetStream server in a separate process and
// connects to it. The server is stopped via t.Cleanup().
//
// Parameters:
//   - t: Testing context for assertions and cleanup
//
// Returns:
//   - *ExternalNATS: Server URL and a connected client
//
// Example:
//
//	srv := testutil.StartExternalNATS(t)
//	tr, _ := natsjs.New(srv.Conn, "orders")
func StartExternalNATS(t *testing.T) *ExternalNATS {
	t.Helper()

	binary, err := serverBinary()
	require.NoError(t, err, "Failed to get NATS server binary")

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, binary)
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	stderr, err := cmd.StderrPipe()
	require.NoError(t, err)
	require.NoError(t, cmd.Start())

	url, err := awaitReady(stdout, 10*time.Second)
	if err != nil {
		stderrData, _ := io.ReadAll(stderr)
		cancel()
		_ = cmd.Wait()
		require.Fail(t, "NATS server did not start", "%v, stderr: %s", err, stderrData)
	}

	nc, err := nats.Connect(url, nats.MaxReconnects(-1), nats.ReconnectWait(100*time.Millisecond))
	require.NoError(t, err, "Failed to connect to external NATS at %s", url)

	js, err := jetstream.New(nc)
	require.NoError(t, err)
	_, err = js.AccountInfo(t.Context())
	require.NoError(t, err, "JetStream not responding")

	srv := &ExternalNATS{URL: url, Conn: nc, cmd: cmd, cancel: cancel}
	t.Cleanup(srv.Stop)

	return srv
}

// awaitReady scans the server output for its URL and ready marker.
func awaitReady(stdout io.Reader, timeout time.Duration) (string, error) {
	type result struct {
		url string
		ok  bool
	}
	resultCh := make(chan result, 1)

	go func() {
		var url string
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			line := scanner.Text()
			if v, ok := strings.CutPrefix(line, "NATS_URL="); ok {
				url = v
			}
			if line == "NATS_READY=true" {
				resultCh <- result{url: url, ok: true}
				return
			}
		}
		resultCh <- result{}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-resultCh:
		if !r.ok || r.url == "" {
			return "", errors.New("server exited before reporting its URL")
		}

		return r.url, nil
	case <-timer.C:
		return "", errors.New("server startup timeout")
	}
}

// CleanupBinaryCache removes the cached server binary, forcing a rebuild.
func CleanupBinaryCache() error {
	binaryCacheLock.Lock()
	defer binaryCacheLock.Unlock()

	if binaryCache != "" {
		if err := os.Remove(binaryCache); err != nil && !os.IsNotExist(err) {
			return err
		}
		binaryCache = ""
	}

	return nil
}
