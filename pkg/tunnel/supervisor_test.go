package tunnel

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wahook/pkg/config"
	"github.com/wahook/pkg/logger"
)

// fakeBinary writes an executable shell script standing in for cloudflared.
// Scripts that must stay alive use exec so signals reach the sleeping
// process directly.
func fakeBinary(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cloudflared")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func newTestSupervisor(binary string, timeout time.Duration) Supervisor {
	return NewSupervisor(config.Tunnel{Binary: binary, StartTimeout: timeout}, logger.Nop())
}

func TestSupervisor_StartReturnsPublicURL(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	bin := fakeBinary(t, `echo "$@" > `+argsFile+`
echo "INF Requesting new quick Tunnel on trycloudflare.com..."
echo "INF +--------------------------------------------+" 1>&2
echo "INF |  https://calm-lake-a1.trycloudflare.com    |" 1>&2
exec sleep 30`)

	s := newTestSupervisor(bin, 5*time.Second)
	t.Cleanup(func() { _ = s.Stop() })

	url, err := s.Start(context.Background(), 8080)
	require.NoError(t, err)
	assert.Equal(t, "https://calm-lake-a1.trycloudflare.com", url)
	assert.Equal(t, url, s.PublicURL())

	st := s.Status()
	assert.True(t, st.Running)
	assert.Positive(t, st.PID)
	assert.Equal(t, 8080, st.LocalPort)

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Equal(t, "tunnel --url http://localhost:8080", strings.TrimSpace(string(args)))

	require.Eventually(t, func() bool { return len(s.Output()) >= 3 }, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, s.Output()[0], "Requesting new quick Tunnel")

	require.NoError(t, s.Stop())
	assert.False(t, s.Status().Running)
	assert.Empty(t, s.PublicURL())
}

func TestSupervisor_URLPrintedJustBeforeExit(t *testing.T) {
	bin := fakeBinary(t, `echo "https://fast-exit.trycloudflare.com"`)
	s := newTestSupervisor(bin, 5*time.Second)

	url, err := s.Start(context.Background(), 9000)
	require.NoError(t, err)
	assert.Equal(t, "https://fast-exit.trycloudflare.com", url)
}

func TestSupervisor_ProcessExitsWithoutURL(t *testing.T) {
	bin := fakeBinary(t, `echo "ERR failed to request quick Tunnel"
exit 1`)
	s := newTestSupervisor(bin, 5*time.Second)

	_, err := s.Start(context.Background(), 8080)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProcessExited)

	var se *StartError
	require.ErrorAs(t, err, &se)
	assert.Contains(t, se.Guidance(), "exited")

	st := s.Status()
	assert.False(t, st.Running)
	assert.NotEmpty(t, st.ExitErr)
	assert.Equal(t, []string{"ERR failed to request quick Tunnel"}, s.Output())
}

func TestSupervisor_TimeoutStopsProcess(t *testing.T) {
	bin := fakeBinary(t, `echo "INF starting"
exec sleep 30`)
	s := newTestSupervisor(bin, 300*time.Millisecond)

	start := time.Now()
	_, err := s.Start(context.Background(), 8080)
	assert.ErrorIs(t, err, ErrStartTimeout)
	assert.Less(t, time.Since(start), stopGrace)
	assert.False(t, s.Status().Running)
}

func TestSupervisor_BinaryNotFound(t *testing.T) {
	s := newTestSupervisor(filepath.Join(t.TempDir(), "missing-cloudflared"), time.Second)

	_, err := s.Start(context.Background(), 8080)
	assert.ErrorIs(t, err, ErrBinaryNotFound)

	var se *StartError
	require.ErrorAs(t, err, &se)
	assert.Contains(t, se.Guidance(), "install cloudflared")
	assert.False(t, s.Status().Running)
}

func TestSupervisor_ContextCancelled(t *testing.T) {
	bin := fakeBinary(t, `exec sleep 30`)
	s := newTestSupervisor(bin, 10*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	_, err := s.Start(ctx, 8080)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, s.Status().Running)
}

func TestSupervisor_AlreadyRunning(t *testing.T) {
	bin := fakeBinary(t, `echo "https://twice.trycloudflare.com"
exec sleep 30`)
	s := newTestSupervisor(bin, 5*time.Second)
	t.Cleanup(func() { _ = s.Stop() })

	_, err := s.Start(context.Background(), 8080)
	require.NoError(t, err)

	_, err = s.Start(context.Background(), 8080)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestSupervisor_StopIsIdempotent(t *testing.T) {
	bin := fakeBinary(t, `echo "https://stop.trycloudflare.com"
exec sleep 30`)
	s := newTestSupervisor(bin, 5*time.Second)

	assert.NoError(t, s.Stop())

	_, err := s.Start(context.Background(), 8080)
	require.NoError(t, err)
	assert.NoError(t, s.Stop())
	assert.NoError(t, s.Stop())

	// a stopped supervisor can start again
	url, err := s.Start(context.Background(), 8081)
	require.NoError(t, err)
	assert.Equal(t, "https://stop.trycloudflare.com", url)
	assert.NoError(t, s.Stop())
}
