package tunnel

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/wahook/pkg/config"
)

var (
	ErrBinaryNotFound = errors.New("tunnel binary not found")
	ErrProcessExited  = errors.New("tunnel process exited before publishing a url")
	ErrStartTimeout   = errors.New("timeout waiting for tunnel url")
	ErrAlreadyRunning = errors.New("tunnel already running")
)

const (
	stopGrace = 5 * time.Second
	logLines  = 50
)

// StartError carries the binary name and the operator guidance for a
// failed start.
type StartError struct {
	Binary string
	Err    error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("start %s: %v (%s)", e.Binary, e.Err, e.Guidance())
}

func (e *StartError) Unwrap() error {
	return e.Err
}

func (e *StartError) Guidance() string {
	switch {
	case errors.Is(e.Err, ErrBinaryNotFound):
		return "install cloudflared or set tunnel.binary / TUNNEL_BINARY to its path"
	case errors.Is(e.Err, ErrStartTimeout):
		return "no public url was printed in time; check network access to the tunnel provider or raise tunnel.start_timeout"
	case errors.Is(e.Err, ErrProcessExited):
		return "the tunnel client exited on its own; see its output in the log"
	default:
		return "see the log for details"
	}
}

// Status is a point-in-time view of the supervisor.
type Status struct {
	Running   bool      `json:"running"`
	PID       int       `json:"pid,omitempty"`
	PublicURL string    `json:"public_url,omitempty"`
	LocalPort int       `json:"local_port,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
	ExitErr   string    `json:"exit_error,omitempty"`
}

type Supervisor interface {
	Start(ctx context.Context, localPort int) (string, error)
	Stop() error
	PublicURL() string
	Status() Status
	Output() []string
}

type supervisor struct {
	binary  string
	marker  string
	timeout time.Duration
	log     zerolog.Logger

	mu        sync.Mutex
	cmd       *exec.Cmd
	exited    chan struct{}
	exitErr   error
	url       string
	port      int
	startedAt time.Time
	lines     []string
}

func NewSupervisor(tc config.Tunnel, log zerolog.Logger) Supervisor {
	marker := tc.Marker
	if marker == "" {
		marker = DefaultMarker
	}
	timeout := tc.StartTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &supervisor{
		binary:  tc.Binary,
		marker:  marker,
		timeout: timeout,
		log:     log.With().Str("component", "tunnel").Logger(),
	}
}

// Start launches `<binary> tunnel --url http://localhost:<port>` and returns
// the public url as soon as it appears in the merged output. The child keeps
// running after Start returns; its output is drained until it exits.
func (s *supervisor) Start(ctx context.Context, localPort int) (string, error) {
	s.mu.Lock()
	if s.cmd != nil && !s.isExited() {
		s.mu.Unlock()
		return "", &StartError{Binary: s.binary, Err: ErrAlreadyRunning}
	}

	path, err := exec.LookPath(s.binary)
	if err != nil {
		s.mu.Unlock()
		return "", &StartError{Binary: s.binary, Err: fmt.Errorf("%w: %v", ErrBinaryNotFound, err)}
	}

	target := "http://localhost:" + strconv.Itoa(localPort)
	cmd := exec.Command(path, "tunnel", "--url", target)
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw
	cmd.WaitDelay = time.Second

	if err := cmd.Start(); err != nil {
		s.mu.Unlock()
		pw.Close()
		return "", &StartError{Binary: s.binary, Err: err}
	}

	exited := make(chan struct{})
	s.cmd = cmd
	s.exited = exited
	s.exitErr = nil
	s.url = ""
	s.port = localPort
	s.startedAt = time.Now()
	s.lines = nil
	s.mu.Unlock()

	s.log.Info().Str("binary", path).Int("pid", cmd.Process.Pid).Str("target", target).Msg("tunnel process started")

	urlCh := make(chan string, 1)
	readerDone := make(chan struct{})
	go s.readOutput(pr, urlCh, readerDone)
	go func() {
		err := cmd.Wait()
		s.mu.Lock()
		s.exitErr = err
		s.mu.Unlock()
		pw.Close()
		close(exited)
		s.log.Info().AnErr("exit", err).Msg("tunnel process exited")
	}()

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case url := <-urlCh:
		return s.found(url), nil
	case <-exited:
		<-readerDone
		select {
		case url := <-urlCh:
			return s.found(url), nil
		default:
		}
		return "", &StartError{Binary: s.binary, Err: ErrProcessExited}
	case <-timer.C:
		s.Stop()
		return "", &StartError{Binary: s.binary, Err: ErrStartTimeout}
	case <-ctx.Done():
		s.Stop()
		return "", &StartError{Binary: s.binary, Err: ctx.Err()}
	}
}

func (s *supervisor) found(url string) string {
	s.mu.Lock()
	s.url = url
	s.mu.Unlock()
	s.log.Info().Str("url", url).Msg("tunnel url acquired")
	return url
}

// readOutput drains the child's merged output for its whole lifetime and
// reports the first public url it sees.
func (s *supervisor) readOutput(r *io.PipeReader, urlCh chan<- string, done chan<- struct{}) {
	defer close(done)
	defer r.Close()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	sent := false
	for sc.Scan() {
		line := sc.Text()
		s.record(line)
		s.log.Debug().Str("line", line).Msg("cloudflared")
		if sent {
			continue
		}
		if url, ok := ExtractPublicURL(line, s.marker); ok {
			urlCh <- url
			sent = true
		}
	}
}

func (s *supervisor) record(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, line)
	if over := len(s.lines) - logLines; over > 0 {
		s.lines = s.lines[over:]
	}
}

// isExited must be called with s.mu held.
func (s *supervisor) isExited() bool {
	if s.exited == nil {
		return true
	}
	select {
	case <-s.exited:
		return true
	default:
		return false
	}
}

// Stop terminates the child with SIGTERM, escalating to SIGKILL after a
// grace period. Stopping an already stopped supervisor is a no-op.
func (s *supervisor) Stop() error {
	s.mu.Lock()
	cmd, exited := s.cmd, s.exited
	s.url = ""
	if cmd == nil || s.isExited() {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.log.Info().Int("pid", cmd.Process.Pid).Msg("stopping tunnel")
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, syscall.ESRCH) || errors.Is(err, os.ErrProcessDone) {
			<-exited
			return nil
		}
		s.log.Warn().Err(err).Msg("sigterm failed, killing tunnel")
		cmd.Process.Kill()
		<-exited
		return nil
	}

	select {
	case <-exited:
	case <-time.After(stopGrace):
		s.log.Warn().Dur("grace", stopGrace).Msg("tunnel ignored sigterm, killing")
		if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("kill tunnel: %w", err)
		}
		<-exited
	}
	return nil
}

func (s *supervisor) PublicURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

func (s *supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		PublicURL: s.url,
		LocalPort: s.port,
		StartedAt: s.startedAt,
	}
	if s.cmd != nil && !s.isExited() {
		st.Running = true
		st.PID = s.cmd.Process.Pid
	}
	if s.exitErr != nil {
		st.ExitErr = s.exitErr.Error()
	}
	return st
}

// Output returns the most recent lines printed by the child.
func (s *supervisor) Output() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}
