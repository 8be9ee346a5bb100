package monitor

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
)

var (
	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	requestStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true)

	savedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

type RequestCounter interface {
	Total() int64
}

type EventCounter interface {
	Count(ctx context.Context) (int64, error)
}

type Stopper interface {
	Stop() error
}

// Monitor polls the capture log and the event store and prints a line each
// time either grows. It only reads state.
type Monitor struct {
	requests RequestCounter
	events   EventCounter
	tunnel   Stopper
	interval time.Duration
	out      io.Writer
	log      zerolog.Logger

	lastRequests int64
	lastEvents   int64
}

func New(requests RequestCounter, events EventCounter, tunnel Stopper, interval time.Duration, out io.Writer, log zerolog.Logger) *Monitor {
	if interval <= 0 {
		interval = time.Second
	}
	return &Monitor{
		requests: requests,
		events:   events,
		tunnel:   tunnel,
		interval: interval,
		out:      out,
		log:      log.With().Str("component", "monitor").Logger(),
	}
}

// Run blocks until ctx is cancelled, then stops the tunnel before
// returning.
func (m *Monitor) Run(ctx context.Context) error {
	m.lastRequests = m.requests.Total()
	if n, err := m.events.Count(ctx); err == nil {
		m.lastEvents = n
	}
	fmt.Fprintf(m.out, "%s monitoring: %d requests captured, %d events stored\n",
		timeStyle.Render(time.Now().Format("15:04:05")), m.lastRequests, m.lastEvents)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info().Msg("monitor stopping")
			if m.tunnel != nil {
				if err := m.tunnel.Stop(); err != nil {
					m.log.Error().Err(err).Msg("tunnel stop failed")
					return err
				}
			}
			return nil
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick compares the current counters with the previously observed ones and
// prints the deltas.
func (m *Monitor) Tick(ctx context.Context) {
	now := timeStyle.Render(time.Now().Format("15:04:05"))

	requests := m.requests.Total()
	if d := requests - m.lastRequests; d > 0 {
		fmt.Fprintf(m.out, "%s %s (total %d)\n", now, requestStyle.Render(fmt.Sprintf("+%d request(s)", d)), requests)
	}
	m.lastRequests = requests

	events, err := m.events.Count(ctx)
	if err != nil {
		if ctx.Err() == nil {
			fmt.Fprintf(m.out, "%s %s\n", now, errorStyle.Render("event store unavailable: "+err.Error()))
			m.log.Warn().Err(err).Msg("could not count events")
		}
		return
	}
	if d := events - m.lastEvents; d > 0 {
		fmt.Fprintf(m.out, "%s %s (total %d)\n", now, savedStyle.Render(fmt.Sprintf("+%d event(s) saved", d)), events)
	}
	m.lastEvents = events
}
