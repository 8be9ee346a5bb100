package status

import (
	"context"
	"strings"
	"time"

	"github.com/wahook/pkg/capture"
	"github.com/wahook/pkg/domains/events"
	"github.com/wahook/pkg/domains/whatsapp"
	"github.com/wahook/pkg/dtos"
	"github.com/wahook/pkg/tunnel"
)

type Service interface {
	Snapshot(ctx context.Context, path string) dtos.StatusDTO
}

type service struct {
	tunnel      tunnel.Supervisor
	requests    *capture.Log
	events      events.Service
	whatsapp    whatsapp.Service
	port        int
	webhookPath string
	startedAt   time.Time
}

// NewService assembles the process status. tunnel and whatsapp may be nil
// when those collaborators are not running.
func NewService(t tunnel.Supervisor, requests *capture.Log, ev events.Service, wa whatsapp.Service, port int, webhookPath string) Service {
	return &service{
		tunnel:      t,
		requests:    requests,
		events:      ev,
		whatsapp:    wa,
		port:        port,
		webhookPath: webhookPath,
		startedAt:   time.Now(),
	}
}

// Snapshot never fails; a store error is reported inside the envelope.
func (s *service) Snapshot(ctx context.Context, path string) dtos.StatusDTO {
	out := dtos.StatusDTO{
		Status:        "running",
		Path:          path,
		Port:          s.port,
		Requests:      s.requests.Total(),
		Retained:      s.requests.Len(),
		WhatsApp:      whatsapp.StatusDisconnected,
		StartedAt:     s.startedAt,
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	}
	if s.tunnel != nil {
		out.Tunnel = s.tunnel.Status()
		out.TunnelOutput = s.tunnel.Output()
		out.PublicURL = out.Tunnel.PublicURL
		if out.PublicURL != "" {
			out.WebhookURL = strings.TrimRight(out.PublicURL, "/") + s.webhookPath
		}
	}
	if s.whatsapp != nil {
		out.WhatsApp = s.whatsapp.Status(ctx)
	}
	info, err := s.events.Info(ctx)
	if err != nil {
		out.StoreError = err.Error()
	} else {
		out.Store = &info
	}
	return out
}
