package dtos

import (
	"time"

	"github.com/wahook/pkg/capture"
	"github.com/wahook/pkg/domains/events"
	"github.com/wahook/pkg/tunnel"
)

type WebhookResponseDTO struct {
	Status     string `json:"status"`
	RequestID  string `json:"request_id"`
	Recognized bool   `json:"recognized"`
	Saved      bool   `json:"saved"`
	Reason     string `json:"reason"`
}

type RequestsDTO struct {
	Total    int64             `json:"total"`
	Retained int               `json:"retained"`
	Requests []capture.Request `json:"requests"`
}

type StatusDTO struct {
	Status        string            `json:"status"`
	Path          string            `json:"path,omitempty"`
	PublicURL     string            `json:"public_url"`
	WebhookURL    string            `json:"webhook_url,omitempty"`
	Port          int               `json:"port"`
	Tunnel        tunnel.Status     `json:"tunnel"`
	TunnelOutput  []string          `json:"tunnel_output,omitempty"`
	Requests      int64             `json:"requests"`
	Retained      int               `json:"retained"`
	Store         *events.StoreInfo `json:"store,omitempty"`
	StoreError    string            `json:"store_error,omitempty"`
	WhatsApp      string            `json:"whatsapp"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	StartedAt     time.Time         `json:"started_at"`
}
