package events

import (
	"errors"
	"fmt"
	"time"
)

var ErrBackupUnsupported = errors.New("file backup is only supported for the sqlite driver")

// StoreError wraps a failed store operation.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Message is the flattened read model of an event joined with its chat,
// sender and content rows.
type Message struct {
	ID              uint      `json:"id"`
	EventType       string    `json:"event_type"`
	InstanceID      string    `json:"instance_id"`
	MessageID       string    `json:"message_id"`
	FromMe          bool      `json:"from_me"`
	FromAPI         bool      `json:"from_api"`
	IsGroup         bool      `json:"is_group"`
	Moment          int64     `json:"moment"`
	ReceivedAt      time.Time `json:"received_at"`
	ChatID          string    `json:"chat_id"`
	GroupName       string    `json:"group_name"`
	ChatPicture     string    `json:"chat_picture"`
	SenderID        string    `json:"sender_id"`
	PushName        string    `json:"push_name"`
	VerifiedBizName string    `json:"verified_biz_name"`
	SenderPicture   string    `json:"sender_picture"`
	ContentType     string    `json:"content_type"`
	Text            string    `json:"text"`
	Caption         string    `json:"caption"`
	URL             string    `json:"url"`
	Mimetype        string    `json:"mimetype"`
	FileName        string    `json:"file_name"`
	Latitude        float64   `json:"latitude"`
	Longitude       float64   `json:"longitude"`
}

// SearchFilter fields are all optional and combine conjunctively.
type SearchFilter struct {
	Text        string
	ContactID   string
	MessageType string
	FromMe      *bool
	IsGroup     *bool
	DaysBack    int
	Limit       int
}

type DayStat struct {
	Date     string `json:"date"`
	Total    int64  `json:"total"`
	Sent     int64  `json:"sent"`
	Received int64  `json:"received"`
	Group    int64  `json:"group"`
	Private  int64  `json:"private"`
	Sticker  int64  `json:"sticker"`
	Text     int64  `json:"text"`
	Media    int64  `json:"media"`
}

type ContactStat struct {
	SenderID       string    `json:"sender_id"`
	PushName       string    `json:"push_name"`
	ProfilePicture string    `json:"profile_picture"`
	MessageCount   int64     `json:"message_count"`
	FirstMessageAt time.Time `json:"first_message_at"`
	LastMessageAt  time.Time `json:"last_message_at"`
}

type StoreInfo struct {
	Driver        string           `json:"driver"`
	Path          string           `json:"path,omitempty"`
	TotalEvents   int64            `json:"total_events"`
	Sent          int64            `json:"sent"`
	Received      int64            `json:"received"`
	Group         int64            `json:"group"`
	Private       int64            `json:"private"`
	ByContentType map[string]int64 `json:"by_content_type"`
	FirstEventAt  *time.Time       `json:"first_event_at,omitempty"`
	LastEventAt   *time.Time       `json:"last_event_at,omitempty"`
	SizeBytes     int64            `json:"size_bytes"`
}

const (
	DefaultLimit = 50
	MaxLimit     = 10000
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// windowStart is the shared cutoff for every trailing-days query.
func windowStart(now time.Time, days int) time.Time {
	return now.Add(-time.Duration(days) * 24 * time.Hour).UTC().Truncate(time.Second)
}
