package webhook

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/wahook/pkg/constant"
	"github.com/wahook/pkg/domains/events"
	"github.com/wahook/pkg/entities"
	"github.com/wahook/pkg/metrics"
)

// Classification is the outcome of inspecting a raw payload. Event is set
// only when Recognized is true.
type Classification struct {
	Recognized bool
	Event      *entities.WebhookEvent
}

// Result describes what happened to one delivery.
type Result struct {
	Recognized bool   `json:"recognized"`
	Saved      bool   `json:"saved"`
	Reason     string `json:"reason"`
	EventID    uint   `json:"event_id,omitempty"`
	EventType  string `json:"event_type,omitempty"`
	MessageID  string `json:"message_id,omitempty"`
	Err        error  `json:"-"`
}

type Service interface {
	Process(ctx context.Context, body []byte) Result
}

type service struct {
	store   events.Service
	metrics *metrics.Webhook
	log     zerolog.Logger
	now     func() time.Time
}

func NewService(store events.Service, m *metrics.Webhook, log zerolog.Logger) Service {
	return &service{
		store:   store,
		metrics: m,
		log:     log,
		now:     time.Now,
	}
}

// Classify decides whether body is a provider event and, if so, decomposes
// it into the event and its chat, sender and content rows.
func Classify(body []byte) Classification {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil || obj == nil {
		return Classification{}
	}
	if !hasRequiredKeys(obj) {
		return Classification{}
	}

	event := &entities.WebhookEvent{
		EventType:      textField(obj, "event"),
		InstanceID:     textField(obj, "instanceId"),
		ConnectedPhone: textField(obj, "connectedPhone"),
		MessageID:      stringField(obj, "messageId"),
		FromMe:         boolField(obj, "fromMe"),
		FromAPI:        boolField(obj, "fromApi"),
		IsGroup:        boolField(obj, "isGroup"),
		Moment:         intField(obj, "moment"),
	}
	if chat := objectField(obj, "chat"); chat != nil {
		event.Chat = &entities.Chat{
			ChatID:         textField(chat, "id"),
			IsGroup:        event.IsGroup,
			ProfilePicture: textField(chat, "profilePicture"),
		}
		if event.IsGroup {
			event.Chat.GroupName = textField(chat, "name")
		}
	}
	if sender := objectField(obj, "sender"); sender != nil {
		event.Sender = &entities.Sender{
			SenderID:        textField(sender, "id"),
			PushName:        textField(sender, "pushName"),
			VerifiedBizName: textField(sender, "verifiedBizName"),
			ProfilePicture:  textField(sender, "profilePicture"),
		}
	}
	event.Content = decodeContent(obj["msgContent"])

	return Classification{Recognized: true, Event: event}
}

// Process classifies body and persists it when recognized. It never fails:
// every outcome is reported through Result.
func (s *service) Process(ctx context.Context, body []byte) Result {
	res := s.process(ctx, body)
	s.metrics.Observe(res.Reason)
	return res
}

func (s *service) process(ctx context.Context, body []byte) Result {
	if !json.Valid(body) {
		s.log.Info().Int("bytes", len(body)).Msg("webhook body is not json, captured only")
		return Result{Reason: constant.REASON_NOT_JSON}
	}

	c := Classify(body)
	if !c.Recognized {
		s.log.Info().Msg("payload not recognized as a provider event, captured only")
		return Result{Reason: constant.REASON_NOT_RECOGNIZED}
	}

	event := c.Event
	event.ReceivedAt = s.now().UTC().Truncate(time.Second)
	event.RawPayload = string(body)

	res := Result{Recognized: true, EventType: event.EventType}
	if event.MessageID != nil {
		res.MessageID = *event.MessageID
	}

	inserted, err := s.store.Save(ctx, event)
	switch {
	case err != nil:
		s.log.Error().Err(err).Str("message_id", res.MessageID).Str("event", event.EventType).Msg("could not persist webhook event")
		res.Reason = constant.REASON_STORE_ERROR
		res.Err = err
	case !inserted:
		s.log.Info().Str("message_id", res.MessageID).Msg("duplicate message, not saved")
		res.Reason = constant.REASON_DUPLICATE
	default:
		s.log.Info().Uint("event_id", event.ID).Str("message_id", res.MessageID).Str("event", event.EventType).Msg("webhook event saved")
		res.Saved = true
		res.Reason = constant.REASON_SAVED
		res.EventID = event.ID
	}
	return res
}
