package webhook

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wahook/pkg/constant"
	"github.com/wahook/pkg/domains/events"
	"github.com/wahook/pkg/entities"
	"github.com/wahook/pkg/logger"
	"github.com/wahook/pkg/metrics"
	"github.com/wahook/pkg/testutil"
)

const scenarioBody = `{"event":"webhookReceived","instanceId":"I1","messageId":"M1","fromMe":false,"isGroup":false,"msgContent":{"conversation":"hi"}}`

func newTestService(t *testing.T) (Service, events.Service, *prometheus.Registry) {
	t.Helper()
	db, dbc := testutil.SQLite(t)
	store := events.NewService(events.NewRepo(db, dbc), nil, logger.Nop())
	reg := prometheus.NewRegistry()
	return NewService(store, metrics.NewWebhook(reg), logger.Nop()), store, reg
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		recognized bool
	}{
		{name: "provider event", body: scenarioBody, recognized: true},
		{name: "null values still count as present", body: `{"event":null,"instanceId":null,"messageId":null}`, recognized: true},
		{name: "numeric instanceId", body: `{"event":"e","instanceId":42,"messageId":"M"}`, recognized: true},
		{name: "string booleans", body: `{"event":"e","instanceId":"I","messageId":"M","fromMe":"false","isGroup":"1"}`, recognized: true},
		{name: "chat as string", body: `{"event":"e","instanceId":"I","messageId":"M","chat":"123@c.us"}`, recognized: true},
		{name: "sender as array", body: `{"event":"e","instanceId":"I","messageId":"M","sender":[]}`, recognized: true},
		{name: "object event and bool moment", body: `{"event":{"kind":"x"},"instanceId":true,"messageId":"M","moment":false}`, recognized: true},
		{name: "missing messageId", body: `{"event":"webhookReceived","instanceId":"I1"}`, recognized: false},
		{name: "missing event", body: `{"instanceId":"I1","messageId":"M1"}`, recognized: false},
		{name: "unrelated object", body: `{"foo":"bar"}`, recognized: false},
		{name: "array", body: `[1,2,3]`, recognized: false},
		{name: "scalar", body: `"text"`, recognized: false},
		{name: "null", body: `null`, recognized: false},
		{name: "not json", body: `event=1`, recognized: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify([]byte(tt.body))
			assert.Equal(t, tt.recognized, c.Recognized)
			if tt.recognized {
				assert.NotNil(t, c.Event)
			} else {
				assert.Nil(t, c.Event)
			}
		})
	}
}

func TestClassify_Decomposition(t *testing.T) {
	body := `{
		"event":"webhookReceived","instanceId":"I1","connectedPhone":"5511999",
		"messageId":"M9","fromMe":true,"fromApi":true,"isGroup":true,"moment":"1700000000",
		"chat":{"id":"123@g.us","name":"Family","profilePicture":"https://pic/chat"},
		"sender":{"id":"5511@c.us","pushName":"Ana","verifiedBizName":"","profilePicture":"https://pic/ana"},
		"msgContent":{"imageMessage":{"url":"https://media/1","mimetype":"image/jpeg","caption":"look","fileLength":"2048","height":640,"width":480}}
	}`

	c := Classify([]byte(body))
	require.True(t, c.Recognized)
	ev := c.Event

	require.NotNil(t, ev.MessageID)
	assert.Equal(t, "M9", *ev.MessageID)
	assert.Equal(t, "webhookReceived", ev.EventType)
	assert.Equal(t, "5511999", ev.ConnectedPhone)
	assert.True(t, ev.FromMe)
	assert.True(t, ev.FromAPI)
	assert.True(t, ev.IsGroup)
	assert.Equal(t, int64(1700000000), ev.Moment)

	require.NotNil(t, ev.Chat)
	assert.Equal(t, "123@g.us", ev.Chat.ChatID)
	assert.Equal(t, "Family", ev.Chat.GroupName)
	require.NotNil(t, ev.Sender)
	assert.Equal(t, "Ana", ev.Sender.PushName)

	require.NotNil(t, ev.Content)
	assert.Equal(t, constant.CONTENT_IMAGE, ev.Content.ContentType)
	assert.Equal(t, "look", ev.Content.Caption)
	assert.Equal(t, int64(2048), ev.Content.FileLength)
	assert.Equal(t, 640, ev.Content.Height)
	assert.JSONEq(t, `{"imageMessage":{"url":"https://media/1","mimetype":"image/jpeg","caption":"look","fileLength":"2048","height":640,"width":480}}`, string(ev.Content.RawContent))
}

func TestClassify_LenientFieldTypes(t *testing.T) {
	body := `{
		"event":"webhookReceived","instanceId":42,"connectedPhone":5511999,"messageId":"M7",
		"fromMe":"true","fromApi":1,"isGroup":"false","moment":{"seconds":1},
		"chat":"123@c.us","sender":{"id":5511,"pushName":["Ana"]},
		"msgContent":{"audioMessage":{"seconds":"12","ptt":"true","isAnimated":{}}}
	}`

	c := Classify([]byte(body))
	require.True(t, c.Recognized)
	ev := c.Event
	assert.Equal(t, "webhookReceived", ev.EventType)
	assert.Equal(t, "42", ev.InstanceID)
	assert.Equal(t, "5511999", ev.ConnectedPhone)
	assert.True(t, ev.FromMe)
	assert.True(t, ev.FromAPI)
	assert.False(t, ev.IsGroup)
	assert.Zero(t, ev.Moment)
	assert.Nil(t, ev.Chat)
	require.NotNil(t, ev.Sender)
	assert.Equal(t, "5511", ev.Sender.SenderID)
	assert.Empty(t, ev.Sender.PushName)

	require.NotNil(t, ev.Content)
	assert.Equal(t, constant.CONTENT_AUDIO, ev.Content.ContentType)
	assert.Equal(t, 12, ev.Content.Seconds)
	assert.True(t, ev.Content.PTT)
	assert.False(t, ev.Content.IsAnimated)
}

func TestClassify_GroupNameOnlyForGroups(t *testing.T) {
	c := Classify([]byte(`{"event":"e","instanceId":"I","messageId":"M","isGroup":false,"chat":{"id":"1@c.us","name":"Ana"}}`))
	require.True(t, c.Recognized)
	require.NotNil(t, c.Event.Chat)
	assert.Empty(t, c.Event.Chat.GroupName)
}

func TestClassify_MessageIDForms(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want *string
	}{
		{name: "string", id: `"ABC"`, want: strPtr("ABC")},
		{name: "number", id: `12345`, want: strPtr("12345")},
		{name: "empty string", id: `""`, want: nil},
		{name: "null", id: `null`, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify([]byte(`{"event":"e","instanceId":"I","messageId":` + tt.id + `}`))
			require.True(t, c.Recognized)
			assert.Equal(t, tt.want, c.Event.MessageID)
		})
	}
}

func TestDecodeContent(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		contentType string
		check       func(t *testing.T, mc *entities.MessageContent)
	}{
		{
			name:        "conversation",
			raw:         `{"conversation":"hello"}`,
			contentType: constant.CONTENT_TEXT,
			check:       func(t *testing.T, mc *entities.MessageContent) { assert.Equal(t, "hello", mc.Text) },
		},
		{
			name:        "extended text",
			raw:         `{"extendedTextMessage":{"text":"with link"}}`,
			contentType: constant.CONTENT_TEXT,
			check:       func(t *testing.T, mc *entities.MessageContent) { assert.Equal(t, "with link", mc.Text) },
		},
		{
			name:        "sticker",
			raw:         `{"stickerMessage":{"url":"u","isAnimated":true}}`,
			contentType: constant.CONTENT_STICKER,
			check:       func(t *testing.T, mc *entities.MessageContent) { assert.True(t, mc.IsAnimated) },
		},
		{
			name:        "video",
			raw:         `{"videoMessage":{"seconds":12}}`,
			contentType: constant.CONTENT_VIDEO,
			check:       func(t *testing.T, mc *entities.MessageContent) { assert.Equal(t, 12, mc.Seconds) },
		},
		{
			name:        "audio",
			raw:         `{"audioMessage":{"ptt":true}}`,
			contentType: constant.CONTENT_AUDIO,
			check:       func(t *testing.T, mc *entities.MessageContent) { assert.True(t, mc.PTT) },
		},
		{
			name:        "document",
			raw:         `{"documentMessage":{"fileName":"a.pdf","pageCount":3}}`,
			contentType: constant.CONTENT_DOCUMENT,
			check: func(t *testing.T, mc *entities.MessageContent) {
				assert.Equal(t, "a.pdf", mc.FileName)
				assert.Equal(t, 3, mc.PageCount)
			},
		},
		{
			name:        "location",
			raw:         `{"locationMessage":{"degreesLatitude":-23.5,"degreesLongitude":-46.6,"name":"Office"}}`,
			contentType: constant.CONTENT_LOCATION,
			check: func(t *testing.T, mc *entities.MessageContent) {
				assert.InDelta(t, -23.5, mc.Latitude, 1e-9)
				assert.Equal(t, "Office", mc.LocationName)
			},
		},
		{
			name:        "unknown shape",
			raw:         `{"pollCreationMessage":{"name":"lunch?"}}`,
			contentType: constant.CONTENT_UNKNOWN,
			check: func(t *testing.T, mc *entities.MessageContent) {
				assert.JSONEq(t, `{"pollCreationMessage":{"name":"lunch?"}}`, string(mc.RawContent))
			},
		},
		{
			name:        "not an object",
			raw:         `"plain"`,
			contentType: constant.CONTENT_UNKNOWN,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mc := decodeContent([]byte(tt.raw))
			require.NotNil(t, mc)
			assert.Equal(t, tt.contentType, mc.ContentType)
			if tt.check != nil {
				tt.check(t, mc)
			}
		})
	}

	assert.Nil(t, decodeContent(nil))
	assert.Nil(t, decodeContent([]byte("null")))
}

func TestProcess_SavesThenReportsDuplicate(t *testing.T) {
	s, store, reg := newTestService(t)
	ctx := context.Background()

	res := s.Process(ctx, []byte(scenarioBody))
	assert.True(t, res.Recognized)
	assert.True(t, res.Saved)
	assert.Equal(t, constant.REASON_SAVED, res.Reason)
	assert.Equal(t, "M1", res.MessageID)
	assert.NotZero(t, res.EventID)

	res = s.Process(ctx, []byte(scenarioBody))
	assert.True(t, res.Recognized)
	assert.False(t, res.Saved)
	assert.Equal(t, constant.REASON_DUPLICATE, res.Reason)

	found, err := store.Search(ctx, events.SearchFilter{Text: "hi"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "hi", found[0].Text)
	assert.Equal(t, constant.CONTENT_TEXT, found[0].ContentType)

	assert.Equal(t, float64(1), outcomeCount(t, reg, constant.REASON_SAVED))
	assert.Equal(t, float64(1), outcomeCount(t, reg, constant.REASON_DUPLICATE))
}

func TestProcess_UnrecognizedIsNotPersisted(t *testing.T) {
	s, store, _ := newTestService(t)
	ctx := context.Background()

	for _, body := range []string{`{"foo":"bar"}`, `{"event":"x","instanceId":"I"}`} {
		res := s.Process(ctx, []byte(body))
		assert.False(t, res.Recognized)
		assert.False(t, res.Saved)
		assert.Equal(t, constant.REASON_NOT_RECOGNIZED, res.Reason)
	}

	res := s.Process(ctx, []byte("not json at all"))
	assert.Equal(t, constant.REASON_NOT_JSON, res.Reason)

	info, err := store.Info(ctx)
	require.NoError(t, err)
	assert.Zero(t, info.TotalEvents)
}

func TestProcess_PersistsLooselyTypedPayloads(t *testing.T) {
	s, store, _ := newTestService(t)
	ctx := context.Background()

	bodies := []string{
		`{"event":"e","instanceId":42,"messageId":"L1"}`,
		`{"event":"e","instanceId":"I","messageId":"L2","fromMe":"false","msgContent":{"conversation":"loose"}}`,
		`{"event":"e","instanceId":"I","messageId":"L3","chat":"123@c.us","sender":[]}`,
	}
	for _, body := range bodies {
		res := s.Process(ctx, []byte(body))
		assert.True(t, res.Recognized, body)
		assert.True(t, res.Saved, body)
		assert.Equal(t, constant.REASON_SAVED, res.Reason, body)
	}

	info, err := store.Info(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, len(bodies), info.TotalEvents)
	assert.EqualValues(t, len(bodies), info.Received)

	found, err := store.Search(ctx, events.SearchFilter{Text: "loose"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "L2", found[0].MessageID)
}

func TestProcess_StampsReceiptTimeAndRawBody(t *testing.T) {
	s, store, _ := newTestService(t)
	svc := s.(*service)
	at := time.Date(2026, 1, 2, 3, 4, 5, 600, time.FixedZone("BRT", -3*3600))
	svc.now = func() time.Time { return at }

	res := svc.Process(context.Background(), []byte(scenarioBody))
	require.True(t, res.Saved)

	msgs, err := store.RecentMessages(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].ReceivedAt.Equal(at.Truncate(time.Second)))
}

type failingStore struct {
	events.Service
}

func (failingStore) Save(context.Context, *entities.WebhookEvent) (bool, error) {
	return false, &events.StoreError{Op: "save", Err: errors.New("disk full")}
}

func TestProcess_StoreErrorIsReported(t *testing.T) {
	s := NewService(failingStore{}, nil, logger.Nop())

	res := s.Process(context.Background(), []byte(scenarioBody))
	assert.True(t, res.Recognized)
	assert.False(t, res.Saved)
	assert.Equal(t, constant.REASON_STORE_ERROR, res.Reason)
	var se *events.StoreError
	assert.ErrorAs(t, res.Err, &se)
}

func outcomeCount(t *testing.T, reg *prometheus.Registry, reason string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != "wahook_webhook_outcomes_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "reason" && l.GetValue() == reason {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func strPtr(s string) *string { return &s }
