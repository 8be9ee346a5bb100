package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wahook/pkg/capture"
	"github.com/wahook/pkg/config"
	"github.com/wahook/pkg/constant"
	"github.com/wahook/pkg/domains/events"
	"github.com/wahook/pkg/domains/status"
	"github.com/wahook/pkg/domains/webhook"
	"github.com/wahook/pkg/dtos"
	"github.com/wahook/pkg/hub"
	"github.com/wahook/pkg/logger"
	"github.com/wahook/pkg/metrics"
	"github.com/wahook/pkg/middleware"
	"github.com/wahook/pkg/testutil"
)

const scenarioBody = `{"event":"webhookReceived","instanceId":"I1","messageId":"M1","fromMe":false,"isGroup":false,"msgContent":{"conversation":"hi"}}`

func testConfig(secret string) *config.Config {
	return &config.Config{
		App:     config.App{Name: "wahook-test", Port: "0", LogLevel: "info"},
		Webhook: config.Webhook{Path: "/webhook", BodyLimit: 1 << 20, CaptureLimit: 100},
		Auth:    config.Auth{Secret: secret},
		Allows: config.Allows{
			Methods: []string{"GET", "POST"},
			Origins: []string{"*"},
			Headers: []string{"Content-Type", "Authorization"},
		},
	}
}

func newTestRouter(t *testing.T, secret string) http.Handler {
	t.Helper()
	return newTestRouterWith(t, testConfig(secret))
}

func newTestRouterWith(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	db, dbc := testutil.SQLite(t)
	store := events.NewService(events.NewRepo(db, dbc), nil, logger.Nop())
	registry := prometheus.NewRegistry()
	requests := capture.NewLog(cfg.Webhook.CaptureLimit)

	return NewRouter(Deps{
		Config:   cfg,
		Log:      logger.Nop(),
		Registry: registry,
		Webhook:  webhook.NewService(store, metrics.NewWebhook(registry), logger.Nop()),
		Events:   store,
		Status:   status.NewService(nil, requests, store, nil, 5000, cfg.Webhook.Path),
		Requests: requests,
		Hub:      hub.New(logger.Nop()),
	})
}

func send(t *testing.T, h http.Handler, method, target, contentType, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestWebhook_SaveThenDuplicate(t *testing.T) {
	h := newTestRouter(t, "")

	w := send(t, h, http.MethodPost, "/webhook", "application/json", scenarioBody)
	require.Equal(t, 200, w.Code)
	first := decode[dtos.WebhookResponseDTO](t, w)
	assert.Equal(t, constant.WEBHOOK_RECEIVED, first.Status)
	assert.True(t, first.Recognized)
	assert.True(t, first.Saved)
	assert.Equal(t, constant.REASON_SAVED, first.Reason)
	assert.NotEmpty(t, first.RequestID)
	assert.Equal(t, first.RequestID, w.Header().Get("X-Request-ID"))

	w = send(t, h, http.MethodPost, "/webhook", "application/json", scenarioBody)
	require.Equal(t, 200, w.Code)
	second := decode[dtos.WebhookResponseDTO](t, w)
	assert.False(t, second.Saved)
	assert.Equal(t, constant.REASON_DUPLICATE, second.Reason)

	w = send(t, h, http.MethodGet, "/db/search?text=hi", "", "")
	require.Equal(t, 200, w.Code)
	found := decode[dtos.MessagesDTO](t, w)
	require.Equal(t, 1, found.Count)
	assert.Equal(t, "hi", found.Messages[0].Text)
	assert.Equal(t, "M1", found.Messages[0].MessageID)
}

func TestWebhook_UnrecognizedLeavesStoreUnchanged(t *testing.T) {
	h := newTestRouter(t, "")

	w := send(t, h, http.MethodPost, "/webhook", "application/json", `{"foo":"bar"}`)
	require.Equal(t, 200, w.Code)
	res := decode[dtos.WebhookResponseDTO](t, w)
	assert.False(t, res.Saved)
	assert.False(t, res.Recognized)
	assert.Equal(t, constant.REASON_NOT_RECOGNIZED, res.Reason)

	w = send(t, h, http.MethodGet, "/db/info", "", "")
	require.Equal(t, 200, w.Code)
	info := decode[events.StoreInfo](t, w)
	assert.Zero(t, info.TotalEvents)
}

func TestWebhook_AnyMethodAndNonJSONBodies(t *testing.T) {
	h := newTestRouter(t, "")

	tests := []struct {
		name        string
		method      string
		contentType string
		body        string
		reason      string
	}{
		{name: "unrelated form post", method: http.MethodPost, contentType: "application/x-www-form-urlencoded", body: url.Values{"a": {"1"}}.Encode(), reason: constant.REASON_NOT_RECOGNIZED},
		{name: "plain text", method: http.MethodPut, contentType: "text/plain", body: "hello", reason: constant.REASON_NOT_JSON},
		{name: "verification get", method: http.MethodGet, body: "", reason: constant.REASON_NOT_JSON},
		{name: "json array", method: http.MethodPost, contentType: "application/json", body: `[1,2]`, reason: constant.REASON_NOT_RECOGNIZED},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := send(t, h, tt.method, "/webhook", tt.contentType, tt.body)
			require.Equal(t, 200, w.Code)
			res := decode[dtos.WebhookResponseDTO](t, w)
			assert.Equal(t, tt.reason, res.Reason)
		})
	}
}

func TestWebhook_FormBodiesAreNormalized(t *testing.T) {
	h := newTestRouter(t, "")

	form := url.Values{
		"event":      {"webhookReceived"},
		"instanceId": {"I1"},
		"messageId":  {"F1"},
		"fromMe":     {"false"},
		"msgContent": {`{"conversation":"from a form"}`},
	}
	w := send(t, h, http.MethodPost, "/webhook", "application/x-www-form-urlencoded", form.Encode())
	require.Equal(t, 200, w.Code)
	res := decode[dtos.WebhookResponseDTO](t, w)
	assert.True(t, res.Recognized)
	assert.True(t, res.Saved)
	assert.Equal(t, constant.REASON_SAVED, res.Reason)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for key, value := range map[string]string{"event": "webhookReceived", "instanceId": "I1", "messageId": "F2", "isGroup": "0"} {
		require.NoError(t, mw.WriteField(key, value))
	}
	require.NoError(t, mw.Close())
	w = send(t, h, http.MethodPost, "/webhook", mw.FormDataContentType(), buf.String())
	require.Equal(t, 200, w.Code)
	res = decode[dtos.WebhookResponseDTO](t, w)
	assert.True(t, res.Saved)

	w = send(t, h, http.MethodGet, "/db/search?text=from+a+form", "", "")
	require.Equal(t, 200, w.Code)
	found := decode[dtos.MessagesDTO](t, w)
	require.Equal(t, 1, found.Count)
	assert.Equal(t, "F1", found.Messages[0].MessageID)
	assert.False(t, found.Messages[0].FromMe)

	w = send(t, h, http.MethodGet, "/db/info", "", "")
	info := decode[events.StoreInfo](t, w)
	assert.EqualValues(t, 2, info.TotalEvents)
}

func TestWebhook_OversizedBodyIsReportedAsTooLarge(t *testing.T) {
	cfg := testConfig("")
	cfg.Webhook.BodyLimit = 64
	h := newTestRouterWith(t, cfg)

	body := `{"event":"webhookReceived","instanceId":"I1","messageId":"BIG","msgContent":{"conversation":"` + strings.Repeat("x", 128) + `"}}`
	w := send(t, h, http.MethodPost, "/webhook", "application/json", body)
	require.Equal(t, 200, w.Code)
	res := decode[dtos.WebhookResponseDTO](t, w)
	assert.False(t, res.Recognized)
	assert.False(t, res.Saved)
	assert.Equal(t, constant.REASON_TOO_LARGE, res.Reason)

	w = send(t, h, http.MethodGet, "/requests", "", "")
	require.Equal(t, 200, w.Code)
	captured := decode[dtos.RequestsDTO](t, w)
	require.NotEmpty(t, captured.Requests)
	assert.Equal(t, constant.REASON_TOO_LARGE, captured.Requests[0].Reason)

	w = send(t, h, http.MethodGet, "/db/info", "", "")
	info := decode[events.StoreInfo](t, w)
	assert.Zero(t, info.TotalEvents)
}

func TestRequests_CaptureAndClear(t *testing.T) {
	h := newTestRouter(t, "")
	send(t, h, http.MethodPost, "/webhook?src=test", "application/json", `{"foo":"bar"}`)
	send(t, h, http.MethodPost, "/webhook", "text/plain", "raw body")

	w := send(t, h, http.MethodGet, "/requests", "", "")
	require.Equal(t, 200, w.Code)
	list := decode[dtos.RequestsDTO](t, w)
	assert.Equal(t, int64(2), list.Total)
	require.Len(t, list.Requests, 2)
	assert.Equal(t, "raw body", list.Requests[0].Body)
	assert.Equal(t, "src=test", list.Requests[1].Query)
	assert.JSONEq(t, `{"foo":"bar"}`, string(list.Requests[1].JSON))
	assert.Equal(t, constant.REASON_NOT_RECOGNIZED, list.Requests[1].Reason)

	w = send(t, h, http.MethodGet, "/requests?limit=1", "", "")
	assert.Len(t, decode[dtos.RequestsDTO](t, w).Requests, 1)

	w = send(t, h, http.MethodPost, "/requests/clear", "", "")
	require.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), `"cleared":2`)

	w = send(t, h, http.MethodGet, "/requests", "", "")
	list = decode[dtos.RequestsDTO](t, w)
	assert.Equal(t, int64(2), list.Total)
	assert.Empty(t, list.Requests)
}

func TestDB_InvalidQueryParameters(t *testing.T) {
	h := newTestRouter(t, "")

	for _, target := range []string{
		"/db/messages?limit=abc",
		"/db/messages?limit=0",
		"/db/search?message_type=gif",
		"/db/search?from_me=maybe",
		"/db/search?days_back=-1",
		"/db/stats/daily?days=0",
		"/db/stats/contacts?limit=x",
		"/requests?limit=-2",
	} {
		t.Run(target, func(t *testing.T) {
			w := send(t, h, http.MethodGet, target, "", "")
			assert.Equal(t, 400, w.Code)
			assert.Contains(t, w.Body.String(), "invalid query parameter")
		})
	}
}

func TestDB_StatsEndpoints(t *testing.T) {
	h := newTestRouter(t, "")
	send(t, h, http.MethodPost, "/webhook", "application/json", scenarioBody)
	send(t, h, http.MethodPost, "/webhook", "application/json",
		`{"event":"webhookReceived","instanceId":"I1","messageId":"M2","sender":{"id":"5511@c.us","pushName":"Ana"},"msgContent":{"imageMessage":{"caption":"pic"}}}`)

	w := send(t, h, http.MethodGet, "/db/stats/daily", "", "")
	require.Equal(t, 200, w.Code)
	daily := decode[dtos.DailyStatsDTO](t, w)
	assert.Equal(t, 7, daily.Days)
	assert.Equal(t, int64(2), daily.Total)

	w = send(t, h, http.MethodGet, "/db/stats/contacts", "", "")
	require.Equal(t, 200, w.Code)
	contacts := decode[dtos.ContactStatsDTO](t, w)
	require.Equal(t, 1, contacts.Count)
	assert.Equal(t, "Ana", contacts.Contacts[0].PushName)

	w = send(t, h, http.MethodGet, "/db/messages?limit=1", "", "")
	require.Equal(t, 200, w.Code)
	assert.Equal(t, 1, decode[dtos.MessagesDTO](t, w).Count)

	w = send(t, h, http.MethodGet, "/db/search?message_type=image", "", "")
	require.Equal(t, 200, w.Code)
	assert.Equal(t, 1, decode[dtos.MessagesDTO](t, w).Count)
}

func TestStatusAndUnknownPaths(t *testing.T) {
	h := newTestRouter(t, "")
	send(t, h, http.MethodPost, "/webhook", "application/json", scenarioBody)

	w := send(t, h, http.MethodGet, "/status", "", "")
	require.Equal(t, 200, w.Code)
	st := decode[dtos.StatusDTO](t, w)
	assert.Equal(t, "running", st.Status)
	assert.Equal(t, 5000, st.Port)
	assert.Equal(t, int64(1), st.Requests)
	require.NotNil(t, st.Store)
	assert.Equal(t, int64(1), st.Store.TotalEvents)
	assert.Equal(t, "disconnected", st.WhatsApp)

	w = send(t, h, http.MethodGet, "/some/unknown/path", "", "")
	require.Equal(t, 200, w.Code)
	st = decode[dtos.StatusDTO](t, w)
	assert.Equal(t, "/some/unknown/path", st.Path)
	assert.Equal(t, "running", st.Status)

	w = send(t, h, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, 200, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestAuth_ProtectsQueriesButNotIngestion(t *testing.T) {
	const secret = "s3cret"
	h := newTestRouter(t, secret)

	w := send(t, h, http.MethodPost, "/webhook", "application/json", scenarioBody)
	assert.Equal(t, 200, w.Code)

	for _, target := range []string{"/status", "/db/info", "/requests", "/anything"} {
		w = send(t, h, http.MethodGet, target, "", "")
		assert.Equal(t, 401, w.Code, target)
	}

	token, err := middleware.IssueToken(secret, "tester", time.Minute)
	require.NoError(t, err)
	w = send(t, h, http.MethodGet, "/db/info", "", "", "Authorization", "Bearer "+token)
	require.Equal(t, 200, w.Code)
	assert.Equal(t, int64(1), decode[events.StoreInfo](t, w).TotalEvents)

	assert.Equal(t, 200, send(t, h, http.MethodGet, "/healthz", "", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestRouter(t, "")
	send(t, h, http.MethodPost, "/webhook", "application/json", scenarioBody)

	w := send(t, h, http.MethodGet, "/metrics", "", "")
	require.Equal(t, 200, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `wahook_webhook_outcomes_total{reason="saved"} 1`)
}
