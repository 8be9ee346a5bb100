package routes

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wahook/pkg/capture"
	"github.com/wahook/pkg/constant"
	"github.com/wahook/pkg/domains/webhook"
	"github.com/wahook/pkg/dtos"
	"github.com/wahook/pkg/hub"
	"github.com/wahook/pkg/state"
)

// WebhookRoutes accepts every method on path. Deliveries are always
// acknowledged with 200 whatever happens to the payload.
func WebhookRoutes(r gin.IRoutes, path string, s webhook.Service, requests *capture.Log, h *hub.Hub, bodyLimit int64) {
	r.Any(path, receiveWebhook(s, requests, h, bodyLimit))
}

// @Summary Receive a webhook delivery
// @Tags webhook
// @Accept json
// @Produce json
// @Success 200 {object} dtos.WebhookResponseDTO
// @Router /webhook [post]
func receiveWebhook(s webhook.Service, requests *capture.Log, h *hub.Hub, bodyLimit int64) func(c *gin.Context) {
	return func(c *gin.Context) {
		requestID := state.GetRequestID(c)
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, bodyLimit)
		body, readErr := io.ReadAll(c.Request.Body)

		captured := capture.Request{
			ID:         requestID,
			Method:     c.Request.Method,
			Path:       c.Request.URL.Path,
			Query:      c.Request.URL.RawQuery,
			RemoteAddr: c.ClientIP(),
			Headers:    capture.HeaderMap(c.Request.Header),
			Body:       string(body),
			ReceivedAt: time.Now(),
		}

		var res webhook.Result
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(readErr, &tooLarge):
			res = webhook.Result{Reason: constant.REASON_TOO_LARGE}
		case readErr != nil:
			res = webhook.Result{Reason: constant.REASON_READ_ERROR}
		case isFormContent(c.ContentType()):
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
			payload, err := formPayload(c)
			if err != nil {
				res = webhook.Result{Reason: constant.REASON_NOT_JSON}
				break
			}
			captured.JSON = json.RawMessage(payload)
			res = s.Process(c, payload)
		default:
			if json.Valid(body) {
				captured.JSON = json.RawMessage(body)
				captured.Body = ""
			}
			res = s.Process(c, body)
		}

		captured.Recognized = res.Recognized
		captured.Saved = res.Saved
		captured.Reason = res.Reason
		requests.Append(captured)

		if h != nil {
			h.Publish(hub.Outcome{
				RequestID:  requestID,
				Recognized: res.Recognized,
				Saved:      res.Saved,
				Reason:     res.Reason,
				MessageID:  res.MessageID,
				EventType:  res.EventType,
				At:         captured.ReceivedAt,
			})
		}

		c.JSON(200, dtos.WebhookResponseDTO{
			Status:     constant.WEBHOOK_RECEIVED,
			RequestID:  requestID,
			Recognized: res.Recognized,
			Saved:      res.Saved,
			Reason:     res.Reason,
		})
	}
}

// formPayload parses the restored request body as a form and re-encodes
// its values as a JSON object. Uploaded files are ignored.
func formPayload(c *gin.Context) ([]byte, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		form, err := c.MultipartForm()
		if err != nil {
			return nil, err
		}
		defer form.RemoveAll()
		return webhook.FormPayload(form.Value)
	}
	if err := c.Request.ParseForm(); err != nil {
		return nil, err
	}
	return webhook.FormPayload(c.Request.PostForm)
}

func isFormContent(contentType string) bool {
	return strings.HasPrefix(contentType, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(contentType, "multipart/form-data")
}
