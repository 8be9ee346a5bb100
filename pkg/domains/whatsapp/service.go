package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/mdp/qrterminal"
	"github.com/rs/zerolog"
	"github.com/wahook/pkg/config"
	"github.com/wahook/pkg/constant"
	"github.com/wahook/pkg/dtos"
	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/binary/proto"
	"go.mau.fi/whatsmeow/store/sqlstore"
	waTypes "go.mau.fi/whatsmeow/types"
	waEvents "go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"golang.org/x/time/rate"
	"google.golang.org/protobuf/proto"
	_ "modernc.org/sqlite"
)

// Connection states reported by Status.
const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
	StatusConnecting   = "connecting"
	StatusError        = "error"
)

var (
	ErrDisabled     = errors.New(constant.WHATSAPP_DISABLED)
	ErrNotConnected = errors.New(constant.WHATSAPP_NOT_CONNECTED)
	ErrNotLoggedIn  = errors.New(constant.WHATSAPP_NOT_LOGGED_IN)
)

var nonPhoneChars = regexp.MustCompile(`[^\d+]`)

type Service interface {
	Status(ctx context.Context) string
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	QRCode(ctx context.Context) (string, error)
	SendText(ctx context.Context, req dtos.SendMessageDTO) (*dtos.MessageResponseDTO, error)
	SendMedia(ctx context.Context, req dtos.SendMediaMessageDTO) (*dtos.MessageResponseDTO, error)
	SendReaction(ctx context.Context, req dtos.SendReactionDTO) (*dtos.MessageResponseDTO, error)
	Close()
}

// service holds the single messaging session of this instance.
type service struct {
	cfg     config.WhatsApp
	log     zerolog.Logger
	limiter *rate.Limiter
	qrOut   io.Writer

	mutex      sync.RWMutex
	client     *whatsmeow.Client
	container  *sqlstore.Container
	connecting bool
	lastErr    error
}

func NewService(cfg config.WhatsApp, log zerolog.Logger) Service {
	perSec := cfg.SendPerSec
	if perSec <= 0 {
		perSec = 1
	}
	return &service{
		cfg:     cfg,
		log:     log.With().Str("component", "whatsapp").Logger(),
		limiter: rate.NewLimiter(rate.Limit(perSec), 1),
		qrOut:   os.Stdout,
	}
}

// FormatPhoneNumber converts a free-form phone number to a user JID.
func FormatPhoneNumber(phoneNumber string) (waTypes.JID, error) {
	cleanPhone := nonPhoneChars.ReplaceAllString(phoneNumber, "")
	cleanPhone = strings.TrimPrefix(cleanPhone, "+")
	if strings.Contains(cleanPhone, "+") {
		return waTypes.JID{}, fmt.Errorf("%s: misplaced +", constant.INVALID_PHONE_NUMBER)
	}
	if len(cleanPhone) < 10 {
		return waTypes.JID{}, fmt.Errorf("%s: too short", constant.INVALID_PHONE_NUMBER)
	}
	return waTypes.NewJID(cleanPhone, waTypes.DefaultUserServer), nil
}

func (s *service) Status(ctx context.Context) string {
	if !s.cfg.Enabled {
		return StatusDisconnected
	}
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	switch {
	case s.lastErr != nil:
		return StatusError
	case s.client == nil:
		return StatusDisconnected
	case s.client.IsConnected() && s.client.Store.ID != nil:
		return StatusConnected
	case s.connecting:
		return StatusConnecting
	default:
		return StatusDisconnected
	}
}

// ensureClient opens the device store and builds the client on first use.
func (s *service) ensureClient(ctx context.Context) (*whatsmeow.Client, error) {
	if !s.cfg.Enabled {
		return nil, ErrDisabled
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.client != nil {
		return s.client, nil
	}

	clientLog := waLog.Zerolog(s.log)
	if dir := filepath.Dir(s.cfg.StorePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create session store dir: %w", err)
		}
	}
	container, err := sqlstore.New(ctx, "sqlite", "file:"+s.cfg.StorePath+"?_pragma=foreign_keys(1)", clientLog)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		container.Close()
		return nil, fmt.Errorf("load device: %w", err)
	}

	client := whatsmeow.NewClient(deviceStore, clientLog)
	client.AddEventHandler(s.handleEvent)
	s.client = client
	s.container = container
	s.log.Info().Str("store", s.cfg.StorePath).Msg("messaging client initialized")
	return client, nil
}

func (s *service) handleEvent(evt interface{}) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	switch v := evt.(type) {
	case *waEvents.Connected:
		s.connecting = false
		s.lastErr = nil
		s.log.Info().Msg("messaging client connected")
	case *waEvents.Disconnected:
		s.connecting = false
		s.log.Warn().Msg("messaging client disconnected")
	case *waEvents.LoggedOut:
		s.connecting = false
		s.log.Warn().Str("reason", v.Reason.String()).Msg("messaging session logged out")
	case *waEvents.StreamReplaced:
		s.connecting = false
		s.lastErr = errors.New("stream replaced by another connection")
		s.log.Error().Msg("messaging stream replaced")
	case *waEvents.ConnectFailure:
		s.connecting = false
		s.lastErr = fmt.Errorf("connect failure: %s", v.Reason.String())
		s.log.Error().Str("reason", v.Reason.String()).Msg("messaging connect failure")
	}
}

func (s *service) setConnecting(v bool) {
	s.mutex.Lock()
	s.connecting = v
	if v {
		s.lastErr = nil
	}
	s.mutex.Unlock()
}

func (s *service) Connect(ctx context.Context) error {
	client, err := s.ensureClient(ctx)
	if err != nil {
		return err
	}
	if client.Store.ID == nil {
		return ErrNotLoggedIn
	}
	if client.IsConnected() {
		return nil
	}
	s.setConnecting(true)
	if err := client.Connect(); err != nil {
		s.mutex.Lock()
		s.connecting = false
		s.lastErr = err
		s.mutex.Unlock()
		return fmt.Errorf("failed to connect: %w", err)
	}
	return nil
}

func (s *service) Disconnect(ctx context.Context) error {
	if !s.cfg.Enabled {
		return ErrDisabled
	}
	s.mutex.Lock()
	client := s.client
	s.connecting = false
	s.mutex.Unlock()
	if client != nil {
		client.Disconnect()
	}
	s.log.Info().Msg("messaging client disconnected on request")
	return nil
}

// QRCode starts pairing and returns the first code, also rendering it on
// the terminal. A session that is already paired returns an empty code.
func (s *service) QRCode(ctx context.Context) (string, error) {
	client, err := s.ensureClient(ctx)
	if err != nil {
		return "", err
	}
	if client.Store.ID != nil {
		return "", nil
	}
	if client.IsConnected() {
		client.Disconnect()
	}

	qrChan, err := client.GetQRChannel(context.Background())
	if err != nil {
		return "", fmt.Errorf("failed to get QR channel: %w", err)
	}
	s.setConnecting(true)
	if err := client.Connect(); err != nil {
		s.setConnecting(false)
		return "", fmt.Errorf("failed to connect: %w", err)
	}

	first := make(chan string, 1)
	go func() {
		sent := false
		for evt := range qrChan {
			switch evt.Event {
			case "code":
				qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, s.qrOut)
				if !sent {
					first <- evt.Code
					sent = true
				}
			case "success":
				s.log.Info().Msg("pairing succeeded")
			case "timeout":
				s.setConnecting(false)
				s.log.Warn().Msg("pairing code expired")
			default:
				s.log.Debug().Str("event", evt.Event).Msg("pairing event")
			}
		}
		if !sent {
			close(first)
		}
	}()

	select {
	case code, ok := <-first:
		if !ok {
			return "", errors.New("QR channel closed unexpectedly")
		}
		return code, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// readyClient returns the client when it is paired and connected.
func (s *service) readyClient(ctx context.Context) (*whatsmeow.Client, error) {
	if !s.cfg.Enabled {
		return nil, ErrDisabled
	}
	s.mutex.RLock()
	client := s.client
	s.mutex.RUnlock()
	if client == nil || !client.IsConnected() {
		return nil, ErrNotConnected
	}
	if client.Store.ID == nil {
		return nil, ErrNotLoggedIn
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

func (s *service) SendText(ctx context.Context, req dtos.SendMessageDTO) (*dtos.MessageResponseDTO, error) {
	client, err := s.readyClient(ctx)
	if err != nil {
		return nil, err
	}
	recipient, err := FormatPhoneNumber(req.PhoneNumber)
	if err != nil {
		return nil, err
	}

	msg := &waProto.Message{
		Conversation: proto.String(req.Message),
	}
	resp, err := client.SendMessage(ctx, recipient, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	s.log.Info().Str("id", resp.ID).Str("to", recipient.String()).Msg("message sent")
	return response(resp, req.PhoneNumber), nil
}

func (s *service) SendMedia(ctx context.Context, req dtos.SendMediaMessageDTO) (*dtos.MessageResponseDTO, error) {
	client, err := s.readyClient(ctx)
	if err != nil {
		return nil, err
	}
	recipient, err := FormatPhoneNumber(req.PhoneNumber)
	if err != nil {
		return nil, err
	}

	mediaType := MediaTypeFor(req.MimeType)
	uploaded, err := client.Upload(ctx, req.MediaData, mediaType)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", constant.MEDIA_UPLOAD_FAILED, err)
	}

	var msg *waProto.Message
	switch mediaType {
	case whatsmeow.MediaImage:
		msg = &waProto.Message{
			ImageMessage: &waProto.ImageMessage{
				URL:           &uploaded.URL,
				Mimetype:      &req.MimeType,
				Caption:       &req.Caption,
				FileSHA256:    uploaded.FileSHA256,
				FileLength:    &uploaded.FileLength,
				Height:        &req.Height,
				Width:         &req.Width,
				DirectPath:    &uploaded.DirectPath,
				MediaKey:      uploaded.MediaKey,
				FileEncSHA256: uploaded.FileEncSHA256,
			},
		}
	case whatsmeow.MediaVideo:
		msg = &waProto.Message{
			VideoMessage: &waProto.VideoMessage{
				URL:           &uploaded.URL,
				Mimetype:      &req.MimeType,
				Caption:       &req.Caption,
				FileSHA256:    uploaded.FileSHA256,
				FileLength:    &uploaded.FileLength,
				DirectPath:    &uploaded.DirectPath,
				MediaKey:      uploaded.MediaKey,
				FileEncSHA256: uploaded.FileEncSHA256,
			},
		}
	case whatsmeow.MediaAudio:
		msg = &waProto.Message{
			AudioMessage: &waProto.AudioMessage{
				URL:           &uploaded.URL,
				Mimetype:      &req.MimeType,
				FileSHA256:    uploaded.FileSHA256,
				FileLength:    &uploaded.FileLength,
				DirectPath:    &uploaded.DirectPath,
				MediaKey:      uploaded.MediaKey,
				FileEncSHA256: uploaded.FileEncSHA256,
			},
		}
	default:
		title := req.FileName
		if title == "" {
			title = req.Caption
		}
		msg = &waProto.Message{
			DocumentMessage: &waProto.DocumentMessage{
				URL:           &uploaded.URL,
				Mimetype:      &req.MimeType,
				Title:         &title,
				FileName:      &title,
				Caption:       &req.Caption,
				FileSHA256:    uploaded.FileSHA256,
				FileLength:    &uploaded.FileLength,
				DirectPath:    &uploaded.DirectPath,
				MediaKey:      uploaded.MediaKey,
				FileEncSHA256: uploaded.FileEncSHA256,
			},
		}
	}

	resp, err := client.SendMessage(ctx, recipient, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to send media message: %w", err)
	}
	s.log.Info().Str("id", resp.ID).Str("type", string(mediaType)).Msg("media message sent")
	return response(resp, req.PhoneNumber), nil
}

// SendReaction reacts to messageID in the chat with the given number. An
// empty emoji removes an earlier reaction.
func (s *service) SendReaction(ctx context.Context, req dtos.SendReactionDTO) (*dtos.MessageResponseDTO, error) {
	client, err := s.readyClient(ctx)
	if err != nil {
		return nil, err
	}
	chat, err := FormatPhoneNumber(req.PhoneNumber)
	if err != nil {
		return nil, err
	}

	sender := chat
	if req.FromMe {
		sender = client.Store.ID.ToNonAD()
	}
	msg := client.BuildReaction(chat, sender, req.MessageID, req.Emoji)
	resp, err := client.SendMessage(ctx, chat, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to send reaction: %w", err)
	}
	s.log.Info().Str("id", resp.ID).Str("target", req.MessageID).Msg("reaction sent")
	return response(resp, req.PhoneNumber), nil
}

func (s *service) Close() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.client != nil {
		s.client.Disconnect()
		s.client = nil
	}
	if s.container != nil {
		s.container.Close()
		s.container = nil
	}
}

// MediaTypeFor picks the upload media type from a mime type.
func MediaTypeFor(mimeType string) whatsmeow.MediaType {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return whatsmeow.MediaImage
	case strings.HasPrefix(mimeType, "video/"):
		return whatsmeow.MediaVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return whatsmeow.MediaAudio
	default:
		return whatsmeow.MediaDocument
	}
}

func response(resp whatsmeow.SendResponse, to string) *dtos.MessageResponseDTO {
	return &dtos.MessageResponseDTO{
		Success:   true,
		MessageID: resp.ID,
		Timestamp: resp.Timestamp.Format(time.RFC3339),
		Status:    "sent",
		To:        to,
	}
}
