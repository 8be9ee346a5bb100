package webhook

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/wahook/pkg/constant"
	"github.com/wahook/pkg/entities"
	"gorm.io/datatypes"
)

// requiredKeys must all be present for a payload to count as a provider event.
var requiredKeys = []string{"event", "instanceId", "messageId"}

// flexInt accepts numbers, numeric strings and null. Any other value
// decodes as zero.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		*f = flexInt(n)
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err != nil {
		return nil
	}
	*f = flexInt(n)
	return nil
}

// flexBool accepts booleans, strings understood by strconv.ParseBool and
// numbers (non-zero is true). Any other value decodes as false.
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
	case bytes.Equal(b, []byte("true")):
		*f = true
	case bytes.Equal(b, []byte("false")):
		*f = false
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		if v, err := strconv.ParseBool(s); err == nil {
			*f = flexBool(v)
		}
	default:
		var n float64
		if err := json.Unmarshal(b, &n); err == nil {
			*f = n != 0
		}
	}
	return nil
}

// flexString accepts strings, numbers and null. Empty values decode as nil.
type flexString struct {
	value *string
}

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	} else {
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		s = n.String()
	}
	if s == "" {
		return nil
	}
	f.value = &s
	return nil
}

type mediaFields struct {
	URL               string   `json:"url"`
	Mimetype          string   `json:"mimetype"`
	Caption           string   `json:"caption"`
	FileLength        flexInt  `json:"fileLength"`
	Height            flexInt  `json:"height"`
	Width             flexInt  `json:"width"`
	Seconds           flexInt  `json:"seconds"`
	PTT               flexBool `json:"ptt"`
	IsAnimated        flexBool `json:"isAnimated"`
	FileName          string   `json:"fileName"`
	Title             string   `json:"title"`
	PageCount         flexInt  `json:"pageCount"`
	FileSHA256        string   `json:"fileSha256"`
	FileEncSHA256     string   `json:"fileEncSha256"`
	MediaKey          string   `json:"mediaKey"`
	DirectPath        string   `json:"directPath"`
	MediaKeyTimestamp flexInt  `json:"mediaKeyTimestamp"`
}

type locationFields struct {
	DegreesLatitude  float64 `json:"degreesLatitude"`
	DegreesLongitude float64 `json:"degreesLongitude"`
	Name             string  `json:"name"`
	Address          string  `json:"address"`
}

type contentPayload struct {
	Conversation        *string `json:"conversation"`
	ExtendedTextMessage *struct {
		Text string `json:"text"`
	} `json:"extendedTextMessage"`
	StickerMessage  *mediaFields    `json:"stickerMessage"`
	ImageMessage    *mediaFields    `json:"imageMessage"`
	VideoMessage    *mediaFields    `json:"videoMessage"`
	AudioMessage    *mediaFields    `json:"audioMessage"`
	DocumentMessage *mediaFields    `json:"documentMessage"`
	LocationMessage *locationFields `json:"locationMessage"`
}

// stringField decodes obj[key] leniently. Missing, empty and non-scalar
// values are nil.
func stringField(obj map[string]json.RawMessage, key string) *string {
	raw, ok := obj[key]
	if !ok {
		return nil
	}
	var f flexString
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil
	}
	return f.value
}

func textField(obj map[string]json.RawMessage, key string) string {
	if v := stringField(obj, key); v != nil {
		return *v
	}
	return ""
}

func boolField(obj map[string]json.RawMessage, key string) bool {
	var f flexBool
	if raw, ok := obj[key]; ok {
		json.Unmarshal(raw, &f)
	}
	return bool(f)
}

func intField(obj map[string]json.RawMessage, key string) int64 {
	var f flexInt
	if raw, ok := obj[key]; ok {
		json.Unmarshal(raw, &f)
	}
	return int64(f)
}

// objectField returns obj[key] when it is a JSON object and nil otherwise.
func objectField(obj map[string]json.RawMessage, key string) map[string]json.RawMessage {
	raw := bytes.TrimSpace(obj[key])
	if len(raw) == 0 || raw[0] != '{' {
		return nil
	}
	var inner map[string]json.RawMessage
	if err := json.Unmarshal(raw, &inner); err != nil {
		return nil
	}
	return inner
}

// hasRequiredKeys reports whether the object carries every required key,
// whatever their values are.
func hasRequiredKeys(obj map[string]json.RawMessage) bool {
	for _, k := range requiredKeys {
		if _, ok := obj[k]; !ok {
			return false
		}
	}
	return true
}

// decodeContent maps the content object onto exactly one content family.
// Shapes with no known key become CONTENT_UNKNOWN and keep only the raw
// capture.
func decodeContent(raw json.RawMessage) *entities.MessageContent {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	mc := &entities.MessageContent{
		ContentType: constant.CONTENT_UNKNOWN,
		RawContent:  datatypes.JSON(append([]byte(nil), raw...)),
	}

	var c contentPayload
	if err := json.Unmarshal(raw, &c); err != nil {
		return mc
	}

	switch {
	case c.Conversation != nil:
		mc.ContentType = constant.CONTENT_TEXT
		mc.Text = *c.Conversation
	case c.ExtendedTextMessage != nil:
		mc.ContentType = constant.CONTENT_TEXT
		mc.Text = c.ExtendedTextMessage.Text
	case c.StickerMessage != nil:
		mc.ContentType = constant.CONTENT_STICKER
		applyMedia(mc, c.StickerMessage)
	case c.ImageMessage != nil:
		mc.ContentType = constant.CONTENT_IMAGE
		applyMedia(mc, c.ImageMessage)
	case c.VideoMessage != nil:
		mc.ContentType = constant.CONTENT_VIDEO
		applyMedia(mc, c.VideoMessage)
	case c.AudioMessage != nil:
		mc.ContentType = constant.CONTENT_AUDIO
		applyMedia(mc, c.AudioMessage)
	case c.DocumentMessage != nil:
		mc.ContentType = constant.CONTENT_DOCUMENT
		applyMedia(mc, c.DocumentMessage)
	case c.LocationMessage != nil:
		mc.ContentType = constant.CONTENT_LOCATION
		mc.Latitude = c.LocationMessage.DegreesLatitude
		mc.Longitude = c.LocationMessage.DegreesLongitude
		mc.LocationName = c.LocationMessage.Name
		mc.Address = c.LocationMessage.Address
	}
	return mc
}

func applyMedia(mc *entities.MessageContent, m *mediaFields) {
	mc.URL = m.URL
	mc.Mimetype = m.Mimetype
	mc.Caption = m.Caption
	mc.FileLength = int64(m.FileLength)
	mc.Height = int(m.Height)
	mc.Width = int(m.Width)
	mc.Seconds = int(m.Seconds)
	mc.PTT = bool(m.PTT)
	mc.IsAnimated = bool(m.IsAnimated)
	mc.FileName = m.FileName
	mc.Title = m.Title
	mc.PageCount = int(m.PageCount)
	mc.FileSHA256 = m.FileSHA256
	mc.FileEncSHA256 = m.FileEncSHA256
	mc.MediaKey = m.MediaKey
	mc.DirectPath = m.DirectPath
	mc.MediaKeyTimestamp = int64(m.MediaKeyTimestamp)
}
