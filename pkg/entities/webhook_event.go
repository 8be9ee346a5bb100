package entities

import (
	"time"

	"gorm.io/datatypes"
)

// WebhookEvent is one persisted inbound provider notification. MessageID is
// nil for payloads that carry no message identifier; the unique index only
// constrains non-null values.
type WebhookEvent struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	EventType      string    `json:"event_type" gorm:"type:varchar(100);index"`
	InstanceID     string    `json:"instance_id" gorm:"type:varchar(255)"`
	ConnectedPhone string    `json:"connected_phone" gorm:"type:varchar(50)"`
	MessageID      *string   `json:"message_id" gorm:"type:varchar(255);uniqueIndex"`
	FromMe         bool      `json:"from_me" gorm:"default:false;index"`
	FromAPI        bool      `json:"from_api" gorm:"default:false"`
	IsGroup        bool      `json:"is_group" gorm:"default:false;index"`
	Moment         int64     `json:"moment"`
	ReceivedAt     time.Time `json:"received_at" gorm:"not null;index"`
	RawPayload     string    `json:"raw_payload" gorm:"type:text"`

	// Relations
	Chat    *Chat           `json:"chat,omitempty" gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE"`
	Sender  *Sender         `json:"sender,omitempty" gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE"`
	Content *MessageContent `json:"content,omitempty" gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE"`
}

type Chat struct {
	ID             uint   `json:"id" gorm:"primaryKey"`
	EventID        uint   `json:"event_id" gorm:"uniqueIndex;not null"`
	ChatID         string `json:"chat_id" gorm:"type:varchar(255);index"`
	IsGroup        bool   `json:"is_group" gorm:"default:false"`
	GroupName      string `json:"group_name" gorm:"type:varchar(255)"`
	ProfilePicture string `json:"profile_picture" gorm:"type:text"`
}

type Sender struct {
	ID              uint   `json:"id" gorm:"primaryKey"`
	EventID         uint   `json:"event_id" gorm:"uniqueIndex;not null"`
	SenderID        string `json:"sender_id" gorm:"type:varchar(255);index"`
	PushName        string `json:"push_name" gorm:"type:varchar(255)"`
	VerifiedBizName string `json:"verified_biz_name" gorm:"type:varchar(255)"`
	ProfilePicture  string `json:"profile_picture" gorm:"type:text"`
}

// MessageContent carries exactly one populated content family, tagged by
// ContentType. RawContent keeps the provider's content object verbatim.
type MessageContent struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	EventID     uint   `json:"event_id" gorm:"uniqueIndex;not null"`
	ContentType string `json:"content_type" gorm:"type:varchar(20);index"`

	Text string `json:"text" gorm:"type:text"`

	URL        string `json:"url" gorm:"type:text"`
	Mimetype   string `json:"mimetype" gorm:"type:varchar(100)"`
	Caption    string `json:"caption" gorm:"type:text"`
	FileLength int64  `json:"file_length"`
	Height     int    `json:"height"`
	Width      int    `json:"width"`
	Seconds    int    `json:"seconds"`
	PTT        bool   `json:"ptt"`
	IsAnimated bool   `json:"is_animated"`

	FileName  string `json:"file_name" gorm:"type:varchar(255)"`
	Title     string `json:"title" gorm:"type:varchar(255)"`
	PageCount int    `json:"page_count"`

	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	LocationName string  `json:"location_name" gorm:"type:varchar(255)"`
	Address      string  `json:"address" gorm:"type:text"`

	FileSHA256        string `json:"file_sha256" gorm:"type:varchar(128)"`
	FileEncSHA256     string `json:"file_enc_sha256" gorm:"type:varchar(128)"`
	MediaKey          string `json:"media_key" gorm:"type:varchar(128)"`
	DirectPath        string `json:"direct_path" gorm:"type:text"`
	MediaKeyTimestamp int64  `json:"media_key_timestamp"`

	RawContent datatypes.JSON `json:"raw_content"`
}

func (MessageContent) TableName() string { return "message_contents" }
