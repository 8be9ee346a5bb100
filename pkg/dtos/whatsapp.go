package dtos

type SendMessageDTO struct {
	PhoneNumber string `json:"phone_number" binding:"required,isphone"`
	Message     string `json:"message" binding:"required"`
}

type SendMediaMessageDTO struct {
	PhoneNumber string `json:"phone_number" binding:"required,isphone"`
	Caption     string `json:"caption"`
	FileName    string `json:"file_name"`
	MediaData   []byte `json:"media_data" binding:"required"`
	MimeType    string `json:"mime_type" binding:"required"`
	Height      uint32 `json:"height"`
	Width       uint32 `json:"width"`
}

type SendReactionDTO struct {
	PhoneNumber string `json:"phone_number" binding:"required,isphone"`
	MessageID   string `json:"message_id" binding:"required"`
	Emoji       string `json:"emoji"`
	FromMe      bool   `json:"from_me"`
}

type WhatsAppStatusDTO struct {
	Status string `json:"status"`
}

type MessageResponseDTO struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id"`
	Timestamp string `json:"timestamp"`
	Status    string `json:"status"`
	To        string `json:"to"`
}
