package constant

const (
	WHATSAPP_CONNECTED    = "WhatsApp connected successfully"
	WHATSAPP_DISCONNECTED = "WhatsApp disconnected successfully"
	MESSAGE_SENT          = "Message sent successfully"
	MEDIA_SENT            = "Media message sent successfully"
	REACTION_SENT         = "Reaction sent successfully"
	QR_CODE_GENERATED     = "QR code generated successfully"

	WHATSAPP_NOT_CONNECTED = "WhatsApp client not connected"
	WHATSAPP_DISABLED      = "WhatsApp client disabled"
	WHATSAPP_NOT_LOGGED_IN = "not logged in to WhatsApp. Please scan QR code first"
	INVALID_PHONE_NUMBER   = "Invalid phone number format"
	MEDIA_UPLOAD_FAILED    = "Failed to upload media"
	FILE_READ_FAILED       = "Failed to read file data"
)
