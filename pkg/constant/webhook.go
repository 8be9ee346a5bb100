package constant

// Ingestion outcome reasons reported in the webhook response envelope.
const (
	REASON_SAVED          = "saved"
	REASON_DUPLICATE      = "duplicate"
	REASON_NOT_RECOGNIZED = "not_recognized"
	REASON_STORE_ERROR    = "store_error"
	REASON_NOT_JSON       = "not_json"
	REASON_TOO_LARGE      = "too_large"
	REASON_READ_ERROR     = "read_error"
)

const (
	WEBHOOK_RECEIVED  = "received"
	REQUESTS_CLEARED  = "Captured requests cleared"
	INVALID_QUERY     = "invalid query parameter %s"
	STORE_UNAVAILABLE = "event store unavailable"
)

// Content families of a stored message.
const (
	CONTENT_TEXT     = "text"
	CONTENT_STICKER  = "sticker"
	CONTENT_IMAGE    = "image"
	CONTENT_VIDEO    = "video"
	CONTENT_AUDIO    = "audio"
	CONTENT_DOCUMENT = "document"
	CONTENT_LOCATION = "location"
	CONTENT_UNKNOWN  = "unknown"
)
