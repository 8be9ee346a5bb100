package constant

const (
	INVALID_REQUEST      = "Invalid request payload"
	SOMETHING_WENT_WRONG = "something went wrong"
	INVALID_TOKEN        = "Invalid or expired token"
	TOKEN_EXPIRED        = "Token has expired"
	TOKEN_REQUIRED       = "Token is required"
	MALFORMED_TOKEN      = "Invalid/Malformed auth token"
)
