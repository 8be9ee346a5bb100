package state

import (
	"context"
)

const (
	CurrentIP      = "CurrentIP"
	RequestID      = "RequestID"
	CurrentSubject = "CurrentSubject"
)

// GetRequestID returns the request id stored on ctx, or "" when absent.
func GetRequestID(ctx context.Context) string {
	value := ctx.Value(RequestID)
	if value == nil {
		return ""
	}

	id, ok := value.(string)
	if !ok {
		return ""
	}

	return id
}
