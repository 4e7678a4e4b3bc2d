package logging

import (
	"context"

	"github.com/google/uuid"
)

// RequestIDHeader carries the request id of a kernel request to the remote
// store, so that both sides can be correlated.
const RequestIDHeader = "X-Request-ID"

// GetRequestIDFromCtx returns the request id of ctx, or "" when it has none.
func GetRequestIDFromCtx(ctx context.Context) string {
	requestID, _ := ctx.Value(reqKey).(string)
	return requestID
}

func MakeContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, reqKey, requestID)
}

// MakeContextWithNewRequestID tags ctx with a fresh request id. The ids are
// time-ordered, so sorting them sorts requests by arrival.
func MakeContextWithNewRequestID(ctx context.Context) context.Context {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return MakeContextWithRequestID(ctx, id.String())
}
