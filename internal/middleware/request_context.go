package middleware

import (
	"context"
	"time"

	"github.com/S1riyS/os-course-lab-4/networkfs/pkg/logging"
)

// requestContext is done when the kernel interrupts the request. Values
// come from the session context, so loggers stored there stay reachable.
type requestContext struct {
	values context.Context
	cancel <-chan struct{}
}

var _ context.Context = requestContext{}

func (ctx requestContext) Deadline() (time.Time, bool) {
	var t time.Time
	return t, false
}

func (ctx requestContext) Done() <-chan struct{} {
	return ctx.cancel
}

func (ctx requestContext) Err() error {
	select {
	case <-ctx.cancel:
		return context.Canceled
	default:
		return nil
	}
}

func (ctx requestContext) Value(key any) any {
	return ctx.values.Value(key)
}

// NewRequestContext derives the context of one kernel request from the
// session context base and the cancellation channel go-fuse hands to every
// callback. Each request gets a fresh request id unless base carries one.
func NewRequestContext(base context.Context, cancel <-chan struct{}) context.Context {
	var ctx context.Context = requestContext{values: base, cancel: cancel}

	if logging.GetRequestIDFromCtx(base) != "" {
		return ctx
	}
	return logging.MakeContextWithNewRequestID(ctx)
}
