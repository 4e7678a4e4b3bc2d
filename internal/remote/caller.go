package remote

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/S1riyS/os-course-lab-4/networkfs/internal/config"
	"github.com/S1riyS/os-course-lab-4/networkfs/internal/pkg/kerrors"
	"github.com/S1riyS/os-course-lab-4/networkfs/pkg/binary"
	"github.com/S1riyS/os-course-lab-4/networkfs/pkg/logging"
	"github.com/S1riyS/os-course-lab-4/networkfs/pkg/logging/slogext"
	"golang.org/x/time/rate"
)

// Remote operation names
const (
	OpLookup = "lookup"
	OpList   = "list"
	OpCreate = "create"
	OpRead   = "read"
	OpWrite  = "write"
	OpUnlink = "unlink"
	OpRmdir  = "rmdir"
	OpLink   = "link"
)

// Request is one named remote operation. Capacity bounds the payload kept
// from the reply; zero means binary.ResponseCeiling. Only list replies need
// more.
type Request struct {
	Operation string
	Params    url.Values
	Capacity  int
}

// Response carries the filesystem-level status and the raw payload that
// followed it, cut at the request capacity.
type Response struct {
	Status  kerrors.Status
	Payload []byte
}

// Caller performs exactly one round trip per call, without retries. A
// non-nil error is always a *kerrors.TransportError; filesystem-level
// failures are reported through Response.Status.
type Caller interface {
	Call(ctx context.Context, token string, req *Request) (*Response, error)
}

type httpCaller struct {
	baseURL *url.URL
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPCaller returns a Caller speaking the remote store's HTTP API:
// GET {base_url}/{token}/fs/{operation}?{params}. A nil client means a fresh
// http.Client with the configured timeout.
func NewHTTPCaller(cfg config.RemoteConfig, client *http.Client) (Caller, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid remote base url %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid remote base url %q: scheme and host are required", cfg.BaseURL)
	}

	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &httpCaller{
		baseURL: base,
		client:  client,
		limiter: limiter,
	}, nil
}

func (c *httpCaller) Call(ctx context.Context, token string, req *Request) (*Response, error) {
	const op = "remote.httpCaller.Call"

	logger := logging.GetLoggerFromContextWithOp(ctx, op).With(slog.String("operation", req.Operation))

	capacity := req.Capacity
	if capacity <= 0 {
		capacity = binary.ResponseCeiling
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &kerrors.TransportError{Op: req.Operation, Err: err}
		}
	}

	endpoint := c.baseURL.JoinPath(token, "fs", req.Operation)
	endpoint.RawQuery = req.Params.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, &kerrors.TransportError{Op: req.Operation, Err: err}
	}
	if requestID := logging.GetRequestIDFromCtx(ctx); requestID != "" {
		httpReq.Header.Set(logging.RequestIDHeader, requestID)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		logger.Warn("Remote call failed", slogext.Err(err))
		return nil, &kerrors.TransportError{Op: req.Operation, Err: err}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		logger.Warn("Remote call returned unexpected HTTP status", slog.Int("http_status", resp.StatusCode))
		return nil, &kerrors.TransportError{
			Op:  req.Operation,
			Err: fmt.Errorf("unexpected HTTP status %s", resp.Status),
		}
	}

	// One extra byte tells a reply that fits exactly from one that overflows.
	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(binary.StatusSize+capacity+1)))
	if err != nil {
		return nil, &kerrors.TransportError{Op: req.Operation, Err: err}
	}

	status, payload, err := binary.SplitResponse(body)
	if err != nil {
		return nil, &kerrors.TransportError{Op: req.Operation, Err: err}
	}
	if len(payload) > capacity {
		logger.Warn("Remote payload truncated", slog.Int("capacity", capacity))
		payload = payload[:capacity]
	}

	logger.Debug("Remote call done",
		slog.String("status", kerrors.Status(status).String()),
		slog.Int("payload_len", len(payload)),
	)

	return &Response{Status: kerrors.Status(status), Payload: payload}, nil
}

// IsCanceled reports whether err was caused by the request context ending
// rather than by the remote store. A client timeout is not a cancellation.
func IsCanceled(ctx context.Context, err error) bool {
	return err != nil && ctx.Err() != nil
}
