package bridgecore

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/ligun0805/bridge-sender/internal/ctxwait"
)

const (
	rpcMaxAttempts  = 3
	rpcBaseBackoff  = 200 * time.Millisecond
	rpcBackoffLimit = 2 * time.Second
)

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "Too Many Requests") || strings.Contains(s, "-32005")
}

// isTransientNetworkError detects short-lived provider/transport failures worth retrying.
func isTransientNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	s := strings.ToLower(err.Error())
	for _, frag := range []string{
		"client.timeout exceeded", "i/o timeout", "tls handshake timeout",
		"eof", "connection reset", "connection refused", "502", "503", "504",
	} {
		if strings.Contains(s, frag) {
			return true
		}
	}
	return false
}

// classifyRPCError returns a coarse class for RPC transport errors.
func classifyRPCError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "rpc_timeout"
	case isRateLimitError(err):
		return "rpc_rate_limited"
	case isTransientNetworkError(err):
		return "rpc_unavailable"
	}
	return "rpc_error"
}

// withRetry runs a read-only RPC call, retrying transient and rate-limit
// failures with a small backoff that doubles on rate limiting.
func withRetry[T any](ctx context.Context, call func(context.Context) (T, error)) (T, error) {
	backoff := rpcBaseBackoff
	var (
		zero    T
		lastErr error
	)
	for attempt := 1; attempt <= rpcMaxAttempts; attempt++ {
		v, err := call(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if ctx.Err() != nil || !(isTransientNetworkError(err) || isRateLimitError(err)) {
			break
		}
		if attempt < rpcMaxAttempts {
			if serr := ctxwait.Sleep(ctx, backoff); serr != nil {
				return zero, serr
			}
			if isRateLimitError(err) && backoff < rpcBackoffLimit {
				backoff *= 2
			}
		}
	}
	return zero, lastErr
}
