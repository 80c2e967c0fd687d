// Package quote retrieves bridge call-data from the gas.zip quote service.
package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ligun0805/bridge-sender/internal/ctxwait"
	"github.com/ligun0805/bridge-sender/internal/proxy"
)

const (
	DefaultURL       = "https://backend.gas.zip/v2/quotes/{source}/{value}/{destination}"
	DefaultTimeout   = 10 * time.Second
	DefaultRounds    = 3
	DefaultBackoff   = 2 * time.Second
	maxErrBodyLength = 256
	maxBodyBytes     = 1 << 20
)

// CallDataKeys are the response fields that may carry the call-data, in
// lookup order.
var CallDataKeys = []string{"calldata", "callData", "call_data", "data"}

type Config struct {
	// URL templates tried in order within a round. Placeholders:
	// {value} (amount in wei), {source} and {destination} (chain ids).
	URLs             []string
	SourceChain      int64
	DestinationChain int64
	Timeout          time.Duration
	Rounds           int
	Backoff          time.Duration
	// RequestsPerSecond paces outgoing quote requests across all callers.
	// Zero disables pacing.
	RequestsPerSecond float64
}

type Request struct {
	From      common.Address
	To        common.Address
	AmountWei *big.Int
	// Proxy routes the request; nil goes direct.
	Proxy *proxy.Endpoint
}

// Attempt records the fate of one (round, candidate) pair.
type Attempt struct {
	Round     int
	Candidate int
	URL       string
	Err       error
	Timeout   bool
}

type Result struct {
	CallData []byte
	Attempts []Attempt
}

type Fetcher struct {
	cfg     Config
	limiter *rate.Limiter
	log     *zap.Logger
	sleep   func(context.Context, time.Duration) error
}

func NewFetcher(cfg Config, log *zap.Logger) *Fetcher {
	if len(cfg.URLs) == 0 {
		cfg.URLs = []string{DefaultURL}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Rounds <= 0 {
		cfg.Rounds = DefaultRounds
	}
	if cfg.Backoff < 0 {
		cfg.Backoff = 0
	}
	if log == nil {
		log = zap.NewNop()
	}
	f := &Fetcher{cfg: cfg, log: log.Named("quote"), sleep: ctxwait.Sleep}
	if cfg.RequestsPerSecond > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return f
}

// FetchCallData returns the call-data for req or an error wrapping
// ErrRetrievalExhausted.
func (f *Fetcher) FetchCallData(ctx context.Context, req Request) ([]byte, error) {
	res, err := f.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.CallData, nil
}

// Fetch walks up to cfg.Rounds rounds over the candidate URLs and returns on
// the first candidate that yields call-data. Non-timeout failures also move
// on to the next round; only a round of pure timeouts waits cfg.Backoff.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (Result, error) {
	if req.AmountWei == nil || req.AmountWei.Sign() <= 0 {
		return Result{}, errors.New("quote: amount must be positive")
	}
	client, closeIdle := f.clientFor(req.Proxy)
	defer closeIdle()

	var res Result
	var last error
	for round := 1; round <= f.cfg.Rounds; round++ {
		allTimedOut := true
		for i, tmpl := range f.cfg.URLs {
			u := f.expand(tmpl, req.AmountWei)
			data, err := f.try(ctx, client, u, req)
			if err == nil {
				res.CallData = data
				res.Attempts = append(res.Attempts, Attempt{Round: round, Candidate: i, URL: u})
				return res, nil
			}
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			timeout := isTimeout(err)
			if !timeout {
				allTimedOut = false
			}
			res.Attempts = append(res.Attempts, Attempt{Round: round, Candidate: i, URL: u, Err: err, Timeout: timeout})
			last = err
			if timeout {
				f.log.Warn("Timeout while creating quote, retrying",
					zap.String("target", req.To.Hex()), zap.Int("round", round), zap.String("url", u))
			} else {
				f.log.Warn("Quote candidate failed",
					zap.String("target", req.To.Hex()), zap.Int("round", round), zap.String("url", u), zap.Error(err))
			}
		}
		if allTimedOut && round < f.cfg.Rounds && f.cfg.Backoff > 0 {
			if err := f.sleep(ctx, f.cfg.Backoff); err != nil {
				return res, err
			}
		}
	}
	return res, &ExhaustedError{Rounds: f.cfg.Rounds, Last: last}
}

func (f *Fetcher) expand(tmpl string, amountWei *big.Int) string {
	return strings.NewReplacer(
		"{value}", amountWei.String(),
		"{source}", strconv.FormatInt(f.cfg.SourceChain, 10),
		"{destination}", strconv.FormatInt(f.cfg.DestinationChain, 10),
	).Replace(tmpl)
}

func (f *Fetcher) clientFor(ep *proxy.Endpoint) (*http.Client, func()) {
	tr := &http.Transport{
		MaxIdleConns:        10,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	if ep != nil {
		tr.Proxy = http.ProxyURL(ep.URL())
	}
	return &http.Client{Timeout: f.cfg.Timeout, Transport: tr}, tr.CloseIdleConnections
}

func (f *Fetcher) try(ctx context.Context, client *http.Client, rawURL string, req Request) ([]byte, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	q := hreq.URL.Query()
	q.Set("from", req.From.Hex())
	q.Set("to", req.To.Hex())
	hreq.URL.RawQuery = q.Encode()
	hreq.Header.Set("Accept", "application/json")

	resp, err := client.Do(hreq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, clip(body))
	}
	return parseCallData(body)
}

func parseCallData(body []byte) ([]byte, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	if raw, ok := doc["error"]; ok && !isEmptyJSON(raw) {
		return nil, fmt.Errorf("service error: %s", jsonText(raw))
	}
	if raw, ok := doc["message"]; ok && errorFlagged(doc) {
		return nil, fmt.Errorf("service message: %s", jsonText(raw))
	}
	for _, key := range CallDataKeys {
		raw, ok := doc[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || strings.TrimSpace(s) == "" {
			continue
		}
		s = strings.TrimSpace(s)
		if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
			s = "0x" + s
		}
		data, err := hexutil.Decode(s)
		if err != nil {
			return nil, fmt.Errorf("bad %s: %w", key, err)
		}
		return data, nil
	}
	return nil, errors.New("failed to get quote data: no call-data in response")
}

// errorFlagged reports whether a "message" field should be read as an error:
// success=false or a status of "error"/"fail".
func errorFlagged(doc map[string]json.RawMessage) bool {
	if raw, ok := doc["success"]; ok {
		var b bool
		if json.Unmarshal(raw, &b) == nil && !b {
			return true
		}
	}
	if raw, ok := doc["status"]; ok {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			switch strings.ToLower(s) {
			case "error", "fail", "failed":
				return true
			}
		}
	}
	return false
}

func isEmptyJSON(raw json.RawMessage) bool {
	switch strings.TrimSpace(string(raw)) {
	case "", "null", "false", `""`, "{}", "[]":
		return true
	}
	return false
}

func jsonText(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return clip(raw)
}

func clip(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrBodyLength {
		return s[:maxErrBodyLength] + "..."
	}
	return s
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
