package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elevare/server/internal/port/outbound"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const (
	defaultBaseURL    = "https://generativelanguage.googleapis.com"
	defaultTextModel  = "gemini-2.5-flash"
	defaultImageModel = "gemini-2.5-flash-image"
	defaultVideoModel = "veo-3.0-fast-generate-001"

	providerName  = "gemini"
	maxReplyBytes = 32 << 20
)

// Config configures the Gemini adapter.
type Config struct {
	BaseURL    string
	TextModel  string
	ImageModel string
	VideoModel string

	// Video operation polling: exponential backoff bounded by attempts and
	// total elapsed time.
	PollInitialInterval time.Duration
	PollMaxInterval     time.Duration
	PollMultiplier      float64
	PollMaxAttempts     int
	PollTimeout         time.Duration
	MaxVideoBytes       int64

	// Circuit breaker around every provider call.
	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.TextModel == "" {
		c.TextModel = defaultTextModel
	}
	if c.ImageModel == "" {
		c.ImageModel = defaultImageModel
	}
	if c.VideoModel == "" {
		c.VideoModel = defaultVideoModel
	}
	if c.PollInitialInterval <= 0 {
		c.PollInitialInterval = 10 * time.Second
	}
	if c.PollMaxInterval <= 0 {
		c.PollMaxInterval = 60 * time.Second
	}
	if c.PollMultiplier < 1 {
		c.PollMultiplier = 1.5
	}
	if c.PollMaxAttempts <= 0 {
		c.PollMaxAttempts = 60
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = 15 * time.Minute
	}
	if c.MaxVideoBytes <= 0 {
		c.MaxVideoBytes = 256 << 20
	}
	if c.BreakerMaxFailures == 0 {
		c.BreakerMaxFailures = 5
	}
	if c.BreakerOpenTimeout <= 0 {
		c.BreakerOpenTimeout = 30 * time.Second
	}
}

// CallRecorder observes provider traffic.
type CallRecorder interface {
	RecordProviderCall(provider, op, outcome string, d time.Duration)
	RecordPollAttempts(provider string, attempts int)
}

type nopRecorder struct{}

func (nopRecorder) RecordProviderCall(string, string, string, time.Duration) {}
func (nopRecorder) RecordPollAttempts(string, int)                          {}

// Adapter implements outbound.GenAIPort against the Gemini REST API.
type Adapter struct {
	client   *http.Client
	config   Config
	breaker  *gobreaker.CircuitBreaker[*reply]
	recorder CallRecorder
	logger   *zap.Logger
}

// reply is a fully read HTTP response.
type reply struct {
	status      int
	contentType string
	body        []byte
}

// NewAdapter creates a new Gemini adapter with the given HTTP client.
func NewAdapter(client *http.Client, cfg Config, logger *zap.Logger) *Adapter {
	cfg.applyDefaults()

	settings := gobreaker.Settings{
		Name:        providerName,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerMaxFailures
		},
		// Client errors are the caller's fault and must not open the circuit.
		IsSuccessful: func(err error) bool {
			return err == nil || !isTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("provider circuit breaker state changed",
				zap.String("provider", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &Adapter{
		client:   client,
		config:   cfg,
		breaker:  gobreaker.NewCircuitBreaker[*reply](settings),
		recorder: nopRecorder{},
		logger:   logger,
	}
}

// SetRecorder installs a provider call recorder. Nil restores the no-op.
func (a *Adapter) SetRecorder(r CallRecorder) {
	if r == nil {
		r = nopRecorder{}
	}
	a.recorder = r
}

// BreakerState returns the circuit breaker state.
func (a *Adapter) BreakerState() gobreaker.State {
	return a.breaker.State()
}

func (a *Adapter) modelURL(model, method string) string {
	return fmt.Sprintf("%s/v1beta/models/%s:%s", a.config.BaseURL, model, method)
}

// postJSON sends body as JSON and decodes a 2xx reply into out.
func (a *Adapter) postJSON(ctx context.Context, op, url, apiKey string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", op, err)
	}
	r, err := a.do(ctx, op, http.MethodPost, url, apiKey, payload, maxReplyBytes)
	if err != nil {
		return err
	}
	return decodeReply(op, r, out)
}

func (a *Adapter) getJSON(ctx context.Context, op, url, apiKey string, out any) error {
	r, err := a.do(ctx, op, http.MethodGet, url, apiKey, nil, maxReplyBytes)
	if err != nil {
		return err
	}
	return decodeReply(op, r, out)
}

func decodeReply(op string, r *reply, out any) error {
	if err := json.Unmarshal(r.body, out); err != nil {
		return &outbound.ProviderResponseError{Op: op, StatusCode: r.status, Reason: "malformed JSON", Err: err}
	}
	return nil
}

// do performs one request through the circuit breaker. Non-2xx replies
// become ProviderResponseError, transport failures NetworkError.
func (a *Adapter) do(ctx context.Context, op, method, url, apiKey string, payload []byte, limit int64) (r *reply, err error) {
	start := time.Now()
	defer func() {
		a.recorder.RecordProviderCall(providerName, op, callOutcome(err), time.Since(start))
	}()

	r, err = a.breaker.Execute(func() (*reply, error) {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return nil, fmt.Errorf("%s: create request: %w", op, err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("x-goog-api-key", apiKey)

		resp, err := a.client.Do(req)
		if err != nil {
			return nil, &outbound.NetworkError{Op: op, Err: err}
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
		if err != nil {
			return nil, &outbound.NetworkError{Op: op, Err: err}
		}
		if int64(len(data)) > limit {
			return nil, &outbound.ProviderResponseError{Op: op, StatusCode: resp.StatusCode, Reason: "reply too large"}
		}
		if resp.StatusCode >= 300 {
			return nil, &outbound.ProviderResponseError{
				Op:         op,
				StatusCode: resp.StatusCode,
				Reason:     errorMessage(data),
			}
		}
		return &reply{status: resp.StatusCode, contentType: resp.Header.Get("Content-Type"), body: data}, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &outbound.NetworkError{Op: op, Err: err}
		}
		return nil, err
	}
	return r, nil
}

func callOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case outbound.IsNetwork(err):
		return "network_error"
	default:
		return "provider_error"
	}
}

// isTransient reports whether a failure is worth retrying and counts
// against the circuit breaker.
func isTransient(err error) bool {
	if outbound.IsNetwork(err) {
		return true
	}
	var pe *outbound.ProviderResponseError
	if errors.As(err, &pe) {
		return pe.StatusCode == http.StatusTooManyRequests || pe.StatusCode >= 500
	}
	return false
}

// errorMessage extracts error.message from a Google API error body.
func errorMessage(body []byte) string {
	var e struct {
		Error struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		if e.Error.Status != "" {
			return e.Error.Status + ": " + e.Error.Message
		}
		return e.Error.Message
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

func requireKey(apiKey string) error {
	if strings.TrimSpace(apiKey) == "" {
		return &outbound.MissingCredentialError{Provider: providerName}
	}
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Compile-time check
var _ outbound.GenAIPort = (*Adapter)(nil)
