package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/jsrun/internal/infrastructure/resilience"
)

var (
	ErrUnhealthy  = errors.New("server is not healthy")
	ErrBadPayload = errors.New("unexpected response payload")
)

// StatusError is a response whose status or body is outside the run
// contract, e.g. 503 when no execution slot was free.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// LogRecord mirrors one captured console call.
type LogRecord struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Response is a decoded /run payload. OK false with Error set is a snippet
// failure, not a client error.
type Response struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
	Logs   []LogRecord     `json:"logs,omitempty"`

	StatusCode    int             `json:"-"`
	RequestID     string          `json:"-"`
	ExecutionTime string          `json:"-"`
	Raw           json.RawMessage `json:"-"` // body as sent by the server
}

// Config defines client behaviour.
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	Retries      int // retries of 429/503 answers, which never ran the snippet
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	RateLimit    float64 // requests per second, 0 = unlimited
	Logger       *zap.Logger
}

// DefaultConfig targets a local server on the default port.
func DefaultConfig() Config {
	return Config{
		BaseURL:      "http://127.0.0.1:3210",
		Timeout:      30 * time.Second,
		Retries:      2,
		RetryWaitMin: 100 * time.Millisecond,
		RetryWaitMax: 2 * time.Second,
	}
}

// Client talks to a jsrun server, with rate limiting and a circuit breaker.
type Client struct {
	resty   *resty.Client
	retry   *retryablehttp.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	logger  *zap.Logger
	base    string
	mu      sync.RWMutex
}

// New creates a client from cfg; zero fields take DefaultConfig values.
func New(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RetryWaitMin <= 0 {
		cfg.RetryWaitMin = def.RetryWaitMin
	}
	if cfg.RetryWaitMax <= 0 {
		cfg.RetryWaitMax = def.RetryWaitMax
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	base := strings.TrimRight(cfg.BaseURL, "/")

	retryClient := retryablehttp.NewClient()
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.HTTPClient.Timeout = cfg.Timeout
	retryClient.Logger = leveledLogger{cfg.Logger.Sugar()}

	restyClient := resty.New().
		SetBaseURL(base).
		SetTimeout(cfg.Timeout).
		SetTransport(retryClient.HTTPClient.Transport).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(cfg.RetryWaitMin).
		SetRetryMaxWaitTime(cfg.RetryWaitMax).
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal).
		SetHeader("User-Agent", "jsrun-client/1.0").
		SetHeader("Accept", "application/json")
	restyClient.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil || r == nil {
			return false
		}
		code := r.StatusCode()
		return code == http.StatusServiceUnavailable || code == http.StatusTooManyRequests
	})

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(1, int(cfg.RateLimit)))
	}

	logger := cfg.Logger
	breaker := resilience.New("jsrun-remote", resilience.Settings{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c resilience.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		IsSuccessful: remoteHealthy,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
	})

	return &Client{
		resty:   restyClient,
		retry:   retryClient,
		limiter: limiter,
		breaker: breaker,
		logger:  logger,
		base:    base,
	}
}

// remoteHealthy reports whether err says nothing bad about the server.
// Answers below 500 mean it is up and judging requests.
func remoteHealthy(err error) bool {
	if err == nil {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.Code < http.StatusInternalServerError
}

// BaseURL returns the server root the client talks to.
func (c *Client) BaseURL() string {
	return c.base
}

// Breaker exposes the circuit breaker state for callers that report it.
func (c *Client) Breaker() *resilience.Breaker {
	return c.breaker
}

// SetHeader adds a default header to every request.
func (c *Client) SetHeader(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resty.SetHeader(key, value)
}

// Run posts code to /run. A snippet that throws yields a Response with OK
// false and a nil error.
func (c *Client) Run(ctx context.Context, code string) (*Response, error) {
	return resilience.Execute(c.breaker, func() (*Response, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		c.mu.RLock()
		req := c.resty.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(map[string]string{"code": code})
		c.mu.RUnlock()

		resp, err := req.Post("/run")
		if err != nil {
			return nil, fmt.Errorf("run request failed: %w", err)
		}
		return decodeRun(resp)
	})
}

func decodeRun(resp *resty.Response) (*Response, error) {
	code := resp.StatusCode()
	switch code {
	case http.StatusOK, http.StatusBadRequest, http.StatusInternalServerError:
	default:
		return nil, &StatusError{Code: code, Body: strings.TrimSpace(resp.String())}
	}

	var out Response
	if err := sonic.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if code == http.StatusOK && !out.OK {
		return nil, fmt.Errorf("%w: status 200 without ok", ErrBadPayload)
	}
	out.StatusCode = code
	out.Raw = append(json.RawMessage(nil), resp.Body()...)
	out.RequestID = resp.Header().Get("X-Request-ID")
	out.ExecutionTime = resp.Header().Get("X-Execution-Time")
	return &out, nil
}

// Health performs one GET /health.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.resty.R().SetContext(ctx).Get("/health")
	if err != nil {
		return fmt.Errorf("health request failed: %w", err)
	}
	return checkHealth(resp.StatusCode(), resp.Body())
}

// WaitHealthy polls /health until it answers ok, retrying connection errors
// and 5xx answers up to attempts times.
func (c *Client) WaitHealthy(ctx context.Context, attempts int) error {
	c.mu.Lock()
	c.retry.RetryMax = attempts
	c.mu.Unlock()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.base+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.retry.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnhealthy, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnhealthy, err)
	}
	return checkHealth(resp.StatusCode, body)
}

func checkHealth(status int, body []byte) error {
	if status != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, status)
	}
	var payload struct {
		OK bool `json:"ok"`
	}
	if err := sonic.Unmarshal(body, &payload); err != nil || !payload.OK {
		return fmt.Errorf("%w: %s", ErrUnhealthy, strings.TrimSpace(string(body)))
	}
	return nil
}

// leveledLogger routes retryablehttp's logging into zap.
type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.s.Infow(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
