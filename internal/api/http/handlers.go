package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/jsrun/internal/api/middleware"
	"github.com/GriffinCanCode/jsrun/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/jsrun/internal/sandbox"
)

// Runner is the execution surface the run handler drives, one step per phase.
type Runner interface {
	Acquire(ctx context.Context) (release func(), err error)
	Build() (*sandbox.Context, error)
	Run(c *sandbox.Context, source string) (*sandbox.Result, error)
}

// Options tune request handling.
type Options struct {
	MaxBodyBytes int64 // 0 means unbounded
}

// Handlers contains all HTTP handlers
type Handlers struct {
	runner Runner
	logger *zap.Logger
	tracer *tracing.Tracer
	opts   Options
}

// NewHandlers creates a new handler set. tracer may be nil.
func NewHandlers(runner Runner, logger *zap.Logger, tracer *tracing.Tracer, opts Options) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		runner: runner,
		logger: logger,
		tracer: tracer,
		opts:   opts,
	}
}

// Health always reports ok.
func (h *Handlers) Health(c *gin.Context) {
	h.respond(c, http.StatusOK, HealthResponse{OK: true})
}

// NotFound answers every unmatched method and path.
func (h *Handlers) NotFound(c *gin.Context) {
	h.respond(c, http.StatusNotFound, newErrorResponse("Not found", nil))
}

// run tracks one request through its phases.
type run struct {
	h     *Handlers
	c     *gin.Context
	phase Phase
	start time.Time
}

func (r *run) enter(p Phase) {
	r.phase = p
	r.h.logger.Debug("run phase",
		zap.String("request_id", requestID(r.c)),
		zap.Stringer("phase", p))
}

// fail short-circuits to Responding with an error payload.
func (r *run) fail(status int, msg string, logs []sandbox.LogRecord) {
	failedIn := r.phase
	r.enter(PhaseFailed)
	r.enter(PhaseResponding)
	r.h.logger.Debug("run failed",
		zap.String("request_id", requestID(r.c)),
		zap.Stringer("failed_in", failedIn),
		zap.Int("status", status))
	r.h.respond(r.c, status, newErrorResponse(msg, logs))
	r.enter(PhaseDone)
}

// Run executes the snippet in the request body exactly once.
func (h *Handlers) Run(c *gin.Context) {
	r := &run{h: h, c: c, start: time.Now()}
	r.enter(PhaseReceived)

	r.enter(PhaseParsing)
	body, err := h.readBody(c)
	if err != nil {
		if errors.Is(err, ErrBodyTooLarge) {
			r.fail(http.StatusRequestEntityTooLarge, clientMessage(err), nil)
			return
		}
		h.logger.Error("failed to read request body", zap.Error(err))
		r.fail(http.StatusInternalServerError, "Failed to read request body: "+err.Error(), []sandbox.LogRecord{})
		return
	}

	code, err := decodeRequest(body)
	if err != nil {
		r.fail(http.StatusBadRequest, clientMessage(err), nil)
		return
	}

	ctx := c.Request.Context()
	release, err := h.runner.Acquire(ctx)
	if err != nil {
		h.logger.Warn("no execution slot", zap.Error(err))
		r.fail(http.StatusServiceUnavailable, err.Error(), nil)
		return
	}
	defer release()

	r.enter(PhaseBuildingContext)
	evalCtx, err := h.runner.Build()
	if err != nil {
		h.logger.Error("failed to build evaluation context", zap.Error(err))
		r.fail(http.StatusInternalServerError, err.Error(), []sandbox.LogRecord{})
		return
	}
	defer evalCtx.Close()

	r.enter(PhaseExecuting)
	res, err := h.execute(ctx, evalCtx, code)
	if res != nil {
		c.Header(HeaderExecutionTime, formatMillis(res.Duration))
	}
	if err != nil {
		var execErr *sandbox.ExecutionError
		if !errors.As(err, &execErr) || res == nil {
			h.logger.Error("execution did not run", zap.Error(err))
			r.fail(http.StatusInternalServerError, err.Error(), []sandbox.LogRecord{})
			return
		}
		h.logger.Warn("snippet execution failed",
			zap.String("request_id", requestID(c)),
			zap.String("execution_id", res.ID.String()),
			zap.String("error", execErr.Message))
		r.fail(http.StatusInternalServerError, execErr.Error(), res.Logs)
		return
	}

	r.enter(PhaseResponding)
	h.respond(c, http.StatusOK, RunResponse{OK: true, Result: res.Value, Logs: res.Logs})
	r.enter(PhaseDone)

	h.logger.Debug("snippet executed",
		zap.String("request_id", requestID(c)),
		zap.String("execution_id", res.ID.String()),
		zap.Duration("duration", res.Duration),
		zap.Duration("total", time.Since(r.start)))
}

// execute runs the snippet under a child span when tracing is enabled.
func (h *Handlers) execute(ctx context.Context, evalCtx *sandbox.Context, code string) (*sandbox.Result, error) {
	if h.tracer == nil {
		return h.runner.Run(evalCtx, code)
	}

	span, _ := h.tracer.StartSpan(ctx, "sandbox.execute")
	res, err := h.runner.Run(evalCtx, code)
	if res != nil {
		span.SetTag("execution_id", res.ID.String())
		span.SetTag("logs", strconv.Itoa(len(res.Logs)))
	}
	if err != nil {
		span.SetError(err)
	} else {
		span.SetStatus(http.StatusOK)
	}
	span.Finish()
	h.tracer.Submit(span)
	return res, err
}

// readBody reads the whole body before anything else happens.
func (h *Handlers) readBody(c *gin.Context) ([]byte, error) {
	reader := c.Request.Body
	if reader == nil {
		return nil, nil
	}
	if h.opts.MaxBodyBytes > 0 {
		reader = http.MaxBytesReader(c.Writer, reader, h.opts.MaxBodyBytes)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, ErrBodyTooLarge
		}
		return nil, err
	}
	return body, nil
}

// respond writes exactly one JSON response. A second attempt for the same
// request is logged and dropped.
func (h *Handlers) respond(c *gin.Context, status int, payload interface{}) {
	if c.Writer.Written() {
		h.logger.Warn("response already sent, dropping second write",
			zap.String("request_id", requestID(c)),
			zap.Int("status", status))
		return
	}

	body, err := sonic.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
		status, body = http.StatusInternalServerError, fallbackBody
	}
	c.Data(status, contentTypeJSON, body)
}

func requestID(c *gin.Context) string {
	return c.GetString(middleware.RequestIDKey)
}

func formatMillis(d time.Duration) string {
	return strconv.FormatFloat(float64(d)/float64(time.Millisecond), 'f', 3, 64)
}
