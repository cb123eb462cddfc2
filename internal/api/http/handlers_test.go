package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/jsrun/internal/api/middleware"
	"github.com/GriffinCanCode/jsrun/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/jsrun/internal/sandbox"
	"github.com/GriffinCanCode/jsrun/internal/testutil"
)

type testEnv struct {
	router   *gin.Engine
	examples string
	work     string
	logs     *observer.ObservedLogs
}

func newTestEnv(t *testing.T, opts Options, execOpts ...sandbox.Option) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{}
	env.examples, env.work = testutil.ModuleDirs(t)
	logger, logs := testutil.ObservedLogger(t)
	env.logs = logs

	resolver := testutil.NewResolver(t, env.examples, env.work)
	exec := sandbox.NewExecutor(sandbox.NewBuilder(resolver, nil, nil), execOpts...)
	h := NewHandlers(exec, logger, nil, opts)

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Recovery(logger))
	r.GET("/health", h.Health)
	r.POST("/run", h.Run)
	r.NoRoute(h.NotFound)
	env.router = r
	return env
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type wireResponse struct {
	OK     bool                `json:"ok"`
	Result interface{}         `json:"result"`
	Error  string              `json:"error"`
	Logs   []sandbox.LogRecord `json:"logs"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) wireResponse {
	t.Helper()
	var out wireResponse
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, Options{})

	w := env.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
	assert.Equal(t, contentTypeJSON, w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
}

func TestHealthUnderConcurrentLoad(t *testing.T) {
	env := newTestEnv(t, Options{})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			w := env.do(http.MethodGet, "/health", "")
			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, `{"ok":true}`, w.Body.String())
		}()
		go func() {
			defer wg.Done()
			env.do(http.MethodPost, "/run", `{"code":"var s = 0; for (var i = 0; i < 10000; i++) s += i; s"}`)
		}()
	}
	wg.Wait()
}

func TestRunScenarios(t *testing.T) {
	env := newTestEnv(t, Options{})

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "arithmetic",
			body:       `{"code": "1+1"}`,
			wantStatus: http.StatusOK,
			wantBody:   `{"ok":true,"result":2,"logs":[]}`,
		},
		{
			name:       "console then value",
			body:       `{"code": "console.log('hi'); 5"}`,
			wantStatus: http.StatusOK,
			wantBody:   `{"ok":true,"result":5,"logs":[{"level":"log","message":"hi"}]}`,
		},
		{
			name:       "no value is null",
			body:       `{"code": "var x = 1;"}`,
			wantStatus: http.StatusOK,
			wantBody:   `{"ok":true,"result":null,"logs":[]}`,
		},
		{
			name:       "object result",
			body:       `{"code": "({n: [1, 'two', null]})"}`,
			wantStatus: http.StatusOK,
			wantBody:   `{"ok":true,"result":{"n":[1,"two",null]},"logs":[]}`,
		},
		{
			name:       "all levels",
			body:       `{"code": "console.log(1); console.info(2); console.warn(3); console.error(4); 0"}`,
			wantStatus: http.StatusOK,
			wantBody: `{"ok":true,"result":0,"logs":[
				{"level":"log","message":"1"},
				{"level":"info","message":"2"},
				{"level":"warn","message":"3"},
				{"level":"error","message":"4"}]}`,
		},
		{
			name:       "missing code",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"ok":false,"error":"Missing code"}`,
		},
		{
			name:       "code not a string",
			body:       `{"code": 42}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"ok":false,"error":"Missing code"}`,
		},
		{
			name:       "code null",
			body:       `{"code": null}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"ok":false,"error":"Missing code"}`,
		},
		{
			name:       "body is an array",
			body:       `["1+1"]`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"ok":false,"error":"Missing code"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/run", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestRunGuestJSONOverrides(t *testing.T) {
	env := newTestEnv(t, Options{})
	testutil.WriteFile(t, env.examples, "data.json", `{"n": 3}`)

	tests := []struct {
		name     string
		code     string
		wantBody string
	}{
		{
			name:     "JSON rebound",
			code:     "var JSON = 1; 5",
			wantBody: `{"ok":true,"result":5,"logs":[]}`,
		},
		{
			name:     "stringify returns non-JSON",
			code:     "console.log('before'); JSON.stringify = function () { return 'not json' }; 5",
			wantBody: `{"ok":true,"result":5,"logs":[{"level":"log","message":"before"}]}`,
		},
		{
			name:     "stringify forges a result",
			code:     "JSON.stringify = function () { return '{\\\"forged\\\":true}' }; ({real: 1})",
			wantBody: `{"ok":true,"result":{"real":1},"logs":[]}`,
		},
		{
			name:     "parse replaced before JSON require",
			code:     "JSON.parse = function () { return 'forged' }; require('./data.json').n",
			wantBody: `{"ok":true,"result":3,"logs":[]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := sonic.MarshalString(map[string]string{"code": tt.code})
			require.NoError(t, err)
			w := env.do(http.MethodPost, "/run", body)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestRunInvalidJSON(t *testing.T) {
	env := newTestEnv(t, Options{})

	for _, body := range []string{"not json", `{"code": "1"`, ""} {
		w := env.do(http.MethodPost, "/run", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)

		resp := decode(t, w)
		assert.False(t, resp.OK)
		assert.True(t, strings.HasPrefix(resp.Error, "Invalid JSON: "), resp.Error)
		assert.Nil(t, resp.Logs)
	}
}

func TestRunThrow(t *testing.T) {
	env := newTestEnv(t, Options{})

	w := env.do(http.MethodPost, "/run", `{"code": "console.log('start'); throw new Error('boom')"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	resp := decode(t, w)
	assert.False(t, resp.OK)
	assert.Contains(t, resp.Error, "boom")
	assert.Contains(t, resp.Error, " | stack: ")
	require.Len(t, resp.Logs, 2)
	assert.Equal(t, sandbox.LogRecord{Level: sandbox.LevelLog, Message: "start"}, resp.Logs[0])
	assert.Equal(t, sandbox.LevelError, resp.Logs[1].Level)
	assert.Equal(t, resp.Error, resp.Logs[1].Message)
	assert.NotEmpty(t, w.Header().Get(HeaderExecutionTime))

	assert.Equal(t, 1, env.logs.FilterMessage("snippet execution failed").Len())
}

func TestRunSyntaxError(t *testing.T) {
	env := newTestEnv(t, Options{})

	w := env.do(http.MethodPost, "/run", `{"code": "function ("}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decode(t, w)
	assert.Contains(t, resp.Error, "SyntaxError")
	assert.Len(t, resp.Logs, 1)
}

func TestRunMissingSiblingModule(t *testing.T) {
	env := newTestEnv(t, Options{})

	w := env.do(http.MethodPost, "/run", `{"code": "require('./sibling.js')"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	resp := decode(t, w)
	assert.Contains(t, resp.Error, filepath.Join(env.examples, "sibling.js"))
	assert.Contains(t, resp.Error, filepath.Join(env.work, "sibling.js"))
}

func TestRunSiblingModule(t *testing.T) {
	env := newTestEnv(t, Options{})
	testutil.WriteFile(t, env.work, "sibling.js", "console.log('loading sibling'); module.exports = {v: 7};")

	w := env.do(http.MethodPost, "/run", `{"code": "require('./sibling.js').v * 6"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"result":42,"logs":[{"level":"log","message":"loading sibling"}]}`, w.Body.String())
}

func TestRunIdempotent(t *testing.T) {
	env := newTestEnv(t, Options{})
	body := `{"code": "[3, 1, 2].sort().join('-')"}`

	first := env.do(http.MethodPost, "/run", body)
	second := env.do(http.MethodPost, "/run", body)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
}

func TestRunHeaders(t *testing.T) {
	env := newTestEnv(t, Options{})

	w := env.do(http.MethodPost, "/run", `{"code": "1"}`)
	assert.NotEmpty(t, w.Header().Get(HeaderExecutionTime))
	assert.True(t, strings.HasPrefix(w.Header().Get(HeaderRequestID), "req_"))
}

func TestRunBodyTooLarge(t *testing.T) {
	env := newTestEnv(t, Options{MaxBodyBytes: 16})

	w := env.do(http.MethodPost, "/run", `{"code": "'this body is definitely longer than sixteen bytes'"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.JSONEq(t, `{"ok":false,"error":"Request body too large"}`, w.Body.String())
}

func TestRunTimeout(t *testing.T) {
	env := newTestEnv(t, Options{}, sandbox.WithTimeout(50*time.Millisecond))

	w := env.do(http.MethodPost, "/run", `{"code": "while (true) {}"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, decode(t, w).Error, "execution timeout exceeded")
}

func TestNotFound(t *testing.T) {
	env := newTestEnv(t, Options{})

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/"},
		{http.MethodGet, "/run"},
		{http.MethodPost, "/health"},
		{http.MethodPut, "/run"},
		{http.MethodDelete, "/anything"},
		{http.MethodPost, "/run/extra"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := env.do(tt.method, tt.path, "")
			assert.Equal(t, http.StatusNotFound, w.Code)
			assert.JSONEq(t, `{"ok":false,"error":"Not found"}`, w.Body.String())
		})
	}
}

func TestRespondOnlyOnce(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger, logs := testutil.ObservedLogger(t)
	h := NewHandlers(nil, logger, nil, Options{})

	r := gin.New()
	r.GET("/twice", func(c *gin.Context) {
		h.respond(c, http.StatusOK, HealthResponse{OK: true})
		h.respond(c, http.StatusInternalServerError, newErrorResponse("late", nil))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/twice", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
	assert.Equal(t, 1, logs.FilterMessage("response already sent, dropping second write").Len())
}

func TestRunInfrastructureFailures(t *testing.T) {
	gin.SetMode(gin.TestMode)

	post := func(runner Runner) *httptest.ResponseRecorder {
		h := NewHandlers(runner, nil, nil, Options{})
		r := gin.New()
		r.POST("/run", h.Run)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(`{"code":"1"}`)))
		return w
	}

	t.Run("no slot", func(t *testing.T) {
		runner := new(testutil.MockRunner)
		runner.On("Acquire", mock.Anything).Return(nil, sandbox.ErrExecutionSlot)

		w := post(runner)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, sandbox.ErrExecutionSlot.Error(), decode(t, w).Error)
		assert.NotContains(t, w.Body.String(), `"logs"`)
		runner.AssertNotCalled(t, "Build")
	})

	t.Run("build fails", func(t *testing.T) {
		runner := testutil.NewMockRunner(t)
		runner.On("Build").Return(nil, errors.New("runtime unavailable"))

		w := post(runner)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.JSONEq(t, `{"ok":false,"error":"runtime unavailable","logs":[]}`, w.Body.String())
		runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
	})

	t.Run("run refuses the context", func(t *testing.T) {
		evalCtx, err := sandbox.NewBuilder(nil, nil, nil).Build()
		require.NoError(t, err)

		runner := testutil.NewMockRunner(t)
		runner.On("Build").Return(evalCtx, nil)
		runner.On("Run", evalCtx, "1").Return(nil, sandbox.ErrContextUsed)

		w := post(runner)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, sandbox.ErrContextUsed.Error(), decode(t, w).Error)
		assert.Contains(t, w.Body.String(), `"logs":[]`)
		runner.AssertExpectations(t)
	})
}

func TestRunWithTracer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger, logs := testutil.ObservedLogger(t)
	tracer := tracing.New("jsrun", logger)
	h := NewHandlers(testutil.NewExecutor(t, t.TempDir()), nil, tracer, Options{})

	r := gin.New()
	r.Use(tracing.HTTPMiddleware(tracer))
	r.POST("/run", h.Run)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(`{"code":"1"}`)))
	assert.Equal(t, http.StatusOK, w.Code)

	tracer.Close()
	ops := map[string]bool{}
	for _, entry := range logs.FilterMessage("span completed").All() {
		ops[entry.ContextMap()["operation"].(string)] = true
	}
	assert.True(t, ops["sandbox.execute"])
	assert.True(t, ops["POST /run"])
}

func TestDecodeRequest(t *testing.T) {
	code, err := decodeRequest([]byte(`{"code":"1+1","extra":true}`))
	require.NoError(t, err)
	assert.Equal(t, "1+1", code)

	_, err = decodeRequest([]byte(`{"code":""}`))
	assert.NoError(t, err)

	_, err = decodeRequest([]byte(`nope`))
	assert.ErrorIs(t, err, ErrInvalidJSON)

	_, err = decodeRequest([]byte(`"just a string"`))
	assert.ErrorIs(t, err, ErrMissingCode)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "building_context", PhaseBuildingContext.String())
	assert.Equal(t, "failed", PhaseFailed.String())
	assert.Equal(t, "phase(99)", Phase(99).String())
}
