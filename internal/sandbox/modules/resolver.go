package modules

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

var (
	ErrModuleNotFound      = errors.New("module not found")
	ErrHostModulesDisabled = errors.New("host modules are disabled")
)

// NotFoundError reports a specifier that matched no file under any base.
type NotFoundError struct {
	Specifier string
	Tried     []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("module not found: %q (tried %s)", e.Specifier, strings.Join(e.Tried, ", "))
}

func (e *NotFoundError) Unwrap() error { return ErrModuleNotFound }

// Config controls where modules are looked up.
type Config struct {
	ExamplesDir        string
	WorkDir            string // defaults to the process working directory
	NodeModulesDir     string
	HostModulesEnabled bool
}

// Observer is told about every completed load attempt.
type Observer func(kind Kind, err error)

// Option customises a Resolver.
type Option func(*Resolver)

// WithLogger sets the resolver's logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// WithObserver registers a load observer, typically a metrics hook.
func WithObserver(o Observer) Option {
	return func(r *Resolver) { r.observe = o }
}

// WithNative registers (or replaces) a host module.
func WithNative(name string, m NativeModule) Option {
	return func(r *Resolver) { r.natives[name] = m }
}

// Resolver turns specifiers into loaded module values. It is safe for
// concurrent use; per-runtime state lives in Loader.
type Resolver struct {
	cfg     Config
	cache   *Cache
	natives map[string]NativeModule
	logger  *zap.Logger
	observe Observer
}

// NewResolver creates a resolver. Relative directories in cfg are made absolute.
func NewResolver(cfg Config, opts ...Option) (*Resolver, error) {
	if cfg.WorkDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to determine working directory: %w", err)
		}
		cfg.WorkDir = wd
	}
	for _, p := range []*string{&cfg.ExamplesDir, &cfg.WorkDir, &cfg.NodeModulesDir} {
		if *p == "" || filepath.IsAbs(*p) {
			continue
		}
		abs, err := filepath.Abs(*p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %q: %w", *p, err)
		}
		*p = abs
	}

	r := &Resolver{
		cfg:     cfg,
		cache:   NewCache(),
		natives: DefaultNatives(),
		logger:  zap.NewNop(),
		observe: func(Kind, error) {},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Cache exposes the load bookkeeping shared by every context.
func (r *Resolver) Cache() *Cache {
	return r.cache
}

// Config returns the effective configuration.
func (r *Resolver) Config() Config {
	return r.cfg
}

// IsRelative reports whether specifier is a sandboxed relative load.
func IsRelative(specifier string) bool {
	return strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../")
}

// Resolve joins specifier onto each base in order and returns the first
// existing file. The error lists every attempted path.
func (r *Resolver) Resolve(specifier string, bases ...string) (string, error) {
	tried := make([]string, 0, len(bases))
	for _, base := range bases {
		candidate := filepath.Join(base, specifier)
		tried = append(tried, candidate)
		if found, ok := probe(candidate); ok {
			return found, nil
		}
	}
	return "", &NotFoundError{Specifier: specifier, Tried: tried}
}

func (r *Resolver) snippetBases() []string {
	return []string{r.cfg.ExamplesDir, r.cfg.WorkDir}
}

// probe checks p, then p with the usual extensions, then p/index.js.
func probe(p string) (string, bool) {
	for _, c := range []string{p, p + ".js", p + ".json", filepath.Join(p, "index.js")} {
		fi, err := os.Stat(c)
		if err == nil && fi.Mode().IsRegular() {
			return c, true
		}
	}
	return "", false
}

func kindOf(path string) Kind {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return KindJSON
	}
	return KindScript
}

const (
	wrapperHead = "(function (exports, require, module, __filename, __dirname) {"
	wrapperTail = "\n})"
)

// Loader binds a Resolver to one goja runtime. It must only be used from the
// goroutine that owns the runtime.
type Loader struct {
	r       *Resolver
	vm      *goja.Runtime
	parse   goja.Callable
	loading map[string]*goja.Object
}

// Bind creates a loader for vm. It must be called before any guest code
// runs: JSON modules are decoded with the JSON.parse vm has at that point.
func (r *Resolver) Bind(vm *goja.Runtime) *Loader {
	parse, _ := goja.AssertFunction(vm.Get("JSON").ToObject(vm).Get("parse"))
	return &Loader{
		r:       r,
		vm:      vm,
		parse:   parse,
		loading: make(map[string]*goja.Object),
	}
}

// Require loads specifier on behalf of the snippet itself.
func (l *Loader) Require(specifier string) (goja.Value, error) {
	return l.require(specifier, l.r.snippetBases())
}

// RequireFunc returns the JS-callable require() for the snippet's scope.
// Failures are thrown into the guest as Error objects.
func (l *Loader) RequireFunc() func(goja.FunctionCall) goja.Value {
	return l.requireFunc(l.r.snippetBases())
}

func (l *Loader) requireFunc(bases []string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		specifier, ok := call.Argument(0).Export().(string)
		if !ok {
			panic(l.vm.NewTypeError("require() expects a string specifier"))
		}
		v, err := l.require(specifier, bases)
		if err != nil {
			panic(l.toJSError(err))
		}
		return v
	}
}

func (l *Loader) require(specifier string, bases []string) (goja.Value, error) {
	if !IsRelative(specifier) {
		return l.requireHost(specifier)
	}
	path, err := l.r.Resolve(specifier, bases...)
	if err != nil {
		l.r.observe(KindScript, err)
		return nil, err
	}
	return l.loadFile(path)
}

// loadFile evaluates the file at path. A path that is still being loaded
// higher up the require chain yields its partially populated exports.
func (l *Loader) loadFile(path string) (goja.Value, error) {
	if m, ok := l.loading[path]; ok {
		return m.Get("exports"), nil
	}

	if l.r.cache.Evict(path) {
		l.r.logger.Debug("evicted cached module", zap.String("path", path))
	}

	kind := kindOf(path)
	v, err := l.loadKind(path, kind)
	l.r.observe(kind, err)
	if err != nil {
		l.r.logger.Debug("module load failed", zap.String("path", path), zap.Error(err))
		return nil, err
	}
	return v, nil
}

func (l *Loader) loadKind(path string, kind Kind) (goja.Value, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read module %s: %w", path, err)
	}
	if kind == KindJSON {
		return l.loadJSON(path, src)
	}
	return l.loadScript(path, src)
}

func (l *Loader) loadJSON(path string, src []byte) (goja.Value, error) {
	l.r.cache.Store(&Entry{Path: path, Kind: KindJSON, Size: len(src), LoadedAt: time.Now()})

	if l.parse == nil {
		return nil, errors.New("JSON.parse is not available")
	}
	return l.parse(goja.Undefined(), l.vm.ToValue(string(src)))
}

func (l *Loader) loadScript(path string, src []byte) (goja.Value, error) {
	prog, err := goja.Compile(path, wrapperHead+stripShebang(string(src))+wrapperTail, false)
	if err != nil {
		return nil, err
	}
	l.r.cache.Store(&Entry{Path: path, Kind: KindScript, Size: len(src), LoadedAt: time.Now()})

	fnVal, err := l.vm.RunProgram(prog)
	if err != nil {
		return nil, err
	}
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		return nil, fmt.Errorf("module %s did not compile to a function", path)
	}

	dir := filepath.Dir(path)
	module := l.vm.NewObject()
	exports := l.vm.NewObject()
	_ = module.Set("exports", exports)
	_ = module.Set("id", path)
	_ = module.Set("filename", path)
	_ = module.Set("loaded", false)

	l.loading[path] = module
	defer delete(l.loading, path)

	bases := append([]string{dir}, l.r.snippetBases()...)
	_, err = fn(exports,
		exports,
		l.vm.ToValue(l.requireFunc(bases)),
		module,
		l.vm.ToValue(path),
		l.vm.ToValue(dir),
	)
	if err != nil {
		return nil, err
	}
	_ = module.Set("loaded", true)
	return module.Get("exports"), nil
}

// toJSError converts a load failure into a value that can be thrown inside
// the guest. Guest exceptions are rethrown as-is so their stack survives.
func (l *Loader) toJSError(err error) goja.Value {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return ex.Value()
	}

	ctor := "Error"
	var syntaxErr *goja.CompilerSyntaxError
	if errors.As(err, &syntaxErr) {
		ctor = "SyntaxError"
	}
	obj, cerr := l.vm.New(l.vm.Get(ctor), l.vm.ToValue(err.Error()))
	if cerr != nil {
		return l.vm.NewGoError(err)
	}
	if errors.Is(err, ErrModuleNotFound) {
		_ = obj.Set("code", "MODULE_NOT_FOUND")
	}
	return obj
}

func stripShebang(src string) string {
	if !strings.HasPrefix(src, "#!") {
		return src
	}
	if i := strings.IndexByte(src, '\n'); i >= 0 {
		// keep the newline so line numbers stay aligned
		return src[i:]
	}
	return ""
}
