package sandbox

import (
	"errors"
	"sync"

	"github.com/dop251/goja"

	"github.com/GriffinCanCode/jsrun/internal/sandbox/modules"
)

var errModulesUnavailable = errors.New("module loading is not available in this context")

// Builder assembles fresh evaluation contexts.
type Builder struct {
	resolver *modules.Resolver
	mirror   Mirror
	observer Observer
}

// NewBuilder creates a builder. A nil resolver gives contexts a require()
// that always throws.
func NewBuilder(resolver *modules.Resolver, mirror Mirror, observer Observer) *Builder {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Builder{resolver: resolver, mirror: mirror, observer: observer}
}

// Context is the isolated global scope for exactly one execution.
type Context struct {
	mu        sync.Mutex
	vm        *goja.Runtime
	collector *Collector
	loader    *modules.Loader
	stringify goja.Callable // intrinsic JSON.stringify, captured before guest code runs
	used      bool
	closed    bool
}

// Build creates a new runtime whose globals are console, require, module and
// exports. Nothing is shared with any other context.
func (b *Builder) Build() (*Context, error) {
	vm := goja.New()
	c := &Context{
		vm:        vm,
		collector: NewCollector(b.mirror, b.observer),
	}

	stringify, ok := goja.AssertFunction(vm.Get("JSON").ToObject(vm).Get("stringify"))
	if !ok {
		return nil, errors.New("runtime has no JSON.stringify")
	}
	c.stringify = stringify

	console := vm.NewObject()
	for name, capture := range map[string]func(...string){
		"log":   c.collector.Log,
		"info":  c.collector.Info,
		"warn":  c.collector.Warn,
		"error": c.collector.Error,
	} {
		if err := console.Set(name, consoleFunc(capture)); err != nil {
			return nil, err
		}
	}
	if err := vm.Set("console", console); err != nil {
		return nil, err
	}

	var require func(goja.FunctionCall) goja.Value
	if b.resolver != nil {
		c.loader = b.resolver.Bind(vm)
		require = c.loader.RequireFunc()
	} else {
		require = func(goja.FunctionCall) goja.Value {
			panic(vm.NewGoError(errModulesUnavailable))
		}
	}
	if err := vm.Set("require", require); err != nil {
		return nil, err
	}

	module := vm.NewObject()
	exports := vm.NewObject()
	if err := module.Set("exports", exports); err != nil {
		return nil, err
	}
	if err := vm.Set("module", module); err != nil {
		return nil, err
	}
	if err := vm.Set("exports", exports); err != nil {
		return nil, err
	}

	return c, nil
}

// Collector returns the context's console buffer.
func (c *Context) Collector() *Collector {
	return c.collector
}

// Runtime returns the underlying VM.
func (c *Context) Runtime() *goja.Runtime {
	return c.vm
}

// acquire marks the context as used. A context runs at most one snippet.
func (c *Context) acquire() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.closed:
		return ErrContextClosed
	case c.used:
		return ErrContextUsed
	}
	c.used = true
	return nil
}

// Close releases the runtime. Records remain readable.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.vm = nil
	c.loader = nil
	c.stringify = nil
	return nil
}
