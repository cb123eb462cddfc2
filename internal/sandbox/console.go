package sandbox

import (
	"strings"
	"sync"

	"github.com/dop251/goja"
)

// Collector buffers the console output of one execution.
type Collector struct {
	mu       sync.Mutex
	records  []LogRecord
	mirror   Mirror
	observer Observer
}

// NewCollector creates an empty collector. mirror and observer may be nil.
func NewCollector(mirror Mirror, observer Observer) *Collector {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Collector{
		records:  []LogRecord{},
		mirror:   mirror,
		observer: observer,
	}
}

func (c *Collector) Log(parts ...string)   { c.add(LevelLog, parts) }
func (c *Collector) Info(parts ...string)  { c.add(LevelInfo, parts) }
func (c *Collector) Warn(parts ...string)  { c.add(LevelWarn, parts) }
func (c *Collector) Error(parts ...string) { c.add(LevelError, parts) }

func (c *Collector) add(level Level, parts []string) {
	c.append(LogRecord{Level: level, Message: strings.Join(parts, " ")})
}

func (c *Collector) append(rec LogRecord) {
	c.mu.Lock()
	c.records = append(c.records, rec)
	c.mu.Unlock()

	c.observer.ObserveConsole(string(rec.Level))
	if c.mirror != nil {
		c.mirror.Mirror(string(rec.Level), rec.Message)
	}
}

// AppendError records message at error level unless an identical error
// record already exists. It reports whether a record was added.
func (c *Collector) AppendError(message string) bool {
	c.mu.Lock()
	for _, r := range c.records {
		if r.Level == LevelError && r.Message == message {
			c.mu.Unlock()
			return false
		}
	}
	c.mu.Unlock()

	c.append(LogRecord{Level: LevelError, Message: message})
	return true
}

// Records returns a copy of the records in call order.
func (c *Collector) Records() []LogRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]LogRecord, len(c.records))
	copy(out, c.records)
	return out
}

// Len returns the number of records captured so far.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// consoleFunc adapts one capture function to a JS-callable. Arguments are
// rendered with String() semantics and joined by a single space.
func consoleFunc(capture func(parts ...string)) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		capture(parts...)
		return goja.Undefined()
	}
}
