package sandbox

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mirrored struct {
	level, message string
}

type recordingMirror struct {
	mu      sync.Mutex
	records []mirrored
}

func (m *recordingMirror) Mirror(level, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, mirrored{level, message})
}

func TestCollectorOrderAndJoin(t *testing.T) {
	c := NewCollector(nil, nil)

	c.Log("a", "b")
	c.Info("c")
	c.Warn()
	c.Error("x", "", "y")

	assert.Equal(t, []LogRecord{
		{Level: LevelLog, Message: "a b"},
		{Level: LevelInfo, Message: "c"},
		{Level: LevelWarn, Message: ""},
		{Level: LevelError, Message: "x  y"},
	}, c.Records())
	assert.Equal(t, 4, c.Len())
}

func TestCollectorRecordsIsCopy(t *testing.T) {
	c := NewCollector(nil, nil)
	c.Log("one")

	recs := c.Records()
	recs[0].Message = "changed"
	assert.Equal(t, "one", c.Records()[0].Message)
}

func TestCollectorAppendErrorDedup(t *testing.T) {
	c := NewCollector(nil, nil)
	c.Log("boom")

	assert.True(t, c.AppendError("boom"))
	assert.False(t, c.AppendError("boom"))
	assert.True(t, c.AppendError("other"))

	assert.Equal(t, []LogRecord{
		{Level: LevelLog, Message: "boom"},
		{Level: LevelError, Message: "boom"},
		{Level: LevelError, Message: "other"},
	}, c.Records())
}

func TestCollectorAppendErrorDedupNotOnlyLast(t *testing.T) {
	c := NewCollector(nil, nil)
	c.Error("boom")
	c.Log("after")

	assert.False(t, c.AppendError("boom"))
	assert.Equal(t, []LogRecord{
		{Level: LevelError, Message: "boom"},
		{Level: LevelLog, Message: "after"},
	}, c.Records())
}

func TestCollectorMirrorAndObserver(t *testing.T) {
	m := &recordingMirror{}
	o := newCountingObserver()
	c := NewCollector(m, o)

	c.Log("l")
	c.Warn("w")
	c.AppendError("e")

	assert.Equal(t, []mirrored{{"log", "l"}, {"warn", "w"}, {"error", "e"}}, m.records)
	assert.Equal(t, 1, o.console["log"])
	assert.Equal(t, 1, o.console["warn"])
	assert.Equal(t, 1, o.console["error"])
}

func TestConsoleFuncRendersLikeString(t *testing.T) {
	b := NewBuilder(nil, nil, nil)
	ctx, err := b.Build()
	require.NoError(t, err)
	defer ctx.Close()

	_, err = ctx.Runtime().RunString(`
		console.log('n', 1, 2.5, true, null, undefined, [1, 2], {a: 1});
		console.info();
	`)
	require.NoError(t, err)

	assert.Equal(t, []LogRecord{
		{Level: LevelLog, Message: "n 1 2.5 true null undefined 1,2 [object Object]"},
		{Level: LevelInfo, Message: ""},
	}, ctx.Collector().Records())
}
