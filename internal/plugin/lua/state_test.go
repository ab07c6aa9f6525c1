package lua

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
)

func TestStateDoString(t *testing.T) {
	s := NewState()
	defer s.Close()

	require.NoError(t, s.DoString(context.Background(), "x = 1 + 2"))
	assert.Equal(t, lua.LNumber(3), s.GetGlobal("x"))
}

func TestStateCallReturnsValues(t *testing.T) {
	s := NewState()
	defer s.Close()

	require.NoError(t, s.DoString(context.Background(), `
function pair(a) return a, a * 2 end
function none() end
`))

	results, err := s.CallGlobal(context.Background(), "pair", lua.LNumber(4))
	require.NoError(t, err)
	assert.Equal(t, []lua.LValue{lua.LNumber(4), lua.LNumber(8)}, results)

	results, err = s.CallGlobal(context.Background(), "none")
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)

	_, err = s.CallGlobal(context.Background(), "missing")
	assert.Error(t, err)
}

func TestStateScriptError(t *testing.T) {
	s := NewState()
	defer s.Close()

	err := s.DoString(context.Background(), `error("boom")`)
	require.Error(t, err)

	var serr *ScriptError
	require.ErrorAs(t, err, &serr)
	assert.Contains(t, serr.Message, "boom")
}

func TestStateSyntaxError(t *testing.T) {
	s := NewState()
	defer s.Close()

	err := s.DoString(context.Background(), "function (")
	var serr *ScriptError
	assert.ErrorAs(t, err, &serr)
}

func TestStateSandbox(t *testing.T) {
	s := NewState()
	defer s.Close()
	ctx := context.Background()

	for _, name := range []string{"io", "os", "debug", "package", "dofile", "loadfile", "load", "loadstring"} {
		assert.Equal(t, lua.LNil, s.GetGlobal(name), name)
	}

	require.NoError(t, s.DoString(ctx, `local m = require("math"); y = m.floor(2.5)`))
	assert.Equal(t, lua.LNumber(2), s.GetGlobal("y"))

	err := s.DoString(ctx, `require("os")`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `module "os" is not available`)
}

func TestStatePrintGoesToLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := hclog.New(&hclog.LoggerOptions{Output: &buf, Level: hclog.Info})

	s := NewState(WithLogger(logger))
	defer s.Close()

	require.NoError(t, s.DoString(context.Background(), `print("hello", 42)`))
	assert.Contains(t, buf.String(), "hello\t42")
}

func TestStateExecutionTimeout(t *testing.T) {
	s := NewState(WithExecutionTimeout(50 * time.Millisecond))
	defer s.Close()

	start := time.Now()
	err := s.DoString(context.Background(), "while true do end")
	assert.ErrorIs(t, err, ErrExecutionTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestStateCancelledContext(t *testing.T) {
	s := NewState(WithExecutionTimeout(0))
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.DoString(ctx, "x = 1")
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestStateClosed(t *testing.T) {
	s := NewState()
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.True(t, s.IsClosed())
	assert.ErrorIs(t, s.DoString(context.Background(), "x = 1"), ErrStateClosed)
	assert.Equal(t, lua.LNil, s.GetGlobal("x"))
	assert.ErrorIs(t, s.Setup(func(*lua.LState) {}), ErrStateClosed)
}

func TestStateDoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "init.lua")
	require.NoError(t, os.WriteFile(path, []byte("loaded = true\n"), 0644))

	s := NewState()
	defer s.Close()

	require.NoError(t, s.DoFile(context.Background(), path))
	assert.Equal(t, lua.LTrue, s.GetGlobal("loaded"))
	assert.Error(t, s.DoFile(context.Background(), filepath.Join(t.TempDir(), "missing.lua")))
}

func TestToGoValue(t *testing.T) {
	s := NewState()
	defer s.Close()

	require.NoError(t, s.DoString(context.Background(), `
arr = { "a", "b" }
obj = { name = "x", n = 2, f = 1.5 }
`))

	assert.Equal(t, []any{"a", "b"}, toGoValue(s.GetGlobal("arr"), map[*lua.LTable]bool{}))
	assert.Equal(t, map[string]any{"name": "x", "n": int64(2), "f": 1.5},
		toGoValue(s.GetGlobal("obj"), map[*lua.LTable]bool{}))
	assert.Nil(t, toGoValue(lua.LNil, map[*lua.LTable]bool{}))

	require.NoError(t, s.DoString(context.Background(), `
shared = { 1, 2 }
twice = { a = shared, b = shared }
loop = { name = "loop" }
loop.self = loop
`))
	assert.Equal(t, map[string]any{"a": []any{int64(1), int64(2)}, "b": []any{int64(1), int64(2)}},
		toGoValue(s.GetGlobal("twice"), map[*lua.LTable]bool{}))
	assert.Equal(t, map[string]any{"name": "loop", "self": nil},
		toGoValue(s.GetGlobal("loop"), map[*lua.LTable]bool{}))
}
