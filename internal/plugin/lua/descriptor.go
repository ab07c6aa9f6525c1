package lua

import (
	"context"
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/birch/internal/plugin"
	"github.com/dshills/birch/internal/plugin/api"
)

// Script identifies a Lua plugin script.
type Script struct {
	ID          string
	Name        string
	Version     string
	Description string

	// Path is the script file executed on activation.
	Path string
}

// NewDescriptor returns a plugin descriptor backed by a Lua script.
//
// Each activation runs the script in a fresh sandboxed State and calls its
// global activate(birch) function. Deactivation calls the optional global
// deactivate() and closes the State. Commands the script registered keep
// a reference to the State and fail with ErrStateClosed once it is closed.
func NewDescriptor(script Script, opts ...StateOption) *plugin.Descriptor {
	p := &scriptPlugin{script: script, opts: opts}
	return &plugin.Descriptor{
		ID:          script.ID,
		Name:        script.Name,
		Version:     script.Version,
		Description: script.Description,
		Source:      script.Path,
		Activate:    p.activate,
		Deactivate:  p.deactivate,
	}
}

type scriptPlugin struct {
	script Script
	opts   []StateOption

	mu    sync.Mutex
	state *State
}

func (p *scriptPlugin) activate(ctx context.Context, caps api.Capabilities) error {
	state := NewState(p.opts...)

	m := &module{
		id:    p.script.ID,
		state: state,
		caps:  api.Bind(caps, p.script.ID),
	}
	var birch *lua.LTable
	if err := state.Setup(func(L *lua.LState) {
		birch = m.table(L)
	}); err != nil {
		return err
	}

	if err := p.start(ctx, state, birch); err != nil {
		state.Close()
		return err
	}

	p.mu.Lock()
	previous := p.state
	p.state = state
	p.mu.Unlock()

	if previous != nil {
		previous.Close()
	}
	return nil
}

func (p *scriptPlugin) start(ctx context.Context, state *State, birch *lua.LTable) error {
	if err := state.DoFile(ctx, p.script.Path); err != nil {
		return err
	}
	if !state.HasFunction("activate") {
		return fmt.Errorf("%s: %w", p.script.Path, ErrNoActivate)
	}
	_, err := state.CallGlobal(ctx, "activate", birch)
	return err
}

func (p *scriptPlugin) deactivate(ctx context.Context) error {
	p.mu.Lock()
	state := p.state
	p.state = nil
	p.mu.Unlock()

	if state == nil {
		return nil
	}
	defer state.Close()

	if !state.HasFunction("deactivate") {
		return nil
	}
	_, err := state.CallGlobal(ctx, "deactivate")
	return err
}
