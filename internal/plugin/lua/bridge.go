package lua

import (
	"context"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/birch/internal/plugin/api"
)

// module builds the birch table passed to a script's activate function.
type module struct {
	id    string
	state *State
	caps  api.Capabilities
}

// table creates the birch table. Must be called from State.Setup.
//
//	birch.id
//	birch.api_version
//	birch.editor.add_command(id, fn [, title])
//	birch.editor.register_language{ id=, name=, extensions={}, aliases={} }
//	birch.ui.notify(message [, level])
//	birch.ui.register_sidebar_view(id, title [, content])
func (m *module) table(L *lua.LState) *lua.LTable {
	mod := L.NewTable()
	L.SetField(mod, "id", lua.LString(m.id))
	L.SetField(mod, "api_version", lua.LNumber(m.caps.APIVersion()))

	editor := L.NewTable()
	L.SetField(editor, "add_command", L.NewFunction(m.addCommand))
	L.SetField(editor, "register_language", L.NewFunction(m.registerLanguage))
	L.SetField(mod, "editor", editor)

	ui := L.NewTable()
	L.SetField(ui, "notify", L.NewFunction(m.notify))
	L.SetField(ui, "register_sidebar_view", L.NewFunction(m.registerSidebarView))
	L.SetField(mod, "ui", ui)

	return mod
}

// add_command(id, fn [, title])
// The handler runs through the owning state when the command executes.
func (m *module) addCommand(L *lua.LState) int {
	id := L.CheckString(1)
	fn := L.CheckFunction(2)
	title := L.OptString(3, "")

	err := m.caps.Editor().AddCommand(api.Command{
		ID:       id,
		Title:    title,
		Category: m.id,
		Run: func() error {
			_, err := m.state.Call(context.Background(), fn)
			return err
		},
	})
	raiseOnError(L, err)
	return 0
}

// register_language{ id=, name=, extensions={}, aliases={} }
func (m *module) registerLanguage(L *lua.LState) int {
	opts := L.CheckTable(1)

	id := tableString(opts, "id")
	if id == "" {
		L.ArgError(1, "id is required")
		return 0
	}

	err := m.caps.Editor().RegisterLanguage(api.Language{
		ID:         id,
		Name:       tableString(opts, "name"),
		Extensions: tableStrings(opts, "extensions"),
		Aliases:    tableStrings(opts, "aliases"),
	})
	raiseOnError(L, err)
	return 0
}

// notify(message [, level])
func (m *module) notify(L *lua.LState) int {
	msg := L.CheckString(1)
	level := L.OptString(2, "info")

	err := m.caps.UI().ShowNotification(api.Notification{
		Message: msg,
		Level:   api.ParseNotificationLevel(level),
	})
	raiseOnError(L, err)
	return 0
}

// register_sidebar_view(id, title [, content])
func (m *module) registerSidebarView(L *lua.LState) int {
	id := L.CheckString(1)
	title := L.OptString(2, "")

	var content any
	if L.GetTop() >= 3 {
		content = toGoValue(L.Get(3), make(map[*lua.LTable]bool))
	}

	err := m.caps.UI().RegisterSidebarView(api.SidebarView{
		ID:      id,
		Title:   title,
		Content: content,
	})
	raiseOnError(L, err)
	return 0
}

func raiseOnError(L *lua.LState, err error) {
	if err != nil {
		L.RaiseError("%s", err.Error())
	}
}

// tableString returns t[key] if it is a string.
func tableString(t *lua.LTable, key string) string {
	if s, ok := t.RawGetString(key).(lua.LString); ok {
		return string(s)
	}
	return ""
}

// tableStrings returns the string elements of the array t[key].
// A single string is accepted as a one-element list.
func tableStrings(t *lua.LTable, key string) []string {
	switch v := t.RawGetString(key).(type) {
	case lua.LString:
		return []string{string(v)}
	case *lua.LTable:
		result := make([]string, 0, v.Len())
		for i := 1; i <= v.Len(); i++ {
			if s, ok := v.RawGetInt(i).(lua.LString); ok {
				result = append(result, string(s))
			}
		}
		return result
	}
	return nil
}

// toGoValue converts a Lua value to a Go value. A table that contains
// itself converts to nil at the point of recursion.
func toGoValue(lv lua.LValue, visited map[*lua.LTable]bool) any {
	switch v := lv.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case lua.LString:
		return string(v)
	case *lua.LTable:
		// Break circular references; visited holds the current path only
		if visited[v] {
			return nil
		}
		visited[v] = true
		defer delete(visited, v)
		return tableToGo(v, visited)
	default:
		return nil
	}
}

// tableToGo converts a Lua table to a slice when it is a contiguous array
// starting at 1, and to a map otherwise.
func tableToGo(t *lua.LTable, visited map[*lua.LTable]bool) any {
	n := t.Len()
	count := 0
	t.ForEach(func(_, _ lua.LValue) { count++ })

	if n > 0 && count == n {
		arr := make([]any, n)
		for i := 1; i <= n; i++ {
			arr[i-1] = toGoValue(t.RawGetInt(i), visited)
		}
		return arr
	}

	m := make(map[string]any, count)
	t.ForEach(func(k, v lua.LValue) {
		var key string
		switch kv := k.(type) {
		case lua.LString:
			key = string(kv)
		case lua.LNumber:
			key = fmt.Sprintf("%v", float64(kv))
		default:
			key = k.String()
		}
		m[key] = toGoValue(v, visited)
	})
	return m
}
