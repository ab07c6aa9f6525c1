package shell

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/sahilm/fuzzy"

	"github.com/dshills/birch/internal/plugin/api"
)

// Command table errors.
var (
	// ErrCommandExists is returned when a command id is already registered.
	ErrCommandExists = errors.New("command already registered")

	// ErrUnknownCommand is returned when executing an id that is not registered.
	ErrUnknownCommand = errors.New("unknown command")
)

// CommandPanicError is returned by Execute when a command handler panics.
type CommandPanicError struct {
	ID    string
	Value any
	Stack []byte
}

func (e *CommandPanicError) Error() string {
	return fmt.Sprintf("command %q panicked: %v", e.ID, e.Value)
}

// CommandMatch is a command palette search result.
type CommandMatch struct {
	Command api.Command

	// Score is the fuzzy match score; higher is better.
	Score int

	// MatchedIndexes are the byte offsets in the command label that matched.
	MatchedIndexes []int
}

// CommandTable is the editor command table backing api.Editor.AddCommand.
type CommandTable struct {
	mu       sync.RWMutex
	commands map[string]api.Command

	// onChange callbacks are called when commands are added or removed.
	onChange []func()
}

// NewCommandTable creates an empty command table.
func NewCommandTable() *CommandTable {
	return &CommandTable{
		commands: make(map[string]api.Command),
	}
}

// Add registers a command. Command ids are global: a second registration of
// the same id fails with ErrCommandExists, whoever owns the first one.
func (t *CommandTable) Add(cmd api.Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	t.mu.Lock()
	if existing, ok := t.commands[cmd.ID]; ok {
		t.mu.Unlock()
		return fmt.Errorf("%w: %q (owned by %s)", ErrCommandExists, cmd.ID, existing.Owner)
	}
	t.commands[cmd.ID] = cmd
	t.mu.Unlock()

	t.notifyChange()
	return nil
}

// Remove unregisters a command.
func (t *CommandTable) Remove(id string) bool {
	t.mu.Lock()
	_, exists := t.commands[id]
	if exists {
		delete(t.commands, id)
	}
	t.mu.Unlock()

	if exists {
		t.notifyChange()
	}
	return exists
}

// RevokeOwner removes all commands registered by owner.
func (t *CommandTable) RevokeOwner(owner string) int {
	t.mu.Lock()
	count := 0
	for id, cmd := range t.commands {
		if cmd.Owner == owner {
			delete(t.commands, id)
			count++
		}
	}
	t.mu.Unlock()

	if count > 0 {
		t.notifyChange()
	}
	return count
}

// Get retrieves a command by id.
func (t *CommandTable) Get(id string) (api.Command, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	cmd, ok := t.commands[id]
	return cmd, ok
}

// Count returns the number of registered commands.
func (t *CommandTable) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.commands)
}

// All returns all commands sorted by id.
func (t *CommandTable) All() []api.Command {
	t.mu.RLock()
	result := make([]api.Command, 0, len(t.commands))
	for _, cmd := range t.commands {
		result = append(result, cmd)
	}
	t.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result
}

// ByOwner returns the commands registered by owner, sorted by id.
func (t *CommandTable) ByOwner(owner string) []api.Command {
	all := t.All()
	result := make([]api.Command, 0, len(all))
	for _, cmd := range all {
		if cmd.Owner == owner {
			result = append(result, cmd)
		}
	}
	return result
}

// Execute runs a command by id. A panicking handler is recovered and
// reported as a *CommandPanicError.
func (t *CommandTable) Execute(id string) (err error) {
	t.mu.RLock()
	cmd, exists := t.commands[id]
	t.mu.RUnlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, id)
	}

	defer func() {
		if r := recover(); r != nil {
			err = &CommandPanicError{ID: id, Value: r, Stack: debug.Stack()}
		}
	}()
	return cmd.Run()
}

// Match searches command labels for query and returns the matches ranked
// by score. An empty query returns every command in id order.
func (t *CommandTable) Match(query string, limit int) []CommandMatch {
	commands := t.All()

	if query == "" {
		results := make([]CommandMatch, 0, len(commands))
		for _, cmd := range commands {
			results = append(results, CommandMatch{Command: cmd})
		}
		return truncateMatches(results, limit)
	}

	matches := fuzzy.FindFrom(query, commandSource(commands))
	results := make([]CommandMatch, 0, len(matches))
	for _, m := range matches {
		results = append(results, CommandMatch{
			Command:        commands[m.Index],
			Score:          m.Score,
			MatchedIndexes: m.MatchedIndexes,
		})
	}

	// Deterministic tie-breaker
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Command.ID < results[j].Command.ID
	})

	return truncateMatches(results, limit)
}

// OnChange registers a callback for command list changes.
// Callbacks run without the table lock held.
func (t *CommandTable) OnChange(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChange = append(t.onChange, fn)
}

func (t *CommandTable) notifyChange() {
	t.mu.RLock()
	callbacks := make([]func(), len(t.onChange))
	copy(callbacks, t.onChange)
	t.mu.RUnlock()

	for _, fn := range callbacks {
		fn()
	}
}

// commandSource adapts a command slice to fuzzy.Source.
type commandSource []api.Command

func (s commandSource) String(i int) string { return s[i].Label() }
func (s commandSource) Len() int { return len(s) }

func truncateMatches(results []CommandMatch, limit int) []CommandMatch {
	if limit > 0 && len(results) > limit {
		return results[:limit]
	}
	return results
}
