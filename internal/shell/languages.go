package shell

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/dshills/birch/internal/plugin/api"
)

// ErrLanguageExists is returned when a language id is already registered.
var ErrLanguageExists = errors.New("language already registered")

// LanguageTable maps language ids to definitions contributed by plugins.
type LanguageTable struct {
	mu        sync.RWMutex
	languages map[string]api.Language
	order     []string // language ids in registration order

	// Lowercased extension (with dot) to language id
	byExt map[string]string
}

// NewLanguageTable creates an empty language table.
func NewLanguageTable() *LanguageTable {
	return &LanguageTable{
		languages: make(map[string]api.Language),
		byExt:     make(map[string]string),
	}
}

// Register adds a language. An extension already claimed by another
// language stays with the first registration.
func (t *LanguageTable) Register(lang api.Language) error {
	if err := lang.Validate(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.languages[lang.ID]; ok {
		return fmt.Errorf("%w: %q (owned by %s)", ErrLanguageExists, lang.ID, existing.Owner)
	}

	exts := make([]string, 0, len(lang.Extensions))
	for _, ext := range lang.Extensions {
		ext = normalizeExt(ext)
		if ext == "" {
			continue
		}
		exts = append(exts, ext)
		if _, claimed := t.byExt[ext]; !claimed {
			t.byExt[ext] = lang.ID
		}
	}
	lang.Extensions = exts
	lang.Aliases = append([]string(nil), lang.Aliases...)
	t.languages[lang.ID] = lang
	t.order = append(t.order, lang.ID)
	return nil
}

// Get returns a language by id.
func (t *LanguageTable) Get(id string) (api.Language, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	lang, ok := t.languages[id]
	return lang, ok
}

// ForExtension returns the language claiming a file extension.
// The extension may be given with or without the leading dot.
func (t *LanguageTable) ForExtension(ext string) (api.Language, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.byExt[normalizeExt(ext)]
	if !ok {
		return api.Language{}, false
	}
	return t.languages[id], true
}

// ForAlias returns the language with the given id or alias. When several
// languages share an alias the earliest registration wins.
func (t *LanguageTable) ForAlias(alias string) (api.Language, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if lang, ok := t.languages[alias]; ok {
		return lang, true
	}
	for _, id := range t.order {
		lang := t.languages[id]
		for _, a := range lang.Aliases {
			if strings.EqualFold(a, alias) {
				return lang, true
			}
		}
	}
	return api.Language{}, false
}

// All returns all languages sorted by id.
func (t *LanguageTable) All() []api.Language {
	t.mu.RLock()
	result := make([]api.Language, 0, len(t.languages))
	for _, lang := range t.languages {
		result = append(result, lang)
	}
	t.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result
}

// RevokeOwner removes all languages registered by owner. Each extension
// they claimed passes to the earliest remaining language declaring it.
func (t *LanguageTable) RevokeOwner(owner string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	kept := t.order[:0]
	var freed []string
	for _, id := range t.order {
		lang := t.languages[id]
		if lang.Owner != owner {
			kept = append(kept, id)
			continue
		}
		delete(t.languages, id)
		for _, ext := range lang.Extensions {
			if t.byExt[ext] == id {
				delete(t.byExt, ext)
				freed = append(freed, ext)
			}
		}
	}
	count := len(t.order) - len(kept)
	t.order = kept

	for _, ext := range freed {
		for _, id := range t.order {
			if slices.Contains(t.languages[id].Extensions, ext) {
				t.byExt[ext] = id
				break
			}
		}
	}
	return count
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
