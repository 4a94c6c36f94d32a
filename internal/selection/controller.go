// Package selection tracks which database (or the "new project" pseudo
// entry) is active and decides when a lazy detail fetch is needed.
package selection

import (
	"context"
	"strings"
	"sync"

	"github.com/fyrsmithlabs/dbstudio/internal/logging"
	"github.com/fyrsmithlabs/dbstudio/internal/registry"
	"go.uber.org/zap"
)

// Kind enumerates the selection states.
type Kind int

const (
	// None: no databases exist and nothing is selected.
	None Kind = iota
	// NewProject: the "create a new project" pseudo entry is active.
	NewProject
	// Existing: a registry identifier is active.
	Existing
)

// Selection is the current selection value.
type Selection struct {
	Kind Kind
	Name string // set only for Existing
}

// IsExisting reports whether name is the active existing selection.
func (s Selection) IsExisting(name string) bool {
	return s.Kind == Existing && s.Name == name
}

// Controller owns the selection state machine.
//
// Fetch triggering is delegated to the injected fetch callback so the UI
// can route it through its own scheduler; the controller never blocks on a
// fetch and never cancels one already running.
type Controller struct {
	mu      sync.Mutex
	current Selection

	reg   *registry.Registry
	fetch func(name string)
	log   *logging.Logger
}

// NewController creates a controller over reg. fetch is called whenever a
// selected identifier needs its details loaded; logger may be nil.
func NewController(reg *registry.Registry, fetch func(name string), logger *logging.Logger) *Controller {
	if logger == nil {
		logger = logging.Nop()
	}
	if fetch == nil {
		fetch = func(string) {}
	}
	return &Controller{
		reg:   reg,
		fetch: fetch,
		log:   logger.Named("selection"),
	}
}

// Current returns the active selection.
func (c *Controller) Current() Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Initialize applies a bulk listing result: the registry is seeded with
// NameOnly entries, the first listed identifier becomes the selection, and
// its details are eagerly fetched. Only the first entry is warmed; the rest
// stay NameOnly until selected, which bounds the initial load cost. With no
// names the selection clears and the UI shows the creation flow.
func (c *Controller) Initialize(names []string) Selection {
	n := c.reg.BulkInitialize(names)

	c.mu.Lock()
	defer c.mu.Unlock()
	if n == 0 {
		c.current = Selection{Kind: None}
		return c.current
	}

	first := firstNonBlank(names)
	c.current = Selection{Kind: Existing, Name: first}
	c.log.Debug(context.Background(), "initial selection", zap.String("db", first))
	c.fetch(first)
	return c.current
}

// Select makes name the active selection, triggering a detail fetch unless
// the registry already holds a Full record for it.
func (c *Controller) Select(name string) Selection {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = Selection{Kind: Existing, Name: name}
	if meta, ok := c.reg.Get(name); !ok || meta.DetailLevel != registry.Full {
		c.fetch(name)
	}
	return c.current
}

// SelectNewProject activates the "new project" pseudo entry.
func (c *Controller) SelectNewProject() Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = Selection{Kind: NewProject}
	return c.current
}

// Created forces the selection to a freshly created database, regardless of
// prior state. The registry entry is already Full so no fetch is needed.
func (c *Controller) Created(name string) Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = Selection{Kind: Existing, Name: name}
	return c.current
}

// Removed reacts to a registry deletion: deleting the active selection
// falls back to the new-project view, anything else leaves the selection
// alone.
func (c *Controller) Removed(name string) Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current.IsExisting(name) {
		c.current = Selection{Kind: NewProject}
	}
	return c.current
}

func firstNonBlank(names []string) string {
	for _, name := range names {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
