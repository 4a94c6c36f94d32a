// Package viewstate derives UI status flags from the registry and the
// current selection.
//
// Everything here is a pure, cheap function recomputed on demand. Nothing
// is cached: the registry stays the single source of truth.
package viewstate

import (
	"strings"

	"github.com/fyrsmithlabs/dbstudio/internal/registry"
	"github.com/fyrsmithlabs/dbstudio/internal/selection"
)

// HasFullDetails reports whether the registry holds a Full record for name.
func HasFullDetails(reg *registry.Registry, name string) bool {
	meta, ok := reg.Get(name)
	return ok && meta.DetailLevel == registry.Full
}

// AwaitingDetails reports whether the UI should show a loading state for
// the current selection: an existing entry is selected, it is known to the
// registry, and its details have not arrived yet. Fetches completing for a
// de-selected identifier never show here.
func AwaitingDetails(reg *registry.Registry, sel selection.Selection) bool {
	if sel.Kind != selection.Existing {
		return false
	}
	if !reg.Has(sel.Name) {
		return false
	}
	return !HasFullDetails(reg, sel.Name)
}

// TablesIndexed reports whether at least one table has been indexed.
// Always false until details are loaded.
func TablesIndexed(reg *registry.Registry, name string) bool {
	meta, ok := reg.Get(name)
	return ok && meta.DetailLevel == registry.Full && len(meta.Tables) > 0
}

// HasDescription reports whether any column carries a non-blank
// description. Always false until details are loaded.
func HasDescription(reg *registry.Registry, name string) bool {
	meta, ok := reg.Get(name)
	if !ok || meta.DetailLevel != registry.Full {
		return false
	}
	for _, col := range meta.ColumnDescriptions {
		if strings.TrimSpace(col.Description) != "" {
			return true
		}
	}
	return false
}

// CanConnect returns the connectivity flag, or nil while it is unknown
// (anything short of Full details).
func CanConnect(reg *registry.Registry, name string) *bool {
	meta, ok := reg.Get(name)
	if !ok || meta.DetailLevel != registry.Full {
		return nil
	}
	return meta.CanConnect
}

// Snapshot bundles the derived flags for one render pass.
type Snapshot struct {
	Selection       selection.Selection
	HasFullDetails  bool
	AwaitingDetails bool
	TablesIndexed   bool
	HasDescription  bool
	CanConnect      *bool
}

// Compute derives the full snapshot for the current selection.
func Compute(reg *registry.Registry, sel selection.Selection) Snapshot {
	s := Snapshot{Selection: sel}
	if sel.Kind != selection.Existing {
		return s
	}
	s.HasFullDetails = HasFullDetails(reg, sel.Name)
	s.AwaitingDetails = AwaitingDetails(reg, sel)
	s.TablesIndexed = TablesIndexed(reg, sel.Name)
	s.HasDescription = HasDescription(reg, sel.Name)
	s.CanConnect = CanConnect(reg, sel.Name)
	return s
}
