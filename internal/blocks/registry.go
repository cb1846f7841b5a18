package blocks

import (
	"fmt"
	"sort"
)

// Registry is the process-wide immutable block-definition table. Build it
// once at startup with Builtin (plus Register calls for extensions), then
// pass it by pointer into every compile. Compilation never mutates it.
type Registry struct {
	defs   map[string]*Definition
	sealed bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Register adds a definition. Panics on duplicate kind or registration
// after Seal: registration is a startup-time programming act, not a
// runtime input, so failures are faults.
func (r *Registry) Register(def *Definition) {
	if r.sealed {
		panic(fmt.Sprintf("blocks: register %q after seal", def.Kind))
	}
	if def.Kind == "" {
		panic("blocks: register with empty kind")
	}
	if _, dup := r.defs[def.Kind]; dup {
		panic(fmt.Sprintf("blocks: duplicate kind %q", def.Kind))
	}
	r.defs[def.Kind] = def
}

// Seal freezes the registry. Compile entrypoints call this defensively;
// sealing twice is a no-op.
func (r *Registry) Seal() { r.sealed = true }

// Lookup returns the definition for kind.
func (r *Registry) Lookup(kind string) (*Definition, bool) {
	d, ok := r.defs[kind]
	return d, ok
}

// Kinds returns all registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.defs))
	for k := range r.defs {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
