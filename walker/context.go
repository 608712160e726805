// Package walker performs the schemata-based recursive descent over a FHIR
// resource instance, re-deriving the schemata set at every element via
// schemata.Follow and dispatching structural, primitive, binding, and
// constraint checks at each node.
package walker

import (
	"sync"

	"github.com/fhirschema/go-fhirschema/compiler"
	"github.com/fhirschema/go-fhirschema/schemata"
)

// WalkContext holds the schemata state for one node of the tree walk. It is
// pooled the same way the rest of this codebase pools hot-path allocations.
type WalkContext struct {
	// Node is the current value being visited.
	Node any

	// Key is the JSON key of the current element ("" at the root).
	Key string

	// Path is the full element path, one segment per depth, index
	// segments included for array items (e.g. ["Patient", "name", "[0]", "family"]).
	Path []string

	// Schemata is the schemata set this node must validate against.
	Schemata schemata.Set

	// Element is the resolved CompiledElement describing Key within the
	// parent's schemata, or nil at the root.
	Element *compiler.CompiledElement

	// Root is the top-level resource map, carried down for contained
	// reference resolution.
	Root map[string]any

	Parent       *WalkContext
	IsArrayItem  bool
	ArrayIndex   int
	ResourceType string
	Depth        int
}

var contextPool = sync.Pool{
	New: func() any { return &WalkContext{} },
}

// AcquireContext gets a WalkContext from the pool.
func AcquireContext() *WalkContext {
	ctx := contextPool.Get().(*WalkContext)
	ctx.Reset()
	return ctx
}

// Release returns the WalkContext to the pool. After release the context
// must not be used.
func (c *WalkContext) Release() {
	if c == nil {
		return
	}
	contextPool.Put(c)
}

// Reset clears all fields for reuse.
func (c *WalkContext) Reset() {
	c.Node = nil
	c.Key = ""
	c.Path = nil
	c.Schemata = nil
	c.Element = nil
	c.Root = nil
	c.Parent = nil
	c.IsArrayItem = false
	c.ArrayIndex = 0
	c.ResourceType = ""
	c.Depth = 0
}

// IsRoot returns true if this is the root context.
func (c *WalkContext) IsRoot() bool { return c.Depth == 0 }

// IsObject returns true if the current node is a JSON object.
func (c *WalkContext) IsObject() bool {
	_, ok := c.Node.(map[string]any)
	return ok
}

// IsArray returns true if the current node is a JSON array.
func (c *WalkContext) IsArray() bool {
	_, ok := c.Node.([]any)
	return ok
}

// AsObject returns the node as a map, or nil.
func (c *WalkContext) AsObject() map[string]any {
	m, _ := c.Node.(map[string]any)
	return m
}

// AsArray returns the node as a slice, or nil.
func (c *WalkContext) AsArray() []any {
	a, _ := c.Node.([]any)
	return a
}

// PathCopy returns a fresh copy of Path, safe to retain (e.g. on an Issue)
// beyond this context's pooled lifetime.
func (c *WalkContext) PathCopy() []string {
	out := make([]string, len(c.Path))
	copy(out, c.Path)
	return out
}
