package tool

import (
	"fmt"
	"os"
	"sort"
)

// Registry is the read-only mapping from tool name to Tool consumed by the
// executor. It is built once at startup; registration across multiple specs
// is last-registered-wins on a name collision. After the final Register call
// it is safe for concurrent readers without locking.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds tools to the registry. A tool whose name is already
// registered replaces the earlier one.
func (r *Registry) Register(tools ...Tool) {
	for _, t := range tools {
		if _, exists := r.tools[t.Name]; exists {
			fmt.Fprintf(os.Stderr, "[WARN] Tool '%s' registered more than once; keeping the later registration.\n", t.Name)
		}
		r.tools[t.Name] = t
	}
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// List returns all registered tools sorted by name. Successive calls on the
// same registry state return identical results.
func (r *Registry) List() []Tool {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	tools := make([]Tool, 0, len(names))
	for _, name := range names {
		tools = append(tools, r.tools[name])
	}
	return tools
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.tools)
}
