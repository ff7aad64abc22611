package scribe

import "context"

// Tool is a pluggable research backend. Implementations gather source
// material for a single topic.
type Tool interface {

	// Name returns the registered name of the tool.
	Name() string

	// Search gathers material about a topic.
	Search(ctx context.Context, topic string) (string, error)
}

// ToolFunction adapts a plain function into a Tool.
type ToolFunction struct {
	name string
	fn   func(ctx context.Context, topic string) (string, error)
}

// NewToolFunction creates a new ToolFunction.
func NewToolFunction(name string, fn func(ctx context.Context, topic string) (string, error)) *ToolFunction {
	return &ToolFunction{name: name, fn: fn}
}

func (t *ToolFunction) Name() string {
	return t.name
}

func (t *ToolFunction) Search(ctx context.Context, topic string) (string, error) {
	return t.fn(ctx, topic)
}

// ToolRegistry maps tool names to implementations. All registrations happen
// at process startup; after that the registry is read-only and safe for
// concurrent lookups without locking.
type ToolRegistry struct {
	names []string
	tools map[string]Tool
}

// NewToolRegistry creates a registry populated with the given tools.
func NewToolRegistry(tools ...Tool) (*ToolRegistry, error) {
	registry := &ToolRegistry{tools: map[string]Tool{}}
	for _, tool := range tools {
		if err := registry.Register(tool); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// Register adds a tool binding. A duplicate name indicates a configuration
// bug and fails rather than silently replacing the earlier binding.
func (r *ToolRegistry) Register(tool Tool) error {
	name := tool.Name()
	if name == "" {
		return NewTaskError(ErrorKindConfiguration, "tool name required")
	}
	if _, exists := r.tools[name]; exists {
		return &DuplicateToolError{Name: name}
	}
	r.tools[name] = tool
	r.names = append(r.names, name)
	return nil
}

// Resolve looks up a tool by name.
func (r *ToolRegistry) Resolve(name string) (Tool, error) {
	tool, ok := r.tools[name]
	if !ok {
		return nil, &UnknownToolError{Name: name}
	}
	return tool, nil
}

// List returns all registered tool names in registration order.
func (r *ToolRegistry) List() []string {
	return append([]string(nil), r.names...)
}
