// Package tool wraps external retrieval capabilities behind a uniform call
// contract. Adapters never let backend failures escape: every timeout, HTTP
// error, or malformed response becomes a Result with Success=false so the
// agent loop can fold the failure back into the conversation and continue.
package tool

import (
	"context"
	"sync"
)

// MaxPayloadChars bounds the formatted text a tool may feed back into the
// model context. Unbounded tool output could overflow the context window.
const MaxPayloadChars = 4000

// Result is the normalized outcome of a tool call.
type Result struct {
	// Success indicates whether the backend call succeeded.
	Success bool

	// Payload is the formatted text block for re-injection into the
	// model context. Empty on failure.
	Payload string

	// Err is the failure reason. Empty on success.
	Err string
}

// Failure creates a failed Result with the given reason.
func Failure(reason string) Result {
	return Result{Success: false, Err: reason}
}

// Tool is one external retrieval capability.
type Tool interface {
	// Name is the identifier the model uses in action directives.
	Name() string

	// DisplayName is the human-readable name surfaced in tool activity
	// events.
	DisplayName() string

	// Description tells the model what the tool is for. It is woven into
	// the system prompt.
	Description() string

	// Call executes the tool against its backend and returns a normalized
	// result. Implementations must not panic or propagate transport
	// errors past this boundary.
	Call(ctx context.Context, input string) Result
}

// Registry manages the registered tools. It is a stateless singleton from
// the loop's perspective and is safe for concurrent invocation from
// independent loops.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool to the registry.
// Returns an error if a tool with the same name is already registered.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[t.Name()]; exists {
		return &ErrAlreadyRegistered{Name: t.Name()}
	}

	r.tools[t.Name()] = t
	r.order = append(r.order, t.Name())
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(t Tool) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Invoke runs the named tool. Unknown names yield a failed Result rather
// than an error so the loop can inform the model and continue. Successful
// payloads are clamped to MaxPayloadChars.
func (r *Registry) Invoke(ctx context.Context, name, input string) Result {
	t, ok := r.Get(name)
	if !ok {
		return Failure("unknown tool: " + name)
	}

	res := t.Call(ctx, input)
	if len(res.Payload) > MaxPayloadChars {
		res.Payload = res.Payload[:MaxPayloadChars]
	}
	return res
}
