// Package registry maintains the catalogue of analysis capabilities
// available to plan execution.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ShayCichocki/waypoint/pkg/models"
)

// Common errors for capability lookup and registration.
var (
	// ErrNotFound indicates the requested capability is not registered.
	ErrNotFound = errors.New("capability not found")
	// ErrAlreadyRegistered indicates a capability with that name exists.
	ErrAlreadyRegistered = errors.New("capability already registered")
	// ErrFrozen indicates registration was attempted after execution began.
	ErrFrozen = errors.New("registry is frozen")
)

// Input carries a capability invocation's inputs: the request being
// analyzed and the retrieval context gathered for it.
type Input struct {
	Request   models.Request
	Retrieval *models.RetrievalResult
	// Prior holds results of capabilities from earlier phases, keyed
	// by capability name. Later phases build on earlier output.
	Prior map[string]*Result
}

// Result is the output of a single capability invocation.
type Result struct {
	Capability string
	// Findings are category-to-statements produced by the capability.
	Findings map[string][]string
	// Confidence is the capability's self-assessed confidence in [0, 1].
	Confidence float64
}

// Invoker executes a capability against an input. Implementations must
// respect context cancellation: the scheduler enforces per-task
// timeouts through the context it passes.
type Invoker interface {
	Invoke(ctx context.Context, input Input) (*Result, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, input Input) (*Result, error)

// Invoke calls the underlying function.
func (f InvokerFunc) Invoke(ctx context.Context, input Input) (*Result, error) {
	return f(ctx, input)
}

// Capability describes a registered analysis capability: its identity,
// resource weight, and the invoker that executes it.
type Capability struct {
	// Name is the unique identifier used in plans.
	Name string
	// Description is a short human-readable summary.
	Description string
	// ResourceClass determines the work units charged per invocation.
	ResourceClass models.ResourceClass
	// Invoker executes the capability.
	Invoker Invoker
}

// Registry is a thread-safe capability catalogue. Registration happens
// at startup; Freeze locks the catalogue before execution so that a
// plan's capability set cannot shift underneath the scheduler.
type Registry struct {
	mu           sync.RWMutex
	capabilities map[string]Capability
	frozen       bool
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{capabilities: make(map[string]Capability)}
}

// Register adds a capability to the catalogue.
func (r *Registry) Register(cap Capability) error {
	if cap.Name == "" {
		return errors.New("capability name is required")
	}
	if cap.Invoker == nil {
		return fmt.Errorf("capability %s has no invoker", cap.Name)
	}
	if !cap.ResourceClass.Valid() {
		return fmt.Errorf("capability %s has invalid resource class %q", cap.Name, cap.ResourceClass)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("%w: cannot register %s", ErrFrozen, cap.Name)
	}
	if _, ok := r.capabilities[cap.Name]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, cap.Name)
	}

	r.capabilities[cap.Name] = cap
	return nil
}

// Get returns the named capability.
func (r *Registry) Get(name string) (Capability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cap, ok := r.capabilities[name]
	if !ok {
		return Capability{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return cap, nil
}

// List returns all registered capabilities sorted by name.
func (r *Registry) List() []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	caps := make([]Capability, 0, len(r.capabilities))
	for _, cap := range r.capabilities {
		caps = append(caps, cap)
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i].Name < caps[j].Name })
	return caps
}

// Freeze prevents further registration. Idempotent.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Frozen reports whether the registry has been frozen.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}
