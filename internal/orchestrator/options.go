package orchestrator

import (
	"github.com/ShayCichocki/waypoint/internal/registry"
)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithRetriever overrides the default subprocess-isolated retrieval
// worker.
func WithRetriever(r Retriever) Option {
	return func(c *Coordinator) { c.retriever = r }
}

// WithRegistry overrides the default builtin capability catalogue.
// The registry is frozen by New regardless of origin.
func WithRegistry(reg *registry.Registry) Option {
	return func(c *Coordinator) { c.registry = reg }
}

// WithPlanner overrides the default planner.
func WithPlanner(p *Planner) Option {
	return func(c *Coordinator) { c.planner = p }
}

// WithSink routes progress events to the given sink.
func WithSink(sink Sink, queueSize, auditSize int) Option {
	return func(c *Coordinator) {
		c.reporter = NewReporter(sink, queueSize, auditSize)
	}
}

// WithReporter overrides the reporter entirely.
func WithReporter(r *Reporter) Option {
	return func(c *Coordinator) { c.reporter = r }
}

// WithLogger sets the debug logger. Defaults to a no-op logger.
func WithLogger(l *DebugLogger) Option {
	return func(c *Coordinator) { c.logger = l }
}
