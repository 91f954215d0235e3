// Package stream provides non-blocking progress-event broadcasting for
// Sakura tree executions: a typed Event, pluggable EventFilter
// predicates, a fan-out Manager, and a gorilla/websocket-backed Observer
// for live clients.
package stream

import "time"

// EventType identifies the kind of lifecycle event (dot notation).
type EventType string

const (
	EventTreeStarted   EventType = "tree.started"
	EventTreeCompleted EventType = "tree.completed"
	EventTreeFailed    EventType = "tree.failed"
	EventLeafStarted   EventType = "leaf.started"
	EventLeafCompleted EventType = "leaf.completed"
	EventLeafFailed    EventType = "leaf.failed"
)

// Event describes a single Sakura execution lifecycle occurrence.
type Event struct {
	Type        EventType
	ExecutionID string
	TreeID      string
	Timestamp   time.Time

	Hierarchy string // breadcrumb path of the node this event concerns
	Group     string // blossom group, for leaf events
	Name      string // blossom name, for leaf events

	Success    bool
	Error      string
	DurationMs int64
}

// Observer receives execution events.
type Observer interface {
	OnEvent(event Event) error
	Name() string
	Filter() EventFilter
}

// EventFilter decides whether an observer should be notified of event.
type EventFilter interface {
	ShouldNotify(event Event) bool
}

// EventTypeFilter passes only events whose Type is in the allowed set.
type EventTypeFilter struct {
	allowed map[EventType]bool
}

// NewEventTypeFilter builds a filter for the given types. An empty list
// returns nil (no filter, all events pass).
func NewEventTypeFilter(types ...EventType) EventFilter {
	if len(types) == 0 {
		return nil
	}
	f := &EventTypeFilter{allowed: make(map[EventType]bool, len(types))}
	for _, t := range types {
		f.allowed[t] = true
	}
	return f
}

// ShouldNotify implements EventFilter.
func (f *EventTypeFilter) ShouldNotify(event Event) bool {
	if f == nil || len(f.allowed) == 0 {
		return true
	}
	return f.allowed[event.Type]
}

// ExecutionIDFilter passes only events for one execution.
type ExecutionIDFilter struct {
	executionID string
}

// NewExecutionIDFilter builds a filter scoped to a single execution.
func NewExecutionIDFilter(executionID string) EventFilter {
	return &ExecutionIDFilter{executionID: executionID}
}

// ShouldNotify implements EventFilter.
func (f *ExecutionIDFilter) ShouldNotify(event Event) bool {
	return event.ExecutionID == f.executionID
}

// CompoundEventFilter requires every sub-filter to pass.
type CompoundEventFilter struct {
	filters []EventFilter
}

// NewCompoundEventFilter composes filters with AND semantics, dropping
// nil sub-filters. Returns nil if nothing remains.
func NewCompoundEventFilter(filters ...EventFilter) EventFilter {
	nonNil := make([]EventFilter, 0, len(filters))
	for _, f := range filters {
		if f != nil {
			nonNil = append(nonNil, f)
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	default:
		return &CompoundEventFilter{filters: nonNil}
	}
}

// ShouldNotify implements EventFilter.
func (f *CompoundEventFilter) ShouldNotify(event Event) bool {
	for _, filter := range f.filters {
		if !filter.ShouldNotify(event) {
			return false
		}
	}
	return true
}
