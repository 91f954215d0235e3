package stream

import (
	"context"
	"time"

	"github.com/sakura-lang/sakura/pkg/interp"
)

// InterpListener adapts a Manager into an interp.Listener: a single
// long-lived instance registered once on the Interpreter, attributing
// each callback to the execution/tree IDs the facade attached to ctx via
// interp.ContextWithRunMeta.
type InterpListener struct {
	manager *Manager
}

// NewInterpListener builds a Manager-backed interp.Listener.
func NewInterpListener(manager *Manager) *InterpListener {
	return &InterpListener{manager: manager}
}

// OnLeafStart implements interp.Listener.
func (l *InterpListener) OnLeafStart(ctx context.Context, hierarchy, group, name string) {
	meta, _ := interp.RunMetaFromContext(ctx)
	l.manager.Notify(Event{
		Type:        EventLeafStarted,
		ExecutionID: meta.ExecutionID,
		TreeID:      meta.TreeID,
		Timestamp:   time.Now(),
		Hierarchy:   hierarchy,
		Group:       group,
		Name:        name,
	})
}

// OnLeafDone implements interp.Listener.
func (l *InterpListener) OnLeafDone(ctx context.Context, hierarchy, group, name string, success bool, errMsg string, durationMs int64) {
	meta, _ := interp.RunMetaFromContext(ctx)
	eventType := EventLeafCompleted
	if !success {
		eventType = EventLeafFailed
	}
	l.manager.Notify(Event{
		Type:        eventType,
		ExecutionID: meta.ExecutionID,
		TreeID:      meta.TreeID,
		Timestamp:   time.Now(),
		Hierarchy:   hierarchy,
		Group:       group,
		Name:        name,
		Success:     success,
		Error:       errMsg,
		DurationMs:  durationMs,
	})
}
