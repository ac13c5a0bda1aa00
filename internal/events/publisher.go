// Package events defines the outbound event boundary of the routing core.
package events

import (
	"context"
	"sync"

	"github.com/capitalize-ai/livechat-platform/internal/model"
)

// Publisher delivers chat events to the transport layer. The core publishes
// only after the state mutation behind an event is durably applied; fan-out
// ordering across agent listeners is the transport's concern.
type Publisher interface {
	Publish(ctx context.Context, event *model.ChatEvent) error
}

// Nop is a Publisher that drops every event.
type Nop struct{}

// Publish discards the event.
func (Nop) Publish(ctx context.Context, event *model.ChatEvent) error {
	return nil
}

// Recorder is a Publisher that captures events in memory, for tests.
type Recorder struct {
	mu     sync.Mutex
	events []model.ChatEvent
}

// Publish records the event.
func (r *Recorder) Publish(ctx context.Context, event *model.ChatEvent) error {
	r.mu.Lock()
	r.events = append(r.events, *event)
	r.mu.Unlock()
	return nil
}

// Events returns a copy of all recorded events.
func (r *Recorder) Events() []model.ChatEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.ChatEvent(nil), r.events...)
}

// ByType returns recorded events of one type.
func (r *Recorder) ByType(t model.EventType) []model.ChatEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ChatEvent
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
