package audit

import (
	"context"
	"time"

	"factura.org/internal/obs"
)

// Event is an append-only record of a privileged action.
type Event struct {
	ID         string         `json:"id"`
	ActorUID   string         `json:"actorUid"`
	ActorEmail string         `json:"actorEmail,omitempty"`
	Action     string         `json:"action"`
	Target     string         `json:"target,omitempty"`
	Metadata   map[string]any `json:"metadata"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// Store appends immutable events.
type Store interface {
	Append(ctx context.Context, event *Event) error
}

// Recorder writes audit events as a write-only sink. Failures are logged and
// swallowed: an audit write must never block or fail the operation it
// describes.
type Recorder struct {
	store Store
	now   func() time.Time
}

// NewRecorder constructs a Recorder.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

// Record appends the event, best effort.
func (r *Recorder) Record(ctx context.Context, event Event) {
	if r == nil || r.store == nil {
		return
	}
	if event.ActorUID == "" {
		event.ActorUID = "system"
	}
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}
	event.CreatedAt = r.now().UTC()
	if err := r.store.Append(ctx, &event); err != nil {
		obs.LogError("audit", "failed to record audit event", err)
	}
}
