package pg

import (
	"context"
	"encoding/json"

	"factura.org/internal/audit"
	"factura.org/internal/ids"
)

func (s *Store) Append(ctx context.Context, event *audit.Event) error {
	if event.ID == "" {
		event.ID = ids.New()
	}
	meta, err := json.Marshal(event.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into audit_events(id, actor_uid, actor_email, action, target, metadata, created_at)
		values ($1, $2, $3, $4, $5, $6, $7)
	`, event.ID, event.ActorUID, event.ActorEmail, event.Action, event.Target, meta, event.CreatedAt)
	return err
}
