package journal

import (
	"context"
	"fmt"
)

// WriteNavigation inserts a navigation record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (j *Journal) WriteNavigation(ctx context.Context, nav NavigationRecord) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO navigations
		(id, session, seq, nav_trigger, from_path, to_path, outcome, error_code, message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		nav.ID,
		nav.Session,
		nav.Seq,
		nav.Trigger,
		nav.From,
		nav.To,
		nav.Outcome,
		nav.ErrorCode,
		nav.Message,
	)
	if err != nil {
		return fmt.Errorf("write navigation: %w", err)
	}
	return nil
}

// WriteMutation inserts a mutation record. The payload is stored as
// canonical JSON.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (j *Journal) WriteMutation(ctx context.Context, m MutationRecord) error {
	payload, err := marshalPayload(m.Payload)
	if err != nil {
		return fmt.Errorf("write mutation: %w", err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO mutations
		(id, session, seq, type, payload, state_hash)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		m.ID,
		m.Session,
		m.Seq,
		m.Type,
		payload,
		m.StateHash,
	)
	if err != nil {
		return fmt.Errorf("write mutation: %w", err)
	}
	return nil
}
