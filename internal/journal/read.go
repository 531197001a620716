package journal

import (
	"context"
	"database/sql"
	"fmt"
)

// ReadNavigations returns the navigations of session, or of every session
// when session is empty.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if no records exist.
func (j *Journal) ReadNavigations(ctx context.Context, session string) ([]NavigationRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, session, seq, nav_trigger, from_path, to_path, outcome, error_code, message
		FROM navigations
		WHERE ? = '' OR session = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, session, session)
	if err != nil {
		return nil, fmt.Errorf("query navigations: %w", err)
	}
	defer rows.Close()

	navs := []NavigationRecord{}
	for rows.Next() {
		var n NavigationRecord
		if err := rows.Scan(&n.ID, &n.Session, &n.Seq, &n.Trigger, &n.From, &n.To, &n.Outcome, &n.ErrorCode, &n.Message); err != nil {
			return nil, fmt.Errorf("scan navigation: %w", err)
		}
		navs = append(navs, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate navigations: %w", err)
	}
	return navs, nil
}

// ReadMutations returns the mutations of session, or of every session when
// session is empty, in commit order.
//
// Returns an empty slice (not nil) if no records exist.
func (j *Journal) ReadMutations(ctx context.Context, session string) ([]MutationRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, session, seq, type, payload, state_hash
		FROM mutations
		WHERE ? = '' OR session = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, session, session)
	if err != nil {
		return nil, fmt.Errorf("query mutations: %w", err)
	}
	defer rows.Close()

	muts := []MutationRecord{}
	for rows.Next() {
		m, err := scanMutation(rows)
		if err != nil {
			return nil, err
		}
		muts = append(muts, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mutations: %w", err)
	}
	return muts, nil
}

// Sessions lists the recorded sessions in order of first activity.
func (j *Journal) Sessions(ctx context.Context) ([]string, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT session FROM (
			SELECT session, MIN(seq) AS first_seq FROM navigations GROUP BY session
			UNION ALL
			SELECT session, MIN(seq) AS first_seq FROM mutations GROUP BY session
		)
		GROUP BY session
		ORDER BY MIN(first_seq) ASC, session COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

func scanMutation(rows *sql.Rows) (MutationRecord, error) {
	var (
		m       MutationRecord
		payload string
	)
	if err := rows.Scan(&m.ID, &m.Session, &m.Seq, &m.Type, &payload, &m.StateHash); err != nil {
		return MutationRecord{}, fmt.Errorf("scan mutation: %w", err)
	}
	v, err := unmarshalPayload(payload)
	if err != nil {
		return MutationRecord{}, fmt.Errorf("mutation %s: %w", m.ID, err)
	}
	m.Payload = v
	return m, nil
}
