package journal

import (
	"context"
	"fmt"

	"github.com/corleone113/waypoint/internal/ir"
	"github.com/corleone113/waypoint/internal/store"
)

// ReplayResult reports a replay.
type ReplayResult struct {
	// Applied is the number of mutations committed.
	Applied int
	// Deterministic is true when every replayed commit produced the state
	// fingerprint that was journaled for it.
	Deterministic bool
	// DivergedAt is the seq of the first commit whose fingerprint
	// differed, or 0.
	DivergedAt int64
	// FinalHash is the fingerprint of the state after the last commit.
	FinalHash string
}

// Replay re-commits the journaled mutations of session into st in order.
// st must start from the state the session started from.
//
// A commit with no registered handler stops the replay with an error.
func (j *Journal) Replay(ctx context.Context, st *store.Store, session string) (ReplayResult, error) {
	muts, err := j.ReadMutations(ctx, session)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay: %w", err)
	}

	result := ReplayResult{Deterministic: true}
	for _, m := range muts {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("replay: %w", err)
		}
		if err := st.Commit(m.Type, m.Payload); err != nil {
			return result, fmt.Errorf("replay seq %d: %w", m.Seq, err)
		}
		result.Applied++

		hash, err := ir.StateHash(st.Snapshot())
		if err != nil {
			return result, fmt.Errorf("replay seq %d: %w", m.Seq, err)
		}
		result.FinalHash = hash
		if hash != m.StateHash && result.Deterministic {
			result.Deterministic = false
			result.DivergedAt = m.Seq
		}
	}

	if result.FinalHash == "" {
		hash, err := ir.StateHash(st.Snapshot())
		if err != nil {
			return result, fmt.Errorf("replay: %w", err)
		}
		result.FinalHash = hash
	}
	return result, nil
}
