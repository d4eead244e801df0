// Package resolver decides the assignee for one duty instance date.
// Assignment mode is a closed set dispatched exhaustively; the resolver
// never fails, a definition whose membership changed must not block
// unrelated instances from being generated.
package resolver

import (
	"sort"

	"github.com/maxton76/stall-bokning-sub014/pkg/core/fairness"
	"github.com/maxton76/stall-bokning-sub014/pkg/db"
)

// Request carries everything needed to resolve one instance date
type Request struct {
	Mode            db.AssignmentMode
	RotationGroup   []string
	FixedAssigneeID string
	// RotationCursor is the round-robin position for this instance: the
	// definition's persisted cursor plus the number of instances already
	// generated earlier in the same run.
	RotationCursor int
	// Loads is the in-run fairness snapshot for the relevant accounting
	// period, already including earlier dates of the same run.
	Loads fairness.Loads
}

// Decision is the resolver's output for one date
type Decision struct {
	AssigneeID *string
	Origin     db.AssignmentOrigin
	// Warning is non-empty when a documented fallback applied, e.g. an
	// empty rotation group left the instance unassigned.
	Warning string
}

// Resolve picks the assignee for one instance date
func Resolve(req Request) Decision {
	switch req.Mode {
	case db.ModeFixed:
		if req.FixedAssigneeID == "" {
			return unassigned("fixed-mode definition has no assignee")
		}
		id := req.FixedAssigneeID
		return Decision{AssigneeID: &id, Origin: db.OriginFixed}

	case db.ModeRotation:
		if len(req.RotationGroup) == 0 {
			return unassigned("rotation group is empty")
		}
		id := req.RotationGroup[req.RotationCursor%len(req.RotationGroup)]
		return Decision{AssigneeID: &id, Origin: db.OriginRotation}

	case db.ModeFairDistribution:
		if len(req.RotationGroup) == 0 {
			return unassigned("rotation group is empty")
		}
		id := leastLoaded(req.RotationGroup, req.Loads)
		return Decision{AssigneeID: &id, Origin: db.OriginFairDistribution}

	default:
		return Decision{Origin: db.OriginUnassigned}
	}
}

// leastLoaded picks the member with the lowest holiday-adjusted load.
// Ties break by fewest raw instance count, then lexicographic member ID, so
// resolution is deterministic regardless of map iteration order.
func leastLoaded(group []string, loads fairness.Loads) string {
	candidates := make([]string, len(group))
	copy(candidates, group)
	sort.Strings(candidates)

	best := candidates[0]
	bestLoad := loads[best]
	for _, id := range candidates[1:] {
		load := loads[id]
		if load.Adjusted < bestLoad.Adjusted ||
			(load.Adjusted == bestLoad.Adjusted && load.Count < bestLoad.Count) {
			best = id
			bestLoad = load
		}
	}
	return best
}

func unassigned(warning string) Decision {
	return Decision{Origin: db.OriginUnassigned, Warning: warning}
}
