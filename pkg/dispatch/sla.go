package dispatch

import (
	"time"

	"github.com/flashflow/flashflow/pkg/model"
)

type SLATier string

const (
	TierOnTrack SLATier = "on_track"
	TierDueSoon SLATier = "due_soon"
	TierOverdue SLATier = "overdue"
)

// SLAResult classifies how long an item has sat in its current status.
// PriorityScore is a tie-breaker within a tier, never across tiers.
type SLAResult struct {
	Tier          SLATier `json:"sla_status"`
	PriorityScore float64 `json:"priority_score"`
}

// rank orders tiers for dispatch: overdue first.
func (t SLATier) rank() int {
	switch t {
	case TierOverdue:
		return 0
	case TierDueSoon:
		return 1
	default:
		return 2
	}
}

// Score computes the SLA tier and priority for an item. Terminal statuses
// are never scored; callers must not pass them.
func Score(status model.VideoStatus, lastChangedAt, now time.Time, rules Rules) SLAResult {
	window, ok := rules.SLA[status]
	if !ok || status.Terminal() {
		return SLAResult{Tier: TierOnTrack}
	}

	elapsed := now.Sub(lastChangedAt)
	result := SLAResult{Tier: TierOnTrack}
	if elapsed >= window.Overdue {
		result.Tier = TierOverdue
	} else if elapsed >= window.DueSoon {
		result.Tier = TierDueSoon
	}

	// Linear minutes past the due-soon threshold: older items win ties.
	if over := elapsed - window.DueSoon; over > 0 {
		result.PriorityScore = over.Minutes()
	}
	return result
}
