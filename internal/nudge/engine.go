package nudge

import (
	"context"
	"fmt"
	"sort"
	"time"

	"tripweave/internal/model"
	"tripweave/internal/overlap"
)

// Result is what the presentation layer renders: at most one actionable and
// one celebratory nudge, never more than two total.
type Result struct {
	Nudges           []model.Nudge
	ActionNudge      *model.Nudge
	CelebratoryNudge *model.Nudge
}

// ComputeNudges evaluates the ambient rules over precomputed metrics.
// Hosted trips short-circuit to an empty result; the scheduling funnel does
// not apply to them. Selection: firing rules are partitioned into celebratory
// and actionable, each group is sorted by ascending priority number, and the
// head of each group is taken.
func ComputeNudges(trip *model.TripSnapshot, m Metrics, v Viewer) Result {
	var res Result
	if trip == nil || trip.Type == model.TripHosted {
		return res
	}

	var celebratory, actionable []model.Nudge
	for _, r := range ambientRules {
		n := r(m, trip, v)
		if n == nil {
			continue
		}
		if n.Celebratory() {
			celebratory = append(celebratory, *n)
		} else {
			actionable = append(actionable, *n)
		}
	}
	sort.SliceStable(actionable, func(i, j int) bool { return actionable[i].Priority < actionable[j].Priority })
	sort.SliceStable(celebratory, func(i, j int) bool { return celebratory[i].Priority < celebratory[j].Priority })

	if len(actionable) > 0 {
		res.ActionNudge = &actionable[0]
		res.Nudges = append(res.Nudges, actionable[0])
	}
	if len(celebratory) > 0 {
		res.CelebratoryNudge = &celebratory[0]
		res.Nudges = append(res.Nudges, celebratory[0])
	}
	return res
}

// CheckWindowLimit is the on-demand guard for a traveler about to add a
// window while already holding the per-user maximum. Callers invoke it with
// fresh metrics before committing the write.
func CheckWindowLimit(trip *model.TripSnapshot, m Metrics, v Viewer) *model.Nudge {
	if trip == nil || trip.Type == model.TripHosted {
		return nil
	}
	if m.ViewerWindowCount < model.MaxWindowsPerUser {
		return nil
	}
	return newNudge(model.NudgeWindowLimit, model.AudienceTraveler, model.PriorityMedium, TravelerCooldownHours,
		fmt.Sprintf("window_limit:%s:%s", trip.ID, v.UserID),
		map[string]any{"max": model.MaxWindowsPerUser, "held": m.ViewerWindowCount})
}

// CheckPromotion is the on-demand confirmation for a leader promoting a range
// whose coverage is below the viability floor. It surfaces a confirmation
// prompt, never a hard block; the attempted range comes from the caller, not
// the persisted snapshot.
func CheckPromotion(trip *model.TripSnapshot, v Viewer, attempted overlap.Range, travelerCount int) *model.Nudge {
	if trip == nil || trip.Type == model.TripHosted || !v.Leader {
		return nil
	}
	if travelerCount <= 0 {
		return nil
	}
	pct := 100 * float64(attempted.CoverageCount) / float64(travelerCount)
	if pct >= LowCoverageMinPct {
		return nil
	}
	return newNudge(model.NudgeLowCoverage, model.AudienceLeader, model.PriorityCritical, ConfirmCooldownHours,
		fmt.Sprintf("low_coverage:%s:%s", trip.ID, rangeKey(attempted)),
		rangePayload(attempted, pct))
}

// Suppressor answers whether a nudge with the given dedupe key is still in
// cooldown for a viewer. The ledger implements it.
type Suppressor interface {
	Suppressed(ctx context.Context, tripID, userID, dedupeKey string, cooldownHours int, now time.Time) (bool, error)
}

// SelectEligible drops nudges the suppressor reports as in-cooldown and
// rebuilds the result. A failing suppression check counts as eligible; a
// stray repeat costs less than hiding a wanted prompt.
func SelectEligible(ctx context.Context, sup Suppressor, tripID, userID string, res Result, now time.Time) Result {
	if sup == nil {
		return res
	}
	var out Result
	keep := func(n *model.Nudge) *model.Nudge {
		if n == nil {
			return nil
		}
		hit, err := sup.Suppressed(ctx, tripID, userID, n.DedupeKey, n.CooldownHours, now)
		if err == nil && hit {
			return nil
		}
		return n
	}
	if n := keep(res.ActionNudge); n != nil {
		out.ActionNudge = n
		out.Nudges = append(out.Nudges, *n)
	}
	if n := keep(res.CelebratoryNudge); n != nil {
		out.CelebratoryNudge = n
		out.Nudges = append(out.Nudges, *n)
	}
	return out
}

func isoDay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
