package nudge

import (
	"fmt"

	"github.com/google/uuid"

	"tripweave/internal/model"
	"tripweave/internal/overlap"
)

// Rule thresholds, in percent of the traveler roster.
const (
	HalfSubmittedPct  = 50
	StrongOverlapPct  = 60
	ProposeMinPct     = 40
	LockApprovalPct   = 40
	LowCoverageMinPct = 40
)

// LockApprovalMin is the absolute approval count that makes a proposal
// lockable regardless of roster size.
const LockApprovalMin = 2

// Cooldowns per audience tier, in hours.
const (
	CelebratoryCooldownHours = 24 * 365
	LeaderCooldownHours      = 24 * 3
	TravelerCooldownHours    = 24 * 7
	ConfirmCooldownHours     = 24
)

const ChannelInApp = "in_app"

// rule is one independent evaluator. Returns nil when it does not fire.
type rule func(m Metrics, trip *model.TripSnapshot, v Viewer) *model.Nudge

// ambientRules are evaluated on every ComputeNudges call. The two on-demand
// rules (window limit, low-coverage confirmation) live in engine.go and take
// an attempted-action context instead.
var ambientRules = []rule{
	firstWindowRule,
	halfSubmittedRule,
	strongOverlapRule,
	datesLockedRule,
	readyToProposeRule,
	readyToLockRule,
}

func newNudge(t model.NudgeType, audience model.Audience, priority, cooldownHours int, dedupeKey string, payload map[string]any) *model.Nudge {
	return &model.Nudge{
		ID:            uuid.NewString(),
		Type:          t,
		Channel:       ChannelInApp,
		Audience:      audience,
		Priority:      priority,
		Payload:       payload,
		DedupeKey:     dedupeKey,
		CooldownHours: cooldownHours,
	}
}

// firstWindowRule celebrates the very first availability submission. Fires
// only while exactly one submission exists and scheduling is still open.
func firstWindowRule(m Metrics, trip *model.TripSnapshot, _ Viewer) *model.Nudge {
	if m.ActiveWindowCount != 1 || m.DatesLocked {
		return nil
	}
	return newNudge(model.NudgeFirstWindow, model.AudienceAll, model.PriorityMedium, CelebratoryCooldownHours,
		fmt.Sprintf("first_window:%s", trip.ID),
		map[string]any{"travelerCount": m.TravelerCount})
}

func halfSubmittedRule(m Metrics, trip *model.TripSnapshot, _ Viewer) *model.Nudge {
	if m.DatesLocked || m.CompletionPct < HalfSubmittedPct || m.SubmittedCount < 2 {
		return nil
	}
	return newNudge(model.NudgeHalfSubmitted, model.AudienceAll, model.PriorityMedium, CelebratoryCooldownHours,
		fmt.Sprintf("half_submitted:%s", trip.ID),
		map[string]any{"submitted": m.SubmittedCount, "travelerCount": m.TravelerCount, "completionPct": int(m.CompletionPct)})
}

func strongOverlapRule(m Metrics, trip *model.TripSnapshot, _ Viewer) *model.Nudge {
	if m.DatesLocked || m.BestRange == nil || m.BestCoveragePct < StrongOverlapPct {
		return nil
	}
	return newNudge(model.NudgeStrongOverlap, model.AudienceAll, model.PriorityHigh, CelebratoryCooldownHours,
		fmt.Sprintf("strong_overlap:%s:%s", trip.ID, rangeKey(*m.BestRange)),
		rangePayload(*m.BestRange, m.BestCoveragePct))
}

func datesLockedRule(m Metrics, trip *model.TripSnapshot, _ Viewer) *model.Nudge {
	if !m.DatesLocked {
		return nil
	}
	return newNudge(model.NudgeDatesLocked, model.AudienceAll, model.PriorityHigh, CelebratoryCooldownHours,
		fmt.Sprintf("dates_locked:%s", trip.ID),
		map[string]any{"start": isoDay(m.LockedStart), "end": isoDay(m.LockedEnd)})
}

// readyToProposeRule prompts the leader once a viable overlap exists and
// nothing has been proposed yet.
func readyToProposeRule(m Metrics, trip *model.TripSnapshot, v Viewer) *model.Nudge {
	if !v.Leader || m.DatesLocked || m.HasProposal || m.BestRange == nil || m.BestCoveragePct < ProposeMinPct {
		return nil
	}
	return newNudge(model.NudgeReadyToPropose, model.AudienceLeader, model.PriorityHigh, LeaderCooldownHours,
		fmt.Sprintf("ready_to_propose:%s:%s", trip.ID, rangeKey(*m.BestRange)),
		rangePayload(*m.BestRange, m.BestCoveragePct))
}

// readyToLockRule prompts the leader when a proposal has enough support to
// lock.
func readyToLockRule(m Metrics, trip *model.TripSnapshot, v Viewer) *model.Nudge {
	if !v.Leader || m.DatesLocked || !m.HasProposal {
		return nil
	}
	if m.ProposalApprovals < LockApprovalMin && m.ApprovalPct < LockApprovalPct {
		return nil
	}
	return newNudge(model.NudgeReadyToLock, model.AudienceLeader, model.PriorityHigh, LeaderCooldownHours,
		fmt.Sprintf("ready_to_lock:%s:%s", trip.ID, m.ProposalID),
		map[string]any{"proposalId": m.ProposalID, "approvals": m.ProposalApprovals, "travelerCount": m.TravelerCount})
}

func rangeKey(r overlap.Range) string {
	return isoDay(r.Start) + ":" + isoDay(r.End)
}

func rangePayload(r overlap.Range, coveragePct float64) map[string]any {
	return map[string]any{
		"start":         isoDay(r.Start),
		"end":           isoDay(r.End),
		"coverageCount": r.CoverageCount,
		"coveragePct":   int(coveragePct),
		"userIds":       r.UserIDs,
	}
}
