// Package nudge computes at most one actionable and one celebratory
// suggestion per viewer from scheduling metrics, with cooldown-based
// suppression delegated to the ledger.
package nudge

import (
	"time"

	"tripweave/internal/funnel"
	"tripweave/internal/model"
	"tripweave/internal/overlap"
)

// Metrics is the pure scheduling summary the rule evaluators read. Built once
// per request by BuildMetrics.
type Metrics struct {
	TravelerCount     int
	ActiveWindowCount int
	SubmittedCount    int
	CompletionPct     float64
	BestRange         *overlap.Range
	BestCoveragePct   float64
	HasProposal       bool
	ProposalID        string
	ProposalApprovals int
	ApprovalPct       float64
	DatesLocked       bool
	LockedStart       time.Time
	LockedEnd         time.Time
	ViewerWindowCount int
}

// Viewer identifies who the nudges are being computed for.
type Viewer struct {
	UserID string
	Leader bool
}

// BuildMetrics summarizes windows, reactions and the roster for one viewer.
// Null-safe over incomplete data: a nil trip or empty lists degrade to zero
// metrics rather than failing.
func BuildMetrics(trip *model.TripSnapshot, windows []model.DateWindow, reactions []model.DateReaction, travelerIDs []string, viewerID string) Metrics {
	var m Metrics
	m.TravelerCount = len(travelerIDs)
	if m.TravelerCount == 0 && trip != nil {
		m.TravelerCount = trip.TravelerCount
	}

	submitted := make(map[string]bool)
	for _, w := range windows {
		if !w.Active() {
			continue
		}
		m.ActiveWindowCount++
		submitted[w.ProposerID] = true
		if w.ProposerID == viewerID {
			m.ViewerWindowCount++
		}
	}
	m.SubmittedCount = len(submitted)
	if m.TravelerCount > 0 {
		m.CompletionPct = 100 * float64(m.SubmittedCount) / float64(m.TravelerCount)
	}

	if best, ok := overlap.FindBestRange(windows, overlap.DefaultMinDays, overlap.DefaultMaxDays); ok {
		m.BestRange = &best
		if m.TravelerCount > 0 {
			m.BestCoveragePct = 100 * float64(best.CoverageCount) / float64(m.TravelerCount)
		}
	}

	if p := funnel.ActiveProposal(windows); p != nil {
		m.HasProposal = true
		m.ProposalID = p.ID
		m.ProposalApprovals = funnel.CountApprovals(reactions, p.ID)
		if m.TravelerCount > 0 {
			m.ApprovalPct = 100 * float64(m.ProposalApprovals) / float64(m.TravelerCount)
		}
	}

	if trip != nil {
		m.DatesLocked = trip.DatesLocked || (trip.Status == funnel.StatusLocked && !trip.LockedStart.IsZero() && !trip.LockedEnd.IsZero())
		m.LockedStart = trip.LockedStart
		m.LockedEnd = trip.LockedEnd
	}
	return m
}
