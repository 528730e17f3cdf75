// Package funnel classifies a trip's scheduling progress. Classification is a
// pure function of its inputs; there is no transition log, the state is
// recomputed from current data on every call.
package funnel

import (
	"tripweave/internal/model"
)

// StatusLocked is the trip status value that, together with both locked
// dates, marks dates as locked even when the DatesLocked flag is unset.
const StatusLocked = "locked"

// Input bundles everything classification reads. Windows and Reactions may be
// nil; a nil Trip classifies as NO_DATES.
type Input struct {
	Trip          *model.TripSnapshot
	Windows       []model.DateWindow
	Reactions     []model.DateReaction
	TravelerCount int
}

// Classify maps trip data to a funnel state. Rules run in order, first match
// wins:
//
//  1. hosted trips are HOSTED_LOCKED regardless of windows or reactions
//  2. locked dates are DATES_LOCKED
//  3. no active windows and no active proposal is NO_DATES
//  4. active windows without a proposal is WINDOWS_OPEN
//  5. a proposal with enough WORKS reactions is READY_TO_LOCK, otherwise
//     DATE_PROPOSED
func Classify(in Input) model.FunnelState {
	trip := in.Trip
	if trip == nil {
		return model.StateNoDates
	}
	if trip.Type == model.TripHosted {
		return model.StateHostedLocked
	}
	if trip.DatesLocked || (trip.Status == StatusLocked && !trip.LockedStart.IsZero() && !trip.LockedEnd.IsZero()) {
		return model.StateDatesLocked
	}

	proposal := ActiveProposal(in.Windows)
	hasWindows := false
	for _, w := range in.Windows {
		if w.Active() {
			hasWindows = true
			break
		}
	}
	if proposal == nil {
		if !hasWindows {
			return model.StateNoDates
		}
		return model.StateWindowsOpen
	}

	approvals := CountApprovals(in.Reactions, proposal.ID)
	if approvals >= RequiredApprovals(in.TravelerCount) {
		return model.StateReadyToLock
	}
	return model.StateDateProposed
}

// ActiveProposal returns the first non-archived proposed window, or nil.
func ActiveProposal(windows []model.DateWindow) *model.DateWindow {
	for i := range windows {
		if windows[i].IsProposed && windows[i].Active() {
			return &windows[i]
		}
	}
	return nil
}

// CountApprovals counts WORKS reactions on the given proposal. CAVEAT and
// CANT never count toward approval.
func CountApprovals(reactions []model.DateReaction, windowID string) int {
	n := 0
	for _, r := range reactions {
		if r.WindowID == windowID && r.Type == model.ReactionWorks {
			n++
		}
	}
	return n
}

// RequiredApprovals is the quorum for locking a proposal: a majority of
// travelers, never less than one.
func RequiredApprovals(travelerCount int) int {
	if travelerCount <= 1 {
		return 1
	}
	return (travelerCount + 1) / 2
}
