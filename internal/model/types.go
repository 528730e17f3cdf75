package model

import "time"

// Precision describes how a date window was derived from its source text.
type Precision string

const (
	PrecisionExact        Precision = "exact"
	PrecisionApprox       Precision = "approx"
	PrecisionUnstructured Precision = "unstructured"
)

// TripType distinguishes collaboratively scheduled trips from hosted ones
// whose dates are fixed by the host up front.
type TripType string

const (
	TripCollaborative TripType = "collaborative"
	TripHosted        TripType = "hosted"
)

// ReactionType is a traveler's response to a promoted proposal.
type ReactionType string

const (
	ReactionWorks  ReactionType = "WORKS"
	ReactionCaveat ReactionType = "CAVEAT"
	ReactionCant   ReactionType = "CANT"
)

// MaxWindowDays is the longest span a single window may cover, inclusive.
const MaxWindowDays = 14

// MaxWindowsPerUser caps non-archived windows held by one traveler.
const MaxWindowsPerUser = 2

// DateWindow is a traveler-submitted candidate date interval.
// Start and End are calendar dates at UTC midnight, inclusive on both ends.
type DateWindow struct {
	ID           string
	ProposerID   string
	Start        time.Time
	End          time.Time
	Precision    Precision
	SourceText   string
	SupportCount int
	SupporterIDs map[string]bool
	IsProposed   bool
	Archived     bool
}

// Days returns the inclusive day count of the window, 0 if dates are missing.
func (w DateWindow) Days() int {
	if w.Start.IsZero() || w.End.IsZero() {
		return 0
	}
	return int(w.End.Sub(w.Start).Hours()/24) + 1
}

// Active reports whether the window still counts toward scheduling.
func (w DateWindow) Active() bool { return !w.Archived }

// DateReaction records one traveler's response to a proposal. Immutable once
// created; upsert semantics (one active reaction per user per proposal) are
// owned by the caller.
type DateReaction struct {
	UserID    string
	WindowID  string
	Type      ReactionType
	CreatedAt time.Time
}

// TripSnapshot is the read-only trip view supplied by the caller. This core
// never mutates it, it only classifies it.
type TripSnapshot struct {
	ID            string
	Type          TripType
	Status        string
	LockedStart   time.Time
	LockedEnd     time.Time
	DatesLocked   bool
	CreatedBy     string
	TravelerCount int
	CreatedAt     time.Time
}

// FunnelState is the coarse scheduling-progress classification of a trip.
type FunnelState string

const (
	StateHostedLocked FunnelState = "HOSTED_LOCKED"
	StateDatesLocked  FunnelState = "DATES_LOCKED"
	StateReadyToLock  FunnelState = "READY_TO_LOCK"
	StateDateProposed FunnelState = "DATE_PROPOSED"
	StateWindowsOpen  FunnelState = "WINDOWS_OPEN"
	StateNoDates      FunnelState = "NO_DATES"
)

// Terminal reports whether a trip in this state is done scheduling.
func (s FunnelState) Terminal() bool {
	return s == StateHostedLocked || s == StateDatesLocked
}

// NudgeType enumerates the eight nudge kinds.
type NudgeType string

const (
	NudgeFirstWindow    NudgeType = "first_window_submitted"
	NudgeHalfSubmitted  NudgeType = "half_submitted"
	NudgeStrongOverlap  NudgeType = "strong_overlap"
	NudgeDatesLocked    NudgeType = "dates_locked"
	NudgeReadyToPropose NudgeType = "ready_to_propose"
	NudgeReadyToLock    NudgeType = "ready_to_lock"
	NudgeWindowLimit    NudgeType = "window_limit"
	NudgeLowCoverage    NudgeType = "low_coverage_confirm"
)

// Audience selects who a nudge may be shown to.
type Audience string

const (
	AudienceLeader   Audience = "leader"
	AudienceTraveler Audience = "traveler"
	AudienceAll      Audience = "all"
)

// Nudge priorities, 1 is most urgent.
const (
	PriorityCritical = 1
	PriorityHigh     = 2
	PriorityMedium   = 3
	PriorityLow      = 4
)

// Nudge is a computed, copy-agnostic suggestion for one viewer. Ephemeral:
// recomputed per request, never persisted itself.
type Nudge struct {
	ID            string
	Type          NudgeType
	Channel       string
	Audience      Audience
	Priority      int
	Payload       map[string]any
	DedupeKey     string
	CooldownHours int
	ExpiresAt     *time.Time
}

// Celebratory reports whether the nudge celebrates progress rather than
// prompting an action.
func (n Nudge) Celebratory() bool {
	switch n.Type {
	case NudgeFirstWindow, NudgeHalfSubmitted, NudgeStrongOverlap, NudgeDatesLocked:
		return true
	}
	return false
}

// NudgeStatus is the lifecycle of a displayed nudge.
type NudgeStatus string

const (
	NudgeShown     NudgeStatus = "shown"
	NudgeClicked   NudgeStatus = "clicked"
	NudgeDismissed NudgeStatus = "dismissed"
)

// NudgeEventRecord is the persisted trace of a nudge being shown, clicked or
// dismissed, keyed by (TripID, UserID, DedupeKey, Status).
type NudgeEventRecord struct {
	TripID    string
	UserID    string
	DedupeKey string
	NudgeType NudgeType
	Status    NudgeStatus
	CreatedAt time.Time
}

// TripEvent is one append-only ledger entry. Entries are never mutated or
// deleted outside the shown-cache retention window.
type TripEvent struct {
	ID             string
	TripID         string
	EventType      string
	ActorID        string
	ActorRole      string
	Timestamp      time.Time
	TripAgeMs      int64
	IdempotencyKey string
	Payload        map[string]any
	RefEventID     string
	RefLatencyMs   int64
}
