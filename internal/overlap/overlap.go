// Package overlap scores interval similarity between date windows and finds
// the contiguous range where the most travelers are simultaneously free.
package overlap

import (
	"sort"
	"time"

	"tripweave/internal/model"
)

// NearDuplicateThreshold is the score at or above which two windows are
// treated as the same suggestion.
const NearDuplicateThreshold = 0.6

// Default search lengths for FindBestRange.
const (
	DefaultMinDays = 2
	DefaultMaxDays = 7
)

// Score returns overlapDays / min(durationA, durationB), clamped to [0,1].
// Disjoint or adjacent windows score 0, identical windows or full containment
// of the shorter inside the longer score 1. Windows with missing dates score 0.
func Score(a, b model.DateWindow) float64 {
	if a.Start.IsZero() || a.End.IsZero() || b.Start.IsZero() || b.End.IsZero() {
		return 0
	}
	start := a.Start
	if b.Start.After(start) {
		start = b.Start
	}
	end := a.End
	if b.End.Before(end) {
		end = b.End
	}
	if end.Before(start) {
		return 0
	}
	overlapDays := daysBetween(start, end)
	shorter := a.Days()
	if b.Days() < shorter {
		shorter = b.Days()
	}
	if shorter <= 0 {
		return 0
	}
	score := float64(overlapDays) / float64(shorter)
	if score > 1 {
		score = 1
	}
	return score
}

// Match pairs a window with its similarity score against a candidate.
type Match struct {
	WindowID string
	Score    float64
}

// FindSimilar returns active windows from existing scoring at or above
// threshold against w, sorted by score descending. The window itself is
// excluded.
func FindSimilar(w model.DateWindow, existing []model.DateWindow, threshold float64) []Match {
	var out []Match
	for _, e := range existing {
		if e.Archived || e.ID == w.ID {
			continue
		}
		if s := Score(w, e); s >= threshold {
			out = append(out, Match{WindowID: e.ID, Score: s})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// IsNearDuplicate reports whether any existing active window scores at or
// above the near-duplicate threshold against w.
func IsNearDuplicate(w model.DateWindow, existing []model.DateWindow) bool {
	return len(FindSimilar(w, existing, NearDuplicateThreshold)) > 0
}

// Coverage maps each covered calendar day to the set of travelers whose
// windows span it.
type Coverage map[time.Time]map[string]bool

// BuildCoverage marks every day spanned by each active, non-unstructured
// window as covered by its proposer.
func BuildCoverage(windows []model.DateWindow) Coverage {
	cov := make(Coverage)
	for _, w := range windows {
		if w.Archived || w.Precision == model.PrecisionUnstructured {
			continue
		}
		if w.Start.IsZero() || w.End.IsZero() {
			continue
		}
		for day := dateOnly(w.Start); !day.After(w.End); day = day.AddDate(0, 0, 1) {
			if cov[day] == nil {
				cov[day] = make(map[string]bool)
			}
			cov[day][w.ProposerID] = true
		}
	}
	return cov
}

// Range is a contiguous candidate interval and the travelers free on every
// one of its days.
type Range struct {
	Start         time.Time
	End           time.Time
	CoverageCount int
	UserIDs       []string
}

// FindBestRange brute-forces all contiguous day ranges of lengths
// minDays..maxDays over the covered span, scoring each by the number of
// travelers available on every day of the range. Best by coverage count,
// then by duration. Returns false when no range has any full-span coverage.
//
// O(days^2 x users); fine at trip scale (weeks of days, tens of travelers).
func FindBestRange(windows []model.DateWindow, minDays, maxDays int) (Range, bool) {
	if minDays <= 0 {
		minDays = DefaultMinDays
	}
	if maxDays < minDays {
		maxDays = DefaultMaxDays
	}
	cov := BuildCoverage(windows)
	if len(cov) == 0 {
		return Range{}, false
	}
	var first, last time.Time
	for day := range cov {
		if first.IsZero() || day.Before(first) {
			first = day
		}
		if last.IsZero() || day.After(last) {
			last = day
		}
	}
	var best Range
	found := false
	for length := minDays; length <= maxDays; length++ {
		for start := first; ; start = start.AddDate(0, 0, 1) {
			end := start.AddDate(0, 0, length-1)
			if end.After(last) {
				break
			}
			users := intersect(cov, start, end)
			if len(users) == 0 {
				continue
			}
			duration := daysBetween(start, end)
			if !found || betterThan(len(users), duration, best) {
				best = Range{Start: start, End: end, CoverageCount: len(users), UserIDs: users}
				found = true
			}
		}
	}
	return best, found
}

// RangeCoverage computes the same full-span intersection for one
// caller-specified range, for validating a proposed range directly.
func RangeCoverage(windows []model.DateWindow, start, end time.Time) Range {
	cov := BuildCoverage(windows)
	users := intersect(cov, dateOnly(start), dateOnly(end))
	return Range{Start: dateOnly(start), End: dateOnly(end), CoverageCount: len(users), UserIDs: users}
}

func betterThan(count, duration int, best Range) bool {
	if count != best.CoverageCount {
		return count > best.CoverageCount
	}
	return duration > daysBetween(best.Start, best.End)
}

// intersect returns the travelers covered on every day of [start, end],
// sorted for determinism. Empty if any day is uncovered.
func intersect(cov Coverage, start, end time.Time) []string {
	if end.Before(start) {
		return nil
	}
	var current map[string]bool
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		users := cov[day]
		if len(users) == 0 {
			return nil
		}
		if current == nil {
			current = make(map[string]bool, len(users))
			for u := range users {
				current[u] = true
			}
			continue
		}
		for u := range current {
			if !users[u] {
				delete(current, u)
			}
		}
		if len(current) == 0 {
			return nil
		}
	}
	out := make([]string, 0, len(current))
	for u := range current {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// daysBetween is the inclusive day count of [start, end].
func daysBetween(start, end time.Time) int {
	return int(end.Sub(start).Hours()/24) + 1
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
