package overlap

import (
	"math"
	"testing"
	"time"

	"tripweave/internal/model"
)

func day(d int) time.Time { return time.Date(2025, time.March, d, 0, 0, 0, 0, time.UTC) }

func win(id, user string, start, end int) model.DateWindow {
	return model.DateWindow{ID: id, ProposerID: user, Start: day(start), End: day(end), Precision: model.PrecisionExact}
}

func TestScore(t *testing.T) {
	a := win("a", "u1", 1, 5)
	b := win("b", "u2", 4, 8)
	if got := Score(a, b); math.Abs(got-0.4) > 1e-9 {
		t.Fatalf("Score = %v, want 0.4", got)
	}
	if got := Score(a, a); got != 1 {
		t.Fatalf("identical windows = %v, want 1", got)
	}
	// Shorter fully inside longer.
	if got := Score(win("c", "u1", 2, 3), win("d", "u2", 1, 10)); got != 1 {
		t.Fatalf("containment = %v, want 1", got)
	}
	// Adjacent (b starts the day after a ends) does not overlap.
	if got := Score(win("e", "u1", 1, 5), win("f", "u2", 6, 9)); got != 0 {
		t.Fatalf("adjacent = %v, want 0", got)
	}
	if got := Score(win("g", "u1", 1, 2), win("h", "u2", 20, 22)); got != 0 {
		t.Fatalf("disjoint = %v, want 0", got)
	}
	if got := Score(model.DateWindow{ID: "i"}, a); got != 0 {
		t.Fatalf("missing dates = %v, want 0", got)
	}
}

func TestFindSimilar(t *testing.T) {
	w := win("new", "u1", 1, 5)
	existing := []model.DateWindow{
		win("exact", "u2", 1, 5),
		win("close", "u3", 2, 6),
		win("far", "u4", 20, 25),
		{ID: "archived", ProposerID: "u5", Start: day(1), End: day(5), Archived: true},
	}
	matches := FindSimilar(w, existing, NearDuplicateThreshold)
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	if matches[0].WindowID != "exact" || matches[0].Score != 1 {
		t.Fatalf("best match = %+v, want exact at 1.0", matches[0])
	}
	if matches[1].Score > matches[0].Score {
		t.Fatal("matches not sorted by score descending")
	}
	if !IsNearDuplicate(w, existing) {
		t.Fatal("expected a near-duplicate")
	}
	if IsNearDuplicate(win("solo", "u1", 20, 21), []model.DateWindow{w}) {
		t.Fatal("disjoint window flagged as near-duplicate")
	}
}

func TestBuildCoverage(t *testing.T) {
	cov := BuildCoverage([]model.DateWindow{
		win("a", "u1", 1, 3),
		win("b", "u2", 2, 4),
		{ID: "c", ProposerID: "u3", Start: day(1), End: day(3), Precision: model.PrecisionUnstructured},
	})
	if len(cov[day(2)]) != 2 {
		t.Fatalf("day 2 coverage = %d users, want 2", len(cov[day(2)]))
	}
	if cov[day(1)]["u3"] {
		t.Fatal("unstructured window should not contribute coverage")
	}
}

func TestFindBestRange(t *testing.T) {
	windows := []model.DateWindow{
		win("a", "u1", 1, 7),
		win("b", "u2", 3, 9),
		win("c", "u3", 4, 6),
	}
	best, ok := FindBestRange(windows, 2, 7)
	if !ok {
		t.Fatal("expected a best range")
	}
	// Days 4-6 are the only days all three share.
	if !best.Start.Equal(day(4)) || !best.End.Equal(day(6)) {
		t.Fatalf("best range %s..%s, want Mar 4..6", best.Start.Format("01-02"), best.End.Format("01-02"))
	}
	if best.CoverageCount != 3 || len(best.UserIDs) != 3 {
		t.Fatalf("coverage = %d (%v), want 3", best.CoverageCount, best.UserIDs)
	}
}

func TestFindBestRangeProperties(t *testing.T) {
	windows := []model.DateWindow{
		win("a", "u1", 1, 10),
		win("b", "u2", 5, 14),
		win("c", "u3", 8, 12),
		win("d", "u1", 20, 24),
	}
	const travelerCount = 3
	best, ok := FindBestRange(windows, 2, 7)
	if !ok {
		t.Fatal("expected a best range")
	}
	if best.CoverageCount > travelerCount {
		t.Fatalf("coverage %d exceeds traveler count %d", best.CoverageCount, travelerCount)
	}
	dur := int(best.End.Sub(best.Start).Hours()/24) + 1
	if dur < 2 || dur > 7 {
		t.Fatalf("duration %d outside [2,7]", dur)
	}
}

func TestFindBestRangePrefersCoverageThenDuration(t *testing.T) {
	// Two travelers share days 1-7; a third is around only on day 20.
	windows := []model.DateWindow{
		win("a", "u1", 1, 7),
		win("b", "u2", 1, 7),
		win("c", "u3", 20, 20),
	}
	best, ok := FindBestRange(windows, 2, 7)
	if !ok {
		t.Fatal("expected a best range")
	}
	if best.CoverageCount != 2 {
		t.Fatalf("coverage = %d, want 2", best.CoverageCount)
	}
	// Among equal-coverage ranges the longer one wins.
	if got := int(best.End.Sub(best.Start).Hours()/24) + 1; got != 7 {
		t.Fatalf("duration = %d, want 7", got)
	}
}

func TestFindBestRangeEmpty(t *testing.T) {
	if _, ok := FindBestRange(nil, 2, 7); ok {
		t.Fatal("no windows should yield no range")
	}
	archived := []model.DateWindow{{ID: "a", ProposerID: "u1", Start: day(1), End: day(5), Archived: true}}
	if _, ok := FindBestRange(archived, 2, 7); ok {
		t.Fatal("archived-only windows should yield no range")
	}
}

func TestRangeCoverage(t *testing.T) {
	windows := []model.DateWindow{
		win("a", "u1", 1, 7),
		win("b", "u2", 3, 9),
	}
	r := RangeCoverage(windows, day(3), day(5))
	if r.CoverageCount != 2 {
		t.Fatalf("coverage = %d, want 2", r.CoverageCount)
	}
	// Day 8 is only covered by u2, so the intersection over 3..8 drops u1.
	r = RangeCoverage(windows, day(3), day(8))
	if r.CoverageCount != 1 || r.UserIDs[0] != "u2" {
		t.Fatalf("coverage = %+v, want just u2", r)
	}
	// A range touching an uncovered day has no full-span coverage.
	r = RangeCoverage(windows, day(7), day(12))
	if r.CoverageCount != 0 {
		t.Fatalf("coverage = %d, want 0", r.CoverageCount)
	}
}
