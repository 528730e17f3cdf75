// Package window turns free-text date suggestions into normalized calendar
// intervals and validates them against a trip's outer planning envelope.
package window

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"tripweave/internal/model"
	"tripweave/internal/util"
)

// Context supplies year and bound hints for normalization. StartBound and
// EndBound are UTC-midnight dates; zero values mean unset.
type Context struct {
	TripYear   int
	StartBound time.Time
	EndBound   time.Time
}

// ParseError is a structured rejection of a date suggestion. The message is
// user-facing; callers decide transport status.
type ParseError struct {
	Msg string
}

func (e *ParseError) Error() string { return e.Msg }

func parseErr(format string, args ...any) error {
	return &ParseError{Msg: fmt.Sprintf(format, args...)}
}

var months = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

// hedgeWords reject multi-range or noncommittal submissions outright.
var hedgeWords = []string{"either", "anytime", "any time", "flexible", "whenever"}

const sep = `\s*(?:-|–|—|to|through|until)\s*`

var (
	reISORange    = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})` + sep + `(\d{4})-(\d{1,2})-(\d{1,2})$`)
	reISOSingle   = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	reMonthRange  = regexp.MustCompile(`(?i)^([a-z]+)\.?\s+(\d{1,2})(?:st|nd|rd|th)?` + sep + `(\d{1,2})(?:st|nd|rd|th)?(?:,?\s+(\d{4}))?$`)
	reCrossMonth  = regexp.MustCompile(`(?i)^([a-z]+)\.?\s+(\d{1,2})(?:st|nd|rd|th)?` + sep + `([a-z]+)\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s+(\d{4}))?$`)
	reMonthSingle = regexp.MustCompile(`(?i)^([a-z]+)\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s+(\d{4}))?$`)
	reRelMonth    = regexp.MustCompile(`(?i)^(early|mid|late|beginning of|end of)\s+([a-z]+)\.?(?:,?\s+(\d{4}))?$`)
	reOrdWeek     = regexp.MustCompile(`(?i)^(first|second|third|fourth|1st|2nd|3rd|4th)\s+week\s+of\s+([a-z]+)\.?(?:,?\s+(\d{4}))?$`)
	reOrdWeekend  = regexp.MustCompile(`(?i)^(?:the\s+)?(?:first|1st)\s+weekend\s+(?:of|in)\s+([a-z]+)\.?(?:,?\s+(\d{4}))?$`)
)

var ordinalWeeks = map[string]int{
	"first": 1, "1st": 1,
	"second": 2, "2nd": 2,
	"third": 3, "3rd": 3,
	"fourth": 4, "4th": 4,
}

// Normalize parses a free-text date suggestion into a DateWindow carrying
// Start, End, Precision and SourceText. All rejections come back as a
// *ParseError; Normalize never panics. Identical (text, nctx) inputs always
// produce the identical result.
func Normalize(text string, nctx Context) (model.DateWindow, error) {
	var w model.DateWindow
	clean := util.CollapseWhitespace(text)
	if clean == "" {
		return w, parseErr(`no dates provided, try something like "Feb 7-9"`)
	}
	for _, word := range util.Words(clean) {
		if word == "or" {
			return w, parseErr(`please suggest one date range at a time`)
		}
	}
	if util.ContainsAnyFold(clean, hedgeWords) {
		return w, parseErr(`please suggest one date range at a time`)
	}

	start, end, precision, err := parse(clean, nctx)
	if err != nil {
		return w, err
	}
	if end.Before(start) {
		return w, parseErr("end date is before start date")
	}
	days := int(end.Sub(start).Hours()/24) + 1
	if days > model.MaxWindowDays {
		return w, parseErr("that's %d days, please keep suggestions within the %d-day limit", days, model.MaxWindowDays)
	}
	w.Start = start
	w.End = end
	w.Precision = precision
	w.SourceText = text
	return w, nil
}

func parse(clean string, nctx Context) (time.Time, time.Time, model.Precision, error) {
	var zero time.Time

	if m := reISORange.FindStringSubmatch(clean); m != nil {
		start, err := isoDate(m[1], m[2], m[3])
		if err != nil {
			return zero, zero, "", err
		}
		end, err := isoDate(m[4], m[5], m[6])
		if err != nil {
			return zero, zero, "", err
		}
		return start, end, model.PrecisionExact, nil
	}

	if m := reMonthRange.FindStringSubmatch(clean); m != nil {
		mon, err := monthByName(m[1])
		if err != nil {
			return zero, zero, "", err
		}
		year, err := resolveYear(m[4], nctx)
		if err != nil {
			return zero, zero, "", err
		}
		start, err := calendarDate(year, mon, atoi(m[2]))
		if err != nil {
			return zero, zero, "", err
		}
		end, err := calendarDate(year, mon, atoi(m[3]))
		if err != nil {
			return zero, zero, "", err
		}
		return start, end, model.PrecisionExact, nil
	}

	if m := reCrossMonth.FindStringSubmatch(clean); m != nil {
		startMon, err := monthByName(m[1])
		if err != nil {
			return zero, zero, "", err
		}
		endMon, err := monthByName(m[3])
		if err != nil {
			return zero, zero, "", err
		}
		year, err := resolveYear(m[5], nctx)
		if err != nil {
			return zero, zero, "", err
		}
		start, err := calendarDate(year, startMon, atoi(m[2]))
		if err != nil {
			return zero, zero, "", err
		}
		endYear := year
		if endMon < startMon {
			// Dec 30 to Jan 2 wraps into the next year.
			endYear++
		}
		end, err := calendarDate(endYear, endMon, atoi(m[4]))
		if err != nil {
			return zero, zero, "", err
		}
		return start, end, model.PrecisionExact, nil
	}

	if m := reISOSingle.FindStringSubmatch(clean); m != nil {
		d, err := isoDate(m[1], m[2], m[3])
		if err != nil {
			return zero, zero, "", err
		}
		return d, d, model.PrecisionExact, nil
	}

	if m := reRelMonth.FindStringSubmatch(clean); m != nil {
		mon, err := monthByName(m[2])
		if err != nil {
			return zero, zero, "", err
		}
		year, err := resolveYear(m[3], nctx)
		if err != nil {
			return zero, zero, "", err
		}
		start, end := relativeSpan(strings.ToLower(m[1]), year, mon)
		return start, end, model.PrecisionApprox, nil
	}

	if m := reOrdWeek.FindStringSubmatch(clean); m != nil {
		week := ordinalWeeks[strings.ToLower(m[1])]
		mon, err := monthByName(m[2])
		if err != nil {
			return zero, zero, "", err
		}
		year, err := resolveYear(m[3], nctx)
		if err != nil {
			return zero, zero, "", err
		}
		startDay := (week-1)*7 + 1
		endDay := week * 7
		if endDay > daysInMonth(year, mon) {
			endDay = daysInMonth(year, mon)
		}
		return date(year, mon, startDay), date(year, mon, endDay), model.PrecisionApprox, nil
	}

	if m := reOrdWeekend.FindStringSubmatch(clean); m != nil {
		mon, err := monthByName(m[1])
		if err != nil {
			return zero, zero, "", err
		}
		year, err := resolveYear(m[2], nctx)
		if err != nil {
			return zero, zero, "", err
		}
		sat := firstSaturday(year, mon)
		return sat, sat.AddDate(0, 0, 1), model.PrecisionApprox, nil
	}

	if m := reMonthSingle.FindStringSubmatch(clean); m != nil {
		mon, err := monthByName(m[1])
		if err != nil {
			return zero, zero, "", err
		}
		year, err := resolveYear(m[3], nctx)
		if err != nil {
			return zero, zero, "", err
		}
		d, err := calendarDate(year, mon, atoi(m[2]))
		if err != nil {
			return zero, zero, "", err
		}
		return d, d, model.PrecisionExact, nil
	}

	return zero, zero, "", parseErr("Could not understand %q as a date range", clean)
}

// relativeSpan maps early/mid/late phrasing onto day ranges. "beginning of"
// and "end of" are synonyms of early and late.
func relativeSpan(phrase string, year int, mon time.Month) (time.Time, time.Time) {
	switch phrase {
	case "early", "beginning of":
		return date(year, mon, 1), date(year, mon, 10)
	case "mid":
		return date(year, mon, 11), date(year, mon, 20)
	default: // late, end of
		return date(year, mon, 21), date(year, mon, daysInMonth(year, mon))
	}
}

func monthByName(name string) (time.Month, error) {
	mon, ok := months[strings.ToLower(strings.TrimSuffix(name, "."))]
	if !ok {
		return 0, parseErr("%q is not a month", name)
	}
	return mon, nil
}

// resolveYear applies the year priority: explicit year in text, then the
// trip's year, then the year of the trip's start bound.
func resolveYear(explicit string, nctx Context) (int, error) {
	if explicit != "" {
		return atoi(explicit), nil
	}
	if nctx.TripYear != 0 {
		return nctx.TripYear, nil
	}
	if !nctx.StartBound.IsZero() {
		return nctx.StartBound.Year(), nil
	}
	return 0, parseErr("could not determine a year, include one like \"Feb 7-9, 2026\"")
}

func calendarDate(year int, mon time.Month, day int) (time.Time, error) {
	if day < 1 || day > daysInMonth(year, mon) {
		return time.Time{}, parseErr("%s does not have a day %d", mon, day)
	}
	return date(year, mon, day), nil
}

func isoDate(y, m, d string) (time.Time, error) {
	mon := time.Month(atoi(m))
	if mon < time.January || mon > time.December {
		return time.Time{}, parseErr("%q is not a month", m)
	}
	return calendarDate(atoi(y), mon, atoi(d))
}

func date(year int, mon time.Month, day int) time.Time {
	return time.Date(year, mon, day, 0, 0, 0, 0, time.UTC)
}

func daysInMonth(year int, mon time.Month) int {
	return time.Date(year, mon+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func firstSaturday(year int, mon time.Month) time.Time {
	d := date(year, mon, 1)
	for d.Weekday() != time.Saturday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
