package window

import "time"

// ValidateBounds checks a normalized interval against the trip's outer date
// envelope. Zero-value bounds are treated as unset and pass. The returned
// error, when non-nil, is a *ParseError suitable for showing to the submitter.
func ValidateBounds(start, end, boundStart, boundEnd time.Time) error {
	if !boundStart.IsZero() && start.Before(boundStart) {
		return parseErr("starts before trip window")
	}
	if !boundEnd.IsZero() && end.After(boundEnd) {
		return parseErr("ends after trip window")
	}
	return nil
}
