package payroll

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Override reference ids look like OVR-202508-0007: the issuing calendar
// month (not the payroll period) plus a 4-digit sequence unique within that
// month's override decisions.

const maxOverrideSequence = 9999

var overrideReferencePattern = regexp.MustCompile(`^OVR-(\d{6})-(\d{4})$`)

func FormatOverrideReference(month time.Time, sequence int) string {
	return fmt.Sprintf("OVR-%s-%04d", MonthKey(month), sequence)
}

// MonthKey renders a time as the YYYYMM month token used in reference ids.
func MonthKey(t time.Time) string {
	return t.Format("200601")
}

// ParseOverrideReference splits a reference id into its month token and
// sequence. ok is false for malformed ids or a zero sequence.
func ParseOverrideReference(reference string) (monthKey string, sequence int, ok bool) {
	match := overrideReferencePattern.FindStringSubmatch(reference)
	if match == nil {
		return "", 0, false
	}
	sequence, err := strconv.Atoi(match[2])
	if err != nil || sequence <= 0 {
		return "", 0, false
	}
	return match[1], sequence, true
}

// NextOverrideReference proposes the next unused reference id for the month
// of now, scanning the ids already issued. exhausted reports that the
// 4-digit sequence space is used up; the proposal is then capped at 9999.
func NextOverrideReference(now time.Time, issued []string) (reference string, exhausted bool) {
	currentMonth := MonthKey(now)
	maxSeen := 0
	for _, id := range issued {
		monthKey, sequence, ok := ParseOverrideReference(id)
		if !ok || monthKey != currentMonth {
			continue
		}
		if sequence > maxSeen {
			maxSeen = sequence
		}
	}
	next := maxSeen + 1
	if next > maxOverrideSequence {
		return FormatOverrideReference(now, maxOverrideSequence), true
	}
	return FormatOverrideReference(now, next), false
}
