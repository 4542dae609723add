package risk

import "time"

// AnchorWeekday is the weekday every risk snapshot is addressed by.
const AnchorWeekday = time.Saturday

// AnchorOf maps any timestamp to its weekly anchor date: the input's own
// calendar day when it falls on the anchor weekday, otherwise the most
// recent anchor weekday strictly before it. Always midnight UTC, never in
// the future, at most six days back.
func AnchorOf(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) - int(AnchorWeekday) + 7) % 7
	return day.AddDate(0, 0, -offset)
}

// PreviousAnchor returns the anchor one week before the given anchor date.
func PreviousAnchor(anchor time.Time) time.Time {
	return anchor.AddDate(0, 0, -7)
}
