package model

import "time"

// TimeOffset lets the operator correct the displayed wall-clock without
// touching the system clock: displayed_time = system_time + Offset. Owned
// by the menu; the acquisition engine and data writer never see it.
type TimeOffset struct {
	Offset time.Duration

	editing bool
	edit    time.Time
}

// Displayed returns now adjusted by the committed offset.
func (t TimeOffset) Displayed(now time.Time) time.Time {
	return now.Add(t.Offset)
}

// BeginEdit opens the field-by-field editor, seeded with the currently
// displayed instant (year, month, day, hour, minute editable individually).
func (t *TimeOffset) BeginEdit(now time.Time) {
	t.editing = true
	t.edit = t.Displayed(now)
}

// SetField mutates one component of the in-progress edit. field is one of
// "year", "month", "day", "hour", "minute"; no-op if BeginEdit was not
// called first.
func (t *TimeOffset) SetField(field string, value int) {
	if !t.editing {
		return
	}
	y, mo, d := t.edit.Date()
	h, mi, s := t.edit.Clock()
	switch field {
	case "year":
		y = value
	case "month":
		mo = time.Month(value)
	case "day":
		d = value
	case "hour":
		h = value
	case "minute":
		mi = value
	}
	t.edit = time.Date(y, mo, d, h, mi, s, 0, t.edit.Location())
}

// Commit applies the edit: the new offset is chosen so that Displayed(now)
// equals the edited instant. Returns false if no edit was in progress.
func (t *TimeOffset) Commit(now time.Time) bool {
	if !t.editing {
		return false
	}
	t.Offset = t.edit.Sub(now)
	t.editing = false
	return true
}

// Discard abandons an in-progress edit, leaving Offset unchanged.
func (t *TimeOffset) Discard() {
	t.editing = false
}
