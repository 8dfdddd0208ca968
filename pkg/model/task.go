package model

import (
	"slices"
	"time"
)

// Task represents a task record from any source.
type Task struct {
	// ExchangeID is the identifier assigned by the authoritative store. It is
	// the only key used to match records across stores.
	ExchangeID string
	// SourceID is the native id of the record in the store that owns it.
	SourceID     string
	LastModified time.Time
	Completed    bool
	DueDate      *time.Time

	// Descriptive payload, copied wholesale by CopyTo.
	Description string
	Project     string
	Priority    string
	Tags        []string
	Annotations []string
}

// CopyTo copies the descriptive payload of t into dst. Identity, timestamps,
// completion state and due date are left untouched.
func (t *Task) CopyTo(dst *Task) {
	dst.Description = t.Description
	dst.Project = t.Project
	dst.Priority = t.Priority
	dst.Tags = slices.Clone(t.Tags)
	dst.Annotations = slices.Clone(t.Annotations)
}

// SameDueDate reports whether t and o have the same due date. Two absent due
// dates are equal.
func (t *Task) SameDueDate(o *Task) bool {
	return DatesEqual(t.DueDate, o.DueDate)
}

// DatesEqual compares two optional dates by value.
func DatesEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// Date truncates t to midnight UTC of its calendar day and returns a pointer
// to the result. A zero time yields nil.
func Date(t time.Time) *time.Time {
	return DateIn(t, time.UTC)
}

// DateIn is like Date but takes the calendar day as seen in loc. Stores that
// keep due dates as local midnight use it so the day survives a round trip.
func DateIn(t time.Time, loc *time.Location) *time.Time {
	if t.IsZero() {
		return nil
	}
	l := t.In(loc)
	d := time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}

// CloneDate returns an independent copy of an optional date.
func CloneDate(d *time.Time) *time.Time {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}
