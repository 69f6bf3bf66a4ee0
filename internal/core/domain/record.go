package domain

import (
	"fmt"
	"time"
)

// Record is one inventory row. Name is the lookup key; Version is the
// optimistic locking token and must only change through a successful write.
type Record struct {
	Image    string `json:"image"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Notes    string `json:"notes"`
	Date     string `json:"date"`
	Version  int    `json:"version"` // optimistic locking
}

// Collection is the full backing table at one point in time.
type Collection []Record

// IndexOf returns the position of the first record with the given name,
// or -1 if absent.
func (c Collection) IndexOf(name string) int {
	for i := range c {
		if c[i].Name == name {
			return i
		}
	}
	return -1
}

// Contains reports whether a record with the given name exists.
func (c Collection) Contains(name string) bool {
	return c.IndexOf(name) >= 0
}

// Clone returns a deep copy of the collection.
func (c Collection) Clone() Collection {
	if c == nil {
		return nil
	}
	out := make(Collection, len(c))
	copy(out, c)
	return out
}

// FormatDate renders a timestamp in the M/D/YYYY layout the backing
// table uses for the Date column.
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%d/%d/%d", int(t.Month()), t.Day(), t.Year())
}

// Normalize repairs records loaded from the store: a missing or
// non-positive version becomes 1 and a negative quantity clamps to 0.
// This is a one-time repair on load, never a conflict. It returns the
// names of the repaired records so the caller can log them.
func Normalize(c Collection) (Collection, []string) {
	var repaired []string
	for i := range c {
		fixed := false
		if c[i].Version < 1 {
			c[i].Version = 1
			fixed = true
		}
		if c[i].Quantity < 0 {
			c[i].Quantity = 0
			fixed = true
		}
		if fixed {
			repaired = append(repaired, c[i].Name)
		}
	}
	return c, repaired
}
