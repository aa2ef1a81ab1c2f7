// Package prayer contains core domain types for the interruption schedule.
//
// It defines Event (a single daily prayer time), Day (the full daily set,
// replaced wholesale on refresh) and Settings (how an interruption sequence
// behaves) with Clone helpers to avoid leaking internal references.
package prayer
