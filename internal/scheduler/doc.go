// Package scheduler arms a single cancellable timer for the next prayer
// interruption.
//
// It computes the chronologically nearest trigger (event time minus the lead
// interval, wrapping past-due times to the next day) and fires a callback
// when the timer elapses. The scheduler never re-arms itself: the sequencer
// calls Schedule again after every completed or aborted sequence, which keeps
// cancellation free of self-rescheduling races.
package scheduler
