package events

// Recorder accumulates events raised by an entity during a mutation. Entities
// embed it; only the repository reads and clears it, at the commit boundary.
// Not safe for concurrent use: an entity instance belongs to one flow at a
// time.
type Recorder struct {
	pending []Event
}

// Record appends an event to the pending list.
func (r *Recorder) Record(e Event) {
	r.pending = append(r.pending, e)
}

// PendingEvents returns a copy of the events recorded since the last clear.
func (r *Recorder) PendingEvents() []Event {
	if len(r.pending) == 0 {
		return nil
	}
	out := make([]Event, len(r.pending))
	copy(out, r.pending)
	return out
}

// ClearEvents drops all pending events. The repository calls this after
// capturing them so a retried save cannot publish duplicates.
func (r *Recorder) ClearEvents() {
	r.pending = nil
}
