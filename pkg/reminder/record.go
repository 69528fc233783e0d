package reminder

import "time"

type firingKey struct {
	EventID string
	Kind    Kind
}

// FiringRecord remembers which (class, kind) alerts were delivered during a session
type FiringRecord struct {
	fired map[firingKey]time.Time
}

func NewFiringRecord() *FiringRecord {
	return &FiringRecord{fired: map[firingKey]time.Time{}}
}

func (r *FiringRecord) Fired(eventID string, kind Kind) bool {
	_, ok := r.fired[firingKey{EventID: eventID, Kind: kind}]
	return ok
}

func (r *FiringRecord) mark(eventID string, kind Kind, at time.Time) {
	r.fired[firingKey{EventID: eventID, Kind: kind}] = at
}

// Reset puts every alert back to pending
func (r *FiringRecord) Reset() {
	r.fired = map[firingKey]time.Time{}
}

func (r *FiringRecord) Len() int {
	return len(r.fired)
}
