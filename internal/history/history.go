// Package history records which program was in the foreground during a capture.
package history

import "github.com/eliteGoblin/focusd/replay_mon/internal/domain"

// Tracker is the activity history of one capture session.
// It is not safe for concurrent use; the session loop owns it.
type Tracker interface {
	// Record adds one sample for the program that is in the foreground now.
	Record(id domain.ProgramIdentity)

	// MostFrequent returns the program seen most often, or false if nothing was recorded.
	MostFrequent() (domain.ProgramIdentity, bool)

	// Len returns the number of retained samples.
	Len() int

	// Reset drops all samples.
	Reset()
}

// Bounded keeps the last N samples in a ring buffer.
// Used for replay buffer sessions, where N is the buffer length in seconds.
type Bounded struct {
	samples []domain.ProgramIdentity
	start   int
	size    int
}

// NewBounded creates a history that retains at most capacity samples.
// A capacity of zero or less retains nothing.
func NewBounded(capacity int) *Bounded {
	if capacity < 0 {
		capacity = 0
	}
	return &Bounded{samples: make([]domain.ProgramIdentity, capacity)}
}

// Capacity returns the maximum number of retained samples.
func (b *Bounded) Capacity() int {
	return len(b.samples)
}

func (b *Bounded) Record(id domain.ProgramIdentity) {
	capacity := len(b.samples)
	if capacity == 0 {
		return
	}
	if b.size < capacity {
		b.samples[(b.start+b.size)%capacity] = id
		b.size++
		return
	}
	// Full: overwrite the oldest sample.
	b.samples[b.start] = id
	b.start = (b.start + 1) % capacity
}

// Samples returns the retained samples, oldest first.
func (b *Bounded) Samples() []domain.ProgramIdentity {
	out := make([]domain.ProgramIdentity, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.samples[(b.start+i)%len(b.samples)]
	}
	return out
}

// MostFrequent scans oldest to newest. On a tie, the program that reached
// the winning count first keeps it.
func (b *Bounded) MostFrequent() (domain.ProgramIdentity, bool) {
	if b.size == 0 {
		return "", false
	}
	counts := make(map[domain.ProgramIdentity]int)
	var best domain.ProgramIdentity
	bestCount := 0
	for _, id := range b.Samples() {
		counts[id]++
		if counts[id] > bestCount {
			best, bestCount = id, counts[id]
		}
	}
	return best, true
}

func (b *Bounded) Len() int {
	return b.size
}

func (b *Bounded) Reset() {
	clear(b.samples)
	b.start, b.size = 0, 0
}

// Frequency counts active seconds per program without a bound.
// Used for recording sessions, which can run for hours.
type Frequency struct {
	order  []domain.ProgramIdentity
	counts map[domain.ProgramIdentity]int
}

// NewFrequency creates an empty frequency history.
func NewFrequency() *Frequency {
	return &Frequency{counts: make(map[domain.ProgramIdentity]int)}
}

func (f *Frequency) Record(id domain.ProgramIdentity) {
	if _, seen := f.counts[id]; !seen {
		f.order = append(f.order, id)
	}
	f.counts[id]++
}

// Seconds returns the active seconds recorded for id.
func (f *Frequency) Seconds(id domain.ProgramIdentity) int {
	return f.counts[id]
}

// MostFrequent returns the program with the highest counter.
// Ties go to the program inserted first.
func (f *Frequency) MostFrequent() (domain.ProgramIdentity, bool) {
	if len(f.order) == 0 {
		return "", false
	}
	best := f.order[0]
	for _, id := range f.order[1:] {
		if f.counts[id] > f.counts[best] {
			best = id
		}
	}
	return best, true
}

// Len returns the total number of samples.
func (f *Frequency) Len() int {
	total := 0
	for _, c := range f.counts {
		total += c
	}
	return total
}

func (f *Frequency) Reset() {
	f.order = nil
	f.counts = make(map[domain.ProgramIdentity]int)
}

var (
	_ Tracker = (*Bounded)(nil)
	_ Tracker = (*Frequency)(nil)
)
