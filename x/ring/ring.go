// Package ring provides a fixed-size circular queue of value slots.
//
// The queue keeps one slot unused: it is full when advancing the free cursor
// would make it equal to the next cursor, so a Ring of size N holds N-1
// entries. Producers may reserve the free slot and fill it in place before
// committing it, which avoids copying frames inside interrupt handlers.
//
// A Ring is not synchronised. Callers that share one between an interrupt
// handler and foreground code hold a critical section around every call.
package ring

// Policy selects what happens when a producer claims a slot on a full ring.
type Policy uint8

const (
	// DropNewest refuses the new entry and leaves queued entries untouched.
	DropNewest Policy = iota
	// DropOldest discards the oldest queued entry to make room.
	DropOldest
)

func (p Policy) String() string {
	switch p {
	case DropNewest:
		return "drop_newest"
	case DropOldest:
		return "drop_oldest"
	default:
		return "unknown"
	}
}

// Ring is a single-producer, single-consumer queue of T.
type Ring[T any] struct {
	buf    []T
	free   int // producer cursor: next slot to fill
	next   int // consumer cursor: oldest queued slot
	policy Policy
	drops  uint32
}

// New allocates a ring with size slots (size-1 usable). Allocation happens
// once; no method allocates afterwards.
func New[T any](size int, p Policy) *Ring[T] {
	if size < 2 {
		panic("ring: size must be >= 2")
	}
	return &Ring[T]{buf: make([]T, size), policy: p}
}

func (r *Ring[T]) inc(i int) int { return (i + 1) % len(r.buf) }

// Size is the number of slots, including the one kept free.
func (r *Ring[T]) Size() int { return len(r.buf) }

// Cap is the number of entries the ring can hold.
func (r *Ring[T]) Cap() int { return len(r.buf) - 1 }

// Len is the number of queued entries.
func (r *Ring[T]) Len() int {
	n := r.free - r.next
	if n < 0 {
		n += len(r.buf)
	}
	return n
}

func (r *Ring[T]) Empty() bool { return r.free == r.next }

func (r *Ring[T]) Full() bool { return r.inc(r.free) == r.next }

// Policy reports the overflow policy.
func (r *Ring[T]) Policy() Policy { return r.policy }

// Drops counts entries lost to the overflow policy.
func (r *Ring[T]) Drops() uint32 { return r.drops }

// Reset empties the ring. Slot contents are left as they are.
func (r *Ring[T]) Reset() {
	r.free, r.next = 0, 0
}

// Reserve returns the free slot without publishing it, or nil when full.
// Repeated calls without Commit return the same slot.
func (r *Ring[T]) Reserve() *T {
	if r.Full() {
		return nil
	}
	return &r.buf[r.free]
}

// Reserved reports whether p is the slot Reserve would return.
func (r *Ring[T]) Reserved(p *T) bool {
	return p != nil && !r.Full() && p == &r.buf[r.free]
}

// Claim is Reserve with the overflow policy applied. Under DropNewest a full
// ring returns nil and counts a drop; under DropOldest the oldest entry is
// discarded and its slot reused.
func (r *Ring[T]) Claim() *T {
	if r.Full() {
		r.drops++
		if r.policy != DropOldest {
			return nil
		}
		r.next = r.inc(r.next)
	}
	return &r.buf[r.free]
}

// Commit publishes the reserved slot to the consumer.
func (r *Ring[T]) Commit() {
	if r.Full() {
		return
	}
	r.free = r.inc(r.free)
}

// Push copies v into the ring, applying the overflow policy.
func (r *Ring[T]) Push(v T) bool {
	p := r.Claim()
	if p == nil {
		return false
	}
	*p = v
	r.Commit()
	return true
}

// Peek returns the oldest queued entry in place, or nil when empty. The slot
// stays valid until Pop.
func (r *Ring[T]) Peek() *T {
	if r.Empty() {
		return nil
	}
	return &r.buf[r.next]
}

// Pop releases the oldest entry.
func (r *Ring[T]) Pop() {
	if r.Empty() {
		return
	}
	r.next = r.inc(r.next)
}
