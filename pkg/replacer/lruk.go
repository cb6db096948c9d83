// Package replacer implements the LRU-K eviction-victim selection policy.
// It is oblivious to page ids and I/O: it only ever deals in frame ids
// handed to it by a buffer pool manager.
package replacer

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/corviddb/pagecache/pkg/storage"
)

// FrameID indexes a frame slot in a buffer pool's frame array.
type FrameID int32

// ErrNotEvictable is returned by Remove when asked to remove a frame that is
// still marked non-evictable. This is a caller bug, never recovered from.
var ErrNotEvictable = errors.New("replacer: remove of non-evictable frame")

const infiniteDistance = ^uint64(0)

// node tracks the access history of one frame.
type node struct {
	history     []uint64 // oldest first, capped at k entries
	isEvictable bool
}

func (n *node) recordAccess(ts uint64, k int) {
	n.history = append(n.history, ts)
	if len(n.history) > k {
		n.history = n.history[len(n.history)-k:]
	}
}

// kDistance returns the node's k-distance relative to now. A node with
// fewer than k recorded accesses is "under-observed" and has +∞ distance.
func (n *node) kDistance(now uint64, k int) uint64 {
	if len(n.history) < k {
		return infiniteDistance
	}
	return now - n.history[0]
}

func (n *node) earliestAccess() uint64 {
	return n.history[0]
}

// LRUKReplacer nominates eviction victims among frames marked evictable,
// generalizing LRU by looking at the k-th most recent access instead of
// only the most recent one. Under-observed frames (fewer than k accesses)
// are preferred victims, tie-broken by earliest first access — this is
// what makes a sequential scan that touches every page once not defeat the
// policy the way plain LRU would be.
type LRUKReplacer struct {
	mu       sync.Mutex
	k        int
	capacity int
	nodes    map[FrameID]*node
	currSize int
	clock    atomic.Uint64
}

// New creates a replacer with history depth k, sized for numFrames frames.
// numFrames is not enforced as a limit on the frame ids it will track.
func New(numFrames int, k int) *LRUKReplacer {
	return &LRUKReplacer{
		k:        k,
		capacity: numFrames,
		nodes:    make(map[FrameID]*node, numFrames),
	}
}

func (r *LRUKReplacer) timestamp() uint64 {
	return r.clock.Add(1)
}

// RecordAccess appends the current timestamp to frameID's history, creating
// the node (non-evictable by default) if this is its first access.
// accessType is a reserved hint, currently unused by policy.
func (r *LRUKReplacer) RecordAccess(frameID FrameID, accessType storage.AccessType) {
	ts := r.timestamp()

	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.nodes[frameID]
	if !ok {
		n = &node{}
		r.nodes[frameID] = n
	}
	n.recordAccess(ts, r.k)
}

// SetEvictable updates whether frameID is a candidate for Evict. It is a
// no-op for an unknown frame id.
func (r *LRUKReplacer) SetEvictable(frameID FrameID, evictable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.nodes[frameID]
	if !ok {
		return
	}
	if n.isEvictable == evictable {
		return
	}
	n.isEvictable = evictable
	if evictable {
		r.currSize++
	} else {
		r.currSize--
	}
}

// Remove drops frameID from tracking entirely. Removing an unknown frame is
// a no-op; removing a frame that is still non-evictable is a precondition
// violation reported as ErrNotEvictable.
func (r *LRUKReplacer) Remove(frameID FrameID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.nodes[frameID]
	if !ok {
		return nil
	}
	if !n.isEvictable {
		return ErrNotEvictable
	}
	delete(r.nodes, frameID)
	r.currSize--
	return nil
}

// Size returns the number of frames currently marked evictable.
func (r *LRUKReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currSize
}

// Evict selects and removes the victim frame: the evictable candidate with
// the largest k-distance, ties among +∞-distance (under-observed) candidates
// broken by smallest earliest-access timestamp, remaining ties broken by
// smallest frame id. It reports ok=false if no frame is evictable.
func (r *LRUKReplacer) Evict() (frameID FrameID, ok bool) {
	now := r.clock.Load()

	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		victim      FrameID
		found       bool
		victimDist  uint64
		victimEarly uint64
	)

	for id, n := range r.nodes {
		if !n.isEvictable {
			continue
		}
		dist := n.kDistance(now, r.k)
		early := n.earliestAccess()

		if !found {
			victim, victimDist, victimEarly, found = id, dist, early, true
			continue
		}

		switch {
		case dist > victimDist:
			victim, victimDist, victimEarly = id, dist, early
		case dist == victimDist && dist == infiniteDistance:
			if early < victimEarly || (early == victimEarly && id < victim) {
				victim, victimEarly = id, early
			}
		case dist == victimDist && id < victim:
			victim = id
		}
	}

	if !found {
		return 0, false
	}

	delete(r.nodes, victim)
	r.currSize--
	return victim, true
}
