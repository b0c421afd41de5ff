package storage

import (
	"container/list"
	"fmt"
	"math"
	"sync"

	"github.com/mnohosten/pagecache/pkg/concurrent"
)

// AccessType classifies why a frame was touched. The policy records it but
// does not yet weight it differently; it is reserved for future refinement
// (e.g. treating sequential scans differently from point lookups).
type AccessType int

const (
	AccessLookup AccessType = iota
	AccessScan
	AccessIndex
)

// EvictionPolicy selects which frame to reclaim when the pool is full.
type EvictionPolicy interface {
	RecordAccess(frameID FrameID, kind AccessType)
	SetEvictable(frameID FrameID, evictable bool)
	Remove(frameID FrameID)
	Size() int
	Evict() (FrameID, bool)
}

type lruKNode struct {
	frameID    FrameID
	evictable  bool
	history    *list.List // of uint64 timestamps, oldest at front
}

// LRUKPolicy implements backward-K-distance eviction: the victim is the
// evictable frame whose K-th most recent access is furthest in the past
// (treated as infinitely far if it has fewer than K recorded accesses),
// ties broken by overall least-recent access.
type LRUKPolicy struct {
	k int

	mu    sync.Mutex
	nodes map[FrameID]*lruKNode

	clock *concurrent.Counter
}

// NewLRUKPolicy creates a policy tracking up to k accesses per frame. k
// must be at least 1.
func NewLRUKPolicy(k int) *LRUKPolicy {
	if k < 1 {
		panic("storage: LRU-K policy requires k >= 1")
	}
	return &LRUKPolicy{
		k:     k,
		nodes: make(map[FrameID]*lruKNode),
		clock: concurrent.NewCounter(),
	}
}

// RecordAccess bumps the global timestamp and appends it to frameID's
// history, creating the node (initially non-evictable) if this is its
// first access. When history already holds k entries the oldest is
// dropped first.
func (p *LRUKPolicy) RecordAccess(frameID FrameID, kind AccessType) {
	now := p.clock.Inc()

	p.mu.Lock()
	defer p.mu.Unlock()

	node, ok := p.nodes[frameID]
	if !ok {
		node = &lruKNode{frameID: frameID, history: list.New()}
		p.nodes[frameID] = node
	}
	if node.history.Len() >= p.k {
		node.history.Remove(node.history.Front())
	}
	node.history.PushBack(now)
}

// SetEvictable marks frameID as eligible (or ineligible) for eviction. It
// panics if frameID has never been recorded, matching the source policy's
// behavior of treating this as a programmer error rather than a runtime
// condition.
func (p *LRUKPolicy) SetEvictable(frameID FrameID, evictable bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	node, ok := p.nodes[frameID]
	if !ok {
		panic(fmt.Sprintf("storage: SetEvictable on unknown frame %d", frameID))
	}
	node.evictable = evictable
}

// Remove drops frameID's history unconditionally. A no-op if unknown.
func (p *LRUKPolicy) Remove(frameID FrameID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.nodes, frameID)
}

// Size returns the number of frames currently marked evictable.
func (p *LRUKPolicy) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, node := range p.nodes {
		if node.evictable {
			n++
		}
	}
	return n
}

// Evict selects and removes the best victim. It returns (0, false) if no
// frame is currently evictable.
func (p *LRUKPolicy) Evict() (FrameID, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Load()

	var (
		victim    *lruKNode
		bestDist  = float64(-1)
		bestOldest uint64
	)

	for _, node := range p.nodes {
		if !node.evictable {
			continue
		}
		dist, mostRecent := kDistance(node, p.k, now)
		if victim == nil {
			victim, bestDist, bestOldest = node, dist, mostRecent
			continue
		}
		switch {
		case dist > bestDist:
			victim, bestDist, bestOldest = node, dist, mostRecent
		case dist == bestDist && math.IsInf(dist, 1) && mostRecent < bestOldest:
			// Both have +inf distance (fewer than k accesses); prefer the
			// one whose most recent access is furthest in the past.
			victim, bestDist, bestOldest = node, dist, mostRecent
		}
	}

	if victim == nil {
		return 0, false
	}
	delete(p.nodes, victim.frameID)
	return victim.frameID, true
}

// kDistance returns the backward k-distance for node (+infinity if it has
// fewer than k recorded accesses) and its most recent access timestamp.
func kDistance(node *lruKNode, k int, now uint64) (float64, uint64) {
	mostRecent := node.history.Back().Value.(uint64)
	if node.history.Len() < k {
		return math.Inf(1), mostRecent
	}
	oldestOfK := node.history.Front().Value.(uint64)
	return float64(now - oldestOfK), mostRecent
}
