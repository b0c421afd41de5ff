package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mnohosten/pagecache/pkg/concurrent"
)

// DefaultPoolFrames is the default buffer pool capacity used by the admin
// demo server when no explicit size is configured.
const DefaultPoolFrames = 69

// DefaultLRUK is the default LRU-K history depth used by the admin demo
// server.
const DefaultLRUK = 2

// BufferPool mediates all access to a backing store through a fixed set of
// in-memory frames, evicting via an LRU-K policy when full.
type BufferPool struct {
	frames    []*Frame
	freeList  *concurrent.LockFreeStack
	scheduler *DiskScheduler
	policy    EvictionPolicy

	tableMu sync.RWMutex
	table   map[PageID]FrameID

	stats poolStats
	sink  EventSink
}

type poolStats struct {
	hits      concurrent.Counter
	misses    concurrent.Counter
	evictions concurrent.Counter
}

// NewBufferPool creates a pool of numFrames frames over store, using an
// LRU-K policy with history depth k.
func NewBufferPool(numFrames int, k int, store BackingStore) *BufferPool {
	if numFrames <= 0 {
		panic("storage: buffer pool requires at least one frame")
	}

	frames := make([]*Frame, numFrames)
	freeList := concurrent.NewLockFreeStack()
	for i := 0; i < numFrames; i++ {
		frames[i] = newFrame(FrameID(i))
		freeList.Push(FrameID(i))
	}

	return &BufferPool{
		frames:    frames,
		freeList:  freeList,
		scheduler: NewDiskScheduler(store),
		policy:    NewLRUKPolicy(k),
		table:     make(map[PageID]FrameID),
		sink:      noopSink{},
	}
}

// SetEventSink attaches sink to receive fetch/evict/flush events. Pass nil
// to detach and fall back to the no-op sink.
func (p *BufferPool) SetEventSink(sink EventSink) {
	if sink == nil {
		sink = noopSink{}
	}
	p.sink = sink
}

// FetchPageRead returns a read guard over pageID, loading it from the
// backing store on a cache miss.
func (p *BufferPool) FetchPageRead(ctx context.Context, pageID PageID) (PageReadGuard, error) {
	frame, err := p.fetch(ctx, pageID)
	if err != nil {
		return PageReadGuard{}, err
	}
	frame.dataMu.RLock()
	return PageReadGuard{pool: p, frame: frame}, nil
}

// FetchPageWrite returns a write guard over pageID, loading it from the
// backing store on a cache miss.
func (p *BufferPool) FetchPageWrite(ctx context.Context, pageID PageID) (PageWriteGuard, error) {
	frame, err := p.fetch(ctx, pageID)
	if err != nil {
		return PageWriteGuard{}, err
	}
	frame.dataMu.Lock()
	frame.markDirty()
	return PageWriteGuard{pool: p, frame: frame}, nil
}

// fetch resolves pageID to a pinned, loaded frame, performing the miss
// path (free-list/eviction, install, scheduled read) when necessary. The
// frame is pinned and its access recorded, but its data lock is not yet
// held; callers must acquire dataMu themselves immediately after.
//
// The table-hit check and the pin both happen while tableMu is held for
// writing, so a concurrent miss on a different pageID can never select
// this frame for eviction (acquireFreeFrame also runs under tableMu)
// between this goroutine observing the mapping and pinning it.
func (p *BufferPool) fetch(ctx context.Context, pageID PageID) (*Frame, error) {
	p.tableMu.Lock()
	if frameID, ok := p.table[pageID]; ok {
		frame := p.frames[frameID]
		p.stats.hits.Inc()
		p.pinAndTrack(frame)
		p.tableMu.Unlock()
		p.sink.Publish(Event{Type: EventFetchHit, PageID: pageID, FrameID: frame.ID, At: time.Now()})
		return frame, nil
	}

	p.stats.misses.Inc()

	frame, err := p.acquireFreeFrame(ctx)
	if err != nil {
		p.tableMu.Unlock()
		return nil, err
	}

	frame.reset(pageID)
	p.table[pageID] = frame.ID
	p.tableMu.Unlock()

	receiver := p.scheduler.ScheduleRead(pageID, frame)
	result, err := receiver.Recv(ctx)
	if err != nil {
		p.undoInstall(pageID)
		return nil, fmt.Errorf("storage: waiting for page %d load: %w", pageID, err)
	}
	if result.Err != nil {
		p.undoInstall(pageID)
		return nil, fmt.Errorf("storage: loading page %d: %w", pageID, result.Err)
	}

	p.pinAndTrack(frame)
	p.sink.Publish(Event{Type: EventFetchMiss, PageID: pageID, FrameID: frame.ID, At: time.Now()})
	return frame, nil
}

func (p *BufferPool) pinAndTrack(frame *Frame) {
	frame.pin()
	p.policy.RecordAccess(frame.ID, AccessLookup)
	p.policy.SetEvictable(frame.ID, false)
}

func (p *BufferPool) undoInstall(pageID PageID) {
	p.tableMu.Lock()
	delete(p.table, pageID)
	p.tableMu.Unlock()
}

// acquireFreeFrame returns a frame ready to be reused for a new page,
// flushing it first if it held a dirty page. Must be called with tableMu
// held for writing.
func (p *BufferPool) acquireFreeFrame(ctx context.Context) (*Frame, error) {
	if v, ok := p.freeList.Pop(); ok {
		return p.frames[v.(FrameID)], nil
	}

	frameID, ok := p.policy.Evict()
	if !ok {
		return nil, ErrPoolExhausted
	}
	p.stats.evictions.Inc()

	frame := p.frames[frameID]
	dirty := frame.IsDirty()
	if dirty {
		oldPageID := frame.PageID()
		receiver := p.scheduler.ScheduleWrite(oldPageID, frame)
		result, err := receiver.Recv(ctx)
		if err != nil {
			return nil, fmt.Errorf("storage: flushing dirty page %d during eviction: %w", oldPageID, err)
		}
		if result.Err != nil {
			return nil, fmt.Errorf("storage: flushing dirty page %d during eviction: %w", oldPageID, result.Err)
		}
	}

	p.sink.Publish(Event{Type: EventEvict, PageID: frame.PageID(), FrameID: frame.ID, Dirty: dirty, At: time.Now()})
	delete(p.table, frame.PageID())
	return frame, nil
}

// unpin is called by guard.Release(). It decrements the frame's pin count
// and, if it reaches zero, marks the frame evictable.
func (p *BufferPool) unpin(frame *Frame) {
	if frame.unpin() {
		p.policy.SetEvictable(frame.ID, true)
	}
}

// FlushPage writes pageID's frame back to the backing store if dirty and
// clears its dirty flag. It returns ErrPageNotFound if pageID is not
// resident.
func (p *BufferPool) FlushPage(ctx context.Context, pageID PageID) error {
	p.tableMu.RLock()
	frameID, ok := p.table[pageID]
	p.tableMu.RUnlock()
	if !ok {
		return ErrPageNotFound
	}

	frame := p.frames[frameID]
	if !frame.IsDirty() {
		return nil
	}

	receiver := p.scheduler.ScheduleWrite(pageID, frame)
	result, err := receiver.Recv(ctx)
	if err != nil {
		return fmt.Errorf("storage: flushing page %d: %w", pageID, err)
	}
	if result.Err != nil {
		return fmt.Errorf("storage: flushing page %d: %w", pageID, result.Err)
	}
	frame.clearDirty()
	p.sink.Publish(Event{Type: EventFlush, PageID: pageID, FrameID: frameID, At: time.Now()})
	return nil
}

// FlushAll flushes every currently resident dirty page.
func (p *BufferPool) FlushAll(ctx context.Context) error {
	p.tableMu.RLock()
	pageIDs := make([]PageID, 0, len(p.table))
	for id := range p.table {
		pageIDs = append(pageIDs, id)
	}
	p.tableMu.RUnlock()

	for _, id := range pageIDs {
		if err := p.FlushPage(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of pages currently resident in the pool.
func (p *BufferPool) Len() int {
	p.tableMu.RLock()
	defer p.tableMu.RUnlock()
	return len(p.table)
}

// IsEmpty reports whether the pool currently holds no pages.
func (p *BufferPool) IsEmpty() bool {
	return p.Len() == 0
}

// Stats reports cumulative pool counters for the admin surface.
func (p *BufferPool) Stats() map[string]interface{} {
	return map[string]interface{}{
		"capacity":    len(p.frames),
		"resident":    p.Len(),
		"hits":        p.stats.hits.Load(),
		"misses":      p.stats.misses.Load(),
		"evictions":   p.stats.evictions.Load(),
		"queue_depth": p.scheduler.QueueDepth(),
	}
}

// Shutdown stops the pool's background disk scheduler worker.
func (p *BufferPool) Shutdown() {
	p.scheduler.Shutdown()
}
