package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/mnohosten/pagecache/pkg/concurrent"
)

// ShardedBufferPool is a drop-in alternative to BufferPool that partitions
// its page table across multiple lock shards instead of a single
// sync.RWMutex. Read-only queries (Len, Stats) scale across shards
// independently, but fetch's pin/evict decision still serializes through
// a single installMu, the same way BufferPool serializes it through
// tableMu — sharding the table doesn't help the fetch hot path avoid that
// without reopening the pin-vs-evict race it exists to prevent. It
// preserves every invariant BufferPool does; callers pick whichever table
// layout fits their workload.
type ShardedBufferPool struct {
	frames    []*Frame
	freeList  *concurrent.LockFreeStack
	scheduler *DiskScheduler
	policy    EvictionPolicy
	table     *shardedPageTable

	stats poolStats
	sink  EventSink
}

// NewShardedBufferPool creates a pool of numFrames frames over store, with
// an LRU-K(k) policy and a page table split across shardCount shards
// (rounded up to the next power of two).
func NewShardedBufferPool(numFrames int, k int, shardCount uint32, store BackingStore) *ShardedBufferPool {
	if numFrames <= 0 {
		panic("storage: buffer pool requires at least one frame")
	}

	frames := make([]*Frame, numFrames)
	freeList := concurrent.NewLockFreeStack()
	for i := 0; i < numFrames; i++ {
		frames[i] = newFrame(FrameID(i))
		freeList.Push(FrameID(i))
	}

	return &ShardedBufferPool{
		frames:    frames,
		freeList:  freeList,
		scheduler: NewDiskScheduler(store),
		policy:    NewLRUKPolicy(k),
		table:     newShardedPageTable(shardCount),
		sink:      noopSink{},
	}
}

// SetEventSink attaches sink to receive fetch/evict/flush events. Pass nil
// to detach and fall back to the no-op sink.
func (p *ShardedBufferPool) SetEventSink(sink EventSink) {
	if sink == nil {
		sink = noopSink{}
	}
	p.sink = sink
}

// FetchPageRead returns a read guard over pageID, loading it from the
// backing store on a cache miss.
func (p *ShardedBufferPool) FetchPageRead(ctx context.Context, pageID PageID) (PageReadGuard, error) {
	frame, err := p.fetch(ctx, pageID)
	if err != nil {
		return PageReadGuard{}, err
	}
	frame.dataMu.RLock()
	return PageReadGuard{pool: p, frame: frame}, nil
}

// FetchPageWrite returns a write guard over pageID, loading it from the
// backing store on a cache miss.
func (p *ShardedBufferPool) FetchPageWrite(ctx context.Context, pageID PageID) (PageWriteGuard, error) {
	frame, err := p.fetch(ctx, pageID)
	if err != nil {
		return PageWriteGuard{}, err
	}
	frame.dataMu.Lock()
	frame.markDirty()
	return PageWriteGuard{pool: p, frame: frame}, nil
}

// fetch checks the table and pins the resulting frame while holding
// installMu for the whole operation, on both the hit and the miss path.
// installMu is also held across acquireFreeFrame's entire eviction
// decision (see that method), so a lookup can never observe a mapping
// that a concurrent eviction then repurposes before the pin lands: the
// per-shard RWMutex inside shardedPageTable speeds up read-only queries
// like Len/pageIDs, but pin/evict decisions themselves are serialized
// through this single lock, the same way BufferPool serializes them
// through tableMu.
func (p *ShardedBufferPool) fetch(ctx context.Context, pageID PageID) (*Frame, error) {
	p.table.installMu.Lock()
	if frameID, ok := p.table.get(pageID); ok {
		frame := p.frames[frameID]
		p.stats.hits.Inc()
		p.pinAndTrack(frame)
		p.table.installMu.Unlock()
		p.sink.Publish(Event{Type: EventFetchHit, PageID: pageID, FrameID: frame.ID, At: time.Now()})
		return frame, nil
	}

	p.stats.misses.Inc()

	frame, err := p.acquireFreeFrame(ctx)
	if err != nil {
		p.table.installMu.Unlock()
		return nil, err
	}

	frame.reset(pageID)
	p.table.installPut(pageID, frame.ID)
	p.table.installMu.Unlock()

	receiver := p.scheduler.ScheduleRead(pageID, frame)
	result, err := receiver.Recv(ctx)
	if err != nil {
		p.table.installDelete(pageID)
		return nil, fmt.Errorf("storage: waiting for page %d load: %w", pageID, err)
	}
	if result.Err != nil {
		p.table.installDelete(pageID)
		return nil, fmt.Errorf("storage: loading page %d: %w", pageID, result.Err)
	}

	p.pinAndTrack(frame)
	p.sink.Publish(Event{Type: EventFetchMiss, PageID: pageID, FrameID: frame.ID, At: time.Now()})
	return frame, nil
}

func (p *ShardedBufferPool) pinAndTrack(frame *Frame) {
	frame.pin()
	p.policy.RecordAccess(frame.ID, AccessLookup)
	p.policy.SetEvictable(frame.ID, false)
}

// acquireFreeFrame must be called with installMu held.
func (p *ShardedBufferPool) acquireFreeFrame(ctx context.Context) (*Frame, error) {
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
	p.table.installDelete(frame.PageID())
	return frame, nil
}

// unpin mirrors BufferPool.unpin, satisfying the same unpinner interface so
// PageReadGuard/PageWriteGuard can be shared between both pool flavors.
func (p *ShardedBufferPool) unpin(frame *Frame) {
	if frame.unpin() {
		p.policy.SetEvictable(frame.ID, true)
	}
}

// FlushPage writes pageID's frame back to the backing store if dirty and
// clears its dirty flag. It returns ErrPageNotFound if pageID is not
// resident.
func (p *ShardedBufferPool) FlushPage(ctx context.Context, pageID PageID) error {
	frameID, ok := p.table.get(pageID)
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
func (p *ShardedBufferPool) FlushAll(ctx context.Context) error {
	for _, id := range p.table.pageIDs() {
		if err := p.FlushPage(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of pages currently resident in the pool.
func (p *ShardedBufferPool) Len() int { return p.table.len() }

// IsEmpty reports whether the pool currently holds no pages.
func (p *ShardedBufferPool) IsEmpty() bool { return p.Len() == 0 }

// Stats reports cumulative pool counters for the admin surface.
func (p *ShardedBufferPool) Stats() map[string]interface{} {
	return map[string]interface{}{
		"capacity":    len(p.frames),
		"resident":    p.Len(),
		"shards":      len(p.table.shards),
		"hits":        p.stats.hits.Load(),
		"misses":      p.stats.misses.Load(),
		"evictions":   p.stats.evictions.Load(),
		"queue_depth": p.scheduler.QueueDepth(),
	}
}

// Shutdown stops the pool's background disk scheduler worker.
func (p *ShardedBufferPool) Shutdown() { p.scheduler.Shutdown() }
