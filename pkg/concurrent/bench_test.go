package concurrent

import (
	"sync"
	"testing"
)

// Benchmark Counter operations

func BenchmarkCounter_Inc(b *testing.B) {
	c := NewCounter()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Inc()
	}
}

func BenchmarkCounter_IncParallel(b *testing.B) {
	c := NewCounter()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			c.Inc()
		}
	})
}

func BenchmarkCounter_Load(b *testing.B) {
	c := NewCounter()
	c.Store(100)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Load()
	}
}

func BenchmarkCounter_LoadParallel(b *testing.B) {
	c := NewCounter()
	c.Store(100)
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			c.Load()
		}
	})
}

func BenchmarkCounter_CompareAndSwap(b *testing.B) {
	c := NewCounter()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		old := c.Load()
		c.CompareAndSwap(old, old+1)
	}
}

// Benchmark LockFreeStack operations

func BenchmarkStack_Push(b *testing.B) {
	s := NewLockFreeStack()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Push(i)
	}
}

func BenchmarkStack_PushParallel(b *testing.B) {
	s := NewLockFreeStack()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			s.Push(i)
			i++
		}
	})
}

func BenchmarkStack_Pop(b *testing.B) {
	s := NewLockFreeStack()
	for i := 0; i < b.N; i++ {
		s.Push(i)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Pop()
	}
}

func BenchmarkStack_PopParallel(b *testing.B) {
	s := NewLockFreeStack()
	for i := 0; i < 1000000; i++ {
		s.Push(i)
	}
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			s.Pop()
		}
	})
}

func BenchmarkStack_PushPop(b *testing.B) {
	s := NewLockFreeStack()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Push(i)
		s.Pop()
	}
}

func BenchmarkStack_PushPopParallel(b *testing.B) {
	s := NewLockFreeStack()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			s.Push(i)
			s.Pop()
			i++
		}
	})
}

// Comparison benchmarks: Lock-free vs Mutex-based counter

type MutexCounter struct {
	mu    sync.Mutex
	value uint64
}

func (c *MutexCounter) Inc() uint64 {
	c.mu.Lock()
	c.value++
	v := c.value
	c.mu.Unlock()
	return v
}

func BenchmarkMutexCounter_Inc(b *testing.B) {
	c := &MutexCounter{}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Inc()
	}
}

func BenchmarkMutexCounter_IncParallel(b *testing.B) {
	c := &MutexCounter{}
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			c.Inc()
		}
	})
}
