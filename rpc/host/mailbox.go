package host

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// This file implements the per-shard mailbox: a lock-free multi-producer
// single-consumer queue. Any goroutine may post work for a shard, but only
// that shard's runner goroutine consumes it. This is the message-passing
// path through which cross-shard connection management reaches the owning
// shard; shard state itself is never touched from the outside.
//
// Guarantees:
//
//   - Lock-free posts: atomic operations keep throughput high under
//     contention from many producers
//   - Unbounded: the mailbox grows as needed, limited only by memory
//   - Thread-safe posts, single consumer via the Recv() channel
//   - No strict FIFO across concurrent posters: ordering between two
//     concurrent Post calls is decided by which one completes first

// node represents a single element in the mailbox
type node[T any] struct {
	value *T
	next  atomic.Pointer[node[T]]
}

// Mailbox is a lock-free multi-producer single-consumer queue built on a
// linked list with atomic pointer operations
type Mailbox[T any] struct {
	head     atomic.Pointer[node[T]]
	tail     atomic.Pointer[node[T]]
	out      chan *T
	consumer sync.WaitGroup
	closed   atomic.Bool

	// Condition variable for efficient waiting
	mu   sync.Mutex
	cond *sync.Cond
}

// NewMailbox creates a mailbox and starts its internal consumer
func NewMailbox[T any]() *Mailbox[T] {
	// Sentinel node (dummy node at the beginning)
	sentinel := &node[T]{}

	m := &Mailbox[T]{
		out: make(chan *T),
	}
	m.cond = sync.NewCond(&m.mu)

	m.head.Store(sentinel)
	m.tail.Store(sentinel)

	m.consumer.Add(1)
	go m.consume()

	return m
}

// Post adds an item to the mailbox.
// Returns true if the item was added, or false if the mailbox is closed.
//
// Thread-safety: safe for concurrent use by any number of goroutines.
func (m *Mailbox[T]) Post(value *T) bool {
	if value == nil {
		return false
	}

	if m.closed.Load() {
		return false
	}

	newNode := &node[T]{value: value}

	var tailNode *node[T]
	var backoff uint8 = 0

	for {
		tailNode = m.tail.Load()

		// try to atomically append our node to the current tail
		next := tailNode.next.Load()
		if next == nil {
			if tailNode.next.CompareAndSwap(nil, newNode) {
				// Successfully appended, now try to update tail.
				// The CAS may fail if another producer helps update tail,
				// which is fine - tail still gets updated eventually.
				m.tail.CompareAndSwap(tailNode, newNode)

				// Signal the consumer that new data is available. The lock
				// orders the signal after the consumer's check-then-wait:
				// without it, the append and signal could land between the
				// consumer's empty check and its Wait, and the consumer would
				// park with this item queued.
				m.mu.Lock()
				m.cond.Signal()
				m.mu.Unlock()

				return true
			}
		} else {
			// help update the tail pointer if another producer has already
			// appended a node but hasn't updated the tail yet
			m.tail.CompareAndSwap(tailNode, next)
		}

		// Exponential backoff under contention: spin at low retry counts,
		// yield the processor at higher ones so other goroutines progress.
		if backoff < 10 {
			backoff++
			for i := 0; i < 1<<backoff; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// consume continuously sends items from the linked list to the output channel
// and frees consumed nodes
func (m *Mailbox[T]) consume() {
	defer m.consumer.Done()
	defer close(m.out)

	for {
		hasItems := false

		// Drain all currently available items
		for {
			head := m.head.Load()
			next := head.next.Load()

			if next == nil {
				break // No more items available
			}

			hasItems = true

			// Capture value before updating pointers
			value := next.value

			// move head pointer (frees the consumed node)
			m.head.Store(next)

			m.out <- value

			// help the gc - safe to clear after sending
			next.value = nil
		}

		// Exit if closed and no more items
		if !hasItems && m.closed.Load() {
			return
		}

		// If no items were processed, wait for a signal
		if !hasItems {
			m.mu.Lock()
			// Double-check condition after acquiring lock
			head := m.head.Load()
			if head.next.Load() == nil && !m.closed.Load() {
				m.cond.Wait()
			}
			m.mu.Unlock()
		}
	}
}

// Recv returns a receive-only channel for consuming from the mailbox.
// This allows the mailbox to be used with the '<-' operator in select
// statements.
func (m *Mailbox[T]) Recv() <-chan *T {
	return m.out
}

// Close closes the mailbox, preventing further posts.
// Items already posted are still delivered to the consumer.
func (m *Mailbox[T]) Close() {
	m.closed.Store(true)

	// Wake up the consumer if it's waiting. Signaling under the lock keeps
	// the close from slipping between the consumer's check and its Wait.
	m.mu.Lock()
	m.cond.Signal()
	m.mu.Unlock()
}

// IsClosed returns true if the mailbox is closed
func (m *Mailbox[T]) IsClosed() bool {
	return m.closed.Load()
}

// Len returns an approximate count of pending items.
// This is O(n) and should only be used for debugging.
func (m *Mailbox[T]) Len() int {
	count := 0
	current := m.head.Load()

	for {
		next := current.next.Load()
		if next == nil {
			break
		}
		count++
		current = next
	}

	return count
}
