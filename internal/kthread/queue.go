package kthread

// ThreadQueue is a FIFO of threads. The zero value is an empty queue.
type ThreadQueue struct {
	items []*Thread
	head  int
}

// Len returns the number of queued threads.
func (q *ThreadQueue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.items) - q.head
}

// Push appends t to the tail.
func (q *ThreadQueue) Push(t *Thread) {
	q.items = append(q.items, t)
}

// Front returns the head without removing it.
func (q *ThreadQueue) Front() *Thread {
	if q.Len() == 0 {
		return nil
	}
	return q.items[q.head]
}

// Pop removes and returns the head, or nil when empty.
func (q *ThreadQueue) Pop() *Thread {
	if q.Len() == 0 {
		return nil
	}
	t := q.items[q.head]
	q.items[q.head] = nil
	q.head++
	if q.head >= len(q.items) {
		q.items = nil
		q.head = 0
	} else if q.head > 128 && q.head*2 >= len(q.items) {
		remaining := append([]*Thread(nil), q.items[q.head:]...)
		q.items = remaining
		q.head = 0
	}
	return t
}

// PopAt removes and returns the element at position i (0 is the head).
func (q *ThreadQueue) PopAt(i int) *Thread {
	if i < 0 || i >= q.Len() {
		return nil
	}
	if i == 0 {
		return q.Pop()
	}
	idx := q.head + i
	t := q.items[idx]
	copy(q.items[idx:], q.items[idx+1:])
	q.items[len(q.items)-1] = nil
	q.items = q.items[:len(q.items)-1]
	return t
}

// Contains reports whether t is queued.
func (q *ThreadQueue) Contains(t *Thread) bool {
	for _, item := range q.Snapshot() {
		if item == t {
			return true
		}
	}
	return false
}

// Snapshot returns the queued threads in FIFO order.
func (q *ThreadQueue) Snapshot() []*Thread {
	if q.Len() == 0 {
		return nil
	}
	out := make([]*Thread, q.Len())
	copy(out, q.items[q.head:])
	return out
}
