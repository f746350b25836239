package socket

// queuedFrame is an event waiting for the next connection.
type queuedFrame struct {
	key   string
	frame Frame
}

// emitQueue buffers events emitted while offline. Keyed entries are
// last-value-wins; the queue never holds more than cap entries and drops the
// oldest when full.
type emitQueue struct {
	cap   int
	items []queuedFrame
}

func newEmitQueue(capacity int) *emitQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &emitQueue{cap: capacity}
}

// push appends f. It reports whether an older entry had to be dropped to make room.
func (q *emitQueue) push(key string, f Frame) bool {
	if key != "" {
		for i := range q.items {
			if q.items[i].key == key {
				q.items = append(q.items[:i], q.items[i+1:]...)
				break
			}
		}
	}
	q.items = append(q.items, queuedFrame{key: key, frame: f})
	if len(q.items) > q.cap {
		q.items = q.items[1:]
		return true
	}
	return false
}

// drain removes and returns everything in FIFO order.
func (q *emitQueue) drain() []queuedFrame {
	items := q.items
	q.items = nil
	return items
}

// requeue puts undelivered items back in front of anything queued since.
func (q *emitQueue) requeue(items []queuedFrame) {
	q.items = append(append([]queuedFrame(nil), items...), q.items...)
	if over := len(q.items) - q.cap; over > 0 {
		q.items = q.items[over:]
	}
}

func (q *emitQueue) len() int { return len(q.items) }

// queueKey returns the coalescing key of payloads that declare one.
func queueKey(payload any) string {
	if k, ok := payload.(interface{ QueueKey() string }); ok {
		return k.QueueKey()
	}
	return ""
}
