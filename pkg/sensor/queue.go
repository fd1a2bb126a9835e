package sensor

// EventQueueSize is the number of slots in a matrix event queue. One slot
// stays free to tell a full queue from an empty one, so at most
// EventQueueSize-1 events are held.
const EventQueueSize = 8

type cellEvent struct {
	cell    uint8
	pressed bool
}

// eventQueue is a fixed ring buffer that drops its oldest entry when a new
// one arrives while full.
type eventQueue struct {
	buf  [EventQueueSize]cellEvent
	head int
	tail int
}

func (q *eventQueue) push(e cellEvent) {
	next := (q.tail + 1) % EventQueueSize
	if next == q.head {
		q.head = (q.head + 1) % EventQueueSize
	}
	q.buf[q.tail] = e
	q.tail = next
}

func (q *eventQueue) pop() (cellEvent, bool) {
	if q.empty() {
		return cellEvent{}, false
	}
	e := q.buf[q.head]
	q.head = (q.head + 1) % EventQueueSize
	return e, true
}

func (q *eventQueue) empty() bool { return q.head == q.tail }

func (q *eventQueue) len() int {
	return (q.tail - q.head + EventQueueSize) % EventQueueSize
}

func (q *eventQueue) reset() {
	q.head = 0
	q.tail = 0
}
