package goraop

import (
	"sync"
)

type sessionEventType int

const (
	sessionEventVolume sessionEventType = iota
	sessionEventFlush
	sessionEventMetadata
	sessionEventCoverArt
	sessionEventRemoteControlID
	sessionEventProgress
)

type sessionEvent struct {
	typ sessionEventType

	volume       float64
	next         int
	contentType  string
	data         []byte
	dacpID       string
	activeRemote string
	start        uint32
	current      uint32
	end          uint32
}

// sessionEventQueue is a mailbox between the connection and the session worker.
// Events are pulled in the same order they were pushed.
type sessionEventQueue struct {
	mutex  sync.Mutex
	events []sessionEvent

	notify chan struct{}
}

func (q *sessionEventQueue) initialize() {
	q.notify = make(chan struct{}, 1)
}

func (q *sessionEventQueue) push(e sessionEvent) {
	q.mutex.Lock()
	q.events = append(q.events, e)
	q.mutex.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *sessionEventQueue) pull() []sessionEvent {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	events := q.events
	q.events = nil
	return events
}
