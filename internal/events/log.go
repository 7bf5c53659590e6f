// Package events provides the per-investigation activity stream. New
// subscribers receive the buffered history first and then live events, which
// is what the SSE endpoint needs to survive client reconnects.
//
// Unlike a single-consumer handoff broker, every subscriber gets every event.
package events

import (
	"sync"
	"time"

	"github.com/myrjola/doppel/internal/models"
)

// subscriberBuffer bounds how far a slow subscriber may lag before events are
// dropped for it. Dropping beats blocking the pipeline on a stuck client.
const subscriberBuffer = 64

// historyLimit bounds the replay buffer per investigation.
const historyLimit = 256

type stream struct {
	history     []models.Event
	nextEventID int64
	subscribers map[int64]chan models.Event
	nextSubID   int64
}

// Log is the process-wide event log keyed by investigation id.
type Log struct {
	mu      sync.Mutex
	streams map[string]*stream
}

// NewLog creates an empty event log.
func NewLog() *Log {
	return &Log{streams: make(map[string]*stream)}
}

func (l *Log) stream(id string) *stream {
	s, ok := l.streams[id]
	if !ok {
		s = &stream{
			nextEventID: 1,
			subscribers: make(map[int64]chan models.Event),
		}
		l.streams[id] = s
	}
	return s
}

// Publish appends an event to the investigation's stream and fans it out to
// all live subscribers.
func (l *Log) Publish(
	id string,
	level models.EventLevel,
	category string,
	message string,
	details map[string]string,
) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.stream(id)
	event := models.Event{
		ID:        s.nextEventID,
		Timestamp: time.Now().UTC(),
		Level:     level,
		Category:  category,
		Message:   message,
		Details:   details,
	}
	s.nextEventID++
	s.history = append(s.history, event)
	if len(s.history) > historyLimit {
		s.history = s.history[len(s.history)-historyLimit:]
	}
	for _, subscriber := range s.subscribers {
		select {
		case subscriber <- event:
		default:
			// Subscriber is not keeping up, drop the event for it.
		}
	}
}

// Subscribe returns the buffered history for the investigation and a channel
// delivering subsequent events. The returned cancel function must be called
// when the subscriber is done.
func (l *Log) Subscribe(id string) ([]models.Event, <-chan models.Event, func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.stream(id)
	history := make([]models.Event, len(s.history))
	copy(history, s.history)

	subID := s.nextSubID
	s.nextSubID++
	live := make(chan models.Event, subscriberBuffer)
	s.subscribers[subID] = live

	cancel := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if current, ok := l.streams[id]; ok {
			delete(current.subscribers, subID)
		}
	}
	return history, live, cancel
}

// Drop removes an investigation's stream and disconnects its subscribers.
func (l *Log) Drop(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.streams[id]
	if !ok {
		return
	}
	for _, subscriber := range s.subscribers {
		close(subscriber)
	}
	delete(l.streams, id)
}
