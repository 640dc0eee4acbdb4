package feed

import (
	"context"
	"sync"
	"time"
)

// Activity kinds published into a user's feed.
const (
	ActivityRegistration = "registration"
	ActivityComment      = "comment"
	ActivityLike         = "like"

	activityHeartbeat = "heartbeat"
)

// Message is one activity entry addressed to a single user's stream.
type Message struct {
	UserID    string    `json:"-"`
	Activity  string    `json:"activity"`
	ActorID   string    `json:"actorId"`
	EventID   string    `json:"eventId,omitempty"`
	SubjectID string    `json:"subjectId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Heartbeat builds the keep-alive message streamed to idle subscribers.
func Heartbeat(at time.Time) Message {
	return Message{Activity: activityHeartbeat, Timestamp: at}
}

// Dispatcher fans activity messages out to per-user subscribers. Slow
// subscribers drop messages rather than block publishers.
type Dispatcher struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*subscriber
	nextID      int64
	bufferSize  int
}

type subscriber struct {
	id     int64
	stream chan Message
}

// NewDispatcher returns an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		subscribers: make(map[string]map[int64]*subscriber),
		bufferSize:  16,
	}
}

// Subscribe registers a stream for the user's activity. The stream is removed
// when the context ends or the returned cleanup runs.
func (d *Dispatcher) Subscribe(ctx context.Context, userID string) (<-chan Message, func()) {
	if userID == "" {
		ch := make(chan Message)
		close(ch)
		return ch, func() {}
	}
	sub := &subscriber{
		id:     d.nextSequence(),
		stream: make(chan Message, d.bufferSize),
	}
	d.register(userID, sub)
	cleanup := func() {
		d.unregister(userID, sub.id)
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return sub.stream, cleanup
}

// Publish delivers the message to every live subscriber of its target user.
func (d *Dispatcher) Publish(message Message) {
	if message.UserID == "" || message.Activity == "" {
		return
	}
	d.mu.RLock()
	subscribers := d.subscribers[message.UserID]
	if len(subscribers) == 0 {
		d.mu.RUnlock()
		return
	}
	copies := make([]*subscriber, 0, len(subscribers))
	for _, sub := range subscribers {
		copies = append(copies, sub)
	}
	d.mu.RUnlock()
	for _, sub := range copies {
		select {
		case sub.stream <- message:
		default:
		}
	}
}

func (d *Dispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *Dispatcher) register(userID string, sub *subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[userID]; !ok {
		d.subscribers[userID] = make(map[int64]*subscriber)
	}
	d.subscribers[userID][sub.id] = sub
}

func (d *Dispatcher) unregister(userID string, subscriberID int64) {
	d.mu.Lock()
	subscribers := d.subscribers[userID]
	if subscribers != nil {
		delete(subscribers, subscriberID)
		if len(subscribers) == 0 {
			delete(d.subscribers, userID)
		}
	}
	d.mu.Unlock()
}
