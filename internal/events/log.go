package events

import (
	"sync"
	"time"
)

// Entry is one captured bus event.
type Entry struct {
	Time    time.Time `json:"time"`
	Topic   Event     `json:"topic"`
	Payload any       `json:"payload"`
}

// Log captures recent events from the chosen topics into a bounded window
// so clients can inspect engine activity after the fact. Oldest entries
// fall off first.
type Log struct {
	mu      sync.Mutex
	entries []Entry
	max     int
	unsubs  []func()
}

// NewLog subscribes to the given topics and starts recording.
func NewLog(bus *Bus, max int, topics ...Event) *Log {
	if max <= 0 {
		max = 200
	}
	l := &Log{max: max}
	for _, topic := range topics {
		ch, unsub := bus.Subscribe(topic, 64)
		l.unsubs = append(l.unsubs, unsub)
		go func(topic Event, ch <-chan any) {
			for payload := range ch {
				l.append(Entry{Time: time.Now(), Topic: topic, Payload: payload})
			}
		}(topic, ch)
	}
	return l
}

func (l *Log) append(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) >= l.max {
		l.entries = l.entries[1:]
	}
	l.entries = append(l.entries, e)
}

// Recent returns up to n entries, newest first.
func (l *Log) Recent(n int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]Entry, n)
	for i := 0; i < n; i++ {
		out[i] = l.entries[len(l.entries)-1-i]
	}
	return out
}

// Close stops recording.
func (l *Log) Close() {
	for _, u := range l.unsubs {
		u()
	}
}
