package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/vfgtools/vfg-extract/pkg/logging"
)

// ErrClosed is returned by Publish and Subscribe after Close.
var ErrClosed = errors.New("pubsub: publisher closed")

// TopicConfig controls replay for late subscribers. BufferSize is the
// number of retained events, zero disables retention. ReplayAll replays
// the whole retained window instead of only the newest event.
type TopicConfig struct {
	BufferSize int
	ReplayAll  bool
}

// topicState is the per-topic bookkeeping: retained events, the version
// counter and the live subscriber set.
type topicState struct {
	config   TopicConfig
	version  int
	retained []Event
	subs     map[*sseSubscription]struct{}
}

func (t *topicState) retain(e Event) {
	if t.config.BufferSize <= 0 {
		return
	}
	t.retained = append(t.retained, e)
	if excess := len(t.retained) - t.config.BufferSize; excess > 0 {
		t.retained = t.retained[excess:]
	}
}

// replayWindow returns the retained events a new subscriber should see.
func (t *topicState) replayWindow() []Event {
	if len(t.retained) == 0 {
		return nil
	}
	window := t.retained
	if !t.config.ReplayAll {
		window = window[len(window)-1:]
	}
	out := make([]Event, len(window))
	copy(out, window)
	return out
}

// SSEPublisher is the in-process Publisher behind the SSE endpoints.
type SSEPublisher struct {
	mu     sync.RWMutex
	topics map[string]*topicState
	closed bool
}

// NewSSEPublisher creates a publisher with no configured topics.
func NewSSEPublisher() *SSEPublisher {
	return &SSEPublisher{topics: make(map[string]*topicState)}
}

func (p *SSEPublisher) topic(name string) *topicState {
	t, ok := p.topics[name]
	if !ok {
		t = &topicState{subs: make(map[*sseSubscription]struct{})}
		p.topics[name] = t
	}
	return t
}

// ConfigureTopic sets the retention policy for a topic. Safe to call
// before or after subscribers exist.
func (p *SSEPublisher) ConfigureTopic(name string, config TopicConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic(name).config = config
}

// Subscribe registers a subscriber, replays the retained window to it and
// ties its lifetime to ctx.
func (p *SSEPublisher) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}

	t := p.topic(topic)
	sub := &sseSubscription{
		topic: topic,
		// Buffered so a slow HTTP client cannot stall Publish
		events:    make(chan Event, 100),
		publisher: p,
	}
	t.subs[sub] = struct{}{}

	// Replay under the lock: the channel may only be written while the
	// publisher lock guards it against a concurrent close
	replay := t.replayWindow()
	for _, event := range replay {
		select {
		case sub.events <- event:
		default:
			logging.Warn("replay dropped, subscriber channel full", "topic", topic, "version", event.Version)
		}
	}
	if len(replay) > 0 {
		logging.Debug("replayed retained events", "topic", topic, "count", len(replay))
	}
	p.mu.Unlock()

	go func() {
		<-ctx.Done()
		sub.Close()
	}()

	return sub, nil
}

// Publish versions the payload, retains it per the topic policy and
// fans it out. Subscribers with a full channel lose the event rather
// than blocking the extraction loop.
func (p *SSEPublisher) Publish(topic string, eventType string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	t := p.topic(topic)
	t.version++
	event := Event{
		Topic:   topic,
		Type:    eventType,
		Data:    payload,
		Version: t.version,
	}
	t.retain(event)

	for sub := range t.subs {
		select {
		case sub.events <- event:
		default:
			logging.Warn("event dropped, subscriber channel full", "topic", topic, "version", event.Version)
		}
	}
	return nil
}

// Close shuts down the publisher and every subscription.
func (p *SSEPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	for _, t := range p.topics {
		for sub := range t.subs {
			close(sub.events)
		}
		t.subs = make(map[*sseSubscription]struct{})
	}
	return nil
}

// unsubscribe detaches sub and closes its channel so range loops over
// Events terminate. The close happens under the publisher lock, which
// also guards every send into the channel.
func (p *SSEPublisher) unsubscribe(sub *sseSubscription) {
	p.mu.Lock()
	defer p.mu.Unlock()

	t, ok := p.topics[sub.topic]
	if !ok {
		return
	}
	if _, live := t.subs[sub]; live {
		delete(t.subs, sub)
		close(sub.events)
	}
}

type sseSubscription struct {
	topic     string
	events    chan Event
	publisher *SSEPublisher

	mu     sync.Mutex
	closed bool
}

func (s *sseSubscription) Topic() string { return s.topic }

func (s *sseSubscription) Events() <-chan Event { return s.events }

func (s *sseSubscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.publisher.unsubscribe(s)
	return nil
}

// WriteSSE frames one event as an SSE data line.
func WriteSSE(w io.Writer, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}
