// Package pulse publishes action events to per-tool Pulse streams backed by
// Redis. Callers build a Redis client, pass it to New, and every tool gets a
// stream named "tool-events-<toolID>" that trigger consumers subscribe to.
package pulse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"goa.design/pulse/streaming"
	streamopts "goa.design/pulse/streaming/options"

	"goa.design/toolforge/features/events"
	"goa.design/toolforge/runtime/tool"
)

const streamPrefix = "tool-events-"

type (
	// Options configures the publisher.
	Options struct {
		// Redis is the Redis connection backing Pulse streams. Required.
		Redis *redis.Client
		// StreamMaxLen bounds entries kept per stream. Zero uses Pulse
		// defaults.
		StreamMaxLen int
		// OperationTimeout bounds individual Add operations. Zero means no
		// timeout.
		OperationTimeout time.Duration
	}

	// Publisher implements events.Publisher on Pulse streams.
	Publisher struct {
		redis   *redis.Client
		maxLen  int
		timeout time.Duration

		mu      sync.Mutex
		streams map[string]*streaming.Stream
	}
)

// Compile-time check that Publisher implements events.Publisher.
var _ events.Publisher = (*Publisher)(nil)

// New constructs a Pulse-backed publisher.
func New(opts Options) (*Publisher, error) {
	if opts.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	return &Publisher{
		redis:   opts.Redis,
		maxLen:  opts.StreamMaxLen,
		timeout: opts.OperationTimeout,
		streams: make(map[string]*streaming.Stream),
	}, nil
}

// Publish adds one stream entry per event to the tool's event stream. The
// event type becomes the Pulse event name; the payload is the JSON-encoded
// event.
func (p *Publisher) Publish(ctx context.Context, toolID string, evs []tool.Event) error {
	if toolID == "" {
		return errors.New("tool id is required")
	}
	if len(evs) == 0 {
		return nil
	}
	stream, err := p.stream(toolID)
	if err != nil {
		return err
	}
	for _, ev := range evs {
		if err := p.add(ctx, stream, toolID, ev); err != nil {
			return err
		}
	}
	return nil
}

// add publishes one event, applying the configured operation timeout.
func (p *Publisher) add(ctx context.Context, stream *streaming.Stream, toolID string, ev tool.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %q: %w", ev.Type, err)
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	if _, err := stream.Add(ctx, ev.Type, payload); err != nil {
		return fmt.Errorf("publish event %q for tool %q: %w", ev.Type, toolID, err)
	}
	return nil
}

// stream returns the tool's event stream, creating it on first use.
func (p *Publisher) stream(toolID string) (*streaming.Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.streams[toolID]; ok {
		return s, nil
	}
	var opts []streamopts.Stream
	if p.maxLen > 0 {
		opts = append(opts, streamopts.WithStreamMaxLen(p.maxLen))
	}
	s, err := streaming.NewStream(streamPrefix+toolID, p.redis, opts...)
	if err != nil {
		return nil, fmt.Errorf("create event stream for tool %q: %w", toolID, err)
	}
	p.streams[toolID] = s
	return s, nil
}
