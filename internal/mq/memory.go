package mq

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

const memoryQueueDepth = 64

type memoryMessage struct {
	Message
	redelivered bool
}

// MemoryBroker is an in-process backend. Each channel is a buffered queue
// whose messages are shared by competing subscribers. A failed message is
// requeued once.
type MemoryBroker struct {
	mu     sync.Mutex
	queues map[string]chan memoryMessage
	closed chan struct{}
	once   sync.Once
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		queues: make(map[string]chan memoryMessage),
		closed: make(chan struct{}),
	}
}

func (b *MemoryBroker) queue(channel string) chan memoryMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[channel]
	if !ok {
		q = make(chan memoryMessage, memoryQueueDepth)
		b.queues[channel] = q
	}
	return q
}

func (b *MemoryBroker) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if channel == "" {
		return "", errors.New("memory channel is required")
	}
	msg := memoryMessage{Message: Message{ID: uuid.NewString(), Data: append([]byte(nil), data...), Attributes: attrs}}
	select {
	case <-b.closed:
		return "", errors.New("memory broker closed")
	case <-ctx.Done():
		return "", ctx.Err()
	case b.queue(channel) <- msg:
		return msg.ID, nil
	}
}

func (b *MemoryBroker) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if channel == "" {
		return errors.New("memory channel is required")
	}
	q := b.queue(channel)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.closed:
			return nil
		case msg := <-q:
			if err := handler(ctx, msg.Message); err != nil && !msg.redelivered {
				msg.redelivered = true
				select {
				case q <- msg:
				default:
				}
			}
		}
	}
}

func (b *MemoryBroker) Close() error {
	b.once.Do(func() { close(b.closed) })
	return nil
}
