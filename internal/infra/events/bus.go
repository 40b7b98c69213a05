package events

import (
	"sync"

	"go.uber.org/zap"
)

// Bus dispatches domain events to registered handlers.
// In async mode each Publish runs its handlers on a separate goroutine;
// Close waits for in-flight dispatches.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	async    bool
	wg       sync.WaitGroup
	logger   *zap.Logger
}

// NewBus creates a synchronous event bus.
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// NewAsyncBus creates a bus that dispatches off the publisher's goroutine.
func NewAsyncBus(logger *zap.Logger) *Bus {
	b := NewBus(logger)
	b.async = true
	return b
}

// Register registers a handler for the events it handles.
func (b *Bus) Register(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, eventType := range handler.Handles() {
		b.handlers[eventType] = append(b.handlers[eventType], handler)
		b.logger.Debug("registered event handler", zap.String("event_type", eventType))
	}
}

// Publish dispatches an event to all registered handlers.
// A failing handler is logged and does not stop the others.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	handlers := b.handlers[event.EventType()]
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.logger.Debug("no handlers registered for event",
			zap.String("event_type", event.EventType()),
			zap.String("event_id", event.EventID().String()),
		)
		return
	}

	if !b.async {
		b.dispatch(event, handlers)
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.dispatch(event, handlers)
	}()
}

func (b *Bus) dispatch(event Event, handlers []Handler) {
	b.logger.Info("publishing event",
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
		zap.String("user_id", event.UserID()),
		zap.Int("handler_count", len(handlers)),
	)

	for _, handler := range handlers {
		if err := b.safeHandle(handler, event); err != nil {
			b.logger.Error("event handler failed",
				zap.String("event_type", event.EventType()),
				zap.String("event_id", event.EventID().String()),
				zap.Error(err),
			)
		}
	}
}

func (b *Bus) safeHandle(handler Handler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("event_type", event.EventType()),
				zap.Any("panic", r),
			)
		}
	}()
	return handler.Handle(event)
}

// Close waits for asynchronous dispatches to finish.
func (b *Bus) Close() {
	b.wg.Wait()
}
