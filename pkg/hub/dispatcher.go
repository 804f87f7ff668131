package hub

import (
	"fmt"
	"sync"

	"github.com/spawnx1/REALTIMETRACKING/pkg/protocol"
)

// Handler handles a specific inbound message type
type Handler interface {
	// Handle processes a message from the given client
	Handle(c *Client, msg *protocol.Message) error
	// MessageType returns the type of message this handler processes
	MessageType() protocol.MessageType
}

// Dispatcher routes inbound messages to their registered handler
type Dispatcher struct {
	handlers map[protocol.MessageType]Handler
	mu       sync.RWMutex
}

// NewDispatcher creates an empty dispatcher
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[protocol.MessageType]Handler),
	}
}

// Register registers a handler for its message type
func (d *Dispatcher) Register(handler Handler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	msgType := handler.MessageType()
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.handlers[msgType]; exists {
		return fmt.Errorf("handler already registered for message type: %s", msgType)
	}

	d.handlers[msgType] = handler
	return nil
}

// Dispatch routes a message to the appropriate handler
func (d *Dispatcher) Dispatch(c *Client, msg *protocol.Message) error {
	d.mu.RLock()
	handler, exists := d.handlers[msg.Type]
	d.mu.RUnlock()

	if !exists {
		return fmt.Errorf("%w: %s", protocol.ErrUnknownMessageType, msg.Type)
	}

	return handler.Handle(c, msg)
}

// HasHandler checks if a handler exists for the message type
func (d *Dispatcher) HasHandler(msgType protocol.MessageType) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, exists := d.handlers[msgType]
	return exists
}
