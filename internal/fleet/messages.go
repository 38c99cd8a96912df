package fleet

import (
	"errors"
	"math/rand/v2"
)

var (
	// ErrNoMessages is returned when a message pool would be empty.
	ErrNoMessages = errors.New("message list is empty")

	// ErrNoNames is returned when a name list file has no names in it.
	ErrNoNames = errors.New("name list is empty")
)

// MessagePool is the immutable set of chat messages shared by every session.
type MessagePool struct {
	messages []string
}

// NewMessagePool copies messages into a pool.
func NewMessagePool(messages []string) (*MessagePool, error) {
	if len(messages) == 0 {
		return nil, ErrNoMessages
	}
	return &MessagePool{messages: append([]string(nil), messages...)}, nil
}

// Pick returns a uniformly random message.
func (p *MessagePool) Pick() string {
	return p.messages[rand.IntN(len(p.messages))]
}

// Len returns the number of messages in the pool.
func (p *MessagePool) Len() int {
	return len(p.messages)
}
