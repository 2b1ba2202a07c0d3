// Package oscout wraps github.com/hypebeast/go-osc behind the narrow
// OscOutput interface the legacy step processor depends on.
package oscout

import (
	"fmt"
	"sync"

	"github.com/hypebeast/go-osc/osc"
)

// Output is the thin OSC sending contract. StepProcessor holds only this
// interface.
type Output interface {
	SendEvent(address string, args ...any) error
	IsConnected() bool
	Close() error
}

// Client is the go-osc-backed Output implementation: one UDP socket per
// destination, fire-and-forget.
type Client struct {
	mu        sync.Mutex
	client    *osc.Client
	connected bool
}

// Dial creates a UDP OSC client targeting host:port. go-osc's client never
// actually dials (UDP is connectionless), so connected starts true and only
// flips false after a send error.
func Dial(host string, port int) *Client {
	return &Client{client: osc.NewClient(host, port), connected: true}
}

// SendEvent builds an OSC message at address from an alternating or
// positional argument list and transmits it.
func (c *Client) SendEvent(address string, args ...any) error {
	msg := osc.NewMessage(address)
	for _, a := range args {
		if err := appendArg(msg, a); err != nil {
			c.mu.Lock()
			c.connected = false
			c.mu.Unlock()
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.client.Send(msg); err != nil {
		c.connected = false
		return fmt.Errorf("osc send %s: %w", address, err)
	}
	c.connected = true
	return nil
}

func appendArg(msg *osc.Message, a any) error {
	switch v := a.(type) {
	case string:
		msg.Append(v)
	case int32:
		msg.Append(v)
	case int:
		msg.Append(int32(v))
	case int64:
		msg.Append(int32(v))
	case float32:
		msg.Append(v)
	case float64:
		msg.Append(float32(v))
	case bool:
		msg.Append(v)
	default:
		return fmt.Errorf("unsupported osc argument type %T", a)
	}
	return nil
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Close is a no-op: go-osc's UDP client owns no long-lived file
// descriptor beyond what net.Dial would hold, and the library exposes no
// explicit close.
func (c *Client) Close() error { return nil }

// Null is a disconnected Output stand-in used when no legacy OSC target is
// configured; every send is a silent no-op.
type Null struct{}

func (Null) SendEvent(string, ...any) error { return nil }
func (Null) IsConnected() bool              { return false }
func (Null) Close() error                   { return nil }
