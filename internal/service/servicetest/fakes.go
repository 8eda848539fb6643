package servicetest

import (
	"context"
	"sync"
)

// Gate is a BotGate that accepts exactly the token Valid.  An empty Valid
// rejects everything.
type Gate struct {
	Valid string

	mu    sync.Mutex
	calls int
}

func (g *Gate) Verify(_ context.Context, token, _ string) bool {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	return g.Valid != "" && token == g.Valid
}

// Calls returns how many times Verify ran.
func (g *Gate) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// Delivery is one recorded Notifier call.
type Delivery struct {
	Email string
	Code  string
}

// Notifier records deliveries and returns Err for each of them.
type Notifier struct {
	Err error

	mu         sync.Mutex
	deliveries []Delivery
}

func (n *Notifier) SendResetCode(_ context.Context, email, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deliveries = append(n.deliveries, Delivery{Email: email, Code: code})
	return n.Err
}

// Deliveries returns a copy of the recorded calls.
func (n *Notifier) Deliveries() []Delivery {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Delivery(nil), n.deliveries...)
}
