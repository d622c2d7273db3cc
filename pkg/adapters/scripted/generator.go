// Package scripted provides a deterministic Generator that replays canned replies per node.
// It backs offline demos and tests.
package scripted

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/aretw0/deckflow/pkg/domain"
	"github.com/aretw0/deckflow/pkg/ports"
)

// ErrNoReply is returned when no reply was scripted for the calling node.
var ErrNoReply = errors.New("no scripted reply")

// Reply is one canned generator answer.
type Reply struct {
	Content   string
	ToolCalls []domain.ToolCall
	Err       error
}

// Generator replays replies queued per node ID.
// The last reply of a queue repeats once the others are consumed.
type Generator struct {
	mu      sync.Mutex
	queues  map[string][]Reply
	history []ports.GenerateRequest
}

var _ ports.Generator = (*Generator)(nil)

// New creates an empty script.
func New() *Generator {
	return &Generator{queues: make(map[string][]Reply)}
}

// On queues replies for nodeID.
func (g *Generator) On(nodeID string, replies ...Reply) *Generator {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queues[nodeID] = append(g.queues[nodeID], replies...)
	return g
}

// OnJSON queues v encoded as JSON for nodeID. It panics if v cannot be encoded.
func (g *Generator) OnJSON(nodeID string, v any) *Generator {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("scripted: encoding reply for %s: %v", nodeID, err))
	}
	return g.On(nodeID, Reply{Content: string(data)})
}

// Generate implements ports.Generator.
func (g *Generator) Generate(ctx context.Context, req ports.GenerateRequest) (*ports.GenerateResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.history = append(g.history, req)

	queue := g.queues[req.NodeID]
	if len(queue) == 0 {
		return nil, fmt.Errorf("%w for node %q", ErrNoReply, req.NodeID)
	}
	r := queue[0]
	if len(queue) > 1 {
		g.queues[req.NodeID] = queue[1:]
	}
	if r.Err != nil {
		return nil, r.Err
	}
	return &ports.GenerateResponse{Content: r.Content, ToolCalls: append([]domain.ToolCall(nil), r.ToolCalls...)}, nil
}

// Requests returns every request received so far.
func (g *Generator) Requests() []ports.GenerateRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]ports.GenerateRequest(nil), g.history...)
}

// Calls counts the requests made by nodeID.
func (g *Generator) Calls(nodeID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, r := range g.history {
		if r.NodeID == nodeID {
			n++
		}
	}
	return n
}
