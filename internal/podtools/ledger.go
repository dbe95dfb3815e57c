// ABOUTME: Ledger collaborator interface and an in-memory implementation
// ABOUTME: The real chain client plugs in behind the same interface

package podtools

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Ledger errors
var (
	ErrAgentNotFound = errors.New("agent not found")
	ErrAgentExists   = errors.New("agent already registered")
)

// AgentInfo describes a registered agent.
type AgentInfo struct {
	ID           string    `json:"id"`
	Owner        string    `json:"owner"`
	Name         string    `json:"name"`
	Capabilities []string  `json:"capabilities"`
	Endpoint     string    `json:"endpoint,omitempty"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// AgentStats summarizes one agent's activity.
type AgentStats struct {
	AgentID       string `json:"agentId"`
	MessagesSent  int    `json:"messagesSent"`
	EscrowsOpened int    `json:"escrowsOpened"`
}

// NetworkStats summarizes the whole ledger.
type NetworkStats struct {
	AgentCount   int `json:"agentCount"`
	MessageCount int `json:"messageCount"`
	EscrowCount  int `json:"escrowCount"`
}

// Ledger is the external collaborator behind the business tools.
type Ledger interface {
	RegisterAgent(ctx context.Context, owner, name string, capabilities []string, endpoint string) (*AgentInfo, error)
	SendMessage(ctx context.Context, from, to, payload string) (messageID string, err error)
	CreateEscrow(ctx context.Context, from, counterparty string, amountLamports uint64) (escrowID string, err error)
	AgentStats(ctx context.Context, agentID string) (*AgentStats, error)
	ListAgents(ctx context.Context) ([]*AgentInfo, error)
	NetworkStats(ctx context.Context) (*NetworkStats, error)
}

// MemoryLedger is an in-memory Ledger for development and tests.
type MemoryLedger struct {
	mu       sync.Mutex
	agents   map[string]*AgentInfo
	byName   map[string]string // owner+name -> agent id
	stats    map[string]*AgentStats
	messages int
	escrows  int
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		agents: make(map[string]*AgentInfo),
		byName: make(map[string]string),
		stats:  make(map[string]*AgentStats),
	}
}

// RegisterAgent records a new agent owned by the caller.
func (l *MemoryLedger) RegisterAgent(_ context.Context, owner, name string, capabilities []string, endpoint string) (*AgentInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := owner + "/" + name
	if _, exists := l.byName[key]; exists {
		return nil, ErrAgentExists
	}

	agent := &AgentInfo{
		ID:           uuid.New().String(),
		Owner:        owner,
		Name:         name,
		Capabilities: append([]string(nil), capabilities...),
		Endpoint:     endpoint,
		RegisteredAt: time.Now().UTC(),
	}
	l.agents[agent.ID] = agent
	l.byName[key] = agent.ID
	l.stats[agent.ID] = &AgentStats{AgentID: agent.ID}
	return agent, nil
}

// SendMessage records a message between agents.
func (l *MemoryLedger) SendMessage(_ context.Context, from, to, payload string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.agents[to]; !ok {
		return "", ErrAgentNotFound
	}
	if st, ok := l.stats[from]; ok {
		st.MessagesSent++
	}
	l.messages++
	return uuid.New().String(), nil
}

// CreateEscrow records an escrow between two parties.
func (l *MemoryLedger) CreateEscrow(_ context.Context, from, counterparty string, amountLamports uint64) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if st, ok := l.stats[from]; ok {
		st.EscrowsOpened++
	}
	l.escrows++
	return uuid.New().String(), nil
}

// AgentStats returns activity counters for one agent.
func (l *MemoryLedger) AgentStats(_ context.Context, agentID string) (*AgentStats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.stats[agentID]
	if !ok {
		return nil, ErrAgentNotFound
	}
	cp := *st
	return &cp, nil
}

// ListAgents returns all registered agents.
func (l *MemoryLedger) ListAgents(_ context.Context) ([]*AgentInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*AgentInfo, 0, len(l.agents))
	for _, a := range l.agents {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

// NetworkStats returns ledger-wide counters.
func (l *MemoryLedger) NetworkStats(_ context.Context) (*NetworkStats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return &NetworkStats{
		AgentCount:   len(l.agents),
		MessageCount: l.messages,
		EscrowCount:  l.escrows,
	}, nil
}
