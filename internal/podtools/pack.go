// ABOUTME: Registers the PoD business tools and resources against a Ledger
// ABOUTME: Handlers validate arguments, then pass through to the collaborator

package podtools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pod-protocol/pod-mcp-server/internal/session"
	"github.com/pod-protocol/pod-mcp-server/internal/tools"
)

// Permissions required by the PoD tools.
const (
	PermAgentWrite  = "agent.write"
	PermMessageSend = "message.send"
	PermEscrowWrite = "escrow.write"
)

// Register installs the PoD tools and resources into the registry.
func Register(registry *tools.Registry, ledger Ledger) error {
	h := &handlers{ledger: ledger}

	toolDefs := []*tools.Tool{
		{
			Name:               "register_agent",
			Description:        "Register a new AI agent on the PoD network",
			InputSchema:        json.RawMessage(`{"type":"object","properties":{"name":{"type":"string"},"capabilities":{"type":"array","items":{"type":"string"}},"endpoint":{"type":"string"}},"required":["name"]}`),
			RequiredPermission: PermAgentWrite,
			Handler:            h.RegisterAgent,
		},
		{
			Name:               "send_message",
			Description:        "Send a message to another agent",
			InputSchema:        json.RawMessage(`{"type":"object","properties":{"to":{"type":"string"},"payload":{"type":"string"}},"required":["to","payload"]}`),
			RequiredPermission: PermMessageSend,
			Handler:            h.SendMessage,
		},
		{
			Name:               "create_escrow",
			Description:        "Open an escrow with a counterparty",
			InputSchema:        json.RawMessage(`{"type":"object","properties":{"counterparty":{"type":"string"},"amount_lamports":{"type":"integer","minimum":1}},"required":["counterparty","amount_lamports"]}`),
			RequiredPermission: PermEscrowWrite,
			Handler:            h.CreateEscrow,
		},
		{
			Name:        "get_agent_stats",
			Description: "Fetch activity counters for an agent",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"agent_id":{"type":"string"}},"required":["agent_id"]}`),
			Handler:     h.AgentStats,
		},
	}
	for _, t := range toolDefs {
		if err := registry.RegisterTool(t); err != nil {
			return fmt.Errorf("registering tool %s: %w", t.Name, err)
		}
	}

	resourceDefs := []*tools.Resource{
		{
			URI:         "pod://agents",
			Name:        "Registered agents",
			Description: "All agents registered on the PoD network",
			MimeType:    "application/json",
			Handler:     h.Agents,
		},
		{
			URI:         "pod://network/stats",
			Name:        "Network statistics",
			Description: "Ledger-wide agent, message, and escrow counts",
			MimeType:    "application/json",
			Handler:     h.NetworkStats,
		},
	}
	for _, r := range resourceDefs {
		if err := registry.RegisterResource(r); err != nil {
			return fmt.Errorf("registering resource %s: %w", r.URI, err)
		}
	}

	return nil
}

type handlers struct {
	ledger Ledger
}

type registerAgentArgs struct {
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
	Endpoint     string   `json:"endpoint"`
}

func (h *handlers) RegisterAgent(ctx context.Context, sess *session.Session, args json.RawMessage) (any, error) {
	var a registerAgentArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Name == "" {
		return nil, errors.New("name is required")
	}
	return h.ledger.RegisterAgent(ctx, sess.UserID, a.Name, a.Capabilities, a.Endpoint)
}

type sendMessageArgs struct {
	To      string `json:"to"`
	Payload string `json:"payload"`
}

func (h *handlers) SendMessage(ctx context.Context, sess *session.Session, args json.RawMessage) (any, error) {
	var a sendMessageArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if a.To == "" || a.Payload == "" {
		return nil, errors.New("to and payload are required")
	}
	id, err := h.ledger.SendMessage(ctx, sess.UserID, a.To, a.Payload)
	if err != nil {
		return nil, err
	}
	return map[string]string{"messageId": id}, nil
}

type createEscrowArgs struct {
	Counterparty   string `json:"counterparty"`
	AmountLamports uint64 `json:"amount_lamports"`
}

func (h *handlers) CreateEscrow(ctx context.Context, sess *session.Session, args json.RawMessage) (any, error) {
	var a createEscrowArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Counterparty == "" || a.AmountLamports == 0 {
		return nil, errors.New("counterparty and amount_lamports are required")
	}
	id, err := h.ledger.CreateEscrow(ctx, sess.UserID, a.Counterparty, a.AmountLamports)
	if err != nil {
		return nil, err
	}
	return map[string]string{"escrowId": id}, nil
}

type agentStatsArgs struct {
	AgentID string `json:"agent_id"`
}

func (h *handlers) AgentStats(ctx context.Context, _ *session.Session, args json.RawMessage) (any, error) {
	var a agentStatsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if a.AgentID == "" {
		return nil, errors.New("agent_id is required")
	}
	return h.ledger.AgentStats(ctx, a.AgentID)
}

func (h *handlers) Agents(ctx context.Context, _ *session.Session) (any, error) {
	return h.ledger.ListAgents(ctx)
}

func (h *handlers) NetworkStats(ctx context.Context, _ *session.Session) (any, error) {
	return h.ledger.NetworkStats(ctx)
}
