package telephony

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Provider is the provider-agnostic boundary the dialing engine talks to.
//
// Rules:
// - No provider SDK calls outside telephony adapters.
// - All requests must be workspace-scoped (workspace_id required).
// - The engine only triggers; call progress and recording belong to the
//   provider's own event stream, recorded back through sessions.RecordCall.
type Provider interface {
	Name() string
	HealthCheck(ctx context.Context) error

	// Dial triggers a click-to-dial for an agent against a target number.
	Dial(ctx context.Context, req DialRequest) (DialResult, error)

	// SendSMS delivers a templated message. Body is already merged; see Merge.
	SendSMS(ctx context.Context, req SMSRequest) (SMSResult, error)
}

var ErrInvalidRequest = errors.New("telephony: invalid request")

type DialRequest struct {
	WorkspaceID string `json:"workspace_id"`
	AgentID     string `json:"agent_id"`

	// To is E.164 where possible.
	To string `json:"to"`

	// ItemID ties the dial back to the queue item being worked.
	ItemID string `json:"item_id,omitempty"`
}

type DialResult struct {
	WorkspaceID string `json:"workspace_id"`

	// ProviderCallID is the provider's identifier for the triggered call.
	ProviderCallID string `json:"provider_call_id"`

	TriggeredAt time.Time `json:"triggered_at"`
}

type SMSRequest struct {
	WorkspaceID string `json:"workspace_id"`
	To          string `json:"to"`
	Body        string `json:"body"`
}

type SMSResult struct {
	WorkspaceID       string `json:"workspace_id"`
	ProviderMessageID string `json:"provider_message_id"`
}

// LogProvider is a development Provider that only logs. It keeps the engine
// runnable without telephony credentials.
type LogProvider struct {
	Log   *slog.Logger
	clock func() time.Time
}

func NewLogProvider(log *slog.Logger) *LogProvider {
	if log == nil {
		log = slog.Default()
	}
	return &LogProvider{Log: log, clock: time.Now}
}

func (p *LogProvider) Name() string { return "log" }

func (p *LogProvider) HealthCheck(ctx context.Context) error {
	_ = ctx
	return nil
}

func (p *LogProvider) Dial(ctx context.Context, req DialRequest) (DialResult, error) {
	_ = ctx
	if req.WorkspaceID == "" || req.To == "" {
		return DialResult{}, ErrInvalidRequest
	}
	now := p.clock().UTC()
	p.Log.Info("dial triggered", "workspace_id", req.WorkspaceID, "agent_id", req.AgentID, "to", req.To, "item_id", req.ItemID)
	return DialResult{WorkspaceID: req.WorkspaceID, ProviderCallID: "log-" + now.Format("20060102150405.000"), TriggeredAt: now}, nil
}

func (p *LogProvider) SendSMS(ctx context.Context, req SMSRequest) (SMSResult, error) {
	_ = ctx
	if req.WorkspaceID == "" || req.To == "" || req.Body == "" {
		return SMSResult{}, ErrInvalidRequest
	}
	p.Log.Info("sms sent", "workspace_id", req.WorkspaceID, "to", req.To, "len", len(req.Body))
	return SMSResult{WorkspaceID: req.WorkspaceID, ProviderMessageID: "log-msg"}, nil
}
