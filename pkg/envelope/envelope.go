package envelope

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const Version = "2025-01"

// Frame types carried on the realtime transport.
const (
	TypeMessage       = "message"
	TypeMessageUpdate = "message_update"
	TypeTyping        = "typing"
	TypePresence      = "presence"
	TypeMembership    = "membership"
	TypeEvent         = "event"
	TypeUserUpdate    = "user_update"
	TypeChannelUpdate = "channel_update"
)

// Envelope is one frame on the realtime transport.
type Envelope struct {
	ID         string            `json:"id"`
	Version    string            `json:"version"`
	Type       string            `json:"type"`
	Channel    string            `json:"channel"`
	Sender     string            `json:"sender,omitempty"`
	Payload    json.RawMessage   `json:"payload,omitempty"`
	TraceID    string            `json:"trace_id,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// New builds a normalized envelope with payload encoded as JSON.
func New(typ, channel, sender string, payload any) (Envelope, error) {
	env := Envelope{Type: typ, Channel: channel, Sender: sender}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, err
		}
		env.Payload = raw
	}
	Normalize(&env)
	return env, nil
}

// Normalize fills default fields.
func Normalize(env *Envelope) {
	if env == nil {
		return
	}
	if env.ID == "" {
		env.ID = uuid.NewString()
	}
	if env.Version == "" {
		env.Version = Version
	}
	if env.Attributes == nil {
		env.Attributes = map[string]string{}
	}
	if env.CreatedAt.IsZero() {
		env.CreatedAt = time.Now().UTC()
	}
}

// Validate checks an inbound frame before it is dispatched.
func Validate(env *Envelope) error {
	if env == nil {
		return errors.New("envelope is nil")
	}
	if strings.TrimSpace(env.Type) == "" {
		return errors.New("type is required")
	}
	if strings.TrimSpace(env.Channel) == "" {
		return errors.New("channel is required")
	}
	if env.Version != "" && env.Version != Version {
		return errors.New("unsupported envelope version " + env.Version)
	}
	return nil
}

// StampTrace fills trace metadata if missing.
func StampTrace(env *Envelope, traceID string) {
	if env == nil || traceID == "" {
		return
	}
	env.TraceID = traceID
	if env.Attributes == nil {
		env.Attributes = map[string]string{}
	}
	env.Attributes["trace_id"] = traceID
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error {
	if len(e.Payload) == 0 {
		return errors.New("envelope has no payload")
	}
	return json.Unmarshal(e.Payload, v)
}

// Marshal encodes the whole frame.
func Marshal(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// Unmarshal decodes and validates a frame.
func Unmarshal(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, err
	}
	if err := Validate(&env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}
