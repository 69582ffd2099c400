package chat

import (
	"encoding/json"

	"github.com/Goden-Gun/chat-bindings/pkg/association"
	"github.com/Goden-Gun/chat-bindings/pkg/engine"
)

// ModerationChannelPrefix prefixes the channel that receives reports about
// a channel.
const ModerationChannelPrefix = "moderation."

// Event is a chat-level event: invites, mentions, receipts, reports,
// moderation notices and custom payloads.
type Event engine.EventData

func toEvent(_ association.Handle, d engine.EventData) Event { return Event(d) }

// Decode copies the payload into v through its JSON form.
func (e Event) Decode(v any) error {
	raw, err := json.Marshal(e.Payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// Report is the payload of an EventReport.
type Report struct {
	Reason                   string `json:"reason"`
	Text                     string `json:"text,omitempty"`
	ReportedUserID           string `json:"reportedUserId"`
	ReportedMessageChannelID string `json:"reportedMessageChannelId,omitempty"`
	ReportedMessageTimetoken string `json:"reportedMessageTimetoken,omitempty"`
}

func reportEvent(channelID, userID, reason string, msg *engine.MessageData) Event {
	payload := map[string]any{
		"reason":         reason,
		"reportedUserId": userID,
	}
	if msg != nil {
		payload["text"] = msg.Text
		if msg.EditedText != "" {
			payload["text"] = msg.EditedText
		}
		payload["reportedMessageChannelId"] = msg.ChannelID
		payload["reportedMessageTimetoken"] = msg.Timetoken
	}
	return Event{
		Type:      engine.EventReport,
		ChannelID: ModerationChannelPrefix + channelID,
		UserID:    userID,
		Payload:   payload,
	}
}
