// Package push turns sent chat messages into mobile push notifications and
// hands them to a delivery gateway.
package push

import (
	"context"
	"strings"

	"github.com/Goden-Gun/chat-bindings/pkg/config"
)

// Notification is one message fanned out to offline recipients.
type Notification struct {
	ChannelID   string   `json:"channel_id"`
	ChannelName string   `json:"channel_name,omitempty"`
	SenderID    string   `json:"sender_id"`
	SenderName  string   `json:"sender_name,omitempty"`
	Text        string   `json:"text"`
	Timetoken   string   `json:"timetoken"`
	Recipients  []string `json:"recipients"`
}

// Gateway delivers notifications.
type Gateway interface {
	Deliver(ctx context.Context, n Notification) error
	Close() error
}

// Nop drops every notification.
type Nop struct{}

func (Nop) Deliver(context.Context, Notification) error { return nil }
func (Nop) Close() error                                { return nil }

// Payload builds the provider specific body for n: an "pn_fcm" block for
// FCM, or "pn_apns" with an apns2 target for APNs.
func Payload(cfg config.PushConfig, n Notification) map[string]any {
	title := n.SenderName
	if title == "" {
		title = n.SenderID
	}
	if n.ChannelName != "" {
		title = title + " @ " + n.ChannelName
	}
	data := map[string]any{
		"channel_id": n.ChannelID,
		"timetoken":  n.Timetoken,
	}

	if strings.EqualFold(cfg.DeviceGateway, config.GatewayAPNS) {
		env := cfg.APNSEnvironment
		if env == "" {
			env = "development"
		}
		return map[string]any{
			"pn_apns": map[string]any{
				"aps": map[string]any{
					"alert": map[string]any{"title": title, "body": n.Text},
					"sound": "default",
				},
				"pn_push": []map[string]any{{
					"push_type": "alert",
					"version":   "v2",
					"targets": []map[string]any{{
						"topic":       cfg.APNSTopic,
						"environment": env,
					}},
				}},
				"data": data,
			},
		}
	}
	return map[string]any{
		"pn_fcm": map[string]any{
			"notification": map[string]any{"title": title, "body": n.Text},
			"android":      map[string]any{"notification": map[string]any{"sound": "default"}},
			"data":         data,
		},
	}
}
