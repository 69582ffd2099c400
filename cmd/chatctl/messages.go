package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Goden-Gun/chat-bindings/pkg/chat"
	"github.com/Goden-Gun/chat-bindings/pkg/engine"
)

// openChannel fetches channelID, creating it with typ when missing.
func openChannel(ctx context.Context, c *chat.Chat, channelID string, typ engine.ChannelType) (*chat.Channel, error) {
	ch, err := c.GetChannel(ctx, channelID)
	if err == nil {
		return ch, nil
	}
	if !errors.Is(err, engine.ErrNotFound) {
		return nil, err
	}
	return c.CreateChannel(ctx, engine.ChannelData{ID: channelID, Name: channelID, Type: typ})
}

func printMessage(m *chat.Message) {
	fmt.Printf("%s [%s] %s: %s\n", m.Published().Local().Format(time.TimeOnly), m.Timetoken(), m.UserID(), m.Text())
}

func newSendCommand(a *app) *cobra.Command {
	var (
		typ   string
		ttl   time.Duration
		quiet bool
	)
	cmd := &cobra.Command{
		Use:   "send <channel> <text...>",
		Short: "Publish a message",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			t, err := channelType(typ)
			if err != nil {
				return err
			}
			rt, err := a.runtime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			ch, err := openChannel(ctx, rt.Chat, args[0], t)
			if err != nil {
				return err
			}
			defer ch.Close()
			var opts []chat.SendOption
			if ttl > 0 {
				opts = append(opts, chat.WithTTL(ttl))
			}
			tt, err := ch.SendText(ctx, strings.Join(args[1:], " "), opts...)
			if err != nil {
				return err
			}
			if !quiet {
				fmt.Println(tt)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&typ, "type", string(engine.ChannelGroup), "channel type when the channel is created: group, public or direct")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "expire the stored message after this long")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print the timetoken")
	return cmd
}

func newListenCommand(a *app) *cobra.Command {
	var (
		typ    string
		events bool
	)
	cmd := &cobra.Command{
		Use:   "listen <channel>",
		Short: "Print messages as they arrive until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			t, err := channelType(typ)
			if err != nil {
				return err
			}
			rt, err := a.runtime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			ch, err := openChannel(ctx, rt.Chat, args[0], t)
			if err != nil {
				return err
			}
			defer ch.Close()

			if events {
				closer, err := rt.Chat.OnEvent("", func(ev chat.Event) {
					fmt.Printf("event %s on %s from %s: %v\n", ev.Type, ev.ChannelID, ev.UserID, ev.Payload)
				})
				if err != nil {
					return err
				}
				defer closer.Close()
			}

			for m, err := range ch.Messages(ctx) {
				if err != nil {
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				}
				printMessage(m)
				m.Close()
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&typ, "type", string(engine.ChannelGroup), "channel type when the channel is created")
	cmd.Flags().BoolVar(&events, "events", false, "also print invites, mentions and moderation events")
	return cmd
}

func newHistoryCommand(a *app) *cobra.Command {
	var (
		count int
		start string
	)
	cmd := &cobra.Command{
		Use:   "history <channel>",
		Short: "Print stored messages, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := a.runtime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			ch, err := rt.Chat.GetChannel(ctx, args[0])
			if err != nil {
				return err
			}
			defer ch.Close()
			msgs, err := ch.GetHistory(ctx, engine.HistoryQuery{Start: start, Count: count})
			if err != nil {
				return err
			}
			for _, m := range msgs {
				printMessage(m)
				m.Close()
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 25, "number of messages, at most 100")
	cmd.Flags().StringVar(&start, "before", "", "only messages older than this timetoken")
	return cmd
}
