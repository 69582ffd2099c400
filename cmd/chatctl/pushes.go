package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/spf13/cobra"

	"github.com/Goden-Gun/chat-bindings/pkg/bootstrap"
	"github.com/Goden-Gun/chat-bindings/pkg/kafka"
	log "github.com/Goden-Gun/chat-bindings/pkg/logger"
	"github.com/Goden-Gun/chat-bindings/pkg/push"
)

func newPushesCommand(a *app) *cobra.Command {
	var group string
	cmd := &cobra.Command{
		Use:   "pushes",
		Short: "Tail the push notification queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if !a.cfg.Kafka.Enabled {
				return errors.New("kafka is disabled in the config")
			}
			if group == "" {
				group = a.cfg.Kafka.ConsumerGroup
			}
			producer, err := kafka.NewProducer(bootstrap.KafkaConfig(a.cfg.Kafka))
			if err != nil {
				return err
			}
			defer producer.Close()
			cg, err := producer.NewConsumerGroup(group)
			if err != nil {
				return err
			}
			defer cg.Close()

			err = kafka.Consume(ctx, cg, []string{a.cfg.Kafka.Topic}, func(ctx context.Context, msg *sarama.ConsumerMessage) error {
				var rec push.Record
				if err := json.Unmarshal(msg.Value, &rec); err != nil {
					log.WithTrace(ctx).WithError(err).WithField("offset", msg.Offset).Warn("skipping malformed push record")
					return nil
				}
				n := rec.Notification
				fmt.Printf("%s -> %v via %s: %s: %s\n", n.ChannelID, n.Recipients, rec.Gateway, n.SenderName, n.Text)
				return nil
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&group, "group", "", "consumer group, kafka.consumer_group by default")
	return cmd
}
