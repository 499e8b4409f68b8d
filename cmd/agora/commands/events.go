package commands

import (
	"context"

	"github.com/spf13/cobra"

	"agora/internal/adapters/kafka"
	"agora/internal/bootstrap"
	"agora/internal/consumers"
	"agora/pkg/errors"
)

var (
	tailTopic string
	tailGroup string
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect completion events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print chat or discussion completion events as they arrive",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		topic, err := completionTopic(tailTopic)
		if err != nil {
			return err
		}

		c := bootstrap.NewContainer()
		if err := c.InitConfig(); err != nil {
			return err
		}

		reader, err := bootstrap.ProvideKafkaConsumer(c.Config, tailGroup, topic)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		consumer := consumers.NewCompletionConsumer(reader, topic,
			func(_ context.Context, chat *kafka.ChatCompletedEvent, discussion *kafka.DiscussionCompletedEvent) error {
				if chat != nil {
					return printJSON(out, chat)
				}
				return printJSON(out, discussion)
			})
		return consumer.Start(ctx)
	},
}

func completionTopic(name string) (string, error) {
	switch name {
	case "chat", kafka.TopicChatCompleted:
		return kafka.TopicChatCompleted, nil
	case "discussion", kafka.TopicDiscussionCompleted:
		return kafka.TopicDiscussionCompleted, nil
	default:
		return "", errors.Wrapf(errors.ErrInvalidInput, "unknown topic %q, want chat or discussion", name)
	}
}

func init() {
	eventsTailCmd.Flags().StringVar(&tailTopic, "topic", "discussion", "Event stream: chat or discussion")
	eventsTailCmd.Flags().StringVar(&tailGroup, "group", "agora-cli", "Kafka consumer group")
	eventsCmd.AddCommand(eventsTailCmd)
}
