package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/ingest"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/kafka"
)

func newEnqueueCmd(e *env) *cobra.Command {
	var (
		op   string
		text string
		set  []string
	)
	cmd := &cobra.Command{
		Use:   "enqueue <uri> [file|-]",
		Short: "Publish a document mutation to the ingest topic",
		Long: `Publishes an index, remove or properties message for uri to the Kafka
ingest topic, for a running indexd to apply.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			msg := ingest.Message{Op: ingest.Op(op), URI: args[0]}
			switch msg.Op {
			case ingest.OpIndex:
				if msg.Text, err = readText(cmd, text, args[1:]); err != nil {
					return err
				}
			case ingest.OpProperties:
				if len(set) > 0 {
					if msg.Properties, err = parseProps(set); err != nil {
						return err
					}
				}
			}
			if err := ingest.Validate(&msg); err != nil {
				return err
			}

			topic := e.cfg.Kafka.Topics.DocumentIngest
			producer := e.newPublisher(e.cfg.Kafka, topic)
			defer func() { err = errors.Join(err, producer.Close()) }()
			if err := producer.Publish(cmd.Context(), kafka.Event{Key: msg.URI, Value: msg}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s %s on %s\n", msg.Op, msg.URI, topic)
			return nil
		},
	}
	cmd.Flags().StringVar(&op, "op", string(ingest.OpIndex), "operation: index, remove or properties")
	cmd.Flags().StringVar(&text, "text", "", "document text for op index")
	cmd.Flags().StringArrayVar(&set, "set", nil, "property as key=value for op properties")
	return cmd
}
