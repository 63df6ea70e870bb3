package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/wmsgate/pkg/invalidation/kafka"
)

func newInvalidateCmd(o *options) *cobra.Command {
	var (
		brokers []string
		topic   string
		seq     uint64
		op      string
	)
	cmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Announce that the capabilities of the service changed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if seq == 0 {
				seq = uint64(time.Now().UnixNano())
			}
			p, err := kafka.NewPublisher(kafka.InvalidationConfig{Brokers: brokers, Topic: topic})
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()
			part, off, err := p.Publish(cmd.Context(), kafka.Event{ServiceURL: o.serviceURL, Version: seq, Op: op})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published version %d to %s partition %d offset %d\n", seq, topic, part, off)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&brokers, "brokers", []string{"localhost:9092"}, "kafka brokers")
	f.StringVar(&topic, "topic", "wms-capabilities", "invalidation topic")
	f.Uint64Var(&seq, "seq", 0, "event version, defaults to the current time in nanoseconds")
	f.StringVar(&op, "op", kafka.OpUpdate, "update or delete")
	return cmd
}
