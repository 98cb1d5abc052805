package cli

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/aradilov/ringbus"
	"github.com/aradilov/ringbus/internal/config"
)

func newPubCommand(cfg *config.Config) *cobra.Command {
	var text bool
	cmd := &cobra.Command{
		Use:   "pub <topic> <hex|@file>",
		Short: "Publish one payload and print its epoch",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			payload, err := parsePayload(args[1], text)
			if err != nil {
				return err
			}
			reg, err := openRegistry(cfg)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, reg.Close()) }()

			topic, err := reg.GetByteTopic(args[0], cfg.Capacity)
			if err != nil {
				return err
			}
			epoch, err := topic.Publish(payload)
			if err != nil {
				return fmt.Errorf("publish %q: %w", args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "epoch:", epoch)
			return nil
		},
	}
	cmd.Flags().BoolVar(&text, "text", false, "Treat the payload argument as a literal string")
	return cmd
}

func newRecvCommand(cfg *config.Config) *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "recv <topic>",
		Short: "Consume up to n of the oldest unread payloads",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			reg, err := openRegistry(cfg)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, reg.Close()) }()

			topic, err := reg.GetByteTopic(args[0], cfg.Capacity)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			var got int
			for ; n <= 0 || got < n; got++ {
				payload, epoch, ok := topic.TryReceive()
				if !ok {
					break
				}
				printPayload(out, epoch, payload)
			}
			if got == 0 {
				fmt.Fprintln(out, "empty")
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "count", "n", 1, "Maximum payloads to receive, 0 drains the topic")
	return cmd
}

func newPeekCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "peek <topic>",
		Short: "Show the newest unread payload without consuming it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			reg, err := openRegistry(cfg)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, reg.Close()) }()

			topic, err := reg.GetByteTopic(args[0], cfg.Capacity)
			if err != nil {
				return err
			}
			payload, epoch, ok := topic.PeekLatest()
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "empty")
				return nil
			}
			printPayload(cmd.OutOrStdout(), epoch, payload)
			return nil
		},
	}
}

func newStatCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "stat [topic...]",
		Short: "Print counters of existing topics",
		Long:  "Print counters of existing topics. Topics default to RINGBUS_TOPICS; missing ones are reported, not created.",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			names := args
			if len(names) == 0 {
				names = cfg.Topics
			}
			if len(names) == 0 {
				return errors.New("no topics given")
			}
			reg, err := openRegistry(cfg)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, reg.Close()) }()

			var missing []string
			for _, name := range names {
				// capacity 0 attaches to existing segments only
				if _, err := reg.GetByteTopic(name, 0); err != nil {
					if errors.Is(err, ringbus.ErrInvalidCapacity) {
						missing = append(missing, name)
						continue
					}
					return err
				}
			}
			writeStats(cmd.OutOrStdout(), reg.Snapshot())
			for _, name := range missing {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: no such topic\n", name)
			}
			return nil
		},
	}
}

func writeStats(w io.Writer, stats []ringbus.TopicStats) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TOPIC\tCAPACITY\tLEN\tPUBLISHED\tRECEIVED\tDROPPED\tEPOCH")
	for _, st := range stats {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\n",
			st.Name, st.Capacity, st.Len, st.Published, st.Received, st.Dropped, st.LatestEpoch)
	}
	_ = tw.Flush()
}

func printPayload(w io.Writer, epoch uint64, payload []byte) {
	fmt.Fprintf(w, "%d %s\n", epoch, hex.EncodeToString(payload))
}

// parsePayload decodes a hex string, reads @path, or takes arg verbatim when text is set.
func parsePayload(arg string, text bool) ([]byte, error) {
	switch {
	case text:
		return []byte(arg), nil
	case strings.HasPrefix(arg, "@"):
		b, err := os.ReadFile(arg[1:])
		if err != nil {
			return nil, fmt.Errorf("read payload: %w", err)
		}
		return b, nil
	default:
		b, err := hex.DecodeString(strings.TrimPrefix(arg, "0x"))
		if err != nil {
			return nil, fmt.Errorf("payload is not hex: %w", err)
		}
		return b, nil
	}
}
