package cli

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/valyala/fastrand"
	"go.uber.org/multierr"

	"github.com/aradilov/ringbus"
	"github.com/aradilov/ringbus/internal/config"
)

const stampSize = 8

type benchResult struct {
	Published  uint64
	Received   uint64
	Dropped    uint64
	Elapsed    time.Duration
	AvgLatency time.Duration
	MaxLatency time.Duration
}

func newBenchCommand(cfg *config.Config) *cobra.Command {
	var (
		local    bool
		count    int
		maxBytes int
		duration time.Duration
	)
	cmd := &cobra.Command{
		Use:   "bench <topic>",
		Short: "Run a producer and a consumer against a topic and report throughput and latency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			topic, closeTopic, err := openBenchTopic(cfg, args[0], local)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, closeTopic()) }()

			maxBytes = min(maxBytes, cfg.SlotSize)
			if sized, ok := topic.(interface{ SlotSize() int }); ok {
				maxBytes = min(maxBytes, sized.SlotSize())
			}
			if maxBytes < stampSize {
				maxBytes = stampSize
			}

			ctx := cmd.Context()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}
			res, err := runBench(ctx, topic, count, maxBytes)
			if err != nil {
				return err
			}
			printBench(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "Use an in-process topic instead of a shared segment")
	cmd.Flags().IntVarP(&count, "count", "n", 100000, "Payloads to publish")
	cmd.Flags().IntVar(&maxBytes, "max-bytes", 128, "Upper bound of the random payload size")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Stop early after this long")
	return cmd
}

func openBenchTopic(cfg *config.Config, name string, local bool) (ringbus.Handle, func() error, error) {
	if local {
		reg := ringbus.NewRegistry(ringbus.WithMaxPayload(cfg.SlotSize))
		topic, err := reg.GetByteTopic(name, cfg.Capacity)
		if err != nil {
			return nil, nil, multierr.Append(err, reg.Close())
		}
		return topic, reg.Close, nil
	}
	reg, err := openRegistry(cfg)
	if err != nil {
		return nil, nil, err
	}
	topic, err := reg.GetByteTopic(name, cfg.Capacity)
	if err != nil {
		return nil, nil, multierr.Append(err, reg.Close())
	}
	return topic, reg.Close, nil
}

// runBench publishes count payloads of random size from one goroutine while
// another drains the topic. Each payload carries its publish time, so the
// consumer measures end-to-end latency of the entries it gets before they are
// overwritten.
func runBench(ctx context.Context, topic ringbus.Handle, count, maxBytes int) (benchResult, error) {
	var (
		res      benchResult
		totalLat time.Duration
		pubErr   error
		wg       sync.WaitGroup
	)
	before := topic.Stats()
	done := make(chan struct{})
	start := time.Now()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		buf := make([]byte, maxBytes)
		for i := 0; i < count; i++ {
			if i%1024 == 0 && ctx.Err() != nil {
				return
			}
			n := stampSize + int(fastrand.Uint32n(uint32(maxBytes-stampSize+1)))
			binary.LittleEndian.PutUint64(buf, uint64(time.Now().UnixNano()))
			if _, err := topic.Publish(buf[:n]); err != nil {
				pubErr = err
				return
			}
		}
	}()

	consume := func() bool {
		payload, _, ok := topic.TryReceive()
		if !ok {
			return false
		}
		if len(payload) >= stampSize {
			lat := time.Since(time.Unix(0, int64(binary.LittleEndian.Uint64(payload))))
			totalLat += lat
			res.MaxLatency = max(res.MaxLatency, lat)
		}
		res.Received++
		return true
	}

loop:
	for {
		if consume() {
			continue
		}
		select {
		case <-done:
			break loop
		default:
		}
	}
	for consume() {
	}
	wg.Wait()
	res.Elapsed = time.Since(start)

	if pubErr != nil {
		return res, fmt.Errorf("publish: %w", pubErr)
	}
	after := topic.Stats()
	res.Published = after.Published - before.Published
	res.Dropped = after.Dropped - before.Dropped
	if res.Received > 0 {
		res.AvgLatency = totalLat / time.Duration(res.Received)
	}
	return res, nil
}

func printBench(w io.Writer, r benchResult) {
	rate := float64(r.Published) / r.Elapsed.Seconds()
	fmt.Fprintf(w, "published %d  received %d  dropped %d  in %s (%.0f msg/s)\n",
		r.Published, r.Received, r.Dropped, r.Elapsed.Round(time.Millisecond), rate)
	fmt.Fprintf(w, "latency avg %s  max %s\n", r.AvgLatency, r.MaxLatency)
}
