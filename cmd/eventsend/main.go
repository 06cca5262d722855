package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/YiuTerran/cluster-event-sender/base/log"
	"github.com/YiuTerran/cluster-event-sender/event"
	"github.com/YiuTerran/cluster-event-sender/sender"
	"github.com/spf13/cobra"
)

type sendFlags struct {
	configPath string
	addr       string
	port       int
	category   string
	typ        string
	name       string
	parameters string
	system     bool
	discard    bool
	rawJSON    string
	count      int
	interval   time.Duration
	attempts   int
	retryDelay time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "eventsend",
		Short:        "Send length-prefixed json cluster events over tcp",
		SilenceUsage: true,
	}
	root.AddCommand(newSendCmd())
	return root
}

func newSendCmd() *cobra.Command {
	f := &sendFlags{}
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send one or more cluster events to addr:port",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSend(ctx, cmd, f)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&f.configPath, "config", "c", "", "config file (yaml/json/toml)")
	flags.StringVar(&f.addr, "addr", "127.0.0.1", "listener ipv4 address")
	flags.IntVarP(&f.port, "port", "p", 0, "listener port")
	flags.StringVar(&f.category, "category", "", "event category")
	flags.StringVar(&f.typ, "type", "", "event type")
	flags.StringVar(&f.name, "name", "", "event name")
	flags.StringVar(&f.parameters, "parameters", "", "event parameters")
	flags.BoolVar(&f.system, "system", false, "mark as system event")
	flags.BoolVar(&f.discard, "discard-on-repeat", false, "receiver may discard repeated events")
	flags.StringVar(&f.rawJSON, "json", "", "send this json object instead of the event flags")
	flags.IntVarP(&f.count, "count", "n", 1, "how many times to send the event")
	flags.DurationVar(&f.interval, "interval", time.Second, "delay between repeated sends")
	flags.IntVar(&f.attempts, "attempts", 0, "connect attempts per send, overrides config (0 keeps config)")
	flags.DurationVar(&f.retryDelay, "retry-delay", 0, "delay between connect attempts, overrides config")
	_ = cmd.MarkFlagRequired("port")
	return cmd
}

func buildEvent(f *sendFlags) (event.Event, error) {
	if f.rawJSON != "" {
		if !json.Valid([]byte(f.rawJSON)) {
			return nil, errors.New("--json is not valid json")
		}
		return event.Raw(f.rawJSON), nil
	}
	if f.name == "" && f.typ == "" {
		return nil, errors.New("either --json or --name/--type is required")
	}
	return event.ClusterEvent{
		Category:              f.category,
		Type:                  f.typ,
		Name:                  f.name,
		Parameters:            f.parameters,
		IsSystemEvent:         f.system,
		ShouldDiscardOnRepeat: f.discard,
	}, nil
}

func runSend(ctx context.Context, cmd *cobra.Command, f *sendFlags) error {
	cfg, err := sender.LoadConfig(f.configPath)
	if err != nil {
		return err
	}
	if err = cfg.Log.Build(); err != nil {
		return err
	}
	defer log.Flush()

	if cmd.Flags().Changed("attempts") {
		cfg.ConnectAttempts = f.attempts
	}
	if cmd.Flags().Changed("retry-delay") {
		cfg.RetryDelay = f.retryDelay
	}
	ev, err := buildEvent(f)
	if err != nil {
		return err
	}

	session := sender.NewSession(cfg.Options()...)
	if err = session.Open(); err != nil {
		return err
	}
	defer session.Close()

	for i := 0; i < f.count; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(f.interval):
			}
		}
		if err = session.SendEventToContext(ctx, f.addr, f.port, ev); err != nil {
			return fmt.Errorf("send %d/%d: %w", i+1, f.count, err)
		}
	}
	stats := session.Stats()
	log.Info("sent %d frames, %d bytes", stats.FramesSent, stats.BytesSent)
	return nil
}
