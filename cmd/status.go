/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/streamfold/wan-publisher/internal/control"
	"github.com/streamfold/wan-publisher/internal/wanstats"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status [publisher]",
	Short: "Show the status of one or all publishers",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus(args)
	},
}

// controlCmd represents the control command
var controlCmd = &cobra.Command{
	Use:       "control pause|resume|stop <publisher>",
	Short:     "Change the lifecycle state of a publisher",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{string(control.ActionPause), string(control.ActionResume), string(control.ActionStop)},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runControl(args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(controlCmd)

	for _, c := range []*cobra.Command{statusCmd, controlCmd} {
		addClientFlags(c.Flags())
	}
	statusCmd.Flags().Bool("json", false, "print the raw wire documents")
}

func addClientFlags(f *pflag.FlagSet) {
	f.String("control-endpoint", "localhost:5000", "endpoint of the control server")
	f.Duration("timeout", 10*time.Second, "request timeout")
}

func newControlClient() (*control.Client, context.Context, context.CancelFunc, error) {
	zl, err := newLogger()
	if err != nil {
		return nil, nil, nil, err
	}

	client, err := control.NewClient(viper.GetString("control-endpoint"), zl)
	if err != nil {
		return nil, nil, nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), viper.GetDuration("timeout"))
	return client, ctx, cancel, nil
}

func runStatus(args []string) error {
	client, ctx, cancel, err := newControlClient()
	if err != nil {
		return err
	}
	defer cancel()

	statuses := map[string]*wanstats.PublisherStatus{}
	if len(args) == 1 {
		s, err := client.Status(ctx, args[0])
		if err != nil {
			return err
		}
		statuses[args[0]] = s
	} else {
		statuses, err = client.Statuses(ctx)
		if err != nil {
			return err
		}
	}

	if viper.GetBool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(statuses)
	}

	names := make([]string, 0, len(statuses))
	for name := range statuses {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		snap := statuses[name].Snapshot()
		fmt.Printf("%-16s state=%-11s connected=%-5t queue=%d published=%d mean_latency=%.1fms\n",
			name, snap.State, snap.Connected, snap.OutboundQueueSize, snap.TotalPublishedEventCount, snap.MeanLatency())
	}
	return nil
}

func runControl(actionName string, publisher string) error {
	action, err := control.ParseAction(actionName)
	if err != nil {
		return err
	}

	client, ctx, cancel, err := newControlClient()
	if err != nil {
		return err
	}
	defer cancel()

	state, err := client.Control(ctx, publisher, action)
	if err != nil {
		return err
	}

	fmt.Printf("%s is now %s\n", publisher, state)
	return nil
}
