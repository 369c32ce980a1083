/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/streamfold/wan-publisher/internal/address"
	"github.com/streamfold/wan-publisher/internal/control"
	"github.com/streamfold/wan-publisher/internal/metrics"
	"github.com/streamfold/wan-publisher/internal/telemetry"
	"github.com/streamfold/wan-publisher/internal/worker"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// publishCmd represents the publish command
var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Run simulated WAN publishers with a control server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPublish()
	},
}

func init() {
	rootCmd.AddCommand(publishCmd)

	f := publishCmd.Flags()
	f.StringSlice("publishers", []string{"eu-west"}, "names of the WAN publishers to run, one per target")
	f.StringSlice("maps", []string{"orders", "users"}, "replicated map names")
	f.StringSlice("caches", []string{"sessions"}, "replicated cache names")

	f.Int("workers", 1, "how many concurrent push workers per publisher")
	f.Duration("push-interval", 50*time.Millisecond, "interval between batch pushes of a worker")
	f.Duration("publish-timeout", 5*time.Second, "timeout of a single batch push")
	f.Int("batch-size", 100, "maximum events per batch")
	f.Int("queue-capacity", 10_000, "outbound queue capacity per publisher")
	f.Duration("generate-interval", 10*time.Millisecond, "interval between generated event bursts")
	f.Int("events-per-tick", 10, "events generated per burst")

	f.Duration("target-latency", 20*time.Millisecond, "mean simulated target acknowledgement latency")
	f.Float64("target-failure-ratio", 0, "share of batches the simulated target rejects")

	f.Duration("duration", 0, "how long to run for, defaults to forever")
	f.Duration("report-interval", 3*time.Second, "interval to report statistics")

	f.String("control-addr", "localhost:5000", "control server address")
	f.String("public-address", "", "address advertised for the control server, host or host:port")

	f.String("otlp-endpoint", "", "OTLP/gRPC endpoint to export publisher status to, disabled when empty")
	f.Duration("export-interval", 5*time.Second, "interval between status exports")
}

func runPublish() error {
	zl, err := newLogger()
	if err != nil {
		return err
	}

	workerCfg := worker.Config{
		NumWorkers:       viper.GetInt("workers"),
		ReportInterval:   viper.GetDuration("report-interval"),
		PushInterval:     viper.GetDuration("push-interval"),
		PublishTimeout:   viper.GetDuration("publish-timeout"),
		GenerateInterval: viper.GetDuration("generate-interval"),
		EventsPerTick:    viper.GetInt("events-per-tick"),
		BatchSize:        viper.GetInt("batch-size"),
		QueueCapacity:    viper.GetInt("queue-capacity"),
		MapNames:         getNames("maps"),
		CacheNames:       getNames("caches"),
	}

	workers := worker.New(workerCfg, zl)
	for _, name := range getNames("publishers") {
		target := worker.NewSimulatedTarget(viper.GetDuration("target-latency"), viper.GetFloat64("target-failure-ratio"))
		if _, err := workers.Add(name, target); err != nil {
			return err
		}
	}

	controlAddr := viper.GetString("control-addr")
	advertised, err := advertisedAddress(controlAddr, viper.GetString("public-address"))
	if err != nil {
		return err
	}

	ctrl := control.New(controlAddr, workers, metrics.NewRegistry(workers), zl)
	if err := ctrl.Start(); err != nil {
		return err
	}
	zl.Info("Control server has been started",
		zap.String("addr", ctrl.Addr()),
		zap.String("advertised", advertised.String()),
	)

	var exporter *telemetry.StatusExporter
	if ep := viper.GetString("otlp-endpoint"); ep != "" {
		endpoint, err := parseEndpoint(ep)
		if err != nil {
			return multierr.Append(err, ctrl.Stop())
		}

		exporter = telemetry.NewStatusExporter(zl, endpoint, workers, uuid.New().String(), viper.GetDuration("export-interval"))
		if err := exporter.Init(); err != nil {
			return multierr.Append(err, ctrl.Stop())
		}
		exporter.Start()
		zl.Info("Status exporter has been started", zap.String("endpoint", endpoint.String()))
	}

	zl.Info("Publishers have been started", zap.Strings("publishers", getNames("publishers")))
	workers.Start()

	waitForShutdown(zl, viper.GetDuration("duration"))
	zl.Info("shutting down")

	err = workers.Stop()
	if exporter != nil {
		err = multierr.Append(err, exporter.Stop())
	}
	return multierr.Append(err, ctrl.Stop())
}

// getNames reads a list setting. Values from the environment arrive as a
// single string, so elements are split on commas as well as whitespace.
func getNames(key string) []string {
	var names []string
	for _, v := range viper.GetStringSlice(key) {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}

func advertisedAddress(bindAddr string, publicAddr string) (address.Address, error) {
	host, portStr, err := net.SplitHostPort(bindAddr)
	if err != nil {
		return address.Address{}, fmt.Errorf("invalid control address %q: %w", bindAddr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return address.Address{}, fmt.Errorf("invalid control port %q: %w", portStr, err)
	}
	if host == "" {
		host = "127.0.0.1"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return address.Resolve(ctx, publicAddr, host, port, nil)
}

func parseEndpoint(endpoint string) (*url.URL, error) {
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = fmt.Sprintf("http://%s", endpoint)
	}

	return url.Parse(endpoint)
}

func waitForShutdown(zl *zap.Logger, duration time.Duration) {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(
		signalChan,
		syscall.SIGHUP,  // kill -SIGHUP XXXX
		syscall.SIGINT,  // kill -SIGINT XXXX or Ctrl+c
		syscall.SIGQUIT, // kill -SIGQUIT XXXX
	)

	if duration.Milliseconds() != 0 {
		t := time.NewTimer(duration)
		select {
		case <-t.C:
			zl.Info("reached run duration", zap.Duration("duration", duration))
		case sig := <-signalChan:
			zl.Info("killed with signal", zap.String("signal", sig.String()))
		}
		return
	}

	sig := <-signalChan
	zl.Info("killed with signal", zap.String("signal", sig.String()))
}
