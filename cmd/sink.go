/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/streamfold/wan-publisher/internal/sink"
	"go.uber.org/zap"
)

// sinkCmd represents the sink command
var sinkCmd = &cobra.Command{
	Use:   "sink",
	Short: "Run an OTLP sink that receives and reports publisher status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSink()
	},
}

func init() {
	rootCmd.AddCommand(sinkCmd)

	sinkCmd.Flags().String("addr", "localhost:5317", "address to listen on")
	sinkCmd.Flags().Duration("report-interval", 5*time.Second, "interval to report received statuses")
}

func runSink() error {
	zl, err := newLogger()
	if err != nil {
		return err
	}

	s, err := sink.New(viper.GetString("addr"), viper.GetDuration("report-interval"), zl)
	if err != nil {
		return err
	}

	if err := s.Start(); err != nil {
		return err
	}

	zl.Info("Sink server has been started", zap.String("addr", s.Addr()))

	waitForShutdown(zl, 0)
	zl.Info("shutting down")

	s.Stop()

	return nil
}
