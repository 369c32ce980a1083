package telemetry

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/streamfold/wan-publisher/internal/otlp"
	"github.com/streamfold/wan-publisher/internal/wanstats"
	otlpMetricsColl "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	otlpMetrics "go.opentelemetry.io/proto/otlp/metrics/v1"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding/gzip"
	"google.golang.org/grpc/metadata"
)

// StatusExporter periodically pushes the status of every publisher of a
// source to an OTLP metrics endpoint over gRPC.
type StatusExporter struct {
	log        *zap.Logger
	endpoint   *url.URL
	source     wanstats.Source
	instanceID string
	interval   time.Duration
	timeout    time.Duration

	conn          *grpc.ClientConn
	metricsClient otlpMetricsColl.MetricsServiceClient

	stopChan chan bool
	wg       sync.WaitGroup
}

func NewStatusExporter(log *zap.Logger, endpoint *url.URL, source wanstats.Source, instanceID string, interval time.Duration) *StatusExporter {
	return &StatusExporter{
		log:        log,
		endpoint:   endpoint,
		source:     source,
		instanceID: instanceID,
		interval:   interval,
		timeout:    5 * time.Second,
	}
}

func (e *StatusExporter) Init() error {
	opts := []grpc.DialOption{
		grpc.WithDefaultCallOptions(grpc.UseCompressor(gzip.Name)),
	}

	if e.endpoint.Scheme == "http" {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})))
	}

	conn, err := grpc.NewClient(fmt.Sprintf("%s:%s", e.endpoint.Hostname(), e.endpoint.Port()), opts...)
	if err != nil {
		return fmt.Errorf("failed to create grpc client: %w", err)
	}

	e.conn = conn
	e.metricsClient = otlpMetricsColl.NewMetricsServiceClient(conn)
	return nil
}

func (e *StatusExporter) Start() {
	e.stopChan = make(chan bool)
	ticker := time.NewTicker(e.interval)

	e.wg.Add(1)
	go func() {
		defer func() {
			ticker.Stop()
			e.wg.Done()
		}()

		for {
			select {
			case <-e.stopChan:
				return
			case <-ticker.C:
				if err := e.Export(context.Background()); err != nil {
					e.log.Warn("failed to export publisher status", zap.Error(err))
				}
			}
		}
	}()
}

func (e *StatusExporter) Stop() error {
	if e.stopChan != nil {
		close(e.stopChan)
		e.wg.Wait()
	}
	if e.conn == nil {
		return nil
	}
	return e.conn.Close()
}

// Export pushes one request holding every publisher's current status.
func (e *StatusExporter) Export(ctx context.Context) error {
	statuses := e.source.Statuses()
	if len(statuses) == 0 {
		return nil
	}

	names := make([]string, 0, len(statuses))
	for name := range statuses {
		names = append(names, name)
	}
	sort.Strings(names)

	now := time.Now()
	rms := make([]*otlpMetrics.ResourceMetrics, 0, len(names))
	for _, name := range names {
		rms = append(rms, otlp.StatusMetrics(name, e.instanceID, statuses[name], now))
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	ctx = metadata.NewOutgoingContext(ctx, metadata.New(map[string]string{
		"x-wan-instance-id": e.instanceID,
	}))

	msg := &otlpMetricsColl.ExportMetricsServiceRequest{ResourceMetrics: rms}
	resp, err := e.metricsClient.Export(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to export %d statuses: %w", len(rms), err)
	}

	if ps := resp.GetPartialSuccess(); ps != nil && ps.GetRejectedDataPoints() != 0 {
		return fmt.Errorf("sink rejected %d data points: %s", ps.GetRejectedDataPoints(), ps.GetErrorMessage())
	}

	e.log.Debug("exported publisher statuses", zap.Int("publishers", len(rms)))
	return nil
}
