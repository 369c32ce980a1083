package sink

import (
	"context"

	"github.com/streamfold/wan-publisher/internal/otlp"
	v1_metrics "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	"go.uber.org/zap"
)

type otlpMetricsRPCService struct {
	log   *zap.Logger
	board *StatusBoard
	v1_metrics.UnimplementedMetricsServiceServer
}

func (o *otlpMetricsRPCService) Export(ctx context.Context, request *v1_metrics.ExportMetricsServiceRequest) (*v1_metrics.ExportMetricsServiceResponse, error) {
	var rejected int64

	for _, rm := range request.ResourceMetrics {
		name, status := otlp.StatusFromMetrics(rm)
		if name == "" {
			o.log.Warn("failed to extract publisher name from resource")
			for _, sm := range rm.GetScopeMetrics() {
				rejected += int64(len(sm.GetMetrics()))
			}
			continue
		}

		o.board.Update(name, status)
	}

	resp := &v1_metrics.ExportMetricsServiceResponse{}
	if rejected > 0 {
		resp.PartialSuccess = &v1_metrics.ExportMetricsPartialSuccess{
			RejectedDataPoints: rejected,
			ErrorMessage:       "missing publisher name",
		}
	}
	return resp, nil
}
