package sink

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	v1_metrics "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	_ "google.golang.org/grpc/encoding/gzip"
)

// Sink receives exported publisher statuses over OTLP/gRPC.
type Sink struct {
	addr  *url.URL
	log   *zap.Logger
	srv   *grpc.Server
	lis   net.Listener
	board *StatusBoard

	reportInterval time.Duration
	reportStop     chan bool
	reportWg       *sync.WaitGroup
}

func New(addr string, reportInterval time.Duration, log *zap.Logger) (*Sink, error) {
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = fmt.Sprintf("http://%s", addr)
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil, err
	}

	return &Sink{
		addr:           u,
		log:            log,
		srv:            grpc.NewServer(),
		board:          NewStatusBoard(),
		reportInterval: reportInterval,
	}, nil
}

func (s *Sink) Board() *StatusBoard {
	return s.board
}

// Addr is the listening address once started, the configured one before.
func (s *Sink) Addr() string {
	if s.lis != nil {
		return s.lis.Addr().String()
	}
	return s.addr.Host
}

func (s *Sink) Start() error {
	v1_metrics.RegisterMetricsServiceServer(s.srv, &otlpMetricsRPCService{log: s.log, board: s.board})

	lis, err := net.Listen("tcp", net.JoinHostPort(s.addr.Hostname(), s.addr.Port()))
	if err != nil {
		return err
	}
	s.lis = lis

	go func() {
		if err := s.srv.Serve(lis); err != nil {
			s.log.Error("failed to shutdown grpc server", zap.Error(err))
		}
	}()

	s.reportStop = make(chan bool)
	s.reportWg = &sync.WaitGroup{}
	if s.reportInterval <= 0 {
		return nil
	}

	s.reportWg.Add(1)
	go func() {
		defer s.reportWg.Done()

		tm := time.NewTicker(s.reportInterval)
		for {
			select {
			case <-tm.C:
				s.report()
			case <-s.reportStop:
				tm.Stop()
				return
			}
		}
	}()

	return nil
}

func (s *Sink) report() {
	lines := s.board.Report(time.Now(), 3*s.reportInterval)
	if len(lines) == 0 {
		fmt.Println("REPORT: no publishers seen yet")
		return
	}
	for _, line := range lines {
		fmt.Printf("REPORT: %s\n", line)
	}
}

func (s *Sink) Stop() {
	if s.reportStop != nil {
		close(s.reportStop)
		s.reportWg.Wait()
	}
	s.srv.GracefulStop()
}
