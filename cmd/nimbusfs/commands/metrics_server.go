package commands

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/nimbusfs/nimbusfs/internal/logger"
	"github.com/nimbusfs/nimbusfs/pkg/metrics"
)

// metricsServer exposes a Collector's Prometheus handler on addr. It
// runs for the lifetime of the mount process; a failure to bind is
// logged rather than fatal, since metrics are optional.
type metricsServer struct {
	addr      string
	collector *metrics.Collector
}

func (s *metricsServer) run() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.collector.Handler())
	logger.Info("metrics listening", "addr", s.addr)
	if err := http.ListenAndServe(s.addr, mux); err != nil {
		logger.Error("metrics server stopped", "error", err)
	}
}

// portFromAddress extracts the numeric port from a "host:port" address,
// since pkg/controlapi.Config binds to 127.0.0.1 itself and only needs
// the port.
func portFromAddress(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("invalid control address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(strings.TrimSpace(portStr))
	if err != nil {
		return 0, fmt.Errorf("invalid control port in %q: %w", addr, err)
	}
	return port, nil
}
