package api

import (
	"context"
	"net/http"
	"time"

	"fund-transfer/pkg/metrics"

	"go.uber.org/zap"
)

// HealthCheck probes one dependency.
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// msgServiceUnavailable replaces driver error text in the public report. The
// cause is logged.
const msgServiceUnavailable = "unavailable"

type serviceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthReport struct {
	Status    string                   `json:"status"`
	Timestamp string                   `json:"timestamp"`
	Services  map[string]serviceHealth `json:"services"`
	Circuits  map[string]string        `json:"circuits,omitempty"`
}

// handleHealth is healthy only if every check passes and no circuit is open.
// A half-open circuit is already probing and does not degrade the report.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := healthReport{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(timeLayout),
		Services:  make(map[string]serviceHealth, len(s.deps.Checks)),
	}

	for _, c := range s.deps.Checks {
		ctx, cancel := context.WithTimeout(r.Context(), s.config.HealthTimeout)
		err := c.Ping(ctx)
		cancel()
		if err != nil {
			s.log(r).Warn("health check failed", zap.String("service", c.Name), zap.Error(err))
			report.Services[c.Name] = serviceHealth{Status: "unhealthy", Message: msgServiceUnavailable}
			report.Status = "degraded"
			continue
		}
		report.Services[c.Name] = serviceHealth{Status: "healthy"}
	}

	if s.deps.Breakers != nil {
		report.Circuits = make(map[string]string)
		for _, name := range s.deps.Breakers.Services() {
			state := s.deps.Breakers.State(name)
			report.Circuits[name] = state.String()
			if state == metrics.CircuitOpen {
				report.Status = "degraded"
			}
		}
	}

	status := http.StatusOK
	if report.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}
