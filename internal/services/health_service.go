package services

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	ws "robokin/internal/websocket"
)

// Pinger reports whether a backing store answers
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthService answers liveness, readiness and version probes
type HealthService struct {
	version   string
	buildTime string
	store     Pinger
	hub       *ws.Hub
	operation *OperationService
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Uptime    string                   `json:"uptime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	statusDisabled  = "disabled"
)

// NewHealthService creates a health service. store, hub and operation may be
// nil; missing components are reported as disabled.
func NewHealthService(version, buildTime string, store Pinger, hub *ws.Hub, operation *OperationService, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:   version,
		buildTime: buildTime,
		store:     store,
		hub:       hub,
		operation: operation,
		startTime: time.Now(),
		logger:    logger.With(slog.String("service", "health")),
	}
}

// LivenessCheck reports that the process is serving
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    statusHealthy,
		Timestamp: time.Now(),
		Version:   hs.version,
		Uptime:    time.Since(hs.startTime).Round(time.Second).String(),
	}
}

// ReadinessCheck probes every dependency. The result is unhealthy when any
// enabled dependency fails.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := hs.LivenessCheck(ctx)
	status.Services = map[string]ServiceHealth{
		"storage":   hs.checkStorage(ctx),
		"websocket": hs.checkWebSocket(),
		"jobs":      hs.checkJobs(),
	}
	for name, svc := range status.Services {
		if svc.Status == statusUnhealthy {
			status.Status = statusUnhealthy
			hs.logger.WarnContext(ctx, "readiness check failed",
				slog.String("dependency", name),
				slog.String("message", svc.Message))
		}
	}
	return status
}

// Version returns build information
func (hs *HealthService) Version() map[string]string {
	return map[string]string{
		"version":    hs.version,
		"build_time": hs.buildTime,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
	}
}

func (hs *HealthService) checkStorage(ctx context.Context) ServiceHealth {
	if hs.store == nil {
		return ServiceHealth{Status: statusDisabled}
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := hs.store.Ping(ctx); err != nil {
		return ServiceHealth{Status: statusUnhealthy, Message: err.Error()}
	}
	return ServiceHealth{Status: statusHealthy}
}

func (hs *HealthService) checkWebSocket() ServiceHealth {
	if hs.hub == nil {
		return ServiceHealth{Status: statusDisabled}
	}
	return ServiceHealth{Status: statusHealthy, Details: hs.hub.Stats()}
}

func (hs *HealthService) checkJobs() ServiceHealth {
	if hs.operation == nil {
		return ServiceHealth{Status: statusDisabled}
	}
	return ServiceHealth{Status: statusHealthy, Details: hs.operation.QueueStats()}
}
