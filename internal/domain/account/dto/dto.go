package dto

import (
	"time"

	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/entities"
)

// HealthStatus represents the overall health status
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentHealth represents health status of a single component
type ComponentHealth struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// HealthResponse represents the JSON response for health check
type HealthResponse struct {
	Status           HealthStatus      `json:"status"`
	Timestamp        time.Time         `json:"timestamp"`
	RunningListeners int               `json:"running_listeners"`
	Components       []ComponentHealth `json:"components"`
}

// AccountSummary describes one configured account without its secrets
type AccountSummary struct {
	AccountID  string              `json:"account_id"`
	HasSession bool                `json:"has_session"`
	Groups     []entities.GroupRef `json:"groups"`
	Listener   ListenerSummary     `json:"listener"`
	UpdatedAt  *time.Time          `json:"updated_at,omitempty"`
}

// ListenerSummary is the listener part of AccountSummary
type ListenerSummary struct {
	Running   bool   `json:"running"`
	State     string `json:"state,omitempty"`
	TaskID    string `json:"task_id,omitempty"`
	LastError string `json:"last_error,omitempty"`
}
