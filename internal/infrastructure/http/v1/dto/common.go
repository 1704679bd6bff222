// Package dto provides Data Transfer Objects for API requests/responses.
package dto

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// SetupResponse acknowledges an endpoint initialization.
type SetupResponse struct {
	OK          bool `json:"ok"`
	Initialized bool `json:"initialized"`
}

// HealthResponse is returned by the health probes.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// InfoResponse describes the running service.
type InfoResponse struct {
	App         string `json:"app"`
	Version     string `json:"version"`
	Initialized bool   `json:"initialized"`
}
