// Package health contiene los DTOs del health check.
package health

type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store,omitempty"`
}
