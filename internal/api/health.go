package api

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Success           bool       `json:"success"`
	Service           string     `json:"service"`
	Session           string     `json:"session"`
	SessionValidUntil *time.Time `json:"session_valid_until"`
	Uptime            float64    `json:"uptime"`
}

type indexResponse struct {
	Message   string            `json:"message"`
	Endpoints map[string]string `json:"endpoints"`
}

// EndpointHealth handles the 'GET /health' endpoint
func (service *Service) EndpointHealth(writer http.ResponseWriter, _ *http.Request) {
	response := &healthResponse{
		Success: true,
		Service: ServiceName,
		Session: "Inactive",
		Uptime:  time.Since(service.StartedAt).Seconds(),
	}
	if service.Sessions != nil {
		if current, ok := service.Sessions.Current(); ok {
			response.Session = "Active"
			response.SessionValidUntil = current.ValidUntil
		}
	}
	service.writer.WriteJSON(writer, response)
}

// EndpointIndex handles the 'GET /' endpoint
func (service *Service) EndpointIndex(writer http.ResponseWriter, _ *http.Request) {
	endpoints := map[string]string{
		"search":      "GET /search?aadhaar=123456789012&type=A",
		"search_body": "POST /search {\"aadhaar\": \"123456789012\", \"type\": \"A\"}",
		"encrypt":     "GET /encrypt?text=123456789012",
		"decrypt":     "GET /decrypt?text=encrypted_string",
		"health":      "GET /health",
		"searches":    "GET /searches?offset=0&limit=10&outcome=success",
	}
	if service.Gatherer != nil {
		endpoints["metrics"] = "GET /metrics"
	}
	service.writer.WriteJSON(writer, &indexResponse{
		Message:   "IMPDS Aadhaar Search API",
		Endpoints: endpoints,
	})
}
