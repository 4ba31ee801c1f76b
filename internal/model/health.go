package model

// HealthResponse is the shallow liveness answer.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// HealthDetailResponse reports per-dependency readiness. Status is
// "ok" only when every check passes, otherwise "degraded".
type HealthDetailResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}
