package models

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// SessionResponse represents one analysis session
type SessionResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at"`
	Loaded    bool   `json:"loaded"`
	Items     int    `json:"items"`
}

// SessionListResponse represents list sessions response
type SessionListResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}

// MappingResponse represents a resolved column mapping
type MappingResponse struct {
	Columns    map[string]string  `json:"columns"`
	Confidence map[string]float64 `json:"confidence"`
	Confirmed  bool               `json:"confirmed"`
}

// DetectionResponse represents the per-column detection report
type DetectionResponse struct {
	Detections interface{} `json:"detections"`
}

// LoadResponse summarizes a loaded dataset
type LoadResponse struct {
	Items     int    `json:"items"`
	Frequency string `json:"frequency"`
}

// ForecastEstimateResponse predicts run duration before committing
type ForecastEstimateResponse struct {
	Strategy        string `json:"strategy"`
	Items           int    `json:"items"`
	EstimatedMillis int64  `json:"estimated_millis"`
}

// DispositionsResponse summarizes an applied decision batch
type DispositionsResponse struct {
	Corrected int `json:"corrected"`
	Removed   int `json:"removed"`
	Flagged   int `json:"flagged"`
}

// FeaturesResponse summarizes a feature build
type FeaturesResponse struct {
	Built []string `json:"built"`
}

// ErrorResponse represents error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Path    string                 `json:"path,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}
