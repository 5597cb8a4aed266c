package models

// CreateSessionRequest starts a new analysis session
type CreateSessionRequest struct {
	Name string `json:"name,omitempty"`
}

// SchemaRequest carries the header and a row sample for column detection
type SchemaRequest struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// RemapRequest overrides one detected column assignment
type RemapRequest struct {
	Role   string `json:"role"`
	Column string `json:"column"`
}

// LoadRequest loads transaction data into a session. Either Path points
// at a CSV file on the server, or Header/Rows carry the data inline.
type LoadRequest struct {
	Path      string     `json:"path,omitempty"`
	Header    []string   `json:"header,omitempty"`
	Rows      [][]string `json:"rows,omitempty"`
	Frequency string     `json:"frequency"`
}

// RepairRequest overrides the configured repair policy per issue class.
// Empty fields keep the configured default.
type RepairRequest struct {
	Missing    string `json:"missing,omitempty"`
	Duplicates string `json:"duplicates,omitempty"`
	Negatives  string `json:"negatives,omitempty"`
	Outliers   string `json:"outliers,omitempty"`
}

// DetectAnomaliesRequest selects detection methods. Empty means the
// configured defaults.
type DetectAnomaliesRequest struct {
	Methods []string `json:"methods,omitempty"`
}

// DispositionDecision records the review decision for one anomaly point
type DispositionDecision struct {
	SKU         string `json:"sku"`
	Date        string `json:"date"` // YYYY-MM-DD
	Disposition string `json:"disposition"`
}

// DispositionsRequest applies a batch of review decisions
type DispositionsRequest struct {
	Decisions []DispositionDecision `json:"decisions"`
}

// FeaturesRequest builds feature sets for the named items, or for every
// item when SKUs is empty
type FeaturesRequest struct {
	SKUs     []string `json:"skus,omitempty"`
	Advanced bool     `json:"advanced,omitempty"`
}

// ForecastRequest starts a forecast run
type ForecastRequest struct {
	Strategy  string   `json:"strategy"`
	Horizon   int      `json:"horizon,omitempty"`
	Frequency string   `json:"frequency,omitempty"`
	SKUs      []string `json:"skus,omitempty"` // Explicit item scope; empty forecasts every eligible item
}

// CompareRequest benchmarks every model on a sample of items
type CompareRequest struct {
	Sample int `json:"sample,omitempty"`
}
