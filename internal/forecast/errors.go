package forecast

import (
	"fmt"

	"github.com/stocksight/stocksight/internal/timeseries"
)

// StrategyNotAllowedError rejects a strategy request for a volume tier
// outside its allowed set. There is no silent downgrade to a cheaper
// strategy; the caller has to choose one the tier permits.
type StrategyNotAllowedError struct {
	Strategy string
	Tier     string
}

func (e *StrategyNotAllowedError) Error() string {
	return fmt.Sprintf("strategy %s is not allowed for volume tier %s", e.Strategy, e.Tier)
}

// FrequencyMismatchError rejects a request whose frequency does not
// match the dataset's declared frequency.
type FrequencyMismatchError struct {
	Requested timeseries.Frequency
	Actual    timeseries.Frequency
}

func (e *FrequencyMismatchError) Error() string {
	return fmt.Sprintf("requested %s forecast for a %s dataset", e.Requested, e.Actual)
}

// FitFailure records one item's model fit going wrong. A batch run
// treats it as a per-item outcome, not a run failure.
type FitFailure struct {
	SKU   string
	Model string
	Err   error
}

func (e *FitFailure) Error() string {
	return fmt.Sprintf("fit failed for %s with model %s: %v", e.SKU, e.Model, e.Err)
}

func (e *FitFailure) Unwrap() error {
	return e.Err
}
