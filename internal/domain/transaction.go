package domain

// TransactionRecord is one raw input edge for graph construction: an
// aggregated flow of money from Origin to Destination.
type TransactionRecord struct {
	Origin      string  `json:"origin"`
	Destination string  `json:"destination"`

	// Amount is the monetary value moved per occurrence. Must be positive.
	Amount float64 `json:"amount"`

	// Frequency is how many times this transfer occurred. Must be positive.
	Frequency int `json:"frequency"`
}

// EdgeAttributes holds the stored attributes of one directed edge after
// suspicion weighting has been applied.
type EdgeAttributes struct {
	Origin         string  `json:"origin"`
	Destination    string  `json:"destination"`
	Amount         float64 `json:"amount"`
	Frequency      int     `json:"frequency"`
	SuspicionScore float64 `json:"suspicionScore"`
	Weight         float64 `json:"weight"`
}

// DuplicatePolicy controls what happens when two transactions are added for
// the same ordered (origin, destination) pair.
type DuplicatePolicy string

const (
	// DuplicateLastWins replaces the prior edge with the new values.
	DuplicateLastWins DuplicatePolicy = "last-wins"

	// DuplicateAggregate sums amount and frequency across duplicates and
	// recomputes the suspicion score from the totals.
	DuplicateAggregate DuplicatePolicy = "aggregate"
)

// Ground truth labels for supervised evaluation. The scoring engine never
// reads these; they exist only for the evaluator.
const (
	LabelClean = 0
	LabelFraud = 1
)
