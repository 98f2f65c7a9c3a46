// Package domain defines the core types and interfaces for Heron.
package domain

import (
	"encoding/json"
	"math"
	"time"
)

// AnalysisRequest is the full input for one network analysis run: the
// account registry, the transaction list, the designated high-risk set and
// the optional supervised-evaluation inputs.
type AnalysisRequest struct {
	Accounts     []string            `json:"accounts"`
	Transactions []TransactionRecord `json:"transactions"`
	HighRisk     []string            `json:"highRisk"`

	// Source and Target select the endpoints for the most-suspicious-path
	// search. Both empty means the path stage is skipped.
	Source string `json:"source,omitempty"`
	Target string `json:"target,omitempty"`

	// Threshold overrides the configured classification threshold when set.
	Threshold *float64 `json:"threshold,omitempty"`

	// GroundTruth maps account IDs to LabelClean/LabelFraud. When present,
	// classification and evaluation run; otherwise those stages are skipped.
	GroundTruth map[string]int `json:"groundTruth,omitempty"`
}

// Analysis is the complete output of one run.
type Analysis struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	Timestamp time.Time `json:"timestamp"`

	// Path is the most suspicious route between the requested endpoints.
	// Nil when no endpoints were requested; NoRoute is true when the
	// endpoints exist but no directed path connects them.
	Path    *PathResult `json:"path,omitempty"`
	NoRoute bool        `json:"noRoute,omitempty"`

	Centrality []CentralityEntry `json:"centrality"`
	RiskScores []RiskEntry       `json:"riskScores"`

	// Predictions and Report are present only when ground truth labels
	// were supplied.
	Predictions map[string]int    `json:"predictions,omitempty"`
	Report      *EvaluationReport `json:"report,omitempty"`

	Metadata AnalysisMetadata `json:"metadata"`
}

// PathResult describes the minimum-weight (maximum-suspicion) route between
// two accounts, with a per-edge breakdown for reporting.
type PathResult struct {
	Source      string           `json:"source"`
	Target      string           `json:"target"`
	Accounts    []string         `json:"accounts"`
	TotalWeight float64          `json:"totalWeight"`
	Edges       []EdgeAttributes `json:"edges"`

	// TotalAmount is the sum of edge amounts along the route.
	TotalAmount float64 `json:"totalAmount"`
}

// CentralityEntry is one row of the betweenness ranking.
type CentralityEntry struct {
	Account    string  `json:"account"`
	Centrality float64 `json:"centrality"`
}

// RiskEntry is one row of the risk-distance table. Distance is +Inf when
// the account has no directed route to any high-risk account; in that case
// RiskScore is 0 and NearestHighRisk is empty.
type RiskEntry struct {
	Account         string  `json:"account"`
	RiskScore       float64 `json:"riskScore"`
	NearestHighRisk string  `json:"nearestHighRisk,omitempty"`
	Distance        float64 `json:"-"`
}

// MarshalJSON renders an unreachable distance as null rather than emitting
// +Inf, which encoding/json rejects.
func (e RiskEntry) MarshalJSON() ([]byte, error) {
	type alias RiskEntry
	wire := struct {
		alias
		Distance *float64 `json:"distance"`
	}{alias: alias(e)}
	if !math.IsInf(e.Distance, 1) {
		d := e.Distance
		wire.Distance = &d
	}
	return json.Marshal(wire)
}

// UnmarshalJSON restores a null distance to +Inf.
func (e *RiskEntry) UnmarshalJSON(data []byte) error {
	type alias RiskEntry
	wire := struct {
		*alias
		Distance *float64 `json:"distance"`
	}{alias: (*alias)(e)}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if wire.Distance != nil {
		e.Distance = *wire.Distance
	} else {
		e.Distance = math.Inf(1)
	}
	return nil
}

// ConfusionMatrix is the 2x2 count of predictions against ground truth,
// with fraud as the positive class.
type ConfusionMatrix struct {
	TruePositives  int `json:"truePositives"`
	FalsePositives int `json:"falsePositives"`
	TrueNegatives  int `json:"trueNegatives"`
	FalseNegatives int `json:"falseNegatives"`
}

// Total returns the number of evaluated accounts.
func (m ConfusionMatrix) Total() int {
	return m.TruePositives + m.FalsePositives + m.TrueNegatives + m.FalseNegatives
}

// ClassMetrics holds per-class precision/recall/F1. Zero-denominator cases
// report 0 by convention.
type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// EvaluationReport is the supervised evaluation of threshold classification
// against ground truth labels.
type EvaluationReport struct {
	Matrix    ConfusionMatrix `json:"confusionMatrix"`
	Clean     ClassMetrics    `json:"clean"`
	Fraud     ClassMetrics    `json:"fraud"`
	Accuracy  float64         `json:"accuracy"`
	Threshold float64         `json:"threshold"`
}

// AnalysisMetadata carries processing information, mirroring the stage
// timings exposed by the evaluation pipeline.
type AnalysisMetadata struct {
	TraceID       string `json:"traceId,omitempty"`
	AccountCount  int    `json:"accountCount"`
	EdgeCount     int    `json:"edgeCount"`
	BuildMs       int64  `json:"buildMs"`
	PathMs        int64  `json:"pathMs"`
	CentralityMs  int64  `json:"centralityMs"`
	RiskMs        int64  `json:"riskMs"`
	EvaluateMs    int64  `json:"evaluateMs"`
	TotalMs       int64  `json:"totalMs"`
	EngineVersion string `json:"engineVersion"`
}
