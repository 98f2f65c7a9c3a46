// Package classify turns risk distances into binary fraud/clean labels and
// evaluates predictions against ground truth. It is deliberately
// independent of the graph packages: evaluation is a pure function over two
// parallel label mappings, and ground truth never feeds back into scoring.
package classify

import (
	"sort"

	"github.com/opensource-finance/heron/internal/domain"
)

// Classify labels an account as fraud when its risk distance is strictly
// below the threshold. The comparison is on distance, not on the derived
// risk score: smaller distance means structurally closer to a high-risk
// account. An unreachable (+Inf) distance is always clean.
func Classify(distance, threshold float64) int {
	if distance < threshold {
		return domain.LabelFraud
	}
	return domain.LabelClean
}

// Predict applies Classify to every risk entry and returns the per-account
// predictions.
func Predict(entries []domain.RiskEntry, threshold float64) map[string]int {
	predictions := make(map[string]int, len(entries))
	for _, e := range entries {
		predictions[e.Account] = Classify(e.Distance, threshold)
	}
	return predictions
}

// Evaluate compares predictions with ground truth and returns the confusion
// matrix and per-class metrics, with fraud as the positive class. Only
// accounts present in both maps are counted, so the matrix total equals the
// number of accounts eligible for evaluation.
//
// Degenerate label sets are fine: any zero-denominator precision or recall
// reports 0 rather than failing.
func Evaluate(predictions, groundTruth map[string]int) *domain.EvaluationReport {
	var m domain.ConfusionMatrix

	// Deterministic iteration keeps nothing here order-dependent today,
	// but makes debugging mismatched counts sane.
	accounts := make([]string, 0, len(predictions))
	for a := range predictions {
		if _, ok := groundTruth[a]; ok {
			accounts = append(accounts, a)
		}
	}
	sort.Strings(accounts)

	for _, a := range accounts {
		predicted := predictions[a]
		actual := groundTruth[a]
		switch {
		case actual == domain.LabelFraud && predicted == domain.LabelFraud:
			m.TruePositives++
		case actual == domain.LabelClean && predicted == domain.LabelFraud:
			m.FalsePositives++
		case actual == domain.LabelClean && predicted == domain.LabelClean:
			m.TrueNegatives++
		default:
			m.FalseNegatives++
		}
	}

	report := &domain.EvaluationReport{
		Matrix: m,
		Fraud: classMetrics(
			m.TruePositives, m.FalsePositives, m.FalseNegatives,
			m.TruePositives+m.FalseNegatives,
		),
		Clean: classMetrics(
			m.TrueNegatives, m.FalseNegatives, m.FalsePositives,
			m.TrueNegatives+m.FalsePositives,
		),
	}
	if total := m.Total(); total > 0 {
		report.Accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}
	return report
}

// classMetrics computes precision/recall/F1 for one class given its true
// predictions, false predictions (predicted this class, actually other) and
// missed members (actually this class, predicted other).
func classMetrics(correct, falselyPredicted, missed, support int) domain.ClassMetrics {
	cm := domain.ClassMetrics{Support: support}
	if correct+falselyPredicted > 0 {
		cm.Precision = float64(correct) / float64(correct+falselyPredicted)
	}
	if correct+missed > 0 {
		cm.Recall = float64(correct) / float64(correct+missed)
	}
	if cm.Precision+cm.Recall > 0 {
		cm.F1 = 2 * cm.Precision * cm.Recall / (cm.Precision + cm.Recall)
	}
	return cm
}
