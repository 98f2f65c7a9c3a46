package classify

import (
	"math"
	"testing"

	"github.com/opensource-finance/heron/internal/domain"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		distance  float64
		threshold float64
		want      int
	}{
		{0.01, 0.05, domain.LabelFraud},
		{0.05, 0.05, domain.LabelClean}, // boundary is strictly below
		{0.06, 0.05, domain.LabelClean},
		{math.Inf(1), 0.05, domain.LabelClean},
		{0, 0.05, domain.LabelFraud},
	}
	for _, tc := range cases {
		if got := Classify(tc.distance, tc.threshold); got != tc.want {
			t.Errorf("Classify(%v, %v) = %d, want %d", tc.distance, tc.threshold, got, tc.want)
		}
	}
}

func TestClassifyIdempotent(t *testing.T) {
	for i := 0; i < 10; i++ {
		if Classify(0.02, 0.05) != domain.LabelFraud {
			t.Fatal("classification changed between identical calls")
		}
		if Classify(0.2, 0.05) != domain.LabelClean {
			t.Fatal("classification changed between identical calls")
		}
	}
}

func TestPredict(t *testing.T) {
	entries := []domain.RiskEntry{
		{Account: "A", Distance: 0.01},
		{Account: "B", Distance: 0.9},
		{Account: "C", Distance: math.Inf(1)},
	}

	predictions := Predict(entries, 0.05)

	if len(predictions) != 3 {
		t.Fatalf("expected 3 predictions, got %d", len(predictions))
	}
	if predictions["A"] != domain.LabelFraud {
		t.Errorf("expected A fraud, got %d", predictions["A"])
	}
	if predictions["B"] != domain.LabelClean || predictions["C"] != domain.LabelClean {
		t.Errorf("expected B and C clean, got B=%d C=%d", predictions["B"], predictions["C"])
	}
}

func TestEvaluateSampleNetwork(t *testing.T) {
	// Distances from the demo laundering network with K=1000 and a 0.05
	// threshold: the three-hop high-value chain and the Offshore_Y feeder
	// fall under the threshold, the low-value chain does not.
	entries := []domain.RiskEntry{
		{Account: "Cuenta_A", Distance: 0.0178888},
		{Account: "Cuenta_B", Distance: 0.0138888},
		{Account: "Cuenta_C", Distance: 0.0083333},
		{Account: "Cuenta_D", Distance: 0.3789682},
		{Account: "Cuenta_E", Distance: 0.2678571},
		{Account: "Cuenta_F", Distance: 0.1428571},
		{Account: "Cuenta_G", Distance: 0.0178571},
	}
	groundTruth := map[string]int{
		"Cuenta_A": domain.LabelClean,
		"Cuenta_B": domain.LabelFraud,
		"Cuenta_C": domain.LabelFraud,
		"Cuenta_D": domain.LabelClean,
		"Cuenta_E": domain.LabelClean,
		"Cuenta_F": domain.LabelClean,
		"Cuenta_G": domain.LabelFraud,
	}

	predictions := Predict(entries, 0.05)
	report := Evaluate(predictions, groundTruth)

	m := report.Matrix
	if m.TruePositives != 3 {
		t.Errorf("expected TP=3, got %d", m.TruePositives)
	}
	if m.FalsePositives != 1 {
		t.Errorf("expected FP=1, got %d", m.FalsePositives)
	}
	if m.TrueNegatives != 3 {
		t.Errorf("expected TN=3, got %d", m.TrueNegatives)
	}
	if m.FalseNegatives != 0 {
		t.Errorf("expected FN=0, got %d", m.FalseNegatives)
	}
	if m.Total() != len(groundTruth) {
		t.Errorf("matrix total %d does not match evaluated account count %d", m.Total(), len(groundTruth))
	}

	if math.Abs(report.Accuracy-6.0/7.0) > 1e-12 {
		t.Errorf("expected accuracy 6/7, got %v", report.Accuracy)
	}

	// Fraud: precision 3/4, recall 3/3.
	if math.Abs(report.Fraud.Precision-0.75) > 1e-12 {
		t.Errorf("expected fraud precision 0.75, got %v", report.Fraud.Precision)
	}
	if report.Fraud.Recall != 1 {
		t.Errorf("expected fraud recall 1, got %v", report.Fraud.Recall)
	}
	if report.Fraud.Support != 3 {
		t.Errorf("expected fraud support 3, got %d", report.Fraud.Support)
	}

	// Clean: precision 3/3, recall 3/4.
	if report.Clean.Precision != 1 {
		t.Errorf("expected clean precision 1, got %v", report.Clean.Precision)
	}
	if math.Abs(report.Clean.Recall-0.75) > 1e-12 {
		t.Errorf("expected clean recall 0.75, got %v", report.Clean.Recall)
	}
	if report.Clean.Support != 4 {
		t.Errorf("expected clean support 4, got %d", report.Clean.Support)
	}
}

func TestEvaluateIntersectionOnly(t *testing.T) {
	predictions := map[string]int{
		"A": domain.LabelFraud,
		"B": domain.LabelClean,
		"X": domain.LabelFraud, // no ground truth
	}
	groundTruth := map[string]int{
		"A": domain.LabelFraud,
		"B": domain.LabelClean,
		"Y": domain.LabelFraud, // no prediction
	}

	report := Evaluate(predictions, groundTruth)
	if report.Matrix.Total() != 2 {
		t.Errorf("expected only shared accounts counted, got total %d", report.Matrix.Total())
	}
}

func TestEvaluateDegenerateLabels(t *testing.T) {
	// Everything clean: no positives anywhere, fraud metrics must report 0
	// rather than dividing by zero.
	predictions := map[string]int{"A": domain.LabelClean, "B": domain.LabelClean}
	groundTruth := map[string]int{"A": domain.LabelClean, "B": domain.LabelClean}

	report := Evaluate(predictions, groundTruth)

	if report.Fraud.Precision != 0 || report.Fraud.Recall != 0 || report.Fraud.F1 != 0 {
		t.Errorf("expected zero fraud metrics, got %+v", report.Fraud)
	}
	if report.Clean.Precision != 1 || report.Clean.Recall != 1 || report.Clean.F1 != 1 {
		t.Errorf("expected perfect clean metrics, got %+v", report.Clean)
	}
	if report.Accuracy != 1 {
		t.Errorf("expected accuracy 1, got %v", report.Accuracy)
	}
}

func TestEvaluateEmpty(t *testing.T) {
	report := Evaluate(map[string]int{}, map[string]int{})
	if report.Matrix.Total() != 0 {
		t.Errorf("expected empty matrix, got total %d", report.Matrix.Total())
	}
	if report.Accuracy != 0 {
		t.Errorf("expected accuracy 0 on empty input, got %v", report.Accuracy)
	}
}
