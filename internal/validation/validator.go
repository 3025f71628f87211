package validation

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/tradesafe/risk-core/pkg/types"
)

// ValidationResult is the verdict for one market batch. It is created
// fresh per Validate call and never mutated after being returned.
type ValidationResult struct {
	IsValid      bool     `json:"is_valid"`
	Errors       []string `json:"errors"`
	Warnings     []string `json:"warnings"`
	QualityScore float64  `json:"quality_score"`
	ChecksPassed int      `json:"checks_passed"`
	ChecksTotal  int      `json:"checks_total"`
}

// Validator is the market-data quality gate. It runs seven independent
// checks against a batch; NaN/Infinity/structure/OHLC failures are
// errors that block validity, outlier/gap/volume anomalies are
// warnings that only lower the quality score.
type Validator struct {
	outlierSigma      float64
	qualityScoreMin   float64
	maxZeroVolumePct  float64
	gapMedianMultiple float64
}

// Option configures a Validator.
type Option func(*Validator)

// WithOutlierSigma overrides the z-score threshold for outlier detection.
func WithOutlierSigma(sigma float64) Option {
	return func(v *Validator) { v.outlierSigma = sigma }
}

// WithQualityScoreMin overrides the minimum quality score for validity.
func WithQualityScoreMin(min float64) Option {
	return func(v *Validator) { v.qualityScoreMin = min }
}

// NewValidator creates a validator with default thresholds
// (5 sigma outliers, 0.8 quality cutoff).
func NewValidator(opts ...Option) *Validator {
	v := &Validator{
		outlierSigma:      5.0,
		qualityScoreMin:   0.8,
		maxZeroVolumePct:  0.10,
		gapMedianMultiple: 2.0,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs all checks against the batch and returns the verdict.
func (v *Validator) Validate(batch *types.MarketBatch) *ValidationResult {
	result := &ValidationResult{
		Errors:   []string{},
		Warnings: []string{},
	}

	checks := []func(*types.MarketBatch, *ValidationResult) bool{
		v.checkStructure,
		v.checkNaN,
		v.checkInfinity,
		v.checkOHLCConsistency,
		v.checkOutliers,
		v.checkTimestampGaps,
		v.checkVolume,
	}

	result.ChecksTotal = len(checks)

	// A nil or empty batch has nothing for the row-level checks to
	// inspect; record the structure error and fail every check.
	if batch == nil || len(batch.Rows) == 0 {
		v.checkStructure(batch, result)
		result.QualityScore = 0
		result.IsValid = false
		return result
	}

	for _, check := range checks {
		if check(batch, result) {
			result.ChecksPassed++
		}
	}

	result.QualityScore = float64(result.ChecksPassed) / float64(result.ChecksTotal)
	result.IsValid = len(result.Errors) == 0 && result.QualityScore >= v.qualityScoreMin

	return result
}

// checkStructure verifies the batch shape: non-empty, timestamps
// present, strictly increasing, none in the future.
func (v *Validator) checkStructure(batch *types.MarketBatch, result *ValidationResult) bool {
	if batch == nil || len(batch.Rows) == 0 {
		result.Errors = append(result.Errors, "batch is empty: no market rows supplied")
		return false
	}

	now := time.Now().Add(time.Minute) // small clock-skew allowance
	missing := 0
	disordered := 0
	future := 0
	for i, row := range batch.Rows {
		if row.Timestamp.IsZero() {
			missing++
		}
		if i > 0 && !row.Timestamp.After(batch.Rows[i-1].Timestamp) {
			disordered++
		}
		if row.Timestamp.After(now) {
			future++
		}
	}

	ok := true
	if missing > 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("missing timestamp in %d rows", missing))
		ok = false
	}
	if disordered > 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("non-increasing or duplicate timestamps in %d rows", disordered))
		ok = false
	}
	if future > 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("future timestamps in %d rows", future))
		ok = false
	}
	return ok
}

func (v *Validator) checkNaN(batch *types.MarketBatch, result *ValidationResult) bool {
	count := 0
	for _, row := range batch.Rows {
		if math.IsNaN(row.Open) || math.IsNaN(row.High) || math.IsNaN(row.Low) ||
			math.IsNaN(row.Close) || math.IsNaN(row.Volume) {
			count++
		}
	}
	if count > 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("NaN values found in %d rows", count))
		return false
	}
	return true
}

func (v *Validator) checkInfinity(batch *types.MarketBatch, result *ValidationResult) bool {
	count := 0
	for _, row := range batch.Rows {
		if math.IsInf(row.Open, 0) || math.IsInf(row.High, 0) || math.IsInf(row.Low, 0) ||
			math.IsInf(row.Close, 0) || math.IsInf(row.Volume, 0) {
			count++
		}
	}
	if count > 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("infinite values found in %d rows", count))
		return false
	}
	return true
}

// checkOHLCConsistency verifies high >= open, close, low and
// low <= open, close, high for each row; each violated relation is
// counted and named individually.
func (v *Validator) checkOHLCConsistency(batch *types.MarketBatch, result *ValidationResult) bool {
	violations := map[string]int{}
	order := []string{
		"high < open", "high < close", "high < low",
		"low > open", "low > close",
	}

	for _, row := range batch.Rows {
		if row.High < row.Open {
			violations["high < open"]++
		}
		if row.High < row.Close {
			violations["high < close"]++
		}
		if row.High < row.Low {
			violations["high < low"]++
		}
		if row.Low > row.Open {
			violations["low > open"]++
		}
		if row.Low > row.Close {
			violations["low > close"]++
		}
	}

	ok := true
	for _, relation := range order {
		if n := violations[relation]; n > 0 {
			result.Errors = append(result.Errors,
				fmt.Sprintf("OHLC violation %q in %d rows", relation, n))
			ok = false
		}
	}
	return ok
}

// checkOutliers flags rows whose close or volume deviates from the
// batch mean by more than outlierSigma standard deviations.
func (v *Validator) checkOutliers(batch *types.MarketBatch, result *ValidationResult) bool {
	if len(batch.Rows) < 3 {
		return true
	}

	closeOutliers := countOutliers(batch.Closes(), v.outlierSigma)
	volumeOutliers := countOutliers(batch.Volumes(), v.outlierSigma)

	ok := true
	if closeOutliers > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("close price outliers beyond %.1f sigma in %d rows", v.outlierSigma, closeOutliers))
		ok = false
	}
	if volumeOutliers > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("volume outliers beyond %.1f sigma in %d rows", v.outlierSigma, volumeOutliers))
		ok = false
	}
	return ok
}

func countOutliers(values []float64, sigma float64) int {
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values))
	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}

	count := 0
	for _, v := range values {
		if math.Abs(v-mean)/std > sigma {
			count++
		}
	}
	return count
}

// checkTimestampGaps flags row-to-row deltas larger than
// gapMedianMultiple times the median delta.
func (v *Validator) checkTimestampGaps(batch *types.MarketBatch, result *ValidationResult) bool {
	if len(batch.Rows) < 3 {
		return true
	}

	deltas := make([]time.Duration, 0, len(batch.Rows)-1)
	for i := 1; i < len(batch.Rows); i++ {
		deltas = append(deltas, batch.Rows[i].Timestamp.Sub(batch.Rows[i-1].Timestamp))
	}

	sorted := make([]time.Duration, len(deltas))
	copy(sorted, deltas)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	median := sorted[len(sorted)/2]
	if median <= 0 {
		return true // ordering problems are reported by the structure check
	}

	gaps := 0
	for _, d := range deltas {
		if float64(d) > v.gapMedianMultiple*float64(median) {
			gaps++
		}
	}
	if gaps > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("timestamp gaps larger than %.1fx median interval at %d points", v.gapMedianMultiple, gaps))
		return false
	}
	return true
}

// checkVolume rejects negative volume outright and flags a batch where
// more than maxZeroVolumePct of rows have zero volume.
func (v *Validator) checkVolume(batch *types.MarketBatch, result *ValidationResult) bool {
	negative := 0
	zero := 0
	for _, row := range batch.Rows {
		if row.Volume < 0 {
			negative++
		} else if row.Volume == 0 {
			zero++
		}
	}

	ok := true
	if negative > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("negative volume in %d rows", negative))
		ok = false
	}
	if len(batch.Rows) > 0 {
		zeroPct := float64(zero) / float64(len(batch.Rows))
		if zeroPct > v.maxZeroVolumePct {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("zero volume in %.0f%% of rows (limit %.0f%%)", zeroPct*100, v.maxZeroVolumePct*100))
			ok = false
		}
	}
	return ok
}
