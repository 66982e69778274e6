package analytics

import (
	"math"
	"slices"
	"time"

	"afyafamilia/pkg/domain"
)

// TrendThreshold is the average change per step beyond which a series is
// considered to move.
const TrendThreshold = 0.5

// TrendKind classifies a series.
type TrendKind string

// Trend kinds.
const (
	TrendInsufficientData TrendKind = "insufficient_data"
	TrendIncreasing       TrendKind = "increasing"
	TrendDecreasing       TrendKind = "decreasing"
	TrendStable           TrendKind = "stable"
)

// Point is one timestamped measurement.
type Point struct {
	At    time.Time `json:"at"`
	Value float64   `json:"value"`
}

// TrendResult summarises a series. Only Trend and DataPoints are set when
// the series is too short.
type TrendResult struct {
	Trend      TrendKind `json:"trend"`
	AvgChange  float64   `json:"avg_change"`
	Lowest     float64   `json:"lowest"`
	Highest    float64   `json:"highest"`
	Current    float64   `json:"current"`
	DataPoints int       `json:"data_points"`
}

// DetectTrend orders points by time and classifies the average change
// between the first and last value.
func DetectTrend(points []Point) TrendResult {
	if len(points) < 2 {
		return TrendResult{Trend: TrendInsufficientData, DataPoints: len(points)}
	}
	sorted := slices.Clone(points)
	slices.SortStableFunc(sorted, func(a, b Point) int { return a.At.Compare(b.At) })

	first, last := sorted[0].Value, sorted[len(sorted)-1].Value
	res := TrendResult{
		AvgChange:  (last - first) / float64(len(sorted)-1),
		Lowest:     math.Inf(1),
		Highest:    math.Inf(-1),
		Current:    last,
		DataPoints: len(sorted),
	}
	for _, p := range sorted {
		res.Lowest = math.Min(res.Lowest, p.Value)
		res.Highest = math.Max(res.Highest, p.Value)
	}
	switch {
	case res.AvgChange > TrendThreshold:
		res.Trend = TrendIncreasing
	case res.AvgChange < -TrendThreshold:
		res.Trend = TrendDecreasing
	default:
		res.Trend = TrendStable
	}
	return res
}

// LabPoints extracts the measurements of one test type from lab result
// records. Other categories and test types are skipped.
func LabPoints(records []domain.Record, testType string) []Point {
	var points []Point
	for _, rec := range records {
		lab, ok := rec.Payload.(domain.LabResult)
		if !ok || lab.TestType != testType || lab.Value == nil {
			continue
		}
		points = append(points, Point{At: lab.Date, Value: *lab.Value})
	}
	return points
}
