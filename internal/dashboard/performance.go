package dashboard

import (
	"math"

	"github.com/odyssey-erp/scm-dashboard/internal/api"
)

// PerformanceSummary holds the display aggregates of the delivery-performance tab.
type PerformanceSummary struct {
	Count            int
	MeanActualDays   int
	OnTimePercent    int
	MeanVarianceDays int
}

// SummarizePerformance computes arithmetic means over the records. ok is false for an
// empty sequence.
func SummarizePerformance(records []api.DeliveryPerformanceRecord) (summary PerformanceSummary, ok bool) {
	if len(records) == 0 {
		return PerformanceSummary{}, false
	}
	var actual, variance float64
	onTime := 0
	for _, rec := range records {
		actual += rec.ActualDays
		variance += rec.VarianceDays
		if rec.OnTime {
			onTime++
		}
	}
	n := float64(len(records))
	return PerformanceSummary{
		Count:            len(records),
		MeanActualDays:   RoundHalfUp(actual / n),
		OnTimePercent:    RoundHalfUp(float64(onTime) / n * 100),
		MeanVarianceDays: RoundHalfUp(variance / n),
	}, true
}

// RoundHalfUp rounds to the nearest integer, ties toward positive infinity.
func RoundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
