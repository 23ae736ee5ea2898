package imagegen

import "time"

// Recorder receives pipeline measurements. metrics.Collector implements it.
type Recorder interface {
	ObserveGeneration(id, outcome string, requested, delivered int, d time.Duration)
	ObserveImagesReceived(n int)
	ObserveBackfillRequest(result string)
	ObserveDelivery(result string)
}

// Result labels shared by backfill and delivery measurements.
const (
	resultSuccess = "success"
	resultEmpty   = "empty"
	resultError   = "error"
)

type nopRecorder struct{}

func (nopRecorder) ObserveGeneration(string, string, int, int, time.Duration) {}
func (nopRecorder) ObserveImagesReceived(int)                                 {}
func (nopRecorder) ObserveBackfillRequest(string)                             {}
func (nopRecorder) ObserveDelivery(string)                                    {}
