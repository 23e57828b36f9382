package events

import (
	"github.com/aristath/allocator/internal/domain"
)

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// RebalanceStartedData contains data for RebalanceStarted events
type RebalanceStartedData struct {
	RunID     string `json:"run_id"`
	Source    string `json:"source"`
	Days      int    `json:"days"`
	Frequency string `json:"frequency"`
}

// EventType returns the event type for RebalanceStartedData
func (d *RebalanceStartedData) EventType() EventType {
	return RebalanceStarted
}

// RebalancePeriodData wraps one walk-forward window result
type RebalancePeriodData struct {
	domain.RebalanceEvent
}

// EventType returns the event type for RebalancePeriodData
func (d *RebalancePeriodData) EventType() EventType {
	return RebalancePeriod
}

// RebalanceCompletedData contains data for RebalanceCompleted events
type RebalanceCompletedData struct {
	RunID  string `json:"run_id"`
	Events int    `json:"events"`
	Error  string `json:"error,omitempty"`
}

// EventType returns the event type for RebalanceCompletedData
func (d *RebalanceCompletedData) EventType() EventType {
	return RebalanceCompleted
}

// FrontierRefreshedData contains data for FrontierRefreshed events
type FrontierRefreshedData struct {
	Key       string `json:"key"`
	Points    int    `json:"points"`
	Converged int    `json:"converged"`
}

// EventType returns the event type for FrontierRefreshedData
func (d *FrontierRefreshedData) EventType() EventType {
	return FrontierRefreshed
}
