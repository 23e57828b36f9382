package marketdata

import (
	"github.com/aristath/allocator/internal/domain"
)

// StatisticsInput lets a caller supply either ready-made statistics or a
// price history to derive them from. Exactly one must be set.
type StatisticsInput struct {
	Snapshot *domain.Snapshot `json:"snapshot,omitempty"`
	History  *PriceHistory    `json:"history,omitempty"`
}

// Resolve validates the input and returns the snapshot. The history is
// returned too when one was given.
func (in StatisticsInput) Resolve() (domain.Snapshot, *PriceHistory, error) {
	switch {
	case in.Snapshot != nil && in.History != nil:
		return domain.Snapshot{}, nil, domain.InvalidInputf("provide either snapshot or history, not both")
	case in.Snapshot != nil:
		if err := in.Snapshot.Validate(); err != nil {
			return domain.Snapshot{}, nil, err
		}
		return *in.Snapshot, nil, nil
	case in.History != nil:
		h, err := NewPriceHistory(in.History.Assets, in.History.Dates, in.History.Prices)
		if err != nil {
			return domain.Snapshot{}, nil, err
		}
		snap, err := h.Snapshot()
		if err != nil {
			return domain.Snapshot{}, nil, err
		}
		return snap, h, nil
	default:
		return domain.Snapshot{}, nil, domain.InvalidInputf("snapshot or history is required")
	}
}
