package mqtt

import (
	"awning-service/internal/types"
)

// FakePublisher records published snapshots for test assertions.
type FakePublisher struct {
	// Reports contains all status snapshots that were published.
	Reports []types.StatusReport

	// PublishError, if set, will be returned by PublishStatus.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishStatus records the snapshot.
func (f *FakePublisher) PublishStatus(report types.StatusReport) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Reports = append(f.Reports, report)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}
