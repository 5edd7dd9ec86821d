package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ToFood/tofood-zip/internal/notifications/notiftest"
	"github.com/ToFood/tofood-zip/internal/types"
)

func seedRecord(store *notiftest.Store, id int64, status types.NotificationStatus, createdAt time.Time, claimedAt *time.Time) {
	cfgID := int64(1)
	store.Put(&types.NotificationRecord{
		ID:              id,
		SubjectEntityID: "video",
		Recipient:       "a@b.co",
		Channel:         types.ChannelEmail,
		Status:          status,
		BrokerServiceID: &cfgID,
		Attempt:         1,
		CreatedAt:       createdAt,
		ClaimedAt:       claimedAt,
	})
}

func TestReaper_SweepReleasesAndRequeues(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := notiftest.NewStore()
	store.SetNow(func() time.Time { return now })

	old := now.Add(-time.Hour)
	recent := now.Add(-time.Minute)
	seedRecord(store, 1, types.StatusProcessing, old, &old)        // stale claim
	seedRecord(store, 2, types.StatusProcessing, old, &recent)     // live claim
	seedRecord(store, 3, types.StatusWaitingToBeSent, old, nil)    // never enqueued
	seedRecord(store, 4, types.StatusWaitingToBeSent, recent, nil) // fresh
	seedRecord(store, 5, types.StatusSuccess, old, &old)           // finished

	pub := &fakePublisher{}
	metrics := &recordingMetrics{}
	r := NewReaper(store, pub, metrics, ReaperConfig{Lease: 10 * time.Minute}, nil)

	n, err := r.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{1, 3}, pub.ids)
	assert.Equal(t, 1, metrics.released)
	assert.Equal(t, types.StatusWaitingToBeSent, store.Get(1).Status)
	assert.Equal(t, types.StatusProcessing, store.Get(2).Status)

	// A second sweep within the lease hands out nothing.
	n, err = r.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReaper_PublishFailureIsSkipped(t *testing.T) {
	now := time.Now().UTC()
	store := notiftest.NewStore()
	seedRecord(store, 1, types.StatusWaitingToBeSent, now.Add(-time.Hour), nil)

	logger := newMockLogger()
	r := NewReaper(store, &fakePublisher{err: errors.New("sqs down")}, nil, ReaperConfig{Lease: time.Minute}, logger)

	n, err := r.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.True(t, logger.has("ERROR", "failed to re-enqueue notification"))
	assert.Contains(t, logger.text(), "sqs down")
}

type failingReaperStore struct{ err error }

func (s failingReaperStore) ReleaseStaleClaims(context.Context, time.Duration, int) ([]int64, error) {
	return nil, s.err
}

func (s failingReaperStore) TouchStaleWaiting(context.Context, time.Duration, int) ([]int64, error) {
	return nil, s.err
}

func TestReaper_StoreError(t *testing.T) {
	dbErr := errors.New("connection refused")
	r := NewReaper(failingReaperStore{err: dbErr}, &fakePublisher{}, nil, ReaperConfig{}, nil)

	_, err := r.Sweep(context.Background())
	assert.ErrorIs(t, err, dbErr)
}

func TestReaper_RunStopsOnCancel(t *testing.T) {
	store := notiftest.NewStore()
	r := NewReaper(store, &fakePublisher{}, nil, ReaperConfig{Interval: time.Millisecond}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, r.Run(ctx), context.DeadlineExceeded)
}
