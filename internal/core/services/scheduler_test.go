package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRetryScheduler_DefaultInterval(t *testing.T) {
	s := NewRetryScheduler(nil, 0)
	assert.Equal(t, DefaultRetryInterval, s.interval)
	assert.Nil(t, s.LastResult())
}

func TestRetryScheduler_RunOnceHealsPartialDocuments(t *testing.T) {
	st := newTestStack(t)
	ctx := context.Background()

	healthy := st.upload(t, "healthy.md", "# Notes\n\nPlain notes about nothing in particular at all.")
	st.embedding.set(false, "bakery")
	partial, err := st.documents.ProcessUpload(ctx, []byte(briefText), "brief.md")
	require.Error(t, err)
	require.NotNil(t, partial)

	s := NewRetryScheduler(st.documents, time.Hour)

	// Still failing: attempted but not completed.
	res := s.RunOnce(ctx)
	assert.Equal(t, 1, res.Attempted)
	assert.Zero(t, res.Completed)

	st.embedding.set(false, "")
	res = s.RunOnce(ctx)
	assert.Equal(t, 1, res.Attempted)
	assert.Equal(t, 1, res.Completed)
	assert.False(t, res.EndedAt.Before(res.StartedAt))

	stored, err := st.documents.Get(ctx, partial.ID)
	require.NoError(t, err)
	assert.True(t, stored.FullyIndexed())

	res = s.RunOnce(ctx)
	assert.Zero(t, res.Attempted, "nothing left to retry")

	last := s.LastResult()
	require.NotNil(t, last)
	assert.Zero(t, last.Attempted)

	_, err = st.documents.Get(ctx, healthy.ID)
	require.NoError(t, err)
}

func TestRetryScheduler_StartStop(t *testing.T) {
	st := newTestStack(t)
	s := NewRetryScheduler(st.documents, 10*time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()

	require.Eventually(t, func() bool { return s.LastResult() != nil }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}

	assert.NoError(t, s.Stop(), "stopping twice is a no-op")
}

func TestRetryScheduler_ContextCancel(t *testing.T) {
	st := newTestStack(t)
	s := NewRetryScheduler(st.documents, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.NoError(t, s.Stop())
}
