package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunOnceHonoursDue(t *testing.T) {
	midnight := time.Date(2024, 3, 5, 0, 10, 0, 0, time.UTC)
	s := NewScheduler().WithClock(func() time.Time { return midnight })

	var ran []string
	s.Add(Job{Name: "daily", Interval: time.Hour, Due: AtHour(0), Fn: func(context.Context) error {
		ran = append(ran, "daily")
		return nil
	}})
	s.Add(Job{Name: "noon", Interval: time.Hour, Due: AtHour(12), Fn: func(context.Context) error {
		ran = append(ran, "noon")
		return nil
	}})
	s.AddJob("always", time.Minute, func(context.Context) error {
		ran = append(ran, "always")
		return errors.New("logged, not fatal")
	})

	s.RunOnce(context.Background())
	assert.Equal(t, []string{"daily", "always"}, ran)
}

func TestRunJobIgnoresDue(t *testing.T) {
	s := NewScheduler()
	called := false
	s.Add(Job{Name: "cutoff", Interval: time.Hour, Due: func(time.Time) bool { return false }, Fn: func(context.Context) error {
		called = true
		return nil
	}})

	found, err := s.RunJob(context.Background(), "cutoff")
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, called)

	found, _ = s.RunJob(context.Background(), "missing")
	assert.False(t, found)
}

func TestRunStopsWithContext(t *testing.T) {
	s := NewScheduler()
	started := make(chan struct{}, 1)
	s.AddJob("tick", time.Hour, func(context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	<-started
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
