package bgtasks

import (
	"context"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
)

type RunnerOptions struct {
	PollInterval time.Duration
	BatchSize    int
	Workers      int
	LockTTL      time.Duration
	MaxAttempts  int
	MaxBackoff   time.Duration
	JitterMax    time.Duration

	// OnSettle, when set, is called after a task row reaches a terminal
	// state; state is "success" or "failed". Released-for-retry tasks do
	// not settle.
	OnSettle func(ctx context.Context, rec Record, state string)

	LastErrorMaxLen int

	Logger *logrus.Entry

	Rand *rand.Rand

	ObserveDepthEvery time.Duration
}

func (o *RunnerOptions) setDefaults() {
	if o.PollInterval == 0 {
		o.PollInterval = 1 * time.Second
	}
	if o.BatchSize == 0 {
		o.BatchSize = 10
	}
	if o.Workers == 0 {
		o.Workers = 4
	}
	if o.LockTTL == 0 {
		o.LockTTL = 60 * time.Second
	}
	if o.MaxAttempts == 0 {
		o.MaxAttempts = 5
	}
	if o.MaxBackoff == 0 {
		o.MaxBackoff = 60 * time.Second
	}
	if o.JitterMax == 0 {
		o.JitterMax = 200 * time.Millisecond
	}
	if o.LastErrorMaxLen == 0 {
		o.LastErrorMaxLen = 2048
	}
	if o.ObserveDepthEvery == 0 {
		o.ObserveDepthEvery = 10 * time.Second
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec
	}
}
