// Package queue provides the BuildQueue orchestrator for build coordination.
package queue

import (
	"time"

	"github.com/techwithparamesh/applyn-sub004/pkg/core"
	"github.com/techwithparamesh/applyn-sub004/pkg/lease"
	"github.com/techwithparamesh/applyn-sub004/pkg/notify"
	"github.com/techwithparamesh/applyn-sub004/pkg/security"
)

// Options holds configuration for a BuildQueue.
type Options struct {
	LeaseTTL    time.Duration
	MaxAttempts int
	Notifier    notify.Notifier
}

// NewOptions creates Options with defaults.
func NewOptions() *Options {
	return &Options{
		LeaseTTL:    lease.DefaultTTL,
		MaxAttempts: core.DefaultMaxAttempts,
		Notifier:    notify.NopNotifier{},
	}
}

// Option modifies Options.
type Option interface {
	Apply(*Options)
}

type optionFunc func(*Options)

func (f optionFunc) Apply(o *Options) { f(o) }

// WithLeaseTTL sets how long a claim holds before it can be reclaimed.
func WithLeaseTTL(d time.Duration) Option {
	return optionFunc(func(o *Options) {
		o.LeaseTTL = d
	})
}

// WithMaxAttempts sets the default attempt budget for new jobs.
// Values are clamped to [1, MaxAttempts] (100).
func WithMaxAttempts(n int) Option {
	return optionFunc(func(o *Options) {
		o.MaxAttempts = security.ClampAttempts(n)
	})
}

// WithNotifier wires a wake-signal notifier between enqueues and workers.
func WithNotifier(n notify.Notifier) Option {
	return optionFunc(func(o *Options) {
		if n != nil {
			o.Notifier = n
		}
	})
}

// EnqueueOptions holds per-job overrides.
type EnqueueOptions struct {
	MaxAttempts int
}

// EnqueueOption modifies EnqueueOptions.
type EnqueueOption interface {
	ApplyEnqueue(*EnqueueOptions)
}

type enqueueOptionFunc func(*EnqueueOptions)

func (f enqueueOptionFunc) ApplyEnqueue(o *EnqueueOptions) { f(o) }

// Attempts overrides the attempt budget for a single job.
// Values are clamped to [1, MaxAttempts] (100).
func Attempts(n int) EnqueueOption {
	return enqueueOptionFunc(func(o *EnqueueOptions) {
		o.MaxAttempts = security.ClampAttempts(n)
	})
}
