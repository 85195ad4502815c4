package service

import "time"

type options struct {
	now func() time.Time
}

// Option customises a service.
type Option func(*options)

// WithClock overrides the wall clock used for timestamps and scoring.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
