package app

import "time"

// Option configures a service.
type Option func(*clock)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *clock) {
		c.now = now
	}
}

type clock struct {
	now func() time.Time
}

func newClock(opts []Option) clock {
	c := clock{now: time.Now}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c clock) Now() time.Time {
	return c.now().UTC()
}
