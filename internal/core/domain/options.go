package domain

import "time"

// AcquisitionOptions control a one-shot acquisition.
type AcquisitionOptions struct {
	// Timeout is the overall race deadline and the precise strategy's provider timeout.
	Timeout time.Duration

	// CoarseTimeout is the coarse strategy's provider timeout. Values that are
	// zero or not shorter than Timeout fall back to Timeout/2.
	CoarseTimeout time.Duration

	// MaxAge is how old a cached provider fix may be and still be returned.
	MaxAge time.Duration

	// AcceptableAccuracy is the early-accept threshold in meters.
	AcceptableAccuracy float64

	// RetryCount is the number of additional attempts after the first.
	RetryCount int

	// RetryBackoff is the fixed delay between attempts.
	RetryBackoff time.Duration

	RequestBackground bool
	AlertOnFailure    bool
}

// DefaultAcquisitionOptions returns the built-in defaults.
func DefaultAcquisitionOptions() AcquisitionOptions {
	return AcquisitionOptions{
		Timeout:            15 * time.Second,
		MaxAge:             10 * time.Second,
		AcceptableAccuracy: 100,
		RetryCount:         2,
		RetryBackoff:       time.Second,
		RequestBackground:  false,
		AlertOnFailure:     true,
	}
}

// CoarseProviderTimeout returns the timeout used for the coarse strategy.
func (o AcquisitionOptions) CoarseProviderTimeout() time.Duration {
	if o.CoarseTimeout > 0 && o.CoarseTimeout < o.Timeout {
		return o.CoarseTimeout
	}
	return o.Timeout / 2
}

// Option overrides a single field of AcquisitionOptions.
type Option func(*AcquisitionOptions)

// Apply merges opts over o field by field and normalizes out-of-range values
// back to the defaults.
func (o AcquisitionOptions) Apply(opts ...Option) AcquisitionOptions {
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	def := DefaultAcquisitionOptions()
	if o.Timeout <= 0 {
		o.Timeout = def.Timeout
	}
	if o.MaxAge < 0 {
		o.MaxAge = 0
	}
	if o.AcceptableAccuracy <= 0 {
		o.AcceptableAccuracy = def.AcceptableAccuracy
	}
	if o.RetryCount < 0 {
		o.RetryCount = 0
	}
	if o.RetryBackoff < 0 {
		o.RetryBackoff = 0
	}
	return o
}

func WithTimeout(d time.Duration) Option {
	return func(o *AcquisitionOptions) { o.Timeout = d }
}

func WithCoarseTimeout(d time.Duration) Option {
	return func(o *AcquisitionOptions) { o.CoarseTimeout = d }
}

func WithMaxAge(d time.Duration) Option {
	return func(o *AcquisitionOptions) { o.MaxAge = d }
}

func WithAcceptableAccuracy(meters float64) Option {
	return func(o *AcquisitionOptions) { o.AcceptableAccuracy = meters }
}

func WithRetryCount(n int) Option {
	return func(o *AcquisitionOptions) { o.RetryCount = n }
}

func WithRetryBackoff(d time.Duration) Option {
	return func(o *AcquisitionOptions) { o.RetryBackoff = d }
}

func WithRequestBackground(v bool) Option {
	return func(o *AcquisitionOptions) { o.RequestBackground = v }
}

func WithAlertOnFailure(v bool) Option {
	return func(o *AcquisitionOptions) { o.AlertOnFailure = v }
}
