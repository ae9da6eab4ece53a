package location

import (
	"log/slog"
	"time"

	"github.com/vietddude/locator/internal/core/domain"
)

// Strategy identifies one side of the race.
type Strategy string

const (
	StrategyCoarse  Strategy = "coarse"
	StrategyPrecise Strategy = "precise"
)

// Outcome is the settlement event that produced a race result.
type Outcome string

const (
	OutcomeEarlyAccept  Outcome = "early_accept"
	OutcomeBothComplete Outcome = "both_complete"
	OutcomeDeadline     Outcome = "deadline"
	OutcomeCanceled     Outcome = "canceled"
)

// Observer receives structured events from the acquisition machinery.
// Implementations must be safe for concurrent use and must not block.
type Observer interface {
	RaceStarted()
	StrategyCompleted(s Strategy, loc *domain.Location, err error, elapsed time.Duration)
	RaceSettled(o Outcome, err error, elapsed time.Duration)
	LateResult(s Strategy, loc *domain.Location, err error)
	AttemptFailed(attempt int, err error, willRetry bool)
	Acquired(loc domain.Location, elapsed time.Duration)
	Rejected(kind domain.ErrorKind, elapsed time.Duration)
	Canceled(elapsed time.Duration)
	BackgroundRequested(granted bool, err error)
	WatchStarted(h WatchHandle, highAccuracy bool)
	WatchStopped(h WatchHandle)
}

// NopObserver ignores every event. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) RaceStarted()                                                       {}
func (NopObserver) StrategyCompleted(Strategy, *domain.Location, error, time.Duration) {}
func (NopObserver) RaceSettled(Outcome, error, time.Duration)                          {}
func (NopObserver) LateResult(Strategy, *domain.Location, error)                       {}
func (NopObserver) AttemptFailed(int, error, bool)                                     {}
func (NopObserver) Acquired(domain.Location, time.Duration)                            {}
func (NopObserver) Rejected(domain.ErrorKind, time.Duration)                           {}
func (NopObserver) Canceled(time.Duration)                                             {}
func (NopObserver) BackgroundRequested(bool, error)                                    {}
func (NopObserver) WatchStarted(WatchHandle, bool)                                     {}
func (NopObserver) WatchStopped(WatchHandle)                                           {}

// MultiObserver fans events out to several observers.
type MultiObserver []Observer

func (m MultiObserver) RaceStarted() {
	for _, o := range m {
		o.RaceStarted()
	}
}

func (m MultiObserver) StrategyCompleted(s Strategy, loc *domain.Location, err error, elapsed time.Duration) {
	for _, o := range m {
		o.StrategyCompleted(s, loc, err, elapsed)
	}
}

func (m MultiObserver) RaceSettled(out Outcome, err error, elapsed time.Duration) {
	for _, o := range m {
		o.RaceSettled(out, err, elapsed)
	}
}

func (m MultiObserver) LateResult(s Strategy, loc *domain.Location, err error) {
	for _, o := range m {
		o.LateResult(s, loc, err)
	}
}

func (m MultiObserver) AttemptFailed(attempt int, err error, willRetry bool) {
	for _, o := range m {
		o.AttemptFailed(attempt, err, willRetry)
	}
}

func (m MultiObserver) Acquired(loc domain.Location, elapsed time.Duration) {
	for _, o := range m {
		o.Acquired(loc, elapsed)
	}
}

func (m MultiObserver) Rejected(kind domain.ErrorKind, elapsed time.Duration) {
	for _, o := range m {
		o.Rejected(kind, elapsed)
	}
}

func (m MultiObserver) Canceled(elapsed time.Duration) {
	for _, o := range m {
		o.Canceled(elapsed)
	}
}

func (m MultiObserver) BackgroundRequested(granted bool, err error) {
	for _, o := range m {
		o.BackgroundRequested(granted, err)
	}
}

func (m MultiObserver) WatchStarted(h WatchHandle, highAccuracy bool) {
	for _, o := range m {
		o.WatchStarted(h, highAccuracy)
	}
}

func (m MultiObserver) WatchStopped(h WatchHandle) {
	for _, o := range m {
		o.WatchStopped(h)
	}
}

// LogObserver writes events to a slog.Logger.
type LogObserver struct {
	Log *slog.Logger
}

// NewLogObserver creates a LogObserver; a nil logger means slog.Default().
func NewLogObserver(log *slog.Logger) *LogObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LogObserver{Log: log}
}

func (l *LogObserver) RaceStarted() {
	l.Log.Debug("Race started")
}

func (l *LogObserver) StrategyCompleted(s Strategy, loc *domain.Location, err error, elapsed time.Duration) {
	if err != nil {
		l.Log.Debug("Strategy failed", "strategy", s, "elapsed", elapsed, "error", err)
		return
	}
	acc, _ := loc.AccuracyMeters()
	l.Log.Debug("Strategy resolved", "strategy", s, "elapsed", elapsed, "accuracy", acc)
}

func (l *LogObserver) RaceSettled(o Outcome, err error, elapsed time.Duration) {
	l.Log.Debug("Race settled", "outcome", o, "elapsed", elapsed, "error", err)
}

func (l *LogObserver) LateResult(s Strategy, loc *domain.Location, err error) {
	l.Log.Debug("Discarded late strategy result", "strategy", s, "error", err)
}

func (l *LogObserver) AttemptFailed(attempt int, err error, willRetry bool) {
	l.Log.Warn("Location attempt failed", "attempt", attempt, "retry", willRetry, "error", err)
}

func (l *LogObserver) Acquired(loc domain.Location, elapsed time.Duration) {
	acc, _ := loc.AccuracyMeters()
	l.Log.Info("Location acquired", "accuracy", acc, "elapsed", elapsed)
}

func (l *LogObserver) Rejected(kind domain.ErrorKind, elapsed time.Duration) {
	l.Log.Warn("Location acquisition failed", "kind", kind.String(), "elapsed", elapsed)
}

func (l *LogObserver) Canceled(elapsed time.Duration) {
	l.Log.Debug("Location acquisition canceled by caller", "elapsed", elapsed)
}

func (l *LogObserver) BackgroundRequested(granted bool, err error) {
	switch {
	case err != nil:
		l.Log.Warn("Background permission request failed", "kind", domain.KindOf(err).String(), "error", err)
	case !granted:
		l.Log.Warn("Background permission refused")
	default:
		l.Log.Info("Background permission granted")
	}
}

func (l *LogObserver) WatchStarted(h WatchHandle, highAccuracy bool) {
	l.Log.Info("Watch started", "handle", h, "high_accuracy", highAccuracy)
}

func (l *LogObserver) WatchStopped(h WatchHandle) {
	l.Log.Info("Watch stopped", "handle", h)
}
