package telemetry

import (
	"time"

	"go.uber.org/zap"
)

// ReviewEvent is emitted once per reviewed card. The core only defines the
// shape; transport to a collector is out of scope.
type ReviewEvent struct {
	CardID       string    `json:"card_id"`
	Grade        int       `json:"grade"`
	IntervalDays int       `json:"interval_days"`
	EaseFactor   float64   `json:"ease_factor"`
	XPAwarded    int       `json:"xp_awarded"`
	Timestamp    time.Time `json:"timestamp"`
}

// Emitter receives review events. Implementations must not block the
// session commit path.
type Emitter interface {
	Emit(ReviewEvent)
}

// NopEmitter discards every event.
type NopEmitter struct{}

func (NopEmitter) Emit(ReviewEvent) {}

// ZapEmitter writes events to a structured log.
type ZapEmitter struct {
	log *zap.Logger
}

// NewZapEmitter creates an emitter backed by the given logger.
func NewZapEmitter(log *zap.Logger) *ZapEmitter {
	return &ZapEmitter{log: log}
}

func (e *ZapEmitter) Emit(ev ReviewEvent) {
	e.log.Info("card reviewed",
		zap.String("card_id", ev.CardID),
		zap.Int("grade", ev.Grade),
		zap.Int("interval_days", ev.IntervalDays),
		zap.Float64("ease_factor", ev.EaseFactor),
		zap.Int("xp_awarded", ev.XPAwarded),
		zap.Time("timestamp", ev.Timestamp),
	)
}
