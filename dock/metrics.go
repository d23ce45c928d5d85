package dock

import (
	"log"
	"sync/atomic"
)

// PassObserver receives the result of every completed sampling pass,
// including passes that turn out to be stale.
type PassObserver interface {
	ObservePass(panelID string, result PassResult)
}

// PassLogger logs every Nth sampling pass to the provided logger.
type PassLogger struct {
	logger *log.Logger
	every  uint64
	count  atomic.Uint64
}

// NewPassLogger creates an observer that logs one pass out of every. A
// value below one logs every pass.
func NewPassLogger(l *log.Logger, every int) *PassLogger {
	if l == nil {
		l = log.Default()
	}
	if every < 1 {
		every = 1
	}
	return &PassLogger{logger: l, every: uint64(every)}
}

// ObservePass counts a completed pass and logs it when it falls on the
// sampling interval. A nil logger disables output.
func (p *PassLogger) ObservePass(panelID string, result PassResult) {
	if p == nil || p.logger == nil {
		return
	}
	n := p.count.Add(1)
	if (n-1)%p.every != 0 {
		return
	}
	if !result.Found {
		p.logger.Printf("pass panel=%s queried=%d replied=%d failed=%d winner=none duration=%s",
			panelID, result.Queried, result.Replied, result.Failed, result.Elapsed)
		return
	}
	p.logger.Printf("pass panel=%s queried=%d replied=%d failed=%d winner=%s distance=%.4f duration=%s",
		panelID, result.Queried, result.Replied, result.Failed, result.Winner.AcceptorID, result.Winner.Distance, result.Elapsed)
}

// Count returns the number of passes observed.
func (p *PassLogger) Count() uint64 {
	return p.count.Load()
}
