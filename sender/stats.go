package sender

import (
	"go.uber.org/atomic"
)

// Stats 会话的累计计数
type Stats struct {
	framesSent atomic.Int64
	bytesSent  atomic.Int64
	failures   atomic.Int64
	lastError  atomic.String
}

type StatsSnapshot struct {
	FramesSent int64
	BytesSent  int64
	Failures   int64
	LastError  string
}

func (s *Stats) record(err error, frameLen int) {
	if err != nil {
		s.failures.Inc()
		s.lastError.Store(err.Error())
		return
	}
	s.framesSent.Inc()
	s.bytesSent.Add(int64(frameLen))
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		FramesSent: s.framesSent.Load(),
		BytesSent:  s.bytesSent.Load(),
		Failures:   s.failures.Load(),
		LastError:  s.lastError.Load(),
	}
}
