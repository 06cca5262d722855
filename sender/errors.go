package sender

import (
	"context"
	"errors"
	"github.com/YiuTerran/cluster-event-sender/network"
)

var (
	ErrSessionClosed = errors.New("session is not open")
	ErrWorkerClosed  = errors.New("worker is closed")
	ErrQueueFull     = errors.New("worker queue is full")
)

var errorKinds = []struct {
	err  error
	kind string
}{
	{network.ErrAddressParse, "address_parse"},
	{network.ErrConnectionRetryExhausted, "retry_exhausted"},
	{network.ErrZeroProgress, "zero_progress"},
	{network.ErrProtocolViolation, "protocol_violation"},
	{network.ErrSerialization, "serialization"},
	{network.ErrEncoding, "encoding"},
	{network.ErrTransport, "transport"},
	{ErrSessionClosed, "session_closed"},
	{context.Canceled, "canceled"},
	{context.DeadlineExceeded, "timeout"},
}

// ErrorKind 错误分类，用作metrics的label
func ErrorKind(err error) string {
	if err == nil {
		return "ok"
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "other"
}
