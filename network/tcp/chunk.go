package tcp

import (
	"fmt"
	"github.com/YiuTerran/cluster-event-sender/base/log"
	"github.com/YiuTerran/cluster-event-sender/network"
)

// ChunkError 分段写入失败时的上下文，Kind是network包里的错误类型
type ChunkError struct {
	Chunk   string
	Socket  string
	Total   int
	Sent    int
	Written int
	Kind    error
	Err     error
}

func (e *ChunkError) Error() string {
	s := fmt.Sprintf("%s - %s: %v (length=%d, sent=%d, written=%d, left=%d)",
		e.Socket, e.Chunk, e.Kind, e.Total, e.Sent, e.Written, e.Total-e.Sent)
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *ChunkError) Unwrap() error {
	return e.Err
}

func (e *ChunkError) Is(target error) bool {
	return target == e.Kind
}

// WriteAll 把b的前total个字节完整写入socket
// 部分写入时继续写剩下的，不做等待；写入失败、0字节、超出剩余长度都直接返回错误
func WriteAll(sock network.StreamSocket, b []byte, total int, chunkName string) error {
	if total < 0 || total > len(b) {
		return &ChunkError{Chunk: chunkName, Socket: sock.Description(), Total: total,
			Kind: network.ErrProtocolViolation, Err: fmt.Errorf("buffer holds %d bytes", len(b))}
	}
	sent := 0
	for sent < total {
		left := total - sent
		n, err := sock.Send(b[sent:total])
		if err != nil {
			log.Error("%s - %s send failed (length=%d): %v", sock.Description(), chunkName, total, err)
			return &ChunkError{Chunk: chunkName, Socket: sock.Description(), Total: total, Sent: sent,
				Written: n, Kind: network.ErrTransport, Err: err}
		}
		if n <= 0 || n > left {
			log.Error("%s - %s send failed: %d of %d left", sock.Description(), chunkName, n, left)
			kind := network.ErrZeroProgress
			if n > left {
				kind = network.ErrProtocolViolation
			}
			return &ChunkError{Chunk: chunkName, Socket: sock.Description(), Total: total, Sent: sent,
				Written: n, Kind: kind}
		}
		sent += n
		log.Debug("%s - %s sent %d bytes, %d bytes left", sock.Description(), chunkName, n, total-sent)
	}
	log.Debug("%s - %s was sent", sock.Description(), chunkName)
	return nil
}
