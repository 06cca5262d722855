package network

import (
	"context"
	"net"
)

// SocketState 连接状态，以底层socket实时查询的结果为准
type SocketState int32

const (
	Disconnected SocketState = iota
	Connecting
	Connected
)

func (s SocketState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// StreamSocket 流式socket的抽象，一个实例可以反复Connect/Close
type StreamSocket interface {
	// Connect 阻塞连接，已经打开的连接会先被关闭
	Connect(ctx context.Context, addr *net.TCPAddr) error
	// Send 阻塞写入，返回本次实际写入的字节数
	Send(b []byte) (int, error)
	Close() error
	// State 查询当前的连接状态，不依赖本地缓存的标志
	State() SocketState
	// Description 用于日志
	Description() string
}
