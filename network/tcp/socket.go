package tcp

import (
	"context"
	"fmt"
	"github.com/YiuTerran/cluster-event-sender/base/util/netutil"
	"github.com/YiuTerran/cluster-event-sender/network"
	"net"
	"sync"
	"time"
)

// Socket 基于net.Conn的StreamSocket，同一个Socket可以断开后重新连接
type Socket struct {
	sync.Mutex
	name         string
	conn         *net.TCPConn
	dialTimeout  time.Duration
	writeTimeout time.Duration
}

type SocketOption func(*Socket)

// DialTimeout 单次连接的超时，默认不超时，由系统决定
func DialTimeout(dr time.Duration) SocketOption {
	return func(s *Socket) {
		s.dialTimeout = dr
	}
}

// WriteTimeout 单次写入的超时，超时后Send返回错误
func WriteTimeout(dr time.Duration) SocketOption {
	return func(s *Socket) {
		s.writeTimeout = dr
	}
}

func NewSocket(name string, options ...SocketOption) *Socket {
	s := &Socket{name: name}
	for _, option := range options {
		option(s)
	}
	return s
}

func (s *Socket) Connect(ctx context.Context, addr *net.TCPAddr) error {
	s.Lock()
	old := s.conn
	s.conn = nil
	s.Unlock()
	if old != nil {
		_ = old.Close()
	}

	d := net.Dialer{Timeout: s.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp4", addr.String())
	if err != nil {
		return err
	}
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		_ = conn.Close()
		return fmt.Errorf("unexpected connection type %T", conn)
	}
	// 事件都很小，关掉Nagle尽快发出
	_ = tcpConn.SetNoDelay(true)

	s.Lock()
	s.conn = tcpConn
	s.Unlock()
	return nil
}

func (s *Socket) current() *net.TCPConn {
	s.Lock()
	defer s.Unlock()
	return s.conn
}

func (s *Socket) Send(b []byte) (int, error) {
	conn := s.current()
	if conn == nil {
		return 0, net.ErrClosed
	}
	if s.writeTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return 0, err
		}
	}
	return conn.Write(b)
}

func (s *Socket) Close() error {
	s.Lock()
	conn := s.conn
	s.conn = nil
	s.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (s *Socket) State() network.SocketState {
	conn := s.current()
	if conn == nil {
		return network.Disconnected
	}
	return probe(conn)
}

func (s *Socket) Description() string {
	conn := s.current()
	if conn == nil {
		return s.name
	}
	ip, port := netutil.NetAddr2IpPort(conn.RemoteAddr())
	return fmt.Sprintf("%s(%s:%d)", s.name, ip, port)
}
