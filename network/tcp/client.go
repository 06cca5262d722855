package tcp

import (
	"context"
	"fmt"
	"github.com/YiuTerran/cluster-event-sender/base/log"
	"github.com/YiuTerran/cluster-event-sender/base/util/netutil"
	"github.com/YiuTerran/cluster-event-sender/network"
	"go.uber.org/atomic"
	"net"
	"time"
)

// Client 管理一个出站的流式连接
// 连接状态总是从socket实时查询，只有正在重试连接时才由Client自己标记为Connecting
type Client struct {
	name       string
	sock       network.StreamSocket
	remote     *net.TCPAddr
	connecting atomic.Bool
	attempts   atomic.Int64
	sleep      func(ctx context.Context, dr time.Duration) error
	logger     log.Fields
}

type Option func(*Client)

// Sleeper 替换重试之间的等待函数
func Sleeper(f func(ctx context.Context, dr time.Duration) error) Option {
	return func(client *Client) {
		client.sleep = f
	}
}

func NewClient(name string, sock network.StreamSocket, options ...Option) *Client {
	client := &Client{
		name:   name,
		sock:   sock,
		sleep:  sleepContext,
		logger: log.Fields{}.WithPrefix(name),
	}
	for _, option := range options {
		option(client)
	}
	return client
}

func sleepContext(ctx context.Context, dr time.Duration) error {
	if dr <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(dr)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (client *Client) Name() string {
	return client.name
}

func (client *Client) Socket() network.StreamSocket {
	return client.sock
}

// Attempts 累计的连接尝试次数
func (client *Client) Attempts() int64 {
	return client.attempts.Load()
}

// Connect 见ConnectContext
func (client *Client) Connect(addr string, port int, maxAttempts int, retryDelay time.Duration) error {
	return client.ConnectContext(context.Background(), addr, port, maxAttempts, retryDelay)
}

// ConnectContext 连接到addr:port，已经连上同一个地址时直接返回
// 已经连上其他地址时先断开再重新连接
// maxAttempts<=0表示无限重试，每两次尝试之间等待retryDelay
// 地址错误属于配置问题，不会尝试连接
func (client *Client) ConnectContext(ctx context.Context, addr string, port int, maxAttempts int,
	retryDelay time.Duration) error {
	ip, err := netutil.ParseIPv4(addr)
	if err != nil {
		client.logger.Error("couldn't parse the address: %s", addr)
		return fmt.Errorf("%w: %v", network.ErrAddressParse, err)
	}
	tcpAddr, err := netutil.TCPAddr(ip, port)
	if err != nil {
		client.logger.Error("couldn't use the address %s:%d", addr, port)
		return fmt.Errorf("%w: %v", network.ErrAddressParse, err)
	}
	if client.IsOpen() {
		if sameAddr(client.remote, tcpAddr) {
			return nil
		}
		client.logger.Info("switching from %s to %s", client.remote, tcpAddr)
		client.Disconnect()
	}
	if !client.connecting.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: %s connect already in progress", network.ErrTransport, client.name)
	}
	defer client.connecting.Store(false)

	tryIdx := 0
	for {
		client.attempts.Inc()
		err = client.sock.Connect(ctx, tcpAddr)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return fmt.Errorf("connect to %s: %w", tcpAddr, ctx.Err())
		}
		client.logger.Info("couldn't connect to the server %s [%d]: %v", tcpAddr, tryIdx, err)
		tryIdx++
		if maxAttempts > 0 && tryIdx >= maxAttempts {
			client.logger.Error("connection attempts limit reached")
			return fmt.Errorf("%w: %d attempts to %s, last error: %v",
				network.ErrConnectionRetryExhausted, tryIdx, tcpAddr, err)
		}
		if err = client.sleep(ctx, retryDelay); err != nil {
			return fmt.Errorf("connect to %s: %w", tcpAddr, err)
		}
	}

	if state := client.sock.State(); state != network.Connected {
		client.logger.Error("connected to %s but socket is %s", tcpAddr, state)
		return fmt.Errorf("%w: %s socket is %s after connect", network.ErrTransport, client.name, state)
	}
	client.remote = tcpAddr
	client.logger.Debug("connected to %s", tcpAddr)
	return nil
}

func sameAddr(a, b *net.TCPAddr) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Port == b.Port && a.IP.Equal(b.IP)
}

// Remote 最近一次成功连接的地址，未连接时为nil
func (client *Client) Remote() *net.TCPAddr {
	if !client.IsOpen() {
		return nil
	}
	return client.remote
}

// Disconnect 关闭连接，可以重复调用
func (client *Client) Disconnect() {
	client.logger.Info("disconnecting...")
	client.remote = nil
	if err := client.sock.Close(); err != nil {
		client.logger.Warn("close socket: %v", err)
	}
}

// IsOpen 底层socket当前是否处于连接状态
func (client *Client) IsOpen() bool {
	return client.sock != nil && client.sock.State() == network.Connected
}

func (client *Client) State() network.SocketState {
	if client.connecting.Load() {
		return network.Connecting
	}
	return client.sock.State()
}
