package tcp

import (
	"context"
	"errors"
	"net"

	"github.com/YiuTerran/cluster-event-sender/network"
)

// fakeSocket 可编排行为的StreamSocket
type fakeSocket struct {
	state      network.SocketState
	connectErr error
	// 第几次连接开始成功，0表示第一次就成功
	succeedAt int
	connects  int
	addrs     []*net.TCPAddr

	// 每次最多接受的字节数，0表示全部接受
	maxPerSend int
	// 固定返回值，优先于maxPerSend
	fixedN   *int
	sendErr  error
	sends    int
	received []byte
	closes   int
}

func (f *fakeSocket) Connect(_ context.Context, addr *net.TCPAddr) error {
	f.connects++
	f.addrs = append(f.addrs, addr)
	if f.connectErr != nil && (f.succeedAt == 0 || f.connects <= f.succeedAt) {
		return f.connectErr
	}
	f.state = network.Connected
	return nil
}

func (f *fakeSocket) Send(b []byte) (int, error) {
	f.sends++
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	if f.fixedN != nil {
		return *f.fixedN, nil
	}
	n := len(b)
	if f.maxPerSend > 0 && n > f.maxPerSend {
		n = f.maxPerSend
	}
	f.received = append(f.received, b[:n]...)
	return n, nil
}

func (f *fakeSocket) Close() error {
	f.closes++
	f.state = network.Disconnected
	return nil
}

func (f *fakeSocket) State() network.SocketState {
	return f.state
}

func (f *fakeSocket) Description() string {
	return "fake"
}

var errRefused = errors.New("connection refused")
