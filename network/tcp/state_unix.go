//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package tcp

import (
	"github.com/YiuTerran/cluster-event-sender/network"
	"golang.org/x/sys/unix"
	"net"
)

// probe 非阻塞地peek一个字节判断连接是否还活着
// 对端正常关闭时recv返回0，被重置时返回错误，没有数据时返回EAGAIN
func probe(conn *net.TCPConn) network.SocketState {
	raw, err := conn.SyscallConn()
	if err != nil {
		return network.Disconnected
	}
	state := network.Connected
	err = raw.Read(func(fd uintptr) bool {
		var buf [1]byte
		n, _, rerr := unix.Recvfrom(int(fd), buf[:], unix.MSG_PEEK|unix.MSG_DONTWAIT)
		switch {
		case rerr == unix.EAGAIN || rerr == unix.EWOULDBLOCK || rerr == unix.EINTR:
		case rerr != nil:
			state = network.Disconnected
		case n == 0:
			state = network.Disconnected
		}
		return true
	})
	if err != nil {
		return network.Disconnected
	}
	return state
}
