//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package tcp

import (
	"github.com/YiuTerran/cluster-event-sender/network"
	"net"
)

// probe 没有MSG_PEEK的平台上只能以本地持有的连接为准，对端关闭要等写入失败才能发现
func probe(conn *net.TCPConn) network.SocketState {
	if conn == nil {
		return network.Disconnected
	}
	return network.Connected
}
