package sender_test

import (
	"io"
	"net"
	"sync"

	"github.com/YiuTerran/cluster-event-sender/network/tcp"
	. "github.com/onsi/gomega"
	"go.uber.org/atomic"
)

type frame struct {
	header []byte
	length uint32
	body   []byte
}

// loopbackListener 读取长度前缀帧的测试服务端
type loopbackListener struct {
	ln         net.Listener
	codec      *tcp.FrameCodec
	frames     chan frame
	accepts    atomic.Int32
	closeAfter int
	wg         sync.WaitGroup
}

func newLoopbackListener(codec *tcp.FrameCodec, closeAfter int) *loopbackListener {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	Expect(err).ToNot(HaveOccurred())
	l := &loopbackListener{
		ln:         ln,
		codec:      codec,
		frames:     make(chan frame, 16),
		closeAfter: closeAfter,
	}
	l.wg.Add(1)
	go l.serve()
	return l
}

func (l *loopbackListener) Port() int {
	return l.ln.Addr().(*net.TCPAddr).Port
}

func (l *loopbackListener) serve() {
	defer l.wg.Done()
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			return
		}
		l.accepts.Inc()
		l.wg.Add(1)
		go l.handle(conn)
	}
}

func (l *loopbackListener) handle(conn net.Conn) {
	defer l.wg.Done()
	defer conn.Close()
	count := 0
	for {
		header := make([]byte, l.codec.HeaderSize())
		if _, err := io.ReadFull(conn, header); err != nil {
			return
		}
		n, err := l.codec.DecodeHeader(header)
		if err != nil {
			return
		}
		body := make([]byte, n)
		if _, err = io.ReadFull(conn, body); err != nil {
			return
		}
		l.frames <- frame{header: header, length: n, body: body}
		count++
		if l.closeAfter > 0 && count >= l.closeAfter {
			return
		}
	}
}

func (l *loopbackListener) Close() {
	_ = l.ln.Close()
}
