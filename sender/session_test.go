package sender_test

import (
	"context"
	"encoding/json"
	"net"
	"time"

	"github.com/YiuTerran/cluster-event-sender/event"
	"github.com/YiuTerran/cluster-event-sender/network"
	"github.com/YiuTerran/cluster-event-sender/network/tcp"
	"github.com/YiuTerran/cluster-event-sender/sender"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// trickleSocket 每次只接受perSend个字节
type trickleSocket struct {
	connected bool
	perSend   int
	sends     int
	data      []byte
	closes    int
}

func (s *trickleSocket) Connect(context.Context, *net.TCPAddr) error {
	s.connected = true
	return nil
}

func (s *trickleSocket) Send(b []byte) (int, error) {
	s.sends++
	n := s.perSend
	if n > len(b) {
		n = len(b)
	}
	s.data = append(s.data, b[:n]...)
	return n, nil
}

func (s *trickleSocket) Close() error {
	s.closes++
	s.connected = false
	return nil
}

func (s *trickleSocket) State() network.SocketState {
	if s.connected {
		return network.Connected
	}
	return network.Disconnected
}

func (s *trickleSocket) Description() string {
	return "trickle"
}

var fadeIn = event.ClusterEvent{Type: "custom", Name: "fade_in", Parameters: "1.0"}

var _ = Describe("Session", func() {
	Context("before Open", func() {
		It("refuses to send", func() {
			s := sender.NewSession(sender.Name("Sender"))
			Expect(s.IsOpen()).To(BeFalse())
			Expect(s.State()).To(Equal(network.Disconnected))
			err := s.SendEventTo("127.0.0.1", 41003, fadeIn)
			Expect(err).To(MatchError(sender.ErrSessionClosed))
			Expect(s.Stats().Failures).To(BeEquivalentTo(1))
		})
	})

	Context("with a loopback listener", func() {
		var (
			codec    *tcp.FrameCodec
			listener *loopbackListener
			session  *sender.Session
		)

		BeforeEach(func() {
			codec = tcp.NewFrameCodec()
			listener = newLoopbackListener(codec, 0)
			session = sender.NewSession(sender.Name("Sender"), sender.DialTimeout(time.Second))
			Expect(session.Open()).To(Succeed())
		})

		AfterEach(func() {
			session.Close()
			listener.Close()
		})

		It("delivers the event as a length-prefixed json frame", func() {
			Expect(session.IsOpen()).To(BeFalse())
			Expect(session.SendEventTo("127.0.0.1", listener.Port(), fadeIn)).To(Succeed())
			Expect(session.IsOpen()).To(BeTrue())

			var f frame
			Eventually(listener.frames, 3*time.Second).Should(Receive(&f))
			Expect(f.header).To(HaveLen(4))
			Expect(f.length).To(BeEquivalentTo(len(f.body)))
			Expect(string(f.body)).To(MatchJSON(`{"type":"custom","name":"fade_in","parameters":"1.0"}`))

			var back event.ClusterEvent
			Expect(json.Unmarshal(f.body, &back)).To(Succeed())
			Expect(back).To(Equal(fadeIn))

			stats := session.Stats()
			Expect(stats.FramesSent).To(BeEquivalentTo(1))
			Expect(stats.BytesSent).To(BeEquivalentTo(4 + len(f.body)))
			Expect(stats.Failures).To(BeZero())
		})

		It("reuses an open connection between sends", func() {
			for i := 0; i < 3; i++ {
				Expect(session.SendEventTo("127.0.0.1", listener.Port(), event.Map{"seq": i})).To(Succeed())
			}
			for i := 0; i < 3; i++ {
				var f frame
				Eventually(listener.frames, 3*time.Second).Should(Receive(&f))
				Expect(string(f.body)).To(MatchJSON(`{"seq":` + string(rune('0'+i)) + `}`))
			}
			Expect(listener.accepts.Load()).To(BeEquivalentTo(1))
		})

		It("reconnects when the target address changes", func() {
			other := newLoopbackListener(codec, 0)
			defer other.Close()

			Expect(session.SendEventTo("127.0.0.1", listener.Port(), fadeIn)).To(Succeed())
			Expect(session.SendEventTo("127.0.0.1", other.Port(), event.Map{"to": "other"})).To(Succeed())

			var f frame
			Eventually(listener.frames, 3*time.Second).Should(Receive(&f))
			Expect(string(f.body)).To(MatchJSON(`{"type":"custom","name":"fade_in","parameters":"1.0"}`))
			Eventually(other.frames, 3*time.Second).Should(Receive(&f))
			Expect(string(f.body)).To(MatchJSON(`{"to":"other"}`))
			Consistently(listener.frames, 100*time.Millisecond).ShouldNot(Receive())
			Expect(other.accepts.Load()).To(BeEquivalentTo(1))

			Expect(session.SendEventTo("127.0.0.1", listener.Port(), fadeIn)).To(Succeed())
			Eventually(listener.frames, 3*time.Second).Should(Receive(&f))
			Expect(listener.accepts.Load()).To(BeEquivalentTo(2))
		})

		It("disconnects on Disconnect and Close", func() {
			Expect(session.Connect(context.Background(), "127.0.0.1", listener.Port(), 1, 0)).To(Succeed())
			Expect(session.IsOpen()).To(BeTrue())
			session.Disconnect()
			Expect(session.IsOpen()).To(BeFalse())

			Expect(session.SendEventTo("127.0.0.1", listener.Port(), fadeIn)).To(Succeed())
			session.Close()
			Expect(session.IsOpen()).To(BeFalse())
			Expect(session.SendEventTo("127.0.0.1", listener.Port(), fadeIn)).To(MatchError(sender.ErrSessionClosed))

			Expect(session.Open()).To(Succeed())
			Expect(session.SendEventTo("127.0.0.1", listener.Port(), fadeIn)).To(Succeed())
		})

		It("rejects events that do not serialize to an object", func() {
			err := session.SendEventTo("127.0.0.1", listener.Port(), event.Map{"ch": make(chan int)})
			Expect(err).To(MatchError(network.ErrSerialization))
			Expect(sender.ErrorKind(err)).To(Equal("serialization"))
			Consistently(listener.frames, 100*time.Millisecond).ShouldNot(Receive())
		})

		It("sends a pre-serialized packet on the current connection", func() {
			Expect(session.SendPacket([]byte(`{"raw":true}`))).To(MatchError(network.ErrTransport))
			Expect(session.Connect(context.Background(), "127.0.0.1", listener.Port(), 1, 0)).To(Succeed())
			Expect(session.SendPacket([]byte(`{"raw":true}`))).To(Succeed())

			var f frame
			Eventually(listener.frames, 3*time.Second).Should(Receive(&f))
			Expect(string(f.body)).To(Equal(`{"raw":true}`))
		})
	})

	Context("when the peer closes the connection", func() {
		It("reconnects on the next send", func() {
			listener := newLoopbackListener(tcp.NewFrameCodec(), 1)
			defer listener.Close()
			session := sender.NewSession(sender.Name("Sender"))
			Expect(session.Open()).To(Succeed())
			defer session.Close()

			Expect(session.SendEventTo("127.0.0.1", listener.Port(), fadeIn)).To(Succeed())
			Eventually(listener.frames, 3*time.Second).Should(Receive())
			Eventually(session.IsOpen, 3*time.Second).Should(BeFalse())

			Expect(session.SendEventTo("127.0.0.1", listener.Port(), fadeIn)).To(Succeed())
			Eventually(listener.frames, 3*time.Second).Should(Receive())
			Expect(listener.accepts.Load()).To(BeEquivalentTo(2))
		})
	})

	Context("with a little-endian header", func() {
		It("writes the length in little-endian order", func() {
			codec := tcp.NewFrameCodec(tcp.LittleEndian())
			listener := newLoopbackListener(codec, 0)
			defer listener.Close()
			session := sender.NewSession(sender.LittleEndian(true))
			Expect(session.Open()).To(Succeed())
			defer session.Close()

			Expect(session.SendEventTo("127.0.0.1", listener.Port(), event.Map{"a": 1})).To(Succeed())
			var f frame
			Eventually(listener.frames, 3*time.Second).Should(Receive(&f))
			Expect(f.header).To(Equal([]byte{7, 0, 0, 0}))
			Expect(string(f.body)).To(Equal(`{"a":1}`))
		})
	})

	Context("without a listener", func() {
		It("fails after the configured connect attempts", func() {
			ln, err := net.Listen("tcp4", "127.0.0.1:0")
			Expect(err).ToNot(HaveOccurred())
			port := ln.Addr().(*net.TCPAddr).Port
			Expect(ln.Close()).To(Succeed())

			session := sender.NewSession(sender.ConnectRetry(2, 10*time.Millisecond), sender.DialTimeout(time.Second))
			Expect(session.Open()).To(Succeed())
			defer session.Close()

			err = session.SendEventTo("127.0.0.1", port, fadeIn)
			Expect(err).To(MatchError(network.ErrConnectionRetryExhausted))
			Expect(session.Stats().LastError).To(ContainSubstring("2 attempts"))
		})

		It("fails fast on a malformed address", func() {
			session := sender.NewSession()
			Expect(session.Open()).To(Succeed())
			defer session.Close()
			Expect(session.SendEventTo("999.1.1.1", 80, fadeIn)).To(MatchError(network.ErrAddressParse))
			Expect(session.SendEventTo("not-an-ip", 80, fadeIn)).To(MatchError(network.ErrAddressParse))
		})
	})

	Context("with a scripted transport", func() {
		It("completes a frame over many partial writes", func() {
			sock := &trickleSocket{perSend: 3}
			session := sender.NewSession(sender.WithSocketFactory(func(string) network.StreamSocket {
				return sock
			}))
			Expect(session.Open()).To(Succeed())

			Expect(session.SendEventTo("127.0.0.1", 41003, fadeIn)).To(Succeed())
			body, err := event.Marshal(fadeIn)
			Expect(err).ToNot(HaveOccurred())
			expected, err := tcp.NewFrameCodec().Encode(body)
			Expect(err).ToNot(HaveOccurred())
			Expect(sock.data).To(Equal(expected))
			Expect(sock.sends).To(Equal((len(expected) + 2) / 3))
		})

		It("drops the connection when the transport stalls", func() {
			sock := &trickleSocket{perSend: 0}
			session := sender.NewSession(sender.WithSocketFactory(func(string) network.StreamSocket {
				return sock
			}))
			Expect(session.Open()).To(Succeed())

			err := session.SendEventTo("127.0.0.1", 41003, fadeIn)
			Expect(err).To(MatchError(network.ErrZeroProgress))
			Expect(sock.sends).To(Equal(1))
			Expect(sock.closes).To(Equal(1))
			Expect(session.IsOpen()).To(BeFalse())
		})

		It("rejects frames larger than the buffer", func() {
			sock := &trickleSocket{perSend: 1024}
			session := sender.NewSession(sender.BufferSize(16), sender.WithSocketFactory(func(string) network.StreamSocket {
				return sock
			}))
			Expect(session.Open()).To(Succeed())

			err := session.SendEventTo("127.0.0.1", 41003, fadeIn)
			Expect(err).To(MatchError(network.ErrEncoding))
			Expect(sock.sends).To(BeZero())
			Expect(session.IsOpen()).To(BeTrue())
		})
	})
})
