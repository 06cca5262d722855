package sender

import (
	"context"
	"fmt"
	"github.com/YiuTerran/cluster-event-sender/base/log"
	"github.com/YiuTerran/cluster-event-sender/event"
	"github.com/YiuTerran/cluster-event-sender/network"
	"github.com/YiuTerran/cluster-event-sender/network/tcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"time"
)

const (
	tracerName = "github.com/YiuTerran/cluster-event-sender/sender"
	chunkName  = "send-json"
)

// Session 持有一个连接和一个持久缓冲区，每次调用发送一个完整的事件
// 非线程安全，并发发送请用Worker或者每个协程一个Session
type Session struct {
	opts   options
	codec  *tcp.FrameCodec
	client *tcp.Client
	buffer *tcp.FrameBuffer
	logger log.Fields
	stats  Stats
	tracer trace.Tracer
}

func NewSession(opts ...Option) *Session {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.socketFactory == nil {
		dial, write := o.dialTimeout, o.writeTimeout
		o.socketFactory = func(name string) network.StreamSocket {
			return tcp.NewSocket(name, tcp.DialTimeout(dial), tcp.WriteTimeout(write))
		}
	}
	if o.tracerProvider == nil {
		o.tracerProvider = otel.GetTracerProvider()
	}
	var codecOpts []tcp.CodecOption
	if o.littleEndian {
		codecOpts = append(codecOpts, tcp.LittleEndian())
	}
	return &Session{
		opts:   o,
		codec:  tcp.NewFrameCodec(codecOpts...),
		logger: log.Fields{}.WithPrefix(o.name),
		tracer: o.tracerProvider.Tracer(tracerName),
	}
}

func (s *Session) Name() string {
	return s.opts.name
}

// Open 创建socket并分配持久缓冲区，重复调用无副作用
func (s *Session) Open() error {
	if s.client != nil {
		return nil
	}
	sock := s.opts.socketFactory(s.opts.name)
	if sock == nil {
		return fmt.Errorf("%w: socket factory returned nil", network.ErrTransport)
	}
	s.client = tcp.NewClient(s.opts.name, sock, s.opts.clientOptions...)
	s.buffer = tcp.NewFrameBuffer(s.opts.bufferSize)
	s.logger.Debug("opened, buffer size %d", s.buffer.Cap())
	return nil
}

// Close 断开连接并释放缓冲区，之后可以重新Open
func (s *Session) Close() {
	if s.client == nil {
		return
	}
	s.client.Disconnect()
	s.client = nil
	s.buffer = nil
}

func (s *Session) IsOpen() bool {
	return s.client != nil && s.client.IsOpen()
}

func (s *Session) State() network.SocketState {
	if s.client == nil {
		return network.Disconnected
	}
	return s.client.State()
}

// Stats 可以在其他协程读取
func (s *Session) Stats() StatsSnapshot {
	return s.stats.Snapshot()
}

// Connect 按照给定的重试参数连接，已经连上时直接返回
func (s *Session) Connect(ctx context.Context, address string, port int, maxAttempts int, retryDelay time.Duration) error {
	if s.client == nil {
		return ErrSessionClosed
	}
	return s.client.ConnectContext(ctx, address, port, maxAttempts, retryDelay)
}

func (s *Session) Disconnect() {
	if s.client != nil {
		s.client.Disconnect()
	}
}

// SendEventTo 见SendEventToContext
func (s *Session) SendEventTo(address string, port int, ev event.Event) error {
	return s.SendEventToContext(context.Background(), address, port, ev)
}

// SendEventToContext 连接(已连接时跳过)、序列化、组帧、完整写入
// 任何一步失败都会记录日志并返回错误
func (s *Session) SendEventToContext(ctx context.Context, address string, port int, ev event.Event) error {
	ctx, span := s.tracer.Start(ctx, "sender.SendEventTo",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("net.peer.ip", address),
			attribute.Int("net.peer.port", port),
			attribute.String("sender.name", s.opts.name),
		))
	defer span.End()

	start := time.Now()
	n, err := s.sendEvent(ctx, address, port, ev)
	return s.finish(span, "event", fmt.Sprintf("%s:%d", address, port), n, err, time.Since(start))
}

// finish 统一记录一次发送的统计、指标、span和json track日志
func (s *Session) finish(span trace.Span, op, peer string, n int, err error, dr time.Duration) error {
	s.stats.record(err, n)
	s.opts.metrics.observe(err, n, dr)
	fields := []zap.Field{
		zap.String("sender", s.opts.name),
		zap.String("op", op),
		zap.String("peer", peer),
		zap.Int("bytes", n),
		zap.Duration("duration", dr),
		zap.String("result", ErrorKind(err)),
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, ErrorKind(err))
		s.logger.Error("couldn't send %s to %s: %v", op, peer, err)
		log.JsonError("send failed", append(fields, zap.Error(err))...)
		return err
	}
	span.SetAttributes(attribute.Int("sender.frame_bytes", n))
	log.JsonInfo("sent", fields...)
	return nil
}

func (s *Session) sendEvent(ctx context.Context, address string, port int, ev event.Event) (int, error) {
	if s.client == nil {
		return 0, ErrSessionClosed
	}
	if err := s.client.ConnectContext(ctx, address, port, s.opts.connectAttempts, s.opts.retryDelay); err != nil {
		return 0, err
	}
	body, err := event.Marshal(ev)
	if err != nil {
		s.logger.Error("couldn't convert json cluster event data to net packet")
		return 0, err
	}
	return s.sendPacket(body)
}

// SendPacket 在当前连接上发送一个已经序列化好的json消息体，不会主动连接
func (s *Session) SendPacket(body []byte) error {
	peer := "-"
	if s.client != nil {
		if remote := s.client.Remote(); remote != nil {
			peer = remote.String()
		}
	}
	_, span := s.tracer.Start(context.Background(), "sender.SendPacket",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("net.peer.name", peer),
			attribute.String("sender.name", s.opts.name),
		))
	defer span.End()

	start := time.Now()
	n, err := s.sendPacket(body)
	return s.finish(span, "packet", peer, n, err, time.Since(start))
}

func (s *Session) sendPacket(body []byte) (int, error) {
	if s.client == nil {
		return 0, ErrSessionClosed
	}
	if !s.client.IsOpen() {
		s.logger.Error("not connected")
		return 0, fmt.Errorf("%w: %s not connected", network.ErrTransport, s.opts.name)
	}
	s.logger.Debug("sending json...")

	frame, err := s.codec.EncodeInto(s.buffer, body)
	if err != nil {
		s.logger.Warn("couldn't encode json data: %v", err)
		return 0, err
	}
	s.logger.Debug("outgoing packet header: <length=%d>", len(body))

	if err = tcp.WriteAll(s.client.Socket(), frame, len(frame), chunkName); err != nil {
		// 可能已经写出了半个帧，接收端无法再对齐，只能重连
		s.logger.Warn("couldn't send json, dropping connection: %v", err)
		s.client.Disconnect()
		return 0, err
	}
	s.logger.Debug("json sent")
	return len(frame), nil
}
