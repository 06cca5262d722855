package sender

import (
	"github.com/YiuTerran/cluster-event-sender/network"
	"github.com/YiuTerran/cluster-event-sender/network/tcp"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"time"
)

type options struct {
	name            string
	bufferSize      int
	littleEndian    bool
	connectAttempts int
	retryDelay      time.Duration
	dialTimeout     time.Duration
	writeTimeout    time.Duration
	metrics         *Metrics
	tracerProvider  trace.TracerProvider
	socketFactory   func(name string) network.StreamSocket
	clientOptions   []tcp.Option
}

type Option func(*options)

func defaultOptions() options {
	return options{
		name:            "Sender-" + uuid.NewString()[:8],
		bufferSize:      tcp.DefaultBufferSize,
		connectAttempts: 1,
	}
}

// Name 连接名称，主要用于日志
func Name(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// BufferSize 持久缓冲区大小，单个帧(头+体)不能超过它
func BufferSize(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.bufferSize = size
		}
	}
}

// LittleEndian 用小端序写长度头
func LittleEndian(enable bool) Option {
	return func(o *options) {
		o.littleEndian = enable
	}
}

// ConnectRetry 每次发送前连接的尝试次数和间隔，默认只尝试一次
// attempts<=0表示无限重试
func ConnectRetry(attempts int, delay time.Duration) Option {
	return func(o *options) {
		o.connectAttempts = attempts
		o.retryDelay = delay
	}
}

func DialTimeout(dr time.Duration) Option {
	return func(o *options) {
		o.dialTimeout = dr
	}
}

func WriteTimeout(dr time.Duration) Option {
	return func(o *options) {
		o.writeTimeout = dr
	}
}

func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithTracerProvider 默认使用otel的全局provider
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// WithSocketFactory 替换底层socket的实现
func WithSocketFactory(f func(name string) network.StreamSocket) Option {
	return func(o *options) {
		o.socketFactory = f
	}
}

// WithClientOptions 透传给tcp.Client
func WithClientOptions(opts ...tcp.Option) Option {
	return func(o *options) {
		o.clientOptions = append(o.clientOptions, opts...)
	}
}
