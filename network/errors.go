package network

import "errors"

// 发送链路上的错误类型，都是针对当前这次调用的，调用方用errors.Is判断
var (
	// ErrAddressParse 地址配置错误，不会重试
	ErrAddressParse = errors.New("address parse error")
	// ErrConnectionRetryExhausted 达到最大连接次数
	ErrConnectionRetryExhausted = errors.New("connection retry exhausted")
	// ErrTransport 底层socket调用失败
	ErrTransport = errors.New("transport error")
	// ErrZeroProgress 写入0字节，一般是对端关闭或者卡住
	ErrZeroProgress = errors.New("zero progress")
	// ErrProtocolViolation 写入的字节数超过了请求的长度
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrSerialization 事件无法转成json对象
	ErrSerialization = errors.New("serialization error")
	// ErrEncoding 消息体超过长度字段能表示的范围或者缓冲区容量
	ErrEncoding = errors.New("encoding error")
	// ErrTruncatedHeader 字节数不足一个消息头
	ErrTruncatedHeader = errors.New("truncated header")
)
