package tcp

import (
	"encoding/binary"
	"fmt"
	"github.com/YiuTerran/cluster-event-sender/base/log"
	"github.com/YiuTerran/cluster-event-sender/network"
	"math"
)

// DefaultBufferSize 会话持久缓冲区的默认大小，一个帧(头+体)不能超过它
const DefaultBufferSize = 4 * 1024 * 1024

// FrameCodec 长度前缀的帧编码器
// ------------------------------
// | len(uint32) | json body     |
// ------------------------------
// 默认4字节长度、大端序(网络字节序)，没有magic和版本号
type FrameCodec struct {
	lenMsgLen    int
	maxMsgLen    uint32
	littleEndian bool
}

type CodecOption func(*FrameCodec)

// LittleEndian 小端序的长度头，兼容按x86本机字节序读取的接收端
func LittleEndian() CodecOption {
	return func(p *FrameCodec) {
		p.littleEndian = true
	}
}

// LenMsgLen 长度头的字节数，只支持1、2、4
func LenMsgLen(n int) CodecOption {
	return func(p *FrameCodec) {
		p.setMsgLen(n)
	}
}

func NewFrameCodec(options ...CodecOption) *FrameCodec {
	p := new(FrameCodec)
	p.setMsgLen(4)
	for _, option := range options {
		option(p)
	}
	return p
}

func (p *FrameCodec) setMsgLen(lenMsgLen int) {
	if lenMsgLen == 1 || lenMsgLen == 2 || lenMsgLen == 4 {
		p.lenMsgLen = lenMsgLen
	} else {
		log.Warn("invalid lenMsgLen %d, using 4", lenMsgLen)
		p.lenMsgLen = 4
	}
	switch p.lenMsgLen {
	case 1:
		p.maxMsgLen = math.MaxUint8
	case 2:
		p.maxMsgLen = math.MaxUint16
	case 4:
		p.maxMsgLen = math.MaxUint32
	}
}

// HeaderSize 消息头的字节数
func (p *FrameCodec) HeaderSize() int {
	return p.lenMsgLen
}

// MaxBodyLen 长度字段能表示的最大消息体
func (p *FrameCodec) MaxBodyLen() uint32 {
	return p.maxMsgLen
}

func (p *FrameCodec) checkBody(body []byte, capacity int) error {
	if uint64(len(body)) > uint64(p.maxMsgLen) {
		return fmt.Errorf("%w: body length %d exceeds header limit %d", network.ErrEncoding, len(body), p.maxMsgLen)
	}
	if capacity >= 0 && p.lenMsgLen+len(body) > capacity {
		return fmt.Errorf("%w: frame length %d exceeds buffer capacity %d",
			network.ErrEncoding, p.lenMsgLen+len(body), capacity)
	}
	return nil
}

func (p *FrameCodec) putHeader(dst []byte, msgLen uint32) {
	switch p.lenMsgLen {
	case 1:
		dst[0] = byte(msgLen)
	case 2:
		if p.littleEndian {
			binary.LittleEndian.PutUint16(dst, uint16(msgLen))
		} else {
			binary.BigEndian.PutUint16(dst, uint16(msgLen))
		}
	case 4:
		if p.littleEndian {
			binary.LittleEndian.PutUint32(dst, msgLen)
		} else {
			binary.BigEndian.PutUint32(dst, msgLen)
		}
	}
}

// Encode 生成一个新分配的帧
func (p *FrameCodec) Encode(body []byte) ([]byte, error) {
	if err := p.checkBody(body, -1); err != nil {
		return nil, err
	}
	msg := make([]byte, p.lenMsgLen+len(body))
	p.putHeader(msg, uint32(len(body)))
	copy(msg[p.lenMsgLen:], body)
	return msg, nil
}

// EncodeInto 把帧写入持久缓冲区并返回缓冲区中的帧
// 校验失败时缓冲区保持不变；返回的切片在下一次EncodeInto之前有效
func (p *FrameCodec) EncodeInto(buf *FrameBuffer, body []byte) ([]byte, error) {
	if err := p.checkBody(body, buf.Cap()); err != nil {
		return nil, err
	}
	buf.Reset()
	frame := buf.grow(p.lenMsgLen + len(body))
	p.putHeader(frame, uint32(len(body)))
	copy(frame[p.lenMsgLen:], body)
	return frame, nil
}

// DecodeHeader 解析消息头里声明的消息体长度
func (p *FrameCodec) DecodeHeader(b []byte) (uint32, error) {
	if len(b) < p.lenMsgLen {
		return 0, fmt.Errorf("%w: need %d bytes, got %d", network.ErrTruncatedHeader, p.lenMsgLen, len(b))
	}
	switch p.lenMsgLen {
	case 1:
		return uint32(b[0]), nil
	case 2:
		if p.littleEndian {
			return uint32(binary.LittleEndian.Uint16(b)), nil
		}
		return uint32(binary.BigEndian.Uint16(b)), nil
	default:
		if p.littleEndian {
			return binary.LittleEndian.Uint32(b), nil
		}
		return binary.BigEndian.Uint32(b), nil
	}
}

// FrameBuffer 会话持有的可复用缓冲区，只分配一次
// 非线程安全，同一时间只能有一个发送者使用
type FrameBuffer struct {
	data []byte
}

func NewFrameBuffer(capacity int) *FrameBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	return &FrameBuffer{data: make([]byte, 0, capacity)}
}

func (b *FrameBuffer) Reset() {
	b.data = b.data[:0]
}

func (b *FrameBuffer) Len() int {
	return len(b.data)
}

func (b *FrameBuffer) Cap() int {
	return cap(b.data)
}

// Bytes 当前缓冲区中的有效数据
func (b *FrameBuffer) Bytes() []byte {
	return b.data
}

// grow 调用方保证不超过容量
func (b *FrameBuffer) grow(n int) []byte {
	l := len(b.data)
	b.data = b.data[:l+n]
	return b.data[l : l+n]
}
