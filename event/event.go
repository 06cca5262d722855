package event

import (
	"bytes"
	"encoding/json"
	"fmt"
	"github.com/YiuTerran/cluster-event-sender/network"
)

// Event 可以发送的事件，ToJSONValue的结果必须能序列化成json对象
type Event interface {
	ToJSONValue() (any, error)
}

// ClusterEvent 集群事件，字段和接收端的json事件保持一致
type ClusterEvent struct {
	Category              string `json:"category,omitempty"`
	Type                  string `json:"type,omitempty"`
	Name                  string `json:"name,omitempty"`
	Parameters            string `json:"parameters,omitempty"`
	IsSystemEvent         bool   `json:"isSystemEvent,omitempty"`
	ShouldDiscardOnRepeat bool   `json:"shouldDiscardOnRepeat,omitempty"`
}

func (e ClusterEvent) ToJSONValue() (any, error) {
	return e, nil
}

// Map 临时拼装的事件
type Map map[string]any

func (m Map) ToJSONValue() (any, error) {
	if m == nil {
		return map[string]any{}, nil
	}
	return map[string]any(m), nil
}

// Raw 已经序列化好的json对象
type Raw json.RawMessage

func (r Raw) ToJSONValue() (any, error) {
	return json.RawMessage(r), nil
}

// Marshal 序列化事件，结果一定是一个json对象
func Marshal(ev Event) ([]byte, error) {
	if ev == nil {
		return nil, fmt.Errorf("%w: nil event", network.ErrSerialization)
	}
	v, err := ev.ToJSONValue()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", network.ErrSerialization, err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", network.ErrSerialization, err)
	}
	if len(data) == 0 || data[0] != '{' {
		return nil, fmt.Errorf("%w: event is %s, not a json object", network.ErrSerialization, kindOf(data))
	}
	return data, nil
}

func kindOf(data []byte) string {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return "empty"
	}
	switch data[0] {
	case '[':
		return "an array"
	case '"':
		return "a string"
	case 'n':
		return "null"
	case 't', 'f':
		return "a bool"
	default:
		return "a number"
	}
}
