package log

import (
	"fmt"
	"sort"
	"strings"
)

// Fields 上下文结构，方便在结构体之间传递信息
// 模仿logrus，非线程安全
type Fields map[string]any

const (
	prefixKey = "__prefix__"
)

// String 前缀在最前面，其他字段按key排序，保证同一个连接的日志格式稳定
func (f Fields) String() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		if k != prefixKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	str := make([]string, 0, len(f))
	if prefix := f.Prefix(); prefix != "" {
		str = append(str, fmt.Sprintf("[%s]", prefix))
	}
	for _, k := range keys {
		str = append(str, fmt.Sprintf("%s=%+v", k, f[k]))
	}
	return strings.Join(str, " ")
}

func (f Fields) prepend(format string) string {
	if len(f) == 0 {
		return format
	}
	return strings.ReplaceAll(f.String(), "%", "%%") + " " + format
}

func (f Fields) WithPrefix(prefix string) Fields {
	return MergeFields(f, Fields{prefixKey: prefix})
}

func (f Fields) WithField(key string, value any) Fields {
	return MergeFields(f, Fields{key: value})
}

// MergeFields 合并，结果不影响原来的数据
// 不要直接修改f，防止并发问题
func MergeFields(f Fields, fields ...Fields) Fields {
	all := make(Fields, len(f))
	for k, v := range f {
		all[k] = v
	}
	for _, field := range fields {
		for k, v := range field {
			all[k] = v
		}
	}
	return all
}

func (f Fields) WithFields(fields ...Fields) Fields {
	return MergeFields(f, fields...)
}

func (f Fields) Prefix() string {
	if prefix, ok := f[prefixKey].(string); ok {
		return prefix
	}
	return ""
}

func (f Fields) Debug(format string, a ...any) {
	Debug(f.prepend(format), a...)
}

func (f Fields) Info(format string, a ...any) {
	Info(f.prepend(format), a...)
}

func (f Fields) Warn(format string, a ...any) {
	Warn(f.prepend(format), a...)
}

func (f Fields) Error(format string, a ...any) {
	Error(f.prepend(format), a...)
}
