package sender

import (
	"fmt"
	"github.com/YiuTerran/cluster-event-sender/base/log"
	"github.com/spf13/viper"
	"strings"
	"time"
)

// EnvPrefix 环境变量前缀，如 EVENTSEND_CONNECT_ATTEMPTS、EVENTSEND_LOG_LEVEL
const EnvPrefix = "EVENTSEND"

type LogConfig struct {
	Name       string `mapstructure:"name"`
	Path       string `mapstructure:"path"`
	Level      string `mapstructure:"level"`
	Out        string `mapstructure:"out"`
	Rotate     bool   `mapstructure:"rotate"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// Config 会话的配置文件结构
type Config struct {
	Name            string        `mapstructure:"name"`
	BufferSize      int           `mapstructure:"buffer_size"`
	LittleEndian    bool          `mapstructure:"little_endian"`
	ConnectAttempts int           `mapstructure:"connect_attempts"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	QueueSize       int           `mapstructure:"queue_size"`
	Log             LogConfig     `mapstructure:"log"`
}

var defaults = map[string]any{
	"name":             "Sender",
	"buffer_size":      4 * 1024 * 1024,
	"little_endian":    false,
	"connect_attempts": 1,
	"retry_delay":      "0s",
	"dial_timeout":     "0s",
	"write_timeout":    "0s",
	"queue_size":       64,
	"log.name":         "",
	"log.path":         "",
	"log.level":        "info",
	"log.out":          "console",
	"log.rotate":       false,
	"log.max_size":     100,
	"log.max_age":      0,
	"log.max_backups":  0,
}

// NewViper 带默认值和环境变量绑定的viper
func NewViper() *viper.Viper {
	vp := viper.New()
	for k, v := range defaults {
		vp.SetDefault(k, v)
	}
	vp.SetEnvPrefix(EnvPrefix)
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()
	return vp
}

// LoadConfig 读取配置文件，path为空时只用默认值和环境变量
// 文件类型由扩展名决定，支持viper支持的所有格式
func LoadConfig(path string) (*Config, error) {
	vp := NewViper()
	if path != "" {
		vp.SetConfigFile(path)
		if err := vp.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return ConfigFromViper(vp)
}

func ConfigFromViper(vp *viper.Viper) (*Config, error) {
	cfg := new(Config)
	if err := vp.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.BufferSize <= 0 {
		return fmt.Errorf("buffer_size must be positive, got %d", c.BufferSize)
	}
	if c.RetryDelay < 0 || c.DialTimeout < 0 || c.WriteTimeout < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("queue_size must not be negative, got %d", c.QueueSize)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// Options 转为Session的选项
func (c *Config) Options() []Option {
	return []Option{
		Name(c.Name),
		BufferSize(c.BufferSize),
		LittleEndian(c.LittleEndian),
		ConnectRetry(c.ConnectAttempts, c.RetryDelay),
		DialTimeout(c.DialTimeout),
		WriteTimeout(c.WriteTimeout),
	}
}

// Build 按配置初始化全局日志
func (c LogConfig) Build() error {
	level, err := log.ParseLevel(c.Level)
	if err != nil {
		return err
	}
	return log.NewBuilder().
		Name(c.Name).
		Path(c.Path).
		Level(level).
		OutType(log.OutTypeAlias(c.Out)).
		EnableRotate(c.Rotate).
		MaxSize(c.MaxSize).
		MaxAge(c.MaxAge).
		MaxBackUps(c.MaxBackups).
		Build()
}
