package log

import (
	"fmt"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type (
	Level   string
	OutType int
)

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"

	infoFileOutName  = "sender"
	errorFileOutName = "error"
	trackFileOutName = "track"

	// ConsoleOut 控制台输出
	ConsoleOut OutType = 1
	// InfoFileOut 一般日志
	InfoFileOut OutType = 2
	// ErrorFileOut 错误日志
	ErrorFileOut OutType = 4
	// TrackFileOut json日志
	TrackFileOut OutType = 8

	// NormalOut 一般输出
	NormalOut = InfoFileOut | ErrorFileOut
	// NormalOutWithTrack 有一般输出，也有json的track
	NormalOutWithTrack = NormalOut | TrackFileOut
)

var (
	levelMapping = map[Level]zapcore.Level{
		LevelDebug: zap.DebugLevel,
		LevelInfo:  zap.InfoLevel,
		LevelWarn:  zap.WarnLevel,
		LevelError: zap.ErrorLevel,
	}
	aliasMap = map[string]OutType{
		"console": ConsoleOut,
		"file":    NormalOut,
		"track":   TrackFileOut,
	}
	proxy     *loggerProxy
	buildLock sync.Mutex
)

// OutTypeAlias 文本形式的输出配置，用|分割，如 "console|file"
func OutTypeAlias(name string) OutType {
	names := strings.Split(strings.ToLower(name), "|")
	var r OutType
	for _, s := range names {
		r |= aliasMap[strings.TrimSpace(s)]
	}
	return lo.Ternary(r == 0, ConsoleOut, r)
}

// ParseLevel 解析配置中的日志等级，未知的等级返回错误
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	if l == "" {
		return LevelInfo, nil
	}
	if _, ok := levelMapping[l]; !ok {
		return "", fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}

type config struct {
	name         string
	path         string
	level        Level
	out          OutType
	maxSize      int //单位Mb，默认100
	maxAge       int //单位天，默认无限
	maxBackUps   int //最大保留旧日志个数，默认无限
	enableRotate bool
}

type loggerProxy struct {
	config
	zapLevel zap.AtomicLevel
	logger   atomic.Value
	dLogger  *zap.SugaredLogger
	nLogger  *zap.SugaredLogger
	tracker  *zap.Logger
	closers  []io.Closer
}

func (lp *loggerProxy) changeLogLevel(level Level) {
	if level == LevelDebug {
		lp.zapLevel.SetLevel(zapcore.DebugLevel)
		lp.logger.Store(lp.dLogger)
	} else {
		lp.zapLevel.SetLevel(levelMapping[level])
		lp.logger.Store(lp.nLogger)
	}
}

// ChangeLogLevel 运行时切换日志等级
func ChangeLogLevel(level Level) {
	if _, ok := levelMapping[level]; !ok {
		return
	}
	current().changeLogLevel(level)
}

// IsDebugEnabled 是否打开了debug
func IsDebugEnabled() bool {
	return current().zapLevel.Enabled(zapcore.DebugLevel)
}

// Builder 日志的构造器，配置项太多所以用链式调用
type Builder struct {
	cfg config
}

func NewBuilder() *Builder {
	return &Builder{cfg: config{level: LevelInfo, out: ConsoleOut, maxSize: 100}}
}

func (b *Builder) Name(name string) *Builder {
	b.cfg.name = name
	return b
}

// Path 日志文件路径
func (b *Builder) Path(path string) *Builder {
	b.cfg.path = path
	return b
}

func (b *Builder) Level(level Level) *Builder {
	b.cfg.level = level
	return b
}

func (b *Builder) OutType(out OutType) *Builder {
	if out <= 0 {
		out = ConsoleOut
	}
	b.cfg.out = out
	return b
}

func (b *Builder) MaxSize(size int) *Builder {
	b.cfg.maxSize = size
	return b
}

func (b *Builder) MaxAge(age int) *Builder {
	b.cfg.maxAge = age
	return b
}

func (b *Builder) MaxBackUps(count int) *Builder {
	b.cfg.maxBackUps = count
	return b
}

func (b *Builder) EnableRotate(enable bool) *Builder {
	b.cfg.enableRotate = enable
	return b
}

func getTrackEncodeConf() zapcore.EncoderConfig {
	encoderCfg := zap.NewProductionEncoderConfig()
	// meta数据，按ECS规定的格式来
	encoderCfg.TimeKey = "@timestamp"
	encoderCfg.LevelKey = "log.level"
	encoderCfg.MessageKey = "message"
	encoderCfg.EncodeTime = timeEncoder
	return encoderCfg
}

// Build 用当前配置替换全局logger，可以重复调用
// 文件打不开时返回错误，原来的logger保持不变
func (b *Builder) Build() error {
	c := b.cfg
	if _, ok := levelMapping[c.level]; !ok {
		return fmt.Errorf("unknown log level %q", c.level)
	}
	if c.out&NormalOutWithTrack > 0 && c.path == "" {
		c.path = "./log"
	}
	if c.path != "" {
		if err := os.MkdirAll(c.path, 0755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
	}
	p := &loggerProxy{config: c}
	p.zapLevel = zap.NewAtomicLevelAt(levelMapping[c.level])

	encoderCfg := getTrackEncodeConf()
	trackOut := zapcore.AddSync(os.Stdout)
	if c.out&TrackFileOut > 0 {
		w, err := p.getWriter(fileName(c.name, trackFileOutName, true))
		if err != nil {
			return err
		}
		trackOut = zapcore.AddSync(w)
	}
	p.tracker = zap.New(zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), trackOut, zap.DebugLevel))

	// 高优先级
	hp := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= zapcore.WarnLevel
	})
	all := p.zapLevel
	encoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	cores := make([]zapcore.Core, 0, 2)
	if c.out&ConsoleOut > 0 {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), all))
	}
	if c.out&InfoFileOut > 0 {
		w, err := p.getWriter(fileName(c.name, infoFileOutName, false))
		if err != nil {
			p.close()
			return err
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(w), all))
	}
	if c.out&ErrorFileOut > 0 {
		w, err := p.getWriter(fileName(c.name, errorFileOutName, true))
		if err != nil {
			p.close()
			return err
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(w), hp))
	}
	lg := zap.New(zapcore.NewTee(cores...))
	p.nLogger = lg.Sugar()
	// debug模式下打印调用位置
	p.dLogger = lg.WithOptions(zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
	p.changeLogLevel(c.level)

	buildLock.Lock()
	old := proxy
	proxy = p
	buildLock.Unlock()
	old.sync()
	old.close()
	return nil
}

func fileName(name, suffix string, join bool) string {
	if name == "" {
		return suffix + ".log"
	}
	return lo.Ternary(join, name+"-"+suffix, name) + ".log"
}

func timeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02T15:04:05.000Z"))
}

func (lp *loggerProxy) getWriter(name string) (io.Writer, error) {
	fullName := filepath.Join(lp.path, name)
	if !lp.enableRotate {
		f, err := os.OpenFile(fullName, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", fullName, err)
		}
		lp.closers = append(lp.closers, f)
		return f, nil
	}
	w := &lumberjack.Logger{
		Filename:   fullName,
		MaxSize:    lp.maxSize,
		MaxAge:     lp.maxAge,
		MaxBackups: lp.maxBackUps,
	}
	lp.closers = append(lp.closers, w)
	return w, nil
}

func (lp *loggerProxy) sync() {
	if lp == nil {
		return
	}
	_ = lp.dLogger.Sync()
	_ = lp.nLogger.Sync()
	_ = lp.tracker.Sync()
}

func (lp *loggerProxy) close() {
	if lp == nil {
		return
	}
	for _, c := range lp.closers {
		_ = c.Close()
	}
	lp.closers = nil
}

func current() *loggerProxy {
	buildLock.Lock()
	defer buildLock.Unlock()
	return proxy
}

func sugar() *zap.SugaredLogger {
	return current().logger.Load().(*zap.SugaredLogger)
}

// Debug 会调试模式下打印caller，其他忽略，减少开销
func Debug(format string, a ...any) {
	sugar().Debugf(format, a...)
}

func Info(format string, a ...any) {
	sugar().Infof(format, a...)
}

func Warn(format string, a ...any) {
	sugar().Warnf(format, a...)
}

func Error(format string, a ...any) {
	sugar().Errorf(format, a...)
}

// JsonWith 设置默认的field，如连接名称等
func JsonWith(fields ...zap.Field) *zap.Logger {
	return current().tracker.With(fields...)
}

// JsonInfo 会输出json格式的日志，json日志在单独的文件里
func JsonInfo(msg string, fields ...zap.Field) {
	current().tracker.Info(msg, fields...)
}

func JsonError(msg string, fields ...zap.Field) {
	current().tracker.Error(msg, fields...)
}

// PanicStack 从panic中恢复并打印日志
// 注意recover必须在当前函数调用
func PanicStack(prefix string, r any) {
	buf := make([]byte, 4096)
	l := runtime.Stack(buf, false)
	Error("%s: %v-> %s", prefix, r, buf[:l])
}

func Flush() {
	current().sync()
}

func init() {
	// 默认情况下初始化一个仅输出到控制台的日志方便测试
	p := &loggerProxy{config: config{level: LevelDebug, out: ConsoleOut}}
	p.zapLevel = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	encoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	lg := zap.New(zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), p.zapLevel))
	p.nLogger = lg.Sugar()
	p.dLogger = lg.WithOptions(zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
	p.tracker = zap.New(
		zapcore.NewCore(zapcore.NewJSONEncoder(getTrackEncodeConf()),
			zapcore.AddSync(os.Stdout),
			zap.DebugLevel))
	p.logger.Store(p.dLogger)
	proxy = p
}
