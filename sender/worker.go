package sender

import (
	"context"
	"github.com/YiuTerran/cluster-event-sender/base/log"
	"github.com/YiuTerran/cluster-event-sender/event"
	"go.uber.org/zap"
	"sync"
)

type job struct {
	ctx     context.Context
	address string
	port    int
	ev      event.Event
	cb      func(error)
}

// Worker 用独立的协程串行地驱动一个Session，调用方不会被连接和写入阻塞
type Worker struct {
	sync.RWMutex
	session   *Session
	jobs      chan job
	wg        sync.WaitGroup
	closeFlag bool
}

// NewWorker 打开session并启动发送协程，queueSize是排队的最大事件数
func NewWorker(session *Session, queueSize int) (*Worker, error) {
	if err := session.Open(); err != nil {
		return nil, err
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	w := &Worker{
		session: session,
		jobs:    make(chan job, queueSize),
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

func (w *Worker) run() {
	defer w.wg.Done()
	for j := range w.jobs {
		err := w.session.SendEventToContext(j.ctx, j.address, j.port, j.ev)
		if j.cb != nil {
			w.callback(j.cb, err)
		}
	}
}

func (w *Worker) callback(cb func(error), err error) {
	defer func() {
		if r := recover(); r != nil {
			log.PanicStack("send callback", r)
		}
	}()
	cb(err)
}

// Post 排队一个事件，cb在发送协程里调用，可以为nil
func (w *Worker) Post(address string, port int, ev event.Event, cb func(error)) error {
	return w.PostContext(context.Background(), address, port, ev, cb)
}

func (w *Worker) PostContext(ctx context.Context, address string, port int, ev event.Event, cb func(error)) error {
	w.RLock()
	defer w.RUnlock()
	if w.closeFlag {
		return ErrWorkerClosed
	}
	select {
	case w.jobs <- job{ctx: ctx, address: address, port: port, ev: ev, cb: cb}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close 发送完已经排队的事件后关闭session
func (w *Worker) Close() {
	w.Lock()
	if w.closeFlag {
		w.Unlock()
		return
	}
	w.closeFlag = true
	close(w.jobs)
	w.Unlock()

	w.wg.Wait()
	w.session.Close()
	stats := w.session.Stats()
	log.JsonWith(zap.String("sender", w.session.Name())).Info("worker closed",
		zap.Int64("frames", stats.FramesSent),
		zap.Int64("bytes", stats.BytesSent),
		zap.Int64("failures", stats.Failures))
}

func (w *Worker) Session() *Session {
	return w.session
}
