package scheduler

import (
	"context"
	"fmt"
	"time"

	"SOSRelay/pkg/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Cron 基于 robfig/cron 的定时任务，任务在 Stop 时收到取消信号
type Cron struct {
	c       *cron.Cron
	loc     *time.Location
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

// zapCronLogger 将 cron 内部日志转到 zap
type zapCronLogger struct{}

func (zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Error("cron: "+msg, append(kvFields(keysAndValues), zap.Error(err))...)
}

func kvFields(kv []interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, zap.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return fields
}

// NewCron timeout>0 时每次执行都带超时，防止任务堆积
func NewCron(loc *time.Location, timeout time.Duration) *Cron {
	if loc == nil {
		loc = time.Local
	}
	l := zapCronLogger{}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)
	ctx, cancel := context.WithCancel(context.Background())
	return &Cron{c: c, loc: loc, ctx: ctx, cancel: cancel, timeout: timeout}
}

func (cr *Cron) Start() { cr.c.Start() }

// Stop 取消正在运行的任务并等待其退出
func (cr *Cron) Stop() {
	cr.cancel()
	<-cr.c.Stop().Done()
}

func (cr *Cron) Add(expr string, job Job) (cron.EntryID, error) {
	return cr.c.AddFunc(expr, func() {
		ctx, cancel := cr.jobContext()
		defer cancel()
		job.Run(ctx)
	})
}

func (cr *Cron) AddFunc(expr string, fn func(ctx context.Context)) (cron.EntryID, error) {
	return cr.Add(expr, FuncJob(fn))
}

func (cr *Cron) Entries() []cron.Entry { return cr.c.Entries() }

func (cr *Cron) jobContext() (context.Context, context.CancelFunc) {
	if cr.timeout > 0 {
		return context.WithTimeout(cr.ctx, cr.timeout)
	}
	return context.WithCancel(cr.ctx)
}
