// Package dispatch fans one lifecycle change out over SMS, push and the live
// channel. Every send is independent: a failure or timeout only increments
// the channel's failed counter and never reaches the caller.
package dispatch

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	"SOSRelay/pkg/logger"
	"SOSRelay/pkg/notification"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	ChannelSMS  = "sms"
	ChannelPush = "push"
	ChannelLive = "live"
)

type Config struct {
	// SendTimeout bounds every single send.
	SendTimeout time.Duration
	// MaxConcurrency caps in-flight sends per fan-out.
	MaxConcurrency int
}

func DefaultConfig() Config {
	return Config{SendTimeout: 3 * time.Second, MaxConcurrency: 32}
}

type ChannelReport struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

type Report struct {
	SMS  ChannelReport `json:"sms"`
	Push ChannelReport `json:"push"`
	Live ChannelReport `json:"live"`
}

// Add sums two reports.
func (r Report) Add(o Report) Report {
	return Report{
		SMS:  ChannelReport{Sent: r.SMS.Sent + o.SMS.Sent, Failed: r.SMS.Failed + o.SMS.Failed},
		Push: ChannelReport{Sent: r.Push.Sent + o.Push.Sent, Failed: r.Push.Failed + o.Push.Failed},
		Live: ChannelReport{Sent: r.Live.Sent + o.Live.Sent, Failed: r.Live.Failed + o.Live.Failed},
	}
}

// LiveChannel is the subset of the presence registry dispatch needs.
type LiveChannel interface {
	IsConnected(userID string) bool
	SendRaw(userID string, data []byte) bool
}

// Recorder receives per-send results and fan-out timings.
type Recorder interface {
	RecordSend(channel string, ok bool)
	ObserveFanOut(kind string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordSend(string, bool)             {}
func (nopRecorder) ObserveFanOut(string, time.Duration) {}

type Dispatcher struct {
	sms  notification.SMSSender
	push notification.PushSender
	live LiveChannel
	rec  Recorder
	cfg  Config
}

func New(sms notification.SMSSender, push notification.PushSender, live LiveChannel, rec Recorder, cfg Config) *Dispatcher {
	def := DefaultConfig()
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = def.SendTimeout
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = def.MaxConcurrency
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Dispatcher{sms: sms, push: push, live: live, rec: rec, cfg: cfg}
}

type task struct {
	channel string
	// recipient is a user id, or "<requesterId>/contact" for emergency contacts
	recipient string
	target    string
	send      func(ctx context.Context) error
}

type counter struct {
	sent, failed atomic.Int64
}

func (c *counter) report() ChannelReport {
	return ChannelReport{Sent: int(c.sent.Load()), Failed: int(c.failed.Load())}
}

// run executes every task concurrently under the concurrency cap and settles
// all of them. A task that outlives SendTimeout is abandoned and counted failed.
func (d *Dispatcher) run(ctx context.Context, kind string, tasks []task) Report {
	start := time.Now()
	counters := map[string]*counter{
		ChannelSMS:  {},
		ChannelPush: {},
		ChannelLive: {},
	}

	var g errgroup.Group
	g.SetLimit(d.cfg.MaxConcurrency)
	for _, t := range tasks {
		t := t
		g.Go(func() error {
			err := d.attempt(ctx, t)
			ok := err == nil
			if ok {
				counters[t.channel].sent.Add(1)
			} else {
				counters[t.channel].failed.Add(1)
				logger.Warn("notification failed",
					zap.String("kind", kind),
					zap.String("channel", t.channel),
					zap.String("recipient", t.recipient),
					zap.String("target", mask(t.target)),
					zap.Error(err))
			}
			d.rec.RecordSend(t.channel, ok)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{
		SMS:  counters[ChannelSMS].report(),
		Push: counters[ChannelPush].report(),
		Live: counters[ChannelLive].report(),
	}
	elapsed := time.Since(start)
	d.rec.ObserveFanOut(kind, elapsed)
	logger.Info("fan-out settled",
		zap.String("kind", kind),
		zap.Int("tasks", len(tasks)),
		zap.Any("report", report),
		zap.Duration("elapsed", elapsed))
	return report
}

func (d *Dispatcher) attempt(ctx context.Context, t task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tctx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- t.send(tctx) }()
	select {
	case err := <-done:
		return err
	case <-tctx.Done():
		return tctx.Err()
	}
}

// mask keeps the last four characters of a phone number or device token.
func mask(s string) string {
	const keep = 4
	if len(s) <= keep {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-keep) + s[len(s)-keep:]
}

func (d *Dispatcher) smsTask(recipient, to, body string) task {
	return task{channel: ChannelSMS, recipient: recipient, target: to, send: func(ctx context.Context) error {
		return d.sms.Send(ctx, to, body)
	}}
}

func (d *Dispatcher) pushTask(recipient, token, title, body string, data map[string]string) task {
	return task{channel: ChannelPush, recipient: recipient, target: token, send: func(ctx context.Context) error {
		return d.push.Send(ctx, token, title, body, data)
	}}
}

// liveTasks targets only users with an open channel; the rest are not attempted.
func (d *Dispatcher) liveTasks(userIDs []string, msg interface{}) []task {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Error("marshal live message", zap.Error(err))
		return nil
	}
	var tasks []task
	for _, id := range userIDs {
		if !d.live.IsConnected(id) {
			continue
		}
		id := id
		tasks = append(tasks, task{channel: ChannelLive, recipient: id, target: id, send: func(context.Context) error {
			if !d.live.SendRaw(id, data) {
				return errLiveNotDelivered
			}
			return nil
		}})
	}
	return tasks
}
