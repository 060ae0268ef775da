package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"SOSRelay/internal/models"
	"SOSRelay/pkg/geo"
	"SOSRelay/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeSMS struct {
	mu   sync.Mutex
	fail map[string]bool
	sent map[string]string
}

func (f *fakeSMS) Send(ctx context.Context, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[to] {
		return errors.New("carrier rejected")
	}
	if f.sent == nil {
		f.sent = map[string]string{}
	}
	f.sent[to] = body
	return nil
}

type fakePush struct {
	mu    sync.Mutex
	fail  map[string]bool
	block bool
	calls []string
	data  map[string]map[string]string
}

func (f *fakePush) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	f.mu.Lock()
	f.calls = append(f.calls, token)
	if f.data == nil {
		f.data = map[string]map[string]string{}
	}
	f.data[token] = data
	fail, block := f.fail[token], f.block
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	if fail {
		return errors.New("push provider down")
	}
	return nil
}

type fakeLive struct {
	mu        sync.Mutex
	connected map[string]bool
	full      map[string]bool
	got       map[string][][]byte
}

func (f *fakeLive) IsConnected(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected[id]
}

func (f *fakeLive) SendRaw(id string, data []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full[id] {
		return false
	}
	if f.got == nil {
		f.got = map[string][][]byte{}
	}
	f.got[id] = append(f.got[id], data)
	return true
}

type countingRecorder struct {
	mu    sync.Mutex
	sends map[string]int
	kinds []string
}

func (c *countingRecorder) RecordSend(channel string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sends == nil {
		c.sends = map[string]int{}
	}
	c.sends[channel]++
}

func (c *countingRecorder) ObserveFanOut(kind string, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kinds = append(c.kinds, kind)
}

func event() *models.SosEvent {
	return &models.SosEvent{
		ID:       "evt-1",
		UserID:   "requester",
		Location: geo.Coordinate{Lat: 31.5204, Lng: 74.3587},
		Status:   models.EventActive,
	}
}

func helper(id, token string, km float64) Helper {
	return Helper{User: &models.User{ID: id, Phone: "+92" + id, PushToken: token}, DistanceKm: &km}
}

func TestPushPartialFailure(t *testing.T) {
	push := &fakePush{fail: map[string]bool{"tok-2": true}}
	d := New(&fakeSMS{}, push, &fakeLive{}, nil, Config{})

	requester := &models.User{ID: "requester", Name: "Ayesha"}
	report := d.FanOutTrigger(context.Background(), event(), requester, []Helper{
		helper("1", "tok-1", 0.5),
		helper("2", "tok-2", 1.0),
		helper("3", "tok-3", 1.5),
	})

	assert.Equal(t, ChannelReport{Sent: 2, Failed: 1}, report.Push)
	assert.ElementsMatch(t, []string{"tok-1", "tok-2", "tok-3"}, push.calls)
	assert.Equal(t, ChannelReport{Sent: 3}, report.SMS)
	assert.Equal(t, "sos_alert", push.data["tok-1"]["type"])
	assert.Equal(t, "evt-1", push.data["tok-1"]["eventId"])
	assert.Equal(t, "0.5", push.data["tok-1"]["distance"])
}

func TestEmptyAudienceYieldsZeroCounts(t *testing.T) {
	rec := &countingRecorder{}
	d := New(&fakeSMS{}, &fakePush{}, &fakeLive{}, rec, Config{})
	report := d.FanOutTrigger(context.Background(), event(), &models.User{ID: "requester", Name: "A"}, nil)

	assert.Equal(t, Report{}, report)
	assert.Equal(t, []string{"trigger"}, rec.kinds)
}

func TestContactsAndHelperMessages(t *testing.T) {
	sms := &fakeSMS{fail: map[string]bool{"+92bad": true}}
	d := New(sms, &fakePush{}, &fakeLive{}, nil, Config{})

	e := event()
	e.Address = "Liberty Market"
	requester := &models.User{
		ID:   "requester",
		Name: "Ayesha",
		EmergencyContacts: []models.EmergencyContact{
			{Name: "Mom", Phone: "+92mom"},
			{Name: "Bad", Phone: "+92bad"},
		},
	}
	noLocation := Helper{User: &models.User{ID: "h", Phone: "+92h"}}

	report := d.FanOutTrigger(context.Background(), e, requester, []Helper{noLocation})

	assert.Equal(t, ChannelReport{Sent: 2, Failed: 1}, report.SMS)
	assert.Equal(t, ChannelReport{}, report.Push)
	assert.Contains(t, sms.sent["+92mom"], "EMERGENCY ALERT: Ayesha has triggered an SOS alert. Location: Liberty Market.")
	assert.Contains(t, sms.sent["+92h"], "SOS HELP NEEDED: Ayesha needs emergency help!")
}

func TestLocationText(t *testing.T) {
	assert.Equal(t, "31.5204, 74.3587", LocationText(event()))
}

func TestLiveOnlyToConnected(t *testing.T) {
	live := &fakeLive{
		connected: map[string]bool{"1": true, "3": true},
		full:      map[string]bool{"3": true},
	}
	d := New(&fakeSMS{}, &fakePush{}, live, nil, Config{})

	report := d.FanOutTrigger(context.Background(), event(), &models.User{ID: "requester", Name: "A"}, []Helper{
		helper("1", "", 0.2),
		helper("2", "", 0.4),
		helper("3", "", 0.6),
	})

	assert.Equal(t, ChannelReport{Sent: 1, Failed: 1}, report.Live)
	require.Len(t, live.got["1"], 1)

	var msg AlertMessage
	require.NoError(t, json.Unmarshal(live.got["1"][0], &msg))
	assert.Equal(t, TypeSosAlert, msg.Type)
	assert.Equal(t, "evt-1", msg.Event.ID)
	assert.Equal(t, "A", msg.Requester.Name)
	require.Len(t, msg.Distances, 3)
	assert.InDelta(t, 0.4, *msg.Distances[1].DistanceKm, 1e-9)
}

func TestSlowSenderTimesOut(t *testing.T) {
	push := &fakePush{block: true}
	d := New(&fakeSMS{}, push, &fakeLive{}, nil, Config{SendTimeout: 50 * time.Millisecond, MaxConcurrency: 4})

	helpers := make([]Helper, 8)
	for i := range helpers {
		helpers[i] = helper(string(rune('a'+i)), "tok", 1)
	}

	start := time.Now()
	report := d.FanOutTrigger(context.Background(), event(), &models.User{ID: "requester"}, helpers)
	elapsed := time.Since(start)

	assert.Equal(t, ChannelReport{Failed: 8}, report.Push)
	assert.Equal(t, ChannelReport{Sent: 8}, report.SMS)
	assert.Less(t, elapsed, time.Second)
}

func TestCancelledContextCountsFailed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := New(&fakeSMS{}, &fakePush{}, &fakeLive{}, nil, Config{})

	report := d.FanOutTrigger(ctx, event(), &models.User{ID: "requester"}, []Helper{helper("1", "tok", 1)})
	assert.Equal(t, ChannelReport{Failed: 1}, report.Push)
	assert.Equal(t, ChannelReport{Failed: 1}, report.SMS)
}

func TestResponseAndResolution(t *testing.T) {
	live := &fakeLive{connected: map[string]bool{"requester": true, "r1": true, "r2": true}}
	rec := &countingRecorder{}
	d := New(&fakeSMS{}, &fakePush{}, live, rec, Config{})
	e := event()

	report := d.FanOutResponse(context.Background(), e, &models.User{ID: "r1", Name: "Bilal"}, 1.25, models.ResponseResponding)
	assert.Equal(t, ChannelReport{Sent: 1}, report.Live)
	require.Len(t, live.got["requester"], 1)

	var upd ResponderUpdateMessage
	require.NoError(t, json.Unmarshal(live.got["requester"][0], &upd))
	assert.Equal(t, TypeResponderUpdate, upd.Type)
	assert.Equal(t, "evt-1", upd.EventID)
	assert.Equal(t, "Bilal", upd.Responder.Name)
	assert.Equal(t, 1.25, upd.Responder.DistanceKm)

	report = d.FanOutResolution(context.Background(), e, []string{"requester", "r1", "r2", "offline"})
	assert.Equal(t, ChannelReport{Sent: 3}, report.Live)

	var resolved EventMessage
	require.NoError(t, json.Unmarshal(live.got["r2"][0], &resolved))
	assert.Equal(t, EventMessage{Type: TypeSosResolved, EventID: "evt-1"}, resolved)
	assert.Equal(t, 4, rec.sends[ChannelLive])

	report = d.FanOutCancellation(context.Background(), e, []string{"r1"})
	assert.Equal(t, ChannelReport{Sent: 1}, report.Live)
}

func TestReportAdd(t *testing.T) {
	a := Report{SMS: ChannelReport{Sent: 1}, Live: ChannelReport{Failed: 2}}
	b := Report{SMS: ChannelReport{Sent: 2, Failed: 1}, Push: ChannelReport{Sent: 4}}
	assert.Equal(t, Report{
		SMS:  ChannelReport{Sent: 3, Failed: 1},
		Push: ChannelReport{Sent: 4},
		Live: ChannelReport{Failed: 2},
	}, a.Add(b))
}

func TestFailedSendLogsRecipientNotTarget(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	prev := logger.Lg
	logger.Lg = zap.New(core)
	defer func() { logger.Lg = prev }()

	sms := &fakeSMS{fail: map[string]bool{"+923001234567": true}}
	push := &fakePush{fail: map[string]bool{"device-token-abcdef": true}}
	d := New(sms, push, &fakeLive{}, nil, Config{})

	requester := &models.User{
		ID:                "requester",
		EmergencyContacts: []models.EmergencyContact{{Name: "Ammi", Phone: "+923001234567"}},
	}
	d.FanOutTrigger(context.Background(), event(), requester, []Helper{
		{User: &models.User{ID: "helper-1", PushToken: "device-token-abcdef"}},
	})

	failures := logs.FilterMessage("notification failed").All()
	require.Len(t, failures, 2)
	recipients := map[string]string{}
	for _, entry := range failures {
		fields := entry.ContextMap()
		recipients[fields["recipient"].(string)] = fields["target"].(string)
	}
	assert.Equal(t, "*********4567", recipients["requester/contact"])
	assert.Equal(t, "***************cdef", recipients["helper-1"])
}

func TestMask(t *testing.T) {
	assert.Equal(t, "", mask(""))
	assert.Equal(t, "***", mask("abc"))
	assert.Equal(t, "****", mask("abcd"))
	assert.Equal(t, "*bcde", mask("abcde"))
}
