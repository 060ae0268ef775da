package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestFormatPhone(t *testing.T) {
	cases := map[string]string{
		"0300-1234567":   "+923001234567",
		"+92 300 123456": "+92300123456",
		"3001234567":     "+923001234567",
		"+14155550100":   "+14155550100",
		"":               "",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatPhone(in), in)
	}
}

func TestTwilioSend(t *testing.T) {
	var gotPath, gotTo, gotBody, gotUser string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, _, _ = r.BasicAuth()
		require.NoError(t, r.ParseForm())
		gotTo = r.PostForm.Get("To")
		gotBody = r.PostForm.Get("Body")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM1","status":"queued"}`))
	}))
	defer srv.Close()

	sms := NewTwilioSMS(TwilioConfig{
		AccountSID: "AC123", AuthToken: "secret", FromNumber: "+15005550006", BaseURL: srv.URL,
	}, srv.Client())

	require.NoError(t, sms.Send(context.Background(), "03001234567", "help"))
	assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", gotPath)
	assert.Equal(t, "AC123", gotUser)
	assert.Equal(t, "+923001234567", gotTo)
	assert.Equal(t, "help", gotBody)
}

func TestTwilioErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"Invalid 'To' Phone Number"}`))
	}))
	defer srv.Close()

	sms := NewTwilioSMS(TwilioConfig{AccountSID: "AC1", AuthToken: "t", FromNumber: "+1", BaseURL: srv.URL}, nil)
	err := sms.Send(context.Background(), "123", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "21211")
}

func TestUnconfiguredSenders(t *testing.T) {
	assert.ErrorIs(t, NewTwilioSMS(TwilioConfig{}, nil).Send(context.Background(), "1", "x"), ErrNotConfigured)
	push, err := NewFCMPush(FCMConfig{}, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, push.Send(context.Background(), "tok", "t", "b", nil), ErrNotConfigured)
}

func TestFCMSend(t *testing.T) {
	var got fcmRequest
	var auth, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		if got.Message.Token == "bad" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Requested entity was not found.","status":"NOT_FOUND","details":[{"@type":"type.googleapis.com/google.firebase.fcm.v1.FcmError","errorCode":"UNREGISTERED"}]}}`))
			return
		}
		_, _ = w.Write([]byte(`{"name":"projects/sos-test/messages/1"}`))
	}))
	defer srv.Close()

	push, err := NewFCMPush(FCMConfig{
		ProjectID:   "sos-test",
		Endpoint:    srv.URL + "/",
		TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "access-1", TokenType: "Bearer"}),
	}, srv.Client())
	require.NoError(t, err)

	err = push.Send(context.Background(), "tok", "🚨 Emergency Alert Nearby", "body", map[string]string{"type": "sos_alert"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer access-1", auth)
	assert.Equal(t, "/v1/projects/sos-test/messages:send", path)
	assert.Equal(t, "tok", got.Message.Token)
	assert.Equal(t, "🚨 Emergency Alert Nearby", got.Message.Notification.Title)
	assert.Equal(t, "sos_alert", got.Message.Data["type"])
	assert.Equal(t, "high", got.Message.Android.Priority)
	assert.Equal(t, "10", got.Message.APNS.Headers["apns-priority"])

	err = push.Send(context.Background(), "bad", "t", "b", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNREGISTERED")
}

func TestFCMRequiresProject(t *testing.T) {
	_, err := NewFCMPush(FCMConfig{TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "a"})}, nil)
	assert.Error(t, err)

	_, err = NewFCMPush(FCMConfig{CredentialsFile: filepath.Join(t.TempDir(), "missing.json")}, nil)
	assert.Error(t, err)
}

func TestLogSendersHonourContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	assert.NoError(t, LogSMS{}.Send(ctx, "1", "x"))
	cancel()
	assert.Error(t, LogSMS{}.Send(ctx, "1", "x"))
	assert.Error(t, LogPush{}.Send(ctx, "t", "a", "b", nil))
}
