package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	defaultFCMEndpoint = "https://fcm.googleapis.com"
	fcmScope           = "https://www.googleapis.com/auth/firebase.messaging"
)

type FCMConfig struct {
	ProjectID       string // 为空时取服务账号里的 project_id
	CredentialsFile string // 服务账号 JSON
	Endpoint        string // 默认 https://fcm.googleapis.com
	// TokenSource 非空时不再读取 CredentialsFile
	TokenSource oauth2.TokenSource
}

func (c FCMConfig) Configured() bool {
	return c.CredentialsFile != "" || c.TokenSource != nil
}

// FCMPush 通过 FCM HTTP v1 接口推送到单个设备，鉴权用服务账号 OAuth2 令牌
type FCMPush struct {
	cfg    FCMConfig
	client *http.Client
}

// NewFCMPush 未配置时返回的实例 Send 一律 ErrNotConfigured
func NewFCMPush(cfg FCMConfig, client *http.Client) (*FCMPush, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultFCMEndpoint
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if !cfg.Configured() {
		return &FCMPush{cfg: cfg, client: client}, nil
	}

	if cfg.TokenSource == nil {
		raw, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read fcm credentials: %w", err)
		}
		creds, err := google.CredentialsFromJSON(context.Background(), raw, fcmScope)
		if err != nil {
			return nil, fmt.Errorf("parse fcm credentials: %w", err)
		}
		cfg.TokenSource = creds.TokenSource
		if cfg.ProjectID == "" {
			cfg.ProjectID = creds.ProjectID
		}
	}
	if cfg.ProjectID == "" {
		return nil, errors.New("fcm project id is required")
	}

	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	authed := *client
	authed.Transport = &oauth2.Transport{Source: oauth2.ReuseTokenSource(nil, cfg.TokenSource), Base: base}
	return &FCMPush{cfg: cfg, client: &authed}, nil
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmAndroid struct {
	Priority string `json:"priority"`
}

type fcmAPNS struct {
	Headers map[string]string `json:"headers"`
}

type fcmMessage struct {
	Token        string            `json:"token"`
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
	Android      fcmAndroid        `json:"android"`
	APNS         fcmAPNS           `json:"apns"`
}

type fcmRequest struct {
	Message fcmMessage `json:"message"`
}

type fcmError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			ErrorCode string `json:"errorCode"`
		} `json:"details"`
	} `json:"error"`
}

// reason 优先取 FCM 自己的 errorCode，如 UNREGISTERED
func (e fcmError) reason() string {
	for _, d := range e.Error.Details {
		if d.ErrorCode != "" {
			return d.ErrorCode
		}
	}
	if e.Error.Status != "" {
		return e.Error.Status
	}
	return e.Error.Message
}

func (f *FCMPush) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	if !f.cfg.Configured() {
		return ErrNotConfigured
	}
	payload, err := json.Marshal(fcmRequest{Message: fcmMessage{
		Token:        token,
		Notification: fcmNotification{Title: title, Body: body},
		Data:         data,
		Android:      fcmAndroid{Priority: "high"},
		APNS:         fcmAPNS{Headers: map[string]string{"apns-priority": "10"}},
	}})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/v1/projects/%s/messages:send", f.cfg.Endpoint, f.cfg.ProjectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("fcm request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}
	var out fcmError
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.reason() == "" {
		return fmt.Errorf("fcm status %d", resp.StatusCode)
	}
	return fmt.Errorf("fcm status %d: %s", resp.StatusCode, out.reason())
}
