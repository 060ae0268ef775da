package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const defaultTwilioBaseURL = "https://api.twilio.com"

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	BaseURL    string // 默认 https://api.twilio.com
	// 每秒最多发送条数，<=0 不限速
	RatePerSecond float64
}

// Configured 三项凭据齐全才可用
func (c TwilioConfig) Configured() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.FromNumber != ""
}

// TwilioSMS 调用 Twilio Messages REST 接口
type TwilioSMS struct {
	cfg     TwilioConfig
	client  *http.Client
	limiter *rate.Limiter
}

func NewTwilioSMS(cfg TwilioConfig, client *http.Client) *TwilioSMS {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultTwilioBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	return &TwilioSMS{cfg: cfg, client: client, limiter: limiter}
}

type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (t *TwilioSMS) Send(ctx context.Context, to, body string) error {
	if !t.cfg.Configured() {
		return ErrNotConfigured
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}

	form := url.Values{}
	form.Set("To", FormatPhone(to))
	form.Set("From", t.cfg.FromNumber)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json",
		strings.TrimRight(t.cfg.BaseURL, "/"), url.PathEscape(t.cfg.AccountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(t.cfg.AccountSID, t.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("twilio request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var te twilioError
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &te) == nil && te.Message != "" {
			return fmt.Errorf("twilio %d: %s (code %d)", resp.StatusCode, te.Message, te.Code)
		}
		return fmt.Errorf("twilio %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return nil
}
