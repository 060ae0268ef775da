package notification

import (
	"context"
	"errors"

	"SOSRelay/pkg/logger"

	"go.uber.org/zap"
)

// ErrNotConfigured 渠道缺少必要的凭据
var ErrNotConfigured = errors.New("notification channel not configured")

// SMSSender 短信发送渠道，单次调用失败只影响该条
type SMSSender interface {
	Send(ctx context.Context, to, body string) error
}

// PushSender 设备推送渠道
type PushSender interface {
	Send(ctx context.Context, token, title, body string, data map[string]string) error
}

// LogSMS 未配置短信服务时只写日志
type LogSMS struct{}

func (LogSMS) Send(ctx context.Context, to, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	logger.Info("sms (log only)", zap.String("to", to), zap.String("body", body))
	return nil
}

// LogPush 未配置推送服务时只写日志
type LogPush struct{}

func (LogPush) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	logger.Info("push (log only)",
		zap.String("token", token),
		zap.String("title", title),
		zap.String("body", body),
		zap.Any("data", data))
	return nil
}
