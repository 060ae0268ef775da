package config

import (
	"testing"
	"time"

	"SOSRelay/pkg/cache"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"DB_DRIVER", "API_PREFIX", "SOS_AUDIENCE_POLICY", "SOS_ALERT_RADIUS_KM", "SOS_SEND_TIMEOUT", "CACHE_TYPE", "TWILIO_ACCOUNT_SID", "FCM_CREDENTIALS_FILE", "GOOGLE_APPLICATION_CREDENTIALS"} {
		t.Setenv(k, "")
	}
	cfg := FromEnv()
	assert.Equal(t, "memory", cfg.DBDriver)
	assert.Equal(t, "/api", cfg.APIPrefix)
	assert.Equal(t, "all", cfg.AudiencePolicy)
	assert.Equal(t, 2.0, cfg.AlertRadiusKm)
	assert.Equal(t, 3*time.Second, cfg.SendTimeout)
	assert.Equal(t, 5*time.Second, cfg.DispatchBudget)
	assert.Equal(t, 10*time.Second, cfg.IdempotencyTTL)
	assert.Equal(t, cache.TypeGoCache, cfg.Cache.Type)
	assert.False(t, cfg.Twilio.Configured())
	assert.False(t, cfg.FCM.Configured())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SOS_AUDIENCE_POLICY", "radius")
	t.Setenv("SOS_ALERT_RADIUS_KM", "5.5")
	t.Setenv("SOS_SEND_TIMEOUT", "750ms")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("CACHE_TYPE", "redis")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("TWILIO_ACCOUNT_SID", "AC1")
	t.Setenv("TWILIO_AUTH_TOKEN", "tok")
	t.Setenv("TWILIO_PHONE_NUMBER", "+15550001111")

	cfg := FromEnv()
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "radius", cfg.AudiencePolicy)
	assert.Equal(t, 5.5, cfg.AlertRadiusKm)
	assert.Equal(t, 750*time.Millisecond, cfg.SendTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, "redis", cfg.Cache.Type)
	assert.Equal(t, "redis:6379", cfg.Cache.Redis.Addr)
	assert.True(t, cfg.Twilio.Configured())
}

func TestFCMCredentialsFallback(t *testing.T) {
	t.Setenv("FCM_CREDENTIALS_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "/etc/sos/sa.json")
	t.Setenv("FCM_PROJECT_ID", "sos-prod")
	cfg := FromEnv()
	assert.True(t, cfg.FCM.Configured())
	assert.Equal(t, "/etc/sos/sa.json", cfg.FCM.CredentialsFile)
	assert.Equal(t, "sos-prod", cfg.FCM.ProjectID)

	t.Setenv("FCM_CREDENTIALS_FILE", "/etc/sos/fcm.json")
	assert.Equal(t, "/etc/sos/fcm.json", FromEnv().FCM.CredentialsFile)
}
