package lifecycle

import (
	"strings"
	"time"

	"SOSRelay/pkg/errors"
)

// AudiencePolicy decides who besides emergency contacts hears about a trigger.
type AudiencePolicy string

const (
	// AudienceAll alerts every other registered user, online or not.
	AudienceAll AudiencePolicy = "all"
	// AudienceRadius alerts reachable users within Config.AlertRadiusKm.
	AudienceRadius AudiencePolicy = "radius"
)

func ParseAudiencePolicy(s string) (AudiencePolicy, error) {
	switch p := AudiencePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return AudienceAll, nil
	case AudienceAll, AudienceRadius:
		return p, nil
	default:
		return "", errors.Validation("unknown audience policy %q", s)
	}
}

type Config struct {
	AudiencePolicy AudiencePolicy
	AlertRadiusKm  float64
	// DispatchBudget caps how long a caller waits on notification fan-out.
	DispatchBudget time.Duration
}

func DefaultConfig() Config {
	return Config{
		AudiencePolicy: AudienceAll,
		AlertRadiusKm:  2,
		DispatchBudget: 5 * time.Second,
	}
}
