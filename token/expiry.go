package token

import "time"

// Expiry is the clock's view of the current access token at one instant.
// Active is false when there is no decodable token, which the coordinator
// treats as "not authenticated" rather than as an error.
type Expiry struct {
	Active    bool
	ExpiresAt time.Time
	TimeLeft  time.Duration // clamped at zero, never negative
	Role      string
}

// ExpiryOf derives expiry state from a raw access token at the given
// instant. It is a pure function of (token, now) and must be recomputed,
// not cached, whenever the underlying token may have changed.
func ExpiryOf(rawToken string, now time.Time) Expiry {
	claims, err := Decode(rawToken)
	if err != nil {
		return Expiry{}
	}

	expiresAt := claims.ExpiresAt()
	timeLeft := expiresAt.Sub(now)
	if timeLeft < 0 {
		timeLeft = 0
	}

	return Expiry{
		Active:    true,
		ExpiresAt: expiresAt,
		TimeLeft:  timeLeft,
		Role:      claims.Role,
	}
}
