package tokens

import "time"

// Token is an issued, signed token. ExpiresAt and TTL are computed once at
// issuance and never re-derived from Value without verification.
type Token struct {
	Value     string
	ExpiresAt time.Time
	TTL       time.Duration
}

// IsExpired reports whether the token is expired at now (now >= ExpiresAt).
func (t *Token) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// TimeToExpiry returns the remaining lifetime at now, or zero once expired.
func (t *Token) TimeToExpiry(now time.Time) time.Duration {
	if d := t.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
