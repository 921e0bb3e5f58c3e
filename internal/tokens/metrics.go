package tokens

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/dmitrijs2005/gophauth/internal/tokens"

// verification results
const (
	resultOK           = "ok"
	resultMalformed    = "malformed"
	resultBadSignature = "bad_signature"
	resultExpired      = "expired"
)

type metrics struct {
	verify metric.Int64Counter
	cache  metric.Int64Counter
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}

	verify, err := meter.Int64Counter(
		"gophauth.tokens.verify",
		metric.WithDescription("Token verifications by result"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, err
	}

	cache, err := meter.Int64Counter(
		"gophauth.tokens.cache",
		metric.WithDescription("Verification cache lookups by outcome"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	return &metrics{verify: verify, cache: cache}, nil
}

func (m *metrics) recordVerify(ctx context.Context, result string) {
	m.verify.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *metrics) recordCache(ctx context.Context, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.cache.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
