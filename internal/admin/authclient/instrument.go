package authclient

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"finitefield.org/hanko-admin/internal/admin/metrics"
)

var tracer = otel.Tracer("finitefield.org/hanko-admin/internal/admin/authclient")

type tracedProvider struct {
	next Provider
	name string
}

// Traced wraps provider so every sign-in runs inside a client span.
func Traced(provider Provider, name string) Provider {
	return &tracedProvider{next: provider, name: name}
}

func (t *tracedProvider) SignIn(ctx context.Context, identifier, secret string) (*Session, error) {
	ctx, span := tracer.Start(ctx, "authclient.SignIn",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("auth.provider", t.name)),
	)
	defer span.End()

	sess, err := t.next.SignIn(ctx, identifier, secret)
	outcome := Outcome(err)
	span.SetAttributes(attribute.String("auth.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return sess, nil
}

type instrumentedProvider struct {
	next    Provider
	name    string
	metrics *metrics.LoginMetrics
	now     func() time.Time
}

// Instrumented records attempts, outcomes and latency for provider.
func Instrumented(provider Provider, name string, m *metrics.LoginMetrics) Provider {
	if m == nil {
		return provider
	}
	return &instrumentedProvider{next: provider, name: name, metrics: m, now: time.Now}
}

func (i *instrumentedProvider) SignIn(ctx context.Context, identifier, secret string) (*Session, error) {
	i.metrics.IncInFlight(i.name)
	defer i.metrics.DecInFlight(i.name)

	start := i.now()
	sess, err := i.next.SignIn(ctx, identifier, secret)
	i.metrics.ObserveAttempt(i.name, Outcome(err), i.now().Sub(start))
	return sess, err
}
