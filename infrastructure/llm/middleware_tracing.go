package llm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracedJudge wraps a CoreJudge so every call is recorded as an
// OpenTelemetry span.
type tracedJudge struct {
	next        CoreJudge
	serviceName string
	tracer      trace.Tracer
}

// TracingMiddleware creates middleware that adds OpenTelemetry tracing to requests.
// Each judge call becomes a span carrying model, prompt size, token usage,
// and truncation attributes.
func TracingMiddleware(serviceName string) Middleware {
	return func(next CoreJudge) CoreJudge {
		return &tracedJudge{
			next:        next,
			serviceName: serviceName,
			tracer:      otel.Tracer("llm-judge"),
		}
	}
}

// DoRequest runs the request inside a span. Errors are recorded on the
// span and returned unchanged.
func (t *tracedJudge) DoRequest(ctx context.Context, req Request) (Response, error) {
	ctx, span := t.tracer.Start(ctx, "llm.request",
		trace.WithAttributes(
			attribute.String("service.name", t.serviceName),
			attribute.String("llm.model", t.next.GetModel()),
			attribute.Int("llm.prompt.length", len(req.SystemPrompt)+len(req.UserContent)),
			attribute.Int("llm.max_output_tokens", req.MaxOutputTokens),
		),
	)
	defer span.End()

	resp, err := t.next.DoRequest(ctx, req)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(
			attribute.Int("llm.tokens.input", resp.TokensIn),
			attribute.Int("llm.tokens.output", resp.TokensOut),
			attribute.Bool("llm.truncated", resp.Truncated),
		)
	}

	return resp, err
}

func (t *tracedJudge) GetModel() string { return t.next.GetModel() }

func (t *tracedJudge) SetModel(m string) { t.next.SetModel(m) }
