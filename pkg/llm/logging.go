package llm

import (
	"context"
	"time"
	"tutorhub_backend/pkg/logger"
	"tutorhub_backend/pkg/monitoring"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("tutorhub/llm")

// LoggingProvider records every backend call in the log, metrics and a
// trace span.
type LoggingProvider struct {
	inner Provider
}

func WithLogging(p Provider) Provider {
	return &LoggingProvider{inner: p}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	purpose := PurposeFrom(ctx)
	model := l.inner.ModelID()

	ctx, span := tracer.Start(ctx, "llm.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", model),
		attribute.String("llm.purpose", purpose),
	)

	start := time.Now()
	resp, err := l.inner.Generate(ctx, req)
	elapsed := time.Since(start)

	monitoring.LLMLatency.WithLabelValues(model, purpose).Observe(elapsed.Seconds())

	if err != nil {
		monitoring.LLMRequests.WithLabelValues(model, purpose, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Log.Warn("LLM request failed",
			zap.String("model", model),
			zap.String("purpose", purpose),
			zap.Duration("latency", elapsed),
			zap.Error(err))
		return nil, err
	}

	monitoring.LLMRequests.WithLabelValues(model, purpose, "ok").Inc()
	monitoring.LLMTokens.WithLabelValues(model, "input").Add(float64(resp.Usage.InputTokens))
	monitoring.LLMTokens.WithLabelValues(model, "output").Add(float64(resp.Usage.OutputTokens))
	logger.Log.Debug("LLM request completed",
		zap.String("model", resp.Model),
		zap.String("purpose", purpose),
		zap.Duration("latency", elapsed),
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens))
	return resp, nil
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}
