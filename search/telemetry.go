package search

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/arloliu/mws/search"

var (
	tracer = otel.Tracer(instrumentationName)
	meter  = otel.Meter(instrumentationName)
)

var (
	searchLatency metric.Float64Histogram
	searchTotal   metric.Int64Counter
	searchMatches metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		searchLatency, err = meter.Float64Histogram(
			"mws_search_duration_seconds",
			metric.WithDescription("Duration of formula searches"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		searchTotal, err = meter.Int64Counter(
			"mws_search_total",
			metric.WithDescription("Total number of formula searches"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		searchMatches, err = meter.Int64Histogram(
			"mws_search_matches",
			metric.WithDescription("Total reported per search"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})

	return metricsErr
}

func startSearchSpan(ctx context.Context, opts Options) (context.Context, trace.Span) {
	return tracer.Start(ctx, "search.Search",
		trace.WithAttributes(
			attribute.Int("search.offset", opts.Offset),
			attribute.Int("search.limit", opts.Limit),
			attribute.Int("search.max_total", opts.MaxTotal),
			attribute.Bool("search.include_hits", opts.IncludeHits),
		),
	)
}

func setSearchSpanResult(span trace.Span, set *AnswerSet, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}

	span.SetAttributes(
		attribute.Int("search.total", set.Total),
		attribute.Int("search.answers", len(set.Answers)),
	)
}

func recordSearchMetrics(ctx context.Context, duration time.Duration, total int, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.Bool("success", success),
	)

	searchLatency.Record(ctx, duration.Seconds(), attrs)
	searchTotal.Add(ctx, 1, attrs)
	if success {
		searchMatches.Record(ctx, int64(total))
	}
}
