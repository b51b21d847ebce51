package tracing

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// DBSpanConfig describes a database operation for span naming
type DBSpanConfig struct {
	Operation  string // find, insert, update, aggregate, delete
	Collection string
}

// StartDBSpan starts a client span around a database operation
func StartDBSpan(ctx context.Context, cfg DBSpanConfig) (context.Context, trace.Span) {
	tracer := GetTracer("beampay.database")
	ctx, span := tracer.Start(ctx, fmt.Sprintf("db.%s %s", cfg.Operation, cfg.Collection),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "mongodb"),
			attribute.String("db.operation", cfg.Operation),
			attribute.String("db.mongodb.collection", cfg.Collection),
		),
	)
	return ctx, span
}

// EndDBSpan records the outcome of a database operation and ends the span.
// docs is the number of documents touched, or -1 when unknown.
func EndDBSpan(span trace.Span, err error, docs int64) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
		if docs >= 0 {
			span.SetAttributes(attribute.Int64("db.documents_affected", docs))
		}
	}
	span.End()
}

// StartNodeSpan starts a client span around a wallet node RPC call
func StartNodeSpan(ctx context.Context, method string) (context.Context, trace.Span) {
	tracer := GetTracer("beampay.node")
	return tracer.Start(ctx, "node."+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("rpc.system", "jsonrpc"),
			attribute.String("rpc.method", method),
		),
	)
}

// HTTPMiddleware wraps every request in a server span named after the
// matched route. It belongs at the front of the middleware chain.
func HTTPMiddleware() gin.HandlerFunc {
	tracer := GetTracer("beampay.http")
	propagator := otel.GetTextMapPropagator()

	return func(c *gin.Context) {
		ctx := propagator.Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		ctx, span := tracer.Start(ctx, c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.route", route),
				attribute.String("http.target", c.Request.URL.Path),
			),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= 500 {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}
