package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	requestTime metric.Int64Histogram
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	reqTime, err := meter.Int64Histogram("http_request_time", metric.WithDescription("http request time"), metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_time histogram: %w", err)
	}

	return &Metrics{
		requestTime: reqTime,
	}, nil
}

// Wrap records the duration of every request to next, labeled with route.
func (m *Metrics) Wrap(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		m.requestTime.Record(r.Context(), time.Since(start).Milliseconds(), metric.WithAttributes(attribute.String("route", route)))
	})
}
