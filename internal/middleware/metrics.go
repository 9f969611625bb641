package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

type MetricsMiddleware struct {
	requestCounter     *metrics.Counter
	responseTimeHist   *metrics.Histogram
	responseSizeHist   *metrics.Histogram
	bytesServed        *metrics.Counter
	partialCounter     *metrics.Counter
	notModifiedCounter *metrics.Counter
}

func NewMetricsMiddleware() *MetricsMiddleware {
	return &MetricsMiddleware{
		requestCounter:     metrics.GetOrCreateCounter("http_requests_total"),
		responseTimeHist:   metrics.GetOrCreateHistogram("http_response_time_seconds"),
		responseSizeHist:   metrics.GetOrCreateHistogram("http_response_size_bytes"),
		bytesServed:        metrics.GetOrCreateCounter("http_response_bytes_total"),
		partialCounter:     metrics.GetOrCreateCounter("http_partial_responses_total"),
		notModifiedCounter: metrics.GetOrCreateCounter("http_not_modified_responses_total"),
	}
}

func statusCounter(code int) *metrics.Counter {
	return metrics.GetOrCreateCounter(`http_response_status_total{code="` + strconv.Itoa(code) + `"}`)
}

func (m *MetricsMiddleware) WithMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := newLoggingResponseWriter(w)

		m.requestCounter.Inc()
		next.ServeHTTP(lrw, r)

		m.responseTimeHist.UpdateDuration(start)
		m.responseSizeHist.Update(float64(lrw.length))
		m.bytesServed.Add(lrw.length)
		statusCounter(lrw.statusCode).Inc()

		switch lrw.statusCode {
		case http.StatusPartialContent:
			m.partialCounter.Inc()
		case http.StatusNotModified:
			m.notModifiedCounter.Inc()
		}
	})
}

func (m *MetricsMiddleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	metrics.WritePrometheus(w, true)
}
