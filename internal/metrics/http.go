package metrics

import (
	"net/http"
	"regexp"
	"strconv"
	"time"
)

var idSegment = regexp.MustCompile(`[0-9a-fA-F]{8}(-[0-9a-fA-F]{4}){3}-[0-9a-fA-F]{12}`)

// routeLabel keeps the path label bounded. Matched routes report their mux
// pattern; unmatched paths have ids collapsed.
func routeLabel(r *http.Request) string {
	if r.Pattern != "" {
		return r.Pattern
	}
	return idSegment.ReplaceAllString(r.URL.Path, "{id}")
}

type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.written += n
	return n, err
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

func (s *statusRecorder) code() string {
	if s.status == 0 {
		return strconv.Itoa(http.StatusOK)
	}
	return strconv.Itoa(s.status)
}

// Middleware counts and times every request except scrapes of /metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		rec := &statusRecorder{ResponseWriter: w}
		began := time.Now()
		next.ServeHTTP(rec, r)

		// r.Pattern is only populated once the mux has routed the request.
		route := routeLabel(r)
		HTTPRequestsTotal.WithLabelValues(r.Method, route, rec.code()).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(began).Seconds())
		HTTPResponseSize.WithLabelValues(r.Method, route).Observe(float64(rec.written))
	})
}
