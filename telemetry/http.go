package telemetry

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// TracingMiddleware wraps handlers with otelhttp so each request gets a
// span named "HTTP <method> <path>". Requests to excludedPaths are not
// traced.
//
// Propagators are installed by Setup; without it the middleware uses the
// global no-op tracer.
func TracingMiddleware(serviceName string, excludedPaths ...string) func(http.Handler) http.Handler {
	opts := []otelhttp.Option{
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "HTTP " + r.Method + " " + r.URL.Path
		}),
	}

	if len(excludedPaths) > 0 {
		skip := make(map[string]struct{}, len(excludedPaths))
		for _, p := range excludedPaths {
			skip[p] = struct{}{}
		}
		opts = append(opts, otelhttp.WithFilter(func(r *http.Request) bool {
			_, excluded := skip[r.URL.Path]
			return !excluded
		}))
	}

	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, serviceName, opts...)
	}
}
