// Package pprofserver exposes the net/http/pprof handlers on a loopback-only
// listener so profiling never rides on the public API port.
package pprofserver

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/pprof"
)

func handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	return mux
}

// Launch starts a pprof server on the ipv6 loopback at the given port (e.g.
// ":6060") in a background goroutine. Failures are logged, not fatal.
func Launch(port string, logger *slog.Logger) {
	go func() {
		addr := "[::1]" + port
		logger.LogAttrs(context.Background(), slog.LevelInfo, "starting pprof server", slog.String("addr", addr))
		server := &http.Server{ //nolint:gosec // loopback-only debug listener.
			Addr:    addr,
			Handler: handler(),
		}
		if err := server.ListenAndServe(); err != nil {
			logger.LogAttrs(context.Background(), slog.LevelError, "pprof server stopped", slog.String("error", err.Error()))
		}
	}()
}
