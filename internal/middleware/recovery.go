// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// Recoverer turns a handler panic into a JSON 500 carrying the request id,
// so a failed render can be matched to its log line. When the handler had
// already started a response (an image stream, say) the status line is
// gone and the panic is only logged. http.ErrAbortHandler is re-raised for
// net/http to handle.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			reqID := w.Header().Get(RequestIDHeader)
			if reqID == "" {
				reqID = r.Header.Get(RequestIDHeader)
			}
			slog.Error("panic recovered",
				"error", rec,
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", reqID,
				"response_started", rw.written,
				"stack", string(debug.Stack()),
			)
			if rw.written {
				return
			}

			// Headers the handler set for its own success response no
			// longer apply.
			for _, h := range []string{"Content-Disposition", "Content-Length", "X-Template-Version", "X-Render-Warning"} {
				w.Header().Del(h)
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{
				"error":     "internal server error",
				"requestId": reqID,
			})
		}()

		next.ServeHTTP(rw, r)
	})
}
