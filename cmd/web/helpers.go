package main

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/myrjola/doppel/internal/errors"
)

func (app *application) serverError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		method = r.Method
		uri    = r.URL.RequestURI()
	)

	app.logger.LogAttrs(r.Context(), slog.LevelError, "server error",
		slog.String("method", method), slog.String("uri", uri), errors.SlogError(err))
	app.writeJSON(w, r, http.StatusInternalServerError,
		map[string]string{"error": http.StatusText(http.StatusInternalServerError)})
}

func (app *application) clientError(w http.ResponseWriter, r *http.Request, status int, message string) {
	app.logger.Debug(message, "method", r.Method, "uri", r.URL.RequestURI(), "status", status)
	app.writeJSON(w, r, status, map[string]string{"error": message})
}

// handleError maps the error's kind to the right HTTP response. Pipeline
// failures never reach here; they live in the record's error field.
func (app *application) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch errors.KindOf(err) {
	case errors.KindNotFound:
		app.clientError(w, r, http.StatusNotFound, err.Error())
	case errors.KindValidation:
		app.clientError(w, r, http.StatusBadRequest, err.Error())
	case errors.KindDeadline:
		app.clientError(w, r, http.StatusGatewayTimeout, err.Error())
	default:
		app.serverError(w, r, err)
	}
}

func (app *application) writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		app.logger.LogAttrs(r.Context(), slog.LevelError, "encode response", errors.SlogError(err))
	}
}

// readJSON decodes the request body into dst, rejecting unknown content.
func (app *application) readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		app.clientError(w, r, http.StatusBadRequest, "invalid JSON request body")
		return false
	}
	return true
}
