package main

import (
	"net/http"

	"github.com/justinas/alice"
)

func (app *application) routes() http.Handler {
	mux := http.NewServeMux()

	common := alice.New()

	mux.Handle("GET /api/healthy", common.ThenFunc(app.healthy))
	mux.Handle("POST /api/investigate", common.ThenFunc(app.investigate))
	mux.Handle("POST /api/confirm", common.ThenFunc(app.confirm))
	mux.Handle("GET /api/status/{targetID}", common.ThenFunc(app.status))
	mux.Handle("POST /api/chat", common.ThenFunc(app.chat))
	mux.Handle("POST /api/chat/stream", common.ThenFunc(app.chatStream))
	mux.Handle("POST /api/tts", common.ThenFunc(app.tts))
	mux.Handle("GET /api/events/{targetID}", common.ThenFunc(app.eventStream))

	return app.recoverPanic(app.logRequest(commonHeaders(mux)))
}
