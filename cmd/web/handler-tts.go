package main

import (
	"net/http"
)

type ttsRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voiceId,omitempty"`
}

func (app *application) tts(w http.ResponseWriter, r *http.Request) {
	var req ttsRequest
	if !app.readJSON(w, r, &req) {
		return
	}
	if req.Text == "" {
		app.clientError(w, r, http.StatusBadRequest, "text is required")
		return
	}

	audio, err := app.conversations.Speak(r.Context(), req.Text, req.VoiceID)
	if err != nil {
		app.handleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio)
}
