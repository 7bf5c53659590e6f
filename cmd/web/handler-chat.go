package main

import (
	"fmt"
	"net/http"

	"github.com/myrjola/doppel/internal/errors"
	"github.com/myrjola/doppel/internal/models"
)

type chatRequest struct {
	TargetID  string `json:"targetId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID    string                      `json:"sessionId"`
	Response     string                      `json:"response"`
	Conversation *models.ConversationSession `json:"conversation"`
}

// resolveSessionID picks the conversation: an explicit session id wins,
// otherwise the investigation's conversation is used once it is ready.
func (app *application) resolveSessionID(r *http.Request, req chatRequest) (string, error) {
	if req.SessionID != "" {
		return req.SessionID, nil
	}
	if req.TargetID == "" {
		return "", errors.WithKind(errors.New("either sessionId or targetId is required"), errors.KindValidation)
	}
	investigation, err := app.coordinator.Get(r.Context(), req.TargetID)
	if err != nil {
		return "", err
	}
	if investigation.Status != models.StatusReady || investigation.ConversationID == "" {
		return "", errors.WithKind(
			errors.New(fmt.Sprintf("investigation is %s, not ready for chat", investigation.Status)),
			errors.KindValidation)
	}
	return investigation.ConversationID, nil
}

func (app *application) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !app.readJSON(w, r, &req) {
		return
	}
	if req.Message == "" {
		app.clientError(w, r, http.StatusBadRequest, "message is required")
		return
	}

	sessionID, err := app.resolveSessionID(r, req)
	if err != nil {
		app.handleError(w, r, err)
		return
	}

	reply, err := app.conversations.Send(r.Context(), sessionID, req.Message)
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	session, err := app.conversations.Get(r.Context(), sessionID)
	if err != nil {
		app.handleError(w, r, err)
		return
	}

	app.writeJSON(w, r, http.StatusOK, chatResponse{
		SessionID:    sessionID,
		Response:     reply.Content,
		Conversation: session,
	})
}

// chatStream delivers the assistant reply as server-sent text fragments.
func (app *application) chatStream(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !app.readJSON(w, r, &req) {
		return
	}
	if req.Message == "" {
		app.clientError(w, r, http.StatusBadRequest, "message is required")
		return
	}

	sessionID, err := app.resolveSessionID(r, req)
	if err != nil {
		app.handleError(w, r, err)
		return
	}

	fragments, err := app.conversations.Stream(r.Context(), sessionID, req.Message)
	if err != nil {
		app.handleError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		app.serverError(w, r, errors.New("response writer does not support streaming"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	for fragment := range fragments {
		if _, err = fmt.Fprintf(w, "data: %s\n\n", fragment); err != nil {
			return
		}
		flusher.Flush()
	}
	_, _ = fmt.Fprint(w, "event: done\ndata: \n\n")
	flusher.Flush()
}
