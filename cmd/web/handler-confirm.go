package main

import (
	"net/http"

	"github.com/myrjola/doppel/internal/coordinator"
)

type confirmRequest struct {
	TargetID            string `json:"targetId"`
	Confirmed           bool   `json:"confirmed"`
	SelectedCandidateID string `json:"selectedCandidateId,omitempty"`
	AdditionalContext   string `json:"additionalContext,omitempty"`
}

func (app *application) confirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if !app.readJSON(w, r, &req) {
		return
	}
	if req.TargetID == "" {
		app.clientError(w, r, http.StatusBadRequest, "targetId is required")
		return
	}

	investigation, err := app.coordinator.Confirm(r.Context(), req.TargetID, coordinator.Confirmation{
		Confirmed:           req.Confirmed,
		SelectedCandidateID: req.SelectedCandidateID,
		AdditionalContext:   req.AdditionalContext,
	})
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, investigation)
}
