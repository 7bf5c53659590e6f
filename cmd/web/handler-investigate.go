package main

import (
	"net/http"

	"github.com/myrjola/doppel/internal/coordinator"
	"github.com/myrjola/doppel/internal/models"
)

type investigateRequest struct {
	TargetName    string `json:"targetName"`
	TargetContext string `json:"targetContext,omitempty"`
	// Depth selects the scrape policy: "standard" (concurrent fan-out,
	// default) or "deep" (sequential priority walk with follow-up links).
	Depth     string `json:"depth,omitempty"`
	QuickMode bool   `json:"quickMode,omitempty"`
}

func (app *application) investigate(w http.ResponseWriter, r *http.Request) {
	var req investigateRequest
	if !app.readJSON(w, r, &req) {
		return
	}
	if req.TargetName == "" {
		app.clientError(w, r, http.StatusBadRequest, "targetName is required")
		return
	}

	opts := coordinator.Options{Deep: req.Depth == "deep"}

	var (
		investigation *models.Investigation
		err           error
	)
	if req.QuickMode {
		investigation, err = app.coordinator.QuickStart(r.Context(), req.TargetName, req.TargetContext, opts)
	} else {
		investigation, err = app.coordinator.Start(r.Context(), req.TargetName, req.TargetContext, opts)
	}
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, investigation)
}
