package main

import (
	"net/http"
)

func (app *application) status(w http.ResponseWriter, r *http.Request) {
	targetID := r.PathValue("targetID")
	investigation, err := app.coordinator.Get(r.Context(), targetID)
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, investigation)
}

func (app *application) healthy(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}
