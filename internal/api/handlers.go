// Pathfinder - Route Recommendation and Quality Prediction
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pathfinder

package api

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/pathfinder/internal/predict"
	"github.com/tomtom215/pathfinder/internal/validation"
)

// predictionQuery is the validated form of a prediction request.
type predictionQuery struct {
	RouteID           int64  `json:"route_id" validate:"gt=0"`
	TrafficPreference string `json:"traffic_preference" validate:"omitempty,max=32"`
	SurfacePreference string `json:"surface_preference" validate:"omitempty,max=32"`
	RequireLighting   string `json:"require_lighting" validate:"omitempty,boolean"`
	RequireSidewalks  string `json:"require_sidewalks" validate:"omitempty,boolean"`
}

// preferences returns only the keys the client sent, so an absent
// preference takes the feature builder's default.
func (q *predictionQuery) preferences(values url.Values) predict.Preferences {
	prefs := predict.Preferences{}
	set := func(key, value string) {
		if values.Has(key) {
			prefs[key] = value
		}
	}
	set(predict.PrefTraffic, q.TrafficPreference)
	set(predict.PrefSurface, q.SurfacePreference)
	set(predict.PrefRequireLighting, q.RequireLighting)
	set(predict.PrefRequireSidewalks, q.RequireSidewalks)
	return prefs
}

// routePredictions serves GET /api/v1/routes/{routeID}/predictions.
//
// Query parameters: traffic_preference, surface_preference,
// require_lighting, require_sidewalks. Unknown routes and model failures
// still answer 200 with is_fallback set.
func (rt *Router) routePredictions(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	values := r.URL.Query()
	id, err := strconv.ParseInt(chi.URLParam(r, "routeID"), 10, 64)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, CodeValidation, "route id must be an integer", err)
		return
	}
	q := predictionQuery{
		RouteID:           id,
		TrafficPreference: values.Get(predict.PrefTraffic),
		SurfacePreference: values.Get(predict.PrefSurface),
		RequireLighting:   values.Get(predict.PrefRequireLighting),
		RequireSidewalks:  values.Get(predict.PrefRequireSidewalks),
	}
	if verr := validation.ValidateStruct(&q); verr != nil {
		respondError(w, r, http.StatusBadRequest, CodeValidation, verr.Error(), verr)
		return
	}

	result := rt.predictor.GetRoutePredictions(r.Context(), q.RouteID, q.preferences(values))
	respondSuccess(w, r, result, start)
}

// health serves the coordinator status. It answers 503 until the models
// have been initialised.
func (rt *Router) health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := rt.predictor.Status()
	if !status.Initialized {
		respondJSON(w, r, http.StatusServiceUnavailable, &APIResponse{
			Status:   "error",
			Data:     status,
			Metadata: Metadata{Timestamp: time.Now().UTC()},
			Error:    &APIError{Code: CodeNotReady, Message: "models are not initialized"},
		})
		return
	}
	respondSuccess(w, r, status, start)
}

// live reports process liveness only.
func (rt *Router) live(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, r, map[string]string{"status": "alive"}, time.Now())
}
