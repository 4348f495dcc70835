package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"socialscope-backend/lib/platforms"
	"socialscope-backend/lib/resultcache"
	"socialscope-backend/services/acquisition"
)

type errorResponse struct {
	Kind    acquisition.Kind `json:"kind"`
	Message string           `json:"message"`
}

func writeJson(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(payload)
	if err != nil {
		slog.Warn("failed to write response", "err", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	kind := acquisition.KindOf(err)

	status := http.StatusInternalServerError
	switch kind {
	case acquisition.KindRateLimited:
		status = http.StatusTooManyRequests
	case acquisition.KindNotFound:
		status = http.StatusNotFound
	case acquisition.KindPrivacyRestricted:
		status = http.StatusForbidden
	case acquisition.KindNotAuthorized:
		status = http.StatusBadGateway
	case acquisition.KindServiceUnavailable:
		status = http.StatusServiceUnavailable
	}

	writeJson(w, status, errorResponse{
		Kind:    kind,
		Message: kind.UserMessage(),
	})
}

func RegisterApi(mux *http.ServeMux, service *acquisition.Service) {
	mux.HandleFunc("GET /api/v1/fetch", func(w http.ResponseWriter, r *http.Request) {
		platform, err := platforms.Parse(r.URL.Query().Get("platform"))
		if err != nil {
			writeJson(w, http.StatusBadRequest, errorResponse{
				Kind:    acquisition.KindUnknown,
				Message: err.Error(),
			})
			return
		}
		username := r.URL.Query().Get("username")
		if username == "" {
			writeJson(w, http.StatusBadRequest, errorResponse{
				Kind:    acquisition.KindUnknown,
				Message: "username is required",
			})
			return
		}

		snapshot, err := service.FetchUserData(r.Context(), platform, username)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJson(w, http.StatusOK, snapshot)
	})

	mux.HandleFunc("GET /api/v1/aggregate", func(w http.ResponseWriter, r *http.Request) {
		username := r.URL.Query().Get("username")
		if username == "" {
			writeJson(w, http.StatusBadRequest, errorResponse{
				Kind:    acquisition.KindUnknown,
				Message: "username is required",
			})
			return
		}

		targets := platforms.All()
		if raw := r.URL.Query().Get("platforms"); raw != "" {
			targets = nil
			for _, name := range strings.Split(raw, ",") {
				platform, err := platforms.Parse(name)
				if err != nil {
					writeJson(w, http.StatusBadRequest, errorResponse{
						Kind:    acquisition.KindUnknown,
						Message: err.Error(),
					})
					return
				}
				targets = append(targets, platform)
			}
		}

		result, err := service.Aggregate(r.Context(), targets, username)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJson(w, http.StatusOK, result)
	})

	mux.HandleFunc("GET /api/v1/status", func(w http.ResponseWriter, r *http.Request) {
		writeJson(w, http.StatusOK, struct {
			Platforms []acquisition.ApiStatus `json:"platforms"`
			Cache     resultcache.Stats       `json:"cache"`
		}{
			Platforms: service.Statuses(r.Context()),
			Cache:     service.CacheStats(),
		})
	})
}
