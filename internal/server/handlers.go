package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
)

// Response headers describing a filtered page
const (
	HeaderHidden = "X-Cosmetic-Hidden"
	HeaderState  = "X-Cosmetic-State"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	table := s.Engine().Resolver().Table()
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"version":    table.Version,
		"variant":    table.Variant(),
		"statistics": table.Statistics,
	})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	host, ok := hostParam(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, s.Engine().Resolve(host))
}

func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	host, ok := hostParam(w, r)
	if !ok {
		return
	}

	body := http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	var out bytes.Buffer
	report, err := s.Engine().Filter(r.Context(), host, body, &out)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			respondError(w, http.StatusRequestEntityTooLarge, "page exceeds "+strconv.Itoa(MaxBodyBytes)+" bytes")
		case r.Context().Err() != nil:
			respondError(w, http.StatusServiceUnavailable, "request canceled")
		default:
			s.log.WithError(err).WithField("host", host).Warn("filtering page")
			respondError(w, http.StatusUnprocessableEntity, "could not filter page")
		}
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set(HeaderHidden, strconv.Itoa(report.Stats.Hidden))
	w.Header().Set(HeaderState, report.State)
	w.WriteHeader(http.StatusOK)
	w.Write(out.Bytes())
}

func hostParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	host := strings.TrimSpace(r.URL.Query().Get("host"))
	if host == "" {
		respondError(w, http.StatusBadRequest, "host query parameter is required")
		return "", false
	}
	return host, true
}

// Response helpers

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
