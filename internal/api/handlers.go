package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/salvageiq/auctionmind/internal/model"
	"github.com/salvageiq/auctionmind/internal/similar"
)

// envelope is the uniform response shape for every route.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

type analyzeVINRequest struct {
	VIN string `json:"vin"`
}

type analyzeLotRequest struct {
	LotID int64 `json:"lotId"`
	Site  int   `json:"site"`
}

type comparableSalesRequest struct {
	Make       string `json:"make"`
	Model      string `json:"model"`
	YearFrom   int    `json:"yearFrom"`
	YearTo     int    `json:"yearTo"`
	MileageMin int64  `json:"mileageMin"`
	MileageMax int64  `json:"mileageMax"`
	DamageType string `json:"damageType,omitempty"`
}

func (s *Server) handleAnalyzeVIN(w http.ResponseWriter, r *http.Request) {
	var req analyzeVINRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.pipeline.AnalyzeVIN(r.Context(), req.VIN)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: result})
}

func (s *Server) handleAnalyzeLot(w http.ResponseWriter, r *http.Request) {
	var req analyzeLotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	site, err := model.ParseSite(req.Site)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := s.pipeline.AnalyzeLot(r.Context(), req.LotID, site)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: result})
}

func (s *Server) handleLiveLot(w http.ResponseWriter, r *http.Request) {
	lotID, err := strconv.ParseInt(chi.URLParam(r, "lotID"), 10, 64)
	if err != nil || lotID <= 0 {
		writeFailure(w, http.StatusBadRequest, "lot id must be a positive integer")
		return
	}

	lot, err := s.inv.LiveLot(r.Context(), model.SiteCopart, lotID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: lot})
}

// handleComparableSales ranks active lots against a requested profile. The
// requested bounds are honored exactly; equal bounds mean an exact match.
func (s *Server) handleComparableSales(w http.ResponseWriter, r *http.Request) {
	var req comparableSalesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	crit := similar.Criteria{
		Make:       req.Make,
		Model:      req.Model,
		YearFrom:   req.YearFrom,
		YearTo:     req.YearTo,
		MileageMin: req.MileageMin,
		MileageMax: req.MileageMax,
		DamageType: req.DamageType,
	}

	lots, err := s.finder.Find(r.Context(), crit, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: lots})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		writeFailure(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrNotFound):
		writeFailure(w, http.StatusNotFound, err.Error())
	default:
		zap.L().Error("request failed", zap.Error(err))
		writeFailure(w, http.StatusInternalServerError, "internal error")
	}
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Warn("response encode failed", zap.Error(err))
	}
}
