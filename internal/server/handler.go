package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/product-research/internal/pipeline"
)

const (
	headerSourcesScraped    = "X-Sources-Scraped"
	headerSourcesSummarized = "X-Sources-Summarized"

	maxRequestBody = 64 << 10
)

type productRequest struct {
	URL string `json:"url"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *Server) handleProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Message: "request body must be a JSON object with a url"})
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Message: "url is required"})
		return
	}

	res, err := s.runner.Run(r.Context(), req.URL)
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Message: err.Error()})
			return
		}
		pipeline.LoggerFrom(r.Context()).Warn("server: product request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to produce product record", Message: err.Error()})
		return
	}

	w.Header().Set(headerSourcesScraped, strconv.Itoa(res.Stats.Scraped()))
	w.Header().Set(headerSourcesSummarized, strconv.Itoa(res.Stats.Summarized))
	writeJSON(w, http.StatusOK, res.Record)
}
