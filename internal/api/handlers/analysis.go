package handlers

import (
	stderrors "errors"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/pratik-mahalle/muscleai/internal/api/dto"
	"github.com/pratik-mahalle/muscleai/internal/api/middleware"
	"github.com/pratik-mahalle/muscleai/internal/pkg/errors"
	"github.com/pratik-mahalle/muscleai/internal/pkg/logger"
	"github.com/pratik-mahalle/muscleai/internal/pkg/utils"
	"github.com/pratik-mahalle/muscleai/internal/services"
)

// ImageField is the multipart field carrying the photo
const ImageField = "image"

// multipart headers and boundaries on top of the image itself
const formOverhead = 1 << 20

// AnalysisHandler handles photo uploads
type AnalysisHandler struct {
	analyzer Analyzer
	maxBytes int64
	logger   *logger.Logger
}

// NewAnalysisHandler creates a new AnalysisHandler
func NewAnalysisHandler(analyzer Analyzer, maxImageBytes int64, log *logger.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		analyzer: analyzer,
		maxBytes: maxImageBytes,
		logger:   log,
	}
}

// Analyze rates the muscle groups visible in an uploaded photo
// @Summary Analyze a physique photo
// @Description Upload a photo and receive per-muscle development ratings with exercise suggestions. Identical photos are served from cache without using quota.
// @Tags Analysis
// @Accept multipart/form-data
// @Produce json
// @Param image formData file true "Photo to analyze"
// @Success 200 {object} dto.AnalysisResponse "Analysis"
// @Failure 400 {object} dto.AnalysisErrorResponse "Invalid input or low image quality"
// @Failure 403 {object} dto.AnalysisErrorResponse "Quota exceeded or no active subscription"
// @Failure 429 {object} dto.AnalysisErrorResponse "Rate limited"
// @Failure 500 {object} dto.AnalysisErrorResponse "Model unavailable"
// @Failure 503 {object} dto.AnalysisErrorResponse "Quota service unavailable"
// @Security BearerAuth
// @Router /analyze [post]
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	in, err := h.readUpload(w, r)
	if err != nil {
		writeClientError(w, err, h.logger, "Failed to read upload")
		return
	}
	if userID, ok := middleware.GetUserID(r); ok {
		in.UserID = userID
	}

	result, err := h.analyzer.Analyze(r.Context(), in)
	if err != nil {
		writeClientError(w, err, h.logger, "Analysis failed")
		return
	}

	middleware.AddLogField(w, "cached", result.Cached)
	if result.Model != "" {
		middleware.AddLogField(w, "model", result.Model)
	}

	utils.WriteJSON(w, http.StatusOK, dto.AnalysisResponse{
		Analysis: result.Analysis,
		Cached:   result.Cached,
		Report:   result.Report,
		Model:    result.Model,
		Attempts: result.Attempts,
		Quota:    dto.QuotaFromStatus(result.Quota),
	})
}

func (h *AnalysisHandler) readUpload(w http.ResponseWriter, r *http.Request) (services.AnalyzeInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+formOverhead)

	file, header, err := r.FormFile(ImageField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case stderrors.As(err, &tooLarge), stderrors.Is(err, multipart.ErrMessageTooLarge):
			return services.AnalyzeInput{}, errors.InvalidInput("Image is too large")
		case stderrors.Is(err, http.ErrMissingFile):
			return services.AnalyzeInput{}, errors.InvalidInput("No image provided")
		default:
			return services.AnalyzeInput{}, errors.InvalidInput("Expected a multipart form with an image field")
		}
	}
	defer file.Close()

	// One byte past the limit is enough for the pipeline to reject it.
	image, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		return services.AnalyzeInput{}, errors.InvalidInput("Could not read image")
	}

	return services.AnalyzeInput{
		Image:    image,
		Filename: filepath.Base(header.Filename),
		MIMEType: header.Header.Get("Content-Type"),
	}, nil
}
