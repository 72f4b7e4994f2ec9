package httpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/helixir/paper-digest-service/internal/domain"
	"github.com/helixir/paper-digest-service/internal/observability"
	"github.com/helixir/paper-digest-service/internal/pipeline"
	"github.com/helixir/paper-digest-service/internal/render"
	"github.com/helixir/paper-digest-service/internal/repository"
)

const (
	// maxRequestBodySize limits request bodies to 1 MB.
	maxRequestBodySize = 1 << 20

	defaultPageSize = 50
	maxPageSize     = 100
)

// newValidator registers the mode and language tags used by request bodies.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("mode", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseMode(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("language", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseLanguage(fl.Field().String())
		return err == nil
	})
	return v
}

// createSummary runs the pipeline synchronously and returns the report.
func (s *Server) createSummary(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(body) > maxRequestBodySize {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	var req createSummaryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Reference = strings.TrimSpace(req.Reference)
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	renderer, ok := s.rendererFor(w, r)
	if !ok {
		return
	}
	if s.runner == nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline not configured")
		return
	}

	ctx := r.Context()
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	report, err := s.runner.Run(ctx, pipeline.Request{
		Reference: req.Reference,
		Mode:      req.Mode,
		Language:  req.Language,
	})
	if err != nil {
		s.logger.Warn().Err(err).
			Str("request_id", observability.RequestIDFromContext(r.Context())).
			Str("reference", req.Reference).
			Str("stage", string(domain.StageOf(err))).
			Msg("summary request failed")
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Location", "/api/v1/summaries/"+report.ID.String())
	s.writeReport(w, http.StatusCreated, report, renderer)
}

// getSummary returns an archived report.
func (s *Server) getSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, chi.URLParam(r, "reportID"), "report_id")
	if !ok {
		return
	}
	renderer, ok := s.rendererFor(w, r)
	if !ok {
		return
	}
	if s.reports == nil {
		writeError(w, http.StatusServiceUnavailable, "report archive not configured")
		return
	}

	report, err := s.reports.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.writeReport(w, http.StatusOK, report, renderer)
}

// listSummaries returns archived reports, newest first.
func (s *Server) listSummaries(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		writeError(w, http.StatusServiceUnavailable, "report archive not configured")
		return
	}

	limit, offset := parsePaginationParams(r)
	q := r.URL.Query()
	filter := repository.ReportFilter{
		ArxivID: strings.TrimSpace(q.Get("arxiv_id")),
		Limit:   limit,
		Offset:  offset,
	}
	if v := q.Get("mode"); v != "" {
		mode, err := domain.ParseMode(v)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		filter.Mode = mode
	}
	if v := q.Get("language"); v != "" {
		lang, err := domain.ParseLanguage(v)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		filter.Language = lang
	}

	reports, totalCount, err := s.reports.List(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]summaryItemResponse, len(reports))
	for i, report := range reports {
		items[i] = reportToItem(report)
	}

	writeJSON(w, http.StatusOK, listSummariesResponse{
		Summaries:     items,
		NextPageToken: encodeHTTPPageToken(offset, limit, int(totalCount)),
		TotalCount:    int(totalCount),
	})
}

// deleteSummary removes an archived report.
func (s *Server) deleteSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, chi.URLParam(r, "reportID"), "report_id")
	if !ok {
		return
	}
	if s.reports == nil {
		writeError(w, http.StatusServiceUnavailable, "report archive not configured")
		return
	}

	if err := s.reports.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// rendererFor resolves the format query parameter. No format means the JSON
// report body, returned as a nil renderer.
func (s *Server) rendererFor(w http.ResponseWriter, r *http.Request) (render.Renderer, bool) {
	format := r.URL.Query().Get("format")
	if format == "" {
		return nil, true
	}
	renderer, err := render.New(format)
	if err != nil {
		writeDomainError(w, err)
		return nil, false
	}
	return renderer, true
}

func (s *Server) writeReport(w http.ResponseWriter, status int, report *domain.Report, renderer render.Renderer) {
	if renderer == nil {
		writeJSON(w, status, report)
		return
	}
	out, err := renderer.Render(report)
	if err != nil {
		s.logger.Error().Err(err).Str("report_id", report.ID.String()).Msg("failed to render report")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.Header().Set("Content-Type", renderer.ContentType())
	w.WriteHeader(status)
	_, _ = w.Write(out)
}

// writeDomainError maps domain errors to HTTP status codes and writes a JSON
// error response. Errors the caller can fix carry their message; the rest do
// not leak internal details.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidReference),
		errors.Is(err, domain.ErrConfiguration),
		errors.Is(err, repository.ErrInvalidReport):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited by an upstream service")
	case errors.Is(err, domain.ErrExtraction):
		writeError(w, http.StatusUnprocessableEntity, "no usable text could be extracted from the paper")
	case errors.Is(err, domain.ErrNoContent):
		writeError(w, http.StatusUnprocessableEntity, "paper has no content to summarize")
	case errors.Is(err, domain.ErrIncompleteMetadata):
		var me *domain.IncompleteMetadataError
		if errors.As(err, &me) {
			writeError(w, http.StatusUnprocessableEntity, me.Error())
		} else {
			writeError(w, http.StatusUnprocessableEntity, "incomplete paper metadata")
		}
	case errors.Is(err, domain.ErrFetch):
		writeError(w, http.StatusBadGateway, "paper retrieval failed")
	case errors.Is(err, domain.ErrSummarization):
		writeError(w, http.StatusBadGateway, "summarization failed")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "request timed out")
	case errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// validationMessage turns validator errors into a short client message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "mode":
		return "mode must be one of simple, detailed"
	case "language":
		return "language is not supported"
	default:
		return field + " is invalid"
	}
}

// parseUUID parses a UUID, writing a 400 response if invalid. The input is
// not echoed back.
func parseUUID(w http.ResponseWriter, s, fieldName string) (uuid.UUID, bool) {
	id, err := uuid.Parse(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a valid UUID", fieldName))
		return uuid.Nil, false
	}
	return id, true
}

// parsePaginationParams extracts page_size and page_token from query parameters.
func parsePaginationParams(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if pageSizeStr := r.URL.Query().Get("page_size"); pageSizeStr != "" {
		if parsed, err := strconv.Atoi(pageSizeStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	if pageToken := r.URL.Query().Get("page_token"); pageToken != "" {
		decoded, err := base64.StdEncoding.DecodeString(pageToken)
		if err == nil {
			if parsed, parseErr := strconv.Atoi(string(decoded)); parseErr == nil && parsed > 0 {
				offset = parsed
			}
		}
	}

	return limit, offset
}

// encodeHTTPPageToken encodes the next offset as a page token, or returns
// an empty string when there are no more results.
func encodeHTTPPageToken(offset, limit, totalCount int) string {
	nextOffset := offset + limit
	if nextOffset < totalCount {
		return base64.StdEncoding.EncodeToString([]byte(strconv.Itoa(nextOffset)))
	}
	return ""
}
