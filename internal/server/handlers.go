package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/MeKo-Tech/shapectx/internal/cache"
	"github.com/MeKo-Tech/shapectx/internal/chaincode"
	"github.com/MeKo-Tech/shapectx/internal/descriptor"
	"github.com/MeKo-Tech/shapectx/internal/geom"
	"github.com/MeKo-Tech/shapectx/internal/pipeline"
	"github.com/MeKo-Tech/shapectx/internal/report"
	"github.com/MeKo-Tech/shapectx/internal/utils"
	"github.com/MeKo-Tech/shapectx/internal/version"
)

const formatOverlay = "overlay"

var contentTypes = map[string]string{
	report.FormatXML:  "application/xml",
	report.FormatJSON: "application/json",
	report.FormatYAML: "application/yaml",
	report.FormatCSV:  "text/csv",
	report.FormatText: "text/plain; charset=utf-8",
	formatOverlay:     "image/png",
}

// analyzeOptions are the per-request overrides of /v1/analyze and /v1/ws.
type analyzeOptions struct {
	Invert    *bool  `json:"invert,omitempty"`
	Threshold *int   `json:"threshold,omitempty"`
	Format    string `json:"format,omitempty"`
	Precision int    `json:"precision,omitempty"`
}

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Failed to encode health response", "error", err)
	}
}

// analyzeHandler traces and describes every contour of an uploaded
// silhouette image.
func (s *Server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, filename, opts, err := s.parseAnalyzeRequest(w, r)
	if err != nil {
		analysisRequestsTotal.WithLabelValues("image", "error").Inc()
		return // error already written
	}

	if opts.Format == formatOverlay {
		if !s.overlayEnabled {
			s.writeErrorResponse(w, "overlay output disabled", http.StatusForbidden)
			return
		}
	} else if !report.ValidFormat(opts.Format) {
		s.writeErrorResponse(w, fmt.Sprintf("unsupported format %q", opts.Format), http.StatusBadRequest)
		return
	}

	key := cache.Key(data, s.cacheVariant(opts))
	if opts.Format != formatOverlay {
		if body, ok := s.lookup(r.Context(), key); ok {
			analysisRequestsTotal.WithLabelValues("image", "cached").Inc()
			s.writeBody(w, opts.Format, body, "HIT")
			return
		}
	}

	img, _, err := utils.DecodeImage(bytes.NewReader(data))
	if err != nil {
		analysisRequestsTotal.WithLabelValues("image", "error").Inc()
		s.writeErrorResponse(w, "Invalid image format", http.StatusBadRequest)
		return
	}

	pl, err := s.pipelineFor(opts)
	if err != nil {
		analysisRequestsTotal.WithLabelValues("image", "error").Inc()
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	start := time.Now()
	res, err := pl.ProcessImageContext(ctx, img, filename)
	duration := time.Since(start)
	if err != nil {
		analysisRequestsTotal.WithLabelValues("image", "error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("analysis failed: %v", err), statusForError(err))
		return
	}

	analysisRequestsTotal.WithLabelValues("image", "success").Inc()
	analysisDuration.WithLabelValues("image").Observe(duration.Seconds())
	contoursPerImage.WithLabelValues("image").Observe(float64(len(res.Contours)))
	contoursFailedTotal.WithLabelValues("image").Add(float64(res.Stats.Failed))

	if opts.Format == formatOverlay {
		s.writeOverlay(w, img, res)
		return
	}

	body, err := report.Format(res.Document, report.Options{Format: opts.Format, Precision: opts.Precision})
	if err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("formatting failed: %v", err), http.StatusInternalServerError)
		return
	}
	if err := s.cache.Set(r.Context(), key, body); err != nil {
		slog.Warn("Failed to store result in cache", "error", err)
	}
	s.writeBody(w, opts.Format, body, "MISS")
}

// parseAnalyzeRequest reads the multipart upload and the request options.
func (s *Server) parseAnalyzeRequest(
	w http.ResponseWriter, r *http.Request,
) ([]byte, string, analyzeOptions, error) {
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		}
		return nil, "", analyzeOptions{}, err
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, "No image file provided", http.StatusBadRequest)
		return nil, "", analyzeOptions{}, err
	}
	defer func() { _ = file.Close() }()

	uploadSizeBytes.Observe(float64(header.Size))

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, "Failed to read image data", http.StatusInternalServerError)
		return nil, "", analyzeOptions{}, err
	}

	opts, err := parseFormOptions(r)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return nil, "", analyzeOptions{}, err
	}
	return data, header.Filename, opts, nil
}

// parseFormOptions reads invert, threshold, format and precision from the
// form or the query string. The format defaults to json.
func parseFormOptions(r *http.Request) (analyzeOptions, error) {
	opts := analyzeOptions{Format: r.FormValue("format")}
	if opts.Format == "" {
		opts.Format = report.FormatJSON
	}
	if v := r.FormValue("invert"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("invalid invert value %q", v)
		}
		opts.Invert = &b
	}
	if v := r.FormValue("threshold"); v != "" {
		t, err := strconv.Atoi(v)
		if err != nil {
			return opts, fmt.Errorf("invalid threshold value %q", v)
		}
		opts.Threshold = &t
	}
	if v := r.FormValue("precision"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p < 1 || p > report.DefaultPrecision {
			return opts, fmt.Errorf("invalid precision value %q", v)
		}
		opts.Precision = p
	}
	return opts, nil
}

// pipelineFor returns the shared pipeline, or a derived one when the request
// overrides binarization.
func (s *Server) pipelineFor(opts analyzeOptions) (*pipeline.Pipeline, error) {
	if opts.Invert == nil && opts.Threshold == nil {
		return s.pipeline, nil
	}
	b := pipeline.NewBuilderWithConfig(s.pipeline.Config())
	if opts.Invert != nil {
		b = b.WithInvert(*opts.Invert)
	}
	if opts.Threshold != nil {
		b = b.WithThreshold(*opts.Threshold)
	}
	return b.Build()
}

// cacheVariant describes everything besides the image bytes that changes a
// formatted result.
func (s *Server) cacheVariant(opts analyzeOptions) string {
	cfg := s.pipeline.Config()
	invert, threshold := cfg.Binarize.Invert, cfg.Binarize.Threshold
	if opts.Invert != nil {
		invert = *opts.Invert
	}
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}
	precision := opts.Precision
	if precision == 0 {
		precision = s.precision
	}
	return fmt.Sprintf("invert=%t threshold=%d min=%d format=%s precision=%d",
		invert, threshold, cfg.MinPoints, opts.Format, precision)
}

func (s *Server) lookup(ctx context.Context, key string) ([]byte, bool) {
	body, ok, err := s.cache.Get(ctx, key)
	switch {
	case err != nil:
		cacheLookupsTotal.WithLabelValues("error").Inc()
		slog.Warn("Cache lookup failed", "error", err)
		return nil, false
	case ok:
		cacheLookupsTotal.WithLabelValues("hit").Inc()
	default:
		cacheLookupsTotal.WithLabelValues("miss").Inc()
	}
	return body, ok
}

func (s *Server) writeBody(w http.ResponseWriter, format string, body []byte, cacheStatus string) {
	w.Header().Set("Content-Type", contentTypes[format])
	w.Header().Set("X-Cache", cacheStatus)
	if _, err := w.Write(body); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}

// writeOverlay renders the analysis over the uploaded image as PNG.
func (s *Server) writeOverlay(w http.ResponseWriter, img image.Image, res *pipeline.ImageResult) {
	ov := pipeline.RenderOverlay(img, res, s.overlayStyle)
	if ov == nil {
		s.writeErrorResponse(w, "overlay failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypes[formatOverlay])
	if err := png.Encode(w, ov); err != nil {
		slog.Error("Failed to encode overlay", "error", err)
	}
}

// contourHandler describes a single contour given as points or chain code.
func (s *Server) contourHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)
	var req ContourRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		analysisRequestsTotal.WithLabelValues("contour", "error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	c, err := req.contour()
	if err != nil {
		analysisRequestsTotal.WithLabelValues("contour", "error").Inc()
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	start := time.Now()
	d, err := descriptor.Analyze(c)
	analysisDuration.WithLabelValues("contour").Observe(time.Since(start).Seconds())
	if err != nil {
		analysisRequestsTotal.WithLabelValues("contour", "error").Inc()
		contoursFailedTotal.WithLabelValues("contour").Inc()
		s.writeErrorResponse(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	analysisRequestsTotal.WithLabelValues("contour", "success").Inc()

	w.Header().Set("Content-Type", "application/json")
	response := ContourResponse{Success: true, Vertices: len(c), Chain: d.ChainString(), Descriptor: d}
	if d.ChainErr != nil {
		response.ChainError = d.ChainErr.Error()
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Failed to encode contour response", "error", err)
	}
}

// contour returns the polygon named by the request.
func (req ContourRequest) contour() (geom.Contour, error) {
	switch {
	case len(req.Points) > 0 && req.Chain != "":
		return nil, errors.New("give either points or chain, not both")
	case req.Chain != "":
		ch, err := chaincode.Parse(req.Chain)
		if err != nil {
			return nil, err
		}
		return chaincode.Decode(ch)
	case len(req.Points) > 0:
		c := make(geom.Contour, len(req.Points))
		for i, p := range req.Points {
			c[i] = image.Pt(p[0], p[1])
		}
		return c, nil
	default:
		return nil, errors.New("no points provided")
	}
}

// statusForError maps pipeline errors to HTTP status codes.
func statusForError(err error) int {
	var imgErr *utils.ImageError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	case errors.As(err, &imgErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(ErrorResponse{Success: false, Error: message}); err != nil {
		slog.Error("Failed to write error response", "error", err)
	}
}
