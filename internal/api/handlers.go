// Package api exposes batch processing over HTTP.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rshade/rowprompt/internal/cache"
	"github.com/rshade/rowprompt/internal/config"
	"github.com/rshade/rowprompt/internal/engine"
	"github.com/rshade/rowprompt/internal/llm"
	"github.com/rshade/rowprompt/internal/logging"
	"github.com/rshade/rowprompt/internal/output"
	"github.com/rshade/rowprompt/internal/progress"
	"github.com/rshade/rowprompt/internal/table"
)

const (
	headerLogPath = "X-Log-Path"
	headerRunID   = "X-Run-ID"

	downloadName = "processed_output.csv"
	bytesPerMB   = 1 << 20
)

// Multipart form fields accepted by Process.
const (
	fieldFile         = "file"
	fieldPrompt       = "prompt"
	fieldAPIKey       = "api_key"
	fieldProvider     = "provider"
	fieldModel        = "model"
	fieldTemperature  = "temperature"
	fieldTopP         = "top_p"
	fieldNumThreads   = "num_threads"
	fieldSystemPrompt = "system_prompt"
	fieldIgnoredFile  = "ignored_file"
)

// InvokerFactory builds the model client for one request.
type InvokerFactory func(ctx context.Context, opts llm.Options) (llm.Invoker, error)

// Handler serves the processing endpoints.
type Handler struct {
	cfg        *config.Config
	store      progress.Store
	writer     *output.Writer
	newInvoker InvokerFactory
	respCache  *cache.FileStore
}

// NewHandler wires a Handler. A nil factory selects llm.New.
func NewHandler(cfg *config.Config, store progress.Store, writer *output.Writer, factory InvokerFactory) *Handler {
	if factory == nil {
		factory = llm.New
	}
	return &Handler{
		cfg:        cfg,
		store:      store,
		writer:     writer,
		newInvoker: factory,
	}
}

// WithResponseCache serves repeated prompts from store. A nil store disables
// caching.
func (h *Handler) WithResponseCache(store *cache.FileStore) *Handler {
	h.respCache = store
	return h
}

// requestError is a client error with the status to report.
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{status: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

// processRequest is the decoded multipart form.
type processRequest struct {
	table    *table.Table
	template string
	apiKey   string
	provider string
	params   llm.Params
	workers  int
	ignored  table.IDSet
}

// Process runs an uploaded CSV through the prompt template and streams the
// processed table back as an attachment. The X-Log-Path header carries the
// error log location, or is empty when every row succeeded.
func (h *Handler) Process(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.FromContext(ctx)

	req, err := h.decodeProcess(r)
	if err != nil {
		writeRequestError(w, err)
		return
	}

	opts := h.cfg.Model.InvokerOptions(req.apiKey)
	if req.provider != "" {
		opts.Provider = req.provider
	}
	invoker, err := h.newInvoker(ctx, opts)
	if err != nil {
		if errors.Is(err, llm.ErrMissingAPIKey) || errors.Is(err, llm.ErrUnknownProvider) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Msg("failed to create model client")
		writeError(w, http.StatusInternalServerError, internalServerError)
		return
	}
	invoker = cache.Wrap(invoker, h.respCache, opts.Provider)

	orch, err := engine.NewOrchestrator(h.store, invoker,
		engine.WithWorkers(req.workers),
		engine.WithOutputColumn(h.cfg.Processing.OutputColumn),
	)
	if err != nil {
		log.Error().Err(err).Msg("failed to create orchestrator")
		writeError(w, http.StatusInternalServerError, internalServerError)
		return
	}

	res, err := orch.Run(ctx, req.table, req.template, req.params, req.ignored)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidTemplate) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Msg("batch run failed")
		writeError(w, http.StatusInternalServerError, internalServerError)
		return
	}

	art, err := h.writer.Write(res)
	if err != nil {
		log.Error().Err(err).Msg("failed to write run artifacts")
		writeError(w, http.StatusInternalServerError, internalServerError)
		return
	}

	log.Info().
		Str("run_id", art.RunID).
		Int("processed", res.Processed).
		Int("failed", res.Failed).
		Str("csv_path", art.CSVPath).
		Str("log_path", art.LogPath).
		Msg("processing request complete")

	var buf bytes.Buffer
	if err = table.WriteCSV(&buf, res.Table); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
		writeError(w, http.StatusInternalServerError, internalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", downloadName))
	w.Header().Set(headerLogPath, art.LogPath)
	w.Header().Set(headerRunID, art.RunID)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) decodeProcess(r *http.Request) (*processRequest, error) {
	maxBytes := h.cfg.Server.MaxUploadMB * bytesPerMB
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return nil, badRequest("invalid multipart form: %v", err)
	}

	data, err := readFormFile(r, fieldFile)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, badRequest("%s is required", fieldFile)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, badRequest("uploaded file is empty")
	}
	tbl, err := table.ReadCSV(bytes.NewReader(data))
	if err != nil {
		return nil, badRequest("invalid CSV: %v", err)
	}

	tmpl := r.FormValue(fieldPrompt)
	if strings.TrimSpace(tmpl) == "" {
		return nil, badRequest("%s is required", fieldPrompt)
	}

	params := h.cfg.Model.Params()
	if v := r.FormValue(fieldModel); v != "" {
		params.Model = v
	}
	if v, ok := r.MultipartForm.Value[fieldSystemPrompt]; ok && len(v) > 0 {
		params.SystemPrompt = v[0]
	}
	if params.Temperature, err = formFloat(r, fieldTemperature, params.Temperature, config.MaxTemperature); err != nil {
		return nil, err
	}
	if params.TopP, err = formFloat(r, fieldTopP, params.TopP, config.MaxTopP); err != nil {
		return nil, err
	}

	workers := h.cfg.Processing.Workers
	if v := r.FormValue(fieldNumThreads); v != "" {
		n, convErr := strconv.Atoi(v)
		if convErr != nil || n < 1 {
			return nil, badRequest("%s must be a positive integer", fieldNumThreads)
		}
		workers = n
	}

	ignored := table.NewIDSet()
	ignoredData, err := readFormFile(r, fieldIgnoredFile)
	if err != nil {
		return nil, err
	}
	if ignoredData != nil {
		if ignored, err = table.ParseIDList(bytes.NewReader(ignoredData)); err != nil {
			return nil, badRequest("invalid %s: %v", fieldIgnoredFile, err)
		}
	}

	return &processRequest{
		table:    tbl,
		template: tmpl,
		apiKey:   r.FormValue(fieldAPIKey),
		provider: r.FormValue(fieldProvider),
		params:   params,
		workers:  workers,
		ignored:  ignored,
	}, nil
}

// readFormFile returns the content of an uploaded file, or nil when the
// field is absent.
func readFormFile(r *http.Request, field string) ([]byte, error) {
	f, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, badRequest("reading %s: %v", field, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, badRequest("reading %s: %v", field, err)
	}
	return data, nil
}

func formFloat(r *http.Request, field string, def, limit float64) (float64, error) {
	v := r.FormValue(field)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 || f > limit {
		return 0, badRequest("%s must be a number between 0 and %g", field, limit)
	}
	return f, nil
}

// Reset clears the progress store.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Reset(r.Context()); err != nil {
		logging.FromContext(r.Context()).Error().Err(err).Msg("failed to reset progress")
		writeError(w, http.StatusInternalServerError, internalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "processing state has been reset"})
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeRequestError(w http.ResponseWriter, err error) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		writeError(w, reqErr.status, reqErr.msg)
		return
	}
	writeError(w, http.StatusInternalServerError, internalServerError)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
