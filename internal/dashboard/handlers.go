package dashboard

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"msgclf/internal/common"
	"msgclf/internal/ml"
	"msgclf/internal/session"
	"msgclf/internal/storage"
	"msgclf/internal/tabular"
)

type predictRequest struct {
	Text string `json:"text" validate:"required,max=10000"`
}

type batchRequest struct {
	Messages []string `json:"messages" validate:"required,min=1,max=100000,dive,max=10000"`
}

type resultView struct {
	Input string `json:"input"`
	Label string `json:"label,omitempty"`
	Raw   any    `json:"raw,omitempty"`
	Error string `json:"error,omitempty"`
}

func viewOf(r ml.PredictionResult) resultView {
	v := resultView{Input: r.Input, Label: r.Label, Raw: r.Raw}
	if r.Err != nil {
		v.Error = r.Err.Error()
	}
	return v
}

type predictResponse struct {
	Result resultView     `json:"result"`
	Stats  session.Counts `json:"stats"`
}

type batchResponse struct {
	Results   []resultView   `json:"results"`
	Summary   session.Counts `json:"summary"`
	Stats     session.Counts `json:"stats"`
	Column    string         `json:"column"`
	ExportID  string         `json:"export_id,omitempty"`
	ExportURL string         `json:"export_url,omitempty"`
}

type modelResponse struct {
	ml.Status
	Profile     string   `json:"profile"`
	Strategies  []string `json:"strategies"`
	Remediation string   `json:"remediation,omitempty"`
}

func (s *Server) modelStatus() modelResponse {
	st := s.holder.Status()
	resp := modelResponse{
		Status:     st,
		Profile:    s.config.Profile,
		Strategies: s.loader.Strategies(),
	}
	if !st.PredictionEnabled {
		resp.Remediation = s.remediation()
	}
	return resp
}

// handleModelStatus reports the model state, strategy and substitutions.
func (s *Server) handleModelStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.modelStatus())
}

// handleModelUpload loads an uploaded artifact through the strategy chain.
func (s *Server) handleModelUpload(w http.ResponseWriter, r *http.Request) {
	if s.holder.PredictionEnabled() {
		writeError(w, http.StatusConflict, ml.ErrModelAlreadyLoaded.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.config.MaxUploadBytes); err != nil {
		s.rejectUpload()
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid upload: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("artifact")
	if err != nil {
		s.rejectUpload()
		writeError(w, http.StatusBadRequest, "missing artifact file")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !lo.Contains(common.ArtifactExtensions, ext) {
		s.rejectUpload()
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("unsupported artifact extension %q, expected one of %s", ext, joinExtensions()))
		return
	}

	out := s.loader.LoadFromStream(file)
	if !out.OK() {
		s.holder.MarkUploadFailed(out.Err())
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:       fmt.Sprintf("%s could not be loaded: all %d load strategies failed", header.Filename, len(out.Attempts)),
			Remediation: s.remediation(),
			Attempts:    attemptsView(out.Attempts),
		})
		return
	}

	if err := s.Install(out, "upload:"+header.Filename); err != nil {
		if errors.Is(err, ml.ErrModelAlreadyLoaded) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.countError()
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Info().
		Str("file", header.Filename).
		Str("strategy", out.Strategy).
		Int("failed_attempts", len(out.Attempts)).
		Msg("Uploaded artifact installed")
	writeJSON(w, http.StatusOK, s.modelStatus())
}

// handlePredict classifies a single message.
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	model, err := s.holder.Model()
	if err != nil {
		s.disabled(w)
		return
	}

	var req predictRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON body: %v", err))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	stats, sid := s.session(w, r)
	result := s.adapter.PredictOne(model, req.Text)
	results := []ml.PredictionResult{result}
	counts := stats.Record(results, s.adapter.Labels())
	s.countLabels(results)
	s.hub.broadcast(sid, counts)

	writeJSON(w, http.StatusOK, predictResponse{Result: viewOf(result), Stats: counts})
}

// handleBatch classifies many messages from a delimited file, a JSON list or
// pasted lines, stores the result table and returns an export id.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	model, err := s.holder.Model()
	if err != nil {
		s.disabled(w)
		return
	}

	table, err := s.readBatch(w, r)
	if err != nil {
		var ife *tabular.InputFormatError
		if errors.As(err, &ife) {
			s.rejectUpload()
			writeError(w, http.StatusBadRequest, ife.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	stats, sid := s.session(w, r)
	results := s.adapter.PredictBatch(model, table.Messages())
	labels := s.adapter.Labels()
	counts := stats.Record(results, labels)
	s.countLabels(results)
	s.hub.broadcast(sid, counts)

	resp := batchResponse{
		Results: lo.Map(results, func(r ml.PredictionResult, _ int) resultView { return viewOf(r) }),
		Summary: session.Summarize(results, labels),
		Stats:   counts,
		Column:  table.ColumnName(),
	}

	if id, err := s.storeResults(table, results); err != nil {
		s.countError()
		log.Error().Err(err).Msg("Failed to store result table")
	} else {
		resp.ExportID = id
		resp.ExportURL = "/api/export/" + id
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) storeResults(table *tabular.Table, results []ml.PredictionResult) (string, error) {
	var buf bytes.Buffer
	if err := tabular.WriteResults(&buf, table, results); err != nil {
		return "", fmt.Errorf("write result table: %w", err)
	}
	return s.store.Put(storage.Result{
		FileName: s.config.ExportName,
		Rows:     len(results),
		Data:     buf.Bytes(),
	})
}

// readBatch turns the request body into a table. Unreadable input is an
// *tabular.InputFormatError.
func (s *Server) readBatch(w http.ResponseWriter, r *http.Request) (*tabular.Table, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		var req batchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, &tabular.InputFormatError{Reason: "invalid JSON body", Err: err}
		}
		if err := s.validate.Struct(req); err != nil {
			return nil, &tabular.InputFormatError{Reason: "invalid message list", Err: err}
		}
		return tabular.FromMessages(req.Messages), nil

	case "multipart/form-data":
		if err := r.ParseMultipartForm(s.config.MaxUploadBytes); err != nil {
			return nil, &tabular.InputFormatError{Reason: "invalid upload", Err: err}
		}
		defer r.MultipartForm.RemoveAll()

		file, _, err := r.FormFile("file")
		if errors.Is(err, http.ErrMissingFile) {
			return pastedTable(r.FormValue("messages"))
		}
		if err != nil {
			return nil, &tabular.InputFormatError{Reason: "unreadable file", Err: err}
		}
		defer file.Close()

		opts := tabular.Options{Column: strings.TrimSpace(r.FormValue("column"))}
		if h := r.FormValue("header"); h != "" {
			hasHeader, err := strconv.ParseBool(h)
			if err != nil {
				return nil, &tabular.InputFormatError{Reason: fmt.Sprintf("header must be true or false, got %q", h)}
			}
			opts.NoHeader = !hasHeader
		}
		return tabular.ParseCSV(file, opts)

	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, &tabular.InputFormatError{Reason: "invalid form", Err: err}
		}
		return pastedTable(r.PostFormValue("messages"))

	default:
		return nil, &tabular.InputFormatError{Reason: fmt.Sprintf("unsupported content type %q", mediaType)}
	}
}

func pastedTable(text string) (*tabular.Table, error) {
	table := tabular.FromLines(text)
	if len(table.Rows) == 0 {
		return nil, &tabular.InputFormatError{Reason: "no messages provided"}
	}
	if len(table.Rows) > common.MaxBatchMessages {
		return nil, &tabular.InputFormatError{
			Reason: fmt.Sprintf("%d messages exceed the limit of %d", len(table.Rows), common.MaxBatchMessages),
		}
	}
	return table, nil
}

// handleExport downloads a stored result table.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	res, err := s.store.Get(id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no result table with that id")
		return
	}
	if err != nil {
		s.countError()
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": res.FileName}))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(res.Data)
}

// handleStats returns the caller's session counters.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, _ := s.session(w, r)
	writeJSON(w, http.StatusOK, stats.Snapshot())
}

// handleStatsReset zeroes the caller's session counters.
func (s *Server) handleStatsReset(w http.ResponseWriter, r *http.Request) {
	stats, sid := s.session(w, r)
	stats.Reset()
	counts := stats.Snapshot()
	s.hub.broadcast(sid, counts)
	writeJSON(w, http.StatusOK, counts)
}

// handleHealth answers 200 only while predictions can be served.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.holder.Status()
	code := http.StatusOK
	if !st.PredictionEnabled {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": st.State})
}

func joinExtensions() string {
	return strings.Join(common.ArtifactExtensions, " ")
}
