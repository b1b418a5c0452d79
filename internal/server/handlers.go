package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/KaramelBytes/vizqa/internal/ai"
	"github.com/KaramelBytes/vizqa/internal/analysis"
	"github.com/KaramelBytes/vizqa/internal/clean"
	"github.com/KaramelBytes/vizqa/internal/insight"
	"github.com/KaramelBytes/vizqa/internal/loader"
	"github.com/KaramelBytes/vizqa/internal/metrics"
	"github.com/KaramelBytes/vizqa/internal/notice"
	"github.com/KaramelBytes/vizqa/internal/session"
	"github.com/KaramelBytes/vizqa/internal/table"
	"github.com/KaramelBytes/vizqa/internal/viz"
)

// overviewRows is the number of rows previewed in dataset responses.
const overviewRows = 5

type datasetResponse struct {
	Name       string          `json:"name"`
	Rows       int             `json:"rows"`
	Columns    []string        `json:"columns"`
	DTypes     string          `json:"dtypes"`
	Overview   string          `json:"overview"`
	Summary    string          `json:"summary"`
	Cleaned    bool            `json:"cleaned"`
	HasCleaned bool            `json:"has_cleaned"`
	Notices    []notice.Notice `json:"notices,omitempty"`
}

func describeDataset(t *table.Table, cleaned, hasCleaned bool) datasetResponse {
	rows, _ := t.Shape()
	return datasetResponse{
		Name:       t.Name,
		Rows:       rows,
		Columns:    t.ColumnNames(),
		DTypes:     analysis.DTypes(t),
		Overview:   analysis.Overview(t, overviewRows),
		Summary:    analysis.Describe(t).String(),
		Cleaned:    cleaned,
		HasCleaned: hasCleaned,
	}
}

// readUpload returns the bytes and filename of a multipart field.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, field string) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	f, hdr, err := r.FormFile(field)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", &requestError{status: http.StatusRequestEntityTooLarge, msg: fmt.Sprintf("upload exceeds %d MB", s.cfg.MaxUploadBytes>>20)}
		}
		return nil, "", &requestError{status: http.StatusBadRequest, msg: fmt.Sprintf("multipart field %q is required", field)}
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", &requestError{status: http.StatusBadRequest, msg: "reading upload: " + err.Error()}
	}
	return data, hdr.Filename, nil
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	data, name, err := s.readUpload(w, r, "file")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	format, _ := loader.Detect(name, data)
	t, err := loader.Load(name, data, s.cfg.Load)
	s.m.DatasetsLoadedTotal.WithLabelValues(string(format), metrics.Outcome(err)).Inc()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sess := sessionFrom(r)
	sess.SetDataset(t)
	rows, cols := t.Shape()
	s.log.Info("dataset uploaded",
		zap.String("session", sess.ID),
		zap.String("name", t.Name),
		zap.String("format", string(format)),
		zap.Int("rows", rows),
		zap.Int("columns", cols),
	)
	resp := describeDataset(t, false, false)
	resp.Notices = []notice.Notice{notice.Successf("File uploaded successfully!")}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	t, cleaned, err := sess.Current()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, describeDataset(t, cleaned, sess.HasCleaned()))
}

func (s *Server) handleClean(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	raw, err := sess.Raw()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cleaned, rep := clean.Clean(raw)
	if err := sess.SetCleaned(cleaned); err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := describeDataset(cleaned, true, true)
	resp.Notices = append(rep.Notices(), notice.Successf("Data cleaned successfully!"))
	writeJSON(w, http.StatusOK, resp)
}

type viewRequest struct {
	Cleaned bool `json:"cleaned"`
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	var req viewRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sess := sessionFrom(r)
	if err := sess.ShowCleaned(req.Cleaned); err != nil {
		s.writeError(w, r, err)
		return
	}
	t, cleaned, err := sess.Current()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, describeDataset(t, cleaned, sess.HasCleaned()))
}

type credentialRequest struct {
	APIKey string `json:"api_key"`
}

func (s *Server) handleCredential(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	key := strings.TrimSpace(req.APIKey)
	if key == "" {
		s.writeError(w, r, &requestError{status: http.StatusBadRequest, msg: "api_key is required"})
		return
	}
	sessionFrom(r).SetAPIKey(key)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type visualizeRequest struct {
	Prompt string `json:"prompt"`
}

type chartRef struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
	URL   string `json:"url"`
}

type visualizeResponse struct {
	Response string          `json:"response"`
	Code     string          `json:"code"`
	Fallback bool            `json:"fallback,omitempty"`
	Charts   []chartRef      `json:"charts"`
	Notices  []notice.Notice `json:"notices,omitempty"`
	Error    string          `json:"error,omitempty"`
}

func (s *Server) handleVisualize(w http.ResponseWriter, r *http.Request) {
	var req visualizeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sess := sessionFrom(r)
	t, _, err := sess.Current()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if t.Empty() {
		s.writeError(w, r, viz.ErrEmptyTable)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		s.writeError(w, r, viz.ErrEmptyPrompt)
		return
	}
	rt, err := s.runtime(sess)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()
	svc := viz.New(rt, s.cfg.Executor, s.cfg.Viz, s.log.With(zap.String("session", sess.ID)))
	res, err := svc.Generate(ctx, t, req.Prompt)
	if res == nil {
		s.writeError(w, r, err)
		return
	}

	out := visualizeResponse{Response: res.Response, Code: res.Code, Fallback: res.Fallback, Charts: []chartRef{}, Notices: res.Notices}
	for _, c := range res.Charts {
		sess.AddChart(session.Chart{ID: c.ID, Title: c.Title, PNG: c.PNG})
		out.Charts = append(out.Charts, chartRef{ID: c.ID, Title: c.Title, URL: "/api/charts/" + c.ID})
	}
	status := http.StatusOK
	if err != nil {
		out.Error = err.Error()
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, out)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	c, ok := sessionFrom(r).Chart(chi.URLParam(r, "id"))
	if !ok {
		s.writeError(w, r, &requestError{status: http.StatusNotFound, msg: "chart not found"})
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(c.PNG)
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	data, _, err := s.readUpload(w, r, "image")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(data) == 0 {
		s.writeError(w, r, insight.ErrEmptyImage)
		return
	}
	sess := sessionFrom(r)
	rt, err := s.runtime(sess)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()
	text, err := insight.New(rt, s.cfg.Insight, s.log.With(zap.String("session", sess.ID))).Analyze(ctx, data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"insights": text})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	s.store.Delete(sessionFrom(r).ID)
	cs, _ := s.cookies.Get(r, cookieName)
	cs.Options.MaxAge = -1
	if err := cs.Save(r, w); err != nil {
		s.log.Error("clearing session cookie", zap.Error(err))
	}
	w.WriteHeader(http.StatusNoContent)
}

var errAPIKeyRequired = errors.New("API key required")

// runtime builds the model runtime for a request. In interactive mode the
// session must carry its own credential.
func (s *Server) runtime(sess *session.Session) (ai.Runtime, error) {
	if s.cfg.NewRuntime == nil {
		return nil, errAPIKeyRequired
	}
	key := ""
	if !s.cfg.RequireAPIKey {
		if key = sess.APIKey(); key == "" {
			return nil, errAPIKeyRequired
		}
	}
	return s.cfg.NewRuntime(key)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return &requestError{status: http.StatusBadRequest, msg: "invalid JSON body: " + err.Error()}
	}
	return nil
}
