package server

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-pkgz/lgr"

	"github.com/slopscope/slopscope/pkg/classifier"
	"github.com/slopscope/slopscope/pkg/domain"
	"github.com/slopscope/slopscope/pkg/scanner"
)

// classifyHandler classifies a single piece of text, used by the demo mode
// and for poking at the model directly
func (s *Server) classifyHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("invalid request body"), http.StatusBadRequest)
		return
	}
	if len(req.Text) < domain.MinCommentLength {
		renderError(w, r, fmt.Errorf("text too short, need at least %d characters", domain.MinCommentLength), http.StatusBadRequest)
		return
	}

	verdict, err := s.classifier.Classify(r.Context(), req.Text)
	if err != nil {
		lgr.Printf("[ERROR] classify failed: %v", err)
		code := http.StatusInternalServerError
		if errors.Is(err, classifier.ErrModelUnavailable) {
			code = http.StatusServiceUnavailable
		}
		renderError(w, r, err, code)
		return
	}

	renderJSON(w, r, http.StatusOK, verdict)
}

// scanHandler runs a full scan of the given thread page
func (s *Server) scanHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("invalid request body"), http.StatusBadRequest)
		return
	}
	if req.URL == "" {
		renderError(w, r, fmt.Errorf("url is required"), http.StatusBadRequest)
		return
	}

	res, err := s.scanner.Scan(r.Context(), req.URL)
	if err != nil {
		if errors.Is(err, scanner.ErrScanInProgress) {
			renderError(w, r, err, http.StatusConflict)
			return
		}
		lgr.Printf("[ERROR] scan of %s failed: %v", req.URL, err)
		renderError(w, r, err, http.StatusBadGateway)
		return
	}

	renderJSON(w, r, http.StatusOK, res)
}

// progressHandler reports the state of the current or last scan
func (s *Server) progressHandler(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, r, http.StatusOK, s.scanner.Progress())
}

// pageHandler serves the annotated HTML from the last scan of a URL
func (s *Server) pageHandler(w http.ResponseWriter, r *http.Request) {
	pageURL := r.URL.Query().Get("url")
	if pageURL == "" {
		renderError(w, r, fmt.Errorf("url query parameter is required"), http.StatusBadRequest)
		return
	}

	html, ok := s.scanner.Page(pageURL)
	if !ok {
		renderError(w, r, fmt.Errorf("page not scanned yet"), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := io.WriteString(w, html); err != nil {
		lgr.Printf("[WARN] write annotated page: %v", err)
	}
}

// getSettingsHandler returns the current settings record
func (s *Server) getSettingsHandler(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, r, http.StatusOK, s.settings.Current())
}

// updateSettingsHandler merges a partial settings update
func (s *Server) updateSettingsHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		renderError(w, r, fmt.Errorf("read request body"), http.StatusBadRequest)
		return
	}

	before := s.settings.Current()
	updated, err := s.settings.Save(r.Context(), body)
	if err != nil {
		renderError(w, r, err, http.StatusBadRequest)
		return
	}

	// model changes through the settings endpoint behave like the dedicated
	// model endpoint: drop the loaded instance and recorded scores
	if updated.SelectedModel != before.SelectedModel {
		s.applyModelChange(r, updated.SelectedModel)
	}

	renderJSON(w, r, http.StatusOK, updated)
}

// changeModelHandler switches the classification model. The loaded model
// instance is discarded and all recorded scores are cleared, they were
// produced by a different model.
func (s *Server) changeModelHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model string `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("invalid request body"), http.StatusBadRequest)
		return
	}
	if req.Model == "" {
		renderError(w, r, fmt.Errorf("model is required"), http.StatusBadRequest)
		return
	}

	update, err := json.Marshal(map[string]string{"selectedModel": req.Model})
	if err != nil {
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}
	updated, err := s.settings.Save(r.Context(), update)
	if err != nil {
		renderError(w, r, err, http.StatusBadRequest)
		return
	}

	s.applyModelChange(r, req.Model)

	renderJSON(w, r, http.StatusAccepted, updated)
}

// applyModelChange resets everything derived from the previous model
func (s *Server) applyModelChange(r *http.Request, model string) {
	lgr.Printf("[INFO] model changed to %s, resetting instance and scores", model)
	s.classifier.Reset()
	if err := s.reputation.ClearAll(r.Context()); err != nil {
		lgr.Printf("[ERROR] clear scores on model change: %v", err)
	}
	s.scanner.ResetSession()
}

// userStatsHandler returns one user's recorded stats
func (s *Server) userStatsHandler(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	if username == "" {
		renderError(w, r, fmt.Errorf("username is required"), http.StatusBadRequest)
		return
	}

	stats, err := s.reputation.UserStats(r.Context(), username)
	if err != nil {
		lgr.Printf("[ERROR] user stats for %s: %v", username, err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}

	renderJSON(w, r, http.StatusOK, map[string]interface{}{
		"username":     stats.Username,
		"score":        stats.Score,
		"total":        stats.Total,
		"ai":           stats.AI,
		"human":        stats.Human,
		"aiPercentage": stats.AIPercentage(),
		"risk":         stats.Risk(),
	})
}

// exportHandler streams all recorded user stats as CSV
func (s *Server) exportHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := s.reputation.AllStats(r.Context())
	if err != nil {
		lgr.Printf("[ERROR] export stats: %v", err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}

	model := s.settings.Current().SelectedModel

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="slopscope-scores.csv"`)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"Username", "PostsScanned", "AIPosts", "HumanPosts", "ModelUsed"})
	for _, st := range stats {
		_ = cw.Write([]string{
			st.Username,
			strconv.Itoa(st.Total),
			strconv.Itoa(st.AI),
			strconv.Itoa(st.Human),
			model,
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		lgr.Printf("[WARN] write csv export: %v", err)
	}
}

// clearDataHandler wipes all recorded scores and the scan session
func (s *Server) clearDataHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.reputation.ClearAll(r.Context()); err != nil {
		lgr.Printf("[ERROR] clear data: %v", err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}
	s.scanner.ResetSession()

	renderJSON(w, r, http.StatusOK, map[string]string{"status": "cleared"})
}
