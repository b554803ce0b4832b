// Package scanner orchestrates a thread scan: fetch the page, walk its
// comments, classify each one, record reputation and annotate a server-side
// copy of the page. Scans are strictly serialized; a scan requested while
// one is running is coalesced into a single follow-up run.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-pkgz/lgr"

	"github.com/slopscope/slopscope/pkg/annotate"
	"github.com/slopscope/slopscope/pkg/domain"
	"github.com/slopscope/slopscope/pkg/scraper"
)

// ErrScanInProgress is returned to a caller whose scan request was folded
// into the already running one
var ErrScanInProgress = errors.New("scan already in progress")

// Classifier produces verdicts for comment text
type Classifier interface {
	Classify(ctx context.Context, text string) (domain.Verdict, error)
}

// Reputation records and replays classification outcomes
type Reputation interface {
	RecordResult(ctx context.Context, username, commentID string, isAI bool, confidence float64, model string) (bool, error)
	GetCached(ctx context.Context, username, commentID string) (*domain.CachedVerdict, error)
	AllStats(ctx context.Context) ([]domain.UserStats, error)
}

// Fetcher retrieves and parses thread pages
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (*goquery.Document, error)
}

// SettingsProvider supplies the settings snapshot for a scan
type SettingsProvider interface {
	Current() domain.Settings
}

// SubmissionExtractor pulls the submission's own text for classification,
// optional
type SubmissionExtractor interface {
	Extract(ctx context.Context, urlStr string) (string, error)
}

// Result summarizes one completed scan
type Result struct {
	URL        string          `json:"url"`
	Total      int             `json:"total"`
	Processed  int             `json:"processed"`
	AI         int             `json:"ai"`
	Human      int             `json:"human"`
	Skipped    int             `json:"skipped"`
	Failed     int             `json:"failed"`
	Submission *domain.Verdict `json:"submission,omitempty"`
}

// Scanner walks thread pages and classifies their comments
type Scanner struct {
	fetcher    Fetcher
	extractor  *scraper.Extractor
	classifier Classifier
	repo       Reputation
	settings   SettingsProvider
	submission SubmissionExtractor // nil disables submission classification
	progress   *progressTracker
	minText    int

	runMu   sync.Mutex
	running bool
	pending bool

	sessMu  sync.Mutex
	seen    map[string]struct{}
	lastURL string
	pages   map[string]string // annotated HTML per scanned URL
}

// Params configures a scanner
type Params struct {
	Fetcher      Fetcher
	Classifier   Classifier
	Repo         Reputation
	Settings     SettingsProvider
	Submission   SubmissionExtractor
	MinTextLen   int
	ProgressHide time.Duration
}

// New creates a scanner
func New(p Params) *Scanner {
	minText := p.MinTextLen
	if minText <= 0 {
		minText = domain.MinCommentLength
	}
	return &Scanner{
		fetcher:    p.Fetcher,
		extractor:  scraper.NewExtractor(),
		classifier: p.Classifier,
		repo:       p.Repo,
		settings:   p.Settings,
		submission: p.Submission,
		progress:   newProgressTracker(p.ProgressHide),
		minText:    minText,
		seen:       make(map[string]struct{}),
		pages:      make(map[string]string),
	}
}

// Scan fetches the page and classifies every comment on it. Only one scan
// runs at a time; a request arriving mid-scan returns ErrScanInProgress and
// schedules exactly one follow-up run regardless of how many arrived.
func (s *Scanner) Scan(ctx context.Context, pageURL string) (*Result, error) {
	s.runMu.Lock()
	if s.running {
		s.pending = true
		s.runMu.Unlock()
		return nil, ErrScanInProgress
	}
	s.running = true
	s.runMu.Unlock()

	res, err := s.scan(ctx, pageURL)

	s.runMu.Lock()
	s.running = false
	rerun := s.pending
	s.pending = false
	s.runMu.Unlock()

	if rerun {
		lgr.Printf("[INFO] running coalesced scan of %s", pageURL)
		go func() {
			if _, rerr := s.Scan(context.Background(), pageURL); rerr != nil && !errors.Is(rerr, ErrScanInProgress) {
				lgr.Printf("[WARN] coalesced scan of %s failed: %v", pageURL, rerr)
			}
		}()
	}

	return res, err
}

func (s *Scanner) scan(ctx context.Context, pageURL string) (*Result, error) {
	settings := s.settings.Current()

	// moving to a different thread starts a fresh session
	s.sessMu.Lock()
	if s.lastURL != pageURL {
		s.seen = make(map[string]struct{})
		s.lastURL = pageURL
	}
	s.sessMu.Unlock()

	doc, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}

	dialect := scraper.General
	if doc.Url != nil {
		dialect = scraper.DetectDialect(doc.Url.Hostname())
	}

	ann := annotate.New(settings)
	comments := s.extractor.Comments(doc, dialect)
	res := &Result{URL: pageURL, Total: comments.Length()}
	lgr.Printf("[INFO] scanning %s: %d comments (%s dialect)", pageURL, res.Total, dialect.Name)

	s.progress.start(res.Total)

	if s.submission != nil {
		res.Submission = s.classifySubmission(ctx, pageURL)
	}

	comments.EachWithBreak(func(i int, el *goquery.Selection) bool {
		if ctx.Err() != nil {
			return false
		}
		s.processComment(ctx, el, ann, settings, res)
		s.progress.update(res.Processed+res.Skipped+res.Failed, fmt.Sprintf("comment %d of %d", i+1, res.Total))
		return true
	})
	if err := ctx.Err(); err != nil {
		s.progress.finish("canceled")
		return res, err
	}

	s.attachScores(ctx, doc, ann)

	html, err := doc.Html()
	if err != nil {
		lgr.Printf("[WARN] render annotated page %s: %v", pageURL, err)
	} else {
		s.sessMu.Lock()
		s.pages[pageURL] = html
		s.sessMu.Unlock()
	}

	s.progress.finish(fmt.Sprintf("done: %d ai, %d human", res.AI, res.Human))
	lgr.Printf("[INFO] scan of %s done: %d ai, %d human, %d skipped, %d failed", pageURL, res.AI, res.Human, res.Skipped, res.Failed)
	return res, nil
}

// processComment handles a single comment element: dedupe, cache replay,
// classification, recording and annotation
func (s *Scanner) processComment(ctx context.Context, el *goquery.Selection, ann *annotate.Annotator, settings domain.Settings, res *Result) {
	id := s.extractor.CommentID(el)

	s.sessMu.Lock()
	_, dup := s.seen[id]
	if !dup {
		s.seen[id] = struct{}{}
	}
	s.sessMu.Unlock()
	if dup {
		res.Skipped++
		return
	}

	username := s.extractor.Username(el)

	// a recorded verdict is replayed without touching the model
	if username != "" {
		cached, err := s.repo.GetCached(ctx, username, id)
		if err != nil {
			lgr.Printf("[WARN] cached verdict lookup for %s/%s: %v", username, id, err)
		}
		if cached != nil {
			s.applyVerdict(el, ann, cached.IsAI)
			s.count(res, cached.IsAI)
			res.Processed++
			return
		}
	}

	text := s.extractor.Text(el)
	if len(text) < s.minText {
		res.Skipped++
		return
	}

	verdict, err := s.classifier.Classify(ctx, text)
	if err != nil {
		lgr.Printf("[WARN] classify comment %s: %v", id, err)
		res.Failed++
		return
	}

	isAI := verdict.IsAI()
	s.applyVerdict(el, ann, isAI)
	s.count(res, isAI)

	if username != "" {
		if _, err := s.repo.RecordResult(ctx, username, id, isAI, verdict.Score, settings.SelectedModel); err != nil {
			lgr.Printf("[WARN] record result for %s/%s: %v", username, id, err)
		}
	}
	res.Processed++
}

func (s *Scanner) applyVerdict(el *goquery.Selection, ann *annotate.Annotator, isAI bool) {
	if isAI {
		ann.Highlight(el)
		ann.Minimize(el)
		return
	}
	ann.MarkHuman(el)
}

func (s *Scanner) count(res *Result, isAI bool) {
	if isAI {
		res.AI++
	} else {
		res.Human++
	}
}

// classifySubmission extracts and classifies the submission's own text.
// Failures are logged and swallowed, a scan never fails on the submission.
func (s *Scanner) classifySubmission(ctx context.Context, pageURL string) *domain.Verdict {
	text, err := s.submission.Extract(ctx, pageURL)
	if err != nil {
		lgr.Printf("[DEBUG] submission extraction for %s: %v", pageURL, err)
		return nil
	}
	verdict, err := s.classifier.Classify(ctx, text)
	if err != nil {
		lgr.Printf("[WARN] classify submission %s: %v", pageURL, err)
		return nil
	}
	return &verdict
}

// attachScores decorates user links with reputation badges
func (s *Scanner) attachScores(ctx context.Context, doc *goquery.Document, ann *annotate.Annotator) {
	stats, err := s.repo.AllStats(ctx)
	if err != nil {
		lgr.Printf("[WARN] load user stats: %v", err)
		return
	}
	byUser := make(map[string]domain.UserStats, len(stats))
	for _, st := range stats {
		byUser[st.Username] = st
	}
	ann.AttachUserScores(doc, byUser)
}

// Progress reports the state of the current or most recent scan
func (s *Scanner) Progress() Progress {
	return s.progress.snapshot()
}

// Page returns the annotated HTML from the last scan of the given URL
func (s *Scanner) Page(pageURL string) (string, bool) {
	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	html, ok := s.pages[pageURL]
	return html, ok
}

// ResetSession forgets which comments were already handled and drops stored
// annotated pages, forcing the next scan to start clean
func (s *Scanner) ResetSession() {
	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	s.seen = make(map[string]struct{})
	s.lastURL = ""
	s.pages = make(map[string]string)
}
