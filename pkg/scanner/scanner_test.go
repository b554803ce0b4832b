package scanner

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slopscope/slopscope/pkg/domain"
)

const threadPage = `<html><body>
<div class="commentarea">
  <div class="comment" id="thing_t1_aaa">
    <p class="tagline"><a href="/user/alice" class="author">alice</a></p>
    <div class="usertext-body"><div class="md">
      <p>As a large language model, I can confirm this take is both nuanced and multifaceted.</p>
    </div></div>
  </div>
  <div class="comment" id="thing_t1_bbb">
    <p class="tagline"><a href="/user/bob" class="author">bob</a></p>
    <div class="usertext-body"><div class="md">
      <p>nah mate that's just wrong, source: I was there in 2009</p>
    </div></div>
  </div>
  <div class="comment" id="thing_t1_ccc">
    <p class="tagline"><a href="/user/carol" class="author">carol</a></p>
    <div class="usertext-body"><div class="md"><p>lol</p></div></div>
  </div>
</div>
</body></html>`

const threadURL = "https://old.reddit.com/r/test/comments/1abc/thread/"

// fakeFetcher parses a fixed page for any URL
type fakeFetcher struct {
	html    string
	fetches atomic.Int32
}

func (f *fakeFetcher) Fetch(_ context.Context, pageURL string) (*goquery.Document, error) {
	f.fetches.Add(1)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(f.html))
	if err != nil {
		return nil, err
	}
	doc.Url, _ = url.Parse(pageURL)
	return doc, nil
}

// fakeClassifier flags text mentioning language models as AI and counts calls
type fakeClassifier struct {
	mu    sync.Mutex
	calls int
	gate  chan struct{}
}

func (c *fakeClassifier) Classify(_ context.Context, text string) (domain.Verdict, error) {
	if c.gate != nil {
		<-c.gate
	}
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if strings.Contains(text, "large language model") {
		return domain.Verdict{Label: domain.LabelAI, Score: 0.95}, nil
	}
	return domain.Verdict{Label: domain.LabelHuman, Score: 0.9}, nil
}

func (c *fakeClassifier) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// fakeRepo is an in-memory reputation store
type fakeRepo struct {
	mu     sync.Mutex
	cached map[string]*domain.CachedVerdict
	saved  map[string]bool // user|id -> isAI
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{cached: map[string]*domain.CachedVerdict{}, saved: map[string]bool{}}
}

func (r *fakeRepo) RecordResult(_ context.Context, username, commentID string, isAI bool, confidence float64, _ string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := username + "|" + commentID
	if _, ok := r.saved[key]; ok {
		return false, nil
	}
	r.saved[key] = isAI
	delta := 1
	if isAI {
		delta = -1
	}
	r.cached[key] = &domain.CachedVerdict{IsAI: isAI, Confidence: confidence, ScoreDelta: delta, Timestamp: time.Now()}
	return true, nil
}

func (r *fakeRepo) GetCached(_ context.Context, username, commentID string) (*domain.CachedVerdict, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cached[username+"|"+commentID], nil
}

func (r *fakeRepo) AllStats(_ context.Context) ([]domain.UserStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byUser := map[string]*domain.UserStats{}
	for key, isAI := range r.saved {
		user := strings.SplitN(key, "|", 2)[0]
		st, ok := byUser[user]
		if !ok {
			st = &domain.UserStats{Username: user}
			byUser[user] = st
		}
		st.Total++
		if isAI {
			st.AI++
			st.Score--
		} else {
			st.Human++
			st.Score++
		}
	}
	out := make([]domain.UserStats, 0, len(byUser))
	for _, st := range byUser {
		out = append(out, *st)
	}
	return out, nil
}

// staticSettings always returns the same snapshot
type staticSettings struct{ s domain.Settings }

func (p staticSettings) Current() domain.Settings { return p.s }

func newTestScanner(fetcher *fakeFetcher, classifier *fakeClassifier, repo *fakeRepo) *Scanner {
	return New(Params{
		Fetcher:      fetcher,
		Classifier:   classifier,
		Repo:         repo,
		Settings:     staticSettings{domain.DefaultSettings()},
		ProgressHide: 50 * time.Millisecond,
	})
}

func TestScanner_Scan(t *testing.T) {
	classifier := &fakeClassifier{}
	repo := newFakeRepo()
	s := newTestScanner(&fakeFetcher{html: threadPage}, classifier, repo)

	res, err := s.Scan(context.Background(), threadURL)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 1, res.AI)
	assert.Equal(t, 1, res.Human)
	assert.Equal(t, 1, res.Skipped, "short comment must be skipped")
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, 2, classifier.callCount())

	// verdicts recorded against their authors
	assert.True(t, repo.saved["alice|thing_t1_aaa"])
	assert.False(t, repo.saved["bob|thing_t1_bbb"])
	_, carolRecorded := repo.saved["carol|thing_t1_ccc"]
	assert.False(t, carolRecorded)

	// annotated page is stored, with the AI highlight and score badges
	html, ok := s.Page(threadURL)
	require.True(t, ok)
	assert.Contains(t, html, "llm-warning-badge")
	assert.Contains(t, html, "user-score-badge")
}

func TestScanner_RescanSkipsSeenComments(t *testing.T) {
	classifier := &fakeClassifier{}
	s := newTestScanner(&fakeFetcher{html: threadPage}, classifier, newFakeRepo())

	_, err := s.Scan(context.Background(), threadURL)
	require.NoError(t, err)
	first := classifier.callCount()

	res, err := s.Scan(context.Background(), threadURL)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Skipped, "everything already seen this session")
	assert.Equal(t, first, classifier.callCount(), "no model calls on rescan")
}

func TestScanner_URLChangeResetsSession(t *testing.T) {
	classifier := &fakeClassifier{}
	repo := newFakeRepo()
	s := newTestScanner(&fakeFetcher{html: threadPage}, classifier, repo)

	_, err := s.Scan(context.Background(), threadURL)
	require.NoError(t, err)

	// new thread: session set cleared, but recorded verdicts replay from the
	// store instead of hitting the model again
	res, err := s.Scan(context.Background(), "https://old.reddit.com/r/test/comments/2def/other/")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 2, classifier.callCount(), "cached verdicts must not re-classify")
}

func TestScanner_ResetSessionForcesReprocessing(t *testing.T) {
	classifier := &fakeClassifier{}
	repo := newFakeRepo()
	s := newTestScanner(&fakeFetcher{html: threadPage}, classifier, repo)

	_, err := s.Scan(context.Background(), threadURL)
	require.NoError(t, err)

	s.ResetSession()
	_, ok := s.Page(threadURL)
	assert.False(t, ok, "stored pages dropped on reset")

	res, err := s.Scan(context.Background(), threadURL)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 2, classifier.callCount(), "verdicts still replayed from the store")
}

func TestScanner_ConcurrentScansCoalesce(t *testing.T) {
	classifier := &fakeClassifier{gate: make(chan struct{})}
	fetcher := &fakeFetcher{html: threadPage}
	s := newTestScanner(fetcher, classifier, newFakeRepo())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := s.Scan(context.Background(), threadURL)
		assert.NoError(t, err)
	}()

	// wait until the first scan is inside the classifier
	require.Eventually(t, func() bool { return fetcher.fetches.Load() == 1 }, time.Second, 5*time.Millisecond)

	// both rejected requests fold into a single follow-up run
	_, err := s.Scan(context.Background(), threadURL)
	assert.ErrorIs(t, err, ErrScanInProgress)
	_, err = s.Scan(context.Background(), threadURL)
	assert.ErrorIs(t, err, ErrScanInProgress)

	close(classifier.gate)
	<-done

	require.Eventually(t, func() bool { return fetcher.fetches.Load() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(2), fetcher.fetches.Load(), "exactly one coalesced rerun")
}

func TestScanner_ProgressLifecycle(t *testing.T) {
	classifier := &fakeClassifier{}
	s := newTestScanner(&fakeFetcher{html: threadPage}, classifier, newFakeRepo())

	assert.Equal(t, Progress{}, s.Progress())

	_, err := s.Scan(context.Background(), threadURL)
	require.NoError(t, err)

	p := s.Progress()
	assert.False(t, p.Active)
	assert.Equal(t, 3, p.Total)
	assert.Contains(t, p.Status, "done")

	// progress auto-clears shortly after completion
	assert.Eventually(t, func() bool { return s.Progress() == Progress{} }, time.Second, 10*time.Millisecond)
}

func TestScanner_SubmissionClassified(t *testing.T) {
	classifier := &fakeClassifier{}
	s := New(Params{
		Fetcher:    &fakeFetcher{html: threadPage},
		Classifier: classifier,
		Repo:       newFakeRepo(),
		Settings:   staticSettings{domain.DefaultSettings()},
		Submission: submissionFunc(func(context.Context, string) (string, error) {
			return "As a large language model, I have written this entire post for you.", nil
		}),
	})

	res, err := s.Scan(context.Background(), threadURL)
	require.NoError(t, err)
	require.NotNil(t, res.Submission)
	assert.Equal(t, domain.LabelAI, res.Submission.Label)
}

func TestScanner_SubmissionFailureIgnored(t *testing.T) {
	classifier := &fakeClassifier{}
	s := New(Params{
		Fetcher:    &fakeFetcher{html: threadPage},
		Classifier: classifier,
		Repo:       newFakeRepo(),
		Settings:   staticSettings{domain.DefaultSettings()},
		Submission: submissionFunc(func(context.Context, string) (string, error) {
			return "", context.DeadlineExceeded
		}),
	})

	res, err := s.Scan(context.Background(), threadURL)
	require.NoError(t, err)
	assert.Nil(t, res.Submission)
	assert.Equal(t, 1, res.AI)
}

// submissionFunc adapts a func to the SubmissionExtractor interface
type submissionFunc func(ctx context.Context, urlStr string) (string, error)

func (f submissionFunc) Extract(ctx context.Context, urlStr string) (string, error) {
	return f(ctx, urlStr)
}
