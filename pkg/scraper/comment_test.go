package scraper

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const oldRedditPage = `<html><body>
<div class="commentarea">
  <div class="comment" data-fullname="t1_abc123" id="thing_t1_abc123">
    <p class="tagline">
      <a href="/user/alice" class="author">alice</a>
      <span class="score">5 points</span>
    </p>
    <div class="usertext-body">
      <div class="md">
        <p>As a large language model, I find this discussion fascinating and nuanced.</p>
      </div>
    </div>
  </div>
  <div class="comment" data-comment-id="t1_def456">
    <p class="tagline">
      <a href="/user/bob" class="author">bob</a>
    </p>
    <div class="usertext-body">
      <div class="md">
        <blockquote><p>As a large language model, I find this discussion fascinating.</p></blockquote>
        <p>lol no way you typed that yourself</p>
      </div>
    </div>
  </div>
  <div class="comment">
    <p class="tagline">
      <span class="author">[deleted]</span>
    </p>
    <div class="usertext-body">
      <div class="md"><p>this comment survived its author</p></div>
    </div>
  </div>
</div>
</body></html>`

const newRedditPage = `<html><body>
<shreddit-comment thingid="t1_xyz789" comment-id="t1_xyz789" author-name="carol">
  <div id="poster-info-xyz789">
    <a href="/user/carol/">carol</a>
  </div>
  <div class="md">
    <p>In conclusion, this comprehensive analysis demonstrates several key insights.</p>
  </div>
</shreddit-comment>
</body></html>`

func parseDoc(t *testing.T, page string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)
	return doc
}

func TestExtractor_CommentsOldReddit(t *testing.T) {
	doc := parseDoc(t, oldRedditPage)
	extractor := NewExtractor()

	comments := extractor.Comments(doc, OldReddit)
	assert.Equal(t, 3, comments.Length())
}

func TestExtractor_CommentsFallbackToGeneral(t *testing.T) {
	// old reddit markup queried with the new reddit dialect matches nothing
	// directly, the general set still finds the comments
	doc := parseDoc(t, oldRedditPage)
	extractor := NewExtractor()

	comments := extractor.Comments(doc, NewReddit)
	assert.Equal(t, 3, comments.Length())
}

func TestExtractor_CommentOldReddit(t *testing.T) {
	doc := parseDoc(t, oldRedditPage)
	extractor := NewExtractor()

	first := extractor.Comments(doc, OldReddit).First()
	comment := extractor.Comment(first)

	assert.Equal(t, "thing_t1_abc123", comment.ID)
	assert.Equal(t, "alice", comment.Username)
	assert.Equal(t, "As a large language model, I find this discussion fascinating and nuanced.", comment.Text)
}

func TestExtractor_TextStripsQuotes(t *testing.T) {
	doc := parseDoc(t, oldRedditPage)
	extractor := NewExtractor()

	second := extractor.Comments(doc, OldReddit).Eq(1)
	text := extractor.Text(second)

	assert.Equal(t, "lol no way you typed that yourself", text)
	assert.NotContains(t, text, "large language model")
}

func TestExtractor_UsernameDeletedSkipped(t *testing.T) {
	doc := parseDoc(t, oldRedditPage)
	extractor := NewExtractor()

	third := extractor.Comments(doc, OldReddit).Eq(2)
	assert.Equal(t, "", extractor.Username(third))
}

func TestExtractor_CommentNewReddit(t *testing.T) {
	doc := parseDoc(t, newRedditPage)
	extractor := NewExtractor()

	comments := extractor.Comments(doc, NewReddit)
	require.Equal(t, 1, comments.Length())

	comment := extractor.Comment(comments.First())
	assert.Equal(t, "t1_xyz789", comment.ID)
	assert.Equal(t, "carol", comment.Username)
	assert.Contains(t, comment.Text, "comprehensive analysis")
}

func TestExtractor_CommentIDFallsBackToSlug(t *testing.T) {
	page := `<html><body><div class="comment">
		<div class="usertext-body"><div class="md"><p>an unidentified comment with plenty of text to slug from here</p></div></div>
	</div></body></html>`
	doc := parseDoc(t, page)
	extractor := NewExtractor()

	sel := extractor.Comments(doc, OldReddit).First()
	id := extractor.CommentID(sel)

	assert.True(t, strings.HasPrefix(id, "comment_"), "id=%s", id)
	assert.NotContains(t, id, " ")
	assert.LessOrEqual(t, len(id), len("comment_")+50)

	// same markup yields the same id on a second pass
	assert.Equal(t, id, extractor.CommentID(sel))
}

func TestExtractor_TextUnescapesEntities(t *testing.T) {
	page := `<html><body><div class="comment">
		<div class="usertext-body"><div class="md"><p>fish &amp; chips &gt; burgers</p></div></div>
	</div></body></html>`
	doc := parseDoc(t, page)
	extractor := NewExtractor()

	sel := extractor.Comments(doc, OldReddit).First()
	assert.Equal(t, "fish & chips > burgers", extractor.Text(sel))
}

func TestExtractor_UsernameFromBodyLinkTextMatch(t *testing.T) {
	// no tagline, but a user link whose visible text matches the username
	page := `<html><body><div class="comment">
		<a href="/u/dave">dave</a>
		<div class="usertext-body"><div class="md"><p>some comment text goes here</p></div></div>
	</div></body></html>`
	doc := parseDoc(t, page)
	extractor := NewExtractor()

	sel := extractor.Comments(doc, OldReddit).First()
	assert.Equal(t, "dave", extractor.Username(sel))
}

func TestExtractor_UsernameIgnoresBodyMentions(t *testing.T) {
	// a link to another user inside the body must not be taken as the author
	page := `<html><body><div class="comment">
		<div class="usertext-body"><div class="md"><p>shoutout to <a href="/u/mallory">this person</a></p></div></div>
	</div></body></html>`
	doc := parseDoc(t, page)
	extractor := NewExtractor()

	sel := extractor.Comments(doc, OldReddit).First()
	assert.Equal(t, "", extractor.Username(sel))
}
