package scraper

import (
	stdhtml "html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-pkgz/lgr"
	"github.com/microcosm-cc/bluemonday"

	"github.com/slopscope/slopscope/pkg/domain"
)

// containerSelector matches the enclosing comment element across all
// supported page flavors
const containerSelector = `shreddit-profile-comment, shreddit-comment, [data-testid="comment"], .comment`

var (
	userHrefRe   = regexp.MustCompile(`/u(?:ser)?/([^/?#]+)`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Extractor pulls comments out of a parsed thread page
type Extractor struct {
	policy *bluemonday.Policy
}

// NewExtractor creates a comment extractor
func NewExtractor() *Extractor {
	return &Extractor{policy: bluemonday.StrictPolicy()}
}

// Comments finds comment body elements using the dialect's selectors,
// falling back to the general set when the dialect matches nothing
func (e *Extractor) Comments(doc *goquery.Document, dialect Dialect) *goquery.Selection {
	sel := doc.Find(dialect.Comments)
	if sel.Length() == 0 && dialect.Name != General.Name {
		lgr.Printf("[DEBUG] no comments matched %s selectors, trying general", dialect.Name)
		sel = doc.Find(General.Comments)
	}
	return sel
}

// Comment assembles the comment extracted from one body element
func (e *Extractor) Comment(sel *goquery.Selection) domain.Comment {
	return domain.Comment{
		ID:       e.CommentID(sel),
		Username: e.Username(sel),
		Text:     e.Text(sel),
	}
}

// Text returns the comment's own text, with quoted blocks and spoilers
// removed and markup stripped
func (e *Extractor) Text(sel *goquery.Selection) string {
	clone := sel.Clone()
	clone.Find("blockquote, .md-spoiler-text").Remove()

	raw, err := clone.Html()
	if err != nil {
		return strings.TrimSpace(sel.Text())
	}
	return strings.TrimSpace(stdhtml.UnescapeString(e.policy.Sanitize(raw)))
}

// idSource reads one candidate identifier attribute
type idSource struct {
	name string
	get  func(container, body *goquery.Selection) string
}

// identifier sources in priority order: container attributes first, then the
// body element's own, then a slug derived from the text
var idSources = []idSource{
	{"container comment-id", func(c, _ *goquery.Selection) string { return c.AttrOr("comment-id", "") }},
	{"container data-comment-id", func(c, _ *goquery.Selection) string { return c.AttrOr("data-comment-id", "") }},
	{"container data-testid", func(c, _ *goquery.Selection) string { return c.AttrOr("data-testid", "") }},
	{"container id", func(c, _ *goquery.Selection) string { return c.AttrOr("id", "") }},
	{"body data-comment-id", func(_, b *goquery.Selection) string { return b.AttrOr("data-comment-id", "") }},
	{"body data-testid", func(_, b *goquery.Selection) string { return b.AttrOr("data-testid", "") }},
	{"body id", func(_, b *goquery.Selection) string { return b.AttrOr("id", "") }},
}

// CommentID derives a stable identifier for the comment. When no identifier
// attribute is present anywhere, a slug of the first 50 text characters is
// used so repeated scans of the same page still dedupe.
func (e *Extractor) CommentID(sel *goquery.Selection) string {
	container := sel.Closest(containerSelector)
	for _, src := range idSources {
		if id := src.get(container, sel); id != "" {
			return id
		}
	}

	text := e.Text(sel)
	if len(text) > 50 {
		text = text[:50]
	}
	return "comment_" + whitespaceRe.ReplaceAllString(text, "_")
}

// usernameStrategy extracts the author from a comment container
type usernameStrategy struct {
	name    string
	extract func(container *goquery.Selection) string
}

// author extraction strategies in priority order. Each targets one page
// flavor's markup; all of them reject the deleted-account placeholder.
var usernameStrategies = []usernameStrategy{
	{"profile comment author link", profileAuthorLink},
	{"old reddit tagline author", taglineAuthor},
	{"author-name attribute", authorNameAttr},
	{"comment meta user link", metaUserLink},
	{"data-author attribute", dataAuthorAttr},
	{"poster info link", posterInfoLink},
}

// Username extracts the comment author, or "" when no strategy finds one.
// Comments without an author are still classified and annotated but never
// recorded against a reputation.
func (e *Extractor) Username(sel *goquery.Selection) string {
	container := sel.Closest(containerSelector)
	if container.Length() == 0 {
		return ""
	}
	for _, s := range usernameStrategies {
		if username := s.extract(container); username != "" {
			return username
		}
	}
	lgr.Printf("[DEBUG] no username found in comment container")
	return ""
}

func profileAuthorLink(container *goquery.Selection) string {
	if goquery.NodeName(container) != "shreddit-profile-comment" {
		return ""
	}
	return usernameFromHref(container.Find(`a[href*="/user/"], a[href*="/u/"]`).First())
}

func taglineAuthor(container *goquery.Selection) string {
	text := strings.TrimSpace(container.Find(".tagline .author").First().Text())
	if text == "" || text == domain.DeletedUser || strings.Contains(text, " ") {
		return ""
	}
	return text
}

func authorNameAttr(container *goquery.Selection) string {
	name := container.Find("[author-name]").First().AttrOr("author-name", "")
	if name == domain.DeletedUser {
		return ""
	}
	return name
}

// metaUserLink scans user links but only trusts ones sitting in comment
// metadata, or whose visible text matches the username. Links in the comment
// body can point at arbitrary users.
func metaUserLink(container *goquery.Selection) string {
	var username string
	container.Find(`a[href*="/user/"], a[href*="/u/"]`).EachWithBreak(func(_ int, link *goquery.Selection) bool {
		m := userHrefRe.FindStringSubmatch(link.AttrOr("href", ""))
		if len(m) < 2 || m[1] == domain.DeletedUser {
			return true
		}
		inMeta := link.Closest(`.tagline, [id*="poster-info"], .comment-meta, faceplate-hovercard`).Length() > 0
		if inMeta || strings.TrimSpace(link.Text()) == m[1] {
			username = m[1]
			return false
		}
		return true
	})
	return username
}

func dataAuthorAttr(container *goquery.Selection) string {
	author := container.Find("[data-author]").First().AttrOr("data-author", "")
	if author == domain.DeletedUser {
		return ""
	}
	return author
}

func posterInfoLink(container *goquery.Selection) string {
	return usernameFromHref(container.Find(`[id*="poster-info"]`).Find(`a[href*="/user/"], a[href*="/u/"]`).First())
}

func usernameFromHref(link *goquery.Selection) string {
	m := userHrefRe.FindStringSubmatch(link.AttrOr("href", ""))
	if len(m) < 2 || m[1] == domain.DeletedUser {
		return ""
	}
	return m[1]
}
