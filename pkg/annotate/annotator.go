// Package annotate rewrites a fetched thread page with classification
// results: AI highlights, human indicators, collapsed comments and per-user
// score badges. All edits are additive attributes, classes and overlay
// elements so the page's own markup stays intact.
package annotate

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/slopscope/slopscope/pkg/domain"
)

// containerSelector matches the enclosing comment element across page flavors
const containerSelector = `shreddit-profile-comment, shreddit-comment, [data-testid="comment"], .comment`

// marker attributes and classes left on annotated elements
const (
	attrHighlighted  = "data-llm-highlighted"
	attrHumanMarked  = "data-human-marked"
	classHighlighted = "llm-detected"
	classWarning     = "llm-warning-badge"
	classHuman       = "human-indicator"
)

// Annotator applies verdict markup to comment elements. Settings gate each
// kind of indicator; an annotator is built per scan with the settings
// snapshot in effect at scan start.
type Annotator struct {
	settings domain.Settings
}

// New creates an annotator honoring the given settings
func New(settings domain.Settings) *Annotator {
	return &Annotator{settings: settings}
}

// Highlight marks the comment containing the body element as AI-detected.
// Idempotent per element, disabled when comment highlighting is off.
func (a *Annotator) Highlight(body *goquery.Selection) {
	if !a.settings.HighlightComments {
		return
	}
	if _, done := body.Attr(attrHighlighted); done {
		return
	}
	body.SetAttr(attrHighlighted, "true")

	container := containerOf(body)
	if container.Length() == 0 {
		return
	}
	container.AddClass(classHighlighted)
	container.AppendHtml(`<div class="` + classWarning + `">⚠️ May be AI-generated</div>`)
}

// MarkHuman attaches a small human indicator to the comment containing the
// body element. Idempotent, disabled unless human indicators are on.
func (a *Annotator) MarkHuman(body *goquery.Selection) {
	if !a.settings.ShowHumanIndicators {
		return
	}
	if _, done := body.Attr(attrHumanMarked); done {
		return
	}
	body.SetAttr(attrHumanMarked, "true")

	container := containerOf(body)
	if container.Length() == 0 {
		return
	}
	container.AppendHtml(`<div class="` + classHuman + `">✓ Human</div>`)
}

// Clear strips every annotation from the document: highlights, indicators,
// score badges and collapse markers
func Clear(doc *goquery.Document) {
	doc.Find("[" + attrHighlighted + "]").RemoveAttr(attrHighlighted)
	doc.Find("[" + attrHumanMarked + "]").RemoveAttr(attrHumanMarked)
	doc.Find("." + classHighlighted).RemoveClass(classHighlighted)
	doc.Find("." + classWarning).Remove()
	doc.Find("." + classHuman).Remove()
	doc.Find("." + classScoreBadge).Remove()
	doc.Find("." + classMinimized).Remove()
	doc.Find("[" + attrHidden + "]").RemoveAttr("hidden").RemoveAttr(attrHidden)
	doc.Find("[" + attrCollapsed + "]").RemoveClass("collapsed").RemoveAttr("collapsed").RemoveAttr(attrCollapsed)
}

// containerOf finds the enclosing comment element, falling back to the
// body's parent when no known container matches
func containerOf(body *goquery.Selection) *goquery.Selection {
	container := body.Closest(containerSelector)
	if container.Length() == 0 {
		container = body.Parent()
	}
	return container
}
