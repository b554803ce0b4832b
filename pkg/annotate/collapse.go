package annotate

import (
	"github.com/PuerkitoBio/goquery"
	"github.com/go-pkgz/lgr"

	"github.com/slopscope/slopscope/pkg/domain"
)

// collapse markers
const (
	attrCollapsed  = "data-slop-collapsed"
	attrHidden     = "data-slop-hidden"
	classMinimized = "auto-minimized-indicator"
)

// collapseStrategy finds this flavor's native collapse control inside the
// container and, when present, applies the collapsed state
type collapseStrategy struct {
	name     string
	selector string
	apply    func(container, control *goquery.Selection)
}

// collapse strategies in priority order, mirroring how each page flavor
// collapses a comment natively. The manual fallback runs only when none of
// the native controls exist.
var collapseStrategies = []collapseStrategy{
	{
		name:     "old reddit expand toggle",
		selector: `.expand[onclick*="togglecomment"]`,
		apply:    collapseOldReddit,
	},
	{
		name:     "old reddit alternative toggles",
		selector: `.expand, a[onclick*="togglecomment"], [onclick*="collapse"]`,
		apply:    collapseOldReddit,
	},
	{
		name:     "new reddit collapse button",
		selector: `button[aria-label*="collapse"], button[aria-label*="Collapse"]`,
		apply:    collapseNewReddit,
	},
	{
		name:     "new reddit collapse button variants",
		selector: `button[data-testid*="collapse"], button[title*="collapse"], button[title*="Collapse"]`,
		apply:    collapseNewReddit,
	},
}

// Minimize collapses the comment containing the body element the way its
// page flavor would, used for AI-detected comments under high aggression.
// Returns false when no container is found at all.
func (a *Annotator) Minimize(body *goquery.Selection) bool {
	if a.settings.AggressionLevel != domain.AggressionHigh {
		return false
	}

	container := body.Closest(containerSelector)
	if container.Length() == 0 {
		return false
	}

	for _, s := range collapseStrategies {
		if control := container.Find(s.selector).First(); control.Length() > 0 {
			lgr.Printf("[DEBUG] collapsing comment via %s", s.name)
			s.apply(container, control)
			return true
		}
	}

	return minimizeManually(container)
}

// collapseOldReddit swaps the container into old reddit's collapsed state
func collapseOldReddit(container, _ *goquery.Selection) {
	container.RemoveClass("noncollapsed").AddClass("collapsed")
	container.SetAttr(attrCollapsed, "true")
}

// collapseNewReddit marks the shreddit element collapsed
func collapseNewReddit(container, _ *goquery.Selection) {
	container.SetAttr("collapsed", "")
	container.SetAttr(attrCollapsed, "true")
}

// minimizeManually hides the comment body directly and leaves an indicator
// in its place, the fallback when no native control is present
func minimizeManually(container *goquery.Selection) bool {
	body := container.Find(`.usertext-body, .md, [data-testid="comment-content"]`).First()
	if body.Length() == 0 {
		lgr.Printf("[DEBUG] no comment body found to minimize")
		return false
	}

	body.SetAttr("hidden", "")
	body.SetAttr(attrHidden, "true")
	body.BeforeHtml(`<div class="` + classMinimized + `">🤖 Auto-minimized (suspected AI)</div>`)
	container.SetAttr(attrCollapsed, "true")
	return true
}

// Restore undoes a manual minimize on the comment containing the body
// element, leaving native collapse states alone
func Restore(container *goquery.Selection) {
	container.Find("." + classMinimized).Remove()
	container.Find("[" + attrHidden + "]").RemoveAttr("hidden").RemoveAttr(attrHidden)
	container.RemoveAttr(attrCollapsed)
}
