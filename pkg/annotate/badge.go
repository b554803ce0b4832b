package annotate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/slopscope/slopscope/pkg/domain"
)

const classScoreBadge = "user-score-badge"

var badgeUserHrefRe = regexp.MustCompile(`/u(?:ser)?/([^/?#]+)`)

// risk band display names for badge tooltips
var riskNames = map[domain.RiskLevel]string{
	domain.RiskLow:    "Low Risk",
	domain.RiskMedium: "Medium Risk",
	domain.RiskHigh:   "High Risk",
}

// AttachUserScores decorates every user link in the document with that
// user's AI-percentage badge. Users without recorded comments get no badge;
// a link that already carries one is left alone. Disabled unless user scores
// are on.
func (a *Annotator) AttachUserScores(doc *goquery.Document, stats map[string]domain.UserStats) {
	if !a.settings.ShowUserScores {
		return
	}

	doc.Find(`a[href*="/user/"], a[href*="/u/"]`).Each(func(_ int, link *goquery.Selection) {
		m := badgeUserHrefRe.FindStringSubmatch(link.AttrOr("href", ""))
		if len(m) < 2 {
			return
		}
		s, ok := stats[m[1]]
		if !ok || s.Total == 0 {
			return
		}
		parent := link.Parent()
		if parent.Find("." + classScoreBadge).Length() > 0 {
			return
		}
		link.AfterHtml(scoreBadgeHTML(s))
	})
}

// scoreBadgeHTML renders one user's badge with its risk band class
func scoreBadgeHTML(s domain.UserStats) string {
	pct := s.AIPercentage()
	risk := s.Risk()
	title := fmt.Sprintf("AI Detection: %s - %d%% of comments flagged as AI (%d/%d comments)",
		riskNames[risk], pct, s.AI, s.Total)
	var b strings.Builder
	fmt.Fprintf(&b, `<span class="%s risk-%s" title="%s">AI: %d%% (%d/%d)</span>`,
		classScoreBadge, risk, title, pct, s.AI, s.Total)
	return b.String()
}
