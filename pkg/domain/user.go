package domain

import (
	"math"
	"time"
)

// DeletedUser is the sentinel username reddit shows for removed accounts;
// comments by it are classified but never scored
const DeletedUser = "[deleted]"

// CachedVerdict is the persisted outcome of a single scored comment
type CachedVerdict struct {
	IsAI       bool
	Confidence float64
	ScoreDelta int
	Timestamp  time.Time
}

// UserStats aggregates a user's recorded comments for display and export
type UserStats struct {
	Username string
	Score    int
	Total    int
	AI       int
	Human    int
}

// AIPercentage returns the rounded share of this user's comments flagged as AI
func (s UserStats) AIPercentage() int {
	if s.Total == 0 {
		return 0
	}
	return int(math.Round(float64(s.AI) / float64(s.Total) * 100))
}

// RiskLevel bands a user by their AI percentage
type RiskLevel string

// risk bands for user score badges
const (
	RiskLow    RiskLevel = "low"    // <20%
	RiskMedium RiskLevel = "medium" // 20-40% inclusive
	RiskHigh   RiskLevel = "high"   // >40%
)

// Risk returns the risk band for the user's AI percentage
func (s UserStats) Risk() RiskLevel {
	pct := s.AIPercentage()
	switch {
	case pct < 20:
		return RiskLow
	case pct <= 40:
		return RiskMedium
	default:
		return RiskHigh
	}
}
