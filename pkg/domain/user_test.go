package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserStats_AIPercentage(t *testing.T) {
	tests := []struct {
		name  string
		stats UserStats
		want  int
	}{
		{name: "no comments", stats: UserStats{}, want: 0},
		{name: "all human", stats: UserStats{Total: 5, Human: 5}, want: 0},
		{name: "all ai", stats: UserStats{Total: 3, AI: 3}, want: 100},
		{name: "one third rounds down", stats: UserStats{Total: 3, AI: 1, Human: 2}, want: 33},
		{name: "two thirds rounds up", stats: UserStats{Total: 3, AI: 2, Human: 1}, want: 67},
		{name: "exact half", stats: UserStats{Total: 2, AI: 1, Human: 1}, want: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.stats.AIPercentage())
		})
	}
}

func TestUserStats_Risk(t *testing.T) {
	tests := []struct {
		name  string
		stats UserStats
		want  RiskLevel
	}{
		{name: "zero comments is low", stats: UserStats{}, want: RiskLow},
		{name: "19 percent is low", stats: UserStats{Total: 100, AI: 19, Human: 81}, want: RiskLow},
		{name: "20 percent is medium", stats: UserStats{Total: 100, AI: 20, Human: 80}, want: RiskMedium},
		{name: "40 percent is medium", stats: UserStats{Total: 100, AI: 40, Human: 60}, want: RiskMedium},
		{name: "41 percent is high", stats: UserStats{Total: 100, AI: 41, Human: 59}, want: RiskHigh},
		{name: "all ai is high", stats: UserStats{Total: 4, AI: 4}, want: RiskHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.stats.Risk())
		})
	}
}
