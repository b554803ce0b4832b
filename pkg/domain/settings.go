package domain

import "encoding/json"

// AggressionLevel controls how intrusively AI-flagged comments are treated
type AggressionLevel string

// supported aggression levels
const (
	AggressionLow  AggressionLevel = "low"  // passive highlight only
	AggressionHigh AggressionLevel = "high" // highlight plus collapse
)

// DefaultModel is the text-classification model used when none is selected
const DefaultModel = "trentmkelly/slop-detector-mini-2"

// Settings holds user-facing detector configuration. The record is always
// fully populated: missing fields are filled from defaults on load.
type Settings struct {
	ShowProgress        bool            `json:"showProgress"`
	ShowUserScores      bool            `json:"showUserScores"`
	HighlightComments   bool            `json:"highlightComments"`
	ShowHumanIndicators bool            `json:"showHumanIndicators"`
	AutoAnalyze         bool            `json:"autoAnalyze"`
	AggressionLevel     AggressionLevel `json:"aggressionLevel"`
	SelectedModel       string          `json:"selectedModel"`
}

// DefaultSettings returns the documented default settings record
func DefaultSettings() Settings {
	return Settings{
		ShowProgress:        true,
		ShowUserScores:      true,
		HighlightComments:   true,
		ShowHumanIndicators: false,
		AutoAnalyze:         true,
		AggressionLevel:     AggressionLow,
		SelectedModel:       DefaultModel,
	}
}

// MergeSettings overlays persisted JSON over defaults, field by field.
// Fields absent from the persisted blob keep their default values; a nil or
// empty blob yields exactly the defaults.
func MergeSettings(persisted []byte) (Settings, error) {
	res := DefaultSettings()
	if len(persisted) == 0 {
		return res, nil
	}

	// pointer shadow distinguishes "absent" from zero values
	var overlay struct {
		ShowProgress        *bool            `json:"showProgress"`
		ShowUserScores      *bool            `json:"showUserScores"`
		HighlightComments   *bool            `json:"highlightComments"`
		ShowHumanIndicators *bool            `json:"showHumanIndicators"`
		AutoAnalyze         *bool            `json:"autoAnalyze"`
		AggressionLevel     *AggressionLevel `json:"aggressionLevel"`
		SelectedModel       *string          `json:"selectedModel"`
	}
	if err := json.Unmarshal(persisted, &overlay); err != nil {
		return res, err
	}

	if overlay.ShowProgress != nil {
		res.ShowProgress = *overlay.ShowProgress
	}
	if overlay.ShowUserScores != nil {
		res.ShowUserScores = *overlay.ShowUserScores
	}
	if overlay.HighlightComments != nil {
		res.HighlightComments = *overlay.HighlightComments
	}
	if overlay.ShowHumanIndicators != nil {
		res.ShowHumanIndicators = *overlay.ShowHumanIndicators
	}
	if overlay.AutoAnalyze != nil {
		res.AutoAnalyze = *overlay.AutoAnalyze
	}
	if overlay.AggressionLevel != nil && (*overlay.AggressionLevel == AggressionLow || *overlay.AggressionLevel == AggressionHigh) {
		res.AggressionLevel = *overlay.AggressionLevel
	}
	if overlay.SelectedModel != nil && *overlay.SelectedModel != "" {
		res.SelectedModel = *overlay.SelectedModel
	}
	return res, nil
}
