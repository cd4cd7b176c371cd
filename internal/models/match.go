package models

type MatchScore struct {
	Total               int            `json:"total"`
	Breakdown           ScoreBreakdown `json:"breakdown"`
	MissingRequirements []string       `json:"missing_requirements"`
	Eligible            bool           `json:"eligible"`
}

type ScoreBreakdown struct {
	Categories     int `json:"categories"`
	Region         int `json:"region"`
	Amount         int `json:"amount"`
	Certifications int `json:"certifications"`
}

func (b ScoreBreakdown) Sum() int {
	return b.Categories + b.Region + b.Amount + b.Certifications
}

type Light string

const (
	LightGreen  Light = "green"
	LightYellow Light = "yellow"
	LightRed    Light = "red"
)

type Recommendation string

const (
	RecommendParticipate       Recommendation = "participate"
	RecommendEvaluateCarefully Recommendation = "evaluate_carefully"
	RecommendDoNotParticipate  Recommendation = "do_not_participate"
)
