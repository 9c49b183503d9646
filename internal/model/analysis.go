package model

// RiskFinding is one hazard the analysis service spotted in a photo.
type RiskFinding struct {
	Category   string `json:"category"`
	Risk       string `json:"risk"`
	Mitigation string `json:"mitigation"`
}

type AnalysisResult struct {
	Risks              []RiskFinding `json:"risks"`
	ProcessedImageURLs []string      `json:"processed_image_urls"`
}
