package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bwise1/hazard_map/internal/model"
	"github.com/bwise1/hazard_map/util"
	"github.com/google/go-querystring/query"
	"github.com/google/uuid"
)

var ErrNotConfigured = errors.New("analysis api is not configured")

// Client talks to the external image analysis API.
type Client struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: timeout},
	}
}

type analyzeParams struct {
	ReportID string `url:"report_id"`
	Lang     string `url:"lang,omitempty"`
}

// analyzeResponse is the wire format of the analysis API.
type analyzeResponse struct {
	Analysis struct {
		Risks []struct {
			Category string `json:"category"`
			Risk     string `json:"risk"`
			Measure  string `json:"measure"`
		} `json:"risks"`
	} `json:"analysis"`
	ProcessedURL  string   `json:"processedUrl"`
	ProcessedURLs []string `json:"processedUrls"`
	Message       string   `json:"message"`
}

// AnalyzeImage sends the image of a report for risk analysis and returns
// the findings with any processed images the API produced.
func (c *Client) AnalyzeImage(ctx context.Context, reportID uuid.UUID, img model.Image) (model.AnalysisResult, error) {
	if c.BaseURL == "" {
		return model.AnalysisResult{}, ErrNotConfigured
	}

	params, err := query.Values(analyzeParams{ReportID: reportID.String()})
	if err != nil {
		return model.AnalysisResult{}, fmt.Errorf("encoding params: %w", err)
	}

	body, contentType, err := util.MultipartImage("file", map[string]string{"reportId": reportID.String()}, img)
	if err != nil {
		return model.AnalysisResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/analyze?"+params.Encode(), body)
	if err != nil {
		return model.AnalysisResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return model.AnalysisResult{}, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.AnalysisResult{}, fmt.Errorf("failed to read response: %w", err)
	}

	var decoded analyzeResponse
	if resp.StatusCode != http.StatusOK {
		if json.Unmarshal(raw, &decoded) == nil && decoded.Message != "" {
			return model.AnalysisResult{}, fmt.Errorf("analysis api error: status %d: %s", resp.StatusCode, decoded.Message)
		}
		return model.AnalysisResult{}, fmt.Errorf("analysis api error: status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return model.AnalysisResult{}, fmt.Errorf("failed to decode response: %w", err)
	}

	result := model.AnalysisResult{
		Risks:              make([]model.RiskFinding, 0, len(decoded.Analysis.Risks)),
		ProcessedImageURLs: []string{},
	}
	for _, r := range decoded.Analysis.Risks {
		result.Risks = append(result.Risks, model.RiskFinding{
			Category:   r.Category,
			Risk:       r.Risk,
			Mitigation: r.Measure,
		})
	}
	if decoded.ProcessedURL != "" {
		result.ProcessedImageURLs = append(result.ProcessedImageURLs, decoded.ProcessedURL)
	}
	result.ProcessedImageURLs = append(result.ProcessedImageURLs, decoded.ProcessedURLs...)
	return result, nil
}
