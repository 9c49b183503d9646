// Package hazardclient is a Go client for the hazard report API. It
// satisfies the service interfaces the map controller depends on.
package hazardclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bwise1/hazard_map/internal/mapview"
	"github.com/bwise1/hazard_map/internal/model"
	"github.com/bwise1/hazard_map/util"
	"github.com/bwise1/hazard_map/util/values"
	"github.com/google/go-querystring/query"
	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
)

const defaultSource = "hazardmap-go"

var (
	_ mapview.ReportAPI     = (*Client)(nil)
	_ mapview.ImageUploader = (*Client)(nil)
	_ mapview.Analyzer      = (*Client)(nil)
	_ mapview.PointAwarder  = (*Client)(nil)
)

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("hazard api: %d %s: %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("hazard api: %d %s", e.StatusCode, e.Status)
}

// IsNotFound reports whether err is an API 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == values.NotFound
}

type Client struct {
	BaseURL string
	Source  string
	Token   string
	HTTP    *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Source:  defaultSource,
		Token:   token,
		HTTP:    &http.Client{Timeout: 90 * time.Second},
	}
}

// WithToken returns a copy of the client that authenticates as another
// session.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.Token = token
	return &cp
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type listParams struct {
	Status   string     `url:"status,omitempty"`
	Category string     `url:"category,omitempty"`
	Severity int        `url:"severity,omitempty"`
	Since    *time.Time `url:"since,omitempty"`
	UserID   string     `url:"user_id,omitempty"`
}

func toListParams(q model.ReportQuery) listParams {
	p := listParams{
		Status:   q.Status,
		Category: q.Category,
		Severity: q.Severity,
		Since:    q.Since,
	}
	if q.UserID != nil {
		p.UserID = q.UserID.String()
	}
	return p
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(values.HeaderRequestSource, c.Source)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Status: env.Status, Message: env.Message}
		if decodeErr != nil {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}
	if decodeErr != nil {
		return fmt.Errorf("failed to decode response: %w", decodeErr)
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode data: %w", err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, body, contentType, out)
}

func (c *Client) ListReports(ctx context.Context, q model.ReportQuery) ([]model.Report, error) {
	params, err := query.Values(toListParams(q))
	if err != nil {
		return nil, fmt.Errorf("encoding params: %w", err)
	}
	path := "/reports"
	if enc := params.Encode(); enc != "" {
		path += "?" + enc
	}

	reports := []model.Report{}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

// Markers fetches approved reports as GeoJSON marker features.
func (c *Client) Markers(ctx context.Context, q model.ReportQuery) (*geojson.FeatureCollection, error) {
	params, err := query.Values(toListParams(q))
	if err != nil {
		return nil, fmt.Errorf("encoding params: %w", err)
	}
	fc := geojson.NewFeatureCollection()
	if err := c.doJSON(ctx, http.MethodGet, "/reports/markers?"+params.Encode(), nil, fc); err != nil {
		return nil, err
	}
	return fc, nil
}

func (c *Client) GetReport(ctx context.Context, id uuid.UUID) (model.Report, error) {
	var report model.Report
	err := c.doJSON(ctx, http.MethodGet, "/reports/"+id.String(), nil, &report)
	return report, err
}

func (c *Client) CreateReport(ctx context.Context, req model.CreateReportRequest) (model.Report, error) {
	var report model.Report
	err := c.doJSON(ctx, http.MethodPost, "/reports", req, &report)
	return report, err
}

func (c *Client) DeleteReport(ctx context.Context, id uuid.UUID) error {
	return c.doJSON(ctx, http.MethodDelete, "/reports/"+id.String(), nil, nil)
}

func (c *Client) ApproveReport(ctx context.Context, id uuid.UUID) (model.Report, error) {
	var report model.Report
	err := c.doJSON(ctx, http.MethodPut, "/reports/"+id.String()+"/approve", nil, &report)
	return report, err
}

func (c *Client) AppendProcessedImages(ctx context.Context, id uuid.UUID, urls []string) (model.Report, error) {
	var report model.Report
	err := c.doJSON(ctx, http.MethodPost, "/reports/"+id.String()+"/processed-images", model.AppendImagesRequest{URLs: urls}, &report)
	return report, err
}

func (c *Client) UploadImage(ctx context.Context, img model.Image, kind model.ImageKind) (string, error) {
	body, contentType, err := util.MultipartImage("file", map[string]string{"kind": string(kind)}, img)
	if err != nil {
		return "", err
	}
	var out model.UploadImageResponse
	if err := c.do(ctx, http.MethodPost, "/images", body, contentType, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

// AnalyzeReportImage asks the API to analyse img for the report. The API
// stores any processed images before answering.
func (c *Client) AnalyzeReportImage(ctx context.Context, reportID uuid.UUID, img model.Image) (model.AnalysisResult, error) {
	body, contentType, err := util.MultipartImage("file", nil, img)
	if err != nil {
		return model.AnalysisResult{}, err
	}
	var out model.AnalysisResult
	err = c.do(ctx, http.MethodPost, "/reports/"+reportID.String()+"/analysis", body, contentType, &out)
	return out, err
}

// AwardPoints credits the owner of a report with a submission or view
// reward.
func (c *Client) AwardPoints(ctx context.Context, userID, reportID uuid.UUID, delta int) error {
	req := model.AwardPointsRequest{UserID: userID, ReportID: &reportID, Delta: delta}
	return c.doJSON(ctx, http.MethodPost, "/points", req, nil)
}

func (c *Client) CurrentUser(ctx context.Context) (model.User, error) {
	var user model.User
	err := c.doJSON(ctx, http.MethodGet, "/users/profile", nil, &user)
	return user, err
}
