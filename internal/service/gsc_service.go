package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/quillforge/quillforge-api/internal/models"
	"github.com/quillforge/quillforge-api/internal/repository"
)

// PerformanceSource supplies 30-day search performance metrics per project.
// Implementations must be total: a project without data yields zeros, not
// an error, so one bad property can never break a reconciliation run.
type PerformanceSource interface {
	ProjectMetrics(ctx context.Context, projectID string) models.GSCPerformance
}

// gscCredentials is the stored OAuth credential document for a property.
type gscCredentials struct {
	Token        string   `json:"token"`
	RefreshToken string   `json:"refresh_token"`
	TokenURI     string   `json:"token_uri"`
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	Scopes       []string `json:"scopes"`
}

// GSCService fetches search performance metrics from the Search Console
// API, with lazy token refresh on expired access tokens.
type GSCService struct {
	repos      *repository.Repositories
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
	logger     *slog.Logger
}

// NewGSCService creates a new search-console performance service.
func NewGSCService(repos *repository.Repositories, baseURL string, timeout time.Duration, logger *slog.Logger) *GSCService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GSCService{
		repos:      repos,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		timeout:    timeout,
		logger:     logger,
	}
}

// ProjectMetrics returns last-30-day performance for a project's linked
// property. Projects without a linked account, and any API failure, yield
// zero metrics so monitoring refresh always completes.
func (s *GSCService) ProjectMetrics(ctx context.Context, projectID string) models.GSCPerformance {
	account, err := s.repos.Project.GetGSCAccount(ctx, projectID)
	if err != nil {
		s.logger.Error("failed to look up search console account", "project_id", projectID, "error", err)
		return models.GSCPerformance{}
	}
	if account == nil {
		return models.GSCPerformance{}
	}

	perf, err := s.fetchPerformance(ctx, account)
	if err != nil {
		s.logger.Error("failed to fetch search console metrics", "project_id", projectID, "site_url", account.SiteURL, "error", err)
		return models.GSCPerformance{}
	}
	return perf
}

// queryRow is one row of a search analytics response.
type queryRow struct {
	Clicks      float64 `json:"clicks"`
	Impressions float64 `json:"impressions"`
	CTR         float64 `json:"ctr"`
	Position    float64 `json:"position"`
}

func (s *GSCService) fetchPerformance(ctx context.Context, account *models.GSCAccount) (models.GSCPerformance, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var creds gscCredentials
	if err := json.Unmarshal([]byte(account.Credentials), &creds); err != nil {
		return models.GSCPerformance{}, fmt.Errorf("invalid stored credentials: %w", err)
	}

	end := time.Now()
	start := end.AddDate(0, 0, -30)
	body := map[string]any{
		"startDate":  start.Format("2006-01-02"),
		"endDate":    end.Format("2006-01-02"),
		"dimensions": []string{},
		"searchType": "web",
	}

	rows, status, err := s.query(ctx, account.SiteURL, creds.Token, body)
	if err != nil {
		return models.GSCPerformance{}, err
	}
	if status == http.StatusUnauthorized {
		// Access token expired: refresh once and retry.
		token, err := s.refreshToken(ctx, creds)
		if err != nil {
			return models.GSCPerformance{}, fmt.Errorf("token refresh failed: %w", err)
		}
		rows, status, err = s.query(ctx, account.SiteURL, token, body)
		if err != nil {
			return models.GSCPerformance{}, err
		}
	}
	if status != http.StatusOK {
		return models.GSCPerformance{}, fmt.Errorf("search analytics query returned status %d", status)
	}

	return aggregateRows(rows), nil
}

// query runs one search analytics request. A 401 is returned via status,
// not error, so the caller can refresh and retry.
func (s *GSCService) query(ctx context.Context, siteURL, token string, body map[string]any) ([]queryRow, int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, 0, err
	}

	endpoint := fmt.Sprintf("%s/webmasters/v3/sites/%s/searchAnalytics/query",
		s.baseURL, url.PathEscape(siteURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, resp.Body)
		return nil, http.StatusUnauthorized, nil
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, resp.StatusCode, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(data))
	}

	var result struct {
		Rows []queryRow `json:"rows"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to parse response: %w", err)
	}
	return result.Rows, resp.StatusCode, nil
}

// refreshToken exchanges the refresh token for a new access token.
func (s *GSCService) refreshToken(ctx context.Context, creds gscCredentials) (string, error) {
	if creds.RefreshToken == "" || creds.TokenURI == "" {
		return "", fmt.Errorf("credentials carry no refresh token")
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {creds.RefreshToken},
		"client_id":     {creds.ClientID},
		"client_secret": {creds.ClientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, creds.TokenURI,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, string(data))
	}

	var result struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.AccessToken, nil
}

// aggregateRows sums clicks and impressions and computes impression-
// weighted CTR (as a percentage) and average position, both rounded to
// two decimals.
func aggregateRows(rows []queryRow) models.GSCPerformance {
	if len(rows) == 0 {
		return models.GSCPerformance{}
	}

	var clicks, impressions, weightedCTR, weightedPos float64
	for _, row := range rows {
		clicks += row.Clicks
		impressions += row.Impressions
		weightedCTR += row.CTR * row.Impressions
		weightedPos += row.Position * row.Impressions
	}

	perf := models.GSCPerformance{
		Clicks:      int(clicks),
		Impressions: int(impressions),
	}
	if impressions > 0 {
		perf.CTR = round2(weightedCTR / impressions * 100)
		perf.Position = round2(weightedPos / impressions)
	}
	return perf
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
