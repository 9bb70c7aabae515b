package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/quillforge/quillforge-api/internal/models"
)

func gscTestCredentials(tokenURI string) string {
	creds, _ := json.Marshal(map[string]any{
		"token":         "stale-token",
		"refresh_token": "refresh-1",
		"token_uri":     tokenURI,
		"client_id":     "client-1",
		"client_secret": "secret-1",
	})
	return string(creds)
}

func TestProjectMetrics_NoAccount(t *testing.T) {
	repos, _, _ := newTestRepositories()
	svc := NewGSCService(repos, "http://localhost:0", time.Second, testLogger())

	perf := svc.ProjectMetrics(context.Background(), "project-1")
	if perf != (models.GSCPerformance{}) {
		t.Errorf("expected zero metrics without a linked account, got %+v", perf)
	}
}

func TestProjectMetrics_Aggregates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer stale-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"rows": []map[string]float64{
				{"clicks": 10, "impressions": 100, "ctr": 0.10, "position": 5.0},
				{"clicks": 30, "impressions": 300, "ctr": 0.10, "position": 9.0},
			},
		})
	}))
	defer server.Close()

	repos, _, _ := newTestRepositories()
	projects := repos.Project.(*mockProjectRepository)
	projects.gscAccounts["project-1"] = &models.GSCAccount{
		ProjectID:   "project-1",
		SiteURL:     "https://example.com",
		Credentials: gscTestCredentials(server.URL + "/token"),
	}

	svc := NewGSCService(repos, server.URL, time.Second, testLogger())
	perf := svc.ProjectMetrics(context.Background(), "project-1")

	if perf.Clicks != 40 {
		t.Errorf("expected 40 clicks, got %d", perf.Clicks)
	}
	if perf.Impressions != 400 {
		t.Errorf("expected 400 impressions, got %d", perf.Impressions)
	}
	// CTR weighted by impressions, reported as a percentage.
	if perf.CTR != 10.0 {
		t.Errorf("expected CTR 10.0, got %f", perf.CTR)
	}
	// (5*100 + 9*300) / 400 = 8.0
	if perf.Position != 8.0 {
		t.Errorf("expected position 8.0, got %f", perf.Position)
	}
}

func TestProjectMetrics_RefreshesExpiredToken(t *testing.T) {
	var refreshed atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("grant_type") != "refresh_token" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		refreshed.Store(true)
		json.NewEncoder(w).Encode(map[string]string{"access_token": "fresh-token"})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"rows": []map[string]float64{
				{"clicks": 5, "impressions": 50, "ctr": 0.10, "position": 3.0},
			},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	repos, _, _ := newTestRepositories()
	projects := repos.Project.(*mockProjectRepository)
	projects.gscAccounts["project-1"] = &models.GSCAccount{
		ProjectID:   "project-1",
		SiteURL:     "https://example.com",
		Credentials: gscTestCredentials(server.URL + "/token"),
	}

	svc := NewGSCService(repos, server.URL, time.Second, testLogger())
	perf := svc.ProjectMetrics(context.Background(), "project-1")

	if !refreshed.Load() {
		t.Fatal("expected a token refresh")
	}
	if perf.Clicks != 5 {
		t.Errorf("expected 5 clicks after refresh, got %d", perf.Clicks)
	}
}

func TestProjectMetrics_APIErrorYieldsZeros(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	repos, _, _ := newTestRepositories()
	projects := repos.Project.(*mockProjectRepository)
	projects.gscAccounts["project-1"] = &models.GSCAccount{
		ProjectID:   "project-1",
		SiteURL:     "https://example.com",
		Credentials: gscTestCredentials(server.URL + "/token"),
	}

	svc := NewGSCService(repos, server.URL, time.Second, testLogger())
	perf := svc.ProjectMetrics(context.Background(), "project-1")
	if perf != (models.GSCPerformance{}) {
		t.Errorf("expected zero metrics on API failure, got %+v", perf)
	}
}

func TestProjectMetrics_BadCredentialsYieldZeros(t *testing.T) {
	repos, _, _ := newTestRepositories()
	projects := repos.Project.(*mockProjectRepository)
	projects.gscAccounts["project-1"] = &models.GSCAccount{
		ProjectID:   "project-1",
		SiteURL:     "https://example.com",
		Credentials: "{not json",
	}

	svc := NewGSCService(repos, "http://localhost:0", time.Second, testLogger())
	perf := svc.ProjectMetrics(context.Background(), "project-1")
	if perf != (models.GSCPerformance{}) {
		t.Errorf("expected zero metrics on bad credentials, got %+v", perf)
	}
}

func TestAggregateRows(t *testing.T) {
	tests := []struct {
		name string
		rows []queryRow
		want models.GSCPerformance
	}{
		{"empty", nil, models.GSCPerformance{}},
		{
			"single row",
			[]queryRow{{Clicks: 7, Impressions: 70, CTR: 0.1, Position: 4.567}},
			models.GSCPerformance{Clicks: 7, Impressions: 70, CTR: 10.0, Position: 4.57},
		},
		{
			"zero impressions",
			[]queryRow{{Clicks: 0, Impressions: 0, CTR: 0, Position: 0}},
			models.GSCPerformance{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := aggregateRows(tt.rows)
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}
