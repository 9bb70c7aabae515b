package reconcile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/quillforge/quillforge-api/internal/models"
	"github.com/quillforge/quillforge-api/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeProjectRepo implements repository.ProjectRepository for testing.
type fakeProjectRepo struct {
	projects  []*models.Project
	gscCounts map[string]int
	listErr   error
}

func (f *fakeProjectRepo) ListProjects(ctx context.Context) ([]*models.Project, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.projects, nil
}

func (f *fakeProjectRepo) CountGSCAccountsByProject(ctx context.Context) (map[string]int, error) {
	if f.gscCounts == nil {
		return map[string]int{}, nil
	}
	return f.gscCounts, nil
}

func (f *fakeProjectRepo) GetGSCAccount(ctx context.Context, projectID string) (*models.GSCAccount, error) {
	return nil, nil
}

// fakeMonitoringRepo implements repository.MonitoringRepository for testing.
type fakeMonitoringRepo struct {
	mu       sync.Mutex
	existing []*models.MonitoringProjectStats
	upserted []*models.MonitoringProjectStats
}

func (f *fakeMonitoringRepo) GetAll(ctx context.Context) ([]*models.MonitoringProjectStats, error) {
	return f.existing, nil
}

func (f *fakeMonitoringRepo) GetByUserID(ctx context.Context, userID string) ([]*models.MonitoringProjectStats, error) {
	return nil, nil
}

func (f *fakeMonitoringRepo) UpsertBatch(ctx context.Context, rows []*models.MonitoringProjectStats) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserted = rows
	return nil
}

func (f *fakeMonitoringRepo) Count(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.upserted), nil
}

func (f *fakeMonitoringRepo) row(projectID string) *models.MonitoringProjectStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.upserted {
		if r.ProjectID == projectID {
			return r
		}
	}
	return nil
}

// fakeContentRepo implements repository.ContentRepository for testing.
type fakeContentRepo struct {
	docs    []models.ContentDoc
	findErr error
}

func (f *fakeContentRepo) FindActiveContent(ctx context.Context) ([]models.ContentDoc, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.docs, nil
}

// fakePerformance implements service.PerformanceSource for testing.
type fakePerformance struct {
	metrics map[string]models.GSCPerformance
	calls   []string
	mu      sync.Mutex
}

func (f *fakePerformance) ProjectMetrics(ctx context.Context, projectID string) models.GSCPerformance {
	f.mu.Lock()
	f.calls = append(f.calls, projectID)
	f.mu.Unlock()
	return f.metrics[projectID]
}

func doc(userID, projectID string, wordCount any) models.ContentDoc {
	return models.ContentDoc{
		ID:        primitive.NewObjectID(),
		UserID:    userID,
		ProjectID: projectID,
		WordCount: wordCount,
	}
}

func newTestReconciler(content *fakeContentRepo, projects *fakeProjectRepo,
	monitoring *fakeMonitoringRepo, perf *fakePerformance) *Reconciler {
	repos := &repository.Repositories{
		Project:    projects,
		Monitoring: monitoring,
		Content:    content,
	}
	return New(repos, perf, testLogger())
}

func TestRun_BucketsAndSummary(t *testing.T) {
	content := &fakeContentRepo{docs: []models.ContentDoc{
		doc("user-1", "p1", 800),
		doc("user-1", "p1", "1500"),
		doc("user-1", "p1", 2000),
		doc("user-1", "p1", "garbage"),
		doc("user-2", "p2", 1200.0),
	}}
	projects := &fakeProjectRepo{projects: []*models.Project{
		{ID: "p1", UserID: "user-1", Name: "Site One", URL: "https://one.example"},
		{ID: "p2", UserID: "user-2", Name: "Site Two", URL: "https://two.example"},
		{ID: "p3", UserID: "user-3", Name: "Empty Site", URL: "https://three.example"},
	}}
	monitoring := &fakeMonitoringRepo{}
	perf := &fakePerformance{}

	rec := newTestReconciler(content, projects, monitoring, perf)
	summary, err := rec.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.ProjectsWithBlogs != 2 {
		t.Errorf("expected 2 projects with blogs, got %d", summary.ProjectsWithBlogs)
	}
	if summary.TotalBlogsProcessed != 5 {
		t.Errorf("expected 5 blogs processed, got %d", summary.TotalBlogsProcessed)
	}
	if summary.WordCountIssues != 1 {
		t.Errorf("expected 1 word count issue, got %d", summary.WordCountIssues)
	}
	if summary.TotalRowsInserted != 3 {
		t.Errorf("expected 3 rows inserted, got %d", summary.TotalRowsInserted)
	}
	if summary.FinalTableSize != 3 {
		t.Errorf("expected final table size 3, got %d", summary.FinalTableSize)
	}

	p1 := monitoring.row("p1")
	if p1 == nil {
		t.Fatal("missing row for p1")
	}
	if p1.Blog1000 != 1 || p1.Blog1500 != 1 || p1.Blog2500 != 1 {
		t.Errorf("unexpected p1 buckets: %d/%d/%d", p1.Blog1000, p1.Blog1500, p1.Blog2500)
	}
	if p1.ProjectName != "Site One" {
		t.Errorf("expected project metadata from the projects table, got %q", p1.ProjectName)
	}

	p3 := monitoring.row("p3")
	if p3 == nil {
		t.Fatal("missing row for blog-less project p3")
	}
	if p3.Blog1000 != 0 || p3.Blog1500 != 0 || p3.Blog2500 != 0 {
		t.Errorf("expected zero buckets for p3, got %d/%d/%d", p3.Blog1000, p3.Blog1500, p3.Blog2500)
	}
}

func TestRun_OrphanContentFallsBackToExistingRow(t *testing.T) {
	content := &fakeContentRepo{docs: []models.ContentDoc{
		doc("user-9", "ghost-project", 900),
	}}
	projects := &fakeProjectRepo{}
	monitoring := &fakeMonitoringRepo{existing: []*models.MonitoringProjectStats{
		{ProjectID: "ghost-project", UserID: "user-9", ProjectName: "Old Name", ProjectURL: "https://old.example"},
	}}

	rec := newTestReconciler(content, projects, monitoring, &fakePerformance{})
	if _, err := rec.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	row := monitoring.row("ghost-project")
	if row == nil {
		t.Fatal("missing orphan row")
	}
	if row.ProjectName != "Old Name" || row.ProjectURL != "https://old.example" {
		t.Errorf("expected metadata from previous row, got %q %q", row.ProjectName, row.ProjectURL)
	}
	if row.Blog1000 != 1 {
		t.Errorf("expected 1 blog in 1000 bucket, got %d", row.Blog1000)
	}
}

func TestRun_OrphanContentWithoutHistoryGetsPlaceholder(t *testing.T) {
	content := &fakeContentRepo{docs: []models.ContentDoc{
		doc("user-9", "brand-new", 900),
	}}

	monitoring := &fakeMonitoringRepo{}
	rec := newTestReconciler(content, &fakeProjectRepo{}, monitoring, &fakePerformance{})
	if _, err := rec.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	row := monitoring.row("brand-new")
	if row == nil {
		t.Fatal("missing orphan row")
	}
	if row.ProjectName != "Unknown Project" || row.ProjectURL != "" {
		t.Errorf("expected placeholder metadata, got %q %q", row.ProjectName, row.ProjectURL)
	}
	if row.UserID != "user-9" {
		t.Errorf("expected user id from content, got %q", row.UserID)
	}
}

func TestRun_MonitoringOnlyProjectResetsToZero(t *testing.T) {
	// A project whose content was all deleted and whose project row is gone
	// still has a monitoring row from earlier runs. The rebuild must rewrite
	// it with zeroed buckets instead of leaving the stale counts behind.
	monitoring := &fakeMonitoringRepo{existing: []*models.MonitoringProjectStats{
		{
			ProjectID:    "stale-p",
			UserID:       "user-5",
			ProjectName:  "Retired Site",
			ProjectURL:   "https://retired.example",
			Blog1000:     5,
			Blog1500:     2,
			GSCConnected: 1,
			CMSConnected: 1,
		},
	}}
	perf := &fakePerformance{metrics: map[string]models.GSCPerformance{
		"stale-p": {Clicks: 3, Impressions: 40, CTR: 7.5, Position: 12.0},
	}}

	rec := newTestReconciler(&fakeContentRepo{}, &fakeProjectRepo{}, monitoring, perf)
	summary, err := rec.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.TotalRowsInserted != 1 {
		t.Fatalf("expected 1 row written, got %d", summary.TotalRowsInserted)
	}

	row := monitoring.row("stale-p")
	if row == nil {
		t.Fatal("missing rewritten row for monitoring-only project")
	}
	if row.Blog1000 != 0 || row.Blog1500 != 0 || row.Blog2500 != 0 {
		t.Errorf("expected zeroed buckets, got %d/%d/%d", row.Blog1000, row.Blog1500, row.Blog2500)
	}
	if row.UserID != "user-5" || row.ProjectName != "Retired Site" || row.ProjectURL != "https://retired.example" {
		t.Errorf("expected metadata carried from previous row, got %+v", row)
	}
	if row.GSCConnected != 1 {
		t.Errorf("expected GSC link state carried from previous row, got %d", row.GSCConnected)
	}
	if row.GSCClicks != 3 || row.GSCImpressions != 40 {
		t.Errorf("expected fresh search metrics, got clicks=%d impressions=%d", row.GSCClicks, row.GSCImpressions)
	}
	if row.CMSConnected != 1 {
		t.Error("expected CMS link state carried from previous row")
	}
}

func TestRun_FetchesMetricsOnlyForLinkedProjects(t *testing.T) {
	projects := &fakeProjectRepo{
		projects: []*models.Project{
			{ID: "linked", UserID: "u1", Name: "Linked", URL: "https://l.example"},
			{ID: "unlinked", UserID: "u2", Name: "Unlinked", URL: "https://u.example"},
		},
		gscCounts: map[string]int{"linked": 1},
	}
	perf := &fakePerformance{metrics: map[string]models.GSCPerformance{
		"linked": {Clicks: 12, Impressions: 300, CTR: 4.0, Position: 7.5},
	}}
	monitoring := &fakeMonitoringRepo{}

	rec := newTestReconciler(&fakeContentRepo{}, projects, monitoring, perf)
	if _, err := rec.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	linked := monitoring.row("linked")
	if linked.GSCClicks != 12 || linked.GSCImpressions != 300 || linked.GSCCTR != 4.0 || linked.GSCPosition != 7.5 {
		t.Errorf("unexpected linked metrics: %+v", linked)
	}
	if linked.GSCConnected != 1 {
		t.Errorf("expected gsc_connected 1, got %d", linked.GSCConnected)
	}

	unlinked := monitoring.row("unlinked")
	if unlinked.GSCClicks != 0 || unlinked.GSCImpressions != 0 {
		t.Errorf("expected zero metrics for unlinked project, got %+v", unlinked)
	}
	if len(perf.calls) != 1 || perf.calls[0] != "linked" {
		t.Errorf("expected one metrics fetch for the linked project, got %v", perf.calls)
	}
}

func TestRun_CarriesCMSStateAcrossRebuilds(t *testing.T) {
	projects := &fakeProjectRepo{projects: []*models.Project{
		{ID: "p1", UserID: "u1", Name: "One", URL: "https://one.example"},
	}}
	monitoring := &fakeMonitoringRepo{existing: []*models.MonitoringProjectStats{
		{ProjectID: "p1", UserID: "u1", CMSConnected: 2},
	}}

	rec := newTestReconciler(&fakeContentRepo{}, projects, monitoring, &fakePerformance{})
	if _, err := rec.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := monitoring.row("p1").CMSConnected; got != 2 {
		t.Errorf("expected cms_connected carried over as 2, got %d", got)
	}
}

func TestRun_ContentStoreError(t *testing.T) {
	content := &fakeContentRepo{findErr: errors.New("mongo unreachable")}
	rec := newTestReconciler(content, &fakeProjectRepo{}, &fakeMonitoringRepo{}, &fakePerformance{})

	if _, err := rec.Run(context.Background()); err == nil {
		t.Fatal("expected error when content store is down")
	}
}

func TestRun_Exclusive(t *testing.T) {
	rec := newTestReconciler(&fakeContentRepo{}, &fakeProjectRepo{}, &fakeMonitoringRepo{}, &fakePerformance{})

	rec.mu.Lock()
	_, err := rec.Run(context.Background())
	rec.mu.Unlock()

	if !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
}

func TestScheduler_StartStop(t *testing.T) {
	rec := newTestReconciler(&fakeContentRepo{}, &fakeProjectRepo{}, &fakeMonitoringRepo{}, &fakePerformance{})
	sched := NewScheduler(rec, 10*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched.Start(ctx)
	time.Sleep(35 * time.Millisecond)
	sched.Stop()
}
