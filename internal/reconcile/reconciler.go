package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/quillforge/quillforge-api/internal/metrics"
	"github.com/quillforge/quillforge-api/internal/models"
	"github.com/quillforge/quillforge-api/internal/repository"
	"github.com/quillforge/quillforge-api/internal/service"
)

// ErrRunInProgress is returned when a run is requested while another is
// still rebuilding the table.
var ErrRunInProgress = errors.New("reconciliation already in progress")

// Summary reports what one reconciliation run did.
type Summary struct {
	ProjectsWithBlogs   int `json:"projects_with_blogs"`
	TotalBlogsProcessed int `json:"total_blogs_processed"`
	WordCountIssues     int `json:"word_count_issues"`
	TotalRowsInserted   int `json:"total_rows_inserted"`
	FinalTableSize      int `json:"final_table_size"`

	// Duration is how long the run took. Not part of the response body;
	// callers that want it read it directly.
	Duration time.Duration `json:"-"`
}

// Reconciler rebuilds the monitoring rollup table. At most one run is ever
// active; concurrent requests get ErrRunInProgress instead of queueing.
type Reconciler struct {
	repos  *repository.Repositories
	perf   service.PerformanceSource
	logger *slog.Logger
	mu     sync.Mutex
}

// New creates a new reconciler.
func New(repos *repository.Repositories, perf service.PerformanceSource, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		repos:  repos,
		perf:   perf,
		logger: logger.With("component", "reconciler"),
	}
}

// projectTally accumulates blog counts for one project while scanning the
// content store.
type projectTally struct {
	userID   string
	blog1000 int
	blog1500 int
	blog2500 int
}

// Run executes one full reconciliation pass and returns its summary.
func (r *Reconciler) Run(ctx context.Context) (*Summary, error) {
	if !r.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.mu.Unlock()

	start := time.Now()
	summary, err := r.run(ctx)
	elapsed := time.Since(start)
	metrics.ReconcileDuration.Observe(elapsed.Seconds())

	if err != nil {
		metrics.ReconcileRunsTotal.WithLabelValues("error").Inc()
		r.logger.Error("reconciliation failed", "error", err, "elapsed", elapsed)
		return nil, err
	}

	summary.Duration = elapsed
	metrics.ReconcileRunsTotal.WithLabelValues("ok").Inc()
	metrics.ReconcileBlogsProcessed.Set(float64(summary.TotalBlogsProcessed))
	metrics.ReconcileWordCountIssues.Set(float64(summary.WordCountIssues))
	r.logger.Info("reconciliation complete",
		"projects_with_blogs", summary.ProjectsWithBlogs,
		"blogs_processed", summary.TotalBlogsProcessed,
		"word_count_issues", summary.WordCountIssues,
		"rows_inserted", summary.TotalRowsInserted,
		"elapsed", elapsed,
	)
	return summary, nil
}

func (r *Reconciler) run(ctx context.Context) (*Summary, error) {
	summary := &Summary{}

	docs, err := r.repos.Content.FindActiveContent(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load content documents: %w", err)
	}

	// Tally blog counts per project, bucketed by word count.
	tallies := make(map[string]*projectTally)
	for _, doc := range docs {
		tally, ok := tallies[doc.ProjectID]
		if !ok {
			tally = &projectTally{userID: doc.UserID}
			tallies[doc.ProjectID] = tally
		}
		summary.TotalBlogsProcessed++

		bucket, class := ClassifyWordCount(doc.WordCountValue())
		switch class {
		case ClassBucketed:
			switch bucket {
			case 1000:
				tally.blog1000++
			case 1500:
				tally.blog1500++
			case 2500:
				tally.blog2500++
			}
		case ClassUnparseable:
			summary.WordCountIssues++
			r.logger.Warn("unparseable word count",
				"project_id", doc.ProjectID,
				"doc_id", doc.ID.Hex(),
				"value", fmt.Sprintf("%v", doc.WordCountValue()),
			)
		}
	}
	summary.ProjectsWithBlogs = len(tallies)

	projects, err := r.repos.Project.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	gscCounts, err := r.repos.Project.CountGSCAccountsByProject(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count search console accounts: %w", err)
	}
	existing, err := r.repos.Monitoring.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing monitoring rows: %w", err)
	}
	existingByProject := make(map[string]*models.MonitoringProjectStats, len(existing))
	for _, row := range existing {
		existingByProject[row.ProjectID] = row
	}

	now := time.Now()
	rows := make([]*models.MonitoringProjectStats, 0, len(projects)+len(tallies))
	seen := make(map[string]bool)

	// Registered projects, with or without blog content.
	for _, project := range projects {
		tally := tallies[project.ID]
		row := r.buildRow(ctx, project.ID, project.UserID, project.Name, project.URL,
			tally, gscCounts[project.ID], existingByProject[project.ID], now)
		rows = append(rows, row)
		seen[project.ID] = true
	}

	// Orphan content: blog data whose project is no longer registered.
	// Metadata falls back to the previous monitoring row, then to a
	// placeholder.
	for projectID, tally := range tallies {
		if seen[projectID] {
			continue
		}
		name, url := "Unknown Project", ""
		userID := tally.userID
		if prev, ok := existingByProject[projectID]; ok {
			name, url = prev.ProjectName, prev.ProjectURL
			if userID == "" {
				userID = prev.UserID
			}
		}
		rows = append(rows, r.buildRow(ctx, projectID, userID, name, url,
			tally, gscCounts[projectID], existingByProject[projectID], now))
		seen[projectID] = true
	}

	// Projects known only to the previous monitoring table: no registered
	// project row and no active content anymore. They get a fresh row with
	// zeroed buckets so the table converges after content is deleted.
	for projectID, prev := range existingByProject {
		if seen[projectID] {
			continue
		}
		connected := gscCounts[projectID]
		if connected == 0 {
			connected = prev.GSCConnected
		}
		rows = append(rows, r.buildRow(ctx, projectID, prev.UserID, prev.ProjectName,
			prev.ProjectURL, nil, connected, prev, now))
	}

	if err := r.repos.Monitoring.UpsertBatch(ctx, rows); err != nil {
		return nil, fmt.Errorf("failed to upsert monitoring rows: %w", err)
	}
	summary.TotalRowsInserted = len(rows)

	size, err := r.repos.Monitoring.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count monitoring rows: %w", err)
	}
	summary.FinalTableSize = size

	return summary, nil
}

// buildRow assembles one monitoring row, pulling live search metrics only
// for projects with a linked property.
func (r *Reconciler) buildRow(ctx context.Context, projectID, userID, name, url string,
	tally *projectTally, gscConnected int,
	prev *models.MonitoringProjectStats, now time.Time) *models.MonitoringProjectStats {

	row := &models.MonitoringProjectStats{
		ProjectID:    projectID,
		UserID:       userID,
		ProjectName:  name,
		ProjectURL:   url,
		GSCConnected: gscConnected,
		UpdatedAt:    now,
	}
	if tally != nil {
		row.Blog1000 = tally.blog1000
		row.Blog1500 = tally.blog1500
		row.Blog2500 = tally.blog2500
	}
	// CMS link state is maintained elsewhere; carry it across rebuilds.
	if prev != nil {
		row.CMSConnected = prev.CMSConnected
	}

	if row.GSCConnected > 0 {
		perf := r.perf.ProjectMetrics(ctx, projectID)
		row.GSCClicks = perf.Clicks
		row.GSCImpressions = perf.Impressions
		row.GSCCTR = perf.CTR
		row.GSCPosition = perf.Position
	}
	return row
}
