package repository

import (
	"context"
	"database/sql"

	"github.com/quillforge/quillforge-api/internal/models"
)

// ========================================
// Project Repository
// ========================================

// PostgresProjectRepository implements ProjectRepository for PostgreSQL.
type PostgresProjectRepository struct {
	db *sql.DB
}

// NewPostgresProjectRepository creates a new Postgres project repository.
func NewPostgresProjectRepository(db *sql.DB) *PostgresProjectRepository {
	return &PostgresProjectRepository{db: db}
}

func (r *PostgresProjectRepository) ListProjects(ctx context.Context) ([]*models.Project, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, url, created_at FROM projects`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.URL, &p.CreatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, &p)
	}
	return projects, rows.Err()
}

func (r *PostgresProjectRepository) CountGSCAccountsByProject(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT project_id, COUNT(*) FROM gsc_accounts GROUP BY project_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var projectID string
		var count int
		if err := rows.Scan(&projectID, &count); err != nil {
			return nil, err
		}
		counts[projectID] = count
	}
	return counts, rows.Err()
}

func (r *PostgresProjectRepository) GetGSCAccount(ctx context.Context, projectID string) (*models.GSCAccount, error) {
	var a models.GSCAccount
	err := r.db.QueryRowContext(ctx,
		`SELECT id, project_id, site_url, credentials, created_at
		FROM gsc_accounts WHERE project_id = $1 LIMIT 1`, projectID).
		Scan(&a.ID, &a.ProjectID, &a.SiteURL, &a.Credentials, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ========================================
// Monitoring Repository
// ========================================

// PostgresMonitoringRepository implements MonitoringRepository for PostgreSQL.
type PostgresMonitoringRepository struct {
	db *sql.DB
}

// NewPostgresMonitoringRepository creates a new Postgres monitoring repository.
func NewPostgresMonitoringRepository(db *sql.DB) *PostgresMonitoringRepository {
	return &PostgresMonitoringRepository{db: db}
}

const monitoringColumns = `project_id, user_id, blog_1000, blog_1500, blog_2500, gsc_connected, cms_connected, gsc_clicks, gsc_impressions, gsc_ctr, gsc_position, project_name, project_url, updated_at`

func scanMonitoringRow(rows *sql.Rows) (*models.MonitoringProjectStats, error) {
	var m models.MonitoringProjectStats
	err := rows.Scan(&m.ProjectID, &m.UserID, &m.Blog1000, &m.Blog1500, &m.Blog2500,
		&m.GSCConnected, &m.CMSConnected, &m.GSCClicks, &m.GSCImpressions,
		&m.GSCCTR, &m.GSCPosition, &m.ProjectName, &m.ProjectURL, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *PostgresMonitoringRepository) GetAll(ctx context.Context) ([]*models.MonitoringProjectStats, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+monitoringColumns+` FROM monitoring_project_stats`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []*models.MonitoringProjectStats
	for rows.Next() {
		m, err := scanMonitoringRow(rows)
		if err != nil {
			return nil, err
		}
		stats = append(stats, m)
	}
	return stats, rows.Err()
}

func (r *PostgresMonitoringRepository) GetByUserID(ctx context.Context, userID string) ([]*models.MonitoringProjectStats, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+monitoringColumns+` FROM monitoring_project_stats WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []*models.MonitoringProjectStats
	for rows.Next() {
		m, err := scanMonitoringRow(rows)
		if err != nil {
			return nil, err
		}
		stats = append(stats, m)
	}
	return stats, rows.Err()
}

// UpsertBatch writes all rows in one transaction keyed on project_id.
// Rows for projects that no longer exist anywhere are left untouched, so a
// partial refresh never loses history.
func (r *PostgresMonitoringRepository) UpsertBatch(ctx context.Context, stats []*models.MonitoringProjectStats) error {
	if len(stats) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO monitoring_project_stats
		(project_id, user_id, blog_1000, blog_1500, blog_2500, gsc_connected, gsc_clicks, gsc_impressions, gsc_ctr, gsc_position, project_name, project_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (project_id)
		DO UPDATE SET
			user_id = EXCLUDED.user_id,
			blog_1000 = EXCLUDED.blog_1000,
			blog_1500 = EXCLUDED.blog_1500,
			blog_2500 = EXCLUDED.blog_2500,
			gsc_connected = EXCLUDED.gsc_connected,
			gsc_clicks = EXCLUDED.gsc_clicks,
			gsc_impressions = EXCLUDED.gsc_impressions,
			gsc_ctr = EXCLUDED.gsc_ctr,
			gsc_position = EXCLUDED.gsc_position,
			project_name = EXCLUDED.project_name,
			project_url = EXCLUDED.project_url,
			updated_at = CURRENT_TIMESTAMP`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, m := range stats {
		if _, err := stmt.ExecContext(ctx,
			m.ProjectID, m.UserID, m.Blog1000, m.Blog1500, m.Blog2500,
			m.GSCConnected, m.GSCClicks, m.GSCImpressions, m.GSCCTR, m.GSCPosition,
			m.ProjectName, m.ProjectURL); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *PostgresMonitoringRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM monitoring_project_stats`).Scan(&count)
	return count, err
}
