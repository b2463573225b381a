package db

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crewplan/backend/internal/models"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")
)

type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) ListUsers(ctx context.Context, orgID string) ([]models.User, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, org_id, name, job_function, permission_role, weekly_capacity, active, updated_at
		FROM users
		WHERE org_id = $1 AND active
		ORDER BY name ASC, id ASC
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.OrgID, &u.Name, &u.JobFunction, &u.PermissionRole, &u.WeeklyCapacity, &u.Active, &u.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) GetUser(ctx context.Context, id string) (models.User, error) {
	var u models.User
	err := s.Pool.QueryRow(ctx, `
		SELECT id, org_id, name, job_function, permission_role, weekly_capacity, active, updated_at
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.OrgID, &u.Name, &u.JobFunction, &u.PermissionRole, &u.WeeklyCapacity, &u.Active, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return u, ErrNotFound
	}
	return u, err
}

func (s *Store) ListProjects(ctx context.Context, orgID string) ([]models.Project, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, org_id, name, active, created_at
		FROM projects
		WHERE org_id = $1 AND active
		ORDER BY name ASC, id ASC
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Project
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.OrgID, &p.Name, &p.Active, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) GetProject(ctx context.Context, id string) (models.Project, error) {
	var p models.Project
	err := s.Pool.QueryRow(ctx, `
		SELECT id, org_id, name, active, created_at FROM projects WHERE id = $1
	`, id).Scan(&p.ID, &p.OrgID, &p.Name, &p.Active, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, ErrNotFound
	}
	return p, err
}

// ListAllocations returns allocations for an organization bounded to the
// given week starts. Unbounded history reads are deliberately not offered.
func (s *Store) ListAllocations(ctx context.Context, orgID string, weekStarts []string) ([]models.Allocation, error) {
	if len(weekStarts) == 0 {
		return nil, nil
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT a.user_id, a.project_id, a.week_start, a.planned_hours, a.phase_id, COALESCE(a.notes,''), a.is_billable, a.version, a.updated_at
		FROM allocations a
		JOIN users u ON u.id = a.user_id
		WHERE u.org_id = $1 AND a.week_start = ANY($2)
		ORDER BY a.week_start ASC, a.user_id ASC, a.project_id ASC
	`, orgID, weekStarts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAllocations(rows)
}

func scanAllocations(rows pgx.Rows) ([]models.Allocation, error) {
	var out []models.Allocation
	for rows.Next() {
		var a models.Allocation
		if err := rows.Scan(&a.UserID, &a.ProjectID, &a.WeekStart, &a.PlannedHours, &a.PhaseID, &a.Notes, &a.IsBillable, &a.Version, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) GetAllocation(ctx context.Context, key models.AllocationKey) (models.Allocation, error) {
	var a models.Allocation
	err := s.Pool.QueryRow(ctx, `
		SELECT user_id, project_id, week_start, planned_hours, phase_id, COALESCE(notes,''), is_billable, version, updated_at
		FROM allocations
		WHERE user_id = $1 AND project_id = $2 AND week_start = $3
	`, key.UserID, key.ProjectID, key.WeekStart).
		Scan(&a.UserID, &a.ProjectID, &a.WeekStart, &a.PlannedHours, &a.PhaseID, &a.Notes, &a.IsBillable, &a.Version, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return a, ErrNotFound
	}
	return a, err
}

// UpsertAllocation writes one allocation row keyed by
// (user_id, project_id, week_start). A second create with the same key
// updates the existing row instead of duplicating it.
func (s *Store) UpsertAllocation(ctx context.Context, a models.Allocation) (models.Allocation, error) {
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO allocations (user_id, project_id, week_start, planned_hours, phase_id, notes, is_billable, version, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,1,NOW())
		ON CONFLICT (user_id, project_id, week_start) DO UPDATE SET
			planned_hours = EXCLUDED.planned_hours,
			phase_id = EXCLUDED.phase_id,
			notes = EXCLUDED.notes,
			is_billable = EXCLUDED.is_billable,
			version = allocations.version + 1,
			updated_at = NOW()
		RETURNING version, updated_at
	`, a.UserID, a.ProjectID, a.WeekStart, a.PlannedHours, a.PhaseID, nullable(a.Notes), a.IsBillable).
		Scan(&a.Version, &a.UpdatedAt)
	return a, err
}

// UpdateAllocationHours sets planned hours with an optimistic-concurrency
// check against the version read at validation time.
func (s *Store) UpdateAllocationHours(ctx context.Context, key models.AllocationKey, hours float64, expectedVersion int) (models.Allocation, error) {
	var a models.Allocation
	err := s.Pool.QueryRow(ctx, `
		UPDATE allocations
		SET planned_hours = $4, version = version + 1, updated_at = NOW()
		WHERE user_id = $1 AND project_id = $2 AND week_start = $3 AND version = $5
		RETURNING user_id, project_id, week_start, planned_hours, phase_id, COALESCE(notes,''), is_billable, version, updated_at
	`, key.UserID, key.ProjectID, key.WeekStart, hours, expectedVersion).
		Scan(&a.UserID, &a.ProjectID, &a.WeekStart, &a.PlannedHours, &a.PhaseID, &a.Notes, &a.IsBillable, &a.Version, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// Row missing entirely vs. version raced: distinguish for the caller.
		if _, getErr := s.GetAllocation(ctx, key); getErr != nil {
			return a, getErr
		}
		return a, ErrVersionConflict
	}
	return a, err
}

// MoveAllocationHours shifts hours from one allocation onto another in a
// single transaction: the source is decremented (or removed when drained)
// under an optimistic-concurrency check, the target is created or topped
// up. A failure on either leg rolls back both, so hours can never vanish
// between the two rows.
func (s *Store) MoveAllocationHours(ctx context.Context, from, to models.AllocationKey, hours float64, expectedVersion int) (models.Allocation, error) {
	var written models.Allocation
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		var planned float64
		var version int
		err := tx.QueryRow(ctx, `
			SELECT planned_hours, version FROM allocations
			WHERE user_id = $1 AND project_id = $2 AND week_start = $3
			FOR UPDATE
		`, from.UserID, from.ProjectID, from.WeekStart).Scan(&planned, &version)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if version != expectedVersion {
			return ErrVersionConflict
		}

		if remaining := planned - hours; remaining > 0 {
			_, err = tx.Exec(ctx, `
				UPDATE allocations
				SET planned_hours = $4, version = version + 1, updated_at = NOW()
				WHERE user_id = $1 AND project_id = $2 AND week_start = $3
			`, from.UserID, from.ProjectID, from.WeekStart, remaining)
		} else {
			_, err = tx.Exec(ctx, `
				DELETE FROM allocations WHERE user_id = $1 AND project_id = $2 AND week_start = $3
			`, from.UserID, from.ProjectID, from.WeekStart)
		}
		if err != nil {
			return err
		}

		return tx.QueryRow(ctx, `
			INSERT INTO allocations (user_id, project_id, week_start, planned_hours, is_billable, version, updated_at)
			VALUES ($1,$2,$3,$4,TRUE,1,NOW())
			ON CONFLICT (user_id, project_id, week_start) DO UPDATE SET
				planned_hours = allocations.planned_hours + EXCLUDED.planned_hours,
				version = allocations.version + 1,
				updated_at = NOW()
			RETURNING user_id, project_id, week_start, planned_hours, phase_id, COALESCE(notes,''), is_billable, version, updated_at
		`, to.UserID, to.ProjectID, to.WeekStart, hours).
			Scan(&written.UserID, &written.ProjectID, &written.WeekStart, &written.PlannedHours, &written.PhaseID, &written.Notes, &written.IsBillable, &written.Version, &written.UpdatedAt)
	})
	if err != nil {
		return models.Allocation{}, err
	}
	return written, nil
}

func (s *Store) DeleteAllocation(ctx context.Context, key models.AllocationKey) error {
	tag, err := s.Pool.Exec(ctx, `
		DELETE FROM allocations WHERE user_id = $1 AND project_id = $2 AND week_start = $3
	`, key.UserID, key.ProjectID, key.WeekStart)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListTimesheets(ctx context.Context, orgID string, weekStarts []string) ([]models.Timesheet, error) {
	if len(weekStarts) == 0 {
		return nil, nil
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT t.user_id, t.project_id, t.week_start, t.actual_hours, t.submitted_at
		FROM timesheets t
		JOIN users u ON u.id = t.user_id
		WHERE u.org_id = $1 AND t.week_start = ANY($2)
		ORDER BY t.week_start ASC, t.user_id ASC
	`, orgID, weekStarts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Timesheet
	for rows.Next() {
		var t models.Timesheet
		if err := rows.Scan(&t.UserID, &t.ProjectID, &t.WeekStart, &t.ActualHours, &t.SubmittedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) InsertUsers(ctx context.Context, users []models.User) (int64, error) {
	rows := make([][]any, 0, len(users))
	for _, u := range users {
		rows = append(rows, []any{u.ID, u.OrgID, u.Name, u.JobFunction, string(u.PermissionRole), u.WeeklyCapacity, u.Active, u.UpdatedAt})
	}
	return s.Pool.CopyFrom(ctx, pgx.Identifier{"users"},
		[]string{"id", "org_id", "name", "job_function", "permission_role", "weekly_capacity", "active", "updated_at"},
		pgx.CopyFromRows(rows))
}

func (s *Store) InsertProjects(ctx context.Context, projects []models.Project) (int64, error) {
	rows := make([][]any, 0, len(projects))
	for _, p := range projects {
		rows = append(rows, []any{p.ID, p.OrgID, p.Name, p.Active, p.CreatedAt})
	}
	return s.Pool.CopyFrom(ctx, pgx.Identifier{"projects"},
		[]string{"id", "org_id", "name", "active", "created_at"},
		pgx.CopyFromRows(rows))
}

func (s *Store) InsertAllocations(ctx context.Context, allocations []models.Allocation) (int64, error) {
	rows := make([][]any, 0, len(allocations))
	for _, a := range allocations {
		rows = append(rows, []any{a.UserID, a.ProjectID, a.WeekStart, a.PlannedHours, a.PhaseID, nullable(a.Notes), a.IsBillable, 1, a.UpdatedAt})
	}
	return s.Pool.CopyFrom(ctx, pgx.Identifier{"allocations"},
		[]string{"user_id", "project_id", "week_start", "planned_hours", "phase_id", "notes", "is_billable", "version", "updated_at"},
		pgx.CopyFromRows(rows))
}

func (s *Store) TruncateAll(ctx context.Context) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `TRUNCATE allocations, timesheets, phases, projects, users`)
		return err
	})
}

func nullable(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
