package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldops/field-service/internal/domain"
)

// WorkTimeRepository persists per-day work aggregates. Upsert carries
// absolute values, never increments, so replaying the same checkout is a
// no-op rather than a double count.
type WorkTimeRepository interface {
	Upsert(ctx context.Context, record *domain.DailyWorkRecord) error
	GetByEngineerAndDate(ctx context.Context, engineerID, workDate string) (*domain.DailyWorkRecord, error)
	ListByEngineer(ctx context.Context, engineerID string, fromDate, toDate *string, limit int) ([]domain.DailyWorkRecord, error)
}

type workTimeRepository struct {
	pool *pgxpool.Pool
}

// NewWorkTimeRepository instantiates the repository.
func NewWorkTimeRepository(pool *pgxpool.Pool) WorkTimeRepository {
	return &workTimeRepository{pool: pool}
}

func (r *workTimeRepository) Upsert(ctx context.Context, record *domain.DailyWorkRecord) error {
	logJSON, err := json.Marshal(record.Log)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO daily_work_records (engineer_id, work_date, first_check_in, last_check_out, total_work_minutes, log)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (engineer_id, work_date) DO UPDATE SET
            last_check_out=EXCLUDED.last_check_out,
            total_work_minutes=EXCLUDED.total_work_minutes,
            log=EXCLUDED.log,
            updated_at=NOW()
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		record.EngineerID,
		record.WorkDate,
		record.FirstCheckIn,
		record.LastCheckOut,
		record.TotalWorkMinutes,
		logJSON,
	).Scan(&record.ID, &record.CreatedAt, &record.UpdatedAt)
}

func (r *workTimeRepository) GetByEngineerAndDate(ctx context.Context, engineerID, workDate string) (*domain.DailyWorkRecord, error) {
	const query = `
        SELECT id, engineer_id, work_date, first_check_in, last_check_out, total_work_minutes, log, created_at, updated_at
        FROM daily_work_records WHERE engineer_id=$1 AND work_date=$2`
	var record domain.DailyWorkRecord
	if err := scanWorkRecord(r.pool.QueryRow(ctx, query, engineerID, workDate), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *workTimeRepository) ListByEngineer(ctx context.Context, engineerID string, fromDate, toDate *string, limit int) ([]domain.DailyWorkRecord, error) {
	clauses := []string{"engineer_id=$1"}
	args := []any{engineerID}
	if fromDate != nil {
		args = append(args, *fromDate)
		clauses = append(clauses, fmt.Sprintf("work_date >= $%d", len(args)))
	}
	if toDate != nil {
		args = append(args, *toDate)
		clauses = append(clauses, fmt.Sprintf("work_date <= $%d", len(args)))
	}
	if limit <= 0 {
		limit = 90
	}
	query := fmt.Sprintf(`
        SELECT id, engineer_id, work_date, first_check_in, last_check_out, total_work_minutes, log, created_at, updated_at
        FROM daily_work_records WHERE %s ORDER BY work_date DESC LIMIT %d`,
		strings.Join(clauses, " AND "), limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.DailyWorkRecord
	for rows.Next() {
		var record domain.DailyWorkRecord
		if err := scanWorkRecord(rows, &record); err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, rows.Err()
}

func scanWorkRecord(row pgx.Row, record *domain.DailyWorkRecord) error {
	var logJSON []byte
	if err := row.Scan(
		&record.ID,
		&record.EngineerID,
		&record.WorkDate,
		&record.FirstCheckIn,
		&record.LastCheckOut,
		&record.TotalWorkMinutes,
		&logJSON,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return err
	}
	if len(logJSON) > 0 {
		if err := json.Unmarshal(logJSON, &record.Log); err != nil {
			return err
		}
	}
	return nil
}
