package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldops/field-service/internal/domain"
)

// UserRepository handles persistence for accounts, including the
// engineer availability and attendance state. Check-in and check-out are
// conditional updates on is_checked_in so a scheduler sweep and a manual
// request racing over the same engineer settle with one winner.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	ListActiveEngineersWithSkills(ctx context.Context) ([]domain.User, error)
	ListCheckedIn(ctx context.Context) ([]domain.User, error)

	ReplaceSkills(ctx context.Context, engineerID string, skills []domain.Skill) error
	SetAvailability(ctx context.Context, id string, availability domain.Availability) error
	CheckIn(ctx context.Context, id string, at time.Time, rollover bool) (bool, error)
	CheckOut(ctx context.Context, id string, effective time.Time, minutes int) (*domain.User, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository instantiates the repository.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `id, name, email, password_hash, role, status, availability,
               is_checked_in, last_check_in, last_check_out,
               daily_first_check_in, daily_last_check_out, daily_total_work_minutes,
               created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (name, email, password_hash, role, status, availability)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.Status,
		user.Availability,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id=$1`, userColumns)
	return r.fetchSingle(ctx, query, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email=$1`, userColumns)
	return r.fetchSingle(ctx, query, email)
}

func (r *userRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.User, error) {
	var user domain.User
	if err := scanUser(r.pool.QueryRow(ctx, query, arg), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) ListActiveEngineersWithSkills(ctx context.Context) ([]domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE role='engineer' AND status='active' ORDER BY created_at`, userColumns)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users, err := scanUsers(rows)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return users, nil
	}

	ids := make([]string, len(users))
	index := make(map[string]int, len(users))
	for i := range users {
		ids[i] = users[i].ID
		index[users[i].ID] = i
	}

	const skillQuery = `
        SELECT engineer_id, skill_name, proficiency_level, years_experience
        FROM engineer_skills WHERE engineer_id = ANY($1) ORDER BY id`
	skillRows, err := r.pool.Query(ctx, skillQuery, ids)
	if err != nil {
		return nil, err
	}
	defer skillRows.Close()

	for skillRows.Next() {
		var engineerID string
		var skill domain.Skill
		if err := skillRows.Scan(&engineerID, &skill.Name, &skill.Level, &skill.YearsExperience); err != nil {
			return nil, err
		}
		if i, ok := index[engineerID]; ok {
			users[i].Skills = append(users[i].Skills, skill)
		}
	}
	return users, skillRows.Err()
}

func (r *userRepository) ListCheckedIn(ctx context.Context) ([]domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE is_checked_in ORDER BY id`, userColumns)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUsers(rows)
}

func (r *userRepository) ReplaceSkills(ctx context.Context, engineerID string, skills []domain.Skill) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM engineer_skills WHERE engineer_id=$1`, engineerID); err != nil {
		return err
	}
	const insert = `
        INSERT INTO engineer_skills (engineer_id, skill_name, proficiency_level, years_experience)
        VALUES ($1,$2,$3,$4)`
	for _, skill := range skills {
		if _, err := tx.Exec(ctx, insert, engineerID, skill.Name, skill.Level, skill.YearsExperience); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *userRepository) SetAvailability(ctx context.Context, id string, availability domain.Availability) error {
	const query = `UPDATE users SET availability=$2, updated_at=NOW() WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query, id, availability)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) CheckIn(ctx context.Context, id string, at time.Time, rollover bool) (bool, error) {
	var query string
	if rollover {
		query = `
        UPDATE users SET is_checked_in=TRUE, last_check_in=$2, availability='free',
            daily_first_check_in=$2, daily_last_check_out=NULL, daily_total_work_minutes=0,
            updated_at=NOW()
        WHERE id=$1 AND NOT is_checked_in`
	} else {
		query = `
        UPDATE users SET is_checked_in=TRUE, last_check_in=$2, availability='free', updated_at=NOW()
        WHERE id=$1 AND NOT is_checked_in`
	}
	cmd, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *userRepository) CheckOut(ctx context.Context, id string, effective time.Time, minutes int) (*domain.User, error) {
	query := fmt.Sprintf(`
        UPDATE users SET is_checked_in=FALSE, last_check_out=$2, daily_last_check_out=$2,
            daily_total_work_minutes = daily_total_work_minutes + $3,
            availability='offline', updated_at=NOW()
        WHERE id=$1 AND is_checked_in
        RETURNING %s`, userColumns)
	var user domain.User
	if err := scanUser(r.pool.QueryRow(ctx, query, id, effective, minutes), &user); err != nil {
		// pgx.ErrNoRows here means the engineer was already checked out.
		return nil, err
	}
	return &user, nil
}

func scanUser(row pgx.Row, user *domain.User) error {
	return row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Status,
		&user.Availability,
		&user.IsCheckedIn,
		&user.LastCheckIn,
		&user.LastCheckOut,
		&user.DailyFirstCheckIn,
		&user.DailyLastCheckOut,
		&user.DailyTotalWorkMinutes,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
}

func scanUsers(rows pgx.Rows) ([]domain.User, error) {
	var result []domain.User
	for rows.Next() {
		var user domain.User
		if err := scanUser(rows, &user); err != nil {
			return nil, err
		}
		result = append(result, user)
	}
	return result, rows.Err()
}
