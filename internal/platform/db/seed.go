package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"evalportal/internal/platform/config"
)

// Seed ensures one HR root account exists. The root reports to itself,
// which is the directory's "no manager" sentinel.
func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if cfg.SeedHREmail == "" || cfg.SeedHRPass == "" {
		return nil
	}

	var count int
	err := pool.QueryRow(ctx, "SELECT COUNT(1) FROM employees WHERE email = $1", cfg.SeedHREmail).Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.SeedHRPass), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	id := uuid.NewString()
	_, err = pool.Exec(ctx, `
    INSERT INTO employees (id, name, email, job_title, department, reports_to, is_manager, is_hr, password_hash)
    VALUES ($1, 'HR Administrator', $2, 'HR Manager', 'Human Resources', $1, TRUE, TRUE, $3)
  `, id, cfg.SeedHREmail, string(hash))
	return err
}
