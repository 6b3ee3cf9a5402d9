package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresEnrollments answers enrollment checks from the relational
// enrollments table owned by the course service.
type PostgresEnrollments struct {
	db *sql.DB
}

func OpenPostgresEnrollments(ctx context.Context, dsn string) (*PostgresEnrollments, error) {
	if dsn == "" {
		return nil, errors.New("database url required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	return NewPostgresEnrollments(db), nil
}

func NewPostgresEnrollments(db *sql.DB) *PostgresEnrollments {
	return &PostgresEnrollments{db: db}
}

func (p *PostgresEnrollments) IsEnrolled(ctx context.Context, userID, courseID string) (bool, error) {
	if userID == "" || courseID == "" {
		return false, nil
	}
	var enrolled bool
	err := p.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM enrollments WHERE user_id = $1 AND course_id = $2)`,
		userID, courseID,
	).Scan(&enrolled)
	if err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return enrolled, nil
}

func (p *PostgresEnrollments) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}
