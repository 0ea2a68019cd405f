package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"recon-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetActiveTenants retrieves all tenants with active integrations
func (s *Store) GetActiveTenants(ctx context.Context) ([]models.Tenant, error) {
	var tenants []models.Tenant
	err := s.db.SelectContext(ctx, &tenants,
		"SELECT * FROM tenants WHERE active = true ORDER BY id")
	return tenants, err
}

// GetTenantByID retrieves a tenant by ID
func (s *Store) GetTenantByID(ctx context.Context, id int64) (*models.Tenant, error) {
	var tenant models.Tenant
	err := s.db.GetContext(ctx, &tenant, "SELECT * FROM tenants WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("tenant not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}
