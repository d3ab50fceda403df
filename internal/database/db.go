package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"cryptotracker/internal/failure"
	"cryptotracker/internal/logger"
	"cryptotracker/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Postgres error codes we classify.
const (
	pqUniqueViolation       = "23505"
	pqInsufficientPrivilege = "42501"
)

// Store keeps identities and per-user account documents in Postgres. The
// watchlist of an account is a JSONB array on its row.
type Store struct {
	db *sql.DB
}

// Open connects and pings the database.
func Open(connStr string) (*Store, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Set connection pool parameters
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Log.Info("Database connection established")
	return &Store{db: db}, nil
}

// New wraps an existing handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// CreateIdentity inserts a new identity. A duplicate email is reported as
// email-already-in-use.
func (s *Store) CreateIdentity(ctx context.Context, ident models.Identity, passwordHash string) error {
	query := `
		INSERT INTO identities (id, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := s.db.ExecContext(ctx, query, ident.ID, ident.Email, passwordHash, ident.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return failure.Auth(failure.CodeEmailAlreadyInUse, err)
		}
		logger.Log.Error("Failed to create identity",
			zap.String("user_id", ident.ID),
			zap.Error(err),
		)
		return classify(err)
	}
	return nil
}

// IdentityByEmail returns the identity and its password hash.
func (s *Store) IdentityByEmail(ctx context.Context, email string) (models.Identity, string, error) {
	query := `
		SELECT id, email, password_hash, created_at
		FROM identities
		WHERE email = $1
	`

	var ident models.Identity
	var hash string
	err := s.db.QueryRowContext(ctx, query, email).Scan(&ident.ID, &ident.Email, &hash, &ident.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Identity{}, "", failure.Store(failure.CodeNotFound, err)
		}
		logger.Log.Error("Failed to retrieve identity", zap.Error(err))
		return models.Identity{}, "", classify(err)
	}
	return ident, hash, nil
}

// CreateAccount stores a new account document.
func (s *Store) CreateAccount(ctx context.Context, acct *models.UserAccount) error {
	query := `
		INSERT INTO user_accounts (user_id, email, watchlist, created_at)
		VALUES ($1, $2, $3, $4)
	`

	list, err := encodeWatchlist(acct.Watchlist)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, query, acct.UserID, acct.Email, list, acct.CreatedAt)
	if err != nil {
		logger.Log.Error("Failed to create account document",
			zap.String("user_id", acct.UserID),
			zap.Error(err),
		)
		return classify(err)
	}
	return nil
}

// GetAccount loads the account document of a user.
func (s *Store) GetAccount(ctx context.Context, userID string) (*models.UserAccount, error) {
	query := `
		SELECT user_id, email, watchlist, created_at
		FROM user_accounts
		WHERE user_id = $1
	`

	var acct models.UserAccount
	var raw []byte
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&acct.UserID, &acct.Email, &raw, &acct.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, failure.Store(failure.CodeNotFound, err)
		}
		logger.Log.Error("Failed to retrieve account document",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil, classify(err)
	}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &acct.Watchlist); err != nil {
			return nil, fmt.Errorf("decode watchlist of %s: %w", userID, err)
		}
	}
	if acct.Watchlist == nil {
		acct.Watchlist = []models.WatchlistEntry{}
	}
	return &acct, nil
}

// SaveWatchlist overwrites the watchlist of an existing account.
func (s *Store) SaveWatchlist(ctx context.Context, userID string, list []models.WatchlistEntry) error {
	query := `UPDATE user_accounts SET watchlist = $1 WHERE user_id = $2`

	raw, err := encodeWatchlist(list)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, query, raw, userID)
	if err != nil {
		logger.Log.Error("Failed to save watchlist",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return classify(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return classify(err)
	}
	if rowsAffected == 0 {
		return failure.Store(failure.CodeNotFound, fmt.Errorf("no account for %s", userID))
	}
	return nil
}

func encodeWatchlist(list []models.WatchlistEntry) ([]byte, error) {
	if list == nil {
		list = []models.WatchlistEntry{}
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return nil, fmt.Errorf("encode watchlist: %w", err)
	}
	return raw, nil
}

// classify maps driver and network errors onto store failures.
func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqInsufficientPrivilege {
		return failure.Store(failure.CodePermissionDenied, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, pq.ErrSSLNotSupported) {
		return failure.Store(failure.CodeUnavailable, err)
	}
	return failure.Store(failure.CodeInternal, err)
}
