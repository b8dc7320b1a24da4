package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrProfileNotFound signals that the profile does not exist.
	ErrProfileNotFound = errors.New("identity: profile not found")
	// ErrDuplicateEmail signals that the email is already registered.
	ErrDuplicateEmail = errors.New("identity: email already exists")
	// ErrInvalidAmount signals a non-positive top-up amount.
	ErrInvalidAmount = errors.New("identity: amount must be positive")
)

// Repository handles data access for profiles and wallet balances.
type Repository interface {
	CreateUser(ctx context.Context, params CreateUserParams) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, userID string) (User, error)
	IncrementBalance(ctx context.Context, userID string, amountCents int64) (User, error)
}

// CreateUserParams contains write parameters for creating profiles.
type CreateUserParams struct {
	Email              string
	PasswordHash       string
	Role               Role
	WalletBalanceCents int64
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed identity repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// CreateUser inserts a new profile together with its starter balance.
func (r *PGRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	const insertSQL = `
		INSERT INTO users (email, password_hash, role, wallet_balance_cents)
		VALUES ($1, $2, $3, $4)
		RETURNING id, email, password_hash, role, wallet_balance_cents, created_at
	`

	user, err := scanUser(r.pool.QueryRow(ctx, insertSQL, params.Email, params.PasswordHash, params.Role, params.WalletBalanceCents))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, ErrDuplicateEmail
		}
		return User{}, fmt.Errorf("identity: create user: %w", err)
	}

	return user, nil
}

// GetUserByEmail retrieves a profile by email address.
func (r *PGRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	const selectSQL = `
		SELECT id, email, password_hash, role, wallet_balance_cents, created_at
		FROM users
		WHERE email = $1
	`

	user, err := scanUser(r.pool.QueryRow(ctx, selectSQL, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrProfileNotFound
		}
		return User{}, fmt.Errorf("identity: get user by email: %w", err)
	}

	return user, nil
}

// GetUserByID retrieves a profile by ID.
func (r *PGRepository) GetUserByID(ctx context.Context, userID string) (User, error) {
	const selectSQL = `
		SELECT id, email, password_hash, role, wallet_balance_cents, created_at
		FROM users
		WHERE id = $1
	`

	user, err := scanUser(r.pool.QueryRow(ctx, selectSQL, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrProfileNotFound
		}
		return User{}, fmt.Errorf("identity: get user by id: %w", err)
	}

	return user, nil
}

// IncrementBalance applies a single atomic wallet credit.
func (r *PGRepository) IncrementBalance(ctx context.Context, userID string, amountCents int64) (User, error) {
	const updateSQL = `
		UPDATE users
		SET wallet_balance_cents = wallet_balance_cents + $2
		WHERE id = $1
		RETURNING id, email, password_hash, role, wallet_balance_cents, created_at
	`

	user, err := scanUser(r.pool.QueryRow(ctx, updateSQL, userID, amountCents))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrProfileNotFound
		}
		return User{}, fmt.Errorf("identity: increment balance: %w", err)
	}

	return user, nil
}

func scanUser(row pgx.Row) (User, error) {
	var user User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.WalletBalanceCents,
		&user.CreatedAt,
	)
	if err != nil {
		return User{}, err
	}
	return user, nil
}
