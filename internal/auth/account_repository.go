package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// AccountRepository persists the accounts of a single role.
type AccountRepository interface {
	Role() Role
	Create(ctx context.Context, account *Account) error
	GetByID(ctx context.Context, id int64) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	// GetByLogin looks an account up by its login key: the email for
	// students and teachers, the username for admins.
	GetByLogin(ctx context.Context, login string) (*Account, error)
	List(ctx context.Context) ([]Account, error)
	Count(ctx context.Context) (int, error)
	UpdateProfile(ctx context.Context, id int64, upd ProfileUpdate) (*Account, error)
	SetApproved(ctx context.Context, id int64, approved bool) (changed bool, err error)
	RotateTokenVersion(ctx context.Context, id int64, expected int) (int, error)
	UpdatePassword(ctx context.Context, id int64, expectedVersion int, passwordHash string) (int, error)
	SetResetToken(ctx context.Context, id int64, token string, expire time.Time) error
	ConsumeResetToken(ctx context.Context, token, passwordHash string, now time.Time) (*Account, error)
	Delete(ctx context.Context, id int64) error
}

// accountTable describes how one role maps onto its SQLite table. Every
// select list yields the same twelve columns so one scanner serves all roles.
type accountTable struct {
	name        string
	selectCols  string
	loginColumn string
}

var accountTables = map[Role]accountTable{
	RoleStudent: {
		name: "students",
		selectCols: `id, name, '', email, hashed_password, school_year, approved,
			token_version, reset_token, reset_token_expire, created_at, updated_at`,
		loginColumn: "email",
	},
	RoleTeacher: {
		name: "teachers",
		selectCols: `id, name, '', email, hashed_password, NULL, approved,
			token_version, reset_token, reset_token_expire, created_at, updated_at`,
		loginColumn: "email",
	},
	RoleAdmin: {
		name: "admins",
		selectCols: `id, '', username, email, hashed_password, NULL, 1,
			token_version, reset_token, reset_token_expire, created_at, updated_at`,
		loginColumn: "username",
	},
}

// SQLiteAccountRepository implements AccountRepository using SQLite.
type SQLiteAccountRepository struct {
	db    *sql.DB
	role  Role
	table accountTable
}

// NewAccountRepository creates a SQLite-backed repository for role.
func NewAccountRepository(db *sql.DB, role Role) (*SQLiteAccountRepository, error) {
	table, ok := accountTables[role]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	return &SQLiteAccountRepository{db: db, role: role, table: table}, nil
}

// Role returns the role whose table this repository reads.
func (r *SQLiteAccountRepository) Role() Role {
	return r.role
}

// Create inserts a new account with token_version 1 and fills in its ID.
func (r *SQLiteAccountRepository) Create(ctx context.Context, account *Account) error {
	now := time.Now().UTC().Truncate(time.Second)
	stamp := now.Format(time.RFC3339)

	var (
		res sql.Result
		err error
	)
	switch r.role {
	case RoleStudent:
		res, err = r.db.ExecContext(ctx,
			`INSERT INTO students (name, email, hashed_password, school_year, approved, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			account.Name, account.Email, account.PasswordHash, nullInt(account.SchoolYear),
			boolToInt(account.Approved), stamp, stamp,
		)
	case RoleTeacher:
		res, err = r.db.ExecContext(ctx,
			`INSERT INTO teachers (name, email, hashed_password, approved, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			account.Name, account.Email, account.PasswordHash, boolToInt(account.Approved), stamp, stamp,
		)
	case RoleAdmin:
		res, err = r.db.ExecContext(ctx,
			`INSERT INTO admins (username, email, hashed_password, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?)`,
			account.Username, account.Email, account.PasswordHash, stamp, stamp,
		)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("creating %s: %w", r.role, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading %s id: %w", r.role, err)
	}

	account.ID = id
	account.Role = r.role
	account.TokenVersion = 1
	if r.role == RoleAdmin {
		account.Approved = true
	}
	account.CreatedAt = now
	account.UpdatedAt = now
	return nil
}

// GetByID retrieves an account by its numeric ID.
func (r *SQLiteAccountRepository) GetByID(ctx context.Context, id int64) (*Account, error) {
	return r.getAccount(ctx, "id = ?", id)
}

// GetByEmail retrieves an account by its email address.
func (r *SQLiteAccountRepository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return r.getAccount(ctx, "email = ?", email)
}

// GetByLogin retrieves an account by the column its role logs in with.
func (r *SQLiteAccountRepository) GetByLogin(ctx context.Context, login string) (*Account, error) {
	return r.getAccount(ctx, r.table.loginColumn+" = ?", login)
}

// List returns every account of the role ordered by ID.
func (r *SQLiteAccountRepository) List(ctx context.Context) ([]Account, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+r.table.selectCols+" FROM "+r.table.name+" ORDER BY id ASC") //nolint:gosec // table names are constants
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", r.table.name, err)
	}
	defer rows.Close()

	accounts := []Account{}
	for rows.Next() {
		a, err := r.scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", r.table.name, err)
	}
	return accounts, nil
}

// Count returns the number of accounts of the role.
func (r *SQLiteAccountRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+r.table.name).Scan(&count); err != nil { //nolint:gosec // table names are constants
		return 0, fmt.Errorf("counting %s: %w", r.table.name, err)
	}
	return count, nil
}

// UpdateProfile applies the non-nil fields of upd that exist for the role
// and returns the updated account. Fields that don't apply are ignored.
func (r *SQLiteAccountRepository) UpdateProfile(ctx context.Context, id int64, upd ProfileUpdate) (*Account, error) {
	var (
		sets []string
		args []any
	)
	if upd.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, *upd.Email)
	}
	if upd.Name != nil && r.role != RoleAdmin {
		sets = append(sets, "name = ?")
		args = append(args, *upd.Name)
	}
	if upd.Username != nil && r.role == RoleAdmin {
		sets = append(sets, "username = ?")
		args = append(args, *upd.Username)
	}
	if upd.SchoolYear != nil && r.role == RoleStudent {
		sets = append(sets, "school_year = ?")
		args = append(args, *upd.SchoolYear)
	}

	if len(sets) > 0 {
		sets = append(sets, "updated_at = ?")
		args = append(args, time.Now().UTC().Format(time.RFC3339), id)

		query := "UPDATE " + r.table.name + " SET " + strings.Join(sets, ", ") + " WHERE id = ?" //nolint:gosec // columns are constants
		result, err := r.db.ExecContext(ctx, query, args...)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, ErrAlreadyExists
			}
			return nil, fmt.Errorf("updating %s profile: %w", r.role, err)
		}
		if n, _ := result.RowsAffected(); n == 0 { //nolint:errcheck // always succeeds on SQLite
			return nil, ErrNotFound
		}
	}

	return r.GetByID(ctx, id)
}

// SetApproved sets the approval flag. It reports changed=false without
// touching the row when the account is already in the requested state.
func (r *SQLiteAccountRepository) SetApproved(ctx context.Context, id int64, approved bool) (bool, error) {
	if !r.role.RequiresApproval() {
		return false, fmt.Errorf("%w: %s accounts have no approval flag", ErrInvalidRole, r.role)
	}

	result, err := r.db.ExecContext(ctx,
		"UPDATE "+r.table.name+" SET approved = ?, updated_at = ? WHERE id = ? AND approved <> ?", //nolint:gosec // table names are constants
		boolToInt(approved), time.Now().UTC().Format(time.RFC3339), id, boolToInt(approved),
	)
	if err != nil {
		return false, fmt.Errorf("setting %s approval: %w", r.role, err)
	}
	if n, _ := result.RowsAffected(); n > 0 { //nolint:errcheck // always succeeds on SQLite
		return true, nil
	}

	if _, err := r.GetByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// RotateTokenVersion increments token_version if it still equals expected
// and returns the new value. ErrStaleToken means another request won.
func (r *SQLiteAccountRepository) RotateTokenVersion(ctx context.Context, id int64, expected int) (int, error) {
	result, err := r.db.ExecContext(ctx,
		"UPDATE "+r.table.name+" SET token_version = token_version + 1, updated_at = ? WHERE id = ? AND token_version = ?", //nolint:gosec // table names are constants
		time.Now().UTC().Format(time.RFC3339), id, expected,
	)
	if err != nil {
		return 0, fmt.Errorf("rotating %s token version: %w", r.role, err)
	}
	if n, _ := result.RowsAffected(); n == 0 { //nolint:errcheck // always succeeds on SQLite
		return 0, ErrStaleToken
	}
	return expected + 1, nil
}

// UpdatePassword replaces the password hash and increments token_version in
// one statement, guarded by the expected version.
func (r *SQLiteAccountRepository) UpdatePassword(ctx context.Context, id int64, expectedVersion int, passwordHash string) (int, error) {
	result, err := r.db.ExecContext(ctx,
		"UPDATE "+r.table.name+` SET hashed_password = ?, token_version = token_version + 1, updated_at = ?
		 WHERE id = ? AND token_version = ?`, //nolint:gosec // table names are constants
		passwordHash, time.Now().UTC().Format(time.RFC3339), id, expectedVersion,
	)
	if err != nil {
		return 0, fmt.Errorf("updating %s password: %w", r.role, err)
	}
	if n, _ := result.RowsAffected(); n == 0 { //nolint:errcheck // always succeeds on SQLite
		return 0, ErrStaleToken
	}
	return expectedVersion + 1, nil
}

// SetResetToken stores a password-reset ticket, replacing any previous one.
func (r *SQLiteAccountRepository) SetResetToken(ctx context.Context, id int64, token string, expire time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE "+r.table.name+" SET reset_token = ?, reset_token_expire = ?, updated_at = ? WHERE id = ?", //nolint:gosec // table names are constants
		token, expire.UTC().Format(time.RFC3339Nano), time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("storing %s reset token: %w", r.role, err)
	}
	if n, _ := result.RowsAffected(); n == 0 { //nolint:errcheck // always succeeds on SQLite
		return ErrNotFound
	}
	return nil
}

// ConsumeResetToken redeems a reset ticket: it sets the new password hash,
// increments token_version and clears the ticket in one transaction.
// Unknown tokens and tokens past their expiry fail with ErrInvalidOrExpiredLink.
func (r *SQLiteAccountRepository) ConsumeResetToken(ctx context.Context, token, passwordHash string, now time.Time) (*Account, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning reset transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	row := tx.QueryRowContext(ctx,
		"SELECT "+r.table.selectCols+" FROM "+r.table.name+" WHERE reset_token = ?", token) //nolint:gosec // table names are constants
	account, err := r.scanAccount(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidOrExpiredLink
		}
		return nil, err
	}
	if account.ResetTokenExpire == nil || now.After(*account.ResetTokenExpire) {
		return nil, ErrInvalidOrExpiredLink
	}

	stamp := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx,
		"UPDATE "+r.table.name+` SET hashed_password = ?, token_version = token_version + 1,
		 reset_token = NULL, reset_token_expire = NULL, updated_at = ? WHERE id = ?`, //nolint:gosec // table names are constants
		passwordHash, stamp, account.ID,
	); err != nil {
		return nil, fmt.Errorf("consuming %s reset token: %w", r.role, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing reset: %w", err)
	}

	account.PasswordHash = passwordHash
	account.TokenVersion++
	account.ResetToken = ""
	account.ResetTokenExpire = nil
	return account, nil
}

// Delete removes an account by ID.
func (r *SQLiteAccountRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM "+r.table.name+" WHERE id = ?", id) //nolint:gosec // table names are constants
	if err != nil {
		return fmt.Errorf("deleting %s: %w", r.role, err)
	}
	if n, _ := result.RowsAffected(); n == 0 { //nolint:errcheck // always succeeds on SQLite
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteAccountRepository) getAccount(ctx context.Context, where string, arg any) (*Account, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+r.table.selectCols+" FROM "+r.table.name+" WHERE "+where, arg) //nolint:gosec // clauses are constants
	return r.scanAccount(row)
}

// scanner abstracts *sql.Row and *sql.Rows for shared scanning logic.
type scanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteAccountRepository) scanAccount(s scanner) (*Account, error) {
	var (
		a           Account
		schoolYear  sql.NullInt64
		approved    int
		resetToken  sql.NullString
		resetExpire sql.NullString
		createdAt   string
		updatedAt   string
	)

	err := s.Scan(
		&a.ID, &a.Name, &a.Username, &a.Email, &a.PasswordHash, &schoolYear, &approved,
		&a.TokenVersion, &resetToken, &resetExpire, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning %s: %w", r.role, err)
	}

	a.Role = r.role
	a.Approved = approved != 0
	if schoolYear.Valid {
		y := int(schoolYear.Int64)
		a.SchoolYear = &y
	}
	a.ResetToken = resetToken.String
	if resetExpire.Valid {
		if t, err := time.Parse(time.RFC3339Nano, resetExpire.String); err == nil {
			a.ResetTokenExpire = &t
		}
	}
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // written by this repository
	a.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // written by this repository

	return &a, nil
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
