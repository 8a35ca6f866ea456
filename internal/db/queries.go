package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type AdminUser struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string
	IsActive     bool
	LastLogin    pgtype.Timestamptz
	CreatedAt    time.Time
}

type Node struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Port      int32     `json:"port"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

const adminColumns = `id, username, password_hash, is_active, last_login, created_at`

func scanAdmin(row pgx.Row) (AdminUser, error) {
	var u AdminUser
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsActive, &u.LastLogin, &u.CreatedAt)
	return u, notFound(err)
}

const getActiveAdminByUsername = `SELECT ` + adminColumns + `
FROM admin_users WHERE username = $1 AND is_active = TRUE`

func (q *Queries) GetActiveAdminByUsername(ctx context.Context, username string) (AdminUser, error) {
	return scanAdmin(q.db.QueryRow(ctx, getActiveAdminByUsername, username))
}

const getAdmin = `SELECT ` + adminColumns + ` FROM admin_users WHERE id = $1`

func (q *Queries) GetAdmin(ctx context.Context, id uuid.UUID) (AdminUser, error) {
	return scanAdmin(q.db.QueryRow(ctx, getAdmin, id))
}

type CreateAdminParams struct {
	Username     string
	PasswordHash string
}

const createAdmin = `INSERT INTO admin_users (username, password_hash, is_active)
VALUES ($1, $2, TRUE)
RETURNING ` + adminColumns

func (q *Queries) CreateAdmin(ctx context.Context, arg CreateAdminParams) (AdminUser, error) {
	return scanAdmin(q.db.QueryRow(ctx, createAdmin, arg.Username, arg.PasswordHash))
}

type UpdateAdminPasswordParams struct {
	ID           uuid.UUID
	PasswordHash string
}

const updateAdminPassword = `UPDATE admin_users SET password_hash = $2 WHERE id = $1`

func (q *Queries) UpdateAdminPassword(ctx context.Context, arg UpdateAdminPasswordParams) error {
	tag, err := q.db.Exec(ctx, updateAdminPassword, arg.ID, arg.PasswordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type TouchAdminLastLoginParams struct {
	ID        uuid.UUID
	LastLogin time.Time
}

// last_login only moves forward so a late job cannot rewind it.
const touchAdminLastLogin = `UPDATE admin_users SET last_login = $2
WHERE id = $1 AND (last_login IS NULL OR last_login < $2)`

func (q *Queries) TouchAdminLastLogin(ctx context.Context, arg TouchAdminLastLoginParams) error {
	_, err := q.db.Exec(ctx, touchAdminLastLogin, arg.ID, pgtype.Timestamptz{Time: arg.LastLogin, Valid: true})
	return err
}

const countAdmins = `SELECT count(*) FROM admin_users`

func (q *Queries) CountAdmins(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countAdmins).Scan(&n)
	return n, err
}

const listNodes = `SELECT id, name, address, port, enabled, created_at FROM nodes ORDER BY name`

func (q *Queries) ListNodes(ctx context.Context) ([]Node, error) {
	rows, err := q.db.Query(ctx, listNodes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Node
	for rows.Next() {
		var n Node
		if err := rows.Scan(&n.ID, &n.Name, &n.Address, &n.Port, &n.Enabled, &n.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

type CreateNodeParams struct {
	Name    string
	Address string
	Port    int32
}

const createNode = `INSERT INTO nodes (name, address, port) VALUES ($1, $2, $3)
RETURNING id, name, address, port, enabled, created_at`

func (q *Queries) CreateNode(ctx context.Context, arg CreateNodeParams) (Node, error) {
	var n Node
	err := q.db.QueryRow(ctx, createNode, arg.Name, arg.Address, arg.Port).
		Scan(&n.ID, &n.Name, &n.Address, &n.Port, &n.Enabled, &n.CreatedAt)
	return n, err
}
