package pg

import (
	"context"
	"errors"

	"PMentor/global/config"
	"PMentor/module/mentor/model"
	"PMentor/module/mentor/store"
	"PMentor/tools/errs"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// 用户与资料表由账号服务维护，这里只读
const lookupSQL = `
SELECT u.id::text, u.email, u.role, COALESCE(p.name, '')
FROM users u
LEFT JOIN profiles p ON p.user_id = u.id
WHERE u.id::text = $1`

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Directory reads users and profiles from Postgres.
type Directory struct {
	db Querier
}

// Open creates a pool and verifies it with a ping.
func Open(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	if cfg.URL == "" {
		return nil, errs.ErrArgs.WrapMsg("postgres url is required")
	}
	pc, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, errs.ErrArgs.WrapMsg("bad postgres url", "err", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, errs.WrapMsg(err, "unable to create pg pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errs.WrapMsg(err, "pg ping failed")
	}
	return pool, nil
}

func NewDirectory(db Querier) *Directory {
	return &Directory{db: db}
}

func (d *Directory) Lookup(ctx context.Context, userID string) (*model.Profile, error) {
	var (
		p    model.Profile
		role string
	)
	err := d.db.QueryRow(ctx, lookupSQL, userID).Scan(&p.UserID, &p.Email, &role, &p.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrRecordNotFound.WrapMsg("user not found", "id", userID)
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "lookup user", "id", userID)
	}
	p.Role, _ = model.ParseRole(role)
	return &p, nil
}

func (d *Directory) DisplayName(ctx context.Context, userID string) (string, error) {
	p, err := d.Lookup(ctx, userID)
	if err != nil {
		return "", err
	}
	if p.Name == "" {
		return "", errs.ErrRecordNotFound.WrapMsg("profile has no name", "id", userID)
	}
	return p.Name, nil
}

var _ store.Directory = (*Directory)(nil)
