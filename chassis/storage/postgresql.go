package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// PGRepository - ...
type PGRepository struct {
	pool *pgxpool.Pool
}

// InitPGRepository - ...
func InitPGRepository(ctx context.Context, cfg Config) (*PGRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	return &PGRepository{
		pool: pool,
	}, nil
}

// Enqueue - ...
func (repo *PGRepository) Enqueue(ctx context.Context, queue, body string) (int64, error) {
	var id int64
	query := `insert into t_message(queue, body) values ($1, $2) returning id`
	err := repo.pool.QueryRow(ctx, query, queue, body).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Claim - ...
func (repo *PGRepository) Claim(ctx context.Context, queue string, vt int) (*Message, error) {
	msg := Message{Queue: queue}
	query := `
	with message as (
		select id
		from t_message where
			queue = $1
			and visible_dt <= localtimestamp
		order by id
		limit 1 for update skip locked
	) update t_message
	set
		visible_dt = localtimestamp + concat($2::int, ' seconds')::INTERVAL,
		receive_count = t_message.receive_count + 1,
		first_received_dt = coalesce(t_message.first_received_dt, localtimestamp)
	from message
	where t_message.id = message.id
	returning t_message.id, t_message.body, t_message.receive_count, t_message.visible_dt,
		t_message.first_received_dt, t_message.created_dt;
	`
	err := repo.pool.QueryRow(ctx, query, queue, vt).Scan(
		&msg.ID,
		&msg.Body,
		&msg.ReceiveCount,
		&msg.VisibleDt,
		&msg.FirstReceivedDt,
		&msg.CreatedDt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// SetVisibility - ...
func (repo *PGRepository) SetVisibility(ctx context.Context, queue string, id int64, vt int) (int64, error) {
	query := `
	update t_message
	set visible_dt = localtimestamp + concat($3::int, ' seconds')::INTERVAL
	where queue = $1 and id = $2;
	`
	tag, err := repo.pool.Exec(ctx, query, queue, id, vt)
	return rowsAffected(tag, err)
}

// Delete - ...
func (repo *PGRepository) Delete(ctx context.Context, queue string, id int64) (int64, error) {
	query := `delete from t_message where queue = $1 and id = $2`
	tag, err := repo.pool.Exec(ctx, query, queue, id)
	return rowsAffected(tag, err)
}

// Close ...
func (repo *PGRepository) Close() {
	repo.pool.Close()
}

func rowsAffected(tag pgconn.CommandTag, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
