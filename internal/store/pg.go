// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"durableflow"
)

// Pg is a PostgreSQL-backed durableflow.Store. Claim uses
// `FOR UPDATE SKIP LOCKED` so concurrent workers never block on each
// other's claim attempt, the same pattern the teacher's job store uses
// to hand out pending jobs.
type Pg struct {
	pool *pgxpool.Pool
}

// NewPg opens a connection pool against dsn and pings it. Callers are
// expected to have already applied the schema in schema.sql.
func NewPg(ctx context.Context, dsn string) (*Pg, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Pg{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Pg) Close() { s.pool.Close() }

func (s *Pg) Insert(ctx context.Context, id, handler, queue string, input []byte) (bool, error) {
	if queue == "" {
		queue = durableflow.DefaultQueue
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO workflows (id, handler, queue, input, status, failures, created_at)
		 VALUES ($1, $2, $3, $4, $5, 0, now())
		 ON CONFLICT (id) DO NOTHING`,
		id, handler, queue, input, string(durableflow.StatusIdle))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Pg) Claim(ctx context.Context, queue string, now, timeoutAt time.Time) (string, bool, error) {
	var id string
	var err error
	if queue != "" {
		err = s.pool.QueryRow(ctx,
			`UPDATE workflows SET status = $1, timeout_at = $2
			 WHERE id = (
			   SELECT id FROM workflows
			   WHERE queue = $3
			     AND (status = $4 OR (status IN ($1, $5) AND timeout_at < $6))
			   ORDER BY created_at ASC LIMIT 1 FOR UPDATE SKIP LOCKED
			 )
			 RETURNING id`,
			string(durableflow.StatusRunning), timeoutAt, queue,
			string(durableflow.StatusIdle), string(durableflow.StatusFailed), now).Scan(&id)
	} else {
		err = s.pool.QueryRow(ctx,
			`UPDATE workflows SET status = $1, timeout_at = $2
			 WHERE id = (
			   SELECT id FROM workflows
			   WHERE status = $3 OR (status IN ($1, $4) AND timeout_at < $5)
			   ORDER BY created_at ASC LIMIT 1 FOR UPDATE SKIP LOCKED
			 )
			 RETURNING id`,
			string(durableflow.StatusRunning), timeoutAt,
			string(durableflow.StatusIdle), string(durableflow.StatusFailed), now).Scan(&id)
	}
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", false, nil
		}
		return "", false, err
	}
	return id, true, nil
}

func (s *Pg) FindOutput(ctx context.Context, workflowID, stepID string) ([]byte, bool, error) {
	var output []byte
	err := s.pool.QueryRow(ctx,
		`SELECT output FROM workflow_steps WHERE workflow_id = $1 AND step_id = $2`,
		workflowID, stepID).Scan(&output)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	return output, true, nil
}

func (s *Pg) FindWakeUpAt(ctx context.Context, workflowID, napID string) (time.Time, bool, error) {
	var wakeUpAt time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT wake_up_at FROM workflow_naps WHERE workflow_id = $1 AND nap_id = $2`,
		workflowID, napID).Scan(&wakeUpAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return wakeUpAt, true, nil
}

func (s *Pg) FindRunData(ctx context.Context, workflowID string) (*durableflow.RunData, bool, error) {
	var data durableflow.RunData
	err := s.pool.QueryRow(ctx,
		`SELECT handler, input, failures FROM workflows WHERE id = $1`,
		workflowID).Scan(&data.Handler, &data.Input, &data.Failures)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &data, true, nil
}

func (s *Pg) SetAsFinished(ctx context.Context, workflowID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE workflows SET status = $1 WHERE id = $2`,
		string(durableflow.StatusFinished), workflowID)
	return err
}

func (s *Pg) FindStatus(ctx context.Context, workflowID string) (durableflow.Status, bool, error) {
	var status string
	err := s.pool.QueryRow(ctx, `SELECT status FROM workflows WHERE id = $1`, workflowID).Scan(&status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", false, nil
		}
		return "", false, err
	}
	return durableflow.Status(status), true, nil
}

func (s *Pg) UpdateStatus(ctx context.Context, workflowID string, status durableflow.Status, timeoutAt time.Time, failures int, lastError string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE workflows SET status = $1, timeout_at = $2, failures = $3, last_error = $4 WHERE id = $5`,
		string(status), timeoutAt, failures, lastError, workflowID)
	return err
}

func (s *Pg) UpdateOutput(ctx context.Context, workflowID, stepID string, output []byte, timeoutAt time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if _, err := tx.Exec(ctx,
		`INSERT INTO workflow_steps (workflow_id, step_id, output) VALUES ($1, $2, $3)
		 ON CONFLICT (workflow_id, step_id) DO NOTHING`,
		workflowID, stepID, output); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE workflows SET timeout_at = $1 WHERE id = $2`, timeoutAt, workflowID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Pg) UpdateWakeUpAt(ctx context.Context, workflowID, napID string, wakeUpAt, timeoutAt time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if _, err := tx.Exec(ctx,
		`INSERT INTO workflow_naps (workflow_id, nap_id, wake_up_at) VALUES ($1, $2, $3)
		 ON CONFLICT (workflow_id, nap_id) DO NOTHING`,
		workflowID, napID, wakeUpAt); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE workflows SET timeout_at = $1 WHERE id = $2`, timeoutAt, workflowID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

var _ durableflow.Store = (*Pg)(nil)
