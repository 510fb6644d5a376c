package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Postgres implements Store on a PostgreSQL connection pool.
type Postgres struct {
	conn *sql.DB
}

// NewPostgres opens a PostgreSQL connection, verifies connectivity, and
// applies pending migrations.
func NewPostgres(databaseURL string) (*Postgres, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if err := ApplyMigrations(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("db migrate: %w", err)
	}
	return &Postgres{conn: conn}, nil
}

func (d *Postgres) UpsertProject(ctx context.Context, p *Project) error {
	_, err := d.conn.ExecContext(ctx,
		`INSERT INTO projects (id, name, path, remote_url, config_path, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name,
		   path = EXCLUDED.path,
		   remote_url = EXCLUDED.remote_url,
		   config_path = EXCLUDED.config_path,
		   status = EXCLUDED.status,
		   updated_at = EXCLUDED.updated_at`,
		p.ID, p.Name, p.Path, p.RemoteURL, p.ConfigPath, string(p.Status), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert project: %w", err)
	}
	return nil
}

func (d *Postgres) GetProject(ctx context.Context, id string) (*Project, error) {
	p := &Project{}
	var status string
	err := d.conn.QueryRowContext(ctx,
		`SELECT id, name, path, remote_url, config_path, status, created_at, updated_at
		 FROM projects WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Path, &p.RemoteURL, &p.ConfigPath, &status, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	p.Status = ProjectStatus(status)
	return p, nil
}

func (d *Postgres) ListProjects(ctx context.Context) ([]*Project, error) {
	rows, err := d.conn.QueryContext(ctx,
		`SELECT id, name, path, remote_url, config_path, status, created_at, updated_at
		 FROM projects ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	out := make([]*Project, 0)
	for rows.Next() {
		p := &Project{}
		var status string
		if err := rows.Scan(&p.ID, &p.Name, &p.Path, &p.RemoteURL, &p.ConfigPath, &status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		p.Status = ProjectStatus(status)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (d *Postgres) DeleteProject(ctx context.Context, id string) error {
	if _, err := d.conn.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

func (d *Postgres) AppendEvent(ctx context.Context, e *Event) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = d.conn.ExecContext(ctx,
		`INSERT INTO events (id, project_id, kind, payload, ts)
		 VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.ProjectID, string(e.Kind), payload, e.Timestamp,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return &DuplicateEventError{ID: e.ID}
		}
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func (d *Postgres) ListEvents(ctx context.Context, f EventFilter) ([]*Event, error) {
	query := `SELECT id, project_id, kind, payload, ts FROM events WHERE 1=1`
	args := make([]any, 0, 4)
	n := 0
	add := func(clause string, v any) {
		n++
		query += fmt.Sprintf(" AND %s $%d", clause, n)
		args = append(args, v)
	}
	if f.ProjectID != "" {
		add("project_id =", f.ProjectID)
	}
	if f.Kind != "" {
		add("kind =", string(f.Kind))
	}
	if f.Since != nil {
		add("ts >=", *f.Since)
	}
	if f.Until != nil {
		add("ts <=", *f.Until)
	}
	query += " ORDER BY ts, id"

	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	out := make([]*Event, 0)
	for rows.Next() {
		e := &Event{}
		var kind string
		var payload []byte
		if err := rows.Scan(&e.ID, &e.ProjectID, &kind, &payload, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Kind = EventKind(kind)
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &e.Payload); err != nil {
				return nil, fmt.Errorf("decode event payload: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (d *Postgres) Ping(ctx context.Context) error {
	return d.conn.PingContext(ctx)
}

func (d *Postgres) Close() error {
	return d.conn.Close()
}
