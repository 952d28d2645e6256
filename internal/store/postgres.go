package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/castregistry/cast-registry/internal/fastdeploy"
	"github.com/castregistry/cast-registry/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

var (
	_ Repo          = &PostgresRepo{}
	_ SnapshotStore = &PostgresSnapshots{}
)

const uniqueViolation = "23505"

// querier is implemented by both *pgxpool.Pool and pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type TXFunc func(repo *PostgresRepo) error

// PostgresRepo implements Repo on PostgreSQL.
type PostgresRepo struct {
	querier querier
	db      *pgxpool.Pool
	log     logrus.FieldLogger
}

func NewPostgresRepo(db *pgxpool.Pool, log logrus.FieldLogger) *PostgresRepo {
	return &PostgresRepo{
		querier: db,
		db:      db,
		log:     log,
	}
}

// TxFunc runs fn with a repo bound to a transaction. The transaction is
// committed if fn returns nil and rolled back otherwise.
func (r *PostgresRepo) TxFunc(ctx context.Context, fn TXFunc) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		return fn(&PostgresRepo{
			querier: tx,
			db:      r.db,
			log:     r.log,
		})
	})
}

func (r *PostgresRepo) CreateDomain(ctx context.Context, domain *model.Domain) error {
	const query = `INSERT INTO domains (fqdn, owner, backend) VALUES ($1, $2, $3) RETURNING id, created`
	row := r.querier.QueryRow(ctx, query, domain.FQDN, domain.Owner, domain.Backend.String())
	err := row.Scan(&domain.ID, &domain.Created)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("domain %q %w", domain.FQDN, ErrAlreadyExists)
	}
	return err
}

func (r *PostgresRepo) GetDomain(ctx context.Context, id int64) (*model.Domain, error) {
	const query = `SELECT id, fqdn, owner, backend, created FROM domains WHERE id = $1`
	d, err := scanDomain(r.querier.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

func (r *PostgresRepo) ListDomains(ctx context.Context) ([]*model.Domain, error) {
	const query = `SELECT id, fqdn, owner, backend, created FROM domains ORDER BY fqdn`
	rows, err := r.querier.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*model.Domain, 0)
	for rows.Next() {
		d, err := scanDomain(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, d)
	}
	return ret, rows.Err()
}

func scanDomain(row pgx.Row) (*model.Domain, error) {
	var d model.Domain
	var backend string
	if err := row.Scan(&d.ID, &d.FQDN, &d.Owner, &backend, &d.Created); err != nil {
		return nil, err
	}
	d.Backend = model.Backend(backend)
	return &d, nil
}

func (r *PostgresRepo) CreateDeployment(ctx context.Context, deployment *model.Deployment) error {
	remote, steps, err := encodeDeployment(deployment)
	if err != nil {
		return err
	}

	const query = `INSERT INTO deployments (domain_id, target, remote_id, remote, processed_steps, finished)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created`
	row := r.querier.QueryRow(ctx, query, deployment.DomainID, deployment.Target.String(), deployment.RemoteID, remote, steps, deployment.Finished)
	return row.Scan(&deployment.ID, &deployment.Created)
}

func (r *PostgresRepo) GetDeployment(ctx context.Context, id int64) (*model.Deployment, error) {
	const query = `SELECT id, domain_id, target, remote_id, remote, processed_steps, finished, created
		FROM deployments WHERE id = $1`
	d, err := scanDeployment(r.querier.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

func (r *PostgresRepo) UpdateDeployment(ctx context.Context, deployment *model.Deployment) error {
	remote, steps, err := encodeDeployment(deployment)
	if err != nil {
		return err
	}

	const query = `UPDATE deployments SET remote = $2, processed_steps = $3, finished = $4 WHERE id = $1`
	tag, err := r.querier.Exec(ctx, query, deployment.ID, remote, steps, deployment.Finished)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) ListDeployments(ctx context.Context, domainID int64) ([]*model.Deployment, error) {
	const query = `SELECT id, domain_id, target, remote_id, remote, processed_steps, finished, created
		FROM deployments WHERE domain_id = $1 ORDER BY id DESC`
	rows, err := r.querier.Query(ctx, query, domainID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*model.Deployment, 0)
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, d)
	}
	return ret, rows.Err()
}

func encodeDeployment(d *model.Deployment) (remote, steps []byte, err error) {
	if d.Remote != nil {
		remote, err = json.Marshal(d.Remote)
		if err != nil {
			return nil, nil, fmt.Errorf("encoding remote deployment: %w", err)
		}
	}

	processed := d.ProcessedSteps
	if processed == nil {
		processed = []fastdeploy.Step{}
	}
	steps, err = json.Marshal(processed)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding processed steps: %w", err)
	}
	return remote, steps, nil
}

func scanDeployment(row pgx.Row) (*model.Deployment, error) {
	var d model.Deployment
	var target string
	var remote, steps []byte
	if err := row.Scan(&d.ID, &d.DomainID, &target, &d.RemoteID, &remote, &steps, &d.Finished, &d.Created); err != nil {
		return nil, err
	}
	d.Target = model.Target(target)

	if remote != nil {
		r, err := decodeSnapshot(remote)
		if err != nil {
			return nil, err
		}
		d.Remote = r
	}
	if err := json.Unmarshal(steps, &d.ProcessedSteps); err != nil {
		return nil, fmt.Errorf("decoding processed steps: %w", err)
	}
	return &d, nil
}

// PostgresSnapshots keeps snapshots in the snapshots table.
type PostgresSnapshots struct {
	db querier
}

func NewPostgresSnapshots(db *pgxpool.Pool) *PostgresSnapshots {
	return &PostgresSnapshots{db: db}
}

func (p *PostgresSnapshots) Get(ctx context.Context, key string) (*fastdeploy.Deployment, error) {
	var data []byte
	err := p.db.QueryRow(ctx, `SELECT data FROM snapshots WHERE key = $1`, key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeSnapshot(data)
}

func (p *PostgresSnapshots) Put(ctx context.Context, key string, d *fastdeploy.Deployment) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	const query = `INSERT INTO snapshots (key, data, updated) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, updated = EXCLUDED.updated`
	_, err = p.db.Exec(ctx, query, key, data)
	return err
}

func (p *PostgresSnapshots) Delete(ctx context.Context, key string) error {
	_, err := p.db.Exec(ctx, `DELETE FROM snapshots WHERE key = $1`, key)
	return err
}
