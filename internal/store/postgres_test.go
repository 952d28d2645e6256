package store_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/castregistry/cast-registry/internal/database"
	"github.com/castregistry/cast-registry/internal/fastdeploy"
	"github.com/castregistry/cast-registry/internal/model"
	"github.com/castregistry/cast-registry/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

func newTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("REGISTRY_TEST_DBCONN_STRING")
	if dsn == "" {
		t.Skip("REGISTRY_TEST_DBCONN_STRING not set")
	}

	log, _ := logrustest.NewNullLogger()
	db, closers, err := database.NewDB(context.Background(), dsn, log)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = closers.Close() })
	return db
}

func TestPostgresSnapshots(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := store.NewPostgresSnapshots(db)
	key := store.Key(time.Now().UnixNano())
	t.Cleanup(func() { _ = s.Delete(ctx, key) })

	_, err := s.Get(ctx, key)
	assert.ErrorIs(t, err, store.ErrNotFound)

	started := time.Date(2024, time.October, 17, 11, 13, 0, 987654321, time.UTC)
	step := fastdeploy.NewStep(1, "clone")
	step.Started = &started
	d := &fastdeploy.Deployment{ID: fastdeploy.StepID(3), Steps: []fastdeploy.Step{step}}

	assert.NoError(t, s.Put(ctx, key, d))
	got, err := s.Get(ctx, key)
	assert.NoError(t, err)
	assert.Equal(t, d, got)
	assert.Equal(t, 987654321, got.Steps[0].Started.Nanosecond())

	finished := started.Add(time.Minute)
	d.Finished = &finished
	assert.NoError(t, s.Put(ctx, key, d))
	got, err = s.Get(ctx, key)
	assert.NoError(t, err)
	assert.True(t, got.HasFinished())

	assert.NoError(t, s.Delete(ctx, key))
	_, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPostgresRepo(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	log, _ := logrustest.NewNullLogger()
	repo := store.NewPostgresRepo(db, log)

	domain := &model.Domain{FQDN: fmt.Sprintf("%d.staging.django-cast.com", time.Now().UnixNano()), Owner: "user1", Backend: model.BackendCast}
	assert.NoError(t, repo.CreateDomain(ctx, domain))
	assert.NotZero(t, domain.ID)
	t.Cleanup(func() { _, _ = db.Exec(ctx, `DELETE FROM domains WHERE id = $1`, domain.ID) })

	err := repo.CreateDomain(ctx, &model.Domain{FQDN: domain.FQDN, Backend: model.BackendCast})
	assert.ErrorIs(t, err, store.ErrAlreadyExists)

	got, err := repo.GetDomain(ctx, domain.ID)
	assert.NoError(t, err)
	assert.Equal(t, domain.FQDN, got.FQDN)
	assert.Equal(t, model.BackendCast, got.Backend)

	_, err = repo.GetDomain(ctx, -1)
	assert.ErrorIs(t, err, store.ErrNotFound)

	deployment := &model.Deployment{
		DomainID:       domain.ID,
		Target:         model.TargetDeploy,
		RemoteID:       17,
		Remote:         fastdeploy.Placeholder(17),
		ProcessedSteps: []fastdeploy.Step{},
	}
	assert.NoError(t, repo.CreateDeployment(ctx, deployment))
	assert.NotZero(t, deployment.ID)

	started := time.Date(2024, time.October, 17, 11, 13, 0, 123456789, time.UTC)
	step := fastdeploy.NewStep(1, "clone")
	step.Started = &started
	deployment.ProcessedSteps = append(deployment.ProcessedSteps, fastdeploy.StepStart, step)
	deployment.Finished = true
	assert.NoError(t, repo.TxFunc(ctx, func(tx *store.PostgresRepo) error {
		return tx.UpdateDeployment(ctx, deployment)
	}))

	stored, err := repo.GetDeployment(ctx, deployment.ID)
	assert.NoError(t, err)
	assert.True(t, stored.Finished)
	assert.Equal(t, model.TargetDeploy, stored.Target)
	assert.Equal(t, deployment.ProcessedSteps, stored.ProcessedSteps)
	assert.True(t, stored.Remote.NoStepsYet)

	deployments, err := repo.ListDeployments(ctx, domain.ID)
	assert.NoError(t, err)
	assert.Len(t, deployments, 1)

	_, err = repo.GetDeployment(ctx, -1)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, repo.UpdateDeployment(ctx, &model.Deployment{ID: -1}), store.ErrNotFound)
}
