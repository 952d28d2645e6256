package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/castregistry/cast-registry/internal/fastdeploy"
	"github.com/castregistry/cast-registry/internal/model"
	"github.com/castregistry/cast-registry/internal/store"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrUnknownDeployment = errors.New("unknown deployment")
	ErrUnknownDomain     = errors.New("unknown domain")
)

// FetchPolicy decides what a poll does when fastdeploy can not be reached or
// answers with an error.
type FetchPolicy int

const (
	// FetchFallback keeps the last seen snapshot, so the poll reports no new
	// steps and the next poll tries again.
	FetchFallback FetchPolicy = iota
	// FetchFail returns the error to the caller.
	FetchFail
)

func ParseFetchPolicy(s string) (FetchPolicy, error) {
	switch s {
	case "fallback", "":
		return FetchFallback, nil
	case "fail":
		return FetchFail, nil
	}
	return 0, fmt.Errorf("unknown fetch policy: %q", s)
}

type Option func(*Reconciler)

func WithFetchPolicy(p FetchPolicy) Option {
	return func(r *Reconciler) {
		r.policy = p
	}
}

// Reconciler starts deployments and tells callers which steps of a
// deployment they have not seen yet.
//
// Polls for the same deployment are not coordinated: when two polls race,
// the last write wins and a step may be delivered twice. Steps are never
// lost, a poll that fails leaves the last seen snapshot as it was.
type Reconciler struct {
	client    fastdeploy.Client
	repo      store.Repo
	snapshots store.SnapshotStore
	tokens    Tokens
	policy    FetchPolicy
	log       logrus.FieldLogger

	polls     metric.Int64Counter
	delivered metric.Int64Counter
	fallbacks metric.Int64Counter
	errors    metric.Int64Counter
}

func NewReconciler(client fastdeploy.Client, repo store.Repo, snapshots store.SnapshotStore, tokens Tokens, meter metric.Meter, log logrus.FieldLogger, opts ...Option) (*Reconciler, error) {
	r := &Reconciler{
		client:    client,
		repo:      repo,
		snapshots: snapshots,
		tokens:    tokens,
		policy:    FetchFallback,
		log:       log,
	}
	for _, opt := range opts {
		opt(r)
	}

	var err error
	if r.polls, err = meter.Int64Counter("deployment_polls", metric.WithDescription("Number of deployment state polls")); err != nil {
		return nil, fmt.Errorf("failed to create deployment_polls counter: %w", err)
	}
	if r.delivered, err = meter.Int64Counter("deployment_steps_delivered", metric.WithDescription("Number of deployment steps delivered to users")); err != nil {
		return nil, fmt.Errorf("failed to create deployment_steps_delivered counter: %w", err)
	}
	if r.fallbacks, err = meter.Int64Counter("deployment_fetch_fallbacks", metric.WithDescription("Number of polls answered with the last seen snapshot")); err != nil {
		return nil, fmt.Errorf("failed to create deployment_fetch_fallbacks counter: %w", err)
	}
	if r.errors, err = meter.Int64Counter("errors"); err != nil {
		return nil, fmt.Errorf("failed to create errors counter: %w", err)
	}

	return r, nil
}

// Start starts a deployment for the given domain and stores the record and
// the placeholder snapshot.
func (r *Reconciler) Start(ctx context.Context, domainID int64, target model.Target) (*model.Deployment, error) {
	domain, err := r.repo.GetDomain(ctx, domainID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDomain, domainID)
	} else if err != nil {
		return nil, r.error(ctx, err, "getting domain")
	}

	token, ok := r.tokens.Token(domain.Backend, target)
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", domain.Backend, target, fastdeploy.ErrMissingAuthorization)
	}

	secrets, err := fastdeploy.NewSecrets()
	if err != nil {
		return nil, r.error(ctx, err, "generating secrets")
	}

	dc := fastdeploy.DeploymentContext{Env: domain.Env(secrets.DatabasePassword, secrets.SecretKey)}
	remote, err := r.client.StartDeployment(ctx, dc, token)
	if err != nil {
		return nil, err
	}

	deployment := &model.Deployment{
		DomainID:       domain.ID,
		Target:         target,
		RemoteID:       remote.RemoteID(),
		Remote:         remote,
		ProcessedSteps: []fastdeploy.Step{},
	}
	if err := r.repo.CreateDeployment(ctx, deployment); err != nil {
		return nil, r.error(ctx, err, "creating deployment")
	}

	if err := r.snapshots.Put(ctx, store.Key(deployment.ID), remote); err != nil {
		return nil, r.error(ctx, err, "storing snapshot")
	}

	r.log.WithFields(logrus.Fields{
		"domain":        domain.FQDN,
		"deployment_id": deployment.ID,
		"remote_id":     deployment.RemoteID,
		"target":        target,
	}).Info("deployment started")

	return deployment, nil
}

// Poll returns the steps of the deployment that have not been delivered yet,
// and whether the deployment has finished. Finished deployments are never
// fetched again.
func (r *Reconciler) Poll(ctx context.Context, deploymentID int64) ([]fastdeploy.Step, bool, error) {
	r.polls.Add(ctx, 1)
	log := r.log.WithField("deployment_id", deploymentID)

	deployment, err := r.repo.GetDeployment(ctx, deploymentID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, false, fmt.Errorf("%w: %d", ErrUnknownDeployment, deploymentID)
	} else if err != nil {
		return nil, false, r.error(ctx, err, "getting deployment")
	}

	if deployment.Finished {
		return []fastdeploy.Step{}, true, nil
	}

	key := store.Key(deployment.ID)
	seen, err := r.snapshots.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		seen = fastdeploy.Placeholder(deployment.RemoteID)
	} else if err != nil {
		return nil, false, r.error(ctx, err, "getting last seen snapshot")
	}

	if seen.HasFinished() {
		return []fastdeploy.Step{}, true, nil
	}

	domain, err := r.repo.GetDomain(ctx, deployment.DomainID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, false, fmt.Errorf("%w: %d", ErrUnknownDomain, deployment.DomainID)
	} else if err != nil {
		return nil, false, r.error(ctx, err, "getting domain")
	}

	token, ok := r.tokens.Token(domain.Backend, deployment.Target)
	if !ok {
		return nil, false, fmt.Errorf("%s %s: %w", domain.Backend, deployment.Target, fastdeploy.ErrMissingAuthorization)
	}

	current, err := r.client.FetchDeployment(ctx, deployment.RemoteID, token)
	if err != nil {
		if r.policy == FetchFail || errors.Is(err, fastdeploy.ErrMissingAuthorization) {
			return nil, false, err
		}
		r.fallbacks.Add(ctx, 1)
		log.WithError(err).Warn("fetching deployment failed, keeping last seen snapshot")
		return []fastdeploy.Step{}, false, nil
	}

	// The record is written before the snapshot. A failed poll must leave the
	// last seen snapshot untouched so the next poll returns the same steps.
	steps := current.NewSteps(seen)
	deployment.Remote = current
	deployment.ProcessedSteps = append(deployment.ProcessedSteps, steps...)
	deployment.Finished = current.HasFinished()
	if err := r.repo.UpdateDeployment(ctx, deployment); err != nil {
		return nil, false, r.error(ctx, err, "updating deployment")
	}

	// The steps are already recorded, so they are returned even when the
	// snapshot can not be stored. The next poll may repeat them.
	if err := r.snapshots.Put(ctx, key, current); err != nil {
		_ = r.error(ctx, err, "storing snapshot")
	}

	r.delivered.Add(ctx, int64(len(steps)))
	if deployment.Finished {
		log.Info("deployment finished")
	}

	return steps, deployment.Finished, nil
}

// Deployments returns the deployments of a domain, newest first.
func (r *Reconciler) Deployments(ctx context.Context, domainID int64) ([]*model.Deployment, error) {
	if _, err := r.repo.GetDomain(ctx, domainID); errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDomain, domainID)
	} else if err != nil {
		return nil, r.error(ctx, err, "getting domain")
	}

	deployments, err := r.repo.ListDeployments(ctx, domainID)
	if err != nil {
		return nil, r.error(ctx, err, "listing deployments")
	}
	return deployments, nil
}

func (r *Reconciler) error(ctx context.Context, err error, msg string) error {
	r.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("component", "reconciler")))
	r.log.WithError(err).Error(msg)
	return fmt.Errorf("%s: %w", msg, err)
}
