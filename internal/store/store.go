package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/castregistry/cast-registry/internal/fastdeploy"
	"github.com/castregistry/cast-registry/internal/model"
)

var (
	// ErrNotFound indicates an entity was not located.
	ErrNotFound = errors.New("store: not found")

	// ErrAlreadyExists is returned when a domain with the same fqdn is registered twice.
	ErrAlreadyExists = errors.New("already exists")
)

// Key is where the last seen snapshot of a deployment is kept.
func Key(deploymentID int64) string {
	return fmt.Sprintf("deployment_%d", deploymentID)
}

// SnapshotStore keeps the last snapshot of a deployment a user has seen.
// Implementations must round-trip timestamps without loss.
type SnapshotStore interface {
	Get(ctx context.Context, key string) (*fastdeploy.Deployment, error)
	Put(ctx context.Context, key string, d *fastdeploy.Deployment) error
	Delete(ctx context.Context, key string) error
}

type Repo interface {
	DomainRepo
	DeploymentRepo
}

type DomainRepo interface {
	// CreateDomain stores a new domain and sets its ID and Created fields
	CreateDomain(ctx context.Context, domain *model.Domain) error
	GetDomain(ctx context.Context, id int64) (*model.Domain, error)
	ListDomains(ctx context.Context) ([]*model.Domain, error)
}

type DeploymentRepo interface {
	// CreateDeployment stores a new deployment and sets its ID and Created fields
	CreateDeployment(ctx context.Context, deployment *model.Deployment) error
	GetDeployment(ctx context.Context, id int64) (*model.Deployment, error)
	UpdateDeployment(ctx context.Context, deployment *model.Deployment) error
	ListDeployments(ctx context.Context, domainID int64) ([]*model.Deployment, error)
}
