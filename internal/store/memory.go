package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/castregistry/cast-registry/internal/fastdeploy"
	"github.com/castregistry/cast-registry/internal/model"
	"github.com/patrickmn/go-cache"
)

var (
	_ SnapshotStore = &MemorySnapshots{}
	_ Repo          = &MemoryRepo{}
)

// MemorySnapshots keeps snapshots in process memory, like a web session.
// Snapshots are stored encoded so callers never share them.
type MemorySnapshots struct {
	cache *cache.Cache
}

func NewMemorySnapshots(ttl time.Duration) *MemorySnapshots {
	return &MemorySnapshots{cache: cache.New(ttl, 2*ttl)}
}

func (m *MemorySnapshots) Get(_ context.Context, key string) (*fastdeploy.Deployment, error) {
	v, ok := m.cache.Get(key)
	if !ok {
		return nil, ErrNotFound
	}
	return decodeSnapshot(v.([]byte))
}

func (m *MemorySnapshots) Put(_ context.Context, key string, d *fastdeploy.Deployment) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	m.cache.SetDefault(key, data)
	return nil
}

func (m *MemorySnapshots) Delete(_ context.Context, key string) error {
	m.cache.Delete(key)
	return nil
}

func decodeSnapshot(data []byte) (*fastdeploy.Deployment, error) {
	d := &fastdeploy.Deployment{}
	if err := json.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return d, nil
}

// MemoryRepo keeps domains and deployments in process memory.
type MemoryRepo struct {
	lock        sync.RWMutex
	domains     map[int64]model.Domain
	deployments map[int64]model.Deployment
	lastDomain  int64
	lastDeploy  int64
	now         func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		domains:     map[int64]model.Domain{},
		deployments: map[int64]model.Deployment{},
		now:         time.Now,
	}
}

func (r *MemoryRepo) CreateDomain(_ context.Context, domain *model.Domain) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	for _, d := range r.domains {
		if d.FQDN == domain.FQDN {
			return fmt.Errorf("domain %q %w", domain.FQDN, ErrAlreadyExists)
		}
	}

	r.lastDomain++
	domain.ID = r.lastDomain
	domain.Created = r.now().UTC()
	r.domains[domain.ID] = *domain
	return nil
}

func (r *MemoryRepo) GetDomain(_ context.Context, id int64) (*model.Domain, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	d, ok := r.domains[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (r *MemoryRepo) ListDomains(_ context.Context) ([]*model.Domain, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	ret := make([]*model.Domain, 0, len(r.domains))
	for _, d := range r.domains {
		d := d
		ret = append(ret, &d)
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].FQDN < ret[j].FQDN
	})
	return ret, nil
}

func (r *MemoryRepo) CreateDeployment(_ context.Context, deployment *model.Deployment) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.domains[deployment.DomainID]; !ok {
		return fmt.Errorf("domain %d: %w", deployment.DomainID, ErrNotFound)
	}

	r.lastDeploy++
	deployment.ID = r.lastDeploy
	deployment.Created = r.now().UTC()
	r.deployments[deployment.ID] = copyDeployment(*deployment)
	return nil
}

func (r *MemoryRepo) GetDeployment(_ context.Context, id int64) (*model.Deployment, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	d, ok := r.deployments[id]
	if !ok {
		return nil, ErrNotFound
	}
	d = copyDeployment(d)
	return &d, nil
}

func (r *MemoryRepo) UpdateDeployment(_ context.Context, deployment *model.Deployment) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.deployments[deployment.ID]; !ok {
		return ErrNotFound
	}
	r.deployments[deployment.ID] = copyDeployment(*deployment)
	return nil
}

func (r *MemoryRepo) ListDeployments(_ context.Context, domainID int64) ([]*model.Deployment, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	ret := make([]*model.Deployment, 0)
	for _, d := range r.deployments {
		if d.DomainID != domainID {
			continue
		}
		d = copyDeployment(d)
		ret = append(ret, &d)
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].ID > ret[j].ID
	})
	return ret, nil
}

func copyDeployment(d model.Deployment) model.Deployment {
	d.ProcessedSteps = append([]fastdeploy.Step(nil), d.ProcessedSteps...)
	return d
}
