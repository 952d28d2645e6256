package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/castregistry/cast-registry/internal/apierror"
	"github.com/castregistry/cast-registry/internal/fastdeploy"
	"github.com/castregistry/cast-registry/internal/model"
	"github.com/castregistry/cast-registry/internal/registry"
	"github.com/castregistry/cast-registry/internal/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// StatusFinished tells a polling client to stop polling.
const StatusFinished = 286

const (
	minFQDNLength = 2
	maxFQDNLength = 255
	requestIDKey  = "X-Request-Id"
	maxBodyBytes  = 1 << 20
)

type handlerFunc func(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger) error

type server struct {
	domains    store.DomainRepo
	reconciler *registry.Reconciler
	log        logrus.FieldLogger
}

// New returns the registry HTTP API.
func New(domains store.DomainRepo, reconciler *registry.Reconciler, metrics *Metrics, log logrus.FieldLogger) http.Handler {
	s := &server{
		domains:    domains,
		reconciler: reconciler,
		log:        log,
	}

	mux := http.NewServeMux()
	routes := map[string]handlerFunc{
		"GET /domains":                          s.listDomains,
		"POST /domains":                         s.createDomain,
		"GET /domains/{domainID}/deployments":   s.listDeployments,
		"POST /domains/{domainID}/deployments":  s.startDeployment,
		"GET /deployments/{deploymentID}/state": s.deploymentState,
	}
	for pattern, fn := range routes {
		mux.Handle(pattern, metrics.Wrap(pattern, s.handle(fn)))
	}
	return mux
}

func (s *server) handle(fn handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDKey)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDKey, requestID)

		log := s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     r.Method,
			"path":       r.URL.Path,
		})
		if err := fn(w, r, log); err != nil {
			apierror.Write(w, r, log, err)
		}
	})
}

type createDomainRequest struct {
	FQDN    string `json:"fqdn"`
	Backend string `json:"backend"`
	Owner   string `json:"owner"`
}

func (s *server) listDomains(w http.ResponseWriter, r *http.Request, _ logrus.FieldLogger) error {
	domains, err := s.domains.ListDomains(r.Context())
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, domains)
}

func (s *server) createDomain(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger) error {
	req := createDomainRequest{}
	if err := decode(w, r, &req); err != nil {
		return err
	}

	domain := &model.Domain{
		FQDN:    strings.TrimSpace(req.FQDN),
		Backend: model.Backend(strings.ToLower(req.Backend)),
		Owner:   req.Owner,
	}

	fields := map[string]string{}
	if l := len(domain.FQDN); l < minFQDNLength || l > maxFQDNLength {
		fields["fqdn"] = fmt.Sprintf("Must be between %d and %d characters long.", minFQDNLength, maxFQDNLength)
	}
	if !domain.Backend.IsValid() {
		fields["backend"] = fmt.Sprintf("%q is not a valid backend.", req.Backend)
	}
	if len(fields) > 0 {
		return apierror.Invalid(fields)
	}

	if err := s.domains.CreateDomain(r.Context(), domain); err != nil {
		return err
	}

	log.WithField("domain", domain.FQDN).Info("domain created")
	return writeJSON(w, http.StatusCreated, domain)
}

type startDeploymentRequest struct {
	Target string `json:"target"`
}

func (s *server) listDeployments(w http.ResponseWriter, r *http.Request, _ logrus.FieldLogger) error {
	domainID, err := pathID(r, "domainID")
	if err != nil {
		return err
	}

	deployments, err := s.reconciler.Deployments(r.Context(), domainID)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, deployments)
}

func (s *server) startDeployment(w http.ResponseWriter, r *http.Request, _ logrus.FieldLogger) error {
	domainID, err := pathID(r, "domainID")
	if err != nil {
		return err
	}

	req := startDeploymentRequest{}
	if err := decode(w, r, &req); err != nil {
		return err
	}

	target := model.Target(strings.ToLower(req.Target))
	if !target.IsValid() {
		return apierror.Invalid(map[string]string{"target": fmt.Sprintf("%q is not a valid target.", req.Target)})
	}

	deployment, err := s.reconciler.Start(r.Context(), domainID, target)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, deployment)
}

// DeploymentState is the answer to a poll of a deployment.
type DeploymentState struct {
	Steps    []fastdeploy.Step `json:"steps"`
	Finished bool              `json:"finished"`
}

func (s *server) deploymentState(w http.ResponseWriter, r *http.Request, _ logrus.FieldLogger) error {
	deploymentID, err := pathID(r, "deploymentID")
	if err != nil {
		return err
	}

	steps, finished, err := s.reconciler.Poll(r.Context(), deploymentID)
	if err != nil {
		return err
	}

	status := http.StatusOK
	if finished {
		status = StatusFinished
	}
	return writeJSON(w, status, DeploymentState{Steps: steps, Finished: finished})
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil {
		return 0, apierror.Errorf("%q is not a valid id.", r.PathValue(name))
	}
	return id, nil
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apierror.Errorf("Request body must not be larger than %d bytes.", tooLarge.Limit)
		}
		return apierror.Errorf("Unable to decode request body: %s", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
	return nil
}
