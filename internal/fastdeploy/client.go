package fastdeploy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/castregistry/cast-registry/internal/config"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Client talks to fastdeploy.
type Client interface {
	// StartDeployment asks fastdeploy to run a deployment with the given
	// context. The returned snapshot only carries the remote id.
	StartDeployment(ctx context.Context, dc DeploymentContext, token string) (*Deployment, error)

	// FetchDeployment returns the current state of the deployment with the
	// given remote id, steps sorted newest first.
	FetchDeployment(ctx context.Context, id int64, token string) (*Deployment, error)
}

var _ Client = &ProductionClient{}

type ProductionClient struct {
	endpoint   string
	httpClient *http.Client
	log        logrus.FieldLogger
	errors     metric.Int64Counter
}

func New(cfg config.Fastdeploy, errors metric.Int64Counter, log logrus.FieldLogger) *ProductionClient {
	httpClient := Transport{}.Client()
	httpClient.Timeout = cfg.Timeout

	return &ProductionClient{
		endpoint:   strings.TrimSuffix(cfg.Endpoint, "/"),
		httpClient: httpClient,
		log:        log,
		errors:     errors,
	}
}

type startResponse struct {
	ID int64 `json:"id"`
}

func (c *ProductionClient) StartDeployment(ctx context.Context, dc DeploymentContext, token string) (*Deployment, error) {
	if token == "" {
		return nil, ErrMissingAuthorization
	}

	body, err := json.Marshal(dc)
	if err != nil {
		return nil, fmt.Errorf("encoding deployment context: %w", err)
	}

	req, err := http.NewRequestWithContext(withToken(ctx, token), http.MethodPost, c.endpoint+"/deployments/", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.error(ctx, err, "starting deployment")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.error(ctx, &RemoteServiceError{
			Op:         "start deployment",
			StatusCode: resp.StatusCode,
			Detail:     detail(resp.Body),
		}, "starting deployment")
	}

	var started startResponse
	if err := json.NewDecoder(resp.Body).Decode(&started); err != nil {
		return nil, c.error(ctx, err, "decoding fastdeploy start response")
	}

	c.log.WithField("remote_id", started.ID).Debug("deployment started")
	return Placeholder(started.ID), nil
}

func (c *ProductionClient) FetchDeployment(ctx context.Context, id int64, token string) (*Deployment, error) {
	if token == "" {
		return nil, ErrMissingAuthorization
	}

	req, err := http.NewRequestWithContext(withToken(ctx, token), http.MethodGet, fmt.Sprintf("%s/deployments/%d", c.endpoint, id), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.error(ctx, err, "fetching deployment")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.error(ctx, &RemoteServiceError{
			Op:         "fetch deployment",
			StatusCode: resp.StatusCode,
			Detail:     detail(resp.Body),
		}, "fetching deployment")
	}

	var d Deployment
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return nil, c.error(ctx, err, "decoding fastdeploy deployment")
	}
	SortSteps(d.Steps)

	return &d, nil
}

func withToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// detail extracts the message of an error response. fastdeploy answers with
// {"detail": "..."} on errors, anything else is returned as is.
func detail(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}

	var payload struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.Detail == nil {
		return strings.TrimSpace(string(data))
	}
	if s, ok := payload.Detail.(string); ok {
		return s
	}
	b, _ := json.Marshal(payload.Detail)
	return string(b)
}

func (c *ProductionClient) error(ctx context.Context, err error, msg string) error {
	c.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("component", "fastdeploy-client")))
	c.log.WithError(err).Error(msg)
	return fmt.Errorf("%s: %w", msg, err)
}
