package fastdeploy_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/castregistry/cast-registry/internal/config"
	"github.com/castregistry/cast-registry/internal/fastdeploy"
	"github.com/castregistry/cast-registry/internal/test"
	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	api "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

const token = "service-token"

func errorsCounter(t *testing.T) api.Int64Counter {
	counter, err := metric.NewMeterProvider().Meter("test").Int64Counter("errors")
	if err != nil {
		t.Fatalf("creating error counter: %v", err)
	}
	return counter
}

func newClient(t *testing.T, endpoint string) (*fastdeploy.ProductionClient, *logrustest.Hook) {
	log, hook := logrustest.NewNullLogger()
	cfg := config.Fastdeploy{Endpoint: endpoint + "/", Timeout: 5 * time.Second}
	return fastdeploy.New(cfg, errorsCounter(t), log.WithField("client", "fastdeploy")), hook
}

func TestProductionClient_StartDeployment(t *testing.T) {
	ctx := context.Background()
	dc := fastdeploy.DeploymentContext{Env: map[string]string{"FQDN": "foo.staging.django-cast.com"}}

	t.Run("started", func(t *testing.T) {
		srv := test.NewHttpServerWithHandlers(t, []http.HandlerFunc{
			func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/deployments/", r.URL.Path)
				assert.Equal(t, "Bearer "+token, r.Header.Get("Authorization"))
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

				body := fastdeploy.DeploymentContext{}
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, dc, body)

				test.JSONHandler(http.StatusOK, `{"id": 17, "name": "deploy_cast"}`)(w, r)
			},
		})
		client, _ := newClient(t, srv.URL)

		d, err := client.StartDeployment(ctx, dc, token)
		assert.NoError(t, err)
		assert.Equal(t, fastdeploy.Placeholder(17), d)
		assert.Empty(t, d.ExposedSteps())
	})

	t.Run("error with detail", func(t *testing.T) {
		srv := test.NewHttpServerWithHandlers(t, []http.HandlerFunc{
			test.JSONHandler(http.StatusUnauthorized, `{"detail": "Could not validate credentials"}`),
		})
		client, hook := newClient(t, srv.URL)

		d, err := client.StartDeployment(ctx, dc, token)
		assert.Nil(t, d)

		var remoteErr *fastdeploy.RemoteServiceError
		assert.ErrorAs(t, err, &remoteErr)
		assert.Equal(t, http.StatusUnauthorized, remoteErr.StatusCode)
		assert.Equal(t, "Could not validate credentials", remoteErr.Detail)
		assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
		assert.Equal(t, "starting deployment", hook.LastEntry().Message)
	})

	t.Run("error with plain body", func(t *testing.T) {
		srv := test.NewHttpServerWithHandlers(t, []http.HandlerFunc{
			test.JSONHandler(http.StatusInternalServerError, "Internal Server Error\n"),
		})
		client, _ := newClient(t, srv.URL)

		_, err := client.StartDeployment(ctx, dc, token)
		assert.EqualError(t, err, "starting deployment: fastdeploy: start deployment: status 500: Internal Server Error")
	})

	t.Run("missing token", func(t *testing.T) {
		srv := test.NewHttpServerWithHandlers(t, []http.HandlerFunc{})
		client, _ := newClient(t, srv.URL)

		_, err := client.StartDeployment(ctx, dc, "")
		assert.ErrorIs(t, err, fastdeploy.ErrMissingAuthorization)
	})
}

func TestProductionClient_FetchDeployment(t *testing.T) {
	ctx := context.Background()

	t.Run("steps are sorted", func(t *testing.T) {
		srv := test.NewHttpServerWithHandlers(t, []http.HandlerFunc{
			func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/deployments/17", r.URL.Path)
				assert.Equal(t, "Bearer "+token, r.Header.Get("Authorization"))
				test.JSONHandler(http.StatusOK, `{
					"id": 17,
					"steps": [
						{"id": 1, "name": "first", "started": "2024-10-17T11:13:00Z", "finished": "2024-10-17T11:13:01Z", "state": "success", "message": ""},
						{"id": 3, "name": "third", "started": null, "finished": null, "state": "pending", "message": ""},
						{"id": 2, "name": "second", "started": "2024-10-17T11:13:01.25Z", "finished": null, "state": "running", "message": ""}
					],
					"service_id": 1,
					"origin": "registry",
					"user": "user1",
					"started": "2024-10-17T11:12:59Z",
					"finished": null,
					"context": {"env": {}}
				}`)(w, r)
			},
		})
		client, _ := newClient(t, srv.URL)

		d, err := client.FetchDeployment(ctx, 17, token)
		assert.NoError(t, err)
		assert.Equal(t, int64(17), d.RemoteID())
		assert.False(t, d.NoStepsYet)
		assert.False(t, d.HasFinished())

		names := []string{}
		for _, s := range d.Steps {
			names = append(names, s.Name)
		}
		assert.Equal(t, []string{"third", "second", "first"}, names)
	})

	t.Run("not ok", func(t *testing.T) {
		srv := test.NewHttpServerWithHandlers(t, []http.HandlerFunc{
			test.JSONHandler(http.StatusNotFound, `{"detail": "Deployment not found"}`),
		})
		client, _ := newClient(t, srv.URL)

		d, err := client.FetchDeployment(ctx, 17, token)
		assert.Nil(t, d)

		var remoteErr *fastdeploy.RemoteServiceError
		assert.ErrorAs(t, err, &remoteErr)
		assert.Equal(t, "fetch deployment", remoteErr.Op)
		assert.Equal(t, http.StatusNotFound, remoteErr.StatusCode)
	})

	t.Run("invalid body", func(t *testing.T) {
		srv := test.NewHttpServerWithHandlers(t, []http.HandlerFunc{
			test.JSONHandler(http.StatusOK, `{"id": "not a number"`),
		})
		client, _ := newClient(t, srv.URL)

		_, err := client.FetchDeployment(ctx, 17, token)
		assert.ErrorContains(t, err, "decoding fastdeploy deployment")
	})

	t.Run("missing token", func(t *testing.T) {
		srv := test.NewHttpServerWithHandlers(t, []http.HandlerFunc{})
		client, _ := newClient(t, srv.URL)

		_, err := client.FetchDeployment(ctx, 17, "")
		assert.ErrorIs(t, err, fastdeploy.ErrMissingAuthorization)
	})
}
