package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitMethodName(t *testing.T) {
	cases := map[string][2]string{
		"/realestate.v1.Registry/Execute": {"realestate.v1.Registry", "Execute"},
		"Query":                           {"unknown", "Query"},
		"":                                {"unknown", "unknown"},
	}
	for in, want := range cases {
		service, method := splitMethodName(in)
		assert.Equal(t, want[0], service, in)
		assert.Equal(t, want[1], method, in)
	}
}

func TestServer_ExposesMetricsAndHealth(t *testing.T) {
	EventsTotal.WithLabelValues("metrics_test").Inc()

	ts := httptest.NewServer(NewServer("127.0.0.1:0").Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), `realestate_registry_events_total{action="metrics_test"}`)
	assert.Equal(t, float64(1), testutil.ToFloat64(EventsTotal.WithLabelValues("metrics_test")))
}
