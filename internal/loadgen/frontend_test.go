package loadgen_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/surveyload/internal/frontend"
	surveyhttp "github.com/wesleyorama2/surveyload/internal/http"
)

func newClient(t *testing.T, baseURL string) *surveyhttp.Client {
	t.Helper()
	client, err := surveyhttp.NewClient(surveyhttp.WithBaseURL(baseURL))
	require.NoError(t, err)
	return client
}

func startFrontend(t *testing.T, f *frontend.Server) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(f)
	t.Cleanup(server.Close)
	return server
}
