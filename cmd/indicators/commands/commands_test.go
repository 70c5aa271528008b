package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDataMapperServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/countries", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"countries": {"USA": {"label": "United States"}, "FRA": {"label": "France"}}}`)
	})
	mux.HandleFunc("/indicators", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"indicators": {"NGDP_RPCH": {"label": "Real GDP growth", "unit": "Annual percent change"}}}`)
	})
	mux.HandleFunc("/NGDP_RPCH/", func(w http.ResponseWriter, r *http.Request) {
		entity := strings.TrimPrefix(r.URL.Path, "/NGDP_RPCH/")
		fmt.Fprintf(w, `{"values": {"NGDP_RPCH": {%q: {"2019": 2.3, "2020": "-3.4", "2021": 5.7}}}}`, entity)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := fmt.Sprintf(`
http:
  rate_per_sec: 100
  burst: 10
sources:
  datamapper:
    enabled: true
    base_url: %q
  worldbank:
    enabled: false
  sdmx:
    enabled: false
logging:
  level: error
`, baseURL)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("PORT", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DATABASE_DRIVER", "")
	t.Setenv("LOG_LEVEL", "")

	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestSourcesCmd(t *testing.T) {
	cfg := writeConfig(t, "http://example.invalid/api")
	out, _, err := run(t, "--config", cfg, "sources")
	require.NoError(t, err)
	assert.Equal(t, "datamapper\n", out)
}

func TestEntitiesCmd(t *testing.T) {
	srv := newDataMapperServer(t)
	out, _, err := run(t, "-c", writeConfig(t, srv.URL), "entities", "fran")
	require.NoError(t, err)
	assert.Contains(t, out, "FRA")
	assert.NotContains(t, out, "USA")
}

func TestFetchCmd_CSV(t *testing.T) {
	srv := newDataMapperServer(t)
	out, _, err := run(t, "-c", writeConfig(t, srv.URL), "fetch", "-e", "USA,FRA", "-i", "NGDP_RPCH", "--from", "2020", "--to", "2021", "--format", "csv")
	require.NoError(t, err)
	assert.Equal(t, "entity,indicator,year,value\n"+
		"USA,NGDP_RPCH,2020,-3.4\n"+
		"USA,NGDP_RPCH,2021,5.7\n"+
		"FRA,NGDP_RPCH,2020,-3.4\n"+
		"FRA,NGDP_RPCH,2021,5.7\n", out)
}

func TestFetchCmd_JSONAndTable(t *testing.T) {
	srv := newDataMapperServer(t)
	cfg := writeConfig(t, srv.URL)

	out, _, err := run(t, "-c", cfg, "fetch", "-e", "USA", "-i", "NGDP_RPCH", "-f", "json")
	require.NoError(t, err)
	var body struct {
		Observations []struct {
			EntityLabel string `json:"entity_label"`
			Year        int    `json:"year"`
		} `json:"observations"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	require.Len(t, body.Observations, 3)
	assert.Equal(t, "United States", body.Observations[0].EntityLabel)

	out, _, err = run(t, "-c", cfg, "fetch", "-e", "USA", "-i", "NGDP_RPCH")
	require.NoError(t, err)
	assert.Contains(t, out, "United States")
	assert.Contains(t, out, "Real GDP growth")
}

func TestFetchCmd_Errors(t *testing.T) {
	cfg := writeConfig(t, "http://example.invalid/api")

	_, _, err := run(t, "-c", cfg, "fetch", "-e", "USA", "-i", "X", "-f", "xml")
	assert.ErrorContains(t, err, "unknown format")

	_, _, err = run(t, "-c", cfg, "fetch", "-i", "X")
	assert.Error(t, err)

	_, _, err = run(t, "-c", cfg, "-s", "nope", "fetch", "-e", "USA", "-i", "X")
	assert.ErrorContains(t, err, "unknown source")
}
