package config

import (
	"os"
	"path/filepath"
	"testing"

	perr "eventsink/internal/platform/errors"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "eventsink.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func unsetAfter(t *testing.T, keys ...string) {
	t.Helper()
	t.Cleanup(func() {
		for _, k := range keys {
			_ = os.Unsetenv(k)
		}
	})
}

func TestEnvName(t *testing.T) {
	cases := map[string]string{
		"clusterHost":        "CLUSTER_HOST",
		"dbName":             "DB_NAME",
		"propertiesDataType": "PROPERTIES_DATA_TYPE",
		"uploadMegabytes":    "UPLOAD_MEGABYTES",
		"ssl-mode":           "SSL_MODE",
		"table_name":         "TABLE_NAME",
		"PORT":               "PORT",
	}
	for in, want := range cases {
		if got := envName(in); got != want {
			t.Fatalf("envName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadYAML_OverlayDoesNotOverrideEnv(t *testing.T) {
	c := New().Prefix("YT_")
	unsetAfter(t, "YT_CLUSTER_HOST", "YT_CLUSTER_PORT", "YT_EVENTS_TO_IGNORE", "YT_POOL_MAX_CONNS")

	// explicitly set wins
	t.Setenv("YT_DB_NAME", "from-env")

	p := writeFile(t, `
clusterHost: demo.abc.eu-west-1.redshift.amazonaws.com
clusterPort: 5439
dbName: from-file
eventsToIgnore:
  - $feature_flag_called
  - $pageleave
pool:
  maxConns: 4
empty:
`)
	set, err := c.LoadYAML(p)
	if err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}

	want := []string{"YT_CLUSTER_HOST", "YT_CLUSTER_PORT", "YT_EVENTS_TO_IGNORE", "YT_POOL_MAX_CONNS"}
	if len(set) != len(want) {
		t.Fatalf("set = %v, want %v", set, want)
	}
	for i := range want {
		if set[i] != want[i] {
			t.Fatalf("set[%d] = %q, want %q", i, set[i], want[i])
		}
	}

	if got := c.MayString("DB_NAME", ""); got != "from-env" {
		t.Fatalf("DB_NAME = %q, env must win", got)
	}
	if got := c.MustInt("CLUSTER_PORT"); got != 5439 {
		t.Fatalf("CLUSTER_PORT = %d", got)
	}
	if got := c.MayCSV("EVENTS_TO_IGNORE", nil); len(got) != 2 || got[1] != "$pageleave" {
		t.Fatalf("EVENTS_TO_IGNORE = %v", got)
	}
	if got := c.MayInt("POOL_MAX_CONNS", 0); got != 4 {
		t.Fatalf("POOL_MAX_CONNS = %d", got)
	}
}

func TestLoadYAML_Errors(t *testing.T) {
	c := New().Prefix("YE_")

	if _, err := c.LoadYAML(filepath.Join(t.TempDir(), "missing.yaml")); !perr.IsCode(err, perr.ErrorCodeConfiguration) {
		t.Fatalf("missing file err = %v, want configuration", err)
	}

	p := writeFile(t, "clusterHost: [unclosed")
	if _, err := c.LoadYAML(p); !perr.IsCode(err, perr.ErrorCodeConfiguration) {
		t.Fatalf("bad yaml err = %v, want configuration", err)
	}
}
