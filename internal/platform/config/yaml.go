package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"

	perr "eventsink/internal/platform/errors"

	"gopkg.in/yaml.v3"
)

// LoadYAML overlays a YAML document onto the environment under c's prefix.
// Keys are converted from camelCase to SCREAMING_SNAKE (clusterHost ->
// CLUSTER_HOST), nested maps are joined with "_" and lists are joined with
// ",". Variables already present in the environment are never overridden.
// It returns the env keys it set, sorted.
func (c Conf) LoadYAML(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeConfiguration, "read config file %s", path)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeConfiguration, "parse config file %s", path)
	}

	flat := map[string]string{}
	flatten("", doc, flat)

	var set []string
	for k, v := range flat {
		full := c.Key(k)
		if _, ok := os.LookupEnv(full); ok {
			continue
		}
		if err := os.Setenv(full, v); err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeConfiguration, "set %s", full)
		}
		set = append(set, full)
	}
	sort.Strings(set)
	return set, nil
}

func flatten(prefix string, m map[string]any, out map[string]string) {
	for k, v := range m {
		key := envName(k)
		if prefix != "" {
			key = prefix + "_" + key
		}
		switch tv := v.(type) {
		case map[string]any:
			flatten(key, tv, out)
		case []any:
			parts := make([]string, 0, len(tv))
			for _, item := range tv {
				parts = append(parts, fmt.Sprint(item))
			}
			out[key] = strings.Join(parts, ",")
		case nil:
		default:
			out[key] = fmt.Sprint(tv)
		}
	}
}

// envName turns clusterHost, cluster-host or cluster_host into CLUSTER_HOST
func envName(k string) string {
	var sb strings.Builder
	prevLower := false
	for _, r := range k {
		switch {
		case r == '-' || r == '.' || r == ' ':
			sb.WriteByte('_')
			prevLower = false
			continue
		case unicode.IsUpper(r) && prevLower:
			sb.WriteByte('_')
		}
		sb.WriteRune(unicode.ToUpper(r))
		prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
	}
	return sb.String()
}
