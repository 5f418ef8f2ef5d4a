package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"docstorectl/internal/docstore"
)

// Profile is one named configuration block. The file is keyed by profile
// name; each profile carries connection and schema parameters for one or
// both backends.
type Profile struct {
	Qdrant  QdrantConfig  `mapstructure:"qdrant"`
	Solr    SolrConfig    `mapstructure:"solr"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

type QdrantConfig struct {
	Connection     QdrantConnection `mapstructure:"connection"`
	Vectors        VectorParams     `mapstructure:"vectors"`
	PayloadIndices []PayloadIndex   `mapstructure:"payload_indices"`
}

type QdrantConnection struct {
	URL    string `mapstructure:"url"`
	Port   int    `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`
	UseTLS bool   `mapstructure:"use_tls"`
}

// VectorParams is the collection schema used on create.
type VectorParams struct {
	Size              uint64 `mapstructure:"size"`
	Distance          string `mapstructure:"distance"`
	IndexingThreshold uint64 `mapstructure:"indexing_threshold"`
	OnDiskPayload     bool   `mapstructure:"on_disk_payload"`
	Shards            uint32 `mapstructure:"shards"`
	ReplicationFactor uint32 `mapstructure:"replication_factor"`
}

// PayloadIndex declares a payload field index created right after
// create-collection.
type PayloadIndex struct {
	Field string `mapstructure:"field"`
	Type  string `mapstructure:"type"`
}

type SolrConfig struct {
	Connection SolrConnection `mapstructure:"connection"`
}

type SolrConnection struct {
	URL               string `mapstructure:"url"`
	Username          string `mapstructure:"username"`
	Password          string `mapstructure:"password"`
	NumShards         int    `mapstructure:"num_shards"`
	ReplicationFactor int    `mapstructure:"replication_factor"`
	ConfigName        string `mapstructure:"config_name"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`
}

// TracingConfig holds the OTLP export settings. SampleRate is a
// pointer so that an explicit 0 (never sample) survives defaulting.
type TracingConfig struct {
	Endpoint   string   `mapstructure:"endpoint"`
	SampleRate *float64 `mapstructure:"sample_rate"`
}

// DefaultPath returns the default configuration file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "docstorectl", "config.yaml")
}

// Load reads the configuration file and returns the named profile.
// Environment variables prefixed with DOCSTORECTL_ override file values.
// A missing file yields an empty default profile; a missing profile in an
// existing file is an argument error.
func Load(path, profile string) (*Profile, error) {
	if profile == "" {
		profile = "default"
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("DOCSTORECTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if notFoundErr(err) {
			if profile == "default" {
				return withDefaults(&Profile{}), nil
			}
			return nil, fmt.Errorf("%w: profile %q not found (no config file at %s)", docstore.ErrInvalidInput, profile, path)
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if !v.IsSet(profile) {
		return nil, fmt.Errorf("%w: profile %q not found in %s", docstore.ErrInvalidInput, profile, path)
	}

	var p Profile
	if err := v.UnmarshalKey(profile, &p); err != nil {
		return nil, fmt.Errorf("unmarshalling profile %q: %w", profile, err)
	}
	return withDefaults(&p), nil
}

func notFoundErr(err error) bool {
	if os.IsNotExist(err) {
		return true
	}
	_, ok := err.(viper.ConfigFileNotFoundError)
	return ok
}

func withDefaults(p *Profile) *Profile {
	if p.Qdrant.Connection.Port == 0 {
		p.Qdrant.Connection.Port = 6334
	}
	if p.Qdrant.Vectors.Size == 0 {
		p.Qdrant.Vectors.Size = 256
	}
	if p.Qdrant.Vectors.Distance == "" {
		p.Qdrant.Vectors.Distance = "Cosine"
	}
	if p.Solr.Connection.NumShards == 0 {
		p.Solr.Connection.NumShards = 1
	}
	if p.Solr.Connection.ReplicationFactor == 0 {
		p.Solr.Connection.ReplicationFactor = 1
	}
	if p.Solr.Connection.ConfigName == "" {
		p.Solr.Connection.ConfigName = "_default"
	}
	if p.Solr.Connection.TimeoutSeconds == 0 {
		p.Solr.Connection.TimeoutSeconds = 10
	}
	if p.Tracing.SampleRate == nil {
		rate := 1.0
		p.Tracing.SampleRate = &rate
	}
	return p
}

// Validate checks the profile for issues and returns warnings.
func (p *Profile) Validate() []string {
	var warnings []string
	if p.Tracing.SampleRate != nil {
		if rate := *p.Tracing.SampleRate; rate < 0 || rate > 1.0 {
			warnings = append(warnings, fmt.Sprintf("tracing sample_rate %.2f is outside [0.0, 1.0]", rate))
		}
	}
	switch strings.ToLower(p.Qdrant.Vectors.Distance) {
	case "cosine", "euclid", "dot", "manhattan", "":
	default:
		warnings = append(warnings, fmt.Sprintf("qdrant distance %q is not a known metric", p.Qdrant.Vectors.Distance))
	}
	if p.Solr.Connection.URL != "" && !strings.HasPrefix(p.Solr.Connection.URL, "http") {
		warnings = append(warnings, fmt.Sprintf("solr url %q does not look like an HTTP URL", p.Solr.Connection.URL))
	}
	return warnings
}
