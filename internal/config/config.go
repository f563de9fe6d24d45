// Package config loads the migrator configuration from a YAML file, the
// environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ALT-F4-LLC/lp2jira/internal/model"
	"github.com/ALT-F4-LLC/lp2jira/internal/translate"
)

// DefaultFile is read when no configuration file is given.
const DefaultFile = "export.yaml"

// EnvPrefix prefixes every environment override, e.g. LP2JIRA_JIRA_TOKEN.
const EnvPrefix = "LP2JIRA"

// Launchpad configures the source tracker.
type Launchpad struct {
	APIURL  string `mapstructure:"api_url" json:"api_url"`
	Project string `mapstructure:"project" json:"project"`
}

// Jira configures the target tracker and the generated bundles.
type Jira struct {
	URL                string `mapstructure:"url" json:"url"`
	Username           string `mapstructure:"username" json:"username"`
	Token              string `mapstructure:"token" json:"-"`
	Project            string `mapstructure:"project" json:"project"`
	Key                string `mapstructure:"key" json:"key"`
	AttachmentsURL     string `mapstructure:"attachments_url" json:"attachments_url"`
	Filename           string `mapstructure:"filename" json:"filename"`
	LinksFilename      string `mapstructure:"links_filename" json:"links_filename"`
	UpdateFilename     string `mapstructure:"update_filename" json:"update_filename"`
	Groups             string `mapstructure:"groups" json:"groups"`
	ExternalIDField    string `mapstructure:"external_id_field" json:"external_id_field"`
	ExportCustomFields bool   `mapstructure:"export_custom_fields" json:"export_custom_fields"`
}

// Local names the working directories.
type Local struct {
	Issues      string `mapstructure:"issues" json:"issues"`
	Users       string `mapstructure:"users" json:"users"`
	Attachments string `mapstructure:"attachments" json:"attachments"`
	Export      string `mapstructure:"export" json:"export"`
	Updates     string `mapstructure:"updates" json:"updates"`
}

// Mapping names the translation tables.
type Mapping struct {
	Status       string `mapstructure:"status" json:"status"`
	Priority     string `mapstructure:"priority" json:"priority"`
	CustomFields string `mapstructure:"custom_fields" json:"custom_fields"`
	Blueprint    string `mapstructure:"blueprint" json:"blueprint"`
}

// Logging configures the structured logger.
type Logging struct {
	Filename string `mapstructure:"filename" json:"filename"`
	Level    string `mapstructure:"level" json:"level"`
	Format   string `mapstructure:"format" json:"format"`
}

// Ledger configures the run history database.
type Ledger struct {
	Path string `mapstructure:"path" json:"path"`
}

// Config is the resolved configuration.
type Config struct {
	Launchpad Launchpad `mapstructure:"launchpad" json:"launchpad"`
	Jira      Jira      `mapstructure:"jira" json:"jira"`
	Local     Local     `mapstructure:"local" json:"local"`
	Mapping   Mapping   `mapstructure:"mapping" json:"mapping"`
	Logging   Logging   `mapstructure:"logging" json:"logging"`
	Ledger    Ledger    `mapstructure:"ledger" json:"ledger"`

	// File is the configuration file that was read, empty when none was.
	File string `mapstructure:"-" json:"file"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("launchpad.api_url", "https://api.launchpad.net/devel")
	v.SetDefault("launchpad.project", "")

	v.SetDefault("jira.url", "")
	v.SetDefault("jira.username", "")
	v.SetDefault("jira.token", "")
	v.SetDefault("jira.project", "")
	v.SetDefault("jira.key", "")
	v.SetDefault("jira.attachments_url", "")
	v.SetDefault("jira.filename", "jira-import.json")
	v.SetDefault("jira.links_filename", "jira-links.json")
	v.SetDefault("jira.update_filename", "jira-update.json")
	v.SetDefault("jira.groups", "")
	v.SetDefault("jira.external_id_field", "Launchpad ID")
	v.SetDefault("jira.export_custom_fields", false)

	v.SetDefault("local.issues", "export/issues")
	v.SetDefault("local.users", "export/users")
	v.SetDefault("local.attachments", "export/attachments")
	v.SetDefault("local.export", "export")
	v.SetDefault("local.updates", "export/updates")

	v.SetDefault("mapping.status", "")
	v.SetDefault("mapping.priority", "")
	v.SetDefault("mapping.custom_fields", "")
	v.SetDefault("mapping.blueprint", "")

	v.SetDefault("logging.filename", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("ledger.path", "export/ledger.db")
}

// Load reads the configuration. path overrides LP2JIRA_CONFIG, which
// overrides DefaultFile. A missing default file is not an error; a missing
// explicit file is. Variables from a .env file in the working directory are
// loaded first and never override the real environment.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	explicit := path != ""
	if !explicit {
		if env := os.Getenv(EnvPrefix + "_CONFIG"); env != "" {
			path, explicit = env, true
		} else {
			path = DefaultFile
		}
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{}
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		cfg.File = path
	} else if explicit {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

// Validate reports settings a migration cannot run without.
func (c *Config) Validate() error {
	var missing []string
	if c.Launchpad.Project == "" {
		missing = append(missing, "launchpad.project")
	}
	if c.Jira.Project == "" {
		missing = append(missing, "jira.project")
	}
	if c.Jira.Key == "" {
		missing = append(missing, "jira.key")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ValidateTracker reports settings the update and verify modes need.
func (c *Config) ValidateTracker() error {
	if c.Jira.URL == "" {
		return errors.New("missing configuration: jira.url")
	}
	return nil
}

// EnsureDirs creates every local working directory.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.Local.Issues, c.Local.Users, c.Local.Attachments, c.Local.Export, c.Local.Updates} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}

// Groups returns the configured user groups.
func (c *Config) Groups() []string {
	var groups []string
	for _, g := range strings.Split(c.Jira.Groups, ",") {
		if g = strings.TrimSpace(g); g != "" {
			groups = append(groups, g)
		}
	}
	return groups
}

// NewBundle returns an empty bundle for the target project.
func (c *Config) NewBundle() model.Bundle {
	return model.NewBundle(c.Jira.Project, c.Jira.Key)
}

// MappingPaths returns the translation table locations.
func (c *Config) MappingPaths() translate.Paths {
	return translate.Paths{
		Status:       c.Mapping.Status,
		Priority:     c.Mapping.Priority,
		CustomFields: c.Mapping.CustomFields,
		Blueprint:    c.Mapping.Blueprint,
	}
}

// IssuesFile is the path of the compiled issues bundle.
func (c *Config) IssuesFile() string {
	return filepath.Join(c.Local.Export, c.Jira.Filename)
}

// LinksFile is the path of the compiled links bundle.
func (c *Config) LinksFile() string {
	return filepath.Join(c.Local.Export, c.Jira.LinksFilename)
}

// UpdateFile is the path of the update bundle.
func (c *Config) UpdateFile() string {
	return filepath.Join(c.Local.Export, c.Jira.UpdateFilename)
}
