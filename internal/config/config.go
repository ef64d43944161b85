package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/aetherment-labs/aetherment/internal/branding"
	"github.com/aetherment-labs/aetherment/internal/mod"
	"github.com/rs/zerolog/log"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/spf13/viper"
)

const (
	// FileName is the settings document name inside Dir().
	FileName = "config.json"
	// CurrentVersion is the document version written by Save.
	CurrentVersion = 1
)

// BuiltinRepo provides the default styling package. It is always listed
// first by Store.Repos and never written to disk.
var BuiltinRepo = mod.RepoInfo{Owner: "Sevii77", Name: "ffxiv_materialui_accent", Branch: "v2"}

var (
	ErrBuiltinRepo   = errors.New("the built-in repository cannot be removed")
	ErrDuplicateRepo = errors.New("repository is already configured")
	ErrRepoNotFound  = errors.New("repository is not configured")
	ErrUnknownKey    = errors.New("unknown config key")
	ErrInvalidFile   = errors.New("config file is invalid, fix or remove it before saving")
)

//go:embed schema/config.schema.json
var schemaBytes []byte

// Config is the persisted settings document.
type Config struct {
	Version            int               `json:"version"`
	LinkOptions        bool              `json:"link_options"`
	AdvancedMode       bool              `json:"advanced_mode"`
	ForceColor4        bool              `json:"force_color4"`
	LocalMods          bool              `json:"local_mods"`
	LocalModsPath      string            `json:"local_mods_path"`
	Repos              []mod.RepoInfo    `json:"repos"`
	DevMode            bool              `json:"dev_mode"`
	ExplorerMod        string            `json:"explorer_mod"`
	ExplorerExportPath string            `json:"explorer_export_path"`
	ExplorerExportExt  map[string]string `json:"explorer_export_ext"`
}

// Default returns a config with default settings and no user repositories.
func Default() Config {
	return Config{
		Version:            CurrentVersion,
		LinkOptions:        true,
		ExplorerExportPath: ".",
		Repos:              []mod.RepoInfo{},
		ExplorerExportExt:  map[string]string{},
	}
}

// Dir returns the config directory. AETHERMENT_HOME overrides ~/.aetherment.
func Dir() string {
	if v := os.Getenv(branding.EnvVar("HOME")); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", branding.HomeDir())
	}
	return filepath.Join(home, branding.HomeDir())
}

// Store owns the settings document at <dir>/config.json. The file values
// and the AETHERMENT_<KEY> environment overrides are kept apart; only the
// file values are ever written back.
type Store struct {
	mu      sync.RWMutex
	path    string
	cfg     Config
	env     map[string]string
	loadErr error
}

// Open returns a store bound to dir holding default settings. Call Load to
// read the file.
func Open(dir string) *Store {
	return &Store{
		path: filepath.Join(dir, FileName),
		cfg:  Default(),
	}
}

// Path returns the settings file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the settings file. A missing file yields defaults. A file that
// is not valid JSON or does not match the schema is logged and replaced by
// defaults in memory, and Save refuses to overwrite it until it is fixed.
// The returned error is reserved for I/O failures other than a missing file.
func (s *Store) Load() error {
	env, err := envOverrides()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg = Default()
	s.env = env
	s.loadErr = nil

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		log.Debug().Str("path", s.path).Msg("No config file, using defaults")
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading config %s: %w", s.path, err)
	}

	cfg, err := decode(data)
	if err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("Config file is invalid, falling back to defaults")
		s.loadErr = err
		return nil
	}
	s.cfg = cfg
	return nil
}

// Check reports why Load would reject the settings file. A missing file is
// not an error.
func (s *Store) Check() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading config %s: %w", s.path, err)
	}
	_, err = decode(data)
	return err
}

// Save writes the settings document. Only user repositories and file
// values are written; environment overrides never reach the file. Save can
// be called any number of times without changing the repo list. It returns
// ErrInvalidFile when Load rejected the existing file.
func (s *Store) Save() error {
	s.mu.RLock()
	cfg := s.cfg.clone()
	loadErr := s.loadErr
	s.mu.RUnlock()

	if loadErr != nil {
		return fmt.Errorf("%s: %w: %v", s.path, ErrInvalidFile, loadErr)
	}

	cfg.Version = CurrentVersion
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, FileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp config file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing config file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing config file %s: %w", s.path, err)
	}
	return nil
}

// Config returns a copy of the effective settings: file values with
// environment overrides applied. Its Repos field holds user repositories
// only.
func (s *Store) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.effective()
}

func (s *Store) effective() Config {
	cfg := s.cfg.clone()
	for key, value := range s.env {
		// Values were checked in envOverrides.
		_ = settings[key].set(&cfg, value)
	}
	return cfg
}

// Repos returns the built-in repository followed by the user repositories.
func (s *Store) Repos() []mod.RepoInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]mod.RepoInfo, 0, len(s.cfg.Repos)+1)
	out = append(out, BuiltinRepo)
	return append(out, s.cfg.Repos...)
}

// UserRepos returns only the repositories the user added.
func (s *Store) UserRepos() []mod.RepoInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]mod.RepoInfo{}, s.cfg.Repos...)
}

// AddRepo appends a user repository.
func (s *Store) AddRepo(r mod.RepoInfo) error {
	if r.Branch == "" {
		r.Branch = mod.DefaultBranch
	}
	if r.Equal(BuiltinRepo) {
		return fmt.Errorf("%s: %w", r, ErrDuplicateRepo)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.cfg.Repos {
		if existing.Equal(r) {
			return fmt.Errorf("%s: %w", r, ErrDuplicateRepo)
		}
	}
	s.cfg.Repos = append(s.cfg.Repos, r)
	return nil
}

// RemoveRepo removes a user repository. The built-in one cannot be removed.
func (s *Store) RemoveRepo(r mod.RepoInfo) error {
	if r.Equal(BuiltinRepo) {
		return ErrBuiltinRepo
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.cfg.Repos {
		if existing.Equal(r) {
			s.cfg.Repos = append(s.cfg.Repos[:i], s.cfg.Repos[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%s: %w", r, ErrRepoNotFound)
}

type setting struct {
	get func(*Config) string
	set func(*Config, string) error
}

func boolSetting(field func(*Config) *bool) setting {
	return setting{
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("expected true or false, got %q", v)
			}
			*field(c) = b
			return nil
		},
	}
}

func stringSetting(field func(*Config) *string) setting {
	return setting{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

var settings = map[string]setting{
	"link_options":         boolSetting(func(c *Config) *bool { return &c.LinkOptions }),
	"advanced_mode":        boolSetting(func(c *Config) *bool { return &c.AdvancedMode }),
	"force_color4":         boolSetting(func(c *Config) *bool { return &c.ForceColor4 }),
	"local_mods":           boolSetting(func(c *Config) *bool { return &c.LocalMods }),
	"dev_mode":             boolSetting(func(c *Config) *bool { return &c.DevMode }),
	"local_mods_path":      stringSetting(func(c *Config) *string { return &c.LocalModsPath }),
	"explorer_mod":         stringSetting(func(c *Config) *string { return &c.ExplorerMod }),
	"explorer_export_path": stringSetting(func(c *Config) *string { return &c.ExplorerExportPath }),
}

// Keys returns the scalar setting keys accepted by Get and Set, sorted.
func Keys() []string {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the effective value of a scalar setting rendered as a string.
func (s *Store) Get(key string) (string, error) {
	st, ok := settings[key]
	if !ok {
		return "", fmt.Errorf("%q: %w", key, ErrUnknownKey)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg := s.effective()
	return st.get(&cfg), nil
}

// Set updates the file value of a scalar setting in memory. Call Save to
// persist it. An environment override of the same key still wins in Get.
func (s *Store) Set(key, value string) error {
	st, ok := settings[key]
	if !ok {
		return fmt.Errorf("%q: %w", key, ErrUnknownKey)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := st.set(&s.cfg, value); err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	return nil
}

func (c Config) clone() Config {
	out := c
	out.Repos = append([]mod.RepoInfo{}, c.Repos...)
	out.ExplorerExportExt = make(map[string]string, len(c.ExplorerExportExt))
	for k, v := range c.ExplorerExportExt {
		out.ExplorerExportExt[k] = v
	}
	return out
}

// decode validates data against the embedded schema and layers it over the
// defaults, so missing keys keep their default values. Map keys are kept
// verbatim; export extensions such as ".tex" are neither split nor folded.
func decode(data []byte) (Config, error) {
	if err := validate(data); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}

	if cfg.ExplorerExportExt == nil {
		cfg.ExplorerExportExt = map[string]string{}
	}
	cfg.Repos = userRepos(cfg.Repos)
	if cfg.Version < CurrentVersion {
		log.Debug().Int("from", cfg.Version).Int("to", CurrentVersion).Msg("Migrating config document")
		cfg.Version = CurrentVersion
	}
	return cfg, nil
}

// envOverrides collects AETHERMENT_<KEY> variables for scalar settings
// through viper. Values that do not parse are logged and ignored.
func envOverrides() (map[string]string, error) {
	v := viper.New()
	v.SetEnvPrefix(branding.EnvPrefix())

	out := map[string]string{}
	for key, st := range settings {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
		if !v.IsSet(key) {
			continue
		}
		value := v.GetString(key)
		scratch := Default()
		if err := st.set(&scratch, value); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Ignoring config override from environment")
			continue
		}
		out[key] = value
	}
	return out, nil
}

// userRepos drops built-in and duplicate entries and fills missing branches.
func userRepos(in []mod.RepoInfo) []mod.RepoInfo {
	out := make([]mod.RepoInfo, 0, len(in))
	for _, r := range in {
		if r.Branch == "" {
			r.Branch = mod.DefaultBranch
		}
		if r.Equal(BuiltinRepo) {
			continue
		}
		dup := false
		for _, seen := range out {
			if seen.Equal(r) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, r)
		}
	}
	return out
}

var (
	compiledSchema *jsonschema.Schema
	compileOnce    sync.Once
	compileErr     error
)

func getSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaBytes))
		if err != nil {
			compileErr = fmt.Errorf("unmarshaling schema JSON: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("config.schema.json", doc); err != nil {
			compileErr = fmt.Errorf("adding schema resource: %w", err)
			return
		}
		compiledSchema, compileErr = c.Compile("config.schema.json")
	})
	return compiledSchema, compileErr
}

func validate(data []byte) error {
	schema, err := getSchema()
	if err != nil {
		return fmt.Errorf("loading config schema: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("parsing config JSON: %w", err)
	}
	if err := schema.Validate(inst); err != nil {
		return fmt.Errorf("config does not match schema: %w", err)
	}
	return nil
}
