// Package parameters implements the hierarchical ParameterService of
// spec §4.3: process environment, then an optional .env-style file, then
// an optional JSON secrets file — leftmost wins.
package parameters

import (
	"bufio"
	"encoding/json"
	"os"
	"strings"

	"dbdecom/internal/errs"
	"dbdecom/internal/logging"
)

// RequiredSpec lists the names required for this run, with a flag for
// which must be treated as secrets (host token, chat token, ...).
type RequiredSpec struct {
	Name     string
	Secret   bool
	Optional bool
	Default  string
}

// Service resolves values in precedence order: env > dotenv file >
// secrets JSON file.
type Service struct {
	env      map[string]string
	dotenv   map[string]string
	secrets  map[string]string
	secretNm map[string]bool
}

// Load builds a Service from the process environment plus the optional
// dotenvPath and secretsPath files. Both paths may be empty.
func Load(dotenvPath, secretsPath string) (*Service, error) {
	s := &Service{
		env:      envAsMap(),
		dotenv:   map[string]string{},
		secrets:  map[string]string{},
		secretNm: map[string]bool{},
	}

	if dotenvPath != "" {
		m, err := parseDotenv(dotenvPath)
		if err != nil && !os.IsNotExist(err) {
			return nil, errs.Configuration("parameters", "failed to read dotenv file", err)
		}
		s.dotenv = m
	}

	if secretsPath != "" {
		m, err := parseSecretsJSON(secretsPath)
		if err != nil && !os.IsNotExist(err) {
			return nil, errs.Configuration("parameters", "failed to read secrets file", err)
		}
		s.secrets = m
	}

	return s, nil
}

func envAsMap() map[string]string {
	m := make(map[string]string)
	for _, kv := range os.Environ() {
		if idx := strings.IndexByte(kv, '='); idx >= 0 {
			m[kv[:idx]] = kv[idx+1:]
		}
	}
	return m
}

func parseDotenv(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.IndexByte(line, '=')
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.Trim(strings.TrimSpace(line[idx+1:]), `"'`)
		m[key] = val
	}
	return m, scanner.Err()
}

func parseSecretsJSON(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// MarkSecret flags name as requiring redaction when logged.
func (s *Service) MarkSecret(name string) {
	s.secretNm[name] = true
}

// Get returns the resolved value, or "", false if unset anywhere.
func (s *Service) Get(name string) (string, bool) {
	if v, ok := s.env[name]; ok && v != "" {
		return v, true
	}
	if v, ok := s.dotenv[name]; ok && v != "" {
		return v, true
	}
	if v, ok := s.secrets[name]; ok && v != "" {
		return v, true
	}
	return "", false
}

// Require returns the resolved value or a ConfigurationError naming the
// missing parameter (spec §4.3, §7 ConfigurationError).
func (s *Service) Require(name string) (string, error) {
	if v, ok := s.Get(name); ok {
		return v, nil
	}
	return "", errs.Configuration("parameters", "missing required parameter: "+name, nil)
}

// RequireSecret is Require, wrapped in logging.Secret.
func (s *Service) RequireSecret(name string) (logging.Secret, error) {
	v, err := s.Require(name)
	if err != nil {
		return logging.Secret{}, err
	}
	s.MarkSecret(name)
	return logging.NewSecret(v), nil
}

// IsSecret reports whether name was registered (via MarkSecret or
// RequireSecret) as sensitive.
func (s *Service) IsSecret(name string) bool {
	return s.secretNm[name]
}

// Snapshot builds an immutable ParameterConfig from a RequiredSpec list,
// resolving required and optional-with-default parameters in one pass.
// This is the "constructed once at workflow start" lifecycle point from
// spec §3.
func (s *Service) Snapshot(specs []RequiredSpec) (*Config, error) {
	cfg := &Config{
		Required: map[string]string{},
		Optional: map[string]string{},
		Secrets:  map[string]bool{},
	}
	for _, spec := range specs {
		if spec.Secret {
			s.MarkSecret(spec.Name)
			cfg.Secrets[spec.Name] = true
		}
		if spec.Optional {
			v, ok := s.Get(spec.Name)
			if !ok {
				v = spec.Default
			}
			cfg.Optional[spec.Name] = v
			continue
		}
		v, err := s.Require(spec.Name)
		if err != nil {
			return nil, err
		}
		cfg.Required[spec.Name] = v
	}
	return cfg, nil
}

// Config is the immutable ParameterConfig snapshot of spec §3.
type Config struct {
	Required map[string]string
	Optional map[string]string
	Secrets  map[string]bool
}

// RedactedDump returns a copy of all resolved values with secret entries
// elided, suitable for the file-sink environment dump (§4.4).
func (c *Config) RedactedDump() map[string]string {
	out := make(map[string]string, len(c.Required)+len(c.Optional))
	for k, v := range c.Required {
		if c.Secrets[k] {
			out[k] = logging.NewSecret(v).Redacted()
		} else {
			out[k] = v
		}
	}
	for k, v := range c.Optional {
		if c.Secrets[k] {
			out[k] = logging.NewSecret(v).Redacted()
		} else {
			out[k] = v
		}
	}
	return out
}
