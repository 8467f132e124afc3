package toolclient

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"dbdecom/internal/errs"
)

// ServerSpec is one entry of the `mcpServers` tool-server configuration
// document (spec §6). Command/Args/Env are resolved with `${VAR}`
// substitution applied to every string at load time.
type ServerSpec struct {
	Command string
	Args    []string
	Env     map[string]string
}

// ServerConfig is the parsed `{mcpServers: {name: {...}}}` document.
// Server names must use the "ovr_<kind>" prefix convention (spec §6).
type ServerConfig struct {
	MCPServers map[string]ServerSpec `json:"mcpServers"`
}

// ResolveEnv substitutes `${VAR}` references in every string field from
// the process environment, per spec §6.
func ResolveEnv(spec ServerSpec) ServerSpec {
	resolved := ServerSpec{
		Command: substitute(spec.Command),
		Args:    make([]string, len(spec.Args)),
		Env:     make(map[string]string, len(spec.Env)),
	}
	for i, a := range spec.Args {
		resolved.Args[i] = substitute(a)
	}
	for k, v := range spec.Env {
		resolved.Env[k] = substitute(v)
	}
	return resolved
}

func substitute(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	var out strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '$' && i+1 < len(s) && s[i+1] == '{' {
			end := strings.IndexByte(s[i+2:], '}')
			if end >= 0 {
				name := s[i+2 : i+2+end]
				out.WriteString(os.Getenv(name))
				i += 2 + end
				continue
			}
		}
		out.WriteByte(s[i])
	}
	return out.String()
}

// LoadServerConfig reads the `{mcpServers: {...}}` tool-server
// configuration document of spec §6 from path. A ".toml" extension
// decodes the TOML variant of the same document (spec §6 "Configuration
// file format"); every other extension is treated as the mandatory JSON
// form.
func LoadServerConfig(path string) (*ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Configuration("toolclient", "reading tool-server configuration", err)
	}

	var cfg ServerConfig
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, errs.Configuration("toolclient", "parsing TOML tool-server configuration", err)
		}
	} else if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errs.Configuration("toolclient", "parsing tool-server configuration", err)
	}

	for name := range cfg.MCPServers {
		if !strings.HasPrefix(name, "ovr_") {
			return nil, errs.Configuration("toolclient", "server name "+name+" does not use the ovr_<kind> prefix convention", nil)
		}
	}
	return &cfg, nil
}

// EnvSlice flattens a Env map into "KEY=VALUE" entries for exec.Cmd.Env.
func (s ServerSpec) EnvSlice() []string {
	out := make([]string, 0, len(s.Env))
	for k, v := range s.Env {
		out = append(out, k+"="+v)
	}
	return out
}
