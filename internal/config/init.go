package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sentinel-review/sentinel/internal/core"
)

// defaultConfigYAML is the starter config written by the init command. It
// mirrors the loader defaults so a freshly generated file changes nothing
// until edited.
const defaultConfigYAML = `# Review harness configuration.

log:
  level: info
  format: auto

review:
  budget_limit: 5.0
  max_iterations: 15
  turn_pause: 500ms
  skip_style: false
  concurrency: 2

agent:
  path: claude
  fast_model: claude-haiku-4-5
  standard_model: claude-sonnet-4-20250514
  advanced_model: claude-opus-4-1
  timeout: 10m

ledger:
  path: .sentinel/ledger.db

report:
  dir: .sentinel/reports

api:
  addr: 127.0.0.1:7777
  allowed_origins:
    - http://localhost:5173
  request_timeout: 30s

github:
  timeout: 60s
`

// WriteDefaultConfig writes the starter config file. It refuses to
// overwrite an existing file unless force is set.
func WriteDefaultConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return core.ErrValidation(core.CodeInvalidConfig,
				fmt.Sprintf("config file already exists: %s (use --force to overwrite)", path))
		}
	}

	// Guard against template drift: the starter file must stay valid YAML.
	var check map[string]any
	if err := yaml.Unmarshal([]byte(defaultConfigYAML), &check); err != nil {
		return fmt.Errorf("default config template is invalid: %w", err)
	}

	if err := os.WriteFile(path, []byte(defaultConfigYAML), 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
