package core

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

// InitConfig holds the parameters for initializing a workspace.
type InitConfig struct {
	BasePath string
	Name     string
	// Backend is "file" or "sqlite". Empty means file.
	Backend string
	// RemoteURL optionally points at another workspace's fragment server.
	RemoteURL string
}

// InitResult holds a summary of what was created vs. skipped.
type InitResult struct {
	Created []string
	Skipped []string
}

// WorkspaceInitializer creates the on-disk layout of a workspace.
type WorkspaceInitializer interface {
	Init(config InitConfig) (*InitResult, error)
}

type workspaceInitializer struct{}

// NewWorkspaceInitializer creates a new WorkspaceInitializer.
func NewWorkspaceInitializer() WorkspaceInitializer {
	return &workspaceInitializer{}
}

var configTemplate = template.Must(template.New("cnlconfig").Parse(`# {{.Name}} CNL workspace
resolver:
  max_scan_lines: {{.MaxScanLines}}
storage:
  backend: {{.Backend}}
  sqlite_path: cnl.db
remote:
  url: "{{.RemoteURL}}"
  timeout: 10s
server:
  addr: ":8420"
log:
  level: info
  format: console
schema:
  watch: true
`))

const gitignoreContent = `.cnl_events.jsonl
cnl.db
cnl.db-*
`

// Init creates the workspace directories and configuration files. It is
// safe to run on an existing workspace: anything that already exists is
// skipped and not overwritten.
func (wi *workspaceInitializer) Init(config InitConfig) (*InitResult, error) {
	result := &InitResult{}

	if config.Backend == "" {
		config.Backend = "file"
	}
	if config.Backend != "file" && config.Backend != "sqlite" {
		return nil, fmt.Errorf("initializing workspace: backend %q is invalid, must be one of: file, sqlite", config.Backend)
	}
	if config.Name == "" {
		config.Name = filepath.Base(config.BasePath)
	}

	for _, dir := range []string{config.BasePath, filepath.Join(config.BasePath, "graphs")} {
		created, err := ensureDir(dir)
		if err != nil {
			return nil, fmt.Errorf("initializing workspace: creating directory %s: %w", dir, err)
		}
		if created {
			result.Created = append(result.Created, dir)
		} else {
			result.Skipped = append(result.Skipped, dir)
		}
	}

	configPath := filepath.Join(config.BasePath, ConfigFileName)
	if err := writeFileIfNotExists(configPath, func() ([]byte, error) {
		var buf bytes.Buffer
		err := configTemplate.Execute(&buf, struct {
			InitConfig
			MaxScanLines int
		}{config, DefaultMaxScanLines})
		return buf.Bytes(), err
	}, result); err != nil {
		return nil, err
	}

	gitignorePath := filepath.Join(config.BasePath, ".gitignore")
	if err := writeFileIfNotExists(gitignorePath, func() ([]byte, error) {
		return []byte(gitignoreContent), nil
	}, result); err != nil {
		return nil, err
	}

	return result, nil
}

// ensureDir creates dir if it does not exist and reports whether it did.
func ensureDir(dir string) (bool, error) {
	if info, err := os.Stat(dir); err == nil {
		if !info.IsDir() {
			return false, fmt.Errorf("%s exists and is not a directory", dir)
		}
		return false, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, err
	}
	return true, nil
}

func writeFileIfNotExists(path string, content func() ([]byte, error), result *InitResult) error {
	if _, err := os.Stat(path); err == nil {
		result.Skipped = append(result.Skipped, path)
		return nil
	}
	data, err := content()
	if err != nil {
		return fmt.Errorf("initializing workspace: rendering %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("initializing workspace: writing %s: %w", path, err)
	}
	result.Created = append(result.Created, path)
	return nil
}
