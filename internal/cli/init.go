package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/newspan/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config directory with example files",
	RunE:  initAction,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func initAction(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	created := 0

	configPath := filepath.Join(configDir, config.DefaultConfigFile)
	wrote, err := writeIfNotExists(w, configPath, []byte(exampleConfig))
	if err != nil {
		return err
	}
	if wrote {
		created++
	}

	envPath := filepath.Join(configDir, config.DefaultEnvFile+".example")
	wrote, err = writeIfNotExists(w, envPath, []byte(exampleEnv))
	if err != nil {
		return err
	}
	if wrote {
		created++
	}

	if created == 0 {
		fmt.Fprintf(w, "Config directory %s already initialized.\n", configDir)
	} else {
		fmt.Fprintf(w, "Initialized %s with %d config files.\n", configDir, created)
	}
	return nil
}

// writeIfNotExists writes data to path if the file does not exist.
// Returns true if the file was created.
func writeIfNotExists(w io.Writer, path string, data []byte) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(w, "  exists: %s\n", path)
		return false, nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(w, "  created: %s\n", path)
	return true, nil
}

const exampleConfig = `# newspan configuration

# Entries are merged by id over the built-in outlets
# (bbc, npr, nytimes, nbcnews, foxnews). New ids add custom sources.
sources: []
# - id: guardian
#   name: The Guardian
#   feeds:
#     - "https://www.theguardian.com/world/rss"
#   selectors: ["div[data-gu-name='body'] p"]
#   search:
#     url: "https://www.theguardian.com/search?q={query}"
#     domain: theguardian.com

defaults:
  sources: []        # empty means every source
  keywords: ""
  timeout: 2m

fetch:
  timeout: 30s
  retries: 3
  # proxies: []      # uncomment to disable the fallback relays
  max_concurrency: 5
  enrich_workers: 3
  enrich_delay: 500ms
  full_content: true
  respect_robots: false

cache:
  backend: memory    # none, memory, redis
  ttl: 1h
  redis:
    addr: "localhost:6379"
    db: 0
    password_env: NEWSPAN_REDIS_PASSWORD

storage:
  path: .newspan/newspan.db
  retain_days: 30

summarize:
  mode: heuristic    # heuristic or llm
  llm:
    endpoint: "http://localhost:11434/v1/chat/completions"
    model: llama3.2
    api_key_env: NEWSPAN_LLM_API_KEY
    max_tokens: 150
  # redact:           # regexps scrubbed from text sent to the llm
  #   - '\b\d{3}-\d{3}-\d{4}\b'

server:
  addr: ":8080"

output:
  format: terminal   # terminal, json, markdown, csv, html
  color: auto        # auto, always, never
`

const exampleEnv = `# Copy to .env in this directory. Values here never override the environment.
NEWSPAN_LLM_API_KEY=
NEWSPAN_REDIS_PASSWORD=
`
