package helpers

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/onsi/gomega"
)

// AgentConfig describes the agent configuration written for a test
type AgentConfig struct {
	Endpoint      string
	Tenants       []string
	Notifications bool
}

// WriteConfigYAML writes an agent configuration that keeps its sqlite store
// and status files in dataDir and returns the config file path.
// Periodic triggers are pushed far out so only the triggers under test run.
func WriteConfigYAML(dir, dataDir string, cfg AgentConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "agentName: integration\n")
	fmt.Fprintf(&b, "server:\n  endpoint: %s\n  timeout: 2s\n", cfg.Endpoint)
	if cfg.Notifications {
		fmt.Fprintf(&b, "  notifyURL: ws%s/notifications\n", strings.TrimPrefix(cfg.Endpoint, "http"))
	}
	b.WriteString("tenants:\n")
	for _, id := range cfg.Tenants {
		fmt.Fprintf(&b, "  - id: %s\n", id)
	}
	b.WriteString("sync:\n  interval: 1h\n")
	b.WriteString("retry:\n  initialDelay: 10ms\n  maxDelay: 50ms\n  maxAttempts: 2\n  jitter: 0\n")
	b.WriteString("connectivity:\n  probeInterval: 1h\n")
	fmt.Fprintf(&b, "storage:\n  type: sqlite\n  sqlite:\n    path: %s\n  statusDir: %s\n",
		filepath.Join(dataDir, "fieldsync.db"), filepath.Join(dataDir, "status"))

	path := filepath.Join(dir, "config.yaml")
	err := os.WriteFile(path, []byte(b.String()), 0600)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	return path
}
