package helpers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/onsi/gomega"

	"github.com/fieldops/fieldsync/internal/app"
	"github.com/fieldops/fieldsync/internal/config"
	"github.com/fieldops/fieldsync/internal/domain"
)

// AgentTestHelper manages the agent lifecycle for testing
type AgentTestHelper struct {
	ctx        context.Context
	configPath string
	baseURL    string
	httpClient *http.Client
	app        *app.SyncApp
	port       int
}

// NewAgentTestHelper creates a helper listening on a free local port
func NewAgentTestHelper(ctx context.Context, configPath string) (*AgentTestHelper, error) {
	port, err := freePort()
	if err != nil {
		return nil, err
	}
	return &AgentTestHelper{
		ctx:        ctx,
		configPath: configPath,
		baseURL:    fmt.Sprintf("http://127.0.0.1:%d", port),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		port: port,
	}, nil
}

func freePort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("failed to find a free port: %w", err)
	}
	defer func() {
		_ = ln.Close()
	}()
	return ln.Addr().(*net.TCPAddr).Port, nil
}

// StartAgent starts the agent programmatically
func (h *AgentTestHelper) StartAgent() error {
	cfg, err := config.LoadConfig(config.WithConfigPath(h.configPath))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	syncApp, err := app.NewSyncApp(h.ctx,
		app.WithConfig(cfg),
		app.WithAddress(fmt.Sprintf("127.0.0.1:%d", h.port)),
	)
	if err != nil {
		return fmt.Errorf("failed to build app: %w", err)
	}
	h.app = syncApp

	// Start the agent in a goroutine (non-blocking)
	go func() {
		if err := syncApp.Start(); err != nil {
			// The test fails when it tries to connect
			fmt.Fprintf(os.Stderr, "Agent start failed: %v\n", err)
		}
	}()
	return nil
}

// StopAgent gracefully stops the agent
func (h *AgentTestHelper) StopAgent() error {
	if h.app != nil {
		return h.app.Stop(5 * time.Second)
	}
	return nil
}

// App returns the running agent
func (h *AgentTestHelper) App() *app.SyncApp {
	return h.app
}

// WaitForAgentReady waits for the control API to accept requests
func (h *AgentTestHelper) WaitForAgentReady(timeout time.Duration) {
	gomega.Eventually(func() error {
		resp, err := h.httpClient.Get(h.baseURL + "/health")
		if err != nil {
			return err
		}
		defer func() {
			_ = resp.Body.Close()
		}()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("agent returned status %d", resp.StatusCode)
		}
		return nil
	}, timeout, 100*time.Millisecond).Should(gomega.Succeed(), "Agent should be ready")
}

// CreateRecord posts a new record through the control API
func (h *AgentTestHelper) CreateRecord(tenant, entity, payload string) *domain.Record {
	resp, err := h.httpClient.Post(
		fmt.Sprintf("%s/api/v1/tenants/%s/records/%s", h.baseURL, tenant, entity),
		"application/json", bytes.NewBufferString(payload))
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	defer func() {
		_ = resp.Body.Close()
	}()
	gomega.Expect(resp.StatusCode).To(gomega.Equal(http.StatusCreated))

	var rec domain.Record
	gomega.Expect(json.NewDecoder(resp.Body).Decode(&rec)).To(gomega.Succeed())
	return &rec
}

// SyncNow runs a cycle through the control API and decodes the summary
func (h *AgentTestHelper) SyncNow(tenant string) (int, map[string]any) {
	resp, err := h.httpClient.Post(
		fmt.Sprintf("%s/api/v1/tenants/%s/sync?wait=true", h.baseURL, tenant), "application/json", nil)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	defer func() {
		_ = resp.Body.Close()
	}()

	body := map[string]any{}
	gomega.Expect(json.NewDecoder(resp.Body).Decode(&body)).To(gomega.Succeed())
	return resp.StatusCode, body
}

// Pending lists the queued changes of a tenant
func (h *AgentTestHelper) Pending(tenant string) []domain.PendingChange {
	var pending []domain.PendingChange
	h.getJSON(fmt.Sprintf("/api/v1/tenants/%s/pending", tenant), &pending)
	return pending
}

// Failed lists the changes the server rejected
func (h *AgentTestHelper) Failed(tenant string) []domain.FailedChange {
	var failed []domain.FailedChange
	h.getJSON(fmt.Sprintf("/api/v1/tenants/%s/failed", tenant), &failed)
	return failed
}

// Records lists the local records of one entity type
func (h *AgentTestHelper) Records(tenant, entity string) []domain.Record {
	var records []domain.Record
	h.getJSON(fmt.Sprintf("/api/v1/tenants/%s/records/%s", tenant, entity), &records)
	return records
}

// GetRecord fetches one local record
func (h *AgentTestHelper) GetRecord(tenant, entity, id string) (*http.Response, error) {
	return h.httpClient.Get(fmt.Sprintf("%s/api/v1/tenants/%s/records/%s/%s", h.baseURL, tenant, entity, id))
}

func (h *AgentTestHelper) getJSON(path string, out any) {
	resp, err := h.httpClient.Get(h.baseURL + path)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	defer func() {
		_ = resp.Body.Close()
	}()
	gomega.Expect(resp.StatusCode).To(gomega.Equal(http.StatusOK))
	gomega.Expect(json.NewDecoder(resp.Body).Decode(out)).To(gomega.Succeed())
}
