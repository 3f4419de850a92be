package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fieldops/fieldsync/internal/domain"
	"github.com/fieldops/fieldsync/internal/remote"
	"github.com/fieldops/fieldsync/internal/remote/remotetest"
	"github.com/fieldops/fieldsync/test-integration/agent/helpers"
)

const (
	tenant = "acme"
	entity = "work_orders"
)

var _ = Describe("Agent Sync", Label("sync"), func() {
	var (
		tempDir string
		dataDir string
		server  *remotetest.Server
		agent   *helpers.AgentTestHelper
	)

	startAgent := func(cfg helpers.AgentConfig) *helpers.AgentTestHelper {
		configFile := helpers.WriteConfigYAML(tempDir, dataDir, cfg)
		h, err := helpers.NewAgentTestHelper(ctx, configFile)
		Expect(err).NotTo(HaveOccurred())
		Expect(h.StartAgent()).To(Succeed())
		h.WaitForAgentReady(10 * time.Second)
		return h
	}

	BeforeEach(func() {
		tempDir = createTempDir("fieldsync-test-")
		dataDir = filepath.Join(tempDir, "data")
		server = remotetest.NewServer()
	})

	AfterEach(func() {
		if agent != nil {
			Expect(agent.StopAgent()).To(Succeed())
			agent = nil
		}
		server.Close()
		cleanupTempDir(tempDir)
	})

	Context("Local edits", func() {
		It("should push a record created through the control API", func() {
			agent = startAgent(helpers.AgentConfig{Endpoint: server.URL, Tenants: []string{tenant}})

			rec := agent.CreateRecord(tenant, entity, `{"title":"Replace pump seal"}`)
			Expect(rec.ID).To(HavePrefix(domain.TempIDPrefix))

			Eventually(func() int {
				return server.RowCount(entity)
			}, 10*time.Second, 50*time.Millisecond).Should(Equal(1))

			Eventually(func() []domain.PendingChange {
				return agent.Pending(tenant)
			}, 10*time.Second, 50*time.Millisecond).Should(BeEmpty())

			By("re-keying the local record to the server id")
			records := agent.Records(tenant, entity)
			Expect(records).To(HaveLen(1))
			Expect(records[0].ID).NotTo(HavePrefix(domain.TempIDPrefix))
			Expect(records[0].Synced).To(BeTrue())
		})

		It("should park changes the server rejects", func() {
			server.RejectWhen(func(_ string, up remote.Upsert) string {
				if bytes.Contains(up.NewValues.Fields, []byte("forbidden")) {
					return "title is not allowed"
				}
				return ""
			})
			agent = startAgent(helpers.AgentConfig{Endpoint: server.URL, Tenants: []string{tenant}})

			agent.CreateRecord(tenant, entity, `{"title":"forbidden"}`)

			Eventually(func() []domain.FailedChange {
				return agent.Failed(tenant)
			}, 10*time.Second, 50*time.Millisecond).Should(HaveLen(1))
			Expect(agent.Failed(tenant)[0].Reason).To(ContainSubstring("not allowed"))
			Expect(agent.Pending(tenant)).To(BeEmpty())
			Expect(server.RowCount(entity)).To(BeZero())
		})

		It("should keep queued changes across a restart while offline", func() {
			By("starting against an unreachable server")
			agent = startAgent(helpers.AgentConfig{Endpoint: "http://127.0.0.1:1", Tenants: []string{tenant}})
			agent.CreateRecord(tenant, entity, `{"title":"Inspect hydrant"}`)

			Consistently(func() int {
				return len(agent.Pending(tenant))
			}, 500*time.Millisecond, 50*time.Millisecond).Should(Equal(1))
			Expect(agent.StopAgent()).To(Succeed())

			By("restarting with the server reachable")
			agent = startAgent(helpers.AgentConfig{Endpoint: server.URL, Tenants: []string{tenant}})

			Eventually(func() int {
				return server.RowCount(entity)
			}, 10*time.Second, 50*time.Millisecond).Should(Equal(1))
			Eventually(func() []domain.PendingChange {
				return agent.Pending(tenant)
			}, 10*time.Second, 50*time.Millisecond).Should(BeEmpty())
		})
	})

	Context("Server changes", func() {
		It("should pull rows on a manual sync", func() {
			agent = startAgent(helpers.AgentConfig{Endpoint: server.URL, Tenants: []string{tenant}})

			server.Seed(entity, remote.Row{
				ID:       "wo-1",
				TenantID: tenant,
				Fields:   json.RawMessage(`{"title":"Read meter"}`),
			})

			code, body := agent.SyncNow(tenant)
			Expect(code).To(Equal(http.StatusOK))
			Expect(body["pulled"]).To(BeNumerically("==", 1))

			resp, err := agent.GetRecord(tenant, entity, "wo-1")
			Expect(err).NotTo(HaveOccurred())
			defer func() {
				_ = resp.Body.Close()
			}()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("should pull rows when the server sends a change notification", func() {
			agent = startAgent(helpers.AgentConfig{
				Endpoint:      server.URL,
				Tenants:       []string{tenant},
				Notifications: true,
			})

			Eventually(server.Subscribers, 10*time.Second, 50*time.Millisecond).Should(Equal(1))
			Eventually(server.PullCount, 10*time.Second, 50*time.Millisecond).Should(BeNumerically(">=", 1))

			server.Seed(entity, remote.Row{
				ID:       "wo-2",
				TenantID: tenant,
				Fields:   json.RawMessage(`{"title":"Flush main"}`),
			})
			Expect(server.Notify(tenant, entity)).To(Succeed())

			Eventually(func() int {
				resp, err := agent.GetRecord(tenant, entity, "wo-2")
				if err != nil {
					return 0
				}
				defer func() {
					_ = resp.Body.Close()
				}()
				return resp.StatusCode
			}, 10*time.Second, 50*time.Millisecond).Should(Equal(http.StatusOK))
		})
	})

	Context("Control API", func() {
		It("should reject unknown tenants", func() {
			agent = startAgent(helpers.AgentConfig{Endpoint: server.URL, Tenants: []string{tenant}})

			resp, err := agent.GetRecord("globex", entity, "wo-1")
			Expect(err).NotTo(HaveOccurred())
			defer func() {
				_ = resp.Body.Close()
			}()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("should sync every tenant it is configured for", func() {
			agent = startAgent(helpers.AgentConfig{Endpoint: server.URL, Tenants: []string{"globex", tenant}})

			Expect(agent.App().Group().TenantIDs()).To(Equal([]string{tenant, "globex"}))
			Eventually(func() bool {
				for _, st := range agent.App().Group().Statuses() {
					if st.LastSyncTime == nil {
						return false
					}
				}
				return true
			}, 10*time.Second, 50*time.Millisecond).Should(BeTrue())
			Expect(strings.Join(server.PullQueries(), "&")).To(ContainSubstring("limit="))
		})
	})
})
