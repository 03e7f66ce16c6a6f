package server_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"procodus.dev/voltage/internal/api"
	"procodus.dev/voltage/internal/report"
	"procodus.dev/voltage/internal/server"
	"procodus.dev/voltage/internal/store"
	"procodus.dev/voltage/internal/store/memory"
)

type brokenStore struct {
	*memory.Store
}

func (brokenStore) ScanLastReports(context.Context, *store.Cursor, int) (store.Page, error) {
	return store.Page{}, errors.New("connection reset")
}

func newRouter(s store.Store, logger *slog.Logger) *api.Router {
	h, err := api.NewHandlers(&api.HandlersConfig{Store: s, Logger: logger})
	Expect(err).NotTo(HaveOccurred())
	return api.NewRouter(h)
}

var _ = Describe("API Server", func() {
	var (
		logger *slog.Logger
	)

	BeforeEach(func() {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	})

	Describe("NewServer", func() {
		It("should create a server with a valid configuration", func() {
			srv, err := server.NewServer(&server.ServerConfig{
				Logger:   logger,
				Router:   newRouter(memory.New(), logger),
				HTTPPort: 8080,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(srv).NotTo(BeNil())
		})

		DescribeTable("should reject invalid configuration",
			func(mutate func(*server.ServerConfig), message string) {
				cfg := &server.ServerConfig{
					Logger:   logger,
					Router:   newRouter(memory.New(), logger),
					HTTPPort: 8080,
				}
				mutate(cfg)

				srv, err := server.NewServer(cfg)
				Expect(err).To(MatchError(ContainSubstring(message)))
				Expect(srv).To(BeNil())
			},
			Entry("nil logger", func(c *server.ServerConfig) { c.Logger = nil }, "logger cannot be nil"),
			Entry("nil router", func(c *server.ServerConfig) { c.Router = nil }, "router cannot be nil"),
			Entry("zero port", func(c *server.ServerConfig) { c.HTTPPort = 0 }, "HTTP port"),
			Entry("negative port", func(c *server.ServerConfig) { c.HTTPPort = -1 }, "HTTP port"),
		)

		It("should return error when config is nil", func() {
			srv, err := server.NewServer(nil)
			Expect(err).To(MatchError(ContainSubstring("config cannot be nil")))
			Expect(srv).To(BeNil())
		})
	})

	Describe("Handler", func() {
		var (
			mem *memory.Store
			ts  *httptest.Server
		)

		BeforeEach(func() {
			mem = memory.New()
			srv, err := server.NewServer(&server.ServerConfig{
				Logger:   logger,
				Router:   newRouter(mem, logger),
				HTTPPort: 8080,
				Stage:    "local",
			})
			Expect(err).NotTo(HaveOccurred())

			ts = httptest.NewServer(srv.Handler())
			DeferCleanup(ts.Close)
		})

		get := func(path string) (*http.Response, string) {
			resp, err := http.Get(ts.URL + path)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			return resp, string(body)
		}

		It("should serve the health check", func() {
			resp, body := get("/health")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body).To(MatchJSON(`{"status":"ok"}`))
		})

		It("should serve Prometheus metrics", func() {
			resp, body := get("/metrics")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body).To(ContainSubstring("go_goroutines"))
		})

		It("should create and read back a report", func() {
			resp, err := http.Post(ts.URL+"/reports", "application/json",
				strings.NewReader(`{"station":"Caracol","date":"2023/02/23,16:20:00","battery":55,"panel":60}`))
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))

			last, body := get("/last_reports/Caracol")
			Expect(last.StatusCode).To(Equal(http.StatusOK))
			Expect(last.Header.Get("Content-Type")).To(Equal("application/json"))
			Expect(body).To(MatchJSON(`{"station":"caracol","date":"2023-02-23T16:20:00","battery":55,"panel":60}`))
		})

		It("should pass path and query parameters", func() {
			for _, date := range []string{"2023-02-22T16:20:00", "2023-02-23T16:20:00"} {
				r := report.Report{Station: "piedra grande", Date: date, Battery: "34", Panel: "40"}
				Expect(mem.PutReport(context.Background(), r)).To(Succeed())
			}

			resp, body := get("/reports/Piedra%20Grande?start_date=2023-02-23")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body).To(MatchJSON(`{"reports":[{"date":"2023-02-23T16:20:00","battery":34,"panel":40}],"nextKey":null}`))

			resp, body = get("/reports/piedra%20grande/count")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body).To(MatchJSON(`{"reports":[{"date":"2023-02-23","count":1},{"date":"2023-02-22","count":1}]}`))
		})

		It("should decode station path parameters exactly once", func() {
			r := report.Report{Station: "a%41", Date: "2023-02-22T16:20:00", Battery: "34", Panel: "40"}
			Expect(mem.UpdateLastReport(context.Background(), r)).To(Succeed())

			resp, body := get("/last_reports/a%2541")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body).To(MatchJSON(`{"station":"a%41","date":"2023-02-22T16:20:00","battery":34,"panel":40}`))

			resp, body = get("/last_reports/Nowhere%20Else")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			Expect(body).To(MatchJSON(`{"message":"Station 'Nowhere Else' not found"}`))
		})

		It("should answer CORS preflight requests", func() {
			req, err := http.NewRequest(http.MethodOptions, ts.URL+"/reports", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Access-Control-Allow-Methods")).To(Equal("OPTIONS,POST,GET"))
		})

		It("should reject unsupported methods", func() {
			req, err := http.NewRequest(http.MethodDelete, ts.URL+"/last_reports", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusMethodNotAllowed))
		})
	})

	Describe("handler failures", func() {
		It("should turn handler errors into 500 responses", func() {
			srv, err := server.NewServer(&server.ServerConfig{
				Logger:   logger,
				Router:   newRouter(brokenStore{memory.New()}, logger),
				HTTPPort: 8080,
			})
			Expect(err).NotTo(HaveOccurred())

			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/last_reports", nil))

			Expect(rec.Code).To(Equal(http.StatusInternalServerError))
			Expect(rec.Body.String()).To(MatchJSON(`{"message":"Internal server error"}`))
			Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})
	})

	Describe("Run", func() {
		It("should stop when the context is canceled and run shutdown hooks", func() {
			srv, err := server.NewServer(&server.ServerConfig{
				Logger:   logger,
				Router:   newRouter(memory.New(), logger),
				HTTPPort: 18089,
			})
			Expect(err).NotTo(HaveOccurred())

			hookCalled := false
			srv.OnShutdown(func() error {
				hookCalled = true
				return nil
			})

			ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
			defer cancel()

			Expect(srv.Run(ctx)).To(Succeed())
			Expect(hookCalled).To(BeTrue())
		})
	})
})
