package app_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"procodus.dev/voltage/internal/app"
	"procodus.dev/voltage/internal/config"
)

func memoryConfig() *config.Config {
	return &config.Config{
		LogLevel:   "info",
		Deployment: "local",
		Store:      config.StoreConfig{Backend: config.BackendMemory},
		API:        config.APIConfig{PageSize: 10},
		HTTP:       config.HTTPConfig{Port: 3000},
	}
}

var _ = Describe("App", func() {
	var (
		ctx context.Context
		log *slog.Logger
		reg *prometheus.Registry
	)

	BeforeEach(func() {
		ctx = context.Background()
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
		reg = prometheus.NewRegistry()
	})

	DescribeTable("should validate options",
		func(opts *app.Options, message string) {
			_, err := app.New(ctx, opts)
			Expect(err).To(MatchError(message))
		},
		Entry("nil options", nil, "options cannot be nil"),
		Entry("nil config", &app.Options{Logger: slog.Default()}, "config cannot be nil"),
		Entry("nil logger", &app.Options{Config: &config.Config{}}, "logger cannot be nil"),
	)

	It("should wire the router to an instrumented store", func() {
		a, err := app.New(ctx, &app.Options{Config: memoryConfig(), Logger: log, Registerer: reg})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(a.Close)

		resp, err := a.Router.Handle(ctx, events.APIGatewayProxyRequest{
			HTTPMethod: http.MethodPost,
			Resource:   "/reports",
			Body:       `{"station":"Caracol","date":"2023/02/23,16:20:00","battery":55,"panel":60}`,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))

		last, err := a.Store.GetLastReport(ctx, "caracol")
		Expect(err).NotTo(HaveOccurred())
		Expect(last.Date).To(Equal("2023-02-23T16:20:00"))

		count, err := testutil.GatherAndCount(reg, "voltage_store_operations_total")
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(BeNumerically(">", 0))
	})

	It("should use the production origin", func() {
		cfg := memoryConfig()
		cfg.Deployment = "production"
		cfg.API.ProductionOrigin = "https://voltage.example.org"

		a, err := app.New(ctx, &app.Options{Config: cfg, Logger: log, Registerer: reg})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(a.Close)

		resp, err := a.Router.Handle(ctx, events.APIGatewayProxyRequest{
			HTTPMethod: http.MethodGet,
			Resource:   "/last_reports",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Headers).To(HaveKeyWithValue("Access-Control-Allow-Origin", "https://voltage.example.org"))
	})

	It("should connect the event publisher lazily", func() {
		cfg := memoryConfig()
		cfg.Events = config.EventsConfig{RabbitMQURL: "amqp://127.0.0.1:1", QueueName: "voltage-reports"}

		a, err := app.New(ctx, &app.Options{Config: cfg, Logger: log, Registerer: reg})
		Expect(err).NotTo(HaveOccurred())
		Expect(a.Close()).To(Succeed())
	})

	Describe("Handler", func() {
		var a *app.App

		BeforeEach(func() {
			var err error
			a, err = app.New(ctx, &app.Options{Config: memoryConfig(), Logger: log, Registerer: reg})
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(a.Close)
		})

		It("should list the router and every route", func() {
			Expect(a.HandlerNames()).To(Equal([]string{
				"router",
				"create-report",
				"get-last-report",
				"list-last-reports",
				"list-station-reports",
				"report-counts",
			}))
		})

		It("should default to the router", func() {
			h, err := a.Handler("")
			Expect(err).NotTo(HaveOccurred())

			resp, err := h(ctx, events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet, Resource: "/unknown"})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("should return a single handler by name", func() {
			h, err := a.Handler("get-last-report")
			Expect(err).NotTo(HaveOccurred())

			resp, err := h(ctx, events.APIGatewayProxyRequest{
				PathParameters: map[string]string{"station": "tonalapa"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			Expect(resp.Body).To(ContainSubstring("Station 'tonalapa' not found"))
		})

		It("should reject unknown names", func() {
			_, err := a.Handler("delete-report")
			Expect(err).To(MatchError(`unknown handler "delete-report"`))
		})
	})

	Describe("OpenStore", func() {
		It("should reject unknown backends", func() {
			cfg := memoryConfig()
			cfg.Store.Backend = "redis"

			_, _, err := app.OpenStore(ctx, cfg, log)
			Expect(err).To(MatchError(`unknown store backend "redis"`))
		})

		It("should build a dynamodb store without contacting the service", func() {
			cfg := memoryConfig()
			cfg.Store = config.StoreConfig{
				Backend:          config.BackendDynamoDB,
				Endpoint:         "http://127.0.0.1:8000",
				ReportsTable:     "reports",
				LastReportsTable: "last-reports",
			}

			s, closeStore, err := app.OpenStore(ctx, cfg, log)
			Expect(err).NotTo(HaveOccurred())
			Expect(s).NotTo(BeNil())
			Expect(closeStore()).To(Succeed())
		})
	})
})
