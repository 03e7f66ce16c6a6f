// Package api exercises the report API over HTTP against DynamoDB Local and
// RabbitMQ containers.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"procodus.dev/voltage/internal/notify"
	e2econtainers "procodus.dev/voltage/test/e2e/testcontainers"
)

func call(method, path, body string) (*http.Response, map[string]any) {
	req, err := http.NewRequest(method, api.URL+path, strings.NewReader(body))
	Expect(err).NotTo(HaveOccurred())

	resp, err := http.DefaultClient.Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())

	var decoded map[string]any
	if len(raw) > 0 {
		Expect(json.Unmarshal(raw, &decoded)).To(Succeed())
	}
	return resp, decoded
}

var _ = Describe("Report API E2E", func() {
	It("should serve the seeded last report of a station", func() {
		resp, body := call(http.MethodGet, "/last_reports/Tonalapa", "")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
		Expect(body).To(HaveKeyWithValue("date", "2023-02-22T16:20:00"))
		Expect(body).To(HaveKeyWithValue("battery", 45.0))
	})

	It("should decode percent-encoded station names", func() {
		resp, body := call(http.MethodGet, "/last_reports/"+url.PathEscape("piedra grande"), "")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(body).To(HaveKeyWithValue("panel", 40.0))
	})

	It("should list the last report of every seeded station", func() {
		resp, body := call(http.MethodGet, "/last_reports", "")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(body["reports"]).To(ContainElements(
			HaveKeyWithValue("station", "caracol"),
			HaveKeyWithValue("station", "la piedra"),
			HaveKeyWithValue("station", "piedra grande"),
			HaveKeyWithValue("station", "tonalapa"),
		))
	})

	It("should answer 404 for unknown stations", func() {
		resp, body := call(http.MethodGet, "/reports/Nowhere", "")
		Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		Expect(body).To(HaveKeyWithValue("message", "Station 'Nowhere' not found"))
	})

	It("should answer CORS preflight requests", func() {
		resp, body := call(http.MethodOptions, "/reports", "")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(resp.Header.Get("Access-Control-Allow-Methods")).To(Equal("OPTIONS,POST,GET"))
		Expect(body).To(BeEmpty())
	})

	Describe("creating reports", func() {
		It("should store the report, update the last report and publish an event", func() {
			resp, body := call(http.MethodPost, "/reports",
				`{"station":"Cerro Azul","date":"2023/3/1,06:05:00","battery":12.75,"panel":"18.5"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			Expect(body).To(Equal(map[string]any{
				"station": "cerro azul",
				"date":    "2023-03-01T06:05:00",
				"battery": 12.75,
				"panel":   18.5,
			}))

			_, last := call(http.MethodGet, "/last_reports/cerro%20azul", "")
			Expect(last).To(HaveKeyWithValue("date", "2023-03-01T06:05:00"))

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			// Other specs publish to the same queue
			var event notify.ReportEvent
			for event.Station != "cerro azul" {
				delivery, err := e2econtainers.NextDelivery(ctx, rabbitmqURL, queueName, 10*time.Second)
				Expect(err).NotTo(HaveOccurred())
				Expect(delivery.Type).To(Equal(notify.EventReportCreated))
				Expect(delivery.ContentType).To(Equal("application/json"))
				Expect(json.Unmarshal(delivery.Body, &event)).To(Succeed())
			}
			Expect(event.Date).To(Equal("2023-03-01T06:05:00"))
			Expect(event.Battery).To(Equal(json.Number("12.75")))
			Expect(event.Panel).To(Equal(json.Number("18.5")))
		})

		It("should reject malformed dates before writing", func() {
			resp, body := call(http.MethodPost, "/reports",
				`{"station":"cerro verde","date":"2023-03-01 06:05","battery":12,"panel":18}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(body).To(HaveKeyWithValue("message", "The report date must have the format YYYY/MM/DD,HH:MM:SS"))

			resp, _ = call(http.MethodGet, "/last_reports/cerro%20verde", "")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("station history", func() {
		BeforeEach(func() {
			for _, date := range []string{
				"2023/4/1,08:00:00",
				"2023/4/1,20:00:00",
				"2023/4/2,08:00:00",
				"2023/4/3,08:00:00",
				"2023/4/3,12:00:00",
			} {
				resp, _ := call(http.MethodPost, "/reports",
					`{"station":"mirador","date":"`+date+`","battery":12.1,"panel":17.9}`)
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			}
		})

		It("should page through reports with next_key", func() {
			resp, first := call(http.MethodGet, "/reports/mirador", "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(first["reports"]).To(HaveLen(3))
			Expect(first["nextKey"]).To(BeAssignableToTypeOf(""))

			resp, second := call(http.MethodGet, "/reports/mirador?next_key="+url.QueryEscape(first["nextKey"].(string)), "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(second["reports"]).To(HaveLen(2))
			Expect(second["nextKey"]).To(BeNil())
		})

		It("should filter by start date", func() {
			resp, body := call(http.MethodGet, "/reports/mirador?start_date="+url.QueryEscape("2023/4/3,00:00:00"), "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["reports"]).To(HaveLen(2))
		})

		It("should count reports per day, most recent first", func() {
			resp, body := call(http.MethodGet, "/reports/mirador/count", "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["reports"]).To(Equal([]any{
				map[string]any{"date": "2023-04-03", "count": 2.0},
				map[string]any{"date": "2023-04-02", "count": 1.0},
				map[string]any{"date": "2023-04-01", "count": 2.0},
			}))
		})
	})

	It("should report healthy", func() {
		resp, body := call(http.MethodGet, "/health", "")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(body).To(HaveKeyWithValue("status", "ok"))
	})
})
