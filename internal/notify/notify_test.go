package notify_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"procodus.dev/voltage/internal/api"
	"procodus.dev/voltage/internal/notify"
	"procodus.dev/voltage/internal/report"
	"procodus.dev/voltage/pkg/mq"
	"procodus.dev/voltage/pkg/mq/mock"
)

var _ = Describe("Publisher", func() {
	var (
		buf  *bytes.Buffer
		log  *slog.Logger
		mqp  *mock.MockPublisher
		pub  *notify.Publisher
		repo report.Report
	)

	BeforeEach(func() {
		buf = &bytes.Buffer{}
		log = slog.New(slog.NewJSONHandler(buf, nil))
		mqp = mock.NewMockPublisher()
		repo = report.Report{
			Station: "caracol",
			Date:    "2023-02-23T16:20:00",
			Battery: json.Number("55.10"),
			Panel:   json.Number("60"),
		}

		var err error
		pub, err = notify.NewPublisher(&notify.PublisherConfig{MQ: mqp, Logger: log})
		Expect(err).NotTo(HaveOccurred())
	})

	DescribeTable("NewPublisher should validate its configuration",
		func(cfg *notify.PublisherConfig, message string) {
			_, err := notify.NewPublisher(cfg)
			Expect(err).To(MatchError(message))
		},
		Entry("nil config", nil, "publisher config cannot be nil"),
		Entry("nil mq", &notify.PublisherConfig{Logger: slog.Default()}, "mq publisher cannot be nil"),
		Entry("nil logger", &notify.PublisherConfig{MQ: mock.NewMockPublisher()}, "logger cannot be nil"),
	)

	It("should publish a report.created event", func() {
		pub.ReportCreated(context.Background(), repo)

		msgs := mqp.Messages()
		Expect(msgs).To(HaveLen(1))
		Expect(msgs[0].Type).To(Equal(notify.EventReportCreated))
		Expect(uuid.Validate(msgs[0].ID)).To(Succeed())
		Expect(msgs[0].Body).To(MatchJSON(`{"station":"caracol","date":"2023-02-23T16:20:00","battery":55.10,"panel":60}`))
	})

	It("should bound the publish with a deadline", func() {
		var deadline time.Time
		mqp.PublishFunc = func(ctx context.Context, _ mq.Message) error {
			deadline, _ = ctx.Deadline()
			return nil
		}

		pub.ReportCreated(context.Background(), repo)
		Expect(deadline).To(BeTemporally("~", time.Now().Add(notify.DefaultTimeout), time.Second))
	})

	It("should log failures without propagating them", func() {
		mqp.PublishError = errors.New("maximum retry attempts exceeded")

		Expect(func() { pub.ReportCreated(context.Background(), repo) }).NotTo(Panic())
		Expect(buf.String()).To(ContainSubstring("failed to publish report event"))
	})

	It("should close the underlying publisher", func() {
		Expect(pub.Close()).To(Succeed())
		Expect(mqp.CloseCalls).To(Equal(1))
	})

	It("should satisfy the handler notifier", func() {
		var n api.Notifier = pub
		Expect(n).NotTo(BeNil())
	})
})
