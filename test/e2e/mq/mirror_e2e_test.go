package mq

import (
	"context"
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"procodus.dev/voltage/internal/mirror"
	"procodus.dev/voltage/internal/notify"
	"procodus.dev/voltage/internal/report"
	"procodus.dev/voltage/internal/store/memory"
	clientmq "procodus.dev/voltage/pkg/mq"
)

var _ = Describe("Report event mirror E2E", func() {
	It("should replay published reports into another store", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		queueName := "mirror-queue-" + time.Now().Format("20060102-150405.000000")

		publisher, err := clientmq.NewPublisher(&clientmq.PublisherConfig{
			URL:       rabbitmqURL,
			QueueName: queueName,
			Logger:    testLogger,
		})
		Expect(err).NotTo(HaveOccurred())

		events, err := notify.NewPublisher(&notify.PublisherConfig{
			MQ:      publisher,
			Logger:  testLogger,
			Timeout: 10 * time.Second,
		})
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = events.Close() }()

		target := memory.New()
		consumer, err := mirror.NewConsumer(&mirror.ConsumerConfig{
			Logger:      testLogger,
			Store:       target,
			RabbitMQURL: rabbitmqURL,
			QueueName:   queueName,
		})
		Expect(err).NotTo(HaveOccurred())

		done := make(chan error, 1)
		go func() { done <- consumer.Run(ctx) }()

		reports := []report.Report{
			{Station: "tonalapa", Date: "2023-02-21T16:20:00", Battery: json.Number("44.5"), Panel: json.Number("67")},
			{Station: "tonalapa", Date: "2023-02-22T16:20:00", Battery: json.Number("45"), Panel: json.Number("68")},
		}
		for _, r := range reports {
			events.ReportCreated(ctx, r)
		}

		Eventually(func() (string, error) {
			last, err := target.GetLastReport(ctx, "tonalapa")
			return last.Date, err
		}).WithTimeout(15 * time.Second).Should(Equal("2023-02-22T16:20:00"))

		Expect(consumer.Stop()).To(Succeed())
		Eventually(done).WithTimeout(5 * time.Second).Should(Receive(BeNil()))
	})
})
