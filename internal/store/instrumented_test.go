package store_test

import (
	"context"
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"procodus.dev/voltage/internal/report"
	"procodus.dev/voltage/internal/store"
	"procodus.dev/voltage/internal/store/memory"
	"procodus.dev/voltage/pkg/metrics"
)

type failingStore struct {
	*memory.Store
}

func (failingStore) PutReport(context.Context, report.Report) error {
	return errors.New("throughput exceeded")
}

// txStore records through RecordReport only.
type txStore struct {
	*memory.Store
	records int
}

func (s *txStore) RecordReport(ctx context.Context, r report.Report) error {
	s.records++
	if err := s.Store.PutReport(ctx, r); err != nil {
		return err
	}
	return s.Store.UpdateLastReport(ctx, r)
}

var _ = Describe("Instrumented", func() {
	var (
		ctx context.Context
		m   *metrics.StoreMetrics
	)

	BeforeEach(func() {
		ctx = context.Background()
		m = metrics.NewStoreMetricsWith(prometheus.NewRegistry(), "test")
	})

	It("should return the store unchanged without metrics", func() {
		s := memory.New()
		Expect(store.NewInstrumented(s, nil)).To(BeIdenticalTo(s))
	})

	It("should count successful operations", func() {
		s := store.NewInstrumented(memory.New(), m)
		r := report.Report{Station: "caracol", Date: "2023-02-23T16:20:00", Battery: json.Number("55"), Panel: json.Number("60")}

		Expect(s.PutReport(ctx, r)).To(Succeed())
		Expect(s.UpdateLastReport(ctx, r)).To(Succeed())
		_, err := s.QueryReports(ctx, store.Query{Station: "caracol"})
		Expect(err).NotTo(HaveOccurred())

		Expect(testutil.ToFloat64(m.OperationsTotal.WithLabelValues("put_report", "success"))).To(Equal(1.0))
		Expect(testutil.ToFloat64(m.OperationsTotal.WithLabelValues("update_last_report", "success"))).To(Equal(1.0))
		Expect(testutil.ToFloat64(m.OperationsTotal.WithLabelValues("query_reports", "success"))).To(Equal(1.0))
	})

	It("should not count a missing last report as an error", func() {
		s := store.NewInstrumented(memory.New(), m)

		_, err := s.GetLastReport(ctx, "la piedra")
		Expect(err).To(MatchError(store.ErrNotFound))
		Expect(testutil.ToFloat64(m.OperationsTotal.WithLabelValues("get_last_report", "success"))).To(Equal(1.0))
		Expect(testutil.ToFloat64(m.OperationsTotal.WithLabelValues("get_last_report", "error"))).To(Equal(0.0))
	})

	It("should observe a transactional record as one operation", func() {
		inner := &txStore{Store: memory.New()}
		s := store.NewInstrumented(inner, m)

		Expect(store.Record(ctx, s, report.Report{Station: "caracol", Date: "2023-02-23T16:20:00"})).To(Succeed())
		Expect(inner.records).To(Equal(1))
		Expect(testutil.ToFloat64(m.OperationsTotal.WithLabelValues("record_report", "success"))).To(Equal(1.0))
		Expect(testutil.ToFloat64(m.OperationsTotal.WithLabelValues("put_report", "success"))).To(Equal(0.0))
	})

	It("should observe both writes of a non-transactional record", func() {
		s := store.NewInstrumented(memory.New(), m)

		Expect(store.Record(ctx, s, report.Report{Station: "caracol", Date: "2023-02-23T16:20:00"})).To(Succeed())
		Expect(testutil.ToFloat64(m.OperationsTotal.WithLabelValues("put_report", "success"))).To(Equal(1.0))
		Expect(testutil.ToFloat64(m.OperationsTotal.WithLabelValues("update_last_report", "success"))).To(Equal(1.0))
	})

	It("should count and pass through store failures", func() {
		s := store.NewInstrumented(failingStore{memory.New()}, m)

		err := s.PutReport(ctx, report.Report{Station: "caracol"})
		Expect(err).To(MatchError("throughput exceeded"))
		Expect(testutil.ToFloat64(m.OperationsTotal.WithLabelValues("put_report", "error"))).To(Equal(1.0))
	})
})
