package seed_test

import (
	"context"
	"io"
	"log/slog"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"procodus.dev/voltage/internal/report"
	"procodus.dev/voltage/internal/seed"
	"procodus.dev/voltage/internal/store"
	"procodus.dev/voltage/internal/store/memory"
)

var _ = Describe("Seed", func() {
	var (
		ctx context.Context
		s   *memory.Store
		log *slog.Logger
	)

	BeforeEach(func() {
		ctx = context.Background()
		s = memory.New()
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	})

	Describe("Samples", func() {
		It("should hold valid normalized reports", func() {
			for _, r := range seed.Samples() {
				Expect(r.Station).To(Equal(report.NormalizeStation(r.Station)))
				Expect(report.DayOf(r.Date)).NotTo(BeEmpty())
				Expect(report.ValidDecimal(r.Battery)).To(BeTrue())
				Expect(report.ValidDecimal(r.Panel)).To(BeTrue())
			}
		})
	})

	Describe("Add", func() {
		It("should write both tables", func() {
			Expect(seed.Add(ctx, s, seed.Samples(), log)).To(Succeed())

			last, err := store.ScanAll(ctx, s, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(last).To(HaveLen(4))

			page, err := s.QueryReports(ctx, store.Query{Station: "caracol"})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Reports).To(ConsistOf(seed.Samples()[1]))
		})

		It("should leave the newest report as last report", func() {
			g := seed.NewGenerator(7)
			stations := g.Stations(1)
			reports := g.Reports(stations, 2, 4, time.Date(2023, 2, 23, 23, 0, 0, 0, time.UTC))
			Expect(seed.Add(ctx, s, reports, log)).To(Succeed())

			last, err := s.GetLastReport(ctx, stations[0].Name)
			Expect(err).NotTo(HaveOccurred())
			Expect(last).To(Equal(reports[len(reports)-1]))
		})
	})

	Describe("Remove", func() {
		It("should delete from both tables", func() {
			Expect(seed.Add(ctx, s, seed.Samples(), log)).To(Succeed())
			Expect(seed.Remove(ctx, s, seed.Samples(), log)).To(Succeed())

			last, err := store.ScanAll(ctx, s, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(last).To(BeEmpty())

			_, err = s.GetLastReport(ctx, "tonalapa")
			Expect(err).To(MatchError(store.ErrNotFound))

			page, err := s.QueryReports(ctx, store.Query{Station: "tonalapa"})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Reports).To(BeEmpty())
		})

		It("should not fail on reports that were never added", func() {
			Expect(seed.Remove(ctx, s, seed.Samples(), log)).To(Succeed())
		})
	})
})

var _ = Describe("Generator", func() {
	until := time.Date(2023, 2, 23, 23, 59, 0, 0, time.UTC)

	It("should generate distinct station names", func() {
		stations := seed.NewGenerator(42).Stations(25)
		Expect(stations).To(HaveLen(25))

		names := make(map[string]bool)
		for _, st := range stations {
			Expect(st.Name).NotTo(BeEmpty())
			Expect(st.Name).To(Equal(report.NormalizeStation(st.Name)))
			names[st.Name] = true
		}
		Expect(names).To(HaveLen(25))
	})

	It("should be deterministic for a seed", func() {
		a := seed.NewGenerator(42)
		b := seed.NewGenerator(42)
		Expect(a.Reports(a.Stations(3), 2, 6, until)).To(Equal(b.Reports(b.Stations(3), 2, 6, until)))
	})

	It("should generate perDay reports per station and day, oldest first", func() {
		g := seed.NewGenerator(1)
		reports := g.Reports(g.Stations(2), 3, 4, until)
		Expect(reports).To(HaveLen(2 * 3 * 4))

		for i := 1; i < len(reports); i++ {
			Expect(reports[i].Date >= reports[i-1].Date).To(BeTrue())
		}
		Expect(reports[0].Date).To(HavePrefix("2023-02-21"))
		Expect(reports[len(reports)-1].Date).To(HavePrefix("2023-02-23"))
	})

	It("should produce valid decimals and a dark panel at night", func() {
		g := seed.NewGenerator(3)
		for _, r := range g.Reports(g.Stations(2), 2, 24, until) {
			Expect(report.ValidDecimal(r.Battery)).To(BeTrue())
			Expect(report.ValidDecimal(r.Panel)).To(BeTrue())
			Expect(r.BatteryFloat()).To(BeNumerically(">", 10))

			hour := r.Date[11:13]
			if hour < "06" || hour >= "18" {
				Expect(r.PanelFloat()).To(BeZero())
			}
		}
	})

	It("should skip readings after until", func() {
		g := seed.NewGenerator(5)
		reports := g.Reports(g.Stations(1), 1, 24, time.Date(2023, 2, 23, 11, 30, 0, 0, time.UTC))
		Expect(reports).To(HaveLen(12))
	})

	It("should pick stations of the given set", func() {
		g := seed.NewGenerator(9)
		stations := g.Stations(4)
		for range 20 {
			Expect(stations).To(ContainElement(g.Pick(stations)))
		}
	})

	It("should generate a reading at the requested time", func() {
		g := seed.NewGenerator(9)
		st := g.Stations(1)[0]
		r := g.Reading(st, time.Date(2023, 2, 23, 12, 0, 0, 0, time.UTC))
		Expect(r.Station).To(Equal(st.Name))
		Expect(r.Date).To(Equal("2023-02-23T12:00:00"))
		Expect(r.PanelFloat()).To(BeNumerically(">", 0))
	})

	It("should return nothing for a non-positive rate", func() {
		g := seed.NewGenerator(5)
		Expect(g.Reports(g.Stations(1), 1, 0, until)).To(BeEmpty())
	})
})
