package export_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/zombor/bonnetjes/internal/export"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(d int) time.Time {
	return time.Date(2026, time.February, d, 0, 0, 0, 0, time.UTC)
}

var _ = Describe("Reimbursement", func() {
	It("rounds the kilometer component before adding the travel cost", func() {
		Expect(export.Reimbursement(dec("17"), dec("4.35")).String()).To(Equal("8.26"))
	})

	It("rounds half up on the kilometer component", func() {
		// 0.5 * 0.23 = 0.115
		Expect(export.Reimbursement(dec("0.5"), decimal.Zero).String()).To(Equal("0.12"))
	})

	It("handles trips without kilometers", func() {
		Expect(export.Reimbursement(decimal.Zero, dec("12.40")).String()).To(Equal("12.4"))
	})
})

var _ = Describe("SortByDate", func() {
	var (
		entries []export.Entry
		sorted  []export.Entry
	)

	BeforeEach(func() {
		entries = []export.Entry{
			{ID: "c", Date: day(10)},
			{ID: "a1", Date: day(3)},
			{ID: "b", Date: day(5)},
			{ID: "a2", Date: day(3)},
			{ID: "a3", Date: day(3)},
		}
	})

	JustBeforeEach(func() {
		sorted = export.SortByDate(entries)
	})

	It("orders by date and keeps the input order on ties", func() {
		var ids []string
		for _, e := range sorted {
			ids = append(ids, e.ID)
		}
		Expect(ids).To(Equal([]string{"a1", "a2", "a3", "b", "c"}))
	})

	It("does not reorder the input", func() {
		Expect(entries[0].ID).To(Equal("c"))
	})
})

var _ = Describe("Partition", func() {
	It("puts every item in exactly one partition", func() {
		entries := []export.Entry{
			{ID: "1", Submitted: true},
			{ID: "2"},
			{ID: "3", Submitted: true},
			{ID: "4"},
			{ID: "5"},
		}
		pending, done := export.Partition(entries, func(e export.Entry) bool { return e.Submitted })

		Expect(len(pending) + len(done)).To(Equal(len(entries)))
		for _, p := range pending {
			Expect(p.Submitted).To(BeFalse())
			for _, d := range done {
				Expect(d.ID).NotTo(Equal(p.ID))
			}
		}
		for _, d := range done {
			Expect(d.Submitted).To(BeTrue())
		}
	})

	It("returns empty partitions for no input", func() {
		pending, done := export.Partition([]int{}, func(int) bool { return true })
		Expect(pending).To(BeEmpty())
		Expect(done).To(BeEmpty())
	})
})

var _ = Describe("Compute", func() {
	var (
		period  export.Period
		entries []export.Entry
		report  export.Report
	)

	BeforeEach(func() {
		period = export.Period{Year: 2026, Month: time.February}
		entries = []export.Entry{
			{ID: "r2", Kind: export.KindReceipt, Date: day(14), Label: "Jumbo", Amount: dec("12.50"), VAT: dec("2.17")},
			{ID: "t1", Kind: export.KindTravel, Date: day(2), Kilometers: dec("17"), TravelCost: dec("4.35")},
			{ID: "r1", Kind: export.KindReceipt, Date: day(1), Label: "HEMA", Amount: dec("3.50"), VAT: dec("0.61")},
			{ID: "t2", Kind: export.KindTravel, Date: day(1), Kilometers: dec("10"), TravelCost: decimal.Zero},
		}
	})

	JustBeforeEach(func() {
		report = export.Compute(period, "J. Jansen", entries)
	})

	It("splits receipts and travel into sorted sheets", func() {
		Expect(report.Receipts.Entries).To(HaveLen(2))
		Expect(report.Receipts.Entries[0].ID).To(Equal("r1"))
		Expect(report.Travel.Entries).To(HaveLen(2))
		Expect(report.Travel.Entries[0].ID).To(Equal("t2"))
		Expect(report.Count()).To(Equal(4))
	})

	It("totals the receipts", func() {
		Expect(report.Receipts.Totals.Amount.String()).To(Equal("16"))
		Expect(report.Receipts.Totals.VAT.String()).To(Equal("2.78"))
	})

	It("totals the travel reimbursements", func() {
		// 8.26 + 2.30
		Expect(report.Travel.Totals.Amount.String()).To(Equal("10.56"))
		Expect(report.Travel.Totals.Kilometers.String()).To(Equal("27"))
	})

	It("adds both sheets into the grand total", func() {
		Expect(report.GrandTotal.String()).To(Equal("26.56"))
	})

	It("appends a totals row with the aggregates", func() {
		rows := report.Receipts.Rows()
		Expect(rows).To(HaveLen(3))
		total := rows[2]
		Expect(total[0].Text).To(Equal("Totaal"))
		Expect(total[1].Text).To(BeEmpty())
		Expect(total[4].Text).To(Equal("16,00"))
		Expect(total[5].Text).To(Equal("2,78"))
	})

	It("renders the travel reimbursement per row", func() {
		rows := report.Travel.Rows()
		Expect(rows[1][6].Text).To(Equal("8,26"))
		Expect(rows[2][6].Text).To(Equal("10,56"))
	})

	It("yields identical totals when run twice", func() {
		again := export.Compute(period, "J. Jansen", entries)
		Expect(again.GrandTotal.Equal(report.GrandTotal)).To(BeTrue())
		Expect(again.Receipts.Totals).To(Equal(report.Receipts.Totals))
		Expect(again.Travel.Totals).To(Equal(report.Travel.Totals))
	})

	When("there are no entries", func() {
		BeforeEach(func() {
			entries = nil
		})

		It("still produces a zero totals row", func() {
			rows := report.Receipts.Rows()
			Expect(rows).To(HaveLen(1))
			Expect(rows[0][4].Text).To(Equal("0,00"))
			Expect(report.GrandTotal.IsZero()).To(BeTrue())
		})
	})
})

var _ = Describe("Period", func() {
	It("validates the month", func() {
		_, err := export.NewPeriod(2026, 13)
		Expect(err).To(HaveOccurred())
	})

	It("validates the year", func() {
		_, err := export.NewPeriod(1999, 1)
		Expect(err).To(HaveOccurred())
	})

	It("formats labels and filenames", func() {
		p, err := export.NewPeriod(2026, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(p.String()).To(Equal("2026-02"))
		Expect(p.Label()).To(Equal("februari 2026"))
		Expect(p.Filename("pdf")).To(Equal("declaratie-2026-02.pdf"))
	})

	It("contains dates of the same month only", func() {
		p := export.Period{Year: 2026, Month: time.February}
		Expect(p.Contains(day(28))).To(BeTrue())
		Expect(p.Contains(time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC))).To(BeFalse())
	})
})
