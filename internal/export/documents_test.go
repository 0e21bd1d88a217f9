package export_test

import (
	"archive/zip"
	"bytes"
	"io"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/xuri/excelize/v2"

	"github.com/zombor/bonnetjes/internal/export"
)

func sampleReport() export.Report {
	return export.Compute(export.Period{Year: 2026, Month: time.February}, "J. Jansen", []export.Entry{
		{ID: "r1", Kind: export.KindReceipt, Date: day(3), Label: "Albert Heijn", Category: "Lunch", Amount: dec("12.50"), VAT: dec("1.03")},
		{ID: "r2", Kind: export.KindReceipt, Date: day(1), Label: "Gamma", Category: "Materiaal", Amount: dec("27.99"), VAT: dec("4.86")},
		{ID: "t1", Kind: export.KindTravel, Date: day(2), Description: "Klantbezoek", Origin: "Utrecht", Destination: "Amersfoort", Kilometers: dec("17"), TravelCost: dec("4.35")},
	})
}

var _ = Describe("WriteXLSX", func() {
	var (
		data []byte
		err  error
	)

	JustBeforeEach(func() {
		data, err = export.WriteXLSX(sampleReport())
	})

	It("writes one worksheet per sheet with a totals row", func() {
		Expect(err).NotTo(HaveOccurred())

		f, err := excelize.OpenReader(bytes.NewReader(data))
		Expect(err).NotTo(HaveOccurred())
		defer f.Close()

		Expect(f.GetSheetList()).To(Equal([]string{"Bonnen", "Reiskosten"}))

		rows, err := f.GetRows("Bonnen")
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(4))
		Expect(rows[0][0]).To(Equal("Datum"))
		Expect(rows[1][1]).To(Equal("Gamma"))
		Expect(rows[3][0]).To(Equal("Totaal"))

		total, err := f.GetCellValue("Bonnen", "E4", excelize.Options{RawCellValue: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(total).To(Equal("40.49"))

		reimbursement, err := f.GetCellValue("Reiskosten", "G3", excelize.Options{RawCellValue: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(reimbursement).To(Equal("8.26"))
	})
})

var _ = Describe("WritePDF", func() {
	It("produces a PDF document", func() {
		data, err := export.WritePDF(sampleReport())
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data[:5])).To(Equal("%PDF-"))
	})

	It("paginates long months", func() {
		var entries []export.Entry
		for i := 0; i < 120; i++ {
			entries = append(entries, export.Entry{ID: "r", Kind: export.KindReceipt, Date: day(1 + i%28), Label: "Jumbo", Amount: dec("1.00")})
		}
		report := export.Compute(export.Period{Year: 2026, Month: time.February}, "", entries)

		data, err := export.WritePDF(report)
		Expect(err).NotTo(HaveOccurred())
		pages := bytes.Count(data, []byte("/Type /Page")) - bytes.Count(data, []byte("/Type /Pages"))
		Expect(pages).To(BeNumerically(">", 2))
	})
})

var _ = Describe("WriteZIP", func() {
	It("stores every file and renames duplicates", func() {
		data, err := export.WriteZIP([]export.Attachment{
			{Name: "a.txt", Data: []byte("one")},
			{Name: "a.txt", Data: []byte("two")},
		})
		Expect(err).NotTo(HaveOccurred())

		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		Expect(err).NotTo(HaveOccurred())
		Expect(zr.File).To(HaveLen(2))
		Expect(zr.File[0].Name).To(Equal("a.txt"))
		Expect(zr.File[1].Name).To(Equal("a-2.txt"))

		rc, err := zr.File[1].Open()
		Expect(err).NotTo(HaveOccurred())
		defer rc.Close()
		content, _ := io.ReadAll(rc)
		Expect(string(content)).To(Equal("two"))
	})

	It("never reuses a name that is already in the archive", func() {
		data, err := export.WriteZIP([]export.Attachment{
			{Name: "a.jpg", Data: []byte("one")},
			{Name: "a.jpg", Data: []byte("two")},
			{Name: "a-2.jpg", Data: []byte("three")},
		})
		Expect(err).NotTo(HaveOccurred())

		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		Expect(err).NotTo(HaveOccurred())
		var names []string
		for _, f := range zr.File {
			names = append(names, f.Name)
		}
		Expect(names).To(Equal([]string{"a.jpg", "a-2.jpg", "a-2-2.jpg"}))
	})
})

var _ = Describe("AttachmentName", func() {
	It("combines date, store slug and short id", func() {
		name := export.AttachmentName(day(3), "Albert Heijn", "1a2b3c4d-5e6f", ".jpg")
		Expect(name).To(Equal("bonnen/2026-02-03_albert-heijn_1a2b3c4d.jpg"))
	})

	It("falls back for empty store names and extensions", func() {
		name := export.AttachmentName(day(3), "  ", "abc", "")
		Expect(name).To(Equal("bonnen/2026-02-03_onbekend_abc.bin"))
	})
})

var _ = Describe("BuildBundle", func() {
	It("archives both documents and the originals", func() {
		bundle, err := export.BuildBundle(sampleReport(), []export.Attachment{
			{Name: "bonnen/2026-02-03_albert-heijn_r1.jpg", Data: []byte{0xff, 0xd8}},
		})
		Expect(err).NotTo(HaveOccurred())

		zr, err := zip.NewReader(bytes.NewReader(bundle.ZIP), int64(len(bundle.ZIP)))
		Expect(err).NotTo(HaveOccurred())
		var names []string
		for _, f := range zr.File {
			names = append(names, f.Name)
		}
		Expect(names).To(Equal([]string{
			"declaratie-2026-02.xlsx",
			"declaratie-2026-02.pdf",
			"bonnen/2026-02-03_albert-heijn_r1.jpg",
		}))

		attachments := bundle.Attachments()
		Expect(attachments).To(HaveLen(3))
		Expect(attachments[2].Name).To(Equal("declaratie-2026-02.zip"))
	})
})
