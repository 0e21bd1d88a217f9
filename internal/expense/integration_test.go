package expense_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
	"github.com/shopspring/decimal"

	"github.com/zombor/bonnetjes/internal/expense"
	"github.com/zombor/bonnetjes/internal/mailer"
	"github.com/zombor/bonnetjes/internal/scanning"
)

type stubScanner struct {
	data *scanning.ReceiptData
}

func (s *stubScanner) ScanReceipt(ctx context.Context, imageData []byte, contentType string) (*scanning.ReceiptData, error) {
	return s.data, nil
}

func (s *stubScanner) Close() error {
	return nil
}

type outbox struct {
	mailer.Discard
	sent []mailer.Message
}

func (o *outbox) Send(ctx context.Context, msg mailer.Message) error {
	o.sent = append(o.sent, msg)
	return nil
}

var _ = Describe("Integration", func() {
	var (
		db       *expense.BoltDB
		store    *expense.LocalStorage
		mail     *outbox
		server   *expense.Server
		ghServer *ghttp.Server
	)

	BeforeEach(func() {
		tempDir := GinkgoT().TempDir()

		var err error
		db, err = expense.NewBoltDB(filepath.Join(tempDir, "test.db"))
		Expect(err).NotTo(HaveOccurred())

		store, err = expense.NewLocalStorage(filepath.Join(tempDir, "bonnen"))
		Expect(err).NotTo(HaveOccurred())

		scanner := &stubScanner{
			data: &scanning.ReceiptData{
				StoreName: "Albert Heijn",
				Date:      "2026-02-03",
				Amount:    decimal.RequireFromString("12.50"),
				VATAmount: decimal.RequireFromString("2.17"),
			},
		}
		mail = &outbox{Discard: mailer.Discard{To: "administratie@example.nl"}}

		service := expense.NewService(db, scanner, store, mail)
		service.SetEmployee("J. de Vries")
		server = expense.NewServer(service, expense.BasicAuth{})

		ghServer = ghttp.NewServer()
	})

	AfterEach(func() {
		ghServer.Close()
		db.Close()
	})

	postJSON := func(path string, v any) *http.Response {
		body, err := json.Marshal(v)
		Expect(err).NotTo(HaveOccurred())
		resp, err := http.Post(ghServer.URL()+path, "application/json", bytes.NewReader(body))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(resp.Body.Close)
		return resp
	}

	It("scans, saves and submits a month", func() {
		ghServer.AppendHandlers(
			server.ServeHTTP, // scan
			server.ServeHTTP, // save draft
			server.ServeHTTP, // travel entry
			server.ServeHTTP, // submit
		)

		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("file", "bon.pdf")
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write([]byte("%PDF-1.4 fake"))
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())

		resp, err := http.Post(ghServer.URL()+"/api/receipts/scan", writer.FormDataContentType(), body)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var draft expense.Receipt
		Expect(json.NewDecoder(resp.Body).Decode(&draft)).To(Succeed())
		Expect(draft.ContentType).To(Equal("application/pdf"))
		stored, err := store.Get(draft.Filename)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(stored)).To(Equal("%PDF-1.4 fake"))

		saved := postJSON("/api/receipts", map[string]any{
			"id":           draft.ID,
			"filename":     draft.Filename,
			"content_type": draft.ContentType,
			"store_name":   draft.StoreName,
			"date":         "2026-02-03",
			"amount":       "12,50",
			"vat_amount":   "2,17",
			"category":     "Lunch",
		})
		Expect(saved.StatusCode).To(Equal(http.StatusCreated))

		trip := postJSON("/api/travel", map[string]any{
			"date":        "2026-02-05",
			"origin":      "Utrecht",
			"destination": "Amersfoort",
			"kilometers":  "17",
			"travel_cost": "4,35",
		})
		Expect(trip.StatusCode).To(Equal(http.StatusCreated))

		submit := postJSON("/api/batches", map[string]int{"year": 2026, "month": 2})
		Expect(submit.StatusCode).To(Equal(http.StatusCreated))

		var batch expense.SubmissionBatch
		Expect(json.NewDecoder(submit.Body).Decode(&batch)).To(Succeed())
		Expect(batch.TotalAmount.StringFixed(2)).To(Equal("20.76"))
		Expect(batch.Recipient).To(Equal("administratie@example.nl"))

		receipt, err := db.GetReceipt(draft.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(receipt.IsSubmitted).To(BeTrue())
		Expect(receipt.BatchID).To(Equal(batch.ID))

		Expect(mail.sent).To(HaveLen(1))
		archive := mail.sent[0].Attachments[2]
		Expect(archive.Name).To(Equal("declaratie-2026-02.zip"))

		zr, err := zip.NewReader(bytes.NewReader(archive.Data), int64(len(archive.Data)))
		Expect(err).NotTo(HaveOccurred())
		var names []string
		for _, f := range zr.File {
			names = append(names, f.Name)
		}
		Expect(names).To(HaveLen(3))
		Expect(names[0]).To(Equal("declaratie-2026-02.xlsx"))
		Expect(names[1]).To(Equal("declaratie-2026-02.pdf"))
		Expect(names[2]).To(HavePrefix("bonnen/2026-02-03_albert-heijn_"))
		Expect(names[2]).To(HaveSuffix(".pdf"))
	})

	It("keeps submitted records read only", func() {
		ghServer.AppendHandlers(server.ServeHTTP, server.ServeHTTP, server.ServeHTTP)

		trip := postJSON("/api/travel", map[string]any{"date": "2026-03-02", "kilometers": 10})
		Expect(trip.StatusCode).To(Equal(http.StatusCreated))
		var entry expense.TravelEntry
		Expect(json.NewDecoder(trip.Body).Decode(&entry)).To(Succeed())

		Expect(postJSON("/api/batches", map[string]int{"year": 2026, "month": 3}).StatusCode).To(Equal(http.StatusCreated))

		body, err := json.Marshal(map[string]any{"date": "2026-03-02", "kilometers": 99})
		Expect(err).NotTo(HaveOccurred())
		req, err := http.NewRequest(http.MethodPut, ghServer.URL()+"/api/travel/"+entry.ID, bytes.NewReader(body))
		Expect(err).NotTo(HaveOccurred())
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusConflict))

		stored, err := db.GetTravel(entry.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.Kilometers.String()).To(Equal("10"))
	})
})
