package scanning

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Ollama", func() {
	var (
		server  *ghttp.Server
		scanner *Ollama
		data    *ReceiptData
		err     error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		scanner, err = NewOllama(server.URL()+"/", "llava", 100)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		data, err = scanner.ScanReceipt(context.Background(), pngOf(300, 300), "image/png")
	})

	When("the model answers with JSON", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
				ghttp.VerifyContentType("application/json"),
				func(w http.ResponseWriter, r *http.Request) {
					var req ollamaChatRequest
					body, _ := io.ReadAll(r.Body)
					Expect(json.Unmarshal(body, &req)).To(Succeed())
					Expect(req.Model).To(Equal("llava"))
					Expect(req.Messages).To(HaveLen(2))
					Expect(req.Messages[1].Images).To(HaveLen(1))
				},
				ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
					Message: ollamaMessage{Role: "assistant", Content: `{"store_name": "Gamma", "date": "2026-02-10", "amount": 27.99}`},
					Done:    true,
				}),
			))
		})

		It("returns the receipt fields", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(data.StoreName).To(Equal("Gamma"))
			Expect(data.Date).To(Equal("2026-02-10"))
			Expect(data.Amount.StringFixed(2)).To(Equal("27.99"))
		})
	})

	When("the API fails", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "model not loaded"))
		})

		It("returns an error with the status", func() {
			Expect(err).To(MatchError(ContainSubstring("status 500")))
		})
	})
})

var _ = Describe("HTTPOCR", func() {
	var (
		server  *ghttp.Server
		scanner *HTTPOCR
		data    *ReceiptData
		err     error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		scanner, err = NewHTTPOCR(server.URL()+"/ocr", "secret", 0)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		data, err = scanner.ScanReceipt(context.Background(), pngOf(20, 20), "image/png")
	})

	When("the endpoint returns raw text", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/ocr"),
				ghttp.VerifyHeaderKV("Authorization", "Bearer secret"),
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]string{
					"text": "Albert Heijn\nTOTAAL 12,50\nBTW 9% 1,03\n6 mrt 2026",
				}),
			))
		})

		It("parses the text", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(data.StoreName).To(Equal("Albert Heijn"))
			Expect(data.Amount.StringFixed(2)).To(Equal("12.50"))
			Expect(data.VATAmount.StringFixed(2)).To(Equal("1.03"))
			Expect(data.Date).To(Equal("2026-03-06"))
		})
	})

	When("the endpoint rejects the request", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusUnauthorized, "bad key"))
		})

		It("returns an error", func() {
			Expect(err).To(MatchError(ContainSubstring("status 401")))
		})
	})
})

var _ = Describe("NewHTTPOCR", func() {
	It("requires a url", func() {
		_, err := NewHTTPOCR("", "", 0)
		Expect(err).To(HaveOccurred())
	})
})
