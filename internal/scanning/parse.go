package scanning

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/bonnetjes/internal/money"
	"github.com/zombor/bonnetjes/internal/receipttext"
)

// structuredReceipt is the JSON shape the backends are asked for.
type structuredReceipt struct {
	StoreName *string        `json:"store_name"`
	Date      *string        `json:"date"`
	Amount    *money.Lenient `json:"amount"`
	VATAmount *money.Lenient `json:"vat_amount"`
	RawText   *string        `json:"raw_text"`
	Text      *string        `json:"text"`
}

// interpretResponse turns a backend answer into receipt fields. A JSON object
// is read as structured fields; anything else is treated as raw OCR text.
// Fields the structured answer lacks are filled from its raw text.
func interpretResponse(text string) *ReceiptData {
	if data, ok := parseReceiptJSON(text); ok {
		if data.RawText != "" {
			fillFromText(data, receipttext.Parse(data.RawText))
		}
		return data
	}

	data := &ReceiptData{RawText: strings.TrimSpace(text), Amount: decimal.Zero, VATAmount: decimal.Zero}
	fillFromText(data, receipttext.Parse(text))
	return data
}

// parseReceiptJSON extracts the first JSON object from a backend answer
func parseReceiptJSON(text string) (*ReceiptData, bool) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end < start {
		return nil, false
	}

	var s structuredReceipt
	if err := json.Unmarshal([]byte(text[start:end+1]), &s); err != nil {
		return nil, false
	}

	data := &ReceiptData{Amount: decimal.Zero, VATAmount: decimal.Zero}
	if s.StoreName != nil {
		data.StoreName = strings.TrimSpace(*s.StoreName)
	}
	if s.Date != nil {
		data.Date = normalizeDate(*s.Date)
	}
	if s.Amount != nil {
		data.Amount = money.Round2(s.Amount.Decimal())
	}
	if s.VATAmount != nil {
		data.VATAmount = money.Round2(s.VATAmount.Decimal())
	}
	switch {
	case s.RawText != nil:
		data.RawText = strings.TrimSpace(*s.RawText)
	case s.Text != nil:
		data.RawText = strings.TrimSpace(*s.Text)
	}
	return data, true
}

// normalizeDate accepts ISO dates and anything the receipt text parser can
// read. Unreadable dates become empty.
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if d, err := time.Parse("2006-01-02", s); err == nil {
		return d.Format("2006-01-02")
	}
	if d, err := time.Parse("2006/01/02", s); err == nil {
		return d.Format("2006-01-02")
	}
	if parsed := receipttext.Parse(s).Date; parsed != nil {
		return *parsed
	}
	return ""
}

func fillFromText(data *ReceiptData, parsed receipttext.ParsedReceipt) {
	if data.StoreName == "" && parsed.StoreName != nil {
		data.StoreName = *parsed.StoreName
	}
	if data.Date == "" && parsed.Date != nil {
		data.Date = *parsed.Date
	}
	if data.Amount.IsZero() && parsed.Amount != nil {
		data.Amount = money.FromFloat(*parsed.Amount)
	}
	if data.VATAmount.IsZero() && parsed.VATAmount != nil {
		data.VATAmount = money.FromFloat(*parsed.VATAmount)
	}
}
