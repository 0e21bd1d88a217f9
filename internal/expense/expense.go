// Package expense stores receipts and travel entries, runs them through the
// OCR backend and submits a month's worth as one declaration batch.
package expense

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/bonnetjes/internal/export"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrSubmitted is returned when a submitted record would change.
	ErrSubmitted = errors.New("record already submitted")
	// ErrInvalid wraps validation failures.
	ErrInvalid = errors.New("invalid input")
	// ErrNothingPending is returned when a month has no pending records.
	ErrNothingPending = errors.New("nothing pending for this month")
	// ErrScan wraps OCR backend failures.
	ErrScan = errors.New("scanning failed")
	// ErrDelivery wraps mail failures during submission.
	ErrDelivery = errors.New("delivery failed")
)

// UnknownStore is used when neither OCR nor the user supplied a store name.
const UnknownStore = "Onbekend"

// Receipt is a photographed or uploaded receipt
type Receipt struct {
	ID          string          `json:"id"`
	StoreName   string          `json:"store_name"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	VATAmount   decimal.Decimal `json:"vat_amount"`
	Filename    string          `json:"filename"`
	ContentType string          `json:"content_type"`
	IsSubmitted bool            `json:"is_submitted"`
	BatchID     string          `json:"batch_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ReceiptFields are the user editable fields of a receipt
type ReceiptFields struct {
	StoreName   string
	Category    string
	Description string
	Date        time.Time
	Amount      decimal.Decimal
	VATAmount   decimal.Decimal
}

// NewReceipt is a draft being saved. ID, Filename and ContentType come from
// the scan that produced the draft and may be empty for manual entries.
type NewReceipt struct {
	ID          string
	Filename    string
	ContentType string
	ReceiptFields
}

func (r *Receipt) apply(f ReceiptFields) {
	r.StoreName = f.StoreName
	r.Category = f.Category
	r.Description = f.Description
	r.Date = f.Date
	r.Amount = f.Amount
	r.VATAmount = f.VATAmount
}

func (r *Receipt) entry() export.Entry {
	return export.Entry{
		ID:          r.ID,
		Kind:        export.KindReceipt,
		Date:        r.Date,
		Label:       r.StoreName,
		Category:    r.Category,
		Description: r.Description,
		Amount:      r.Amount,
		VAT:         r.VATAmount,
		Submitted:   r.IsSubmitted,
	}
}

// TravelEntry is a trip declared by distance and public transport cost
type TravelEntry struct {
	ID            string          `json:"id"`
	Date          time.Time       `json:"date"`
	Description   string          `json:"description"`
	Origin        string          `json:"origin"`
	Destination   string          `json:"destination"`
	Kilometers    decimal.Decimal `json:"kilometers"`
	TravelCost    decimal.Decimal `json:"travel_cost"`
	Reimbursement decimal.Decimal `json:"reimbursement"`
	IsSubmitted   bool            `json:"is_submitted"`
	BatchID       string          `json:"batch_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TravelFields are the user editable fields of a travel entry
type TravelFields struct {
	Date        time.Time
	Description string
	Origin      string
	Destination string
	Kilometers  decimal.Decimal
	TravelCost  decimal.Decimal
}

func (t *TravelEntry) apply(f TravelFields) {
	t.Date = f.Date
	t.Description = f.Description
	t.Origin = f.Origin
	t.Destination = f.Destination
	t.Kilometers = f.Kilometers
	t.TravelCost = f.TravelCost
	t.Reimbursement = export.Reimbursement(f.Kilometers, f.TravelCost)
}

func (t *TravelEntry) entry() export.Entry {
	return export.Entry{
		ID:          t.ID,
		Kind:        export.KindTravel,
		Date:        t.Date,
		Origin:      t.Origin,
		Destination: t.Destination,
		Description: t.Description,
		Kilometers:  t.Kilometers,
		TravelCost:  t.TravelCost,
		Submitted:   t.IsSubmitted,
	}
}

// BatchStatusSubmitted is the only status a stored batch has.
const BatchStatusSubmitted = "submitted"

// SubmissionBatch records one monthly submission. It is never changed after
// it is written.
type SubmissionBatch struct {
	ID          string          `json:"id"`
	Year        int             `json:"year"`
	Month       int             `json:"month"`
	ReceiptIDs  []string        `json:"receipt_ids"`
	TravelIDs   []string        `json:"travel_ids"`
	Count       int             `json:"count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      string          `json:"status"`
	Recipient   string          `json:"recipient"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Status values for Filter.
const (
	StatusPending   = "pending"
	StatusSubmitted = "submitted"
)

// Filter narrows record listings. Zero values match everything.
type Filter struct {
	Status string
	Year   int
	Month  int
}

func (f Filter) matches(date time.Time, submitted bool) bool {
	switch f.Status {
	case StatusPending:
		if submitted {
			return false
		}
	case StatusSubmitted:
		if !submitted {
			return false
		}
	}
	if f.Year != 0 && date.Year() != f.Year {
		return false
	}
	if f.Month != 0 && int(date.Month()) != f.Month {
		return false
	}
	return true
}
