package expense

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/zombor/bonnetjes/internal/export"
	"github.com/zombor/bonnetjes/internal/mailer"
	"github.com/zombor/bonnetjes/internal/metrics"
	"github.com/zombor/bonnetjes/internal/money"
)

// Export formats.
const (
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
	FormatZIP  = "zip"
)

var contentTypes = map[string]string{
	FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	FormatPDF:  "application/pdf",
	FormatZIP:  "application/zip",
}

// ExportFile is a rendered document ready for download
type ExportFile struct {
	Name        string
	ContentType string
	Data        []byte
}

func period(year, month int) (export.Period, error) {
	p, err := export.NewPeriod(year, month)
	if err != nil {
		return export.Period{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return p, nil
}

func (s *Service) monthRecords(f Filter) ([]*Receipt, []*TravelEntry, error) {
	receipts, err := s.db.ListReceipts()
	if err != nil {
		return nil, nil, fmt.Errorf("listing receipts: %w", err)
	}
	travel, err := s.db.ListTravel()
	if err != nil {
		return nil, nil, fmt.Errorf("listing travel entries: %w", err)
	}

	var rs []*Receipt
	for _, r := range receipts {
		if f.matches(r.Date, r.IsSubmitted) {
			rs = append(rs, r)
		}
	}
	var ts []*TravelEntry
	for _, t := range travel {
		if f.matches(t.Date, t.IsSubmitted) {
			ts = append(ts, t)
		}
	}
	return rs, ts, nil
}

func entries(receipts []*Receipt, travel []*TravelEntry) []export.Entry {
	out := make([]export.Entry, 0, len(receipts)+len(travel))
	for _, r := range receipts {
		out = append(out, r.entry())
	}
	for _, t := range travel {
		out = append(out, t.entry())
	}
	return out
}

// originals collects the stored receipt files for the archive in date order.
// Missing files are logged and left out.
func (s *Service) originals(receipts []*Receipt) []export.Attachment {
	sorted := make([]*Receipt, len(receipts))
	copy(sorted, receipts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	files := make([]export.Attachment, 0, len(sorted))
	for _, r := range sorted {
		if r.Filename == "" {
			continue
		}
		data, err := s.storage.Get(r.Filename)
		if err != nil {
			slog.Warn("Receipt file missing from export", "receipt_id", r.ID, "filename", r.Filename, "error", err)
			continue
		}
		files = append(files, export.Attachment{
			Name: export.AttachmentName(r.Date, r.StoreName, r.ID, filepath.Ext(r.Filename)),
			Data: data,
		})
	}
	return files
}

func (s *Service) render(report export.Report, receipts []*Receipt, format string) (*ExportFile, error) {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatXLSX:
		data, err = export.WriteXLSX(report)
	case FormatPDF:
		data, err = export.WritePDF(report)
	case FormatZIP:
		var bundle export.Bundle
		bundle, err = export.BuildBundle(report, s.originals(receipts))
		data = bundle.ZIP
	default:
		return nil, fmt.Errorf("unknown format %q: %w", format, ErrInvalid)
	}
	if err != nil {
		return nil, fmt.Errorf("rendering %s: %w", format, err)
	}

	metrics.Exports.WithLabelValues(format).Inc()
	return &ExportFile{
		Name:        report.Period.Filename(format),
		ContentType: contentTypes[format],
		Data:        data,
	}, nil
}

// ExportMonth renders the pending records of a month. Nothing is changed.
func (s *Service) ExportMonth(ctx context.Context, year, month int, format string) (*ExportFile, error) {
	p, err := period(year, month)
	if err != nil {
		return nil, err
	}
	receipts, travel, err := s.monthRecords(Filter{Status: StatusPending, Year: year, Month: month})
	if err != nil {
		return nil, err
	}
	return s.render(export.Compute(p, s.employee, entries(receipts, travel)), receipts, format)
}

// ExportBatch renders the records of an earlier submission
func (s *Service) ExportBatch(ctx context.Context, id, format string) (*ExportFile, error) {
	batch, receipts, travel, err := s.GetBatchWithRecords(id)
	if err != nil {
		return nil, err
	}
	p, err := period(batch.Year, batch.Month)
	if err != nil {
		return nil, err
	}
	return s.render(export.Compute(p, s.employee, entries(receipts, travel)), receipts, format)
}

// MonthTotals summarizes one partition of a month
type MonthTotals struct {
	Count    int             `json:"count"`
	Receipts export.Totals   `json:"receipts"`
	Travel   export.Totals   `json:"travel"`
	Total    decimal.Decimal `json:"total"`
}

// MonthSummary shows what is pending and what was submitted in a month
type MonthSummary struct {
	Period    string      `json:"period"`
	Label     string      `json:"label"`
	Pending   MonthTotals `json:"pending"`
	Submitted MonthTotals `json:"submitted"`
}

func monthTotals(p export.Period, items []export.Entry) MonthTotals {
	report := export.Compute(p, "", items)
	return MonthTotals{
		Count:    report.Count(),
		Receipts: report.Receipts.Totals,
		Travel:   report.Travel.Totals,
		Total:    report.GrandTotal,
	}
}

// MonthSummary totals a month's pending and submitted records separately
func (s *Service) MonthSummary(year, month int) (*MonthSummary, error) {
	p, err := period(year, month)
	if err != nil {
		return nil, err
	}
	receipts, travel, err := s.monthRecords(Filter{Year: year, Month: month})
	if err != nil {
		return nil, err
	}

	pending, submitted := export.Partition(entries(receipts, travel), func(e export.Entry) bool { return e.Submitted })
	return &MonthSummary{
		Period:    p.String(),
		Label:     p.Label(),
		Pending:   monthTotals(p, pending),
		Submitted: monthTotals(p, submitted),
	}, nil
}

// SubmitMonth mails the month's pending records and marks them submitted.
// The batch and all flag changes are stored together; when rendering or
// mailing fails nothing is stored. Submissions run one at a time.
func (s *Service) SubmitMonth(ctx context.Context, year, month int) (*SubmissionBatch, error) {
	s.submitMu.Lock()
	defer s.submitMu.Unlock()

	batch, err := s.submitMonth(ctx, year, month)
	if err != nil {
		metrics.Submissions.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.Submissions.WithLabelValues("ok").Inc()
	return batch, nil
}

func (s *Service) submitMonth(ctx context.Context, year, month int) (*SubmissionBatch, error) {
	p, err := period(year, month)
	if err != nil {
		return nil, err
	}
	receipts, travel, err := s.monthRecords(Filter{Status: StatusPending, Year: year, Month: month})
	if err != nil {
		return nil, err
	}
	if len(receipts)+len(travel) == 0 {
		return nil, fmt.Errorf("%s: %w", p, ErrNothingPending)
	}

	report := export.Compute(p, s.employee, entries(receipts, travel))
	bundle, err := export.BuildBundle(report, s.originals(receipts))
	if err != nil {
		return nil, fmt.Errorf("rendering declaration: %w", err)
	}

	msg := mailer.Message{
		Subject: "Declaratie " + p.Label(),
		Body:    declarationBody(report),
	}
	for _, a := range bundle.Attachments() {
		msg.Attachments = append(msg.Attachments, mailer.Attachment{
			Name:        a.Name,
			ContentType: contentTypes[strings.TrimPrefix(filepath.Ext(a.Name), ".")],
			Data:        a.Data,
		})
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDelivery, err)
	}

	batch := &SubmissionBatch{
		ID:          s.idGenerator.Generate(),
		Year:        year,
		Month:       month,
		ReceiptIDs:  make([]string, 0, len(receipts)),
		TravelIDs:   make([]string, 0, len(travel)),
		Count:       report.Count(),
		TotalAmount: report.GrandTotal,
		Status:      BatchStatusSubmitted,
		Recipient:   s.sender.Recipient(),
		CreatedAt:   s.timeSource.Now(),
	}
	for _, e := range report.Receipts.Entries {
		batch.ReceiptIDs = append(batch.ReceiptIDs, e.ID)
	}
	for _, e := range report.Travel.Entries {
		batch.TravelIDs = append(batch.TravelIDs, e.ID)
	}

	if err := s.db.SubmitBatch(batch); err != nil {
		slog.Error("Declaration mailed but batch not stored", "period", p.String(), "error", err)
		return nil, fmt.Errorf("storing batch: %w", err)
	}

	slog.Info("Month submitted", "period", p.String(), "batch_id", batch.ID, "count", batch.Count, "total", batch.TotalAmount.StringFixed(2))
	return batch, nil
}

func declarationBody(r export.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Declaratie %s", r.Period.Label())
	if r.Employee != "" {
		fmt.Fprintf(&b, " van %s", r.Employee)
	}
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Bonnen: %d, totaal %s (waarvan BTW %s)\n",
		len(r.Receipts.Entries), money.FormatEUR(r.Receipts.Totals.Amount), money.FormatEUR(r.Receipts.Totals.VAT))
	fmt.Fprintf(&b, "Reiskosten: %d ritten, %s km, vergoeding %s\n",
		len(r.Travel.Entries), money.Format(r.Travel.Totals.Kilometers), money.FormatEUR(r.Travel.Totals.Amount))
	fmt.Fprintf(&b, "\nTotaal te declareren: %s\n\n", money.FormatEUR(r.GrandTotal))
	b.WriteString("Het overzicht en de bonnen zitten in de bijlagen.\n")
	return b.String()
}

// ListBatches returns all submissions, newest first
func (s *Service) ListBatches() ([]*SubmissionBatch, error) {
	batches, err := s.db.ListBatches()
	if err != nil {
		return nil, fmt.Errorf("listing batches: %w", err)
	}
	sort.SliceStable(batches, func(i, j int) bool {
		return batches[i].CreatedAt.After(batches[j].CreatedAt)
	})
	return batches, nil
}

// GetBatchWithRecords returns a batch with the records it submitted. Records
// deleted since are left out.
func (s *Service) GetBatchWithRecords(id string) (*SubmissionBatch, []*Receipt, []*TravelEntry, error) {
	batch, err := s.db.GetBatch(id)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("getting batch: %w", err)
	}

	receipts := make([]*Receipt, 0, len(batch.ReceiptIDs))
	for _, rid := range batch.ReceiptIDs {
		r, err := s.db.GetReceipt(rid)
		if isNotFound(err) {
			continue
		}
		if err != nil {
			return nil, nil, nil, fmt.Errorf("getting receipt %s: %w", rid, err)
		}
		receipts = append(receipts, r)
	}

	travel := make([]*TravelEntry, 0, len(batch.TravelIDs))
	for _, tid := range batch.TravelIDs {
		t, err := s.db.GetTravel(tid)
		if isNotFound(err) {
			continue
		}
		if err != nil {
			return nil, nil, nil, fmt.Errorf("getting travel entry %s: %w", tid, err)
		}
		travel = append(travel, t)
	}

	return batch, receipts, travel, nil
}
