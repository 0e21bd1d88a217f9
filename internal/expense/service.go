package expense

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/zombor/bonnetjes/internal/mailer"
	"github.com/zombor/bonnetjes/internal/metrics"
	"github.com/zombor/bonnetjes/internal/money"
	"github.com/zombor/bonnetjes/internal/scanning"
)

// IDGenerator generates unique record IDs
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// Service handles receipt, travel and submission operations
type Service struct {
	db          DB
	scanner     scanning.Scanner
	storage     Storage
	sender      mailer.Sender
	idGenerator IDGenerator
	timeSource  TimeSource
	limiter     *rate.Limiter
	employee    string

	// submitMu serializes SubmitMonth so a month is mailed once
	submitMu sync.Mutex
}

// NewService creates a Service with UUIDs and the system clock
func NewService(db DB, scanner scanning.Scanner, storage Storage, sender mailer.Sender) *Service {
	return NewServiceWithDeps(db, scanner, storage, sender, uuidGenerator{}, systemClock{})
}

// NewServiceWithDeps creates a Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, storage Storage, sender mailer.Sender, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		sender:      sender,
		idGenerator: idGen,
		timeSource:  timeSrc,
		limiter:     rate.NewLimiter(rate.Inf, 1),
	}
}

// SetOCRRate limits OCR calls to perMinute. Zero or less means unlimited.
func (s *Service) SetOCRRate(perMinute int) {
	if perMinute <= 0 {
		s.limiter = rate.NewLimiter(rate.Inf, 1)
		return
	}
	s.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
}

// SetEmployee sets the name printed on exported documents
func (s *Service) SetEmployee(name string) {
	s.employee = name
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	repeatedSpaces      = regexp.MustCompile(`\s+`)
)

// sanitizeFilename strips phone generated file names down to something short
// and safe
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if unsafeFilenameChars.MatchString(strings.TrimPrefix(ext, ".")) {
		ext = ""
	}
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	base = unsafeFilenameChars.ReplaceAllString(base, "")
	base = repeatedSpaces.ReplaceAllString(base, " ")
	base = strings.ReplaceAll(strings.TrimSpace(base), " ", "_")

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "bon"
	}
	return base + ext
}

func today(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate reads a YYYY-MM-DD calendar date
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: %w", s, ErrInvalid)
	}
	return d, nil
}

// ScanReceipt stores the upload and runs OCR on it. It returns an unsaved
// draft; the stored file is removed again when OCR fails.
func (s *Service) ScanReceipt(ctx context.Context, filename string, data []byte, contentType string) (*Receipt, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for ocr slot: %w", err)
	}
	return s.scanDraft(ctx, filename, data, contentType)
}

func (s *Service) scanDraft(ctx context.Context, filename string, data []byte, contentType string) (*Receipt, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty file: %w", ErrInvalid)
	}

	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	start := time.Now()
	scanned, err := s.scanner.ScanReceipt(ctx, data, contentType)
	metrics.OCRDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Scans.WithLabelValues("error").Inc()
		slog.Error("Failed to scan receipt",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		if delErr := s.storage.Delete(savedPath); delErr != nil {
			slog.Warn("Failed to remove file after scan error", "filename", savedPath, "error", delErr)
		}
		return nil, fmt.Errorf("%w: %w", ErrScan, err)
	}
	metrics.Scans.WithLabelValues("ok").Inc()

	draft := &Receipt{
		ID:          id,
		StoreName:   strings.TrimSpace(scanned.StoreName),
		Date:        today(now),
		Amount:      money.Round2(scanned.Amount),
		VATAmount:   money.Round2(scanned.VATAmount),
		Filename:    savedPath,
		ContentType: contentType,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if draft.StoreName == "" {
		draft.StoreName = UnknownStore
	}
	if d, err := ParseDate(scanned.Date); err == nil {
		draft.Date = d
	}
	return draft, nil
}

func validateReceipt(f *ReceiptFields) error {
	f.StoreName = strings.TrimSpace(f.StoreName)
	if f.StoreName == "" {
		f.StoreName = UnknownStore
	}
	if f.Date.IsZero() {
		return fmt.Errorf("date is required: %w", ErrInvalid)
	}
	if f.Amount.IsNegative() || f.VATAmount.IsNegative() {
		return fmt.Errorf("amounts cannot be negative: %w", ErrInvalid)
	}
	f.Amount = money.Round2(f.Amount)
	f.VATAmount = money.Round2(f.VATAmount)
	return nil
}

// CreateReceipt saves a draft or a manually entered receipt
func (s *Service) CreateReceipt(in NewReceipt) (*Receipt, error) {
	if err := validateReceipt(&in.ReceiptFields); err != nil {
		return nil, err
	}

	id := in.ID
	if id == "" {
		id = s.idGenerator.Generate()
	} else if _, err := s.db.GetReceipt(id); err == nil {
		return nil, fmt.Errorf("receipt %s already exists: %w", id, ErrInvalid)
	}
	if in.Filename != "" && !strings.HasPrefix(in.Filename, id+"_") {
		return nil, fmt.Errorf("file does not belong to receipt %s: %w", id, ErrInvalid)
	}

	now := s.timeSource.Now()
	receipt := &Receipt{
		ID:          id,
		Filename:    in.Filename,
		ContentType: in.ContentType,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	receipt.apply(in.ReceiptFields)

	if err := s.db.SaveReceipt(receipt); err != nil {
		return nil, fmt.Errorf("saving receipt to database: %w", err)
	}
	return receipt, nil
}

// GetReceipt retrieves a receipt by ID
func (s *Service) GetReceipt(id string) (*Receipt, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	return receipt, nil
}

// ListReceipts returns the matching receipts, newest first
func (s *Service) ListReceipts(f Filter) ([]*Receipt, error) {
	all, err := s.db.ListReceipts()
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	receipts := make([]*Receipt, 0, len(all))
	for _, r := range all {
		if f.matches(r.Date, r.IsSubmitted) {
			receipts = append(receipts, r)
		}
	}
	sort.SliceStable(receipts, func(i, j int) bool {
		if !receipts[i].Date.Equal(receipts[j].Date) {
			return receipts[i].Date.After(receipts[j].Date)
		}
		return receipts[i].CreatedAt.After(receipts[j].CreatedAt)
	})
	return receipts, nil
}

// UpdateReceipt changes the editable fields of an unsubmitted receipt
func (s *Service) UpdateReceipt(id string, f ReceiptFields) (*Receipt, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	if receipt.IsSubmitted {
		return nil, fmt.Errorf("receipt %s: %w", id, ErrSubmitted)
	}
	if err := validateReceipt(&f); err != nil {
		return nil, err
	}

	receipt.apply(f)
	receipt.UpdatedAt = s.timeSource.Now()
	if err := s.db.SaveReceipt(receipt); err != nil {
		return nil, fmt.Errorf("saving receipt: %w", err)
	}
	return receipt, nil
}

// DeleteReceipt removes a receipt and its file
func (s *Service) DeleteReceipt(id string) error {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return fmt.Errorf("getting receipt for deletion: %w", err)
	}

	if receipt.Filename != "" {
		if err := s.storage.Delete(receipt.Filename); err != nil {
			slog.Warn("Failed to delete file", "filename", receipt.Filename, "error", err)
		}
	}

	if err := s.db.DeleteReceipt(id); err != nil {
		return fmt.Errorf("deleting receipt from database: %w", err)
	}
	return nil
}

// GetReceiptFile retrieves the stored file of a receipt
func (s *Service) GetReceiptFile(id string) ([]byte, string, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt: %w", err)
	}
	if receipt.Filename == "" {
		return nil, "", fmt.Errorf("receipt %s has no file: %w", id, ErrNotFound)
	}

	data, err := s.storage.Get(receipt.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt file: %w", err)
	}
	return data, receipt.ContentType, nil
}

// Upload is one file of a bulk upload
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// UploadResult reports what happened to one file of a bulk upload
type UploadResult struct {
	Filename string   `json:"filename"`
	Receipt  *Receipt `json:"receipt,omitempty"`
	Error    string   `json:"error,omitempty"`
	Skipped  bool     `json:"skipped,omitempty"`
}

// ProcessUploads scans and saves the files one after another. Cancelling ctx
// lets the file in progress finish and skips the rest.
func (s *Service) ProcessUploads(ctx context.Context, uploads []Upload) []UploadResult {
	results := make([]UploadResult, len(uploads))
	for i, u := range uploads {
		results[i].Filename = u.Filename

		if ctx.Err() != nil {
			results[i].Skipped = true
			metrics.Uploads.WithLabelValues("skipped").Inc()
			continue
		}
		if err := s.limiter.Wait(ctx); err != nil {
			results[i].Skipped = true
			metrics.Uploads.WithLabelValues("skipped").Inc()
			continue
		}

		receipt, err := s.processUpload(context.WithoutCancel(ctx), u)
		if err != nil {
			slog.Warn("Bulk upload item failed", "filename", u.Filename, "error", err)
			results[i].Error = err.Error()
			metrics.Uploads.WithLabelValues("failed").Inc()
			continue
		}
		results[i].Receipt = receipt
		metrics.Uploads.WithLabelValues("saved").Inc()
	}
	return results
}

func (s *Service) processUpload(ctx context.Context, u Upload) (*Receipt, error) {
	draft, err := s.scanDraft(ctx, u.Filename, u.Data, u.ContentType)
	if err != nil {
		return nil, err
	}
	receipt, err := s.CreateReceipt(NewReceipt{
		ID:          draft.ID,
		Filename:    draft.Filename,
		ContentType: draft.ContentType,
		ReceiptFields: ReceiptFields{
			StoreName: draft.StoreName,
			Date:      draft.Date,
			Amount:    draft.Amount,
			VATAmount: draft.VATAmount,
		},
	})
	if err != nil {
		if delErr := s.storage.Delete(draft.Filename); delErr != nil {
			slog.Warn("Failed to remove file after save error", "filename", draft.Filename, "error", delErr)
		}
		return nil, err
	}
	return receipt, nil
}

// isNotFound reports whether err means a record is missing
func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
