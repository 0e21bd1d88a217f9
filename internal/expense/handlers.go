package expense

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/zombor/bonnetjes/internal/money"
	"github.com/zombor/bonnetjes/internal/receipttext"
)

// writeJSON encodes v with the given status
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes a short user facing message as {"error": ...}
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps service errors to a status and a Dutch message
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := http.StatusInternalServerError, "Er ging iets mis, probeer het opnieuw"
	switch {
	case errors.Is(err, ErrNotFound):
		status, message = http.StatusNotFound, "Niet gevonden"
	case errors.Is(err, ErrSubmitted):
		status, message = http.StatusConflict, "Al ingediend, wijzigen is niet meer mogelijk"
	case errors.Is(err, ErrNothingPending):
		status, message = http.StatusConflict, "Er staat niets open voor deze maand"
	case errors.Is(err, ErrInvalid):
		status, message = http.StatusBadRequest, "Ongeldige invoer"
	case errors.Is(err, ErrScan):
		status, message = http.StatusBadGateway, "De bon kon niet worden gelezen, probeer het opnieuw"
	case errors.Is(err, ErrDelivery):
		status, message = http.StatusBadGateway, "Versturen van de e-mail is mislukt, probeer het opnieuw"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status, message = http.StatusServiceUnavailable, "Verzoek afgebroken, probeer het opnieuw"
	}

	if status >= 500 {
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		slog.Info("Request rejected", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeError(w, status, message)
}

// handleIndex serves the HTML interface
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleStaticCSS serves the CSS file
func (s *Server) handleStaticCSS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Write(appCSS)
}

// handleStaticJS serves the JavaScript file
func (s *Server) handleStaticJS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Write(appJS)
}

// contentTypeFor prefers the part's header and falls back to the extension
func contentTypeFor(header *multipart.FileHeader) string {
	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}

func readUpload(header *multipart.FileHeader) (Upload, error) {
	f, err := header.Open()
	if err != nil {
		return Upload{}, fmt.Errorf("opening upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return Upload{}, fmt.Errorf("reading upload: %w", err)
	}
	return Upload{Filename: header.Filename, ContentType: contentTypeFor(header), Data: data}, nil
}

func parseUploadForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Warn("Error parsing multipart form", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Bestand is te groot, maximaal 50MB")
			return false
		}
		writeError(w, http.StatusBadRequest, "Formulier kon niet worden gelezen")
		return false
	}
	return true
}

// handleScanReceipt stores an upload, runs OCR and returns the unsaved draft
func (s *Server) handleScanReceipt(w http.ResponseWriter, r *http.Request) {
	if !parseUploadForm(w, r) {
		return
	}
	_, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Geen bestand gekozen")
		return
	}
	upload, err := readUpload(header)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	draft, err := s.service.ScanReceipt(r.Context(), upload.Filename, upload.Data, upload.ContentType)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

// handleBulkUpload scans and saves several files one after another
func (s *Server) handleBulkUpload(w http.ResponseWriter, r *http.Request) {
	if !parseUploadForm(w, r) {
		return
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "Geen bestanden gekozen")
		return
	}

	uploads := make([]Upload, 0, len(headers))
	for _, h := range headers {
		u, err := readUpload(h)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		uploads = append(uploads, u)
	}

	results := s.service.ProcessUploads(r.Context(), uploads)
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// handleParseText runs the receipt text parser over posted OCR text
func (s *Server) handleParseText(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Ongeldige invoer")
		return
	}
	writeJSON(w, http.StatusOK, receipttext.Parse(req.Text))
}

// receiptRequest is the JSON body for creating and updating receipts.
// Amounts may be numbers or Dutch formatted strings.
type receiptRequest struct {
	ID          string        `json:"id"`
	Filename    string        `json:"filename"`
	ContentType string        `json:"content_type"`
	StoreName   string        `json:"store_name"`
	Category    string        `json:"category"`
	Description string        `json:"description"`
	Date        string        `json:"date"`
	Amount      money.Lenient `json:"amount"`
	VATAmount   money.Lenient `json:"vat_amount"`
}

func (req receiptRequest) fields() (ReceiptFields, error) {
	date, err := ParseDate(req.Date)
	if err != nil {
		return ReceiptFields{}, err
	}
	return ReceiptFields{
		StoreName:   req.StoreName,
		Category:    strings.TrimSpace(req.Category),
		Description: strings.TrimSpace(req.Description),
		Date:        date,
		Amount:      req.Amount.Decimal(),
		VATAmount:   req.VATAmount.Decimal(),
	}, nil
}

func decodeReceipt(r *http.Request) (receiptRequest, ReceiptFields, error) {
	var req receiptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, ReceiptFields{}, fmt.Errorf("decoding receipt: %w: %w", ErrInvalid, err)
	}
	f, err := req.fields()
	return req, f, err
}

// handleCreateReceipt saves a scanned draft or a manual receipt
func (s *Server) handleCreateReceipt(w http.ResponseWriter, r *http.Request) {
	req, fields, err := decodeReceipt(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	receipt, err := s.service.CreateReceipt(NewReceipt{
		ID:            req.ID,
		Filename:      req.Filename,
		ContentType:   req.ContentType,
		ReceiptFields: fields,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

func parseFilter(r *http.Request) (Filter, error) {
	q := r.URL.Query()
	f := Filter{Status: q.Get("status")}
	switch f.Status {
	case "", StatusPending, StatusSubmitted:
	default:
		return f, fmt.Errorf("status %q: %w", f.Status, ErrInvalid)
	}
	for name, dst := range map[string]*int{"year": &f.Year, "month": &f.Month} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, fmt.Errorf("%s %q: %w", name, v, ErrInvalid)
		}
		*dst = n
	}
	return f, nil
}

// handleListReceipts returns receipts matching the query filter
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	receipts, err := s.service.ListReceipts(f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipts)
}

// handleGetReceipt returns a single receipt
func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.service.GetReceipt(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// handleUpdateReceipt edits an unsubmitted receipt
func (s *Server) handleUpdateReceipt(w http.ResponseWriter, r *http.Request) {
	_, fields, err := decodeReceipt(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	receipt, err := s.service.UpdateReceipt(r.PathValue("id"), fields)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// handleDeleteReceipt deletes a receipt and its file
func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteReceipt(r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetReceiptFile returns the stored original of a receipt
func (s *Server) handleGetReceiptFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetReceiptFile(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// travelRequest is the JSON body for travel entries
type travelRequest struct {
	Date        string        `json:"date"`
	Description string        `json:"description"`
	Origin      string        `json:"origin"`
	Destination string        `json:"destination"`
	Kilometers  money.Lenient `json:"kilometers"`
	TravelCost  money.Lenient `json:"travel_cost"`
}

func decodeTravel(r *http.Request) (TravelFields, error) {
	var req travelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return TravelFields{}, fmt.Errorf("decoding travel entry: %w: %w", ErrInvalid, err)
	}
	date, err := ParseDate(req.Date)
	if err != nil {
		return TravelFields{}, err
	}
	return TravelFields{
		Date:        date,
		Description: strings.TrimSpace(req.Description),
		Origin:      strings.TrimSpace(req.Origin),
		Destination: strings.TrimSpace(req.Destination),
		Kilometers:  req.Kilometers.Decimal(),
		TravelCost:  req.TravelCost.Decimal(),
	}, nil
}

func (s *Server) handleCreateTravel(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeTravel(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	entry, err := s.service.CreateTravel(fields)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleListTravel(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	entries, err := s.service.ListTravel(f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetTravel(w http.ResponseWriter, r *http.Request) {
	entry, err := s.service.GetTravel(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleUpdateTravel(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeTravel(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	entry, err := s.service.UpdateTravel(r.PathValue("id"), fields)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleDeleteTravel(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteTravel(r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// yearMonth reads the {year} and {month} path values
func yearMonth(r *http.Request) (int, int, error) {
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		return 0, 0, fmt.Errorf("year: %w", ErrInvalid)
	}
	month, err := strconv.Atoi(r.PathValue("month"))
	if err != nil {
		return 0, 0, fmt.Errorf("month: %w", ErrInvalid)
	}
	return year, month, nil
}

func exportFormat(r *http.Request) string {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		return FormatXLSX
	}
	return format
}

func writeExport(w http.ResponseWriter, file *ExportFile) {
	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Data)))
	w.Write(file.Data)
}

// handleExportMonth downloads the pending records of a month
func (s *Server) handleExportMonth(w http.ResponseWriter, r *http.Request) {
	year, month, err := yearMonth(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	file, err := s.service.ExportMonth(r.Context(), year, month, exportFormat(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeExport(w, file)
}

// handleMonthSummary returns pending and submitted totals for a month
func (s *Server) handleMonthSummary(w http.ResponseWriter, r *http.Request) {
	year, month, err := yearMonth(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	summary, err := s.service.MonthSummary(year, month)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleSubmitMonth mails a month's pending records and records the batch
func (s *Server) handleSubmitMonth(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Year  int `json:"year"`
		Month int `json:"month"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Ongeldige invoer")
		return
	}

	batch, err := s.service.SubmitMonth(r.Context(), req.Year, req.Month)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, batch)
}

// handleListBatches returns all submissions
func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := s.service.ListBatches()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, batches)
}

// handleGetBatch returns a submission with its records
func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	batch, receipts, travel, err := s.service.GetBatchWithRecords(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"batch":    batch,
		"receipts": receipts,
		"travel":   travel,
	})
}

// handleExportBatch downloads the documents of an earlier submission
func (s *Server) handleExportBatch(w http.ResponseWriter, r *http.Request) {
	file, err := s.service.ExportBatch(r.Context(), r.PathValue("id"), exportFormat(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeExport(w, file)
}
