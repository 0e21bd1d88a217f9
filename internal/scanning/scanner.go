// Package scanning sends receipt images to an OCR backend and turns the
// answer into receipt fields.
package scanning

import (
	"context"

	"github.com/shopspring/decimal"
)

// ReceiptData contains the fields recovered from one receipt. Empty strings
// and zero amounts mean the backend found nothing.
type ReceiptData struct {
	StoreName string          `json:"store_name"`
	Date      string          `json:"date"` // YYYY-MM-DD
	Amount    decimal.Decimal `json:"amount"`
	VATAmount decimal.Decimal `json:"vat_amount"`
	RawText   string          `json:"raw_text,omitempty"`
}

// Scanner defines the interface for receipt scanning operations
type Scanner interface {
	// ScanReceipt analyzes a receipt image/PDF and extracts its fields
	ScanReceipt(ctx context.Context, imageData []byte, contentType string) (*ReceiptData, error)
	// Close releases the backend client
	Close() error
}

// receiptScanPrompt is shared by the LLM backends.
const receiptScanPrompt = `Je krijgt een foto of scan van een Nederlandse kassabon of factuur. Lees alle tekst en haal de volgende gegevens eruit:

1. store_name: de naam van de winkel of het bedrijf, meestal bovenaan de bon (bijvoorbeeld "Albert Heijn", "Jumbo", "HEMA").
2. date: de aankoopdatum in het formaat YYYY-MM-DD. Nederlandse bonnen gebruiken meestal DD-MM-JJJJ.
3. amount: het totaalbedrag dat betaald is (TOTAAL, TE BETALEN, PIN), als getal met een punt als decimaalteken.
4. vat_amount: het totale BTW-bedrag als getal, of null als er geen BTW op de bon staat.
5. raw_text: de volledige tekst van de bon, regel voor regel.

Geef ALLEEN geldige JSON terug in exact dit formaat:
{
  "store_name": "Winkelnaam",
  "date": "YYYY-MM-DD",
  "amount": 0.00,
  "vat_amount": 0.00,
  "raw_text": "..."
}

Gebruik null voor velden die je niet kunt vinden. Geen tekst voor of na de JSON en geen markdown.`
