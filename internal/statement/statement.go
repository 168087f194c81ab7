// Package statement imports bank statement PDFs into the transaction ledger.
package statement

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"github.com/rodpglo1956/GloJohnStocky/internal/storage"
)

// Entry is one parsed statement line.
type Entry struct {
	Date        time.Time
	AmountCents int64
	Description string
}

// Parse extracts transaction entries from a statement PDF.
func Parse(data []byte) ([]Entry, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}

	var text strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extracting page %d: %w", i, err)
		}
		text.WriteString(content)
		text.WriteByte('\n')
	}

	entries := ParseText(text.String())
	if len(entries) == 0 {
		return nil, fmt.Errorf("no transactions found in statement")
	}
	return entries, nil
}

// Statement lines open with a date and close with a signed decimal amount,
// with the description in between. Both common date orders are accepted.
var (
	linePattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}|\d{2}/\d{2}/\d{4})\s+(.+?)\s+(-?[\d,]+\.\d{2})$`)
)

// ParseText parses statement text line by line. Lines that do not look like
// transactions are skipped.
func ParseText(text string) []Entry {
	var entries []Entry
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		m := linePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		date, err := parseDate(m[1])
		if err != nil {
			continue
		}
		amount, err := strconv.ParseFloat(strings.ReplaceAll(m[3], ",", ""), 64)
		if err != nil {
			continue
		}

		entries = append(entries, Entry{
			Date:        date,
			AmountCents: toCents(amount),
			Description: strings.TrimSpace(m[2]),
		})
	}
	return entries
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse("01/02/2006", s)
}

func toCents(amount float64) int64 {
	if amount < 0 {
		return -int64(-amount*100 + 0.5)
	}
	return int64(amount*100 + 0.5)
}

// Import writes parsed entries into the ledger under the "statement" category
// and returns how many were stored.
func Import(store *storage.Store, bot string, chatID int64, entries []Entry) (int, error) {
	for i, e := range entries {
		t := storage.Transaction{
			ID:          uuid.NewString(),
			Bot:         bot,
			ChatID:      chatID,
			AmountCents: e.AmountCents,
			Category:    "statement",
			Note:        e.Description,
			OccurredAt:  e.Date,
			CreatedAt:   time.Now(),
		}
		if err := store.AddTransaction(t); err != nil {
			return i, fmt.Errorf("storing entry %d: %w", i+1, err)
		}
	}
	return len(entries), nil
}
