package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"regexp"
	"strings"
	"time"

	"bank-reconciliation-engine/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"2-Jan-2006",
	"02-Jan-06",
	"2006/01/02",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// parseDate tries the layouts banks commonly export. Day-first wins over
// month-first for ambiguous slashed dates.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.UTC().Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, errors.New("unrecognised date " + s)
}

var amountNoise = strings.NewReplacer(",", "", " ", "", "₹", "", "$", "", "Rs.", "", "Rs", "", "INR", "", "USD", "")

// parseAmount reads "1,234.50", "(1,234.50)", "-1234.5", "1234.50 CR" and
// similar. The suffix, when present, is returned as the direction.
func parseAmount(s string) (decimal.Decimal, models.Direction, error) {
	s = strings.TrimSpace(s)
	var dir models.Direction
	upper := strings.ToUpper(s)
	switch {
	case strings.HasSuffix(upper, "CR"):
		dir, s = models.Credit, s[:len(s)-2]
	case strings.HasSuffix(upper, "DR"):
		dir, s = models.Debit, s[:len(s)-2]
	}
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg, s = true, s[1:len(s)-1]
	}
	s = amountNoise.Replace(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, "", err
	}
	if neg {
		d = d.Neg()
	}
	return d, dir, nil
}

var referencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(UTR[0-9A-Z]{6,})\b`),
	regexp.MustCompile(`(?i)\bUTR\s*(?:NO\.?|NUMBER)?\s*[:\-]?\s*([A-Z0-9]{6,})`),
	regexp.MustCompile(`(?i)\b(?:NEFT|RTGS|IMPS)[/\-]([A-Z0-9]{8,})`),
	regexp.MustCompile(`(?i)\bRef(?:erence)?\s*(?:No\.?)?\s*[:\-]?\s*([A-Z0-9]{5,})`),
	regexp.MustCompile(`(?i)\bTransaction\s*ID\s*[:\-]?\s*([A-Z0-9]{5,})`),
}

// extractReference pulls a UTR or bank reference out of a narration.
func extractReference(narration string) string {
	for _, re := range referencePatterns {
		if m := re.FindStringSubmatch(narration); len(m) > 1 {
			return strings.ToUpper(m[1])
		}
	}
	return ""
}

var counterpartyPattern = regexp.MustCompile(`(?i)\b(?:from|by|received from|paid to|to)\s+([A-Za-z][A-Za-z .&]{2,})`)

// extractCounterparty finds "from ACME TRADERS" style names in a narration.
func extractCounterparty(narration string) string {
	if m := counterpartyPattern.FindStringSubmatch(narration); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func directionFromType(t string) models.Direction {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "cr", "c", "credit", "deposit", "receipt":
		return models.Credit
	case "dr", "d", "debit", "withdrawal", "payment":
		return models.Debit
	}
	return ""
}

// dedupeKey identifies a statement line across re-ingestions. The bank's
// reference is the natural key; lines without one fall back to their
// observable fields.
func dedupeKey(bankAccountID uuid.UUID, txn *models.BankTransaction) string {
	var parts []string
	date := txn.TransactionDate.Format("2006-01-02")
	amount := txn.Amount.StringFixed(2)
	if txn.ReferenceNumber != "" {
		parts = []string{bankAccountID.String(), strings.ToUpper(txn.ReferenceNumber), amount, date}
	} else {
		balance := ""
		if txn.RunningBalance != nil {
			balance = txn.RunningBalance.StringFixed(2)
		}
		parts = []string{
			bankAccountID.String(), date, amount, string(txn.Direction),
			strings.Join(strings.Fields(strings.ToLower(txn.Description)), " "), balance,
		}
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
