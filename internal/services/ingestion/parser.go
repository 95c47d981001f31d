package ingestion

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// RawRow is one statement line as the bank wrote it, before any parsing.
type RawRow struct {
	Line         int    `json:"line"`
	Date         string `json:"date"`
	ValueDate    string `json:"value_date,omitempty"`
	Amount       string `json:"amount,omitempty"`
	Credit       string `json:"credit,omitempty"`
	Debit        string `json:"debit,omitempty"`
	Type         string `json:"type,omitempty"`
	Description  string `json:"description"`
	Reference    string `json:"reference,omitempty"`
	Instrument   string `json:"instrument,omitempty"`
	Counterparty string `json:"counterparty,omitempty"`
	Balance      string `json:"balance,omitempty"`
	Currency     string `json:"currency,omitempty"`
}

// headerAliases maps lowercased, space-collapsed column names seen in bank
// exports to RawRow fields.
var headerAliases = map[string]string{
	"date": "date", "txn date": "date", "transaction date": "date", "tran date": "date",
	"posting date": "date", "booking date": "date",
	"value date": "value_date", "value dt": "value_date",
	"amount": "amount", "txn amount": "amount", "transaction amount": "amount",
	"credit": "credit", "credit amount": "credit", "deposit": "credit", "deposits": "credit",
	"deposit amt": "credit", "cr": "credit",
	"debit": "debit", "debit amount": "debit", "withdrawal": "debit", "withdrawals": "debit",
	"withdrawal amt": "debit", "dr": "debit",
	"type": "type", "cr/dr": "type", "dr/cr": "type", "txn type": "type", "transaction type": "type",
	"description": "description", "particulars": "description", "narration": "description",
	"remarks": "description", "details": "description", "transaction details": "description",
	"utr": "reference", "utr no": "reference", "utr number": "reference", "reference": "reference",
	"reference no": "reference", "ref no": "reference", "ref": "reference", "transaction id": "reference",
	"cheque": "instrument", "cheque no": "instrument", "chq no": "instrument", "chq/ref no": "instrument",
	"instrument no": "instrument",
	"payer": "counterparty", "payee": "counterparty", "payer name": "counterparty",
	"payee name": "counterparty", "counterparty": "counterparty", "beneficiary": "counterparty",
	"balance": "balance", "closing balance": "balance", "running balance": "balance",
	"currency": "currency", "ccy": "currency",
}

func canonicalHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	h = strings.NewReplacer(".", " ", "_", " ", "-", " ").Replace(h)
	h = strings.Join(strings.Fields(h), " ")
	return strings.NewReplacer(" /", "/", "/ ", "/").Replace(h)
}

func (r *RawRow) set(field, value string) {
	value = strings.TrimSpace(value)
	switch field {
	case "date":
		r.Date = value
	case "value_date":
		r.ValueDate = value
	case "amount":
		r.Amount = value
	case "credit":
		r.Credit = value
	case "debit":
		r.Debit = value
	case "type":
		r.Type = value
	case "description":
		if r.Description != "" && value != "" {
			r.Description += " " + value
		} else if value != "" {
			r.Description = value
		}
	case "reference":
		r.Reference = value
	case "instrument":
		r.Instrument = value
	case "counterparty":
		r.Counterparty = value
	case "balance":
		r.Balance = value
	case "currency":
		r.Currency = value
	}
}

// sniffDelimiter picks the most frequent of the usual separators in the
// header line.
func sniffDelimiter(header string) rune {
	best, bestCount := ',', 0
	for _, d := range []rune{',', ';', '\t', '|'} {
		if n := strings.Count(header, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

// ParseCSV reads a bank statement export. The delimiter is sniffed from the
// header and columns are recognised by name; unknown columns are ignored.
func ParseCSV(r io.Reader) ([]RawRow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read statement: %w", err)
	}
	first, _, _ := bufio.NewReader(bytes.NewReader(data)).ReadLine()

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(string(first))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	fields := make([]string, len(header))
	known := 0
	for i, h := range header {
		fields[i] = headerAliases[canonicalHeader(h)]
		if fields[i] != "" {
			known++
		}
	}
	if known == 0 {
		return nil, fmt.Errorf("no recognised columns in header %q", strings.Join(header, ","))
	}

	var rows []RawRow
	lineNum := 1
	for {
		lineNum++
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		if blank(rec) {
			continue
		}
		row := RawRow{Line: lineNum}
		for i, v := range rec {
			if i < len(fields) && fields[i] != "" {
				row.set(fields[i], v)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// ParseJSON accepts an array of objects, or an object with a "transactions"
// array. Keys go through the same aliases as CSV headers.
func ParseJSON(r io.Reader) ([]RawRow, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode statement: %w", err)
	}

	var items []map[string]interface{}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapper struct {
			Transactions []map[string]interface{} `json:"transactions"`
		}
		if err := unmarshalNumbers(trimmed, &wrapper); err != nil {
			return nil, fmt.Errorf("decode statement: %w", err)
		}
		items = wrapper.Transactions
	} else if err := unmarshalNumbers(trimmed, &items); err != nil {
		return nil, fmt.Errorf("decode statement: %w", err)
	}

	rows := make([]RawRow, 0, len(items))
	for i, item := range items {
		row := RawRow{Line: i + 1}
		for k, v := range item {
			field := headerAliases[canonicalHeader(k)]
			if field == "" || v == nil {
				continue
			}
			row.set(field, jsonString(v))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func unmarshalNumbers(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func jsonString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// Parse dispatches on format ("csv" or "json"). Unreadable input is an
// ErrValidation.
func Parse(format string, r io.Reader) ([]RawRow, error) {
	var (
		rows []RawRow
		err  error
	)
	switch strings.ToLower(format) {
	case "csv", "text/csv":
		rows, err = ParseCSV(r)
	case "json", "application/json":
		rows, err = ParseJSON(r)
	default:
		return nil, fmt.Errorf("unsupported feed format %q: %w", format, ErrValidation)
	}
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrValidation)
	}
	return rows, nil
}
