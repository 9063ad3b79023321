// Package importer reads bank export files (CSV and OFX/QFX) into
// transactions the rule engine can run over.
package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lukewarren/ledgerflow/internal/common"
	"github.com/lukewarren/ledgerflow/internal/model"
)

// CSVImporter parses bank CSV exports. Columns are located by header
// name, so exports with reordered or extra columns still import.
type CSVImporter struct {
	accountID string
}

// NewCSVImporter creates an importer that assigns transactions to the
// given account.
func NewCSVImporter(accountID string) *CSVImporter {
	return &CSVImporter{accountID: accountID}
}

// Header aliases accepted for each transaction field, lowercased.
var csvHeaderAliases = map[string][]string{
	"date":         {"date", "booking date", "transaction date"},
	"amount":       {"amount", "value", "transaction amount"},
	"description":  {"description", "details", "reference", "subject"},
	"counterparty": {"counterparty", "payee", "merchant", "name", "counterparty name"},
	"iban":         {"iban", "account iban", "counterparty iban"},
	"notes":        {"notes", "memo"},
	"category":     {"category"},
}

var csvDateFormats = []string{
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
	"01/02/2006",
	"2006-01-02 15:04:05",
}

// ParseFile reads a CSV export and returns transactions. Rows that
// cannot be parsed are skipped with a warning rather than failing the
// whole file.
func (p *CSVImporter) ParseFile(ctx context.Context, reader io.Reader) ([]model.Transaction, error) {
	r := csv.NewReader(reader)
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns := mapColumns(header)
	if _, ok := columns["date"]; !ok {
		return nil, fmt.Errorf("%w: no date column found", common.ErrUnsupportedFormat)
	}
	if _, ok := columns["amount"]; !ok {
		return nil, fmt.Errorf("%w: no amount column found", common.ErrUnsupportedFormat)
	}

	var transactions []model.Transaction
	line := 1
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		record, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			slog.Warn("skipping malformed CSV row", "line", line, "error", err)
			continue
		}

		txn, err := p.convertRecord(record, columns)
		if err != nil {
			slog.Warn("skipping unparseable CSV row", "line", line, "error", err)
			continue
		}
		transactions = append(transactions, txn)
	}

	if len(transactions) == 0 {
		return nil, common.ErrNoTransactions
	}

	slog.Info("parsed CSV file", "transactions", len(transactions))
	return transactions, nil
}

func (p *CSVImporter) convertRecord(record []string, columns map[string]int) (model.Transaction, error) {
	field := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	date, err := parseCSVDate(field("date"))
	if err != nil {
		return model.Transaction{}, err
	}

	amount, err := decimal.NewFromString(normalizeAmount(field("amount")))
	if err != nil {
		return model.Transaction{}, fmt.Errorf("invalid amount %q: %w", field("amount"), err)
	}

	txn := model.Transaction{
		ID:           uuid.NewString(),
		Date:         date,
		Description:  field("description"),
		Counterparty: field("counterparty"),
		AccountID:    p.accountID,
		AccountIBAN:  field("iban"),
		AutoCategory: field("category"),
		Notes:        field("notes"),
		Amount:       amount,
		Type:         typeFromAmount(amount),
	}
	txn.Hash = txn.GenerateHash()
	return txn, nil
}

func mapColumns(header []string) map[string]int {
	columns := make(map[string]int)
	for i, cell := range header {
		name := strings.ToLower(strings.TrimSpace(cell))
		for canonical, aliases := range csvHeaderAliases {
			if _, seen := columns[canonical]; seen {
				continue
			}
			for _, alias := range aliases {
				if name == alias {
					columns[canonical] = i
					break
				}
			}
		}
	}
	return columns
}

func parseCSVDate(s string) (time.Time, error) {
	for _, format := range csvDateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// normalizeAmount strips thousands separators and converts the
// European decimal comma.
func normalizeAmount(s string) string {
	s = strings.ReplaceAll(s, " ", "")
	if strings.Contains(s, ",") && strings.Contains(s, ".") {
		// "1.234,56" vs "1,234.56": the last separator is the decimal one
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	} else {
		s = strings.Replace(s, ",", ".", 1)
	}
	return s
}

func typeFromAmount(amount decimal.Decimal) model.TransactionType {
	switch amount.Sign() {
	case 1:
		return model.TypeIncome
	case -1:
		return model.TypeExpense
	default:
		return model.TypeUnknown
	}
}
