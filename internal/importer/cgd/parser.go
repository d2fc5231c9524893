// Package cgd parses Caixa Geral de Depósitos CSV exports into ledger import
// rows. The account, statement and card exports are told apart by their
// header row; everything above it is metadata and is skipped.
package cgd

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/tally/internal/importer/charset"
	"github.com/MrJamesThe3rd/tally/internal/ledger"
)

const dateLayout = "02-01-2006"

var ErrUnknownFormat = errors.New("no matching CGD format found: expected columns for conta, extrato, or cartão")

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(r io.Reader) ([]ledger.ImportRow, error) {
	utf8r, err := charset.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("detecting encoding: %w", err)
	}

	reader := csv.NewReader(utf8r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var (
		l    *layout
		rows []ledger.ImportRow
	)

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("reading csv: %w", err)
		}

		if l == nil {
			l = detect(record)
			continue
		}

		row, ok, err := l.parse(record)
		if err != nil {
			line, _ := reader.FieldPos(0)
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		if ok {
			rows = append(rows, row)
		}
	}

	if l == nil {
		return nil, ErrUnknownFormat
	}

	return rows, nil
}

func detect(header []string) *layout {
	for i := range profiles {
		if l, ok := profiles[i].match(header); ok {
			return l
		}
	}

	return nil
}

// parse converts one data record. Records without a parseable date or a
// non-zero amount are footers and page markers, and are skipped.
func (l *layout) parse(record []string) (ledger.ImportRow, bool, error) {
	date, err := time.Parse(dateLayout, cell(record, l.date))
	if err != nil {
		return ledger.ImportRow{}, false, nil
	}

	amount, typ, ok := l.amountOf(record)
	if !ok {
		return ledger.ImportRow{}, false, nil
	}

	desc := cell(record, l.desc)
	if desc == "" {
		return ledger.ImportRow{}, false, errors.New("missing description")
	}

	return ledger.ImportRow{
		Date:      date,
		Type:      typ,
		Amount:    amount,
		RawSource: desc,
	}, true, nil
}

func (l *layout) amountOf(record []string) (decimal.Decimal, ledger.Type, bool) {
	if l.profile.mode == amountSigned {
		d, ok := nonZero(cell(record, l.amount))
		if !ok {
			return decimal.Zero, "", false
		}

		if d.IsNegative() {
			return d.Neg(), ledger.TypeExpense, true
		}

		return d, ledger.TypeIncome, true
	}

	if d, ok := nonZero(cell(record, l.debit)); ok {
		return d.Abs(), ledger.TypeExpense, true
	}

	if d, ok := nonZero(cell(record, l.credit)); ok {
		return d.Abs(), ledger.TypeIncome, true
	}

	return decimal.Zero, "", false
}

func nonZero(s string) (decimal.Decimal, bool) {
	if s == "" {
		return decimal.Zero, false
	}

	d, err := parseAmount(s)
	if err != nil || d.IsZero() {
		return decimal.Zero, false
	}

	return d, true
}

func cell(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}

	return strings.TrimSpace(record[idx])
}

func normalizeHeader(s string) string {
	return strings.TrimSpace(s)
}
