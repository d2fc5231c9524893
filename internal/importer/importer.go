// Package importer turns bank statement exports into ledger import rows.
package importer

import (
	"errors"
	"io"

	"github.com/MrJamesThe3rd/tally/internal/ledger"
)

type Bank string

const (
	BankCGD Bank = "cgd"
)

var ErrUnknownBank = errors.New("unknown bank")

type Parser interface {
	Parse(r io.Reader) ([]ledger.ImportRow, error)
}
