package cgd

// amountMode determines how amounts are extracted from a row.
type amountMode int

const (
	// amountSigned is one signed column, negative for debits.
	amountSigned amountMode = iota
	// amountSplit is a debit column and a credit column, both unsigned.
	amountSplit
)

// profile describes the column layout of one CGD export.
type profile struct {
	name      string
	dateCol   string
	descCol   string
	mode      amountMode
	amountCol string
	debitCol  string
	creditCol string
}

func (p profile) columns() []string {
	if p.mode == amountSplit {
		return []string{p.dateCol, p.descCol, p.debitCol, p.creditCol}
	}

	return []string{p.dateCol, p.descCol, p.amountCol}
}

// profiles are tried in order; the card layout goes first because its
// generic "Data" column would otherwise be shadowed.
var profiles = []profile{
	{name: "cartão", dateCol: "Data", descCol: "Descrição", mode: amountSplit, debitCol: "Débito", creditCol: "Crédito"},
	{name: "extrato", dateCol: "Data mov.", descCol: "Descrição", mode: amountSigned, amountCol: "Movimento"},
	{name: "conta", dateCol: "Data mov.", descCol: "Descrição", mode: amountSigned, amountCol: "Montante"},
}

// layout is a profile resolved against a concrete header row.
type layout struct {
	profile *profile
	date    int
	desc    int
	amount  int
	debit   int
	credit  int
}

// match resolves p against header, or reports false when a column is missing.
func (p *profile) match(header []string) (*layout, bool) {
	idx := make(map[string]int, len(header))
	for i, cell := range header {
		idx[normalizeHeader(cell)] = i
	}

	for _, col := range p.columns() {
		if _, ok := idx[col]; !ok {
			return nil, false
		}
	}

	l := &layout{profile: p, date: idx[p.dateCol], desc: idx[p.descCol], amount: -1, debit: -1, credit: -1}

	if p.mode == amountSplit {
		l.debit, l.credit = idx[p.debitCol], idx[p.creditCol]
	} else {
		l.amount = idx[p.amountCol]
	}

	return l, true
}
