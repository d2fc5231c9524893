package cgd_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/MrJamesThe3rd/tally/internal/importer/cgd"
	"github.com/MrJamesThe3rd/tally/internal/ledger"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func TestParser_Profiles(t *testing.T) {
	type wantRow struct {
		date   time.Time
		source string
		amount string
		typ    ledger.Type
	}

	tests := []struct {
		name string
		csv  string
		want []wantRow
	}{
		{
			name: "Conta",
			csv: `Consultar saldos e movimentos à ordem - 31-01-2026;"=""0000"""
Nome cliente;JOHN DOE
NIF;"=""123"""

Dados da conta
Conta;0000 - EUR - Conta Extracto
Saldo contabilístico;1.000,00 EUR

Data mov.;Data-valor;Descrição;Montante;Saldo contabilístico após movimento
30-01-2026;30-01-2026;INSTITUTO GESTAO FINA;-588,74;48.825,46
09-01-2026;09-01-2026;TFI Wise;8.608,52;52.532,78
`,
			want: []wantRow{
				{date: date(2026, 1, 30), source: "INSTITUTO GESTAO FINA", amount: "588.74", typ: ledger.TypeExpense},
				{date: date(2026, 1, 9), source: "TFI Wise", amount: "8608.52", typ: ledger.TypeIncome},
			},
		},
		{
			name: "Extrato",
			csv: `Consultar extrato - 15-02-2026 : 0000000000000
Nome empresa ;EXAMPLE UNIPESSOAL,LDA
Saldo contabilístico final ;41.393,66

Data mov. ;Data valor ;Origem ;Descrição ;Movimento ;Estorno ;Saldo contabilístico após movimento ;
13-02-2026;13-02-2026;"=""0003""";PAGAMENTO TSU ;-608,13;  ;41.393,66;
04-02-2026;04-02-2026;SIBS ;TFI Wise ;4.324,06;  ;51.302,85;
`,
			want: []wantRow{
				{date: date(2026, 2, 13), source: "PAGAMENTO TSU", amount: "608.13", typ: ledger.TypeExpense},
				{date: date(2026, 2, 4), source: "TFI Wise", amount: "4324.06", typ: ledger.TypeIncome},
			},
		},
		{
			name: "Cartao",
			csv: `Consultar saldos e movimentos de cartões - 15-02-2026
Conta cartão ;4163 **** **** 0000 - EUR - Business Débito

Data ;Data valor ;Descrição ;Débito ;Crédito ;
16-12-2025 ;14-12-2025 ;PA GONDOMAR         GONDOMAR ;64,00 ; ;
31-12-2025 ;29-12-2025 ;REFUND AMAZON ;  ;25,00 ;
 ; ; ; ;Página 1/2 ;
`,
			want: []wantRow{
				{date: date(2025, 12, 16), source: "PA GONDOMAR         GONDOMAR", amount: "64", typ: ledger.TypeExpense},
				{date: date(2025, 12, 31), source: "REFUND AMAZON", amount: "25", typ: ledger.TypeIncome},
			},
		},
		{
			name: "DifferentColumnOrder",
			csv: `Random;MetaData
Montante;Descrição;Data mov.;Ignored
-10,00;TEST_ORDER;30-01-2026;XXX
`,
			want: []wantRow{
				{date: date(2026, 1, 30), source: "TEST_ORDER", amount: "10", typ: ledger.TypeExpense},
			},
		},
		{
			name: "SkipsFootersAndZeroAmounts",
			csv: `Data mov.;Descrição;Montante
30-01-2026;TEST;-10,00
31-01-2026;NOTHING;0,00
Totais;;;;
`,
			want: []wantRow{
				{date: date(2026, 1, 30), source: "TEST", amount: "10", typ: ledger.TypeExpense},
			},
		},
		{
			name: "LargeAmount",
			csv: `Data mov.;Descrição;Montante
30-01-2026;BIG TRANSFER;-1.234.567,89
`,
			want: []wantRow{
				{date: date(2026, 1, 30), source: "BIG TRANSFER", amount: "1234567.89", typ: ledger.TypeExpense},
			},
		},
		{
			name: "HeaderOnly",
			csv:  `Data mov.;Data-valor;Descrição;Montante`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := cgd.NewParser().Parse(strings.NewReader(tt.csv))
			require.NoError(t, err)
			require.Len(t, rows, len(tt.want))

			for i, w := range tt.want {
				assert.Equal(t, w.date, rows[i].Date)
				assert.Equal(t, w.source, rows[i].RawSource)
				assert.Empty(t, rows[i].Source)
				assert.True(t, rows[i].Amount.Equal(decimal.RequireFromString(w.amount)), "amount %s", rows[i].Amount)
				assert.Equal(t, w.typ, rows[i].Type)
			}
		})
	}
}

func TestParser_Latin1Encoding(t *testing.T) {
	utf8CSV := "Data mov.;Descrição;Montante\n30-01-2026;CAFÉ CENTRAL;-10,00\n"

	latin1, err := charmap.Windows1252.NewEncoder().Bytes([]byte(utf8CSV))
	require.NoError(t, err)

	rows, err := cgd.NewParser().Parse(bytes.NewReader(latin1))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, "CAFÉ CENTRAL", rows[0].RawSource)
}

func TestParser_Errors(t *testing.T) {
	tests := []struct {
		name    string
		csv     string
		wantErr string
	}{
		{name: "EmptyFile", csv: "", wantErr: "no matching CGD format"},
		{name: "UnknownHeader", csv: "Date;Description;Amount\n2026-01-30;X;1.00\n", wantErr: "no matching CGD format"},
		{
			name:    "MissingDescription",
			csv:     "Data mov.;Descrição;Montante\n30-01-2026;;-10,00\n",
			wantErr: "line 2: missing description",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cgd.NewParser().Parse(strings.NewReader(tt.csv))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := cgd.NewParser().Parse(strings.NewReader(""))
	assert.ErrorIs(t, err, cgd.ErrUnknownFormat)
}
