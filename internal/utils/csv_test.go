package utils

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoJournal/internal/domain"
)

func TestReadTradesFromCSV(t *testing.T) {
	input := `executed_at,symbol,kind,side,quantity,price_usd,fee_usd,note
2024-01-01T10:00:00Z,btc,spot,BUY,10,100,0,first fill
2024-01-02 12:30:00,BTC,spot,SELL,5,150,1.5,
2024-01-03,ETH,futures,LONG,2,2000,,

,,,,,,,
`
	inputs, err := ReadTradesFromCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, inputs, 3)

	assert.Equal(t, "btc", inputs[0].Symbol)
	assert.Equal(t, "BUY", inputs[0].Side)
	assert.Equal(t, 10.0, inputs[0].Quantity)
	assert.Equal(t, "first fill", inputs[0].Note)
	assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), inputs[0].ExecutedAt)

	assert.Equal(t, 1.5, inputs[1].FeeUSD)
	assert.Equal(t, time.Date(2024, 1, 2, 12, 30, 0, 0, time.UTC), inputs[1].ExecutedAt)

	assert.Equal(t, "futures", inputs[2].Kind)
	assert.Equal(t, 0.0, inputs[2].FeeUSD)
}

func TestReadTradesFromCSV_ColumnOrderIsFree(t *testing.T) {
	input := "symbol,side,kind,price_usd,quantity,fee_usd,executed_at\nSOL,SELL,spot,20,3,0.1,2024-02-01\n"
	inputs, err := ReadTradesFromCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.Equal(t, "SOL", inputs[0].Symbol)
	assert.Equal(t, 3.0, inputs[0].Quantity)
	assert.Equal(t, 20.0, inputs[0].PriceUSD)
}

func TestReadTradesFromCSV_Errors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantErr  string
		wantLine int
	}{
		{name: "empty", input: "", wantErr: "empty trade file"},
		{name: "missing column", input: "executed_at,symbol,kind,side,quantity,price_usd\n", wantErr: `missing column "fee_usd"`},
		{
			name:     "bad quantity",
			input:    "executed_at,symbol,kind,side,quantity,price_usd,fee_usd\n2024-01-01,BTC,spot,BUY,ten,100,0\n",
			wantErr:  `invalid quantity "ten"`,
			wantLine: 2,
		},
		{
			name:     "bad time",
			input:    "executed_at,symbol,kind,side,quantity,price_usd,fee_usd\n2024-01-01,BTC,spot,BUY,1,100,0\n01/02/2024,BTC,spot,BUY,1,100,0\n",
			wantErr:  "executed_at",
			wantLine: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadTradesFromCSV(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			var rowErr *RowError
			if tt.wantLine > 0 {
				require.True(t, errors.As(err, &rowErr))
				assert.Equal(t, tt.wantLine, rowErr.Line)
			} else {
				assert.False(t, errors.As(err, &rowErr))
			}
		})
	}
}

func TestWriteLedgerCSV(t *testing.T) {
	gain := 250.0
	pct := 50.0
	rows := []domain.LedgerRow{
		{
			TradeID: "t1", Side: domain.Buy, Quantity: 10, PriceUSD: 100, TotalUSD: 1000,
			ExecutedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), QuantityAfter: 10, AvgPriceAfterUSD: 100,
		},
		{
			TradeID: "t2", Side: domain.Sell, Quantity: 5, PriceUSD: 150, TotalUSD: 750,
			GainLossUSD: &gain, GainLossPct: &pct,
			ExecutedAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), QuantityAfter: 5, AvgPriceAfterUSD: 100,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteLedgerCSV(&buf, rows))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(LedgerColumns, ","), lines[0])
	assert.Equal(t, "2024-01-01T00:00:00Z,t1,BUY,10,100,1000,0,,,10,100", lines[1])
	assert.Equal(t, "2024-01-02T00:00:00Z,t2,SELL,5,150,750,0,250,50,5,100", lines[2])
}
