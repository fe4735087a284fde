package utils

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"cryptoJournal/internal/app"
	"cryptoJournal/internal/domain"
)

// TradeColumns is the header of an importable trade file. "note" may follow.
var TradeColumns = []string{"executed_at", "symbol", "kind", "side", "quantity", "price_usd", "fee_usd"}

// LedgerColumns is the header written by WriteLedgerCSV.
var LedgerColumns = []string{
	"executed_at", "trade_id", "side", "quantity", "price_usd", "total_usd", "fee_usd",
	"gain_loss_usd", "gain_loss_pct", "qty_held_after", "avg_price_after_usd",
}

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// RowError reports a malformed line of a trade file.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// ReadTradesFromCSV parses a trade file. Columns are matched by header name,
// so their order is free. Rows are returned in file order; semantic checks
// are left to the journal service.
func ReadTradesFromCSV(r io.Reader) ([]app.TradeInput, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty trade file")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, col := range TradeColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}
	noteIdx, hasNote := index["note"]

	var inputs []app.TradeInput
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read trades: %w", err)
		}
		line, _ := reader.FieldPos(0)
		if isBlank(record) {
			continue
		}

		field := func(col string) string {
			i := index[col]
			if i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		in := app.TradeInput{
			Symbol: field("symbol"),
			Kind:   field("kind"),
			Side:   field("side"),
		}
		if in.ExecutedAt, err = parseTime(field("executed_at")); err != nil {
			return nil, &RowError{Line: line, Err: err}
		}
		if in.Quantity, err = parseNumber("quantity", field("quantity")); err != nil {
			return nil, &RowError{Line: line, Err: err}
		}
		if in.PriceUSD, err = parseNumber("price_usd", field("price_usd")); err != nil {
			return nil, &RowError{Line: line, Err: err}
		}
		if fee := field("fee_usd"); fee != "" {
			if in.FeeUSD, err = parseNumber("fee_usd", fee); err != nil {
				return nil, &RowError{Line: line, Err: err}
			}
		}
		if hasNote && noteIdx < len(record) {
			in.Note = strings.TrimSpace(record[noteIdx])
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

// ReadTradesFromCSVFile opens filename and parses it with ReadTradesFromCSV.
func ReadTradesFromCSVFile(filename string) ([]app.TradeInput, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadTradesFromCSV(file)
}

// WriteLedgerCSV writes annotated ledger rows. Buy rows leave the gain
// columns empty.
func WriteLedgerCSV(w io.Writer, rows []domain.LedgerRow) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(LedgerColumns); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write([]string{
			row.ExecutedAt.UTC().Format(time.RFC3339),
			row.TradeID,
			string(row.Side),
			formatFloat(row.Quantity),
			formatFloat(row.PriceUSD),
			formatFloat(row.TotalUSD),
			formatFloat(row.FeeUSD),
			formatOptional(row.GainLossUSD),
			formatOptional(row.GainLossPct),
			formatFloat(row.QuantityAfter),
			formatFloat(row.AvgPriceAfterUSD),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteLedgerCSVFile creates filename and writes rows to it.
func WriteLedgerCSVFile(rows []domain.LedgerRow, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteLedgerCSV(file, rows)
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errors.New("executed_at is empty")
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("executed_at %q is not RFC3339 or YYYY-MM-DD[ HH:MM:SS]", raw)
}

func parseNumber(col, raw string) (float64, error) {
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", col, raw)
	}
	return value, nil
}

func formatFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}

func formatOptional(x *float64) string {
	if x == nil {
		return ""
	}
	return formatFloat(*x)
}

func isBlank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
