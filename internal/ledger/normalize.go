package ledger

import (
	"sort"

	"cryptoJournal/internal/domain"
)

// Normalize turns raw trade rows into the ordered spot events of one symbol.
// CASH rows, futures rows, rows of other symbols and rows whose quantity or
// price is not a positive finite number are dropped without error. Events are
// sorted by execution time; equal timestamps keep their input order.
func Normalize(trades []domain.Trade, symbol string) []domain.SpotEvent {
	symbol = domain.NormalizeSymbol(symbol)
	events := make([]domain.SpotEvent, 0, len(trades))
	for _, t := range trades {
		ev, ok := toEvent(t)
		if !ok || ev.Symbol != symbol {
			continue
		}
		events = append(events, ev)
	}
	sortEvents(events)
	return events
}

// GroupBySymbol normalizes every spot row and buckets the events per symbol.
// The returned symbol list is sorted alphabetically.
func GroupBySymbol(trades []domain.Trade) ([]string, map[string][]domain.SpotEvent) {
	groups := make(map[string][]domain.SpotEvent)
	for _, t := range trades {
		ev, ok := toEvent(t)
		if !ok {
			continue
		}
		groups[ev.Symbol] = append(groups[ev.Symbol], ev)
	}
	symbols := make([]string, 0, len(groups))
	for sym, evs := range groups {
		sortEvents(evs)
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols, groups
}

func toEvent(t domain.Trade) (domain.SpotEvent, bool) {
	ev, ok := t.Spot()
	if !ok {
		return domain.SpotEvent{}, false
	}
	if ev.Symbol == "" || ev.Symbol == domain.CashSymbol {
		return domain.SpotEvent{}, false
	}
	if !IsPositiveFinite(ev.Quantity) || !IsPositiveFinite(ev.PriceUSD) {
		return domain.SpotEvent{}, false
	}
	if ev.FeeUSD < 0 {
		ev.FeeUSD = 0
	}
	ev.FeeUSD = ToFiniteOrZero(ev.FeeUSD)
	return ev, true
}

func sortEvents(events []domain.SpotEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].ExecutedAt.Before(events[j].ExecutedAt)
	})
}
