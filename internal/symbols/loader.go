package symbols

import (
	"errors"
	"fmt"
	"strings"

	"fvgtrader/pkg/model"
)

// Normalize upper-cases a symbol and maps bare roots to the continuous
// contract, e.g. "nq" -> "NQ=F"
func Normalize(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" {
		return s
	}
	if _, ok := known[s+"=F"]; ok {
		return s + "=F"
	}
	return s
}

// Lookup returns the contract details for a symbol. Unknown symbols get no tick size.
func Lookup(symbol string) (model.Instrument, bool) {
	s := Normalize(symbol)
	inst, ok := known[s]
	if !ok {
		return model.Instrument{Symbol: s, Name: s}, false
	}
	return inst, true
}

// Resolve expands universe names and symbols into instruments, keeping the
// first occurrence of duplicates
func Resolve(args []string) ([]model.Instrument, error) {
	var (
		out  []model.Instrument
		seen = make(map[string]bool)
		errs []error
	)

	add := func(sym string) {
		inst, _ := Lookup(sym)
		if !isValidSymbol(inst.Symbol) {
			errs = append(errs, fmt.Errorf("invalid symbol %q", sym))
			return
		}
		if seen[inst.Symbol] {
			return
		}
		seen[inst.Symbol] = true
		out = append(out, inst)
	}

	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if u := GetUniverse(Universe(strings.ToLower(part))); u != nil {
				for _, sym := range u {
					add(sym)
				}
				continue
			}
			add(part)
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if len(out) == 0 {
		return nil, errors.New("no symbols given")
	}
	return out, nil
}

// isValidSymbol accepts tickers like NQ=F, ^GSPC or BRK.B
func isValidSymbol(symbol string) bool {
	if len(symbol) == 0 || len(symbol) > 10 {
		return false
	}
	for i, c := range symbol {
		switch {
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '=' || c == '.' || c == '-':
			if i == 0 {
				return false
			}
		case c == '^':
			if i != 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
