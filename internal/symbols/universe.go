package symbols

import "fvgtrader/pkg/model"

// Universe represents a predefined instrument set
type Universe string

const (
	UniverseIndex Universe = "index" // E-mini equity index futures
	UniverseMicro Universe = "micro" // Micro E-mini equity index futures
	UniverseTest  Universe = "test"  // Small set for testing
)

// GetUniverse returns the list of symbols for a given universe
func GetUniverse(u Universe) []string {
	switch u {
	case UniverseIndex:
		return IndexFutures
	case UniverseMicro:
		return MicroFutures
	case UniverseTest:
		return TestSymbols
	default:
		return nil
	}
}

// TestSymbols is a small set for quick testing
var TestSymbols = []string{"NQ=F"}

// IndexFutures are the E-mini contracts on the four US equity indices
var IndexFutures = []string{"NQ=F", "ES=F", "YM=F", "RTY=F"}

// MicroFutures are the micro-sized versions of IndexFutures
var MicroFutures = []string{"MNQ=F", "MES=F", "MYM=F", "M2K=F"}

// known contract specs, keyed by continuous-contract symbol
var known = map[string]model.Instrument{
	"NQ=F":  {Symbol: "NQ=F", Name: "E-mini Nasdaq-100", Exchange: "CME", TickSize: 0.25},
	"ES=F":  {Symbol: "ES=F", Name: "E-mini S&P 500", Exchange: "CME", TickSize: 0.25},
	"YM=F":  {Symbol: "YM=F", Name: "E-mini Dow", Exchange: "CBOT", TickSize: 1},
	"RTY=F": {Symbol: "RTY=F", Name: "E-mini Russell 2000", Exchange: "CME", TickSize: 0.1},
	"MNQ=F": {Symbol: "MNQ=F", Name: "Micro E-mini Nasdaq-100", Exchange: "CME", TickSize: 0.25},
	"MES=F": {Symbol: "MES=F", Name: "Micro E-mini S&P 500", Exchange: "CME", TickSize: 0.25},
	"MYM=F": {Symbol: "MYM=F", Name: "Micro E-mini Dow", Exchange: "CBOT", TickSize: 1},
	"M2K=F": {Symbol: "M2K=F", Name: "Micro E-mini Russell 2000", Exchange: "CME", TickSize: 0.1},
}
