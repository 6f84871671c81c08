package strategy

import (
	"fmt"
	"sort"
	"sync"

	"fvgtrader/internal/calendar"
)

// Variant is a named strategy preset
type Variant struct {
	Name        string
	Description string
	Config      func() Config
}

// registry 전역 레지스트리
var (
	registry     = make(map[string]Variant)
	registryLock sync.RWMutex
)

// Register 변형 등록. 같은 이름은 덮어쓴다.
func Register(v Variant) {
	registryLock.Lock()
	defer registryLock.Unlock()
	registry[v.Name] = v
}

// Get 변형 가져오기
func Get(name string) (Variant, error) {
	registryLock.RLock()
	v, ok := registry[name]
	registryLock.RUnlock()

	if !ok {
		return Variant{}, fmt.Errorf("unknown strategy: %s (available: %v)", name, List())
	}
	return v, nil
}

// MustGet 변형 가져오기 (없으면 panic)
func MustGet(name string) Variant {
	v, err := Get(name)
	if err != nil {
		panic(err)
	}
	return v
}

// List 등록된 변형 목록 (정렬)
func List() []string {
	registryLock.RLock()
	defer registryLock.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every variant ordered by name
func All() []Variant {
	names := List()
	variants := make([]Variant, 0, len(names))
	for _, name := range names {
		if v, err := Get(name); err == nil {
			variants = append(variants, v)
		}
	}
	return variants
}

// init 기본 변형 등록
func init() {
	Register(Variant{
		Name:        "first-fvg",
		Description: "First gap of the day, one 1:1 target, entries 09:30-16:00",
		Config:      DefaultConfig,
	})

	Register(Variant{
		Name:        "morning-cutoff",
		Description: "First gap of the day, one 1:1 target, entries 09:30-11:00",
		Config: func() Config {
			cfg := DefaultConfig()
			cfg.Name = "morning-cutoff"
			cfg.EntryWindow.End = calendar.NewClock(11, 0)
			return cfg
		},
	})

	Register(Variant{
		Name:        "scale-out",
		Description: "Three contracts exiting a third each at 1R, 2R, 3R with stop ratchet",
		Config: func() Config {
			cfg := DefaultConfig()
			cfg.Name = "scale-out"
			cfg.PositionSize = 3
			cfg.RiskRewardLevels = []float64{1, 2, 3}
			cfg.ScaleOutFractions = []float64{1.0 / 3, 1.0 / 3, 1.0 / 3}
			cfg.StopRatchet = true
			return cfg
		},
	})

	Register(Variant{
		Name:        "any-gap",
		Description: "Tries every gap in the window until one confirms",
		Config: func() Config {
			cfg := DefaultConfig()
			cfg.Name = "any-gap"
			cfg.ScanAllGaps = true
			return cfg
		},
	})

	Register(Variant{
		Name:        "aligned",
		Description: "First gap only when its polarity agrees with the bias",
		Config: func() Config {
			cfg := DefaultConfig()
			cfg.Name = "aligned"
			cfg.RequireAlignedGap = true
			return cfg
		},
	})
}
