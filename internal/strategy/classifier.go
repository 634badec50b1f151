// Package strategy classifies leg sets into multi-leg options strategy tags.
//
// Classify is a pure decision table evaluated in a fixed priority order;
// the same leg set always yields the same tag regardless of which caller
// triggered it. Ties at the strike level are resolved by explicit numeric
// comparison, and everything outside the table is StrategyCustom — an
// inspectable, first-class outcome, never an error.
package strategy

import (
	"errors"

	"tradeledger/pkg/contracts/domain"
)

// ErrEmptyLegSet indicates Classify was called with no legs.
var ErrEmptyLegSet = errors.New("empty leg set")

// Classification is the classifier result. Direction is populated only for
// shapes whose long and short variants share the same tag (straddles,
// strangles).
type Classification struct {
	Tag       domain.StrategyTag `json:"tag"`
	Direction domain.Direction   `json:"direction,omitempty"`
}

// Classify returns the strategy tag of a set of legs that share an
// underlying and open date. First match in the table wins.
func Classify(legs []domain.Leg) (Classification, error) {
	if len(legs) == 0 {
		return Classification{}, ErrEmptyLegSet
	}

	var stocks, options []domain.Leg
	for _, l := range legs {
		if l.IsOption {
			options = append(options, l)
		} else {
			stocks = append(stocks, l)
		}
	}

	switch {
	case len(legs) == 1:
		return classifySingle(legs[0]), nil
	case len(legs) == 2 && len(options) == 2:
		return classifyTwoOptions(options), nil
	case len(legs) == 4 && len(options) == 4:
		return classifyFourOptions(options), nil
	case len(legs) == 2 && len(stocks) == 1 && len(options) == 1:
		return classifyStockOption(stocks[0], options[0]), nil
	}

	return Classification{Tag: domain.StrategyCustom}, nil
}

func classifySingle(leg domain.Leg) Classification {
	if !leg.IsOption {
		if leg.Quantity < 0 || leg.Action == domain.ActionSell || leg.Action == domain.ActionSellToOpen {
			return Classification{Tag: domain.StrategyStockShort, Direction: domain.DirectionShort}
		}
		return Classification{Tag: domain.StrategyStockLong, Direction: domain.DirectionLong}
	}

	long := leg.Action == domain.ActionBuyToOpen
	call := leg.OptionType == domain.OptionTypeCall
	switch {
	case long && call:
		return Classification{Tag: domain.StrategySingleLongCall, Direction: domain.DirectionLong}
	case long && !call:
		return Classification{Tag: domain.StrategySingleLongPut, Direction: domain.DirectionLong}
	case !long && call:
		return Classification{Tag: domain.StrategySingleShortCall, Direction: domain.DirectionShort}
	default:
		return Classification{Tag: domain.StrategySingleShortPut, Direction: domain.DirectionShort}
	}
}

func classifyTwoOptions(options []domain.Leg) Classification {
	a, b := options[0], options[1]

	if a.OptionType == b.OptionType {
		return classifyVertical(a, b)
	}

	// One call + one put: same strike is a straddle, different strikes a
	// strangle. Long vs short is a sub-field since both combinations share
	// the same risk shape for classification purposes.
	tag := domain.StrategyStrangle
	if a.Strike.Equal(b.Strike) {
		tag = domain.StrategyStraddle
	}
	var dir domain.Direction
	switch {
	case a.Action == domain.ActionBuyToOpen && b.Action == domain.ActionBuyToOpen:
		dir = domain.DirectionLong
	case a.Action == domain.ActionSellToOpen && b.Action == domain.ActionSellToOpen:
		dir = domain.DirectionShort
	default:
		// Mixed bought/sold call+put pairs fall outside the table.
		return Classification{Tag: domain.StrategyCustom}
	}
	return Classification{Tag: tag, Direction: dir}
}

// classifyVertical handles two same-type options, one bought one sold.
func classifyVertical(a, b domain.Leg) Classification {
	var bought, sold domain.Leg
	switch {
	case a.Action == domain.ActionBuyToOpen && b.Action == domain.ActionSellToOpen:
		bought, sold = a, b
	case a.Action == domain.ActionSellToOpen && b.Action == domain.ActionBuyToOpen:
		bought, sold = b, a
	default:
		return Classification{Tag: domain.StrategyCustom}
	}

	if a.OptionType == domain.OptionTypeCall {
		if bought.Strike.LessThan(sold.Strike) {
			return Classification{Tag: domain.StrategyBullCallSpread}
		}
		return Classification{Tag: domain.StrategyBearCallSpread}
	}
	if bought.Strike.GreaterThan(sold.Strike) {
		return Classification{Tag: domain.StrategyBearPutSpread}
	}
	return Classification{Tag: domain.StrategyBullPutSpread}
}

// classifyFourOptions recognizes the two-calls-plus-two-puts shape as an
// iron condor. Distinguishing an iron butterfly (same-strike middle legs)
// is deliberately not attempted; see the classifier notes in DESIGN.md.
func classifyFourOptions(options []domain.Leg) Classification {
	var calls, puts int
	for _, l := range options {
		switch l.OptionType {
		case domain.OptionTypeCall:
			calls++
		case domain.OptionTypePut:
			puts++
		}
	}
	if calls == 2 && puts == 2 {
		return Classification{Tag: domain.StrategyIronCondor}
	}
	return Classification{Tag: domain.StrategyCustom}
}

func classifyStockOption(stock, option domain.Leg) Classification {
	stockLong := stock.Quantity > 0 &&
		(stock.Action == domain.ActionBuy || stock.Action == domain.ActionBuyToOpen)
	shortCall := option.OptionType == domain.OptionTypeCall &&
		option.Action == domain.ActionSellToOpen
	if stockLong && shortCall {
		return Classification{Tag: domain.StrategyCoveredCall}
	}
	return Classification{Tag: domain.StrategyCustom}
}
