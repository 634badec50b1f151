// Package normalize turns raw brokerage transaction records into typed legs.
//
// Normalization is a pure function over one record: the instrument kind,
// option descriptor and executed action are derived from the record's
// explicit fields first and from free-text keywords second. A record whose
// action cannot be derived is surfaced with ErrAmbiguousLegAction rather
// than guessed; batch normalization reports such records in a skip list
// instead of failing the batch.
package normalize

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradeledger/pkg/contracts/domain"
)

// ErrAmbiguousLegAction indicates the action of a record could not be
// derived from its explicit code or free-text fields. The record is left
// for manual resolution; prior state is untouched.
var ErrAmbiguousLegAction = errors.New("ambiguous leg action")

// RawTransaction is one brokerage record as delivered by an upstream
// ingestion source. Name and Subtype are free text; ActionCode is the
// broker's explicit action code when present and takes priority over
// keyword inference.
type RawTransaction struct {
	ID           string          `json:"id"`
	Date         time.Time       `json:"date"`
	Symbol       string          `json:"symbol" validate:"required"`
	Name         string          `json:"name,omitempty"`
	Subtype      string          `json:"subtype,omitempty"`
	ActionCode   string          `json:"action_code,omitempty"`
	Quantity     int64           `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	Amount       decimal.Decimal `json:"amount"`
	Fees         decimal.Decimal `json:"fees"`
	Option       *RawOption      `json:"option,omitempty"`
	OptionSymbol string          `json:"option_symbol,omitempty"`
}

// RawOption is the structured option descriptor of a raw record.
type RawOption struct {
	Type       string          `json:"type" validate:"oneof=call put"`
	Strike     decimal.Decimal `json:"strike"`
	Expiration time.Time       `json:"expiration"`
}

// SkippedLeg names a record excluded from a batch and why.
type SkippedLeg struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// explicit action codes, checked before any keyword inference.
var actionCodes = map[string]domain.LegAction{
	"BTO":        domain.ActionBuyToOpen,
	"STO":        domain.ActionSellToOpen,
	"BTC":        domain.ActionBuyToClose,
	"STC":        domain.ActionSellToClose,
	"BUY":        domain.ActionBuy,
	"SELL":       domain.ActionSell,
	"EXERCISE":   domain.ActionExercise,
	"ASSIGN":     domain.ActionAssign,
	"ASSIGNMENT": domain.ActionAssign,
	"EXPIRE":     domain.ActionExpire,
	"EXPIRED":    domain.ActionExpire,
}

// Normalize converts one raw record into a typed Leg.
// The returned error is ErrAmbiguousLegAction (wrapped with the record id)
// when the action cannot be derived; the leg is still returned with
// ActionUnknown so callers can surface it for manual resolution.
func Normalize(raw RawTransaction) (domain.Leg, error) {
	leg := domain.Leg{
		ID:         raw.ID,
		Date:       raw.Date,
		Underlying: strings.ToUpper(strings.TrimSpace(raw.Symbol)),
		OptionType: domain.OptionTypeNone,
		Quantity:   raw.Quantity,
		Price:      raw.Price,
		Amount:     raw.Amount,
		Fees:       raw.Fees,
	}
	if leg.ID == "" {
		leg.ID = uuid.New().String()
	}

	if raw.Option != nil {
		leg.IsOption = true
		leg.Strike = raw.Option.Strike
		leg.Expiration = raw.Option.Expiration
		switch strings.ToLower(strings.TrimSpace(raw.Option.Type)) {
		case "call", "c":
			leg.OptionType = domain.OptionTypeCall
		case "put", "p":
			leg.OptionType = domain.OptionTypePut
		default:
			return leg, fmt.Errorf("record %s: unrecognized option type %q", leg.ID, raw.Option.Type)
		}
	} else if raw.OptionSymbol != "" {
		desc, err := ParseOptionSymbol(raw.OptionSymbol)
		if err != nil {
			return leg, fmt.Errorf("record %s: %w", leg.ID, err)
		}
		leg.IsOption = true
		leg.OptionType = desc.Type
		leg.Strike = desc.Strike
		leg.Expiration = desc.Expiration
		if leg.Underlying == "" {
			leg.Underlying = desc.Underlying
		}
	}

	action, ok := deriveAction(raw)
	if !ok {
		leg.Action = domain.ActionUnknown
		return leg, fmt.Errorf("record %s: %w", leg.ID, ErrAmbiguousLegAction)
	}
	leg.Action = action

	return leg, nil
}

// NormalizeBatch normalizes a batch of records with partial-success
// semantics: records that cannot be normalized are reported in the skip
// list and the remainder is returned.
func NormalizeBatch(raws []RawTransaction) ([]domain.Leg, []SkippedLeg) {
	var (
		legs    []domain.Leg
		skipped []SkippedLeg
	)
	for _, raw := range raws {
		leg, err := Normalize(raw)
		if err != nil {
			skipped = append(skipped, SkippedLeg{ID: leg.ID, Reason: err.Error()})
			continue
		}
		legs = append(legs, leg)
	}
	return legs, skipped
}

// deriveAction resolves the executed action: explicit code first, then
// keyword inference over the free-text name and subtype fields.
func deriveAction(raw RawTransaction) (domain.LegAction, bool) {
	if code := strings.ToUpper(strings.TrimSpace(raw.ActionCode)); code != "" {
		if action, ok := actionCodes[code]; ok {
			return action, true
		}
		return domain.ActionUnknown, false
	}

	text := strings.ToLower(raw.Name + " " + raw.Subtype)
	isOption := raw.Option != nil || raw.OptionSymbol != ""

	// Compound open/close phrases before bare buy/sell, then lifecycle
	// events, then the generic keywords.
	switch {
	case strings.Contains(text, "buy to open"):
		return domain.ActionBuyToOpen, true
	case strings.Contains(text, "sell to open"):
		return domain.ActionSellToOpen, true
	case strings.Contains(text, "buy to close"):
		return domain.ActionBuyToClose, true
	case strings.Contains(text, "sell to close"):
		return domain.ActionSellToClose, true
	case strings.Contains(text, "assignment"):
		return domain.ActionAssign, true
	case strings.Contains(text, "exercise"):
		return domain.ActionExercise, true
	case strings.Contains(text, "expir"):
		return domain.ActionExpire, true
	case strings.Contains(text, "sell"):
		if isOption {
			return domain.ActionSellToOpen, true
		}
		return domain.ActionSell, true
	case strings.Contains(text, "buy"):
		if isOption {
			return domain.ActionBuyToOpen, true
		}
		return domain.ActionBuy, true
	}

	return domain.ActionUnknown, false
}

// OptionDescriptor is a parsed compact option symbol.
type OptionDescriptor struct {
	Underlying string
	Type       domain.OptionType
	Strike     decimal.Decimal
	Expiration time.Time
}

// ParseOptionSymbol parses an OCC-style compact option symbol such as
// "AAPL240621C00150000" (underlying, yymmdd expiration, C/P, strike in
// thousandths) or the spaced form "AAPL 2024-06-21 C 150".
func ParseOptionSymbol(sym string) (OptionDescriptor, error) {
	sym = strings.TrimSpace(sym)
	if sym == "" {
		return OptionDescriptor{}, fmt.Errorf("empty option symbol")
	}

	if parts := strings.Fields(sym); len(parts) == 4 {
		return parseSpacedSymbol(parts)
	}
	return parseOCCSymbol(sym)
}

func parseSpacedSymbol(parts []string) (OptionDescriptor, error) {
	exp, err := time.Parse("2006-01-02", parts[1])
	if err != nil {
		return OptionDescriptor{}, fmt.Errorf("parse option expiration %q: %w", parts[1], err)
	}
	var typ domain.OptionType
	switch strings.ToUpper(parts[2]) {
	case "C", "CALL":
		typ = domain.OptionTypeCall
	case "P", "PUT":
		typ = domain.OptionTypePut
	default:
		return OptionDescriptor{}, fmt.Errorf("unrecognized option type %q", parts[2])
	}
	strike, err := decimal.NewFromString(parts[3])
	if err != nil {
		return OptionDescriptor{}, fmt.Errorf("parse option strike %q: %w", parts[3], err)
	}
	return OptionDescriptor{
		Underlying: strings.ToUpper(parts[0]),
		Type:       typ,
		Strike:     strike,
		Expiration: exp,
	}, nil
}

func parseOCCSymbol(sym string) (OptionDescriptor, error) {
	// Fixed-width suffix: yymmdd + C/P + 8-digit strike.
	if len(sym) < 16 {
		return OptionDescriptor{}, fmt.Errorf("option symbol %q too short", sym)
	}
	tail := sym[len(sym)-15:]
	underlying := strings.ToUpper(strings.TrimSpace(sym[:len(sym)-15]))
	if underlying == "" {
		return OptionDescriptor{}, fmt.Errorf("option symbol %q missing underlying", sym)
	}

	exp, err := time.Parse("060102", tail[:6])
	if err != nil {
		return OptionDescriptor{}, fmt.Errorf("parse option expiration in %q: %w", sym, err)
	}

	var typ domain.OptionType
	switch tail[6] {
	case 'C', 'c':
		typ = domain.OptionTypeCall
	case 'P', 'p':
		typ = domain.OptionTypePut
	default:
		return OptionDescriptor{}, fmt.Errorf("unrecognized option type %q in %q", tail[6], sym)
	}

	raw, err := strconv.ParseInt(tail[7:], 10, 64)
	if err != nil {
		return OptionDescriptor{}, fmt.Errorf("parse option strike in %q: %w", sym, err)
	}
	strike := decimal.New(raw, -3)

	return OptionDescriptor{
		Underlying: underlying,
		Type:       typ,
		Strike:     strike,
		Expiration: exp,
	}, nil
}
