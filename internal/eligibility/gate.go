// Package eligibility decides whether a conversation may be opened.
package eligibility

import (
	"context"
	"errors"

	"github.com/soyeahso/matchchat/internal/domain"
	"github.com/soyeahso/matchchat/internal/logging"
)

var (
	ErrUnavailable = errors.New("eligibility: check unavailable")
	ErrNotEligible = errors.New("eligibility: not eligible to chat")
	ErrDeclined    = errors.New("eligibility: credit confirmation declined")
)

// Decision is the outcome of evaluating an Eligibility.
type Decision int

const (
	Refused Decision = iota
	ConfirmRequired
	Open
)

func (d Decision) String() string {
	switch d {
	case ConfirmRequired:
		return "confirm_required"
	case Open:
		return "open"
	default:
		return "refused"
	}
}

// Checker is the slice of the REST client the gate needs.
type Checker interface {
	CheckEligibility(ctx context.Context, counterpartID string) (*domain.Eligibility, error)
}

// ConfirmFunc asks the user to accept a credit deduction.
type ConfirmFunc func(ctx context.Context, counterpartID string) bool

// Gate performs the pre-chat check. Results are never cached.
type Gate struct {
	api Checker
	log *logging.Logger
}

func NewGate(api Checker, log *logging.Logger) *Gate {
	return &Gate{api: api, log: log.Sub("eligibility")}
}

// Check makes one round trip. It returns nil for an empty id or any failure.
func (g *Gate) Check(ctx context.Context, counterpartID string) *domain.Eligibility {
	if counterpartID == "" {
		return nil
	}
	e, err := g.api.CheckEligibility(ctx, counterpartID)
	if err != nil {
		g.log.Warn().Err(err).Str("counterpart", counterpartID).Msg("eligibility check failed")
		return nil
	}
	return e
}

// Decide maps a check result to what the UI should do next. A nil result
// is treated as not eligible.
func Decide(e *domain.Eligibility) Decision {
	switch {
	case e == nil || !e.CanChat:
		return Refused
	case e.CreditRequired && !e.AlreadyInitiated:
		return ConfirmRequired
	default:
		return Open
	}
}

// Enter runs the whole gate: check, decide, and ask for confirmation when a
// credit would be spent. A nil error means the conversation may open.
func (g *Gate) Enter(ctx context.Context, counterpartID string, confirm ConfirmFunc) error {
	e := g.Check(ctx, counterpartID)
	if e == nil {
		return ErrUnavailable
	}

	d := Decide(e)
	g.log.Debug().Str("counterpart", counterpartID).Stringer("decision", d).Msg("eligibility decided")

	switch d {
	case Refused:
		return ErrNotEligible
	case ConfirmRequired:
		if confirm == nil || !confirm(ctx, counterpartID) {
			return ErrDeclined
		}
	}
	return nil
}
