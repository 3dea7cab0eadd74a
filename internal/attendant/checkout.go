package attendant

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"parkgate/internal/models"
)

// Step is one of Lookup, SubscriptionCheck, Review or Confirmed
type Step interface {
	step()
}

// Lookup waits for a ticket id
type Lookup struct{}

// SubscriptionCheck asks the attendant to compare the car with the
// subscription's registered plates. Subscription is nil when it could not be
// loaded; only conversion is possible then.
type SubscriptionCheck struct {
	Result       models.CheckoutResponse
	Subscription *models.Subscription
}

// Review shows the breakdown before the attendant confirms
type Review struct {
	Result models.CheckoutResponse
	// Convert is set when a subscriber's plate did not match
	Convert bool
}

// Confirmed is the final receipt
type Confirmed struct {
	Result models.CheckoutResponse
}

func (Lookup) step()            {}
func (SubscriptionCheck) step() {}
func (Review) step()            {}
func (Confirmed) step()         {}

// CheckoutFlow drives one checkout at a time. Every action returns the new
// step; a response that arrives after NewCheckout is dropped with ErrStale.
type CheckoutFlow struct {
	api     API
	tickets TicketStore

	mu         sync.Mutex
	current    Step
	generation uint64
}

func NewCheckoutFlow(api API, tickets TicketStore) *CheckoutFlow {
	return &CheckoutFlow{api: api, tickets: tickets, current: Lookup{}}
}

func (f *CheckoutFlow) Step() Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// begin checks that the flow is at a step of type S and returns it with the
// current generation
func begin[S Step](f *CheckoutFlow) (S, uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.current.(S)
	if !ok {
		return s, 0, fmt.Errorf("%w: at %T", ErrWrongStep, f.current)
	}
	return s, f.generation, nil
}

func (f *CheckoutFlow) advance(gen uint64, next Step) (Step, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.generation {
		return f.current, ErrStale
	}
	f.current = next
	return next, nil
}

// SubmitTicket checks the ticket out. Subscriber tickets go to
// SubscriptionCheck, visitor tickets straight to Review.
func (f *CheckoutFlow) SubmitTicket(ctx context.Context, ticketID string) (Step, error) {
	ticketID = strings.TrimSpace(ticketID)
	if ticketID == "" {
		return f.Step(), &ValidationError{Field: "ticketId", Message: "Please enter a ticket ID"}
	}
	_, gen, err := begin[Lookup](f)
	if err != nil {
		return f.Step(), err
	}

	result, err := f.api.Checkout(ctx, models.CheckoutRequest{TicketID: ticketID})
	if err != nil {
		if _, stale := f.advance(gen, Lookup{}); stale != nil {
			return f.Step(), stale
		}
		return Lookup{}, err
	}

	if result.Ticket.SubscriptionID == nil || *result.Ticket.SubscriptionID == "" {
		return f.advance(gen, Review{Result: *result})
	}

	// A failed lookup still lets the attendant convert the ticket
	sub, _ := f.api.Subscription(ctx, *result.Ticket.SubscriptionID)
	return f.advance(gen, SubscriptionCheck{Result: *result, Subscription: sub})
}

// PlateMatch records the attendant's plate comparison
func (f *CheckoutFlow) PlateMatch(matches bool) (Step, error) {
	s, gen, err := begin[SubscriptionCheck](f)
	if err != nil {
		return f.Step(), err
	}
	if matches && s.Subscription == nil {
		return s, &ValidationError{Field: "subscription", Message: "subscription could not be loaded"}
	}
	return f.advance(gen, Review{Result: s.Result, Convert: !matches})
}

// ConvertToVisitor re-prices a subscriber ticket at visitor rates and
// confirms it
func (f *CheckoutFlow) ConvertToVisitor(ctx context.Context) (Step, error) {
	s, gen, err := begin[SubscriptionCheck](f)
	if err != nil {
		return f.Step(), err
	}
	return f.convert(ctx, gen, s.Result.Ticket.ID)
}

// Confirm finishes the checkout shown in Review
func (f *CheckoutFlow) Confirm(ctx context.Context) (Step, error) {
	s, gen, err := begin[Review](f)
	if err != nil {
		return f.Step(), err
	}
	if s.Convert {
		return f.convert(ctx, gen, s.Result.Ticket.ID)
	}
	return f.confirm(gen, s.Result)
}

func (f *CheckoutFlow) convert(ctx context.Context, gen uint64, ticketID string) (Step, error) {
	result, err := f.api.Checkout(ctx, models.CheckoutRequest{TicketID: ticketID, ForceConvertToVisitor: true})
	if err != nil {
		return f.Step(), err
	}
	return f.confirm(gen, *result)
}

func (f *CheckoutFlow) confirm(gen uint64, result models.CheckoutResponse) (Step, error) {
	next, err := f.advance(gen, Confirmed{Result: result})
	if err != nil {
		return next, err
	}
	if result.Ticket.CheckoutAt != nil {
		f.tickets.UpdateCheckout(*result.Ticket.CheckoutAt)
	}
	return next, nil
}

// NewCheckout returns to Lookup, drops anything in flight and clears the
// session ticket
func (f *CheckoutFlow) NewCheckout() Step {
	f.mu.Lock()
	f.current = Lookup{}
	f.generation++
	f.mu.Unlock()
	f.tickets.ClearTicket()
	return Lookup{}
}
