package validation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"

	"parkgate/internal/client"
	"parkgate/internal/logger"
	"parkgate/internal/models"
)

// Options for a smoke validation run
type Options struct {
	BaseURL  string
	Username string
	Password string
}

// SmokeValidator - сквозная проверка работающего API: вход, справочники,
// въезд, выезд и отчеты администратора
type SmokeValidator struct {
	opts   Options
	token  tokenHolder
	api    *client.Client
	anon   *client.Client
	user   models.SessionUser
	logger *slog.Logger
}

type tokenHolder struct {
	value string
}

func (t *tokenHolder) Token() string { return t.value }

// NewSmokeValidator создает новый валидатор
func NewSmokeValidator(opts Options) *SmokeValidator {
	v := &SmokeValidator{opts: opts, logger: logger.Get()}
	v.api = client.New(client.Config{BaseURL: opts.BaseURL}, &v.token)
	v.anon = client.New(client.Config{BaseURL: opts.BaseURL}, nil)
	return v
}

// ValidateAll runs every check in order and stops at the first failure
func (v *SmokeValidator) ValidateAll(ctx context.Context) error {
	v.logger.Info("Начинаю валидацию API...", "base_url", v.opts.BaseURL)

	if err := v.validateAuth(ctx); err != nil {
		return fmt.Errorf("auth validation failed: %w", err)
	}

	gateID, zone, err := v.validateMasterData(ctx)
	if err != nil {
		return fmt.Errorf("master data validation failed: %w", err)
	}

	if err := v.validateTicketFlow(ctx, gateID, zone); err != nil {
		return fmt.Errorf("ticket flow validation failed: %w", err)
	}

	if v.user.Role == models.RoleAdmin {
		if err := v.validateReports(ctx); err != nil {
			return fmt.Errorf("reports validation failed: %w", err)
		}
	} else {
		v.logger.Info("Пропускаю отчеты: пользователь не администратор", "role", v.user.Role)
	}

	v.logger.Info("✅ Все проверки пройдены успешно")
	return nil
}

func (v *SmokeValidator) validateAuth(ctx context.Context) error {
	_, err := v.anon.Login(ctx, v.opts.Username, v.opts.Password+"-wrong")
	if err := expectStatus(err, http.StatusUnauthorized, "POST /auth/login with a wrong password"); err != nil {
		return err
	}

	resp, err := v.anon.Login(ctx, v.opts.Username, v.opts.Password)
	if err != nil {
		return fmt.Errorf("POST /auth/login: %w", err)
	}
	if resp.Token == "" {
		return errors.New("POST /auth/login: expected a token")
	}
	v.token.value = resp.Token
	v.user = resp.User

	_, err = v.anon.Checkout(ctx, models.CheckoutRequest{TicketID: "missing"})
	if err := expectStatus(err, http.StatusUnauthorized, "POST /tickets/checkout without a token"); err != nil {
		return err
	}

	v.logger.Info("✅ Авторизация валидна", "role", v.user.Role)
	return nil
}

func (v *SmokeValidator) validateMasterData(ctx context.Context) (string, models.Zone, error) {
	gates, err := v.api.Gates(ctx)
	if err != nil {
		return "", models.Zone{}, fmt.Errorf("GET /master/gates: %w", err)
	}
	if len(gates) == 0 {
		return "", models.Zone{}, errors.New("GET /master/gates: expected non-empty list")
	}

	if _, err := v.api.Categories(ctx); err != nil {
		return "", models.Zone{}, fmt.Errorf("GET /master/categories: %w", err)
	}

	for _, gate := range gates {
		zones, err := v.api.Zones(ctx, gate.ID)
		if err != nil {
			return "", models.Zone{}, fmt.Errorf("GET /master/zones?gateId=%s: %w", gate.ID, err)
		}
		for _, zone := range zones {
			if err := checkCounters(zone); err != nil {
				return "", models.Zone{}, err
			}
			if zone.Open && zone.AvailableForVisitors > 0 {
				v.logger.Info("✅ Справочники валидны", "gate_id", gate.ID, "zone_id", zone.ID)
				return gate.ID, zone, nil
			}
		}
	}
	return "", models.Zone{}, errors.New("no open zone with free visitor slots on any gate")
}

func (v *SmokeValidator) validateTicketFlow(ctx context.Context, gateID string, zone models.Zone) error {
	checkin, err := v.api.Checkin(ctx, models.CheckinRequest{
		GateID: gateID,
		ZoneID: zone.ID,
		Type:   models.TicketVisitor,
	})
	if err != nil {
		return fmt.Errorf("POST /tickets/checkin: %w", err)
	}
	if checkin.Ticket.ID == "" || !checkin.Ticket.IsOpen() {
		return errors.New("POST /tickets/checkin: expected an open ticket with an id")
	}
	if checkin.ZoneState.ID != zone.ID || checkin.ZoneState.Version <= zone.Version {
		return fmt.Errorf("POST /tickets/checkin: expected zone %s with version > %d", zone.ID, zone.Version)
	}

	ticket, err := v.api.Ticket(ctx, checkin.Ticket.ID)
	if err != nil {
		return fmt.Errorf("GET /tickets/%s: %w", checkin.Ticket.ID, err)
	}
	if ticket.ZoneID != zone.ID {
		return fmt.Errorf("GET /tickets/%s: zone %q, want %q", ticket.ID, ticket.ZoneID, zone.ID)
	}

	checkout, err := v.api.Checkout(ctx, models.CheckoutRequest{TicketID: ticket.ID})
	if err != nil {
		return fmt.Errorf("POST /tickets/checkout: %w", err)
	}
	if err := checkBreakdown(checkout); err != nil {
		return err
	}

	again, err := v.api.Checkout(ctx, models.CheckoutRequest{TicketID: ticket.ID})
	if err != nil {
		return fmt.Errorf("POST /tickets/checkout (repeat): %w", err)
	}
	if again.TotalAmount != checkout.TotalAmount || again.ZoneState.Version != checkout.ZoneState.Version {
		return errors.New("POST /tickets/checkout (repeat): expected the stored result")
	}

	v.logger.Info("✅ Въезд и выезд валидны", "ticket_id", ticket.ID, "total", checkout.TotalAmount)
	return nil
}

func (v *SmokeValidator) validateReports(ctx context.Context) error {
	state, err := v.api.ParkingState(ctx)
	if err != nil {
		return fmt.Errorf("GET /admin/reports/parking-state: %w", err)
	}
	for _, entry := range state {
		if err := checkCounters(entry.Zone); err != nil {
			return err
		}
	}

	if _, err := v.api.AuditLog(ctx, 10); err != nil {
		return fmt.Errorf("GET /admin/audit-log: %w", err)
	}

	v.logger.Info("✅ Отчеты валидны", "zones", len(state))
	return nil
}

func expectStatus(err error, status int, what string) error {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%s: expected status %d, got %v", what, status, err)
	}
	if apiErr.Status != status {
		return fmt.Errorf("%s: expected status %d, got %d", what, status, apiErr.Status)
	}
	return nil
}

func checkCounters(z models.Zone) error {
	switch {
	case z.Occupied < 0 || z.Free < 0 || z.Reserved < 0:
		return fmt.Errorf("zone %s: negative counters", z.ID)
	case z.Occupied > z.TotalSlots:
		return fmt.Errorf("zone %s: occupied %d exceeds total %d", z.ID, z.Occupied, z.TotalSlots)
	case z.AvailableForVisitors > z.AvailableForSubscribers:
		return fmt.Errorf("zone %s: visitors see more slots than subscribers", z.ID)
	}
	return nil
}

func checkBreakdown(resp *models.CheckoutResponse) error {
	if resp.Ticket.IsOpen() {
		return errors.New("POST /tickets/checkout: ticket still open")
	}
	if len(resp.Breakdown) == 0 {
		return errors.New("POST /tickets/checkout: expected at least one breakdown segment")
	}
	var sum float64
	for _, seg := range resp.Breakdown {
		sum += seg.Hours * seg.Rate
	}
	if math.Abs(math.Round(sum*100)/100-resp.TotalAmount) > 0.011 {
		return fmt.Errorf("POST /tickets/checkout: total %.2f does not match breakdown %.4f", resp.TotalAmount, sum)
	}
	return nil
}

// RunValidation запускает валидацию API
func RunValidation(ctx context.Context, opts Options) error {
	return NewSmokeValidator(opts).ValidateAll(ctx)
}
