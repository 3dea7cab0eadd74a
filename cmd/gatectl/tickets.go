package main

import (
	"context"
	"errors"
	"fmt"

	"parkgate/internal/attendant"
	"parkgate/internal/models"
	"parkgate/internal/occupancy"
)

func runCheckin(a *app, args []string) error {
	fs := a.flags("checkin")
	gateID := fs.StringP("gate", "g", "", "gate id")
	zoneID := fs.StringP("zone", "z", "", "zone id")
	subID := fs.StringP("subscription", "s", "", "subscription id; makes this a subscriber check-in")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *gateID == "" {
		return errors.New("--gate is required")
	}
	if err := a.init(); err != nil {
		return err
	}

	ctx := context.Background()
	desk := attendant.NewGateDesk(*gateID, a.api, occupancy.NewZoneMap(), a.store)
	if err := desk.LoadZones(ctx); err != nil {
		return err
	}

	if *subID != "" {
		if err := desk.SetTab(models.TicketSubscriber); err != nil {
			return err
		}
		sub, err := desk.VerifySubscription(ctx, *subID)
		if err != nil {
			return err
		}
		renderSubscription(a.out, sub)
	}

	resp, err := desk.Checkin(ctx, *zoneID)
	if err != nil {
		var denied *attendant.DeniedError
		if errors.As(err, &denied) {
			renderZones(a.out, desk.Options())
		}
		return err
	}

	renderTicket(a.out, resp.Ticket)
	fmt.Fprintf(a.out, "Zone %s now has %d free, %d reserved\n", resp.ZoneState.ID, resp.ZoneState.Free, resp.ZoneState.Reserved)
	return nil
}

func runCheckout(a *app, args []string) error {
	fs := a.flags("checkout")
	ticketID := fs.StringP("ticket", "t", "", "ticket id")
	plate := fs.String("plate-match", "", "for subscriber tickets: yes or no (asked when empty)")
	convert := fs.Bool("convert", false, "charge a subscriber ticket at visitor rates")
	yes := fs.BoolP("yes", "y", false, "confirm without asking")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.init(); err != nil {
		return err
	}
	if err := a.requireLogin(); err != nil {
		return err
	}

	ctx := context.Background()
	flow := attendant.NewCheckoutFlow(a.api, a.store)
	step, err := flow.SubmitTicket(ctx, *ticketID)
	if err != nil {
		return err
	}

	for {
		switch s := step.(type) {
		case attendant.SubscriptionCheck:
			renderTicket(a.out, s.Result.Ticket)
			renderSubscription(a.out, s.Subscription)
			if *convert {
				step, err = flow.ConvertToVisitor(ctx)
				break
			}
			var matches bool
			switch *plate {
			case "yes":
				matches = true
			case "no":
			case "":
				matches = a.confirm("Does the car's plate match the subscription?")
			default:
				return fmt.Errorf("--plate-match must be yes or no, got %q", *plate)
			}
			step, err = flow.PlateMatch(matches)

		case attendant.Review:
			renderTicket(a.out, s.Result.Ticket)
			if s.Convert {
				fmt.Fprintln(a.out, "Plate mismatch: the ticket will be charged at visitor rates")
			} else {
				renderBreakdown(a.out, s.Result)
			}
			if !*yes && !a.confirm("Confirm checkout?") {
				flow.NewCheckout()
				return errors.New("checkout cancelled")
			}
			step, err = flow.Confirm(ctx)

		case attendant.Confirmed:
			fmt.Fprintln(a.out)
			renderBreakdown(a.out, s.Result)
			fmt.Fprintf(a.out, "Zone %s now has %d free, %d reserved\n", s.Result.ZoneState.ID, s.Result.ZoneState.Free, s.Result.ZoneState.Reserved)
			return nil

		default:
			return fmt.Errorf("unexpected step %T", step)
		}
		if err != nil {
			return err
		}
	}
}
