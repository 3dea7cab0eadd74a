package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"parkgate/internal/attendant"
	"parkgate/internal/livesync"
	"parkgate/internal/logger"
	"parkgate/internal/models"
	"parkgate/internal/occupancy"
)

func runZones(a *app, args []string) error {
	fs := a.flags("zones")
	gateID := fs.StringP("gate", "g", "", "gate id")
	kind := fs.StringP("type", "t", models.TicketVisitor, "visitor or subscriber, decides which zones are selectable")
	subID := fs.String("subscription", "", "subscription id to check zones against")
	watch := fs.BoolP("watch", "w", false, "follow live updates until interrupted")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *gateID == "" {
		return errors.New("--gate is required")
	}
	if err := a.init(); err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	zones := occupancy.NewZoneMap()
	desk := attendant.NewGateDesk(*gateID, a.api, zones, a.store)
	if err := desk.SetTab(*kind); err != nil {
		return err
	}
	if *subID != "" {
		if _, err := desk.VerifySubscription(ctx, *subID); err != nil {
			return err
		}
	}
	if err := desk.LoadZones(ctx); err != nil {
		return err
	}
	renderZones(a.out, desk.Options())

	if !*watch {
		return nil
	}
	return a.follow(ctx, *gateID, zones, func() {
		fmt.Fprintln(a.out)
		renderBanner(a.out, fmt.Sprintf("%s  %s", *gateID, time.Now().Format(time.TimeOnly)))
		renderZones(a.out, desk.Options())
	})
}

// follow keeps the zone map in sync with the live feed and calls changed
// after every applied event. It returns when ctx is done or the feed drops.
func (a *app) follow(ctx context.Context, scope string, zones *occupancy.ZoneMap, changed func()) error {
	log := logger.WithFields("scope", scope)
	live := livesync.NewClient(livesync.Config{URL: a.wsURL, Scope: scope})
	rec := livesync.NewReconciler(zones, livesync.NewAuditTrail(livesync.AuditTrailSize),
		livesync.APIRefetcher{API: a.api, Scope: scope})

	if err := live.Connect(ctx); err != nil {
		return err
	}
	defer live.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case state := <-live.Status():
			log.Info("Live feed status", "state", state.String())
			if state == livesync.Disconnected {
				// No automatic reconnect; the attendant restarts the watch
				return errors.New("live feed disconnected")
			}
		case ev := <-live.Events():
			if update, ok := ev.(livesync.AdminUpdate); ok {
				renderAdminUpdate(a.out, update.Update)
			}
			if rec.Handle(ctx, ev) {
				changed()
			}
		}
	}
}

func runAudit(a *app, args []string) error {
	if err := a.flags("audit").Parse(args); err != nil {
		return err
	}
	if err := a.init(); err != nil {
		return err
	}
	if err := a.requireLogin(); err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	entries, err := a.api.AuditLog(ctx, 20)
	if err != nil {
		return err
	}
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		renderAdminUpdate(a.out, models.AdminUpdate{
			ID: e.ID, Action: e.Action, AdminID: e.AdminID,
			TargetType: e.TargetType, TargetID: e.TargetID, Timestamp: e.Timestamp,
		})
	}

	return a.follow(ctx, models.AdminScope, occupancy.NewZoneMap(), func() {})
}
