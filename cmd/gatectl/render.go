package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"

	"parkgate/internal/attendant"
	"parkgate/internal/models"
)

var (
	bannerStyle = lipgloss.NewStyle().Bold(true)
	totalStyle  = lipgloss.NewStyle().Bold(true)
)

// renderBanner prints a heading line, e.g. before each live refresh
func renderBanner(w io.Writer, text string) {
	fmt.Fprintln(w, bannerStyle.Render(text))
}

func renderZones(w io.Writer, opts []attendant.ZoneOption) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ZONE\tNAME\tCATEGORY\tOCCUPIED\tFREE\tRESERVED\tVISITORS\tSUBSCRIBERS\tRATE\tSTATE")
	for _, o := range opts {
		z := o.Zone
		rate := fmt.Sprintf("%.2f", z.RateNormal)
		if z.SpecialActive {
			rate = fmt.Sprintf("%.2f*", z.RateSpecial)
		}
		state := "ok"
		if !o.Selectable {
			state = o.Reason
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%d\t%d\t%d\t%d\t%s\t%s\n",
			z.ID, z.Name, z.CategoryID, z.Occupied, z.TotalSlots, z.Free, z.Reserved,
			z.AvailableForVisitors, z.AvailableForSubscribers, rate, state)
	}
	tw.Flush()
}

func renderTicket(w io.Writer, t models.Ticket) {
	fmt.Fprintf(w, "Ticket   %s\n", t.ID)
	fmt.Fprintf(w, "Type     %s\n", t.Type)
	fmt.Fprintf(w, "Gate     %s\n", t.GateID)
	fmt.Fprintf(w, "Zone     %s\n", t.ZoneID)
	fmt.Fprintf(w, "Check-in %s\n", t.CheckinAt.Local().Format(time.DateTime))
	if t.CheckoutAt != nil {
		fmt.Fprintf(w, "Checkout %s\n", t.CheckoutAt.Local().Format(time.DateTime))
	}
}

func renderBreakdown(w io.Writer, r models.CheckoutResponse) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FROM\tTO\tMODE\tHOURS\tRATE\tAMOUNT")
	for _, s := range r.Breakdown {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%.2f\t%.2f\n",
			s.From.Local().Format("15:04"), s.To.Local().Format("15:04"), s.RateMode, s.Hours, s.Rate, s.Amount)
	}
	tw.Flush()
	fmt.Fprintf(w, "Duration %.2f h\n", r.DurationHours)
	fmt.Fprintln(w, totalStyle.Render(fmt.Sprintf("Total    %.2f", r.TotalAmount)))
}

func renderSubscription(w io.Writer, s *models.Subscription) {
	if s == nil {
		fmt.Fprintln(w, "Subscription could not be loaded")
		return
	}
	status := "active"
	if !s.Active {
		status = "inactive"
	}
	fmt.Fprintf(w, "Subscription %s (%s, %s) for %s\n", s.ID, s.Category, status, s.UserName)
	plates := make([]string, 0, len(s.Cars))
	for _, c := range s.Cars {
		plates = append(plates, strings.TrimSpace(fmt.Sprintf("%s %s %s %s", c.Plate, c.Color, c.Brand, c.Model)))
	}
	fmt.Fprintf(w, "Registered cars: %s\n", strings.Join(plates, "; "))
}

func renderAdminUpdate(w io.Writer, u models.AdminUpdate) {
	target := u.TargetType
	if u.TargetID != "" {
		target += " " + u.TargetID
	}
	fmt.Fprintf(w, "%s  %-22s %-28s by %s\n", u.Timestamp.Local().Format(time.DateTime), u.Action, target, u.AdminID)
}
