package main

import (
	"fmt"
	"log/slog"
	"time"

	"parkgate/internal/models"
)

type dataset struct {
	categories    []models.Category
	gates         []models.Gate
	zones         []models.Zone
	rushHours     []models.RushHour
	vacations     []models.Vacation
	subscriptions []models.Subscription
	users         []models.User
}

// newDataset builds the demo site. Subscriptions are valid for a year from now.
func newDataset(now time.Time) dataset {
	ds := dataset{
		categories: []models.Category{
			{ID: "cat_premium", Name: "Premium", Description: "Covered spots near the entrance", RateNormal: 5, RateSpecial: 8},
			{ID: "cat_regular", Name: "Regular", Description: "Open-air parking", RateNormal: 3, RateSpecial: 5},
			{ID: "cat_economy", Name: "Economy", Description: "Remote lot with shuttle", RateNormal: 2, RateSpecial: 3},
		},
		gates: []models.Gate{
			{ID: "gate_1", Name: "Main Entrance", Location: "North"},
			{ID: "gate_2", Name: "East Entrance", Location: "East"},
			{ID: "gate_3", Name: "Service Gate", Location: "South"},
		},
		zones: []models.Zone{
			{ID: "zone_a", Name: "Zone A", CategoryID: "cat_premium", GateIDs: []string{"gate_1", "gate_2"}, TotalSlots: 100, ReservedSlots: 15, Open: true},
			{ID: "zone_b", Name: "Zone B", CategoryID: "cat_regular", GateIDs: []string{"gate_1"}, TotalSlots: 150, ReservedSlots: 25, Open: true},
			{ID: "zone_c", Name: "Zone C", CategoryID: "cat_regular", GateIDs: []string{"gate_2", "gate_3"}, TotalSlots: 80, ReservedSlots: 10, Open: true},
			{ID: "zone_d", Name: "Zone D", CategoryID: "cat_economy", GateIDs: []string{"gate_3"}, TotalSlots: 200, ReservedSlots: 0, Open: true},
			{ID: "zone_vip", Name: "VIP", CategoryID: "cat_premium", GateIDs: []string{"gate_1"}, TotalSlots: 20, ReservedSlots: 20, Open: false},
		},
	}

	// Weekday morning and evening peaks
	for day := 1; day <= 5; day++ {
		ds.rushHours = append(ds.rushHours,
			models.RushHour{WeekDay: day, From: "07:00", To: "09:00"},
			models.RushHour{WeekDay: day, From: "17:00", To: "19:00"},
		)
	}

	year := now.Year()
	ds.vacations = []models.Vacation{
		{Name: "New Year", From: fmt.Sprintf("%d-12-31", year), To: fmt.Sprintf("%d-01-02", year+1)},
		{Name: "Summer break", From: fmt.Sprintf("%d-08-01", year), To: fmt.Sprintf("%d-08-15", year)},
	}

	start := now.Truncate(24 * time.Hour)
	ds.subscriptions = []models.Subscription{
		{
			ID: "sub_001", UserName: "Ali Hassan", Category: "cat_premium", Active: true,
			Cars:     []models.Car{{Plate: "ABC-123", Brand: "Toyota", Model: "Corolla", Color: "white"}},
			StartsAt: start, ExpiresAt: start.AddDate(1, 0, 0),
		},
		{
			ID: "sub_002", UserName: "Mona Adel", Category: "cat_regular", Active: true,
			Cars: []models.Car{
				{Plate: "XYZ-789", Brand: "Kia", Model: "Rio", Color: "red"},
				{Plate: "JKL-456", Brand: "Hyundai", Model: "Tucson", Color: "black"},
			},
			StartsAt: start, ExpiresAt: start.AddDate(1, 0, 0),
		},
		{
			ID: "sub_003", UserName: "Omar Said", Category: "cat_premium", Active: false,
			Cars:     []models.Car{{Plate: "QWE-321", Brand: "BMW", Model: "X5", Color: "blue"}},
			StartsAt: start.AddDate(-1, 0, 0), ExpiresAt: start.AddDate(0, -1, 0),
		},
	}

	ds.users = []models.User{
		{ID: "user_admin", Username: "admin", Role: models.RoleAdmin, IsActive: true},
		{ID: "user_emp1", Username: "emp1", Role: models.RoleEmployee, IsActive: true},
		{ID: "user_emp2", Username: "emp2", Role: models.RoleEmployee, IsActive: true},
	}
	return ds
}

func (ds dataset) describe(log *slog.Logger) {
	log.Info("[DRY RUN] Would seed",
		"categories", len(ds.categories),
		"gates", len(ds.gates),
		"zones", len(ds.zones),
		"rush_hours", len(ds.rushHours),
		"vacations", len(ds.vacations),
		"subscriptions", len(ds.subscriptions),
		"users", len(ds.users))
	for _, z := range ds.zones {
		log.Info("[DRY RUN] Zone", "zone_id", z.ID, "category_id", z.CategoryID, "gates", z.GateIDs, "total_slots", z.TotalSlots)
	}
}
