package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/greenscreen-pictures/kiosk/internal/admin"
	"github.com/greenscreen-pictures/kiosk/internal/catalog"
	"github.com/greenscreen-pictures/kiosk/internal/clock"
	"github.com/greenscreen-pictures/kiosk/internal/config"
	"github.com/greenscreen-pictures/kiosk/internal/enum"
	"github.com/greenscreen-pictures/kiosk/internal/history"
	"github.com/greenscreen-pictures/kiosk/internal/kv/backend"
	"github.com/greenscreen-pictures/kiosk/internal/ordernum"
	"github.com/greenscreen-pictures/kiosk/internal/outputs"
	"github.com/greenscreen-pictures/kiosk/internal/pricing"
	"github.com/greenscreen-pictures/kiosk/internal/service"
	"github.com/greenscreen-pictures/kiosk/internal/session"
)

func main() {
	// CLI flags
	count := flag.Int("count", -1, "Number of demo orders to append to history")
	counter := flag.Int("counter", -1, "Value to store in the order counter after seeding")
	flag.Parse()

	// Fall back to environment variables
	if *count < 0 {
		*count = envInt("SEED_COUNT")
	}
	if *counter < 0 {
		*counter = envInt("SEED_COUNTER")
	}

	// Fall back to defaults
	if *count < 0 {
		*count = 5
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	store, closeStore, err := backend.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Unable to open %s store: %v", cfg.StoreDriver, err)
	}
	defer closeStore()
	log.Printf("Connected to %s store", cfg.StoreDriver)

	orders := ordernum.New(store, clock.Real{}, nil)
	hist := history.New(store, nil)

	start := orders.Current(ctx)
	now := time.Now()
	for i := 0; i < *count; i++ {
		number := ordernum.Format(start + i + 1)
		snap := demoSnapshot(i, number)
		at := now.Add(-time.Duration(*count-i) * time.Hour)
		rec := service.NewRecord(snap, at, uuid.NewString())
		if !hist.Append(ctx, rec) {
			log.Fatalf("Failed to append order %s", number)
		}
		log.Printf("Created order %s for %s (%s)", rec.OrderNumber, rec.UserName, rec.TotalPrice)
	}

	if *counter < 0 {
		*counter = start + *count
	}
	if err := orders.Set(ctx, *counter); err != nil {
		log.Fatalf("Failed to set order counter: %v", err)
	}

	log.Println("Seed completed successfully")
	log.Printf("Order counter: %d (next %s)", *counter, ordernum.Format(*counter+1))
}

var demoCustomers = []struct {
	name   string
	email  string
	people string
}{
	{"Ada Lovelace", "ada@example.com", "2"},
	{"Grace Hopper", "grace@example.com", "4"},
	{"Alan Turing", "", "1"},
	{"Katherine Johnson", "katherine@example.com", "10+"},
	{"Edsger Dijkstra", "edsger@example.com", "3"},
}

// demoSnapshot builds a plausible completed session. Every other order uses
// both delivery methods so reports have print and email totals to show.
func demoSnapshot(i int, orderNumber string) session.Snapshot {
	settings := admin.Defaults()
	c := demoCustomers[i%len(demoCustomers)]

	first := catalog.Standard(i%catalog.StandardCount + 1)
	second := catalog.Standard((i+3)%catalog.StandardCount + 1)
	d := session.Draft{
		CurrentStep:         enum.StepReceipt,
		BasePrice:           settings.BasePrice,
		Theme:               settings.Theme,
		DeliveryMethod:      []string{enum.DeliveryEmail},
		NumberOfPhotos:      1,
		NumberOfEmailPhotos: 2,
		PaymentType:         enum.PaymentCash,
		SelectedBackgrounds: []catalog.BackgroundID{first, second},
		BackgroundOutputs: outputs.Outputs{
			first.Key():  {Email: true},
			second.Key(): {Email: true},
		},
		UserName:       c.name,
		Emails:         []string{c.email},
		NumberOfPeople: c.people,
		OrderNumber:    orderNumber,
		CustomerNumber: strconv.Itoa(1000 + i),
		CapturedPhotos: []string{},
	}
	if c.email == "" {
		d.DeliveryMethod = []string{enum.DeliveryPrints}
		d.NumberOfEmailPhotos = 0
		d.BackgroundOutputs = outputs.Outputs{first.Key(): {Print: 1}}
		d.PaymentType = enum.PaymentCredit
	} else if i%2 == 1 {
		d.DeliveryMethod = []string{enum.DeliveryEmail, enum.DeliveryPrints}
		d.NumberOfPhotos = 2
		d.BackgroundOutputs = outputs.Outputs{
			first.Key():  {Print: 2, Email: true},
			second.Key(): {Email: true},
		}
		d.PaymentType = enum.PaymentDebit
	}

	b := pricing.Compute(d.PriceInput(settings))
	return session.Snapshot{Draft: d, Settings: settings, Price: b.Money(), Breakdown: b}
}

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return -1
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		log.Fatalf("%s must be a non-negative integer, got %q", key, v)
	}
	return n
}
