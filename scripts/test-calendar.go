package main

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pfrederiksen/opencall-events/internal/calendar"
	"github.com/pfrederiksen/opencall-events/internal/event"
)

func main() {
	county := "Cornwall"
	desc := "Annual open exhibition for painters and printmakers."
	entries := 3

	// Create a sample event
	evt := event.Event{
		ID:          1,
		Title:       "Spring Open Exhibition",
		DateStart:   event.NewDate(2026, time.March, 14),
		DateEnd:     event.NewDate(2026, time.April, 26),
		Venue:       "Harbour Gallery",
		Location:    "St Ives",
		County:      &county,
		Description: &desc,
		URLID:       1,
		FeeTiers: []event.FeeTier{
			{FeeType: event.FeeTypeTier, NumberEntries: &entries, FeeAmount: decimal.RequireFromString("25.00")},
		},
	}

	// Generate .ics file
	icsContent := calendar.GenerateICS([]event.Event{evt},
		calendar.WithCalendarName("Sample open calls"),
		calendar.WithSourceURLs(map[uint]string{1: "https://example.org/spring-open"}),
	)

	// Write to file (owner read/write only)
	filename := "test-opencall.ics"
	if err := os.WriteFile(filename, []byte(icsContent), 0600); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated calendar file: %s\n\n", filename)
	fmt.Println("Test it by:")
	fmt.Println("1. Open the .ics file with your calendar app")
	fmt.Println("2. Or import it into Google Calendar, Apple Calendar, or Outlook")
	fmt.Println("\nFile contents preview:")
	fmt.Println("---")
	fmt.Println(icsContent)
}
