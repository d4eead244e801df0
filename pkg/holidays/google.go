package holidays

import (
	"context"
	"fmt"
	"sync"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/maxton76/stall-bokning-sub014/pkg/db"
)

// GoogleCalendar resolves holidays from a public Google holiday calendar
// (e.g. "en.swedish#holiday@group.v.calendar.google.com"). Lookups are
// cached per date for the lifetime of the client since holiday calendars
// change rarely.
type GoogleCalendar struct {
	service    *calendar.Service
	calendarID string

	mu    sync.Mutex
	cache map[string]bool
}

// NewGoogleCalendar creates a holiday calendar client using an API key.
// Public holiday calendars are readable without user credentials.
func NewGoogleCalendar(ctx context.Context, calendarID, apiKey string) (*GoogleCalendar, error) {
	service, err := calendar.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return &GoogleCalendar{
		service:    service,
		calendarID: calendarID,
		cache:      make(map[string]bool),
	}, nil
}

// IsHoliday reports whether any event exists on the holiday calendar for
// the given date
func (g *GoogleCalendar) IsHoliday(ctx context.Context, date time.Time) (bool, error) {
	key := date.Format(db.DateFormat)

	g.mu.Lock()
	if cached, ok := g.cache[key]; ok {
		g.mu.Unlock()
		return cached, nil
	}
	g.mu.Unlock()

	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	events, err := g.service.Events.List(g.calendarID).
		Context(ctx).
		TimeMin(dayStart.Format(time.RFC3339)).
		TimeMax(dayEnd.Format(time.RFC3339)).
		SingleEvents(true).
		MaxResults(1).
		Do()
	if err != nil {
		return false, fmt.Errorf("failed to query holiday calendar: %w", err)
	}

	isHoliday := len(events.Items) > 0

	g.mu.Lock()
	g.cache[key] = isHoliday
	g.mu.Unlock()

	return isHoliday, nil
}
