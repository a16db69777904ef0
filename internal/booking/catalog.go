package booking

import "strings"

const defaultCalendarURL = "https://calendar.google.com/calendar/u/0/appointments/schedules/AcZssZ0QR3uRxVB7rb4ZHqJ1qYmz-T0e2CFtV5MYekvGDq1qyWxsV_Av3nP3zEGk0DrH2HqpTLoXuK0h"

// Service is an immutable catalog entry.
type Service struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Details     []string `json:"details"`
	Price       string   `json:"price"`
	Duration    string   `json:"duration"`
	Icon        string   `json:"icon"`
	CalendarURL string   `json:"calendarUrl"`
	Accent      string   `json:"accent"`
}

// Catalog is the fixed list of bookable services.
type Catalog struct {
	services []Service
}

func NewCatalog(services []Service) *Catalog {
	return &Catalog{services: append([]Service(nil), services...)}
}

// DefaultCatalog returns the studio's five bookable services.
func DefaultCatalog() *Catalog {
	return NewCatalog([]Service{
		{
			ID:          "onboarding",
			Title:       "Book Onboarding",
			Description: "Get started with our services with a free consultation",
			Details:     []string{"Needs analysis", "Recommended next steps", "No commitment"},
			Price:       "Free",
			Duration:    "30 min",
			Icon:        "calendar",
			CalendarURL: defaultCalendarURL,
			Accent:      "blue",
		},
		{
			ID:          "website",
			Title:       "For a Website",
			Description: "Professional web design and development",
			Details:     []string{"Responsive design", "Search engine optimised", "Simple CMS"},
			Price:       "Quoted per project",
			Duration:    "45 min",
			Icon:        "globe",
			CalendarURL: defaultCalendarURL,
			Accent:      "green",
		},
		{
			ID:          "booking-system",
			Title:       "For a Booking System",
			Description: "Automated booking solutions for your business",
			Details:     []string{"Online booking", "Calendar sync", "Automatic reminders"},
			Price:       "Quoted per project",
			Duration:    "45 min",
			Icon:        "clock",
			CalendarURL: defaultCalendarURL,
			Accent:      "purple",
		},
		{
			ID:          "app-development",
			Title:       "For App Development",
			Description: "Mobile and web apps tailored to you",
			Details:     []string{"iOS and Android", "Web apps", "Integrations"},
			Price:       "Quoted per project",
			Duration:    "45 min",
			Icon:        "smartphone",
			CalendarURL: defaultCalendarURL,
			Accent:      "orange",
		},
		{
			ID:          "complete-service",
			Title:       "Complete Service",
			Description: "Full digital transformation for your business",
			Details:     []string{"Website, booking and app", "One point of contact", "Ongoing support"},
			Price:       "Quoted per project",
			Duration:    "60 min",
			Icon:        "star",
			CalendarURL: defaultCalendarURL,
			Accent:      "pink",
		},
	})
}

// All returns a copy of the catalog entries in display order.
func (c *Catalog) All() []Service {
	return append([]Service(nil), c.services...)
}

// IDs returns the service identifiers in display order.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.services))
	for i, s := range c.services {
		ids[i] = s.ID
	}
	return ids
}

// ByID is the exact-match phase of resolution.
func (c *Catalog) ByID(id string) (Service, bool) {
	for _, s := range c.services {
		if s.ID == id {
			return s, true
		}
	}
	return Service{}, false
}

// ByTitle is the fuzzy phase: the first service whose title contains
// fragment, ignoring case.
func (c *Catalog) ByTitle(fragment string) (Service, bool) {
	fragment = strings.ToLower(strings.TrimSpace(fragment))
	if fragment == "" {
		return Service{}, false
	}
	for _, s := range c.services {
		if strings.Contains(strings.ToLower(s.Title), fragment) {
			return s, true
		}
	}
	return Service{}, false
}

// Resolve tries an exact id match, then a title substring match.
func (c *Catalog) Resolve(detected string) (Service, bool) {
	detected = strings.TrimSpace(detected)
	if detected == "" {
		return Service{}, false
	}
	if s, ok := c.ByID(detected); ok {
		return s, true
	}
	return c.ByTitle(detected)
}
