package model

import (
	"strings"
	"time"
)

// Event statuses stored in events.status.
const (
	EventScheduled = "programado"
	EventActive    = "activo"
	EventCancelled = "cancelado"
	EventFinished  = "finalizado"
)

// Event categories stored in events.category.
var EventCategories = []string{"musica", "deporte", "educacion", "tecnologia", "arte", "otros"}

// Event represents an organised happening for which tickets are sold.
// An event owns zero or more TicketTypeEvent rows (its offerings) that
// fix price and capacity for each ticket type.
//
// Fields:
//
//	ID             – primary key identifier.
//	CreatorID      – user who created the event (tenant owner).
//	Name           – display name.
//	StartAt/EndAt  – schedule window; EndAt must be after StartAt.
//	SalesOpenAt    – when ticket sales open; a scheduled event becomes
//	                 active once this instant has passed.
//	Country        – country of the venue; Colombia uses CityID, other
//	                 countries use CityText and DepartmentText.
//	Status         – programado, activo, cancelado or finalizado.
//	MinAge         – optional minimum attendee age.
//	MaxCapacity    – optional ceiling on the sum of offering capacities.
type Event struct {
	ID             uint64     `json:"id"`                            // events.id
	CreatorID      uint64     `json:"creator_id"`                    // events.creator_id
	Name           string     `json:"event_name"`                    // events.event_name
	Description    string     `json:"description"`                   // events.description
	StartAt        time.Time  `json:"start_datetime"`                // events.start_datetime
	EndAt          time.Time  `json:"end_datetime"`                  // events.end_datetime
	SalesOpenAt    *time.Time `json:"sales_open_datetime,omitempty"` // events.sales_open_datetime (nullable)
	Country        string     `json:"country"`                       // events.country
	CityID         *uint64    `json:"location_id,omitempty"`         // events.city_id (nullable)
	CityText       string     `json:"city_text,omitempty"`           // events.city_text
	DepartmentText string     `json:"department_text,omitempty"`     // events.department_text
	Organizer      string     `json:"organizer,omitempty"`           // events.organizer
	Category       string     `json:"category"`                      // events.category
	Status         string     `json:"status"`                        // events.status
	MinAge         *int       `json:"min_age,omitempty"`             // events.min_age (nullable)
	MaxCapacity    *int       `json:"max_capacity,omitempty"`        // events.max_capacity (nullable)
	CreatedAt      time.Time  `json:"created_at"`                    // events.created_at
	UpdatedAt      time.Time  `json:"updated_at"`                    // events.updated_at
}

// SalesOpen reports whether a scheduled event has reached its sales
// opening time at now.
func (e Event) SalesOpen(now time.Time) bool {
	return e.Status == EventScheduled && e.SalesOpenAt != nil && !now.Before(*e.SalesOpenAt)
}

// InColombia reports whether the event location must reference a city row.
func (e Event) InColombia() bool {
	return strings.EqualFold(strings.TrimSpace(e.Country), "colombia")
}

// ValidCategory reports whether c is one of EventCategories.
func ValidCategory(c string) bool {
	for _, v := range EventCategories {
		if v == c {
			return true
		}
	}
	return false
}
