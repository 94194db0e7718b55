package model

// Department is a Colombian administrative region.
type Department struct {
	ID   uint64 `json:"id"`   // departments.id
	Name string `json:"name"` // departments.name
}

// City belongs to a Department.  Events in Colombia reference a city row.
type City struct {
	ID           uint64 `json:"id"`            // cities.id
	Name         string `json:"name"`          // cities.name
	DepartmentID uint64 `json:"department_id"` // cities.department_id
}

// OfferingAvailability is the public view of one offering's capacity.
type OfferingAvailability struct {
	OfferingID   uint64 `json:"config_type_id"`
	TicketType   string `json:"ticket_type"`
	Price        string `json:"price"`
	MaxCapacity  int    `json:"maximun_capacity"`
	CapacitySold int    `json:"capacity_sold"`
	Remaining    int    `json:"remaining"`
	SoldOut      bool   `json:"is_sold_out"`
}

// Availability is a capacity snapshot of an event across its offerings.
type Availability struct {
	EventID   uint64                 `json:"event_id"`
	Status    string                 `json:"status"`
	Offerings []OfferingAvailability `json:"ticket_types"`
	Remaining int                    `json:"remaining"`
	SoldOut   bool                   `json:"is_sold_out"`
}

// NewAvailability summarises offerings of an event.
func NewAvailability(ev Event, offerings []TicketTypeEvent) Availability {
	a := Availability{EventID: ev.ID, Status: ev.Status, Offerings: make([]OfferingAvailability, 0, len(offerings))}
	for _, o := range offerings {
		a.Offerings = append(a.Offerings, OfferingAvailability{
			OfferingID:   o.ID,
			TicketType:   o.TicketTypeName,
			Price:        o.Price.StringFixed(2),
			MaxCapacity:  o.MaxCapacity,
			CapacitySold: o.CapacitySold,
			Remaining:    o.Remaining(),
			SoldOut:      o.SoldOut(),
		})
		a.Remaining += o.Remaining()
	}
	a.SoldOut = a.Remaining == 0
	return a
}
