package model

import "time"

// Audited entity kinds stored in change_logs.entity.
const (
	EntityEvent = "event"
	EntityUser  = "user"
)

// ChangeLog is one recorded field change of an event or user.
type ChangeLog struct {
	ID         uint64    `json:"id"`                   // change_logs.id
	Entity     string    `json:"entity"`               // change_logs.entity
	EntityID   uint64    `json:"entity_id"`            // change_logs.entity_id
	ChangedBy  *uint64   `json:"changed_by,omitempty"` // change_logs.changed_by (nullable)
	ChangeType string    `json:"change_type"`          // change_logs.change_type
	Field      string    `json:"field_changed"`        // change_logs.field_changed
	OldValue   string    `json:"old_value"`            // change_logs.old_value
	NewValue   string    `json:"new_value"`            // change_logs.new_value
	ChangedAt  time.Time `json:"timestamp"`            // change_logs.changed_at
}

// TicketAccessLog records an entry scan of a ticket.
type TicketAccessLog struct {
	ID         uint64    `json:"id"`                    // ticket_access_logs.id
	TicketID   uint64    `json:"ticket_id"`             // ticket_access_logs.ticket_id
	AccessedBy *uint64   `json:"accessed_by,omitempty"` // ticket_access_logs.accessed_by (nullable)
	AccessedAt time.Time `json:"access_time"`           // ticket_access_logs.accessed_at
	IPAddress  string    `json:"ip_address,omitempty"`  // ticket_access_logs.ip_address
	DeviceInfo string    `json:"device_info,omitempty"` // ticket_access_logs.device_info
}
