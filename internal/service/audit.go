package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// Change types written to change_logs.change_type.
const (
	ChangeStatus    = "estado"
	ChangeEventData = "datos evento"
	ChangeUserData  = "datos usuario"
)

// FieldChange is one differing field.
type FieldChange struct {
	Field string
	Old   string
	New   string
}

// ChangedFields is the ordered set of differences between two versions of
// an entity.  It is built explicitly by the code performing the update.
type ChangedFields []FieldChange

// Track records field when before and after differ.  Values are rendered with
// formatValue so that pointers, times and decimals compare by content.
func (c *ChangedFields) Track(field string, before, after any) {
	o, n := formatValue(before), formatValue(after)
	if o == n {
		return
	}
	*c = append(*c, FieldChange{Field: field, Old: o, New: n})
}

// Empty reports whether nothing changed.
func (c ChangedFields) Empty() bool { return len(c) == 0 }

// Has reports whether field was tracked as changed.
func (c ChangedFields) Has(field string) bool {
	for _, f := range c {
		if f.Field == field {
			return true
		}
	}
	return false
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case uint64:
		return strconv.FormatUint(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if x.IsZero() {
			return ""
		}
		return x.UTC().Format(time.RFC3339)
	case decimal.Decimal:
		return x.StringFixed(2)
	case *int:
		if x == nil {
			return ""
		}
		return strconv.Itoa(*x)
	case *uint64:
		if x == nil {
			return ""
		}
		return strconv.FormatUint(*x, 10)
	case *time.Time:
		if x == nil {
			return ""
		}
		return formatValue(*x)
	}
	return fmt.Sprint(v)
}

// AuditWriter turns ChangedFields into change_logs rows.
type AuditWriter struct{}

// Write stores one ChangeLog per tracked field.  The "status" field is
// logged with change type estado and every other field with dataType.
func (AuditWriter) Write(ctx context.Context, tx repository.Tx, entity string, entityID uint64, actor *uint64, dataType string, changes ChangedFields) error {
	if changes.Empty() {
		return nil
	}
	logs := make([]model.ChangeLog, 0, len(changes))
	for _, c := range changes {
		kind := dataType
		if c.Field == "status" {
			kind = ChangeStatus
		}
		logs = append(logs, model.ChangeLog{
			Entity:     entity,
			EntityID:   entityID,
			ChangedBy:  actor,
			ChangeType: kind,
			Field:      c.Field,
			OldValue:   c.Old,
			NewValue:   c.New,
		})
	}
	if err := tx.InsertChangeLogs(ctx, logs); err != nil {
		return fmt.Errorf("insert change logs: %w", err)
	}
	return nil
}

func actorRef(id uint64) *uint64 {
	if id == 0 {
		return nil
	}
	return &id
}
