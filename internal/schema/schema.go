package schema

import (
	"fmt"
	"strings"
)

// Role is a logical column role in a transactional dataset
type Role string

const (
	RoleDate     Role = "date"
	RoleItemID   Role = "item_id"
	RoleQuantity Role = "quantity"
	RoleCategory Role = "category"
	RolePrice    Role = "price"
	RolePromo    Role = "promo"
)

// resolutionOrder fixes the order roles claim columns in. Earlier roles
// win contested columns, so the important roles resolve first.
var resolutionOrder = []Role{RoleDate, RoleItemID, RoleQuantity, RoleCategory, RolePrice, RolePromo}

// Required reports whether the pipeline cannot run without this role mapped
func (r Role) Required() bool {
	switch r {
	case RoleDate, RoleItemID, RoleQuantity:
		return true
	}
	return false
}

// AllRoles returns every role in resolution order
func AllRoles() []Role {
	out := make([]Role, len(resolutionOrder))
	copy(out, resolutionOrder)
	return out
}

// ColumnMapping maps logical roles to physical column names.
// Once confirmed it is immutable; Remap produces a new mapping.
type ColumnMapping struct {
	Columns    map[Role]string  `json:"columns"`
	Confidence map[Role]float64 `json:"confidence"`
	Confirmed  bool             `json:"confirmed"`
}

// Column returns the physical column for a role, if mapped
func (m *ColumnMapping) Column(role Role) (string, bool) {
	col, ok := m.Columns[role]
	return col, ok
}

// Complete reports whether all required roles are mapped
func (m *ColumnMapping) Complete() bool {
	for _, role := range resolutionOrder {
		if !role.Required() {
			continue
		}
		if _, ok := m.Columns[role]; !ok {
			return false
		}
	}
	return true
}

// Confirm marks the mapping as confirmed. Fails if required roles are
// still unmapped.
func (m *ColumnMapping) Confirm() error {
	if !m.Complete() {
		return fmt.Errorf("cannot confirm mapping: missing required roles %v", m.MissingRequired())
	}
	m.Confirmed = true
	return nil
}

// MissingRequired returns the required roles that are not mapped
func (m *ColumnMapping) MissingRequired() []Role {
	var missing []Role
	for _, role := range resolutionOrder {
		if !role.Required() {
			continue
		}
		if _, ok := m.Columns[role]; !ok {
			missing = append(missing, role)
		}
	}
	return missing
}

// Remap returns a copy of the mapping with one role manually reassigned.
// Manual assignments carry full confidence and clear the confirmed flag
// so the caller re-confirms the result.
func (m *ColumnMapping) Remap(role Role, column string) *ColumnMapping {
	next := &ColumnMapping{
		Columns:    make(map[Role]string, len(m.Columns)),
		Confidence: make(map[Role]float64, len(m.Confidence)),
	}
	for r, c := range m.Columns {
		if c == column {
			continue // column can serve only one role
		}
		next.Columns[r] = c
		next.Confidence[r] = m.Confidence[r]
	}
	next.Columns[role] = column
	next.Confidence[role] = 1.0
	return next
}

// AmbiguousMappingError reports a tie between columns for a required role
type AmbiguousMappingError struct {
	Role    Role
	Columns []string
	Score   float64
}

func (e *AmbiguousMappingError) Error() string {
	return fmt.Sprintf("ambiguous mapping for role %s: columns %s tie at score %.2f",
		e.Role, strings.Join(e.Columns, ", "), e.Score)
}
