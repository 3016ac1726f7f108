package security

import (
	"fmt"

	"github.com/raminkhorsandi/framework/internal/gateway"
)

// AccessModules lists the application modules a role may enter.
type AccessModules struct {
	adapter *gateway.Adapter
}

// NewAccessModules creates a gateway to the access_modules table.
func NewAccessModules(adapter *gateway.Adapter) *AccessModules {
	return &AccessModules{adapter: adapter}
}

// ListByRoleID returns the module names granted to a role, ordered by name.
func (m *AccessModules) ListByRoleID(roleID int64) ([]string, error) {
	sel := gateway.NewSelect("access_modules").
		Columns("module_name").
		Where("role_id = ?", roleID).
		OrderBy("module_name")
	col, err := m.adapter.FetchCol(sel)
	if err != nil {
		return nil, fmt.Errorf("failed to list access modules of role %d: %w", roleID, err)
	}
	out := make([]string, 0, len(col))
	for _, v := range col {
		out = append(out, fmt.Sprint(v))
	}
	return out, nil
}

// Replace sets the modules of a role to exactly modules.
func (m *AccessModules) Replace(roleID int64, modules []string) error {
	return m.adapter.InTransaction(func(tx *gateway.Adapter) error {
		if _, err := tx.Exec("DELETE FROM access_modules WHERE role_id = ?", roleID); err != nil {
			return fmt.Errorf("failed to clear access modules of role %d: %w", roleID, err)
		}
		seen := make(map[string]bool, len(modules))
		for _, name := range modules {
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			if _, err := tx.Exec("INSERT INTO access_modules (role_id, module_name) VALUES (?, ?)", roleID, name); err != nil {
				return fmt.Errorf("failed to grant %s to role %d: %w", name, roleID, err)
			}
		}
		return nil
	})
}
