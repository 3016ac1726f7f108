package security

import (
	"fmt"
	"sort"
	"sync"

	"github.com/casbin/casbin/v2"
	casbinmodel "github.com/casbin/casbin/v2/model"
	"github.com/charmbracelet/log"
	"github.com/raminkhorsandi/framework/internal/gateway"
)

// AllPrivileges matches every privilege. As a policy object it stands for every resource.
const AllPrivileges = "*"

// Permission is the effect of a rule.
type Permission string

const (
	Allow Permission = "allow"
	Deny  Permission = "deny"
)

// Resource is anything addressable by the ACL, such as a stored model.
type Resource interface {
	ResourceID() string
}

// ResourceName is a plain resource identifier.
type ResourceName string

func (r ResourceName) ResourceID() string { return string(r) }

// policyModel is RBAC with role inheritance in g and resource inheritance in g2.
const policyModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act, eft

[role_definition]
g = _, _
g2 = _, _

[policy_effect]
e = some(where (p.eft == allow)) && !some(where (p.eft == deny))

[matchers]
m = g(r.sub, p.sub) && (g2(r.obj, p.obj) || p.obj == "*") && (r.act == p.act || p.act == "*")
`

type node struct {
	id     int64
	parent string
}

// ACL holds roles, resources and rules in a casbin enforcer and mirrors them into the roles,
// resources and privileges tables. It is safe for concurrent use.
type ACL struct {
	adapter *gateway.Adapter
	logger  *log.Logger

	mu        sync.RWMutex
	enforcer  *casbin.Enforcer
	roles     map[string]node
	resources map[string]node
}

// New creates an ACL loaded with the persisted roles, resources and rules.
func New(adapter *gateway.Adapter, logger *log.Logger) (*ACL, error) {
	a := &ACL{adapter: adapter, logger: logger}
	if err := a.Load(); err != nil {
		return nil, err
	}
	return a, nil
}

func newEnforcer() (*casbin.Enforcer, error) {
	m, err := casbinmodel.NewModelFromString(policyModel)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrACL, err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrACL, err)
	}
	return e, nil
}

// Load replaces the in-memory state with the persisted one. File bound privileges are not ACL rules
// and are skipped.
func (a *ACL) Load() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	roles, err := a.loadTree("roles")
	if err != nil {
		return err
	}
	resources, err := a.loadTree("resources")
	if err != nil {
		return err
	}

	roleNames := names(roles)
	resourceNames := names(resources)
	rows, err := a.adapter.FetchAll(gateway.NewSelect("privileges").
		Columns("role_id", "resource_id", "privilege", "permission").
		Where("file_id IS NULL"))
	if err != nil {
		return fmt.Errorf("failed to load privileges: %w", err)
	}

	var policies [][]string
	for _, row := range rows {
		roleID, _ := gateway.ToInt64(row["role_id"])
		role, ok := roleNames[roleID]
		if !ok {
			continue
		}
		resource := AllPrivileges
		if id, ok := gateway.ToInt64(row["resource_id"]); ok {
			if resource, ok = resourceNames[id]; !ok {
				continue
			}
		}
		policies = append(policies, []string{role, resource, fmt.Sprint(row["privilege"]), fmt.Sprint(row["permission"])})
	}

	e, err := newEnforcer()
	if err != nil {
		return err
	}
	if err := addLinks(e, "g", roles); err != nil {
		return err
	}
	if err := addLinks(e, "g2", resources); err != nil {
		return err
	}
	if len(policies) > 0 {
		if _, err := e.AddPoliciesEx(policies); err != nil {
			return fmt.Errorf("%w: %v", ErrACL, err)
		}
	}

	a.enforcer, a.roles, a.resources = e, roles, resources
	a.logger.Debug("acl loaded", "roles", len(roles), "resources", len(resources), "rules", len(policies))
	return nil
}

func addLinks(e *casbin.Enforcer, ptype string, tree map[string]node) error {
	var links [][]string
	for name, n := range tree {
		if n.parent != "" {
			links = append(links, []string{name, n.parent})
		}
	}
	if len(links) == 0 {
		return nil
	}
	if _, err := e.AddNamedGroupingPoliciesEx(ptype, links); err != nil {
		return fmt.Errorf("%w: %v", ErrACL, err)
	}
	return nil
}

func (a *ACL) loadTree(table string) (map[string]node, error) {
	rows, err := a.adapter.FetchAll(gateway.NewSelect(table).Columns("id", "name", "parent_id"))
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", table, err)
	}
	byID := make(map[int64]string, len(rows))
	for _, row := range rows {
		id, _ := gateway.ToInt64(row["id"])
		byID[id] = fmt.Sprint(row["name"])
	}
	tree := make(map[string]node, len(rows))
	for _, row := range rows {
		id, _ := gateway.ToInt64(row["id"])
		n := node{id: id}
		if pid, ok := gateway.ToInt64(row["parent_id"]); ok {
			n.parent = byID[pid]
		}
		tree[byID[id]] = n
	}
	return tree, nil
}

func names(tree map[string]node) map[int64]string {
	out := make(map[int64]string, len(tree))
	for name, n := range tree {
		out[n.id] = name
	}
	return out
}

// AddRole registers a role below an optional parent role.
func (a *ACL) AddRole(name, parent string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addNode("roles", "g", a.roles, name, parent, ErrUnknownRole)
}

// HasRole reports whether the role is registered.
func (a *ACL) HasRole(name string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.roles[name]
	return ok
}

// Roles returns the registered role names in order.
func (a *ACL) Roles() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, 0, len(a.roles))
	for name := range a.roles {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// RoleID returns the database id of a role.
func (a *ACL) RoleID(name string) (int64, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	n, ok := a.roles[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownRole, name)
	}
	return n.id, nil
}

// Add registers a resource by its resource id, optionally below a parent resource.
func (a *ACL) Add(r Resource, parent ...Resource) error {
	var p string
	if len(parent) > 0 && parent[0] != nil {
		p = parent[0].ResourceID()
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addNode("resources", "g2", a.resources, r.ResourceID(), p, ErrUnknownResource)
}

func (a *ACL) addNode(table, ptype string, tree map[string]node, name, parent string, unknown error) error {
	if name == "" || name == AllPrivileges {
		return fmt.Errorf("%w: invalid name %q in %s", ErrACL, name, table)
	}
	if _, ok := tree[name]; ok {
		return fmt.Errorf("%w: %s in %s", ErrDuplicate, name, table)
	}
	values := map[string]any{"name": name}
	if parent != "" {
		p, ok := tree[parent]
		if !ok {
			return fmt.Errorf("%w: parent %s", unknown, parent)
		}
		values["parent_id"] = p.id
	}
	id, err := a.adapter.Table(table).Insert(values)
	if err != nil {
		return fmt.Errorf("failed to store %s in %s: %w", name, table, err)
	}
	if parent != "" {
		if _, err := a.enforcer.AddNamedGroupingPolicy(ptype, name, parent); err != nil {
			return fmt.Errorf("%w: %v", ErrACL, err)
		}
	}
	tree[name] = node{id: id, parent: parent}
	a.logger.Debug("acl node added", "table", table, "name", name, "parent", parent)
	return nil
}

// Has reports whether a resource is registered. Resources stored since the ACL was loaded are
// picked up from the database.
func (a *ACL) Has(r Resource) bool {
	name := r.ResourceID()
	a.mu.RLock()
	_, ok := a.resources[name]
	a.mu.RUnlock()
	if ok {
		return true
	}

	row, err := a.adapter.FetchAll(gateway.NewSelect("resources").
		Columns("id", "parent_id").Where("name = ?", name).Limit(1))
	if err != nil {
		a.logger.Warn("failed to look up resource", "name", name, "error", err)
		return false
	}
	if len(row) == 0 {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	id, _ := gateway.ToInt64(row[0]["id"])
	n := node{id: id}
	if pid, ok := gateway.ToInt64(row[0]["parent_id"]); ok {
		n.parent = names(a.resources)[pid]
	}
	if n.parent != "" {
		if _, err := a.enforcer.AddNamedGroupingPolicy("g2", name, n.parent); err != nil {
			a.logger.Warn("failed to link resource", "name", name, "parent", n.parent, "error", err)
		}
	}
	a.resources[name] = n
	return true
}

// Allow grants privileges of role on resource. A nil resource means every resource and no
// privileges mean [AllPrivileges].
func (a *ACL) Allow(role string, r Resource, privileges ...string) error {
	return a.setRule(Allow, role, r, privileges)
}

// Deny refuses privileges of role on resource, with the same conventions as [ACL.Allow].
func (a *ACL) Deny(role string, r Resource, privileges ...string) error {
	return a.setRule(Deny, role, r, privileges)
}

// target resolves the role id and the policy object of a rule.
func (a *ACL) target(role string, r Resource) (int64, string, any, error) {
	roleNode, ok := a.roles[role]
	if !ok {
		return 0, "", nil, fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	if r == nil {
		return roleNode.id, AllPrivileges, nil, nil
	}
	resource := r.ResourceID()
	n, ok := a.resources[resource]
	if !ok {
		return 0, "", nil, fmt.Errorf("%w: %s", ErrUnknownResource, resource)
	}
	return roleNode.id, resource, n.id, nil
}

func (a *ACL) setRule(p Permission, role string, r Resource, privileges []string) error {
	if len(privileges) == 0 {
		privileges = []string{AllPrivileges}
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	roleID, object, resourceID, err := a.target(role, r)
	if err != nil {
		return err
	}

	var added [][]string
	err = a.adapter.InTransaction(func(tx *gateway.Adapter) error {
		for _, privilege := range privileges {
			rule := []string{role, object, privilege, string(p)}
			has, err := a.enforcer.HasPolicy(rule)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrACL, err)
			}
			if has {
				continue
			}
			_, err = tx.Table("privileges").Insert(map[string]any{
				"role_id":     roleID,
				"resource_id": resourceID,
				"privilege":   privilege,
				"permission":  string(p),
			})
			if err != nil {
				return fmt.Errorf("failed to store %s rule: %w", p, err)
			}
			added = append(added, rule)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, rule := range added {
		if _, err := a.enforcer.AddPolicy(rule); err != nil {
			return fmt.Errorf("%w: %v", ErrACL, err)
		}
		a.logger.Debug("acl rule added", "permission", p, "role", role, "resource", rule[1], "privilege", rule[2])
	}
	return nil
}

// RemoveRules drops every rule of role on resource for the given privileges.
func (a *ACL) RemoveRules(role string, r Resource, privileges ...string) error {
	if len(privileges) == 0 {
		privileges = []string{AllPrivileges}
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	roleID, object, resourceID, err := a.target(role, r)
	if err != nil {
		return err
	}
	where := "role_id = ? AND resource_id IS NULL AND privilege = ? AND file_id IS NULL"
	if r != nil {
		where = "role_id = ? AND resource_id = ? AND privilege = ? AND file_id IS NULL"
	}

	for _, privilege := range privileges {
		args := []any{roleID, privilege}
		if r != nil {
			args = []any{roleID, resourceID, privilege}
		}
		if _, err := a.adapter.Table("privileges").Delete(where, args...); err != nil {
			return fmt.Errorf("failed to remove rules: %w", err)
		}
		for _, p := range []Permission{Allow, Deny} {
			if _, err := a.enforcer.RemovePolicy(role, object, privilege, string(p)); err != nil {
				return fmt.Errorf("%w: %v", ErrACL, err)
			}
		}
	}
	return nil
}

// IsAllowed evaluates whether role may use privilege on resource. A nil resource asks for the
// global rules only and an empty privilege asks for every privilege.
func (a *ACL) IsAllowed(role string, r Resource, privilege string) (bool, error) {
	if privilege == "" {
		privilege = AllPrivileges
	}
	a.mu.RLock()
	defer a.mu.RUnlock()

	if _, ok := a.roles[role]; !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	object := AllPrivileges
	if r != nil {
		object = r.ResourceID()
		if _, ok := a.resources[object]; !ok {
			return false, fmt.Errorf("%w: %s", ErrUnknownResource, object)
		}
	}

	ok, err := a.enforcer.Enforce(role, object, privilege)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrACL, err)
	}
	return ok, nil
}
