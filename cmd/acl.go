package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/raminkhorsandi/framework/internal/security"
	"github.com/raminkhorsandi/framework/internal/shared"
	"github.com/urfave/cli/v3"
)

// ruleArgs reads the role, resource and privileges of allow, deny and check.
// A resource that is not registered yet is added for allow and deny.
func (r *Runner) ruleArgs(cmd *cli.Command, register bool) (*security.ACL, string, security.Resource, []string, error) {
	acl, err := r.accessControl()
	if err != nil {
		return nil, "", nil, nil, err
	}
	role := cmd.String("role")

	var resource security.Resource
	if name := cmd.String("resource"); name != "" {
		resource = security.ResourceName(name)
		if !acl.Has(resource) {
			if !register {
				return nil, "", nil, nil, fmt.Errorf("%w: %s", security.ErrUnknownResource, name)
			}
			if err := acl.Add(resource); err != nil {
				return nil, "", nil, nil, err
			}
		}
	}
	return acl, role, resource, cmd.StringSlice("privilege"), nil
}

func describe(resource security.Resource, privileges []string) string {
	on := "every resource"
	if resource != nil {
		on = resource.ResourceID()
	}
	what := "every privilege"
	if len(privileges) > 0 {
		what = strings.Join(privileges, ", ")
	}
	return fmt.Sprintf("%s on %s", what, on)
}

// ACLRoles lists the registered roles.
func (r *Runner) ACLRoles(ctx context.Context, cmd *cli.Command) error {
	acl, err := r.accessControl()
	if err != nil {
		return err
	}
	for _, role := range acl.Roles() {
		r.writePlain("%s\n", role)
	}
	return nil
}

// ACLAddRole registers a role below an optional parent.
func (r *Runner) ACLAddRole(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("name")
	if name == "" {
		return fmt.Errorf("%w: role name", shared.ErrMissingArgument)
	}
	acl, err := r.accessControl()
	if err != nil {
		return err
	}
	if err := acl.AddRole(name, cmd.String("parent")); err != nil {
		return err
	}
	return r.writePlain("✓ Role %s added\n", name)
}

// ACLAllow grants privileges.
func (r *Runner) ACLAllow(ctx context.Context, cmd *cli.Command) error {
	acl, role, resource, privileges, err := r.ruleArgs(cmd, true)
	if err != nil {
		return err
	}
	if err := acl.Allow(role, resource, privileges...); err != nil {
		return err
	}
	return r.writePlain("✓ %s may use %s\n", role, describe(resource, privileges))
}

// ACLDeny refuses privileges.
func (r *Runner) ACLDeny(ctx context.Context, cmd *cli.Command) error {
	acl, role, resource, privileges, err := r.ruleArgs(cmd, true)
	if err != nil {
		return err
	}
	if err := acl.Deny(role, resource, privileges...); err != nil {
		return err
	}
	return r.writePlain("✗ %s may not use %s\n", role, describe(resource, privileges))
}

// ACLCheck evaluates every given privilege and prints allowed or denied per privilege.
func (r *Runner) ACLCheck(ctx context.Context, cmd *cli.Command) error {
	acl, role, resource, privileges, err := r.ruleArgs(cmd, false)
	if err != nil {
		return err
	}
	if len(privileges) == 0 {
		privileges = []string{security.AllPrivileges}
	}
	for _, privilege := range privileges {
		ok, err := acl.IsAllowed(role, resource, privilege)
		if err != nil {
			return err
		}
		verdict := "denied"
		if ok {
			verdict = "allowed"
		}
		r.writePlain("%s %s: %s\n", role, describe(resource, []string{privilege}), verdict)
	}
	return nil
}

// ACLModules lists, or with --set replaces, the access modules of a role.
func (r *Runner) ACLModules(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("role")
	if name == "" {
		return fmt.Errorf("%w: role name", shared.ErrMissingArgument)
	}
	acl, err := r.accessControl()
	if err != nil {
		return err
	}
	roleID, err := acl.RoleID(name)
	if err != nil {
		return err
	}

	modules := r.lib.AccessModules()
	if set := cmd.StringSlice("set"); len(set) > 0 {
		if err := modules.Replace(roleID, set); err != nil {
			return err
		}
	}

	names, err := modules.ListByRoleID(roleID)
	if err != nil {
		return err
	}
	for _, n := range names {
		r.writePlain("%s\n", n)
	}
	return nil
}
