// Package security evaluates access rules for roles on resources.
//
// Roles and resources form trees through optional parents. Rules grant or deny a privilege of a
// role on a resource; an empty resource covers every resource and [AllPrivileges] covers every
// privilege. Everything added to an [ACL] is persisted in the roles, resources and privileges
// tables, and a fresh ACL starts from what is stored there.
//
// Evaluation runs on a casbin RBAC enforcer. Role parents are g links and resource parents are g2
// links, so a rule reaches a role's descendants and a resource's descendants. A request is allowed
// when some matching rule allows it and no matching rule denies it. Nothing found means deny.
package security
