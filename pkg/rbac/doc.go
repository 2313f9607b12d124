// Package rbac implements role-based access control.
//
// Three independent mechanisms live here:
//
//   - Write-time grants: when a user writes an RBAC-managed entity, the
//     entity records, per access verb, the groups of that user granting
//     the verb (",ops,noc,"). The snapshot is replaced on every write.
//   - Read-time visibility: non-admin users only see the pools they belong
//     to and the devices and links of those pools.
//   - Endpoint table: every (HTTP method, endpoint) pair requires one of
//     the levels none, access or admin.
package rbac
