package services

import "fmt"

// Transaction-scoped advisory locks key on the 64-bit hash of a namespaced
// string, so a package id and an organization id with the same numeric value
// never serialize against each other.
const advisoryLockSQL = "SELECT pg_advisory_xact_lock(hashtextextended($1, 0))"

func packageLockKey(packageID int64) string {
	return fmt.Sprintf("package:%d", packageID)
}

func organizationLockKey(orgID int64) string {
	return fmt.Sprintf("organization:%d", orgID)
}
