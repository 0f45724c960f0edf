// Package main — repository layer construction, split out of main.go per
// the teacher's init_repos.go so the wire-up function itself stays
// readable as the dependency count grows.
package main

import (
	"database/sql"

	"github.com/chm413/mochi-link/repository"
)

// Repositories bundles every repository instance the service layer needs.
// A struct instead of a dozen loose variables keeps initServices' and
// main's signatures from ballooning with every new table.
type Repositories struct {
	Servers    repository.ServerRepository
	ACLs       repository.ACLRepository
	Tokens     repository.APITokenRepository
	PendingOps repository.PendingOperationRepository
	Players    repository.PlayerRepository
	Bindings   repository.GroupBindingRepository
	Audit      repository.AuditRepository
	Operators  repository.OperatorRepository
	Sessions   repository.OperatorSessionRepository
}

// initRepositories constructs every repository from one shared *sql.DB —
// the standard library's connection pool is safe to share across
// goroutines, so no per-repository connection management is needed.
// cipherKey, when non-nil, tells the server repository to encrypt
// rcon/terminal connectionConfig at rest.
func initRepositories(conn *sql.DB, cipherKey []byte) *Repositories {
	return &Repositories{
		Servers:    repository.NewSQLiteServerRepo(conn, cipherKey),
		ACLs:       repository.NewSQLiteACLRepo(conn),
		Tokens:     repository.NewSQLiteAPITokenRepo(conn),
		PendingOps: repository.NewSQLitePendingOpRepo(conn),
		Players:    repository.NewSQLitePlayerRepo(conn),
		Bindings:   repository.NewSQLiteBindingRepo(conn),
		Audit:      repository.NewSQLiteAuditRepo(conn),
		Operators:  repository.NewSQLiteOperatorRepo(conn),
		Sessions:   repository.NewSQLiteOperatorSessionRepo(conn),
	}
}
