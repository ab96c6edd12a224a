// Package credential defines the Credential Resolver's external
// contract (§6): given a credential id and the acting user, return a
// decrypted secret map. At-rest encryption, storage, and rotation are
// explicitly out of scope (§1 Non-goals) — this package is the
// interface the Scheduler depends on, plus an in-memory fake for tests,
// grounded on the teacher's narrow-interface style
// (internal/workflow/webhooks.go's WebhookService).
package credential

import (
	"context"

	"github.com/nodeflow/engine/internal/engineerr"
)

// Resolver looks up and authorizes access to stored credentials.
type Resolver interface {
	// Resolve returns the decrypted secret map for credentialID, scoped
	// to tenantID. Returns engineerr.KindNotFound if no such credential
	// exists in the tenant.
	Resolve(ctx context.Context, tenantID, credentialID string) (map[string]interface{}, error)

	// CanAccess reports whether userID may use credentialID — e.g. an
	// RBAC or ownership check performed before Resolve is ever called.
	CanAccess(ctx context.Context, tenantID, userID, credentialID string) (bool, error)
}

// Fake is an in-memory Resolver for tests and local development; it is
// also the Resolver cmd/engine wires, since no stored-credential
// backend ships with the engine.
type Fake struct {
	Secrets map[string]map[string]interface{} // credentialID -> secret map
	Owners  map[string]string                 // credentialID -> userID allowed access
}

func NewFake() *Fake {
	return &Fake{
		Secrets: make(map[string]map[string]interface{}),
		Owners:  make(map[string]string),
	}
}

func (f *Fake) Put(credentialID string, secret map[string]interface{}, ownerUserID string) {
	f.Secrets[credentialID] = secret
	f.Owners[credentialID] = ownerUserID
}

func (f *Fake) Resolve(ctx context.Context, tenantID, credentialID string) (map[string]interface{}, error) {
	secret, ok := f.Secrets[credentialID]
	if !ok {
		return nil, engineerr.New(engineerr.KindNotFound, "credential not found: "+credentialID)
	}
	return secret, nil
}

func (f *Fake) CanAccess(ctx context.Context, tenantID, userID, credentialID string) (bool, error) {
	owner, ok := f.Owners[credentialID]
	if !ok {
		return false, engineerr.New(engineerr.KindNotFound, "credential not found: "+credentialID)
	}
	return owner == userID, nil
}
