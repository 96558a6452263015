package permit

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// SignedBundle is a rule snapshot with a detached ed25519 signature per
// rule, keyed by rule id. Bundles let a trusted authoring environment ship
// rules to an engine that only holds the public key.
type SignedBundle struct {
	Snapshot   Snapshot          `json:"snapshot"`
	Signatures map[string]string `json:"signatures"`
	Meta       map[string]any    `json:"meta,omitempty"`
}

// PolicyChecksum returns a deterministic hash of a policy's rule content
// (statements, priority, tenant, activation), ignoring timestamps.
func PolicyChecksum(p *Policy) string {
	data, _ := json.Marshal(struct {
		Name       string
		Version    string
		Statements []Statement
		IsActive   bool
		Priority   int
		TenantID   string
	}{p.Name, p.Version, p.Statements, p.IsActive, p.Priority, p.TenantID})
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// PermissionChecksum is PolicyChecksum's counterpart for permissions.
func PermissionChecksum(p *Permission) string {
	data, _ := json.Marshal(struct {
		Name     string
		Resource string
		Actions  []string
		Effect   Effect
		Priority int
		TenantID string
	}{p.Name, p.Resource, p.Actions, p.Effect, p.Priority, p.TenantID})
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

func signRule(priv ed25519.PrivateKey, id, checksum string) (string, error) {
	data, err := json.Marshal(struct {
		ID       string
		Checksum string
	}{id, checksum})
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ed25519.Sign(priv, data)), nil
}

func verifyRule(pub ed25519.PublicKey, id, checksum, sigB64 string) bool {
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return false
	}
	data, err := json.Marshal(struct {
		ID       string
		Checksum string
	}{id, checksum})
	if err != nil {
		return false
	}
	return ed25519.Verify(pub, data, sig)
}

// SignSnapshot signs every rule in the snapshot with priv.
func SignSnapshot(priv ed25519.PrivateKey, snapshot Snapshot) (*SignedBundle, error) {
	b := &SignedBundle{Snapshot: snapshot, Signatures: make(map[string]string)}
	for _, p := range snapshot.Policies {
		sig, err := signRule(priv, p.ID, PolicyChecksum(p))
		if err != nil {
			return nil, err
		}
		b.Signatures[p.ID] = sig
	}
	for _, p := range snapshot.Permissions {
		sig, err := signRule(priv, p.ID, PermissionChecksum(p))
		if err != nil {
			return nil, err
		}
		b.Signatures[p.ID] = sig
	}
	return b, nil
}

// VerifyBundle checks every rule's signature against pub.
func VerifyBundle(pub ed25519.PublicKey, b *SignedBundle) error {
	for _, p := range b.Snapshot.Policies {
		sig, ok := b.Signatures[p.ID]
		if !ok {
			return fmt.Errorf("missing signature for policy %s", p.ID)
		}
		if !verifyRule(pub, p.ID, PolicyChecksum(p), sig) {
			return fmt.Errorf("bad signature for policy %s", p.ID)
		}
	}
	for _, p := range b.Snapshot.Permissions {
		sig, ok := b.Signatures[p.ID]
		if !ok {
			return fmt.Errorf("missing signature for permission %s", p.ID)
		}
		if !verifyRule(pub, p.ID, PermissionChecksum(p), sig) {
			return fmt.Errorf("bad signature for permission %s", p.ID)
		}
	}
	return nil
}

// ApplySignedBundle verifies the bundle and loads it through the trusted
// bulk-import path. A verification failure leaves the store untouched.
func (e *Engine) ApplySignedBundle(pub ed25519.PublicKey, b *SignedBundle) error {
	if err := VerifyBundle(pub, b); err != nil {
		return fmt.Errorf("bundle verification failed: %w", err)
	}
	e.BulkImport(b.Snapshot)
	return nil
}
