package types

import (
	"context"
	"strings"
)

// Identity is an opaque principal. Two identities are the same principal
// exactly when they compare equal.
type Identity string

// String implements fmt.Stringer.
func (id Identity) String() string { return string(id) }

// Empty reports whether the identity is unset.
func (id Identity) Empty() bool { return strings.TrimSpace(string(id)) == "" }

// Validate checks that the identity is set and within length bounds.
func (id Identity) Validate(role string) error {
	if id.Empty() {
		return ErrInvalidCapability.Wrapf("%s identity is required", role)
	}
	if len(id) > MaxIdentityLength {
		return ErrInvalidCapability.Wrapf("%s identity longer than %d bytes", role, MaxIdentityLength)
	}
	return nil
}

// IdentityVerifier answers whether an identity has proven it signed the
// current operation. Cryptographic verification happens outside the module.
type IdentityVerifier interface {
	IsSigner(ctx context.Context, id Identity) bool
}

type signerKey struct{}

// WithSigner returns a context carrying id as an authenticated signer of the
// operation. Repeated calls accumulate signers.
func WithSigner(ctx context.Context, id Identity) context.Context {
	existing := SignersFromContext(ctx)
	signers := make([]Identity, 0, len(existing)+1)
	signers = append(signers, existing...)
	signers = append(signers, id)
	return context.WithValue(ctx, signerKey{}, signers)
}

// SignersFromContext returns the signers attached with WithSigner.
func SignersFromContext(ctx context.Context) []Identity {
	signers, _ := ctx.Value(signerKey{}).([]Identity)
	return signers
}

// ContextSigners verifies identities against the signers attached to the context.
type ContextSigners struct{}

var _ IdentityVerifier = ContextSigners{}

// IsSigner implements IdentityVerifier.
func (ContextSigners) IsSigner(ctx context.Context, id Identity) bool {
	if id.Empty() {
		return false
	}
	for _, s := range SignersFromContext(ctx) {
		if s == id {
			return true
		}
	}
	return false
}

// TrustAllSigners accepts every non-empty identity. It is meant for embedded
// deployments where the caller has already authenticated the identity.
type TrustAllSigners struct{}

var _ IdentityVerifier = TrustAllSigners{}

// IsSigner implements IdentityVerifier.
func (TrustAllSigners) IsSigner(_ context.Context, id Identity) bool {
	return !id.Empty()
}
