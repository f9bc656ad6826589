package probe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	minisign "github.com/jedisct1/go-minisign"
)

// HelperVerifier validates a detached Minisign signature over the helper
// binary before a session starts. The helper runs with cap_net_raw, so an
// operator can pin the exact binary the engine is allowed to launch.
type HelperVerifier struct {
	publicKey minisign.PublicKey
}

// NewHelperVerifier parses the provided Minisign public key (including the
// comment header) and returns a verifier bound to it.
func NewHelperVerifier(pubKey string) (*HelperVerifier, error) {
	pubKey = strings.TrimSpace(pubKey)
	if pubKey == "" {
		return nil, errors.New("minisign public key is required")
	}
	publicKey, err := minisign.DecodePublicKey(pubKey)
	if err != nil {
		return nil, fmt.Errorf("parse minisign public key: %w", err)
	}
	return &HelperVerifier{publicKey: publicKey}, nil
}

// Verify reads the helper binary and its detached signature from disk and
// validates the signature. An empty signaturePath defaults to
// helperPath+".minisig".
func (v *HelperVerifier) Verify(ctx context.Context, helperPath, signaturePath string) error {
	if v == nil {
		return errors.New("helper verifier not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(helperPath) == "" {
		return errors.New("helper path is required")
	}
	if strings.TrimSpace(signaturePath) == "" {
		signaturePath = helperPath + ".minisig"
	}

	signatureBytes, err := os.ReadFile(signaturePath)
	if err != nil {
		return fmt.Errorf("read signature %q: %w", signaturePath, err)
	}
	signature, err := minisign.DecodeSignature(string(signatureBytes))
	if err != nil {
		return fmt.Errorf("decode signature %q: %w", signaturePath, err)
	}
	helperBytes, err := os.ReadFile(helperPath)
	if err != nil {
		return fmt.Errorf("read helper %q: %w", helperPath, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	ok, err := v.publicKey.Verify(helperBytes, signature)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("helper signature verification failed")
	}
	return nil
}
