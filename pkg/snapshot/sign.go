package snapshot

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"
)

// sign returns the signature trailer line for payload.
func sign(signer ssh.Signer, payload []byte) (string, error) {
	sig, err := signer.Sign(rand.Reader, payload)
	if err != nil {
		return "", err
	}
	pubB64 := base64.StdEncoding.EncodeToString(signer.PublicKey().Marshal())
	sigB64 := base64.StdEncoding.EncodeToString(sig.Blob)
	return fmt.Sprintf("%s%s:%s:%s", signaturePrefix, sig.Format, pubB64, sigB64), nil
}

// verify checks a signature trailer line against payload. The embedded key
// must equal trusted when trusted is set.
func verify(line string, payload []byte, trusted ssh.PublicKey) error {
	rest, ok := strings.CutPrefix(line, signaturePrefix)
	if !ok {
		return fmt.Errorf("%w: unexpected trailer %q", ErrFormat, line)
	}
	parts := strings.Split(rest, ":")
	if len(parts) != 3 {
		return fmt.Errorf("%w: expected format, key and signature", ErrSignature)
	}
	format, pubB64, sigB64 := parts[0], parts[1], parts[2]

	pubRaw, err := base64.StdEncoding.DecodeString(pubB64)
	if err != nil {
		return fmt.Errorf("%w: public key: %w", ErrSignature, err)
	}
	pub, err := ssh.ParsePublicKey(pubRaw)
	if err != nil {
		return fmt.Errorf("%w: public key: %w", ErrSignature, err)
	}
	if trusted != nil && !bytes.Equal(pub.Marshal(), trusted.Marshal()) {
		return fmt.Errorf("%w: signed by untrusted key %s", ErrSignature, ssh.FingerprintSHA256(pub))
	}
	blob, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return fmt.Errorf("%w: signature: %w", ErrSignature, err)
	}
	if err := pub.Verify(payload, &ssh.Signature{Format: format, Blob: blob}); err != nil {
		return fmt.Errorf("%w: %w", ErrSignature, err)
	}
	return nil
}

// Fingerprint returns the SHA256 fingerprint of the key a snapshot would be
// signed with.
func Fingerprint(s ssh.Signer) string {
	return ssh.FingerprintSHA256(s.PublicKey())
}
