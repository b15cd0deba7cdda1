// Package chat handles the messaging-platform webhook: signature
// verification, message events, and assistant replies.
package chat

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"

	dErrors "chefmate/pkg/domain-errors"
)

// VerifySignature authenticates a webhook body against the channel secret.
// The platform signs the raw request body with HMAC-SHA256 and sends the
// base64 digest in a header, so verification must see the exact bytes as
// received.
func VerifySignature(payload []byte, sigHeader, channelSecret string) error {
	if strings.TrimSpace(sigHeader) == "" {
		return dErrors.New(dErrors.CodeSignatureMissing, "signature header is required")
	}

	sent, err := base64.StdEncoding.DecodeString(sigHeader)
	if err != nil {
		return dErrors.New(dErrors.CodeSignatureInvalid, "invalid webhook signature")
	}

	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(payload)
	if !hmac.Equal(sent, mac.Sum(nil)) {
		return dErrors.New(dErrors.CodeSignatureInvalid, "invalid webhook signature")
	}
	return nil
}
