// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package transport

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotLive is returned by dialers when the account resolves but has no
// active broadcast to join.
var ErrNotLive = errors.New("account is not live")

// BlockedError is the distinguished error class for platform denials:
// the platform refused the connection at the device or IP level rather
// than the account simply being offline. Blocks are terminal for the
// current attempt and feed the block tracker's cooldown curve.
type BlockedError struct {
	Handle  string
	Code    int
	Message string
}

func (e *BlockedError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("platform blocked connection for %s (code %d): %s", e.Handle, e.Code, e.Message)
	}
	return fmt.Sprintf("platform blocked connection for %s: %s", e.Handle, e.Message)
}

// blockSignatures are lowercase substrings of transport errors known to
// indicate a device/IP block rather than a transient failure. The platform
// does not always surface a clean status code, so signature matching backs
// up the typed error path. "platform blocked" keeps a stringified
// BlockedError classifiable after it has been flattened into a message.
var blockSignatures = []string{
	"status code 403",
	"handshake rejected",
	"access denied",
	"device blocked",
	"ip blocked",
	"platform blocked",
	"captcha",
	"rate limited by platform",
}

// MatchesBlockSignature reports whether msg contains a known block
// signature. The gateway uses it to classify error frames before an error
// value exists; IsBlocked covers the error-chain case.
func MatchesBlockSignature(msg string) bool {
	msg = strings.ToLower(msg)
	for _, sig := range blockSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// IsBlocked reports whether err indicates a platform-imposed block.
// It matches *BlockedError anywhere in the chain, then falls back to the
// known block signatures.
func IsBlocked(err error) bool {
	if err == nil {
		return false
	}

	var blocked *BlockedError
	if errors.As(err, &blocked) {
		return true
	}

	return MatchesBlockSignature(err.Error())
}
