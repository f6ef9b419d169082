package core

import (
	"errors"
	"fmt"

	"github.com/ebfe/scard"
)

// StatusCode extracts the raw PC/SC status code carried by err.
// Returns false if err does not wrap a scard.Error.
func StatusCode(err error) (uint32, bool) {
	var code scard.Error
	if errors.As(err, &code) {
		return uint32(code), true
	}
	return 0, false
}

// FormatStatus renders err as the raw PC/SC status value (e.g. 0x8010001D).
// Errors that don't come from PC/SC fall back to their message.
func FormatStatus(err error) string {
	if code, ok := StatusCode(err); ok {
		return fmt.Sprintf("0x%08X", code)
	}
	return err.Error()
}
