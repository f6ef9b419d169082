package core

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SimplyPrint/card-uid/internal/logging"
	"github.com/ebfe/scard"
	"github.com/kr/pretty"
)

// GetUIDCommand is the PC/SC pseudo-APDU that asks the reader for the UID
// of the card in its field: FF CA 00 00 00
var GetUIDCommand = []byte{0xFF, 0xCA, 0x00, 0x00, 0x00}

// Errors identifying which PC/SC step failed. The underlying scard.Error is
// wrapped alongside them so StatusCode can still recover the raw code.
var (
	ErrListReaders  = errors.New("failed to list readers")
	ErrStatusChange = errors.New("failed to get status change")
	ErrConnect      = errors.New("failed to connect to card")
	ErrTransmit     = errors.New("failed to transmit")
)

// infiniteTimeout makes GetStatusChange block until the reader state changes.
const infiniteTimeout time.Duration = -1

// Reader is a PC/SC reader as presented to the user.
type Reader struct {
	Index int    `json:"index"` // 1-based position in the enumeration
	Name  string `json:"name"`
}

// Response is the raw reply to a transmitted APDU.
type Response struct {
	Raw []byte `json:"raw"`
}

// Bytes formats every byte of the response as lowercase hex separated by spaces.
func (r *Response) Bytes() string {
	parts := make([]string, len(r.Raw))
	for i, b := range r.Raw {
		parts[i] = fmt.Sprintf("%02x", b)
	}
	return strings.Join(parts, " ")
}

// StatusWords returns SW1 and SW2. ok is false for replies shorter than two bytes.
func (r *Response) StatusWords() (sw1, sw2 byte, ok bool) {
	if len(r.Raw) < 2 {
		return 0, 0, false
	}
	return r.Raw[len(r.Raw)-2], r.Raw[len(r.Raw)-1], true
}

// Success reports whether the reply ended with 90 00.
func (r *Response) Success() bool {
	sw1, sw2, ok := r.StatusWords()
	return ok && sw1 == 0x90 && sw2 == 0x00
}

// UID returns the response data without the status words.
func (r *Response) UID() []byte {
	if len(r.Raw) < 2 {
		return nil
	}
	return r.Raw[:len(r.Raw)-2]
}

// ListReaders returns the readers currently attached to the PC/SC subsystem.
// An empty reader list is not an error.
func ListReaders(ctx SmartCardContext) ([]Reader, error) {
	names, err := ctx.ListReaders()
	if errors.Is(err, scard.ErrNoReadersAvailable) {
		logging.Debug(logging.CatReader, "No readers available", nil)
		return []Reader{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrListReaders, err)
	}

	readers := make([]Reader, 0, len(names))
	for i, name := range names {
		readers = append(readers, Reader{Index: i + 1, Name: name})
	}

	logging.Debug(logging.CatReader, "Readers enumerated", map[string]any{
		"count": len(readers),
	})
	return readers, nil
}

// WaitForCard blocks until a card is present on the specified reader.
// There is no timeout; the wait only ends early if the context is cancelled.
func WaitForCard(ctx SmartCardContext, readerName string) error {
	rs := []scard.ReaderState{
		{
			Reader:       readerName,
			CurrentState: scard.StateEmpty,
		},
	}

	for {
		if err := ctx.GetStatusChange(rs, infiniteTimeout); err != nil {
			return fmt.Errorf("%w: %w", ErrStatusChange, err)
		}

		logging.Debug(logging.CatReader, "Reader state changed", map[string]any{
			"reader": readerName,
			"state":  pretty.Sprint(rs[0]),
		})

		if rs[0].EventState&scard.StatePresent != 0 {
			return nil
		}

		// Wait for the next transition from the state we just observed
		rs[0].CurrentState = rs[0].EventState &^ scard.StateChanged
	}
}

// ReadUID connects to the card on the specified reader and sends the Get UID
// command. The card is always disconnected with LeaveCard, so it stays powered.
func ReadUID(ctx SmartCardContext, readerName string) (*Response, error) {
	card, err := ctx.Connect(readerName, scard.ShareShared, scard.ProtocolT0|scard.ProtocolT1)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}
	defer func() {
		if err := card.Disconnect(scard.LeaveCard); err != nil {
			logging.Warn(logging.CatCard, "Failed to disconnect card", map[string]any{
				"reader": readerName,
				"error":  err.Error(),
			})
		}
	}()

	rsp, err := card.Transmit(GetUIDCommand)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransmit, err)
	}

	resp := &Response{Raw: rsp}
	sw1, sw2, _ := resp.StatusWords()
	logging.Info(logging.CatCard, "Get UID response", map[string]any{
		"reader":   readerName,
		"response": hex.EncodeToString(rsp),
		"uid":      hex.EncodeToString(resp.UID()),
		"status":   fmt.Sprintf("%02x%02x", sw1, sw2),
		"success":  resp.Success(),
	})

	return resp, nil
}

// IsCancelled reports whether err is the result of cancelling a blocking call.
func IsCancelled(err error) bool {
	return errors.Is(err, scard.ErrCancelled)
}
