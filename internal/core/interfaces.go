package core

import (
	"time"

	"github.com/ebfe/scard"
)

// SmartCardContext represents a PC/SC context for listing readers,
// waiting on reader events and connecting to cards
type SmartCardContext interface {
	ListReaders() ([]string, error)
	GetStatusChange(states []scard.ReaderState, timeout time.Duration) error
	Connect(reader string, shareMode scard.ShareMode, protocol scard.Protocol) (SmartCard, error)
	Cancel() error
	Release() error
}

// SmartCard represents a connected smart card for transmitting commands
type SmartCard interface {
	Transmit(cmd []byte) ([]byte, error)
	Disconnect(disposition scard.Disposition) error
}

// ContextFactory creates SmartCardContext instances
// This allows for dependency injection and mocking in tests
type ContextFactory interface {
	EstablishContext() (SmartCardContext, error)
}

// DefaultContextFactory is the production factory that uses real PC/SC
type DefaultContextFactory struct{}
