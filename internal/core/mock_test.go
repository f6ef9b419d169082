package core

import (
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/ebfe/scard"
)

// MockSmartCardContext implements SmartCardContext for testing
type MockSmartCardContext struct {
	mu           sync.Mutex
	readers      []string
	listErr      error
	cards        map[string]*MockSmartCard
	connectErr   error
	events       []scard.StateFlag // event states reported by successive GetStatusChange calls
	statusErr    error
	seenStates   []scard.StateFlag // CurrentState passed to each GetStatusChange call
	connects     int
	cancelled    bool
	releaseCalls int
}

// MockSmartCard implements SmartCard for testing
type MockSmartCard struct {
	mu           sync.Mutex
	uid          []byte
	responses    map[string][]byte // command hex -> response
	transmitErr  error
	transmitted  [][]byte
	disconnected bool
	disposition  scard.Disposition
}

// NewMockContext creates a new mock context with predefined readers
func NewMockContext() *MockSmartCardContext {
	return &MockSmartCardContext{
		readers: []string{
			"ACS ACR122U PICC Interface",
			"ACS ACR1252 Dual Reader PICC",
		},
		cards: make(map[string]*MockSmartCard),
	}
}

// WithReaders sets the readers for the mock context
func (m *MockSmartCardContext) WithReaders(readers []string) *MockSmartCardContext {
	m.readers = readers
	return m
}

// WithListError makes ListReaders fail
func (m *MockSmartCardContext) WithListError(err error) *MockSmartCardContext {
	m.listErr = err
	return m
}

// WithCard adds a mock card to a specific reader
func (m *MockSmartCardContext) WithCard(readerName string, card *MockSmartCard) *MockSmartCardContext {
	m.cards[readerName] = card
	return m
}

// WithConnectError makes Connect fail
func (m *MockSmartCardContext) WithConnectError(err error) *MockSmartCardContext {
	m.connectErr = err
	return m
}

// WithEvents queues the event states returned by GetStatusChange
func (m *MockSmartCardContext) WithEvents(events ...scard.StateFlag) *MockSmartCardContext {
	m.events = events
	return m
}

// WithStatusError makes GetStatusChange fail
func (m *MockSmartCardContext) WithStatusError(err error) *MockSmartCardContext {
	m.statusErr = err
	return m
}

func (m *MockSmartCardContext) ListReaders() ([]string, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.readers, nil
}

func (m *MockSmartCardContext) GetStatusChange(states []scard.ReaderState, timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seenStates = append(m.seenStates, states[0].CurrentState)
	if m.statusErr != nil {
		return m.statusErr
	}
	if len(m.events) == 0 {
		return errors.New("mock: no more events queued")
	}
	states[0].EventState = m.events[0] | scard.StateChanged
	m.events = m.events[1:]
	return nil
}

func (m *MockSmartCardContext) Connect(reader string, shareMode scard.ShareMode, protocol scard.Protocol) (SmartCard, error) {
	m.mu.Lock()
	m.connects++
	m.mu.Unlock()

	if m.connectErr != nil {
		return nil, m.connectErr
	}
	card, ok := m.cards[reader]
	if !ok {
		return nil, scard.ErrNoSmartcard
	}
	return card, nil
}

func (m *MockSmartCardContext) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = true
	return nil
}

func (m *MockSmartCardContext) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseCalls++
	return nil
}

// NewMockCard creates a mock card that answers Get UID with the given UID
func NewMockCard(uidHex string) *MockSmartCard {
	card := &MockSmartCard{
		responses: make(map[string][]byte),
	}
	card.uid, _ = hex.DecodeString(uidHex)
	card.responses["ffca000000"] = append(append([]byte{}, card.uid...), 0x90, 0x00)
	return card
}

// WithTransmitError makes Transmit fail
func (m *MockSmartCard) WithTransmitError(err error) *MockSmartCard {
	m.transmitErr = err
	return m
}

func (m *MockSmartCard) Transmit(cmd []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.transmitted = append(m.transmitted, cmd)
	if m.transmitErr != nil {
		return nil, m.transmitErr
	}
	if rsp, ok := m.responses[hex.EncodeToString(cmd)]; ok {
		return rsp, nil
	}
	return []byte{0x6A, 0x81}, nil // Function not supported
}

func (m *MockSmartCard) Disconnect(disposition scard.Disposition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnected = true
	m.disposition = disposition
	return nil
}

func hexEncodeString(b []byte) string {
	return hex.EncodeToString(b)
}
