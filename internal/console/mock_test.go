package console

import (
	"sync"
	"time"

	"github.com/SimplyPrint/card-uid/internal/core"
	"github.com/ebfe/scard"
)

// mockFactory implements core.ContextFactory for testing
type mockFactory struct {
	ctx *mockContext
	err error
}

func (f *mockFactory) EstablishContext() (core.SmartCardContext, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.ctx, nil
}

// mockContext implements core.SmartCardContext for testing
type mockContext struct {
	mu           sync.Mutex
	readers      []string
	listErr      error
	statusErr    error
	block        bool // GetStatusChange blocks until Cancel
	loseCancels  int  // Cancel calls ignored before one takes effect
	cancelCh     chan struct{}
	cancelOnce   sync.Once
	card         *mockCard
	connects     int
	statusCalls  int
	cancelCalls  int
	releaseCalls int
}

func newMockContext(readers ...string) *mockContext {
	return &mockContext{
		readers:  readers,
		cancelCh: make(chan struct{}),
	}
}

func (m *mockContext) ListReaders() ([]string, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.readers, nil
}

func (m *mockContext) GetStatusChange(states []scard.ReaderState, timeout time.Duration) error {
	m.mu.Lock()
	m.statusCalls++
	block := m.block
	m.mu.Unlock()

	if block {
		<-m.cancelCh
		return scard.ErrCancelled
	}
	if m.statusErr != nil {
		return m.statusErr
	}
	states[0].EventState = scard.StatePresent | scard.StateChanged
	return nil
}

func (m *mockContext) Connect(reader string, shareMode scard.ShareMode, protocol scard.Protocol) (core.SmartCard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connects++
	if m.card == nil {
		return nil, scard.ErrNoSmartcard
	}
	return m.card, nil
}

func (m *mockContext) Cancel() error {
	m.mu.Lock()
	m.cancelCalls++
	lost := m.cancelCalls <= m.loseCancels
	m.mu.Unlock()

	if !lost {
		m.cancelOnce.Do(func() { close(m.cancelCh) })
	}
	return nil
}

func (m *mockContext) counts() (status, cancels, releases int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusCalls, m.cancelCalls, m.releaseCalls
}

func (m *mockContext) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseCalls++
	return nil
}

// mockCard implements core.SmartCard for testing
type mockCard struct {
	response     []byte
	transmitErr  error
	hold         chan struct{} // Transmit blocks until closed
	entered      chan struct{} // signalled when Transmit starts
	transmits    int
	disconnected bool
}

func (c *mockCard) Transmit(cmd []byte) ([]byte, error) {
	c.transmits++
	if c.entered != nil {
		c.entered <- struct{}{}
	}
	if c.hold != nil {
		<-c.hold
	}
	if c.transmitErr != nil {
		return nil, c.transmitErr
	}
	return c.response, nil
}

func (c *mockCard) Disconnect(disposition scard.Disposition) error {
	c.disconnected = true
	return nil
}
