package core

import (
	"time"

	"github.com/ebfe/scard"
)

// EstablishContext opens a user-scoped PC/SC context.
func (DefaultContextFactory) EstablishContext() (SmartCardContext, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, err
	}
	return &pcscContext{ctx: ctx}, nil
}

// pcscContext adapts *scard.Context to SmartCardContext.
type pcscContext struct {
	ctx *scard.Context
}

func (c *pcscContext) ListReaders() ([]string, error) {
	return c.ctx.ListReaders()
}

func (c *pcscContext) GetStatusChange(states []scard.ReaderState, timeout time.Duration) error {
	return c.ctx.GetStatusChange(states, timeout)
}

func (c *pcscContext) Connect(reader string, shareMode scard.ShareMode, protocol scard.Protocol) (SmartCard, error) {
	card, err := c.ctx.Connect(reader, shareMode, protocol)
	if err != nil {
		return nil, err
	}
	return card, nil
}

func (c *pcscContext) Cancel() error {
	return c.ctx.Cancel()
}

func (c *pcscContext) Release() error {
	return c.ctx.Release()
}
