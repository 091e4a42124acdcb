package sheetgrid

import (
	"html/template"
	"sync"
)

// Surface receives the complete rendered output on every state change and
// replaces whatever it showed before.
type Surface interface {
	Replace(body template.HTML) error
}

// Buffer is an in-memory Surface holding the latest body markup.
type Buffer struct {
	mu      sync.Mutex
	body    template.HTML
	renders int
}

func (b *Buffer) Replace(body template.HTML) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.body = body
	b.renders++
	return nil
}

// Body returns the last markup passed to Replace.
func (b *Buffer) Body() template.HTML {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.body
}

// Renders counts Replace calls.
func (b *Buffer) Renders() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.renders
}
