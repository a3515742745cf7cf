package attachments

import (
	"fmt"
	"sync"

	"github.com/selkane/auxilium/internal/domain"
	"github.com/selkane/auxilium/internal/events"
)

// Pending is the list of attachments waiting for the next send. It supports
// append and remove only; positions are never reordered.
type Pending struct {
	mu    sync.Mutex
	items []domain.Attachment
	pub   events.Publisher
}

func NewPending(pub events.Publisher) *Pending {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Pending{pub: pub}
}

func (p *Pending) Add(a domain.Attachment) {
	p.mu.Lock()
	p.items = append(p.items, a)
	n := len(p.items)
	p.mu.Unlock()

	p.pub.Publish(events.Event{Type: events.TypeAttachmentAdded, Count: n})
}

// Remove drops the attachment at index.
func (p *Pending) Remove(index int) error {
	p.mu.Lock()
	if index < 0 || index >= len(p.items) {
		p.mu.Unlock()
		return fmt.Errorf("attachment index %d out of range", index)
	}
	p.items = append(p.items[:index:index], p.items[index+1:]...)
	n := len(p.items)
	p.mu.Unlock()

	p.pub.Publish(events.Event{Type: events.TypeAttachmentRemoved, Count: n})
	return nil
}

func (p *Pending) List() []domain.Attachment {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Attachment(nil), p.items...)
}

func (p *Pending) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

// Take returns the current attachments and empties the list in one step.
func (p *Pending) Take() []domain.Attachment {
	p.mu.Lock()
	items := p.items
	p.items = nil
	p.mu.Unlock()

	if len(items) > 0 {
		p.pub.Publish(events.Event{Type: events.TypeAttachmentsCleared})
	}
	return items
}

// Restore puts previously taken attachments back in front of anything added
// since.
func (p *Pending) Restore(items []domain.Attachment) {
	if len(items) == 0 {
		return
	}
	p.mu.Lock()
	p.items = append(append([]domain.Attachment(nil), items...), p.items...)
	n := len(p.items)
	p.mu.Unlock()

	p.pub.Publish(events.Event{Type: events.TypeAttachmentAdded, Count: n})
}
