package announce

import (
	"fmt"
	"io"
	"sync"

	"github.com/ghalamif/PourFlow/internal/ports"
)

// Writer prints every announcement on its own line.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (a *Writer) Announce(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fmt.Fprintln(a.w, text)
}

// Multi fans announcements out to several announcers in order.
type Multi []ports.Announcer

func (m Multi) Announce(text string) {
	for _, a := range m {
		if a != nil {
			a.Announce(text)
		}
	}
}

var (
	_ ports.Announcer = (*Writer)(nil)
	_ ports.Announcer = Multi(nil)
)
