package console

import (
	"bufio"
	"fmt"
	"io"
	"sync"

	"github.com/ghalamif/PourFlow/internal/domain"
	"github.com/ghalamif/PourFlow/internal/ports"
)

// Source reads operator commands, one per line, from a reader such as stdin.
type Source struct {
	r io.Reader

	mu      sync.Mutex
	started bool
	stop    chan struct{}
	done    chan struct{}
	err     error
}

func NewSource(r io.Reader) *Source {
	return &Source{r: r}
}

func (s *Source) Start(out chan<- domain.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("console source already started")
	}
	s.started = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.read(out)
	return nil
}

func (s *Source) read(out chan<- domain.Command) {
	defer close(s.done)

	sc := bufio.NewScanner(s.r)
	for sc.Scan() {
		cmd, ok := domain.ParseCommand(sc.Text())
		if !ok {
			continue
		}
		select {
		case <-s.stop:
			return
		case out <- cmd:
		}
	}
	if err := sc.Err(); err != nil {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
	}
}

// Done is closed once the reader is exhausted or the source is stopped.
func (s *Source) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Stop ends delivery. A reader that is also an io.Closer is closed so a
// blocked read returns; plain stdin is left to EOF.
func (s *Source) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	close(s.stop)
	err := s.err
	s.mu.Unlock()

	if c, ok := s.r.(io.Closer); ok {
		if e := c.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}

var _ ports.CommandSource = (*Source)(nil)
