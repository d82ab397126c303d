package journal

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/ghalamif/PourFlow/internal/domain"
	"github.com/ghalamif/PourFlow/internal/ports"
)

const (
	logName  = "journal.log"
	metaName = "journal.meta"

	// entry format: [8 bytes id][4 bytes len][4 bytes crc32][len bytes json]
	headerLen = 16
)

var errTorn = errors.New("torn journal entry")

type Option func(*FileJournal)

// WithSyncOnAppend fsyncs the log after every append.
func WithSyncOnAppend() Option {
	return func(j *FileJournal) { j.syncOnAppend = true }
}

// FileJournal is an append-only log of dispense records with a separate
// commit watermark. A torn or corrupt tail is cut off on open.
type FileJournal struct {
	mu           sync.Mutex
	path         string
	metaPath     string
	file         *os.File
	writer       *bufio.Writer
	nextID       ports.JournalEntryID
	committed    ports.JournalEntryID
	sizeBytes    int64
	syncOnAppend bool
	closed       bool
}

func NewFileJournal(dir string, opts ...Option) (*FileJournal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	j := &FileJournal{
		path:     filepath.Join(dir, logName),
		metaPath: filepath.Join(dir, metaName),
	}
	for _, opt := range opts {
		opt(j)
	}
	if err := j.open(); err != nil {
		return nil, err
	}
	if err := j.loadCommitted(); err != nil {
		_ = j.file.Close()
		return nil, err
	}
	if j.nextID < j.committed {
		j.nextID = j.committed
	}
	return j, nil
}

func (j *FileJournal) open() error {
	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	valid, lastID, err := scan(f)
	if err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Truncate(valid); err != nil {
		_ = f.Close()
		return err
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		_ = f.Close()
		return err
	}
	j.file = f
	j.writer = bufio.NewWriterSize(f, 64<<10)
	j.sizeBytes = valid
	if lastID > j.nextID {
		j.nextID = lastID
	}
	return nil
}

// scan walks the log and returns the length of its intact prefix.
func scan(f *os.File) (int64, ports.JournalEntryID, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, 0, err
	}
	r := bufio.NewReader(f)
	var (
		offset int64
		lastID ports.JournalEntryID
	)
	for {
		id, body, err := readEntry(r)
		if errors.Is(err, io.EOF) || errors.Is(err, errTorn) {
			return offset, lastID, nil
		}
		if err != nil {
			return 0, 0, fmt.Errorf("journal scan: %w", err)
		}
		offset += int64(headerLen + len(body))
		lastID = id
	}
}

func readEntry(r *bufio.Reader) (ports.JournalEntryID, []byte, error) {
	var hdr [headerLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, nil, errTorn
		}
		return 0, nil, err
	}
	id := ports.JournalEntryID(binary.BigEndian.Uint64(hdr[0:8]))
	length := binary.BigEndian.Uint32(hdr[8:12])
	sum := binary.BigEndian.Uint32(hdr[12:16])

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, nil, errTorn
		}
		return 0, nil, err
	}
	if crc32.ChecksumIEEE(body) != sum {
		return 0, nil, errTorn
	}
	return id, body, nil
}

func (j *FileJournal) loadCommitted() error {
	data, err := os.ReadFile(j.metaPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	val := strings.TrimSpace(string(data))
	if val == "" {
		return nil
	}
	u, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return fmt.Errorf("journal meta parse: %w", err)
	}
	j.committed = ports.JournalEntryID(u)
	return nil
}

func (j *FileJournal) Append(r *domain.DispenseRecord) (ports.JournalEntryID, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return 0, errors.New("journal closed")
	}

	b, err := json.Marshal(r)
	if err != nil {
		return 0, err
	}
	id := j.nextID + 1

	var hdr [headerLen]byte
	binary.BigEndian.PutUint64(hdr[0:8], uint64(id))
	binary.BigEndian.PutUint32(hdr[8:12], uint32(len(b)))
	binary.BigEndian.PutUint32(hdr[12:16], crc32.ChecksumIEEE(b))

	if _, err := j.writer.Write(hdr[:]); err != nil {
		return 0, err
	}
	if _, err := j.writer.Write(b); err != nil {
		return 0, err
	}
	if err := j.writer.Flush(); err != nil {
		return 0, err
	}
	if j.syncOnAppend {
		if err := j.file.Sync(); err != nil {
			return 0, err
		}
	}

	j.nextID = id
	j.sizeBytes += int64(headerLen + len(b))
	return id, nil
}

func (j *FileJournal) Iterate(from ports.JournalEntryID, fn func(id ports.JournalEntryID, r *domain.DispenseRecord) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.writer.Flush(); err != nil {
		return err
	}
	return j.iterateLocked(from, func(id ports.JournalEntryID, body []byte) error {
		var rec domain.DispenseRecord
		if err := json.Unmarshal(body, &rec); err != nil {
			return fmt.Errorf("corrupt journal entry %d: %w", id, err)
		}
		return fn(id, &rec)
	})
}

func (j *FileJournal) iterateLocked(from ports.JournalEntryID, fn func(id ports.JournalEntryID, body []byte) error) error {
	f, err := os.Open(j.path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for {
		id, body, err := readEntry(r)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("corrupt journal: %w", err)
		}
		if id < from {
			continue
		}
		if err := fn(id, body); err != nil {
			return err
		}
	}
}

func (j *FileJournal) Commit(upto ports.JournalEntryID) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if upto > j.nextID {
		upto = j.nextID
	}
	if upto <= j.committed {
		return nil
	}
	j.committed = upto
	return j.persistMetaLocked()
}

// TruncateCommitted rewrites the log without the committed prefix.
func (j *FileJournal) TruncateCommitted() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return errors.New("journal closed")
	}
	if err := j.writer.Flush(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(j.path), logName+".*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	w := bufio.NewWriter(tmp)

	var size int64
	err = j.iterateLocked(j.committed+1, func(id ports.JournalEntryID, body []byte) error {
		var hdr [headerLen]byte
		binary.BigEndian.PutUint64(hdr[0:8], uint64(id))
		binary.BigEndian.PutUint32(hdr[8:12], uint32(len(body)))
		binary.BigEndian.PutUint32(hdr[12:16], crc32.ChecksumIEEE(body))
		if _, err := w.Write(hdr[:]); err != nil {
			return err
		}
		if _, err := w.Write(body); err != nil {
			return err
		}
		size += int64(headerLen + len(body))
		return nil
	})
	if err == nil {
		err = w.Flush()
	}
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("journal truncate: %w", err)
	}

	if err := j.file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, j.path); err != nil {
		return err
	}
	f, err := os.OpenFile(j.path, os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	j.file = f
	j.writer = bufio.NewWriterSize(f, 64<<10)
	j.sizeBytes = size
	return nil
}

func (j *FileJournal) Stats() ports.JournalStats {
	j.mu.Lock()
	defer j.mu.Unlock()
	return ports.JournalStats{
		OldestUncommitted: j.committed + 1,
		LatestAppended:    j.nextID,
		SizeBytes:         j.sizeBytes,
	}
}

func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	err := j.writer.Flush()
	if e := j.file.Sync(); e != nil {
		err = errors.Join(err, e)
	}
	if e := j.file.Close(); e != nil {
		err = errors.Join(err, e)
	}
	return err
}

func (j *FileJournal) persistMetaLocked() error {
	tmp := j.metaPath + ".tmp"
	if err := os.WriteFile(tmp, []byte(fmt.Sprintf("%d\n", j.committed)), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, j.metaPath)
}

var _ ports.Journal = (*FileJournal)(nil)
