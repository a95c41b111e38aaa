package storage

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/btcsuite/btcd/wire"
)

const (
	// DefaultMaxFileSize is the size at which a new block file is started.
	DefaultMaxFileSize = 128 << 20

	recordHeaderSize = 8
	blockFilePrefix  = "blk"
	undoFilePrefix   = "rev"
)

// Location addresses the payload of a record in a flat file.
type Location struct {
	File   uint32
	Offset uint32
}

// BlockStore keeps raw blocks and their undo records.
type BlockStore interface {
	WriteBlock(raw []byte) (Location, error)
	ReadBlock(loc Location) ([]byte, error)
	WriteUndo(raw []byte) (Location, error)
	ReadUndo(loc Location) ([]byte, error)
	// ForEachBlock visits stored blocks in write order.
	ForEachBlock(fn func(loc Location, raw []byte) error) error
	Sync() error
	Close() error
}

// NetMagic returns the four magic bytes framing records of net.
func NetMagic(net wire.BitcoinNet) [4]byte {
	var m [4]byte
	binary.LittleEndian.PutUint32(m[:], uint32(net))
	return m
}

// FlatFileStore writes blkNNNNN.dat and revNNNNN.dat files in the layout
// used by Bitcoin Core: every record is magic, little-endian length, payload.
type FlatFileStore struct {
	dir         string
	magic       [4]byte
	maxFileSize int64

	mu     sync.Mutex
	blocks *flatSeq
	undo   *flatSeq
}

type flatSeq struct {
	prefix string
	file   uint32
	size   int64
	w      *os.File
}

// OpenFlatFileStore opens the block files in dir, appending after the last one.
func OpenFlatFileStore(dir string, net wire.BitcoinNet, maxFileSize int64) (*FlatFileStore, error) {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, wrap("create blocks dir", err)
	}
	s := &FlatFileStore{
		dir:         dir,
		magic:       NetMagic(net),
		maxFileSize: maxFileSize,
		blocks:      &flatSeq{prefix: blockFilePrefix},
		undo:        &flatSeq{prefix: undoFilePrefix},
	}
	for _, seq := range []*flatSeq{s.blocks, s.undo} {
		files, err := s.files(seq.prefix)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			continue
		}
		seq.file = files[len(files)-1]
		info, err := os.Stat(s.path(seq.prefix, seq.file))
		if err != nil {
			return nil, wrap("stat block file", err)
		}
		seq.size = info.Size()
	}
	return s, nil
}

func (s *FlatFileStore) path(prefix string, file uint32) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s%05d.dat", prefix, file))
}

func (s *FlatFileStore) files(prefix string) ([]uint32, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, wrap("list block files", err)
	}
	var out []uint32
	for _, e := range entries {
		var n uint32
		name := e.Name()
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if _, err := fmt.Sscanf(name, prefix+"%05d.dat", &n); err != nil {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Files returns the paths of all block files in order.
func (s *FlatFileStore) Files() ([]string, error) {
	nums, err := s.files(blockFilePrefix)
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(nums))
	for i, n := range nums {
		paths[i] = s.path(blockFilePrefix, n)
	}
	return paths, nil
}

func (s *FlatFileStore) WriteBlock(raw []byte) (Location, error) {
	return s.write(s.blocks, raw)
}

func (s *FlatFileStore) WriteUndo(raw []byte) (Location, error) {
	return s.write(s.undo, raw)
}

func (s *FlatFileStore) ReadBlock(loc Location) ([]byte, error) {
	return s.read(blockFilePrefix, loc)
}

func (s *FlatFileStore) ReadUndo(loc Location) ([]byte, error) {
	return s.read(undoFilePrefix, loc)
}

func (s *FlatFileStore) write(seq *flatSeq, raw []byte) (Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq.size > 0 && seq.size+int64(len(raw))+recordHeaderSize > s.maxFileSize {
		if err := seq.closeWriter(); err != nil {
			return Location{}, wrap("close block file", err)
		}
		seq.file++
		seq.size = 0
	}
	if seq.w == nil {
		f, err := os.OpenFile(s.path(seq.prefix, seq.file), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return Location{}, wrap("open block file", err)
		}
		seq.w = f
	}

	var header [recordHeaderSize]byte
	copy(header[:4], s.magic[:])
	binary.LittleEndian.PutUint32(header[4:], uint32(len(raw)))
	if _, err := seq.w.Write(header[:]); err != nil {
		return Location{}, wrap("write record header", err)
	}
	if _, err := seq.w.Write(raw); err != nil {
		return Location{}, wrap("write record", err)
	}

	loc := Location{File: seq.file, Offset: uint32(seq.size + recordHeaderSize)}
	seq.size += int64(len(raw)) + recordHeaderSize
	return loc, nil
}

func (s *FlatFileStore) read(prefix string, loc Location) ([]byte, error) {
	if loc.Offset < recordHeaderSize {
		return nil, wrap("read record", fmt.Errorf("%w: offset %d", ErrCorrupt, loc.Offset))
	}
	f, err := os.Open(s.path(prefix, loc.File))
	if err != nil {
		return nil, wrap("open block file", err)
	}
	defer f.Close()

	var header [recordHeaderSize]byte
	if _, err := f.ReadAt(header[:], int64(loc.Offset)-recordHeaderSize); err != nil {
		return nil, wrap("read record header", err)
	}
	if [4]byte(header[:4]) != s.magic {
		return nil, wrap("read record header", fmt.Errorf("%w: bad magic %x", ErrCorrupt, header[:4]))
	}
	size := binary.LittleEndian.Uint32(header[4:])
	if size > wire.MaxBlockPayload {
		return nil, wrap("read record header", fmt.Errorf("%w: record size %d", ErrCorrupt, size))
	}
	raw := make([]byte, size)
	if _, err := f.ReadAt(raw, int64(loc.Offset)); err != nil {
		return nil, wrap("read record", err)
	}
	return raw, nil
}

func (s *FlatFileStore) ForEachBlock(fn func(loc Location, raw []byte) error) error {
	if err := s.Sync(); err != nil {
		return err
	}
	nums, err := s.files(blockFilePrefix)
	if err != nil {
		return err
	}
	for _, n := range nums {
		f, err := os.Open(s.path(blockFilePrefix, n))
		if err != nil {
			return wrap("open block file", err)
		}
		err = scanRecords(f, s.magic, func(offset int64, raw []byte) error {
			return fn(Location{File: n, Offset: uint32(offset)}, raw)
		})
		f.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *FlatFileStore) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, seq := range []*flatSeq{s.blocks, s.undo} {
		if seq.w == nil {
			continue
		}
		if err := seq.w.Sync(); err != nil {
			return wrap("sync block file", err)
		}
	}
	return nil
}

func (s *FlatFileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return wrap("close block files", errors.Join(s.blocks.closeWriter(), s.undo.closeWriter()))
}

func (q *flatSeq) closeWriter() error {
	if q.w == nil {
		return nil
	}
	err := errors.Join(q.w.Sync(), q.w.Close())
	q.w = nil
	return err
}

// ScanBlockFile reads framed records from r, skipping bytes until the next
// magic, and hands every payload to fn. Zero padding left by preallocation
// and truncated tails are tolerated.
func ScanBlockFile(r io.Reader, net wire.BitcoinNet, fn func(raw []byte) error) error {
	return scanRecords(r, NetMagic(net), func(_ int64, raw []byte) error {
		return fn(raw)
	})
}

// ScanBlockFilePath opens path and runs ScanBlockFile over it.
func ScanBlockFilePath(path string, net wire.BitcoinNet, fn func(raw []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return wrap("open import file", err)
	}
	defer f.Close()
	return ScanBlockFile(f, net, fn)
}

func scanRecords(r io.Reader, magic [4]byte, fn func(offset int64, raw []byte) error) error {
	br := bufio.NewReaderSize(r, 1<<20)
	var offset int64
	var window [4]byte
	filled := 0

	for {
		b, err := br.ReadByte()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return wrap("scan block file", err)
		}
		offset++

		if filled < 4 {
			window[filled] = b
			filled++
		} else {
			copy(window[:], window[1:])
			window[3] = b
		}
		if filled < 4 || window != magic {
			continue
		}
		filled = 0

		var size [4]byte
		if _, err := io.ReadFull(br, size[:]); err != nil {
			return nil
		}
		offset += 4
		n := binary.LittleEndian.Uint32(size[:])
		if n < wire.MaxBlockHeaderPayload || n > wire.MaxBlockPayload {
			continue
		}
		raw := make([]byte, n)
		if _, err := io.ReadFull(br, raw); err != nil {
			return nil
		}
		start := offset
		offset += int64(n)
		if err := fn(start, raw); err != nil {
			return err
		}
	}
}

// MemoryBlockStore keeps records in memory; File is always zero and Offset
// is the record index.
type MemoryBlockStore struct {
	mu     sync.RWMutex
	blocks [][]byte
	undo   [][]byte
}

// NewMemoryBlockStore returns an empty store.
func NewMemoryBlockStore() *MemoryBlockStore {
	return &MemoryBlockStore{}
}

func (m *MemoryBlockStore) WriteBlock(raw []byte) (Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks = append(m.blocks, append([]byte(nil), raw...))
	return Location{Offset: uint32(len(m.blocks) - 1)}, nil
}

func (m *MemoryBlockStore) WriteUndo(raw []byte) (Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.undo = append(m.undo, append([]byte(nil), raw...))
	return Location{Offset: uint32(len(m.undo) - 1)}, nil
}

func (m *MemoryBlockStore) ReadBlock(loc Location) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if loc.File != 0 || int(loc.Offset) >= len(m.blocks) {
		return nil, wrap("read block", fmt.Errorf("%w: %+v", ErrNotFound, loc))
	}
	return m.blocks[loc.Offset], nil
}

func (m *MemoryBlockStore) ReadUndo(loc Location) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if loc.File != 0 || int(loc.Offset) >= len(m.undo) {
		return nil, wrap("read undo", fmt.Errorf("%w: %+v", ErrNotFound, loc))
	}
	return m.undo[loc.Offset], nil
}

func (m *MemoryBlockStore) ForEachBlock(fn func(loc Location, raw []byte) error) error {
	m.mu.RLock()
	blocks := m.blocks
	m.mu.RUnlock()
	for i, raw := range blocks {
		if err := fn(Location{Offset: uint32(i)}, raw); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryBlockStore) Sync() error { return nil }

func (m *MemoryBlockStore) Close() error { return nil }
