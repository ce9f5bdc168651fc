package target

import (
	"cmp"
	"encoding/binary"
	"errors"
	"slices"
	"sort"

	"github.com/Manu343726/framevars/pkg/utils"
	"golang.org/x/exp/constraints"
)

var ErrSegfault = errors.New("segmentation fault")

type MemoryReader interface {
	ReadMemory(address uint64, size int) ([]byte, error)
}

type MemoryWriter interface {
	WriteMemory(address uint64, data []byte) error
}

// memory is the set of mapped segments, sorted by address
type memory struct {
	segments []*Segment
}

func makeMemory(segments []Segment) *memory {
	m := &memory{segments: make([]*Segment, len(segments))}
	for i, s := range segments {
		m.segments[i] = &Segment{Address: s.Address, Bytes: slices.Clone(s.Bytes)}
	}
	slices.SortFunc(m.segments, func(a, b *Segment) int {
		return cmp.Compare(a.Address, b.Address)
	})
	return m
}

// segment returns the segment mapping address
func (m *memory) segment(address uint64) (*Segment, bool) {
	i := sort.Search(len(m.segments), func(i int) bool {
		return m.segments[i].End() > address
	})
	if i < len(m.segments) && m.segments[i].Contains(address) {
		return m.segments[i], true
	}
	return nil, false
}

func (m *memory) mapped(address uint64) bool {
	_, ok := m.segment(address)
	return ok
}

// access walks [address, address+size) segment by segment. Fails if any byte
// is not mapped.
func (m *memory) access(address uint64, size int, f func(segment []byte, done int)) error {
	for done := 0; done < size; {
		current := address + uint64(done)
		s, ok := m.segment(current)
		if !ok {
			return utils.MakeError(ErrSegfault, "address 0x%X is not mapped", current)
		}

		chunk := s.Bytes[current-s.Address:]
		if len(chunk) > size-done {
			chunk = chunk[:size-done]
		}

		f(chunk, done)
		done += len(chunk)
	}

	return nil
}

func (m *memory) ReadMemory(address uint64, size int) ([]byte, error) {
	if size < 0 {
		return nil, utils.MakeError(ErrSegfault, "negative read size %d", size)
	}

	result := make([]byte, size)
	err := m.access(address, size, func(segment []byte, done int) {
		copy(result[done:], segment)
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// WriteMemory writes data only if every byte is mapped
func (m *memory) WriteMemory(address uint64, data []byte) error {
	if err := m.access(address, len(data), func([]byte, int) {}); err != nil {
		return err
	}

	return m.access(address, len(data), func(segment []byte, done int) {
		copy(segment, data[done:])
	})
}

// ReadWord reads a little endian word
func ReadWord[Word constraints.Unsigned](m MemoryReader, address uint64) (Word, error) {
	size := utils.Sizeof[Word]()

	data, err := m.ReadMemory(address, size)
	if err != nil {
		return 0, err
	}

	var buffer [8]byte
	copy(buffer[:], data)
	return Word(binary.LittleEndian.Uint64(buffer[:])), nil
}

// WriteWord writes a little endian word
func WriteWord[Word constraints.Unsigned](m MemoryWriter, address uint64, value Word) error {
	size := utils.Sizeof[Word]()

	var buffer [8]byte
	binary.LittleEndian.PutUint64(buffer[:], uint64(value))
	return m.WriteMemory(address, buffer[:size])
}
