// Package labels persists the names users give to frame slots. A name is
// keyed by the start of the function, the slot base register and the
// displacement, so it survives rescans and later sessions over the same
// binary.
package labels

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"errors"
	"slices"
	"strings"

	"github.com/Manu343726/framevars/pkg/utils"
	"github.com/syndtr/goleveldb/leveldb"
	leveldbstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var ErrBadKey = errors.New("malformed label key")

var keyPrefix = []byte("label/")

// Label is one stored slot name
type Label struct {
	Function     uint64
	Register     string
	Displacement int64
	Name         string
}

// Store wraps LevelDB. It implements frame.NameStore.
type Store struct {
	db *leveldb.DB
}

// Open opens or creates a store at path. An empty path keeps the labels in
// memory.
func Open(path string) (*Store, error) {
	var db *leveldb.DB
	var err error

	if path == "" {
		db, err = leveldb.Open(leveldbstorage.NewMemStorage(), nil)
	} else {
		db, err = leveldb.OpenFile(path, nil)
	}

	if err != nil {
		return nil, utils.MakeError(err, "failed to open labels at '%s'", path)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// functionPrefix is the key prefix of every label of a function. Addresses
// are big endian so keys of a function are contiguous.
func functionPrefix(function uint64) []byte {
	key := make([]byte, 0, len(keyPrefix)+8)
	key = append(key, keyPrefix...)
	return binary.BigEndian.AppendUint64(key, function)
}

// makeKey builds label/<function>/<register>\x00<displacement>. The sign bit
// of the displacement is flipped so keys sort by signed displacement.
func makeKey(function uint64, register string, displacement int64) []byte {
	key := functionPrefix(function)
	key = append(key, strings.ToUpper(register)...)
	key = append(key, 0)
	return binary.BigEndian.AppendUint64(key, uint64(displacement)^(1<<63))
}

func parseKey(key []byte) (Label, error) {
	if !bytes.HasPrefix(key, keyPrefix) || len(key) < len(keyPrefix)+8+1+8 {
		return Label{}, utils.MakeError(ErrBadKey, "%X", key)
	}

	rest := key[len(keyPrefix):]
	label := Label{Function: binary.BigEndian.Uint64(rest)}
	rest = rest[8:]

	sep := bytes.IndexByte(rest, 0)
	if sep < 0 || len(rest)-sep-1 != 8 {
		return Label{}, utils.MakeError(ErrBadKey, "%X", key)
	}

	label.Register = string(rest[:sep])
	label.Displacement = int64(binary.BigEndian.Uint64(rest[sep+1:]) ^ (1 << 63))
	return label, nil
}

// Name returns the stored name of a slot
func (s *Store) Name(function uint64, register string, displacement int64) (string, bool) {
	data, err := s.db.Get(makeKey(function, register, displacement), nil)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// SetName stores the name of a slot. An empty name removes it.
func (s *Store) SetName(function uint64, register string, displacement int64, name string) error {
	key := makeKey(function, register, displacement)

	if name == "" {
		return s.db.Delete(key, nil)
	}
	return s.db.Put(key, []byte(name), nil)
}

// List returns the labels of a function ordered by register name, then by
// descending displacement. The store knows no architecture, callers that show
// labels next to frame rows reorder them by register set index.
func (s *Store) List(function uint64) ([]Label, error) {
	iter := s.db.NewIterator(util.BytesPrefix(functionPrefix(function)), nil)
	defer iter.Release()

	var labels []Label
	for iter.Next() {
		label, err := parseKey(iter.Key())
		if err != nil {
			return nil, err
		}
		label.Name = string(iter.Value())
		labels = append(labels, label)
	}

	if err := iter.Error(); err != nil {
		return nil, utils.MakeError(err, "listing labels of 0x%X", function)
	}

	slices.SortStableFunc(labels, func(a, b Label) int {
		if c := cmp.Compare(a.Register, b.Register); c != 0 {
			return c
		}
		return cmp.Compare(b.Displacement, a.Displacement)
	})
	return labels, nil
}

// Clear removes every label of a function
func (s *Store) Clear(function uint64) error {
	iter := s.db.NewIterator(util.BytesPrefix(functionPrefix(function)), nil)
	defer iter.Release()

	batch := new(leveldb.Batch)
	for iter.Next() {
		batch.Delete(slices.Clone(iter.Key()))
	}
	if err := iter.Error(); err != nil {
		return err
	}

	return s.db.Write(batch, nil)
}
