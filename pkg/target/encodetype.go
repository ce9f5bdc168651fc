package target

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// EncodeType is how the debugger interprets the bytes at an address
type EncodeType int

const (
	// EncodeUnknown is treated as code
	EncodeUnknown EncodeType = iota
	EncodeCode
	EncodeByte
	EncodeWord
	EncodeDword
	EncodeFword
	EncodeQword
	EncodeTbyte
	EncodeOword
	EncodeMmword
	EncodeXmmword
	EncodeYmmword
	EncodeReal4
	EncodeReal8
	EncodeReal10
	EncodeAscii
	EncodeUnicode
	EncodeJunk
	// EncodeMiddle marks bytes in the middle of an item
	EncodeMiddle
)

var encodeTypeNames = []string{
	EncodeUnknown: "unknown",
	EncodeCode:    "code",
	EncodeByte:    "byte",
	EncodeWord:    "word",
	EncodeDword:   "dword",
	EncodeFword:   "fword",
	EncodeQword:   "qword",
	EncodeTbyte:   "tbyte",
	EncodeOword:   "oword",
	EncodeMmword:  "mmword",
	EncodeXmmword: "xmmword",
	EncodeYmmword: "ymmword",
	EncodeReal4:   "real4",
	EncodeReal8:   "real8",
	EncodeReal10:  "real10",
	EncodeAscii:   "ascii",
	EncodeUnicode: "unicode",
	EncodeJunk:    "junk",
	EncodeMiddle:  "middle",
}

var encodeTypeSizes = []uint64{
	EncodeByte:    1,
	EncodeWord:    2,
	EncodeDword:   4,
	EncodeFword:   6,
	EncodeQword:   8,
	EncodeTbyte:   10,
	EncodeOword:   16,
	EncodeMmword:  8,
	EncodeXmmword: 16,
	EncodeYmmword: 32,
	EncodeReal4:   4,
	EncodeReal8:   8,
	EncodeReal10:  10,
	EncodeAscii:   0,
	EncodeUnicode: 0,
	EncodeJunk:    0,
	EncodeMiddle:  1,
}

func (t EncodeType) String() string {
	if t < 0 || int(t) >= len(encodeTypeNames) {
		return "unknown"
	}
	return encodeTypeNames[t]
}

// Known reports whether the type describes data
func (t EncodeType) Known() bool {
	return t > EncodeCode && int(t) < len(encodeTypeNames)
}

// IsCode reports whether instructions may start at bytes of this type.
// Unknown types count as code.
func (t EncodeType) IsCode() bool {
	return !t.Known()
}

// Size is the natural size of the type, 0 for variable sized types
func (t EncodeType) Size() uint64 {
	if !t.Known() || int(t) >= len(encodeTypeSizes) {
		return 0
	}
	return encodeTypeSizes[t]
}

func ParseEncodeType(name string) EncodeType {
	name = strings.ToLower(strings.TrimSpace(name))
	for t, candidate := range encodeTypeNames {
		if candidate == name {
			return EncodeType(t)
		}
	}
	return EncodeUnknown
}

func (t *EncodeType) UnmarshalYAML(node *yaml.Node) error {
	*t = ParseEncodeType(node.Value)
	return nil
}

func (t EncodeType) MarshalYAML() (any, error) {
	return t.String(), nil
}

// EncodeTypeNames lists the type names accepted in snapshots
func EncodeTypeNames() []string {
	return encodeTypeNames[EncodeCode:]
}
