package utils

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMakeError(t *testing.T) {
	base := errors.New("bad snapshot")
	err := MakeError(base, "region %d overlaps", 2)

	assert.ErrorIs(t, err, base)
	assert.EqualError(t, err, "bad snapshot: region 2 overlaps")
}

func TestMaps(t *testing.T) {
	assert.Equal(t, []string{"1", "2"}, Map([]int{1, 2}, func(i int) string { return FormatSlice([]int{i}, "") }))

	regs := map[string]int{"EBP": 4, "ESP": 5}
	assert.Equal(t, map[int]string{4: "EBP", 5: "ESP"}, InvertedMap(regs))

	keys := Keys(regs)
	slices.Sort(keys)
	assert.Equal(t, []string{"EBP", "ESP"}, keys)
}

func TestBits(t *testing.T) {
	assert.Equal(t, 32, Bits(4))
	assert.Equal(t, 8, Sizeof[uint64]())
	assert.Equal(t, uint32(0xFFFF), AllOnes[uint32](16))
	assert.Equal(t, uint32(0xFFFFFFFF), AllOnes[uint32](32))
	assert.Equal(t, ^uint64(0), AllOnes[uint64](64))
}

func TestFormatSlice(t *testing.T) {
	assert.Equal(t, "", FormatSlice([]string{}, ", "))
	assert.Equal(t, "EAX", FormatSlice([]string{"EAX"}, ", "))
	assert.Equal(t, "1, 2, 3", FormatSlice([]int{1, 2, 3}, ", "))
}
