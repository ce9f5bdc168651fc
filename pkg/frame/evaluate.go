package frame

import (
	"encoding/binary"
	"errors"
	"strings"

	"github.com/Manu343726/framevars/pkg/utils"
)

var ErrBadExpression = errors.New("not an address expression")

// evaluate fills the value of every row. Values are never cached: the
// debuggee state changes on every stop.
func (a *Analyzer) evaluate() {
	for i := range a.rows {
		a.rows[i].Value = a.display(a.rows[i].Expression)
	}
}

func (a *Analyzer) display(expression string) string {
	if a.deps.Evaluator == nil {
		return InvalidValue
	}

	value, err := a.deps.Evaluator.Display(expression)
	if err != nil {
		return InvalidValue
	}

	return value
}

// AddressExpression strips the dereference brackets of a slot expression:
// "[EBP-0x8]" becomes "EBP-0x8"
func AddressExpression(expression string) (string, error) {
	expression = strings.TrimSpace(expression)
	if !strings.HasPrefix(expression, "[") || !strings.HasSuffix(expression, "]") {
		return "", utils.MakeError(ErrBadExpression, "'%v'", expression)
	}

	return expression[1 : len(expression)-1], nil
}

// RowAddress returns the address a row refers to under the current register
// state
func (a *Analyzer) RowAddress(index int) (uint64, error) {
	row, err := a.row(index)
	if err != nil {
		return 0, err
	}

	inner, err := AddressExpression(row.Expression)
	if err != nil {
		return 0, err
	}
	if a.deps.Evaluator == nil {
		return 0, utils.MakeError(ErrBadExpression, "no evaluator for '%v'", inner)
	}

	address, err := a.deps.Evaluator.Eval(inner)
	if err != nil {
		return 0, err
	}

	return a.arch.Mask(address), nil
}

// WriteValue stores a pointer sized value into the slot of a row and
// refreshes the row values
func (a *Analyzer) WriteValue(index int, value uint64) error {
	if a.deps.Writer == nil {
		return ErrReadOnly
	}

	address, err := a.RowAddress(index)
	if err != nil {
		return err
	}

	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, value)

	if err := a.deps.Writer.WriteMemory(address, data[:a.arch.PointerSize]); err != nil {
		return err
	}

	a.evaluate()
	return nil
}
