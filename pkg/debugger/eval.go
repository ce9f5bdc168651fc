package debugger

import (
	"encoding/binary"
	"errors"
	"strconv"
	"strings"

	"github.com/Manu343726/framevars/pkg/arch"
	"github.com/Manu343726/framevars/pkg/utils"
)

var (
	ErrEmptyExpression = errors.New("empty expression")
	ErrSyntax          = errors.New("syntax error")
	ErrUnknownSymbol   = errors.New("unknown symbol")
	ErrDivisionByZero  = errors.New("division by zero")
	ErrBadDereference  = errors.New("cannot read memory")
)

// Token types for expression parsing
type TokenType int

const (
	TokenNumber TokenType = iota
	TokenRegister
	TokenSymbol
	TokenPlus
	TokenMinus
	TokenMul
	TokenDiv
	TokenMod
	TokenAnd
	TokenOr
	TokenXor
	TokenShiftLeft
	TokenShiftRight
	TokenLBracket
	TokenRBracket
	TokenLParen
	TokenRParen
)

// Token represents a lexical token in an expression
type Token struct {
	Type  TokenType
	Value string
	Num   uint64 // For number tokens
}

// Machine is the state expressions are evaluated against
type Machine interface {
	Arch() *arch.Arch
	ReadRegister(name string) (uint64, error)
	ReadMemory(address uint64, size int) ([]byte, error)
	SymbolAddress(name string) (uint64, bool)
	SymbolAt(address uint64) (string, bool)
}

// ExpressionEvaluator evaluates debugger expressions: numbers are hex
// unless prefixed with '.', registers and symbols are resolved against the
// machine and [expr] reads a pointer sized value.
type ExpressionEvaluator struct {
	machine Machine
}

func NewExpressionEvaluator(machine Machine) *ExpressionEvaluator {
	return &ExpressionEvaluator{machine: machine}
}

// Eval evaluates an expression string and returns the result, wrapped to
// the pointer width
func (e *ExpressionEvaluator) Eval(expr string) (uint64, error) {
	tokens, err := e.Tokenize(expr)
	if err != nil {
		return 0, err
	}

	if len(tokens) == 0 {
		return 0, ErrEmptyExpression
	}

	result, remaining, err := e.parseOr(tokens)
	if err != nil {
		return 0, err
	}

	if len(remaining) > 0 {
		return 0, utils.MakeError(ErrSyntax, "unexpected token '%s'", remaining[0].Value)
	}

	return e.mask(result), nil
}

// Display evaluates an expression and formats the value as padded upper case
// hex, followed by the symbol the value points to if any
func (e *ExpressionEvaluator) Display(expr string) (string, error) {
	value, err := e.Eval(expr)
	if err != nil {
		return "", err
	}

	return e.Format(value), nil
}

func (e *ExpressionEvaluator) Format(value uint64) string {
	a := e.arch()
	text := a.FormatPointer(value)
	if e.machine != nil {
		if symbol, ok := e.machine.SymbolAt(value); ok {
			text += " <" + symbol + ">"
		}
	}
	return text
}

func (e *ExpressionEvaluator) arch() *arch.Arch {
	if e.machine == nil {
		return arch.X64
	}
	return e.machine.Arch()
}

func (e *ExpressionEvaluator) mask(value uint64) uint64 {
	return e.arch().Mask(value)
}

// Tokenize breaks an expression into tokens. Identifiers that name a
// register become register tokens, identifiers made of hex digits only
// become numbers unless the machine knows a symbol with that name.
func (e *ExpressionEvaluator) Tokenize(expr string) ([]Token, error) {
	var tokens []Token
	expr = strings.TrimSpace(expr)

	for len(expr) > 0 {
		expr = strings.TrimSpace(expr)
		if len(expr) == 0 {
			break
		}

		if tokenType, ok := singleCharTokens[expr[0]]; ok {
			tokens = append(tokens, Token{Type: tokenType, Value: expr[:1]})
			expr = expr[1:]
			continue
		}

		switch expr[0] {
		case '<':
			if len(expr) >= 2 && expr[1] == '<' {
				tokens = append(tokens, Token{Type: TokenShiftLeft, Value: "<<"})
				expr = expr[2:]
				continue
			}
		case '>':
			if len(expr) >= 2 && expr[1] == '>' {
				tokens = append(tokens, Token{Type: TokenShiftRight, Value: ">>"})
				expr = expr[2:]
				continue
			}
		}

		// Decimal number (.123)
		if expr[0] == '.' {
			end := 1
			for end < len(expr) && IsDigit(expr[end]) {
				end++
			}
			numStr := expr[1:end]
			num, err := strconv.ParseUint(numStr, 10, 64)
			if err != nil {
				return nil, utils.MakeError(ErrSyntax, "invalid decimal number '.%s'", numStr)
			}
			tokens = append(tokens, Token{Type: TokenNumber, Value: expr[:end], Num: num})
			expr = expr[end:]
			continue
		}

		// Hex number (0x... or bare hex digits)
		if IsDigit(expr[0]) {
			start := 0
			if len(expr) >= 2 && expr[0] == '0' && (expr[1] == 'x' || expr[1] == 'X') {
				start = 2
			}
			end := start
			for end < len(expr) && IsHexDigit(expr[end]) {
				end++
			}
			num, err := strconv.ParseUint(expr[start:end], 16, 64)
			if err != nil {
				return nil, utils.MakeError(ErrSyntax, "invalid hex number '%s'", expr[:end])
			}
			tokens = append(tokens, Token{Type: TokenNumber, Value: expr[:end], Num: num})
			expr = expr[end:]
			continue
		}

		// Register, symbol or hex number spelled with letters (FF)
		if IsAlpha(expr[0]) || expr[0] == '_' {
			end := 0
			for end < len(expr) && (IsAlphaNum(expr[end]) || expr[end] == '_') {
				end++
			}
			name := expr[:end]
			tokens = append(tokens, e.identifier(name))
			expr = expr[end:]
			continue
		}

		return nil, utils.MakeError(ErrSyntax, "unexpected character '%c'", expr[0])
	}

	return tokens, nil
}

var singleCharTokens = map[byte]TokenType{
	'+': TokenPlus,
	'-': TokenMinus,
	'*': TokenMul,
	'/': TokenDiv,
	'%': TokenMod,
	'&': TokenAnd,
	'|': TokenOr,
	'^': TokenXor,
	'[': TokenLBracket,
	']': TokenRBracket,
	'(': TokenLParen,
	')': TokenRParen,
}

func (e *ExpressionEvaluator) identifier(name string) Token {
	if canonical, ok := e.arch().Canonical(name); ok {
		return Token{Type: TokenRegister, Value: canonical}
	}

	if e.machine != nil {
		if _, ok := e.machine.SymbolAddress(name); ok {
			return Token{Type: TokenSymbol, Value: name}
		}
	}

	if isHexString(name) {
		num, err := strconv.ParseUint(name, 16, 64)
		if err == nil {
			return Token{Type: TokenNumber, Value: name, Num: num}
		}
	}

	return Token{Type: TokenSymbol, Value: name}
}

// Character classification helpers
func IsDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func IsHexDigit(c byte) bool {
	return IsDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func IsAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func IsAlphaNum(c byte) bool {
	return IsAlpha(c) || IsDigit(c)
}

func isHexString(s string) bool {
	for i := 0; i < len(s); i++ {
		if !IsHexDigit(s[i]) {
			return false
		}
	}
	return len(s) > 0
}

// Recursive descent parser with C operator precedence
// (lowest to highest):
// 1. | (OR)
// 2. ^ (XOR)
// 3. & (AND)
// 4. << >> (shifts)
// 5. + - (add/sub)
// 6. * / % (mul/div/mod)
// 7. unary -, []

type binaryOperator func(left, right uint64) (uint64, error)

// parseLevel parses a left associative chain of the given operators, whose
// operands are parsed by next
func (e *ExpressionEvaluator) parseLevel(tokens []Token, next func([]Token) (uint64, []Token, error), operators map[TokenType]binaryOperator) (uint64, []Token, error) {
	left, tokens, err := next(tokens)
	if err != nil {
		return 0, nil, err
	}

	for len(tokens) > 0 {
		op, ok := operators[tokens[0].Type]
		if !ok {
			break
		}

		right, remaining, err := next(tokens[1:])
		if err != nil {
			return 0, nil, err
		}

		left, err = op(left, right)
		if err != nil {
			return 0, nil, err
		}
		left = e.mask(left)
		tokens = remaining
	}

	return left, tokens, nil
}

func (e *ExpressionEvaluator) parseOr(tokens []Token) (uint64, []Token, error) {
	return e.parseLevel(tokens, e.parseXor, map[TokenType]binaryOperator{
		TokenOr: func(l, r uint64) (uint64, error) { return l | r, nil },
	})
}

func (e *ExpressionEvaluator) parseXor(tokens []Token) (uint64, []Token, error) {
	return e.parseLevel(tokens, e.parseAnd, map[TokenType]binaryOperator{
		TokenXor: func(l, r uint64) (uint64, error) { return l ^ r, nil },
	})
}

func (e *ExpressionEvaluator) parseAnd(tokens []Token) (uint64, []Token, error) {
	return e.parseLevel(tokens, e.parseShift, map[TokenType]binaryOperator{
		TokenAnd: func(l, r uint64) (uint64, error) { return l & r, nil },
	})
}

func (e *ExpressionEvaluator) parseShift(tokens []Token) (uint64, []Token, error) {
	return e.parseLevel(tokens, e.parseAddSub, map[TokenType]binaryOperator{
		TokenShiftLeft:  func(l, r uint64) (uint64, error) { return l << r, nil },
		TokenShiftRight: func(l, r uint64) (uint64, error) { return l >> r, nil },
	})
}

func (e *ExpressionEvaluator) parseAddSub(tokens []Token) (uint64, []Token, error) {
	return e.parseLevel(tokens, e.parseMulDiv, map[TokenType]binaryOperator{
		TokenPlus:  func(l, r uint64) (uint64, error) { return l + r, nil },
		TokenMinus: func(l, r uint64) (uint64, error) { return l - r, nil },
	})
}

func (e *ExpressionEvaluator) parseMulDiv(tokens []Token) (uint64, []Token, error) {
	return e.parseLevel(tokens, e.parseUnary, map[TokenType]binaryOperator{
		TokenMul: func(l, r uint64) (uint64, error) { return l * r, nil },
		TokenDiv: func(l, r uint64) (uint64, error) {
			if r == 0 {
				return 0, ErrDivisionByZero
			}
			return l / r, nil
		},
		TokenMod: func(l, r uint64) (uint64, error) {
			if r == 0 {
				return 0, ErrDivisionByZero
			}
			return l % r, nil
		},
	})
}

func (e *ExpressionEvaluator) parseUnary(tokens []Token) (uint64, []Token, error) {
	if len(tokens) == 0 {
		return 0, nil, utils.MakeError(ErrSyntax, "unexpected end of expression")
	}

	// Unary minus
	if tokens[0].Type == TokenMinus {
		val, remaining, err := e.parseUnary(tokens[1:])
		if err != nil {
			return 0, nil, err
		}
		return e.mask(-val), remaining, nil
	}

	// Memory dereference [expr]
	if tokens[0].Type == TokenLBracket {
		addr, remaining, err := e.parseOr(tokens[1:])
		if err != nil {
			return 0, nil, err
		}
		if len(remaining) == 0 || remaining[0].Type != TokenRBracket {
			return 0, nil, utils.MakeError(ErrSyntax, "expected ']' after memory address")
		}

		val, err := e.dereference(e.mask(addr))
		if err != nil {
			return 0, nil, err
		}
		return val, remaining[1:], nil
	}

	return e.parsePrimary(tokens)
}

func (e *ExpressionEvaluator) dereference(address uint64) (uint64, error) {
	if e.machine == nil {
		return 0, utils.MakeError(ErrBadDereference, "no memory to read 0x%X from", address)
	}

	size := e.arch().PointerSize
	data, err := e.machine.ReadMemory(address, size)
	if err != nil {
		return 0, utils.MakeError(ErrBadDereference, "at 0x%X: %v", address, err)
	}

	// Little-endian
	var buffer [8]byte
	copy(buffer[:], data)
	return binary.LittleEndian.Uint64(buffer[:]), nil
}

func (e *ExpressionEvaluator) parsePrimary(tokens []Token) (uint64, []Token, error) {
	if len(tokens) == 0 {
		return 0, nil, utils.MakeError(ErrSyntax, "unexpected end of expression")
	}

	tok := tokens[0]
	tokens = tokens[1:]

	switch tok.Type {
	case TokenNumber:
		return tok.Num, tokens, nil

	case TokenRegister:
		if e.machine == nil {
			return 0, nil, utils.MakeError(arch.ErrUnknownRegister, "no registers to read %s from", tok.Value)
		}
		val, err := e.machine.ReadRegister(tok.Value)
		if err != nil {
			return 0, nil, err
		}
		return val, tokens, nil

	case TokenSymbol:
		if e.machine != nil {
			if address, ok := e.machine.SymbolAddress(tok.Value); ok {
				return address, tokens, nil
			}
		}
		return 0, nil, utils.MakeError(ErrUnknownSymbol, "'%s'", tok.Value)

	case TokenLParen:
		val, remaining, err := e.parseOr(tokens)
		if err != nil {
			return 0, nil, err
		}
		if len(remaining) == 0 || remaining[0].Type != TokenRParen {
			return 0, nil, utils.MakeError(ErrSyntax, "expected ')' after expression")
		}
		return val, remaining[1:], nil

	default:
		return 0, nil, utils.MakeError(ErrSyntax, "unexpected token '%s'", tok.Value)
	}
}
