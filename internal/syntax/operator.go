package syntax

// Operator is an arithmetic, bitwise, boolean or comparison operator.
type Operator uint8

const (
	OpInvalid Operator = iota
	OpAdd
	OpSub
	OpMult
	OpDiv
	OpFloorDiv
	OpMod
	OpPow
	OpMatMult
	OpBitAnd
	OpBitOr
	OpBitXor
	OpLShift
	OpRShift
	OpInvert
	OpUAdd
	OpUSub
	OpNot
	OpAnd
	OpOr
	OpEq
	OpNotEq
	OpLt
	OpLtE
	OpGt
	OpGtE
	OpIs
	OpIsNot
	OpIn
	OpNotIn
)

var operatorNames = [...]string{
	OpInvalid:  "Invalid",
	OpAdd:      "Add",
	OpSub:      "Sub",
	OpMult:     "Mult",
	OpDiv:      "Div",
	OpFloorDiv: "FloorDiv",
	OpMod:      "Mod",
	OpPow:      "Pow",
	OpMatMult:  "MatMult",
	OpBitAnd:   "BitAnd",
	OpBitOr:    "BitOr",
	OpBitXor:   "BitXor",
	OpLShift:   "LShift",
	OpRShift:   "RShift",
	OpInvert:   "Invert",
	OpUAdd:     "UAdd",
	OpUSub:     "USub",
	OpNot:      "Not",
	OpAnd:      "And",
	OpOr:       "Or",
	OpEq:       "Eq",
	OpNotEq:    "NotEq",
	OpLt:       "Lt",
	OpLtE:      "LtE",
	OpGt:       "Gt",
	OpGtE:      "GtE",
	OpIs:       "Is",
	OpIsNot:    "IsNot",
	OpIn:       "In",
	OpNotIn:    "NotIn",
}

func (o Operator) String() string {
	if int(o) < len(operatorNames) {
		return operatorNames[o]
	}
	return "Invalid"
}

// binaryTokens maps tree-sitter operator tokens of binary_operator and
// augmented_assignment ("+=" is stored without its "=").
var binaryTokens = map[string]Operator{
	"+":  OpAdd,
	"-":  OpSub,
	"*":  OpMult,
	"/":  OpDiv,
	"//": OpFloorDiv,
	"%":  OpMod,
	"**": OpPow,
	"@":  OpMatMult,
	"&":  OpBitAnd,
	"|":  OpBitOr,
	"^":  OpBitXor,
	"<<": OpLShift,
	">>": OpRShift,
}

var unaryTokens = map[string]Operator{
	"-":   OpUSub,
	"+":   OpUAdd,
	"~":   OpInvert,
	"not": OpNot,
}

var compareTokens = map[string]Operator{
	"==":     OpEq,
	"!=":     OpNotEq,
	"<>":     OpNotEq,
	"<":      OpLt,
	"<=":     OpLtE,
	">":      OpGt,
	">=":     OpGtE,
	"is":     OpIs,
	"is not": OpIsNot,
	"in":     OpIn,
	"not in": OpNotIn,
}

// BinaryOperator returns the operator for a binary or augmented token.
func BinaryOperator(tok string) Operator {
	if len(tok) > 1 && tok[len(tok)-1] == '=' {
		if op, ok := binaryTokens[tok[:len(tok)-1]]; ok {
			return op
		}
	}
	return binaryTokens[tok]
}

// UnaryOperator returns the operator for a prefix token.
func UnaryOperator(tok string) Operator { return unaryTokens[tok] }

// CompareOperator returns the operator for a comparison token.
func CompareOperator(tok string) Operator { return compareTokens[tok] }
