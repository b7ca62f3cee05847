package column

// DataType defines the inferred data type of a column. It drives which
// filter operators are valid for the column and how values compare.
type DataType uint8

const (
	TypeUnknown DataType = iota
	TypeString
	TypeNumber
	TypeDateTime
	TypeBoolean
	TypeEnum
)

// String returns the string representation of the DataType.
func (t DataType) String() string {
	switch t {
	case TypeString:
		return "String"
	case TypeNumber:
		return "Number"
	case TypeDateTime:
		return "DateTime"
	case TypeBoolean:
		return "Boolean"
	case TypeEnum:
		return "Enum"
	default:
		return "Unknown"
	}
}

// kindType maps a value Kind to the DataType it votes for during inference.
func kindType(k Kind) DataType {
	switch k {
	case KindString:
		return TypeString
	case KindNumber:
		return TypeNumber
	case KindDateTime:
		return TypeDateTime
	case KindBool:
		return TypeBoolean
	default:
		return TypeUnknown
	}
}

// Accessor reads the cell value of a row at a column path. It is injected by
// the collaborator; the core never performs reflection itself.
type Accessor func(row any, path string) Value
