package column

// InferOptions controls type inference.
type InferOptions struct {
	// SampleSize is the number of non-null values sampled for the majority
	// vote. If 0, DefaultSampleSize is used.
	SampleSize int

	// EnumMaxDistinctRatio promotes a string column to Enum when the
	// distinct/total ratio over all provided values is at or below this
	// threshold. If 0, DefaultEnumMaxDistinctRatio is used.
	EnumMaxDistinctRatio float64

	// EnumMinValues is the minimum number of non-null values required before
	// Enum promotion is considered. If 0, DefaultEnumMinValues is used.
	EnumMinValues int
}

const (
	DefaultSampleSize           = 10
	DefaultEnumMaxDistinctRatio = 0.25
	DefaultEnumMinValues        = 8
)

func (o InferOptions) withDefaults() InferOptions {
	if o.SampleSize <= 0 {
		o.SampleSize = DefaultSampleSize
	}
	if o.EnumMaxDistinctRatio <= 0 {
		o.EnumMaxDistinctRatio = DefaultEnumMaxDistinctRatio
	}
	if o.EnumMinValues <= 0 {
		o.EnumMinValues = DefaultEnumMinValues
	}
	return o
}

// Infer determines the DataType of a column from its values.
//
// The majority kind over the first SampleSize non-null values decides the
// base type. A string column whose distinct/total ratio over all values is
// low is promoted to Enum. Columns with no non-null values infer as Unknown.
func Infer(values []Value, opts InferOptions) DataType {
	opts = opts.withDefaults()

	var votes [TypeEnum + 1]int
	sampled := 0
	for _, v := range values {
		if v.IsNull() || v.Kind == KindInvalid {
			continue
		}
		votes[kindType(v.Kind)]++
		sampled++
		if sampled >= opts.SampleSize {
			break
		}
	}
	if sampled == 0 {
		return TypeUnknown
	}

	best := TypeUnknown
	for t := TypeString; t <= TypeBoolean; t++ {
		if votes[t] > votes[best] {
			best = t
		}
	}

	if best == TypeString {
		if promoteEnum(values, opts) {
			return TypeEnum
		}
	}
	return best
}

// promoteEnum checks the distinct ratio over the full value set. Enum values
// stay KindString at the cell level; only the column type changes.
func promoteEnum(values []Value, opts InferOptions) bool {
	distinct := make(map[string]struct{})
	total := 0
	for _, v := range values {
		if v.Kind != KindString {
			continue
		}
		total++
		distinct[v.s] = struct{}{}
	}
	return ShouldPromoteEnum(len(distinct), total, opts)
}

// ShouldPromoteEnum applies the Enum promotion rule to pre-aggregated
// distinct/total string-cell counts. The value cache uses this to promote
// without retaining every cell.
func ShouldPromoteEnum(distinct, total int, opts InferOptions) bool {
	opts = opts.withDefaults()
	if total < opts.EnumMinValues {
		return false
	}
	return float64(distinct)/float64(total) <= opts.EnumMaxDistinctRatio
}
