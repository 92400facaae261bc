package core

// Transform operation names. One constant per supported operation; the
// engine rejects anything else with an UnsupportedOperationError.
const (
	OpSelect       = "select"
	OpRename       = "rename"
	OpFilter       = "filter"
	OpDeriveColumn = "derive_column"
	OpCast         = "cast"
	OpFillNull     = "fill_null"
	OpDedup        = "dedup"
	OpSort         = "sort"
	OpJoin         = "join"
	OpUnion        = "union"
	OpAggregate    = "aggregate"
	OpLimit        = "limit"
	OpWindow       = "window"
	OpPivot        = "pivot"
	OpUnpivot      = "unpivot"
	OpHashKey      = "hash_key"
	OpCoalesce     = "coalesce"
)

// TransformDescriptor is the tagged description of one pipeline operation.
// Op selects the case; only the fields belonging to that case are read.
type TransformDescriptor struct {
	Op string `koanf:"op" mapstructure:"op"`

	// select, dedup (optional), hash_key, coalesce, sort
	Columns []string `koanf:"columns" mapstructure:"columns"`

	// rename (old->new), cast (col->type), fill_null (col->value)
	Mapping map[string]string `koanf:"mapping" mapstructure:"mapping"`

	// fill_null single-value form
	Value string `koanf:"value" mapstructure:"value"`

	// filter
	Predicate string `koanf:"predicate" mapstructure:"predicate"`

	// derive_column, hash_key, coalesce output column
	Name   string `koanf:"name" mapstructure:"name"`
	Expr   string `koanf:"expr" mapstructure:"expr"`
	Output string `koanf:"output" mapstructure:"output"`

	// sort
	Directions []string `koanf:"directions" mapstructure:"directions"`

	// join
	Right string     `koanf:"right" mapstructure:"right"`
	On    []JoinPair `koanf:"on" mapstructure:"on"`
	How   string     `koanf:"how" mapstructure:"how"`

	// union
	Others []string `koanf:"others" mapstructure:"others"`
	Mode   string   `koanf:"mode" mapstructure:"mode"`

	// aggregate
	GroupBy []string          `koanf:"group_by" mapstructure:"group_by"`
	Aggs    map[string]string `koanf:"aggs" mapstructure:"aggs"`

	// limit
	N int64 `koanf:"n" mapstructure:"n"`

	// window
	PartitionBy []string `koanf:"partition_by" mapstructure:"partition_by"`
	OrderBy     []string `koanf:"order_by" mapstructure:"order_by"`
	Frame       string   `koanf:"frame" mapstructure:"frame"`
	Fn          string   `koanf:"fn" mapstructure:"fn"`

	// pivot: Columns carries the pivot column, Values the value column
	Index  []string `koanf:"index" mapstructure:"index"`
	Values string   `koanf:"values" mapstructure:"values"`
	Agg    string   `koanf:"agg" mapstructure:"agg"`

	// unpivot
	ValueColumns []string `koanf:"value_columns" mapstructure:"value_columns"`
	NameCol      string   `koanf:"name_col" mapstructure:"name_col"`
	ValueCol     string   `koanf:"value_col" mapstructure:"value_col"`
}

// JoinPair is one equi-join column pair. A shared-name join key sets only
// Left; Right defaults to the same name.
type JoinPair struct {
	Left  string `koanf:"left" mapstructure:"left"`
	Right string `koanf:"right" mapstructure:"right"`
}

// Check kind names.
const (
	CheckNotNull        = "not_null"
	CheckUnique         = "unique"
	CheckRowCount       = "row_count"
	CheckAcceptedValues = "accepted_values"
	CheckExpression     = "expression"
	CheckContract       = "contract"
)

// CheckDescriptor describes one quality check.
type CheckDescriptor struct {
	Kind string `koanf:"kind" mapstructure:"kind"`

	// not_null, unique
	Columns []string `koanf:"columns" mapstructure:"columns"`

	// row_count; nil means that bound is open
	Min *int64 `koanf:"min" mapstructure:"min"`
	Max *int64 `koanf:"max" mapstructure:"max"`

	// accepted_values
	Column string   `koanf:"column" mapstructure:"column"`
	Values []string `koanf:"values" mapstructure:"values"`

	// expression
	Predicate string `koanf:"predicate" mapstructure:"predicate"`

	// contract: path to a schema contract file
	Schema string `koanf:"schema" mapstructure:"schema"`
}

// SourceDescriptor describes one named pipeline input.
type SourceDescriptor struct {
	Name    string            `koanf:"name" mapstructure:"name"`
	Type    string            `koanf:"type" mapstructure:"type"` // file | table
	Path    string            `koanf:"path" mapstructure:"path"`
	Format  string            `koanf:"format" mapstructure:"format"`
	Table   string            `koanf:"table" mapstructure:"table"`
	Options map[string]string `koanf:"options" mapstructure:"options"`
}

// SinkDescriptor describes the pipeline output target.
type SinkDescriptor struct {
	Type  string   `koanf:"type" mapstructure:"type"` // file | table
	Path  string   `koanf:"path" mapstructure:"path"`
	Table string   `koanf:"table" mapstructure:"table"`
	Mode  string   `koanf:"mode" mapstructure:"mode"` // append | truncate | replace | upsert
	Keys  []string `koanf:"keys" mapstructure:"keys"` // upsert keys
}
