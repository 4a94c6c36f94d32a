package registry

// DetailLevel describes how much of a database's metadata is cached.
type DetailLevel int

const (
	// NameOnly means only the identifier is known, from a bulk listing.
	NameOnly DetailLevel = iota
	// Full means connection, table, and column data has been fetched.
	Full
)

// String implements fmt.Stringer.
func (d DetailLevel) String() string {
	switch d {
	case NameOnly:
		return "name_only"
	case Full:
		return "full"
	default:
		return "unknown"
	}
}

// Table describes one indexed table of a database.
type Table struct {
	Name     string `json:"table_name"`
	RowCount int64  `json:"row_count,omitempty"`
}

// ColumnDescription is a human-written description of one column.
type ColumnDescription struct {
	Table       string `json:"table_name,omitempty"`
	Column      string `json:"column_name,omitempty"`
	Description string `json:"column_description"`
}

// FileRef describes a file associated with a database/project.
type FileRef struct {
	ID        int    `json:"file_id"`
	Name      string `json:"file_name"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
}

// Metadata is one registry entry, keyed by Name.
//
// Invariant: a Full record has non-nil Tables and ColumnDescriptions (empty
// slices are fine); a NameOnly record has neither, and CanConnect is nil.
type Metadata struct {
	Name               string              `json:"db_name"`
	DetailLevel        DetailLevel         `json:"-"`
	CanConnect         *bool               `json:"can_connect,omitempty"`
	Tables             []Table             `json:"tables,omitempty"`
	ColumnDescriptions []ColumnDescription `json:"column_descriptions,omitempty"`
	AssociatedFiles    []FileRef           `json:"associated_files,omitempty"`
}

// nameOnly returns a fresh NameOnly record for name.
func nameOnly(name string) Metadata {
	return Metadata{Name: name, DetailLevel: NameOnly}
}

// normalizeFull forces meta into a valid Full record for name.
func normalizeFull(name string, meta Metadata) Metadata {
	meta.Name = name
	meta.DetailLevel = Full
	if meta.Tables == nil {
		meta.Tables = []Table{}
	}
	if meta.ColumnDescriptions == nil {
		meta.ColumnDescriptions = []ColumnDescription{}
	}
	if meta.AssociatedFiles == nil {
		meta.AssociatedFiles = []FileRef{}
	}
	return meta
}

// clone returns a deep copy so callers cannot mutate cached state.
func clone(meta Metadata) Metadata {
	out := meta
	if meta.CanConnect != nil {
		v := *meta.CanConnect
		out.CanConnect = &v
	}
	if meta.Tables != nil {
		out.Tables = append([]Table(nil), meta.Tables...)
	}
	if meta.ColumnDescriptions != nil {
		out.ColumnDescriptions = append([]ColumnDescription(nil), meta.ColumnDescriptions...)
	}
	if meta.AssociatedFiles != nil {
		out.AssociatedFiles = append([]FileRef(nil), meta.AssociatedFiles...)
	}
	return out
}
