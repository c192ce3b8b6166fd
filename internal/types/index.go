package types

// Field is a single column of a secondary index entry.
type Field struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Index is a named set of field/value pairs stored in one hash map.
// Several Index values with the same Name are merged before they are written;
// on duplicate field names the later value wins.
type Index struct {
	Name   string  `json:"name" yaml:"name"`
	Fields []Field `json:"fields" yaml:"fields"`
}

// Map returns the fields as a map, applying last-write-wins on duplicates.
func (i Index) Map() map[string]string {
	m := make(map[string]string, len(i.Fields))
	for _, f := range i.Fields {
		m[f.Name] = f.Value
	}
	return m
}

// Pair is one element of a batch write.
type Pair[T any] struct {
	Key   string
	Value T
}
