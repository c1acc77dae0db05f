package models

// Column names used by the demand and forecast readers.
const (
	ColumnTime   = "t"
	ColumnDemand = "demand"
	ColumnYear   = "year"
)

// Series is a column-oriented numeric time series. Every column has the same
// length and Columns keeps the order in which they were read.
type Series struct {
	Columns []string             `json:"columns"`
	Data    map[string][]float64 `json:"data"`
}

// NewSeries creates an empty series.
func NewSeries() *Series {
	return &Series{Data: make(map[string][]float64)}
}

// Len returns the number of samples.
func (s *Series) Len() int {
	if s == nil || len(s.Columns) == 0 {
		return 0
	}
	return len(s.Data[s.Columns[0]])
}

// Column returns the values of a column, or nil if it does not exist.
func (s *Series) Column(name string) []float64 {
	if s == nil {
		return nil
	}
	return s.Data[name]
}

// Has reports whether the column exists.
func (s *Series) Has(name string) bool {
	_, ok := s.Data[name]
	return ok
}

// Set replaces or adds a column.
func (s *Series) Set(name string, values []float64) {
	if !s.Has(name) {
		s.Columns = append(s.Columns, name)
	}
	s.Data[name] = values
}

// Clone returns a deep copy.
func (s *Series) Clone() *Series {
	out := NewSeries()
	for _, c := range s.Columns {
		v := make([]float64, len(s.Data[c]))
		copy(v, s.Data[c])
		out.Set(c, v)
	}
	return out
}
