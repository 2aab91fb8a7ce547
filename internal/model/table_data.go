package model

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 1000
)

type Table struct {
	Name string `json:"name"`
}

type TableDataRequest struct {
	Table  string
	Page   int
	Limit  int
	Search string
}

// Normalize applies the paging defaults.
func (r *TableDataRequest) Normalize() {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.Limit < 1 {
		r.Limit = DefaultPageLimit
	}
	if r.Limit > MaxPageLimit {
		r.Limit = MaxPageLimit
	}
}

func (r TableDataRequest) Offset() int { return (r.Page - 1) * r.Limit }

type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int64 `json:"totalPages"`
	TotalRows   int64 `json:"totalRows"`
	Limit       int   `json:"limit"`
}

type TableData struct {
	TableName  string     `json:"tableName"`
	Columns    []Column   `json:"columns"`
	Rows       []Record   `json:"rows"`
	Pagination Pagination `json:"pagination"`
}

type InsertResult struct {
	ID           any    `json:"id"`
	InsertedData Record `json:"insertedData"`
}

type UpdateResult struct {
	ID          int64  `json:"id"`
	UpdatedData Record `json:"updatedData"`
	Changes     int64  `json:"changes"`
}

type DeleteResult struct {
	ID      int64 `json:"id"`
	Changes int64 `json:"changes"`
}
