package model

type TableCount struct {
	Table string `json:"table"`
	Count int64  `json:"count"`
}

// TableCounts encodes as a JSON object in slice order.
type TableCounts []TableCount

func (tc TableCounts) MarshalJSON() ([]byte, error) {
	r := make(Record, len(tc))
	for i, c := range tc {
		r[i] = Field{Name: c.Table, Value: c.Count}
	}
	return r.MarshalJSON()
}

type AdminAccount struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type CleanupResult struct {
	Deleted        TableCounts
	RemainingUsers int64
	AdminUser      AdminAccount
}

// MarshalJSON flattens the per-table counts next to remainingUsers and
// adminUser.
func (r CleanupResult) MarshalJSON() ([]byte, error) {
	out := make(Record, 0, len(r.Deleted)+2)
	for _, c := range r.Deleted {
		out = append(out, Field{Name: c.Table, Value: c.Count})
	}
	out = append(out,
		Field{Name: "remainingUsers", Value: r.RemainingUsers},
		Field{Name: "adminUser", Value: r.AdminUser},
	)
	return out.MarshalJSON()
}

type DatabaseStats struct {
	TableCount int         `json:"tableCount"`
	TotalRows  int64       `json:"totalRows"`
	Tables     TableCounts `json:"tables"`
}

type SearchHit struct {
	Table string `json:"table"`
	Row   Record `json:"row"`
}
