package model

type QueryRequest struct {
	Query  string `json:"query"`
	Params []any  `json:"params"`
}

type QueryResult struct {
	Query   string   `json:"query"`
	Results []Record `json:"results"`
	Count   int      `json:"count"`
}
