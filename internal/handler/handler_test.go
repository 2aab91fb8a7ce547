package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"clinic/backend/internal/model"
	"clinic/backend/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockDBClient struct {
	listTablesFunc   func() ([]string, error)
	listColumnsFunc  func(table string) (model.Columns, error)
	getTableDataFunc func(model.TableDataRequest) (*model.TableData, error)
	insertRecordFunc func(table string, data map[string]any) (*model.InsertResult, error)
	updateRecordFunc func(table string, id int64, data map[string]any) (*model.UpdateResult, error)
	deleteRecordFunc func(table string, id int64) (*model.DeleteResult, error)
	executeQueryFunc func(model.QueryRequest) (*model.QueryResult, error)
	cleanupDataFunc  func() (*model.CleanupResult, error)
	statsFunc        func() (*model.DatabaseStats, error)
	searchFunc       func(term string, limit int) ([]model.SearchHit, error)
}

func (m *mockDBClient) ListTables(context.Context) ([]string, error) {
	if m.listTablesFunc != nil {
		return m.listTablesFunc()
	}
	return []string{}, nil
}
func (m *mockDBClient) ListColumns(_ context.Context, table string) (model.Columns, error) {
	if m.listColumnsFunc != nil {
		return m.listColumnsFunc(table)
	}
	return nil, nil
}
func (m *mockDBClient) GetTableData(_ context.Context, req model.TableDataRequest) (*model.TableData, error) {
	if m.getTableDataFunc != nil {
		return m.getTableDataFunc(req)
	}
	return &model.TableData{}, nil
}
func (m *mockDBClient) InsertRecord(_ context.Context, table string, data map[string]any) (*model.InsertResult, error) {
	if m.insertRecordFunc != nil {
		return m.insertRecordFunc(table, data)
	}
	return &model.InsertResult{}, nil
}
func (m *mockDBClient) UpdateRecord(_ context.Context, table string, id int64, data map[string]any) (*model.UpdateResult, error) {
	if m.updateRecordFunc != nil {
		return m.updateRecordFunc(table, id, data)
	}
	return &model.UpdateResult{}, nil
}
func (m *mockDBClient) DeleteRecord(_ context.Context, table string, id int64) (*model.DeleteResult, error) {
	if m.deleteRecordFunc != nil {
		return m.deleteRecordFunc(table, id)
	}
	return &model.DeleteResult{}, nil
}
func (m *mockDBClient) ExecuteQuery(_ context.Context, req model.QueryRequest) (*model.QueryResult, error) {
	if m.executeQueryFunc != nil {
		return m.executeQueryFunc(req)
	}
	return &model.QueryResult{}, nil
}
func (m *mockDBClient) CleanupData(context.Context) (*model.CleanupResult, error) {
	if m.cleanupDataFunc != nil {
		return m.cleanupDataFunc()
	}
	return &model.CleanupResult{}, nil
}
func (m *mockDBClient) Stats(context.Context) (*model.DatabaseStats, error) {
	if m.statsFunc != nil {
		return m.statsFunc()
	}
	return &model.DatabaseStats{}, nil
}
func (m *mockDBClient) Search(_ context.Context, term string, limit int) ([]model.SearchHit, error) {
	if m.searchFunc != nil {
		return m.searchFunc(term, limit)
	}
	return []model.SearchHit{}, nil
}

func newTestHandler(db service.DBClient) *Handler {
	return New(Services{DB: db}, zerolog.Nop())
}

// serve runs one handler against a test context.
func serve(fn gin.HandlerFunc, method, url, body string, params gin.Params) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(method, url, bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = params
	fn(c)
	return w
}

func table(name string) gin.Params { return gin.Params{{Key: "tableName", Value: name}} }

func tableRow(name, id string) gin.Params {
	return gin.Params{{Key: "tableName", Value: name}, {Key: "id", Value: id}}
}

func TestListTablesHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		listTablesFunc func() ([]string, error)
		expectedCode   int
		expectedBody   string
	}{
		{
			name: "engine error",
			listTablesFunc: func() ([]string, error) {
				return nil, &service.EngineError{Op: "list tables", Err: errors.New("disk I/O error")}
			},
			expectedCode: http.StatusInternalServerError,
			expectedBody: `{"code":"ENGINE_ERROR","error":"database error: list tables: disk I/O error","success":false}`,
		},
		{
			name:           "unexpected error",
			listTablesFunc: func() ([]string, error) { return nil, errors.New("boom") },
			expectedCode:   http.StatusInternalServerError,
			expectedBody:   `{"code":"INTERNAL_ERROR","error":"internal server error","success":false}`,
		},
		{
			name:           "no tables",
			listTablesFunc: func() ([]string, error) { return []string{}, nil },
			expectedCode:   http.StatusOK,
			expectedBody:   `{"data":[],"success":true}`,
		},
		{
			name:           "tables list",
			listTablesFunc: func() ([]string, error) { return []string{"appointments", "users"}, nil },
			expectedCode:   http.StatusOK,
			expectedBody:   `{"data":[{"name":"appointments"},{"name":"users"}],"success":true}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandler(&mockDBClient{listTablesFunc: tc.listTablesFunc})
			w := serve(h.ListTablesHandler, http.MethodGet, "/api/database/tables", "", nil)

			assert.Equal(t, tc.expectedCode, w.Code)
			assert.JSONEq(t, tc.expectedBody, w.Body.String())
		})
	}
}

func TestTableDataHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name         string
		url          string
		wantReq      model.TableDataRequest
		err          error
		expectedCode int
		expectedBody string
	}{
		{
			name:         "defaults",
			url:          "/api/database/tables/users",
			wantReq:      model.TableDataRequest{Table: "users", Page: 1, Limit: 20},
			expectedCode: http.StatusOK,
			expectedBody: `"pagination":{"currentPage":1,"totalPages":0,"totalRows":0,"limit":20}`,
		},
		{
			name:         "paging and search",
			url:          "/api/database/tables/users?page=3&limit=5&search=sara",
			wantReq:      model.TableDataRequest{Table: "users", Page: 3, Limit: 5, Search: "sara"},
			expectedCode: http.StatusOK,
			expectedBody: `"tableName":"users"`,
		},
		{
			name:         "garbage paging falls back",
			url:          "/api/database/tables/users?page=-1&limit=abc",
			wantReq:      model.TableDataRequest{Table: "users", Page: 1, Limit: 20},
			expectedCode: http.StatusOK,
			expectedBody: `"success":true`,
		},
		{
			name:         "unknown table",
			url:          "/api/database/tables/users",
			wantReq:      model.TableDataRequest{Table: "users", Page: 1, Limit: 20},
			err:          service.ErrInvalidTable,
			expectedCode: http.StatusBadRequest,
			expectedBody: `"code":"INVALID_TABLE"`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got model.TableDataRequest
			h := newTestHandler(&mockDBClient{getTableDataFunc: func(req model.TableDataRequest) (*model.TableData, error) {
				got = req
				if tc.err != nil {
					return nil, tc.err
				}
				return &model.TableData{
					TableName:  req.Table,
					Rows:       []model.Record{},
					Pagination: model.Pagination{CurrentPage: req.Page, Limit: req.Limit},
				}, nil
			}})
			w := serve(h.TableDataHandler, http.MethodGet, tc.url, "", table("users"))

			assert.Equal(t, tc.expectedCode, w.Code)
			assert.Contains(t, w.Body.String(), tc.expectedBody)
			assert.Equal(t, tc.wantReq, got)
		})
	}
}

func TestInsertRecordHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name             string
		body             string
		insertRecordFunc func(table string, data map[string]any) (*model.InsertResult, error)
		expectedCode     int
		expectedBody     string
	}{
		{
			name:         "invalid json",
			body:         `{"name": `,
			expectedCode: http.StatusBadRequest,
			expectedBody: `"error":"request body must be a JSON object"`,
		},
		{
			name:         "array body",
			body:         `[1, 2]`,
			expectedCode: http.StatusBadRequest,
			expectedBody: `"code":"INVALID_INPUT"`,
		},
		{
			name: "no writable fields",
			body: `{"extra_unknown_field": 1}`,
			insertRecordFunc: func(string, map[string]any) (*model.InsertResult, error) {
				return nil, service.ErrNoWritableFields
			},
			expectedCode: http.StatusBadRequest,
			expectedBody: `"code":"NO_WRITABLE_FIELDS"`,
		},
		{
			name: "constraint violation",
			body: `{"name": "Root Canal"}`,
			insertRecordFunc: func(string, map[string]any) (*model.InsertResult, error) {
				return nil, &service.EngineError{Op: "insert", Err: errors.New("UNIQUE constraint failed: services.name")}
			},
			expectedCode: http.StatusInternalServerError,
			expectedBody: `"error":"database error: insert: UNIQUE constraint failed: services.name"`,
		},
		{
			name: "success keeps numbers exact",
			body: `{"name": "Night Guard", "price": 95.50, "duration_minutes": 20}`,
			insertRecordFunc: func(table string, data map[string]any) (*model.InsertResult, error) {
				if table != "services" {
					return nil, errors.New("wrong table")
				}
				if _, ok := data["price"].(json.Number); !ok {
					return nil, errors.New("price not decoded as json.Number")
				}
				return &model.InsertResult{ID: int64(9), InsertedData: model.Record{{Name: "name", Value: "Night Guard"}}}, nil
			},
			expectedCode: http.StatusOK,
			expectedBody: `"data":{"id":9,"insertedData":{"name":"Night Guard"}}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandler(&mockDBClient{insertRecordFunc: tc.insertRecordFunc})
			w := serve(h.InsertRecordHandler, http.MethodPost, "/api/database/tables/services", tc.body, table("services"))

			assert.Equal(t, tc.expectedCode, w.Code)
			assert.Contains(t, w.Body.String(), tc.expectedBody)
		})
	}
}

func TestUpdateRecordHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name             string
		id               string
		body             string
		updateRecordFunc func(table string, id int64, data map[string]any) (*model.UpdateResult, error)
		expectedCode     int
		expectedBody     string
	}{
		{
			name:         "bad id",
			id:           "abc",
			body:         `{"name": "x"}`,
			expectedCode: http.StatusBadRequest,
			expectedBody: `"error":"invalid id"`,
		},
		{
			name:         "zero id",
			id:           "0",
			body:         `{"name": "x"}`,
			expectedCode: http.StatusBadRequest,
			expectedBody: `"error":"invalid id"`,
		},
		{
			name:         "bad body",
			id:           "1",
			body:         `nope`,
			expectedCode: http.StatusBadRequest,
			expectedBody: `"code":"INVALID_INPUT"`,
		},
		{
			name: "not found",
			id:   "42",
			body: `{"name": "x"}`,
			updateRecordFunc: func(string, int64, map[string]any) (*model.UpdateResult, error) {
				return nil, service.ErrNotFound
			},
			expectedCode: http.StatusNotFound,
			expectedBody: `"code":"NOT_FOUND"`,
		},
		{
			name: "success",
			id:   "7",
			body: `{"name": "x"}`,
			updateRecordFunc: func(_ string, id int64, _ map[string]any) (*model.UpdateResult, error) {
				return &model.UpdateResult{ID: id, UpdatedData: model.Record{{Name: "name", Value: "x"}}, Changes: 1}, nil
			},
			expectedCode: http.StatusOK,
			expectedBody: `"data":{"id":7,"updatedData":{"name":"x"},"changes":1}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandler(&mockDBClient{updateRecordFunc: tc.updateRecordFunc})
			w := serve(h.UpdateRecordHandler, http.MethodPut, "/api/database/tables/users/"+tc.id, tc.body, tableRow("users", tc.id))

			assert.Equal(t, tc.expectedCode, w.Code)
			assert.Contains(t, w.Body.String(), tc.expectedBody)
		})
	}
}

func TestDeleteRecordHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name             string
		id               string
		deleteRecordFunc func(table string, id int64) (*model.DeleteResult, error)
		expectedCode     int
		expectedBody     string
	}{
		{
			name:         "bad id",
			id:           "x1",
			expectedCode: http.StatusBadRequest,
			expectedBody: `"error":"invalid id"`,
		},
		{
			name:             "missing row",
			id:               "9999",
			deleteRecordFunc: func(string, int64) (*model.DeleteResult, error) { return nil, service.ErrNotFound },
			expectedCode:     http.StatusNotFound,
			expectedBody:     `"code":"NOT_FOUND"`,
		},
		{
			name:             "invalid table",
			id:               "1",
			deleteRecordFunc: func(string, int64) (*model.DeleteResult, error) { return nil, service.ErrInvalidTable },
			expectedCode:     http.StatusBadRequest,
			expectedBody:     `"code":"INVALID_TABLE"`,
		},
		{
			name: "success",
			id:   "3",
			deleteRecordFunc: func(_ string, id int64) (*model.DeleteResult, error) {
				return &model.DeleteResult{ID: id, Changes: 1}, nil
			},
			expectedCode: http.StatusOK,
			expectedBody: `"data":{"id":3,"changes":1}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandler(&mockDBClient{deleteRecordFunc: tc.deleteRecordFunc})
			w := serve(h.DeleteRecordHandler, http.MethodDelete, "/api/database/tables/users/"+tc.id, "", tableRow("users", tc.id))

			assert.Equal(t, tc.expectedCode, w.Code)
			assert.Contains(t, w.Body.String(), tc.expectedBody)
		})
	}
}

func TestQueryHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name             string
		body             string
		executeQueryFunc func(model.QueryRequest) (*model.QueryResult, error)
		expectedCode     int
		expectedBody     string
	}{
		{
			name:         "invalid json",
			body:         `{"query": `,
			expectedCode: http.StatusBadRequest,
			expectedBody: `"error":"Invalid request"`,
		},
		{
			name:         "missing query",
			body:         `{"params": [1]}`,
			expectedCode: http.StatusBadRequest,
			expectedBody: `"error":"query is required"`,
		},
		{
			name: "write statement",
			body: `{"query": "DELETE FROM users"}`,
			executeQueryFunc: func(model.QueryRequest) (*model.QueryResult, error) {
				return nil, service.ErrForbiddenStatement
			},
			expectedCode: http.StatusForbidden,
			expectedBody: `"code":"FORBIDDEN_STATEMENT"`,
		},
		{
			name: "engine error",
			body: `{"query": "SELECT * FROM missing"}`,
			executeQueryFunc: func(model.QueryRequest) (*model.QueryResult, error) {
				return nil, &service.EngineError{Op: "query", Err: errors.New("no such table: missing")}
			},
			expectedCode: http.StatusInternalServerError,
			expectedBody: `"error":"database error: query: no such table: missing"`,
		},
		{
			name: "success",
			body: `{"query": "SELECT id, name FROM users WHERE id > ?", "params": [0]}`,
			executeQueryFunc: func(req model.QueryRequest) (*model.QueryResult, error) {
				if len(req.Params) != 1 || req.Params[0] != json.Number("0") {
					return nil, errors.New("params not passed through")
				}
				return &model.QueryResult{
					Query: req.Query,
					Results: []model.Record{
						{{Name: "id", Value: 1}, {Name: "name", Value: "Alice"}},
						{{Name: "id", Value: 2}, {Name: "name", Value: "Bob"}},
					},
					Count: 2,
				}, nil
			},
			expectedCode: http.StatusOK,
			expectedBody: `"results":[{"id":1,"name":"Alice"},{"id":2,"name":"Bob"}],"count":2`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandler(&mockDBClient{executeQueryFunc: tc.executeQueryFunc})
			w := serve(h.QueryHandler, http.MethodPost, "/api/database/query", tc.body, nil)

			assert.Equal(t, tc.expectedCode, w.Code)
			assert.Contains(t, w.Body.String(), tc.expectedBody)
		})
	}
}

func TestCleanupHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name            string
		cleanupDataFunc func() (*model.CleanupResult, error)
		expectedCode    int
		expectedBody    string
	}{
		{
			name:            "admin missing",
			cleanupDataFunc: func() (*model.CleanupResult, error) { return nil, service.ErrPreservedRecordMissing },
			expectedCode:    http.StatusInternalServerError,
			expectedBody:    `"code":"PRESERVED_RECORD_MISSING"`,
		},
		{
			name:            "verification failed",
			cleanupDataFunc: func() (*model.CleanupResult, error) { return nil, service.ErrInvariantViolation },
			expectedCode:    http.StatusInternalServerError,
			expectedBody:    `"code":"INVARIANT_VIOLATION"`,
		},
		{
			name: "success",
			cleanupDataFunc: func() (*model.CleanupResult, error) {
				return &model.CleanupResult{
					Deleted:        model.TableCounts{{Table: "appointments", Count: 4}, {Table: "users", Count: 2}},
					RemainingUsers: 1,
					AdminUser:      model.AdminAccount{ID: 1, Name: "Admin", Email: "admin@clinic.com", Role: "admin"},
				}, nil
			},
			expectedCode: http.StatusOK,
			expectedBody: `{"success":true,"message":"Database cleaned, admin account preserved","data":{"appointments":4,"users":2,"remainingUsers":1,"adminUser":{"id":1,"name":"Admin","email":"admin@clinic.com","role":"admin"}}}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandler(&mockDBClient{cleanupDataFunc: tc.cleanupDataFunc})
			w := serve(h.CleanupHandler, http.MethodPost, "/api/database/cleanup", "", nil)

			assert.Equal(t, tc.expectedCode, w.Code)
			if tc.expectedCode == http.StatusOK {
				assert.JSONEq(t, tc.expectedBody, w.Body.String())
			} else {
				assert.Contains(t, w.Body.String(), tc.expectedBody)
			}
		})
	}
}

func TestSearchAndStatsHandlers(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var gotTerm string
	var gotLimit int
	h := newTestHandler(&mockDBClient{
		searchFunc: func(term string, limit int) ([]model.SearchHit, error) {
			gotTerm, gotLimit = term, limit
			return []model.SearchHit{{Table: "users", Row: model.Record{{Name: "id", Value: 1}}}}, nil
		},
		statsFunc: func() (*model.DatabaseStats, error) {
			return &model.DatabaseStats{TableCount: 1, TotalRows: 3, Tables: model.TableCounts{{Table: "users", Count: 3}}}, nil
		},
	})

	w := serve(h.SearchHandler, http.MethodGet, "/api/database/search", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(h.SearchHandler, http.MethodGet, "/api/database/search?q=sara&limit=5", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"count":1,"data":[{"table":"users","row":{"id":1}}]}`, w.Body.String())
	assert.Equal(t, "sara", gotTerm)
	assert.Equal(t, 5, gotLimit)

	w = serve(h.StatsHandler, http.MethodGet, "/api/database/stats", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":{"tableCount":1,"totalRows":3,"tables":{"users":3}}}`, w.Body.String())
}

func TestPingHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := serve(Ping, http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"pong"}`, w.Body.String())
}
