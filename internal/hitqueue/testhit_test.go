package hitqueue

type testHit struct {
	HitBase
	URL   string
	Retry int64
}

type testSchema struct {
	db    string
	table string
}

func newTestSchema() testSchema { return testSchema{db: "hits", table: "test_hits"} }

func (s testSchema) DatabaseName() string { return s.db }
func (s testSchema) TableName() string    { return s.table }

func (s testSchema) Columns() []Column {
	return append(BaseColumns(),
		Column{Name: "URL", Type: ColumnText},
		Column{Name: "RETRY", Type: ColumnInteger},
	)
}

func (s testSchema) GenerateHit(row Row) (*testHit, error) {
	return &testHit{HitBase: row.Base(), URL: row.String("URL"), Retry: row.Int64("RETRY")}, nil
}

func (s testSchema) GenerateDataMap(h *testHit) map[string]any {
	m := BaseDataMap(&h.HitBase)
	m["URL"] = h.URL
	m["RETRY"] = h.Retry
	return m
}
