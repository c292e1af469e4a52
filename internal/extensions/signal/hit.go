package signal

import "git.home.luguber.info/inful/mobilecore/internal/hitqueue"

const (
	databaseName = "signal"
	tableName    = "signal_hits"
)

// Columns of the signal hit table.
const (
	ColumnURL         = "URL"
	ColumnBody        = "BODY"
	ColumnContentType = "CONTENT_TYPE"
	ColumnTimeout     = "TIMEOUT"
	ColumnPairID      = "PAIR_ID"
	ColumnEventNumber = "EVENT_NUMBER"
)

// Hit is one postback waiting to be sent.
type Hit struct {
	hitqueue.HitBase
	URL         string
	Body        string
	ContentType string
	// Timeout is in seconds.
	Timeout     int64
	PairID      string
	EventNumber int64
}

type hitSchema struct{}

func (hitSchema) DatabaseName() string { return databaseName }
func (hitSchema) TableName() string    { return tableName }

func (hitSchema) Columns() []hitqueue.Column {
	return append(hitqueue.BaseColumns(),
		hitqueue.Column{Name: ColumnURL, Type: hitqueue.ColumnText, Constraints: []hitqueue.Constraint{hitqueue.NotNull}},
		hitqueue.Column{Name: ColumnBody, Type: hitqueue.ColumnText},
		hitqueue.Column{Name: ColumnContentType, Type: hitqueue.ColumnText},
		hitqueue.Column{Name: ColumnTimeout, Type: hitqueue.ColumnInteger},
		hitqueue.Column{Name: ColumnPairID, Type: hitqueue.ColumnText},
		hitqueue.Column{Name: ColumnEventNumber, Type: hitqueue.ColumnInteger},
	)
}

func (hitSchema) GenerateHit(row hitqueue.Row) (*Hit, error) {
	return &Hit{
		HitBase:     row.Base(),
		URL:         row.String(ColumnURL),
		Body:        row.String(ColumnBody),
		ContentType: row.String(ColumnContentType),
		Timeout:     row.Int64(ColumnTimeout),
		PairID:      row.String(ColumnPairID),
		EventNumber: row.Int64(ColumnEventNumber),
	}, nil
}

func (hitSchema) GenerateDataMap(h *Hit) map[string]any {
	m := hitqueue.BaseDataMap(&h.HitBase)
	m[ColumnURL] = h.URL
	m[ColumnBody] = h.Body
	m[ColumnContentType] = h.ContentType
	m[ColumnTimeout] = h.Timeout
	m[ColumnPairID] = h.PairID
	m[ColumnEventNumber] = h.EventNumber
	return m
}
