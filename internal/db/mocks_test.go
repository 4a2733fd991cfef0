package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/mock"
)

type mockDBTX struct {
	mock.Mock
}

func (m *mockDBTX) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDBTX) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if r := args.Get(0); r != nil {
		return r.(pgx.Rows), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDBTX) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

// mockTx is a pgx.Tx whose statements are recorded on the embedded mockDBTX.
// Methods the store never calls fall through to the nil pgx.Tx and panic.
type mockTx struct {
	pgx.Tx
	db         *mockDBTX
	commitErr  error
	committed  bool
	rolledBack bool
}

func (t *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return t.db.Exec(ctx, sql, arguments...)
}

func (t *mockTx) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	return t.db.Query(ctx, sql, arguments...)
}

func (t *mockTx) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	return t.db.QueryRow(ctx, sql, arguments...)
}

func (t *mockTx) Commit(context.Context) error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}

func (t *mockTx) Rollback(context.Context) error {
	if t.committed {
		return pgx.ErrTxClosed
	}
	t.rolledBack = true
	return nil
}

type mockBeginner struct {
	tx       *mockTx
	beginErr error
}

func (b *mockBeginner) Begin(context.Context) (pgx.Tx, error) {
	if b.beginErr != nil {
		return nil, b.beginErr
	}
	return b.tx, nil
}

type mockRow struct {
	scanErr error
	scanFn  func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error {
	if r.scanFn != nil {
		return r.scanFn(dest...)
	}
	return r.scanErr
}

// messageRowData is one row of the messages table as scanned by scanMessage.
type messageRowData struct {
	correlationID string
	crn           *int64
	sbi           *int64
	recipient     *string
	subject       *string
	body          *string
	status        string
	created       time.Time
	lastUpdated   time.Time
	events        []byte
}

func (d messageRowData) scanInto(dest ...any) error {
	*dest[0].(*string) = d.correlationID
	*dest[1].(**int64) = d.crn
	*dest[2].(**int64) = d.sbi
	*dest[3].(**string) = d.recipient
	*dest[4].(**string) = d.subject
	*dest[5].(**string) = d.body
	*dest[6].(*string) = d.status
	*dest[7].(*time.Time) = d.created
	*dest[8].(*time.Time) = d.lastUpdated
	*dest[9].(*[]byte) = d.events
	return nil
}

func eventsJSON(refs ...map[string]string) []byte {
	data, _ := json.Marshal(refs)
	return data
}

type messageMockRows struct {
	data    []messageRowData
	idx     int
	closed  bool
	scanErr error
	errVal  error
}

func (r *messageMockRows) Next() bool {
	if r.closed {
		return false
	}
	r.idx++
	return r.idx <= len(r.data)
}

func (r *messageMockRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	return r.data[r.idx-1].scanInto(dest...)
}

func (r *messageMockRows) Close()                                       { r.closed = true }
func (r *messageMockRows) Err() error                                   { return r.errVal }
func (r *messageMockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *messageMockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *messageMockRows) RawValues() [][]byte                          { return nil }
func (r *messageMockRows) Values() ([]any, error)                       { return nil, nil }
func (r *messageMockRows) Conn() *pgx.Conn                              { return nil }
