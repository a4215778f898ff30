package dbtest

import (
	"sync"
	"testing"

	"gorm.io/gorm"
)

// Statement is one SQL statement gorm sent to the database, with bind vars left as placeholders.
type Statement struct {
	Op  string
	SQL string
}

// Recorder collects the statements run on a connection in execution order.
type Recorder struct {
	mu         sync.Mutex
	statements []Statement
}

// Record starts capturing every statement run on conn and on sessions derived from it.
func Record(t *testing.T, conn *gorm.DB) *Recorder {
	t.Helper()

	rec := &Recorder{}
	cb := conn.Callback()
	errs := []error{
		cb.Create().After("gorm:create").Register("dbtest:record_create", rec.hook("create")),
		cb.Query().After("gorm:query").Register("dbtest:record_query", rec.hook("query")),
		cb.Update().After("gorm:update").Register("dbtest:record_update", rec.hook("update")),
		cb.Delete().After("gorm:delete").Register("dbtest:record_delete", rec.hook("delete")),
		cb.Row().After("gorm:row").Register("dbtest:record_row", rec.hook("row")),
		cb.Raw().After("gorm:raw").Register("dbtest:record_raw", rec.hook("raw")),
	}
	for _, err := range errs {
		if err != nil {
			t.Fatalf("register statement recorder: %v", err)
		}
	}
	return rec
}

func (r *Recorder) hook(op string) func(*gorm.DB) {
	return func(tx *gorm.DB) {
		if tx.Statement == nil || tx.Statement.SQL.Len() == 0 {
			return
		}
		r.mu.Lock()
		r.statements = append(r.statements, Statement{Op: op, SQL: tx.Statement.SQL.String()})
		r.mu.Unlock()
	}
}

// Statements returns a copy of everything recorded so far.
func (r *Recorder) Statements() []Statement {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Statement(nil), r.statements...)
}

// Reset drops what has been recorded.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.statements = nil
	r.mu.Unlock()
}
