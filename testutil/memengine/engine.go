package memengine

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-borrowing-go/library"
)

type state struct {
	books            map[uuid.UUID]library.Book
	bookOrder        []uuid.UUID
	transactions     map[uuid.UUID]library.BorrowingTransaction
	transactionOrder []uuid.UUID
}

func newState() state {
	return state{
		books:        make(map[uuid.UUID]library.Book),
		transactions: make(map[uuid.UUID]library.BorrowingTransaction),
	}
}

func (s state) clone() state {
	c := state{
		books:            make(map[uuid.UUID]library.Book, len(s.books)),
		bookOrder:        append([]uuid.UUID(nil), s.bookOrder...),
		transactions:     make(map[uuid.UUID]library.BorrowingTransaction, len(s.transactions)),
		transactionOrder: append([]uuid.UUID(nil), s.transactionOrder...),
	}

	for id, book := range s.books {
		c.books[id] = book
	}

	for id, transaction := range s.transactions {
		c.transactions[id] = transaction
	}

	return c
}

// Engine is an in-memory library.Engine. It is safe for concurrent use.
//
// Writes made outside Atomically are not isolated from a unit of work that rolls back.
type Engine struct {
	uowMu sync.Mutex
	mu    sync.Mutex
	state state

	failCommits     int
	failCommitsErr  error
	unitsOfWork     int
	committedUnits  int
	rolledBackUnits int
}

// New creates an empty Engine.
func New() *Engine {
	return &Engine{state: newState()}
}

// Books returns the BookStore of this engine.
func (e *Engine) Books() library.BookStore {
	return bookStore{engine: e}
}

// Transactions returns the TransactionStore of this engine.
func (e *Engine) Transactions() library.TransactionStore {
	return transactionStore{engine: e}
}

// Atomically runs fn as one unit of work. A nested call joins the outer unit of work.
// If fn returns an error or panics, all writes made since the start of the unit of work are undone.
func (e *Engine) Atomically(ctx context.Context, fn func(ctx context.Context) error) error {
	if library.InUnitOfWork(ctx) {
		return fn(ctx)
	}

	e.uowMu.Lock()
	defer e.uowMu.Unlock()

	e.mu.Lock()
	snapshot := e.state.clone()
	e.unitsOfWork++
	e.mu.Unlock()

	committed := false
	defer func() {
		if !committed {
			e.restore(snapshot)
		}
	}()

	if err := fn(library.MarkUnitOfWork(ctx)); err != nil {
		return err
	}

	if err := e.commitFailure(); err != nil {
		return err
	}

	committed = true

	e.mu.Lock()
	e.committedUnits++
	e.mu.Unlock()

	return nil
}

func (e *Engine) restore(snapshot state) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state = snapshot
	e.rolledBackUnits++
}

func (e *Engine) commitFailure() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.failCommits == 0 {
		return nil
	}

	e.failCommits--

	return e.failCommitsErr
}

// FailNextCommits makes the next n units of work fail at commit time with err, after their function
// succeeded. Their writes are rolled back. Tests use it to simulate serialization failures.
func (e *Engine) FailNextCommits(n int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.failCommits = n
	e.failCommitsErr = err
}

// Stats reports how many units of work were started, committed and rolled back.
func (e *Engine) Stats() (started, committed, rolledBack int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.unitsOfWork, e.committedUnits, e.rolledBackUnits
}

// Reset removes all data and counters.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state = newState()
	e.failCommits = 0
	e.failCommitsErr = nil
	e.unitsOfWork = 0
	e.committedUnits = 0
	e.rolledBackUnits = 0
}

func (e *Engine) withState(fn func(s *state) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return fn(&e.state)
}

func notFound(kind string, id uuid.UUID) error {
	return errors.Join(library.ErrNotFound, errors.New(kind+" "+id.String()))
}

func sortedByBorrowDateDesc(transactions []library.BorrowingTransaction) {
	sort.SliceStable(transactions, func(i, j int) bool {
		return transactions[i].BorrowDate.After(transactions[j].BorrowDate)
	})
}

// sortedByBorrowDate orders like the PostgreSQL listings: borrow date ascending, then id.
func sortedByBorrowDate(transactions []library.BorrowingTransaction) {
	sort.SliceStable(transactions, func(i, j int) bool {
		if !transactions[i].BorrowDate.Equal(transactions[j].BorrowDate) {
			return transactions[i].BorrowDate.Before(transactions[j].BorrowDate)
		}

		return bytes.Compare(transactions[i].ID[:], transactions[j].ID[:]) < 0
	})
}

var _ library.Engine = (*Engine)(nil)
