package postgresengine

import (
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-borrowing-go/library"
)

const (
	defaultBooksTableName        = "books"
	defaultTransactionsTableName = "borrowing_transactions"
	dialectPostgres              = "postgres"
	colID                        = "id"
	colTitle                     = "title"
	colAuthor                    = "author"
	colISBN                      = "isbn"
	colAvailabilityStatus        = "availability_status"
	colBookID                    = "book_id"
	colBorrowerName              = "borrower_name"
	colBorrowDate                = "borrow_date"
	colReturnDate                = "return_date"
	colStatus                    = "status"
	aliasCount                   = "cnt"
	schemaMigrationsTableName    = "schema_migrations"
	colVersion                   = "version"
	colAppliedAt                 = "applied_at"
)

type (
	sqlQueryString = string
	sqlArgs        = []any
)

var (
	bookColumns        = []any{colID, colTitle, colAuthor, colISBN, colAvailabilityStatus}
	transactionColumns = []any{colID, colBookID, colBorrowerName, colBorrowDate, colReturnDate, colStatus}
)

// queryBuilder builds all SQL statements of the engine with goqu, using prepared placeholders.
type queryBuilder struct {
	booksTable        string
	transactionsTable string
}

func newQueryBuilder() queryBuilder {
	return queryBuilder{
		booksTable:        defaultBooksTableName,
		transactionsTable: defaultTransactionsTableName,
	}
}

func (qb queryBuilder) dialect() goqu.DialectWrapper {
	return goqu.Dialect(dialectPostgres)
}

// uniqueISBNConstraint is the name of the unique constraint on the isbn column.
func (qb queryBuilder) uniqueISBNConstraint() string {
	return qb.booksTable + "_isbn_key"
}

// onePendingPerBookIndex is the name of the partial unique index allowing one PENDING transaction per book.
func (qb queryBuilder) onePendingPerBookIndex() string {
	return qb.transactionsTable + "_one_pending_per_book"
}

func (qb queryBuilder) selectBooks() *goqu.SelectDataset {
	return qb.dialect().
		From(qb.booksTable).
		Prepared(true).
		Select(bookColumns...)
}

func (qb queryBuilder) selectTransactions() *goqu.SelectDataset {
	return qb.dialect().
		From(qb.transactionsTable).
		Prepared(true).
		Select(transactionColumns...)
}

func (qb queryBuilder) buildInsertBook(book library.Book) (sqlQueryString, sqlArgs, error) {
	insertStmt := qb.dialect().
		Insert(qb.booksTable).
		Prepared(true).
		Rows(goqu.Record{
			colID:                 book.ID,
			colTitle:              book.Title,
			colAuthor:             book.Author,
			colISBN:               book.ISBN,
			colAvailabilityStatus: book.AvailabilityStatus.String(),
		})

	return toSQL(insertStmt.ToSQL())
}

func (qb queryBuilder) buildUpdateBook(book library.Book) (sqlQueryString, sqlArgs, error) {
	updateStmt := qb.dialect().
		Update(qb.booksTable).
		Prepared(true).
		Set(goqu.Record{
			colTitle:              book.Title,
			colAuthor:             book.Author,
			colISBN:               book.ISBN,
			colAvailabilityStatus: book.AvailabilityStatus.String(),
		}).
		Where(goqu.C(colID).Eq(book.ID))

	return toSQL(updateStmt.ToSQL())
}

func (qb queryBuilder) buildSelectBookByID(id uuid.UUID, forUpdate bool) (sqlQueryString, sqlArgs, error) {
	selectStmt := qb.selectBooks().Where(goqu.C(colID).Eq(id))

	return toSQL(lockIf(selectStmt, forUpdate).ToSQL())
}

func (qb queryBuilder) buildSelectBookByISBN(isbn string, forUpdate bool) (sqlQueryString, sqlArgs, error) {
	selectStmt := qb.selectBooks().Where(goqu.C(colISBN).Eq(isbn))

	return toSQL(lockIf(selectStmt, forUpdate).ToSQL())
}

func (qb queryBuilder) buildSelectBooksByAvailability(status library.AvailabilityStatus) (sqlQueryString, sqlArgs, error) {
	selectStmt := qb.selectBooks().
		Where(goqu.C(colAvailabilityStatus).Eq(status.String())).
		Order(goqu.C(colID).Asc())

	return toSQL(selectStmt.ToSQL())
}

func (qb queryBuilder) buildSelectAllBooks() (sqlQueryString, sqlArgs, error) {
	selectStmt := qb.selectBooks().Order(goqu.C(colID).Asc())

	return toSQL(selectStmt.ToSQL())
}

func (qb queryBuilder) buildCountBooksByISBN(isbn string) (sqlQueryString, sqlArgs, error) {
	selectStmt := qb.dialect().
		From(qb.booksTable).
		Prepared(true).
		Select(goqu.COUNT(goqu.Star()).As(aliasCount)).
		Where(goqu.C(colISBN).Eq(isbn))

	return toSQL(selectStmt.ToSQL())
}

func (qb queryBuilder) buildInsertTransaction(transaction library.BorrowingTransaction) (sqlQueryString, sqlArgs, error) {
	insertStmt := qb.dialect().
		Insert(qb.transactionsTable).
		Prepared(true).
		Rows(goqu.Record{
			colID:           transaction.ID,
			colBookID:       transaction.BookID,
			colBorrowerName: transaction.BorrowerName,
			colBorrowDate:   transaction.BorrowDate,
			colReturnDate:   returnDateValue(transaction),
			colStatus:       transaction.Status.String(),
		})

	return toSQL(insertStmt.ToSQL())
}

func (qb queryBuilder) buildUpdateTransaction(transaction library.BorrowingTransaction) (sqlQueryString, sqlArgs, error) {
	updateStmt := qb.dialect().
		Update(qb.transactionsTable).
		Prepared(true).
		Set(goqu.Record{
			colBorrowerName: transaction.BorrowerName,
			colBorrowDate:   transaction.BorrowDate,
			colReturnDate:   returnDateValue(transaction),
			colStatus:       transaction.Status.String(),
		}).
		Where(goqu.C(colID).Eq(transaction.ID))

	return toSQL(updateStmt.ToSQL())
}

func (qb queryBuilder) buildSelectTransactionByID(id uuid.UUID, forUpdate bool) (sqlQueryString, sqlArgs, error) {
	selectStmt := qb.selectTransactions().Where(goqu.C(colID).Eq(id))

	return toSQL(lockIf(selectStmt, forUpdate).ToSQL())
}

func (qb queryBuilder) buildSelectTransactionsByStatus(status library.BorrowingStatus) (sqlQueryString, sqlArgs, error) {
	selectStmt := qb.selectTransactions().
		Where(goqu.C(colStatus).Eq(status.String())).
		Order(goqu.C(colBorrowDate).Asc(), goqu.C(colID).Asc())

	return toSQL(selectStmt.ToSQL())
}

func (qb queryBuilder) buildSelectTransactionsByBook(bookID uuid.UUID) (sqlQueryString, sqlArgs, error) {
	selectStmt := qb.selectTransactions().
		Where(goqu.C(colBookID).Eq(bookID)).
		Order(goqu.C(colBorrowDate).Asc(), goqu.C(colID).Asc())

	return toSQL(selectStmt.ToSQL())
}

func (qb queryBuilder) buildSelectLatestPendingTransactionForBook(bookID uuid.UUID, forUpdate bool) (sqlQueryString, sqlArgs, error) {
	selectStmt := qb.selectTransactions().
		Where(
			goqu.C(colBookID).Eq(bookID),
			goqu.C(colStatus).Eq(library.Pending.String()),
		).
		Order(goqu.C(colBorrowDate).Desc()).
		Limit(1)

	return toSQL(lockIf(selectStmt, forUpdate).ToSQL())
}

func (qb queryBuilder) buildSelectAllTransactions() (sqlQueryString, sqlArgs, error) {
	selectStmt := qb.selectTransactions().Order(goqu.C(colBorrowDate).Asc(), goqu.C(colID).Asc())

	return toSQL(selectStmt.ToSQL())
}

func (qb queryBuilder) buildCountAppliedMigrations(version string) (sqlQueryString, sqlArgs, error) {
	selectStmt := qb.dialect().
		From(schemaMigrationsTableName).
		Prepared(true).
		Select(goqu.COUNT(goqu.Star()).As(aliasCount)).
		Where(goqu.C(colVersion).Eq(version))

	return toSQL(selectStmt.ToSQL())
}

func (qb queryBuilder) buildInsertAppliedMigration(version string, appliedAt time.Time) (sqlQueryString, sqlArgs, error) {
	insertStmt := qb.dialect().
		Insert(schemaMigrationsTableName).
		Prepared(true).
		Rows(goqu.Record{
			colVersion:   version,
			colAppliedAt: appliedAt,
		})

	return toSQL(insertStmt.ToSQL())
}

// lockIf adds FOR UPDATE to the statement, used for lookups inside a unit of work.
func lockIf(selectStmt *goqu.SelectDataset, forUpdate bool) *goqu.SelectDataset {
	if forUpdate {
		return selectStmt.ForUpdate(exp.Wait)
	}

	return selectStmt
}

// returnDateValue maps the optional return date to a goqu value, nil becomes NULL.
func returnDateValue(transaction library.BorrowingTransaction) any {
	if transaction.ReturnDate == nil {
		return nil
	}

	return *transaction.ReturnDate
}

func toSQL(sqlQuery string, args []any, toSQLErr error) (sqlQueryString, sqlArgs, error) {
	if toSQLErr != nil {
		return "", nil, errors.Join(library.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, args, nil
}
