// Package engine is the command surface: it receives already-parsed
// statement trees (spec.md §4.9 treats the parser as an external
// collaborator) and dispatches each to the catalog, table heap and
// B+-tree packages. The statement/predicate AST shape here is the
// minimal surface a future SQL parser would target; cmd/minisql's
// shell constructs these values directly from its line-oriented
// command forms.
package engine

import "github.com/JerryiaL/minisql/pkg/record"

// Statement is any parsed command the engine can execute.
type Statement interface{ stmt() }

// CreateDatabase creates (and opens) a new database file.
type CreateDatabase struct{ Name string }

// DropDatabase deletes a database's file from the root directory.
type DropDatabase struct{ Name string }

// ShowDatabases lists every database file under the root directory.
type ShowDatabases struct{}

// Use switches the engine's current database.
type Use struct{ Name string }

// ShowTables lists every table in the current database.
type ShowTables struct{}

// ShowIndexes lists every index on Table in the current database.
type ShowIndexes struct{ Table string }

// CreateTable defines a new table with the given column schema.
type CreateTable struct {
	Table  string
	Schema record.Schema
}

// DropTable removes a table and every index on it.
type DropTable struct{ Table string }

// CreateIndex builds an index over Columns of Table.
type CreateIndex struct {
	Table   string
	Index   string
	Columns []string
}

// DropIndex removes an index from Table.
type DropIndex struct {
	Table string
	Index string
}

// Insert appends one row of Values to Table, in schema column order.
type Insert struct {
	Table  string
	Values []record.Field
}

// Select returns every row of Table matching Where (nil matches all).
type Select struct {
	Table string
	Where Predicate
}

// Delete removes every row of Table matching Where.
type Delete struct {
	Table string
	Where Predicate
}

// Update overwrites Set's fields on every row of Table matching Where.
type Update struct {
	Table string
	Set   map[string]record.Field
	Where Predicate
}

func (CreateDatabase) stmt() {}
func (DropDatabase) stmt()   {}
func (ShowDatabases) stmt()  {}
func (Use) stmt()            {}
func (ShowTables) stmt()     {}
func (ShowIndexes) stmt()    {}
func (CreateTable) stmt()    {}
func (DropTable) stmt()      {}
func (CreateIndex) stmt()    {}
func (DropIndex) stmt()      {}
func (Insert) stmt()         {}
func (Select) stmt()         {}
func (Delete) stmt()         {}
func (Update) stmt()         {}

// CompareOp is a predicate's scalar comparison operator.
type CompareOp int

const (
	OpEQ CompareOp = iota
	OpNE
	OpLT
	OpLE
	OpGT
	OpGE
)

// Predicate is a boolean tree over a row's fields: a leaf Comparison,
// or an And/Or connective of two sub-predicates.
type Predicate interface{ pred() }

// Comparison tests Column against Value using Op.
type Comparison struct {
	Column string
	Op     CompareOp
	Value  record.Field
}

// And is true when both sub-predicates are true.
type And struct{ Left, Right Predicate }

// Or is true when either sub-predicate is true.
type Or struct{ Left, Right Predicate }

func (Comparison) pred() {}
func (And) pred()        {}
func (Or) pred()         {}
