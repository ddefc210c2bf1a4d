// The minisql shell's line-oriented command forms stand in for the
// SQL parser spec.md §4.9 treats as an external collaborator: each
// function below builds an internal/engine.Statement (or Predicate)
// directly from a tokenized command line, the minimal surface a real
// parser would target.
package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/JerryiaL/minisql/internal/engine"
	"github.com/JerryiaL/minisql/pkg/record"
)

// parseStatement tokenizes one shell line into an engine.Statement.
func parseStatement(line string) (engine.Statement, error) {
	fields := tokenize(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty statement")
	}
	kw := strings.ToLower(fields[0])

	switch kw {
	case "create":
		return parseCreate(fields)
	case "drop":
		return parseDrop(fields)
	case "show":
		return parseShow(fields)
	case "use":
		if len(fields) != 2 {
			return nil, fmt.Errorf("usage: use <database>")
		}
		return engine.Use{Name: fields[1]}, nil
	case "insert":
		return parseInsert(fields)
	case "select":
		return parseSelect(fields)
	case "delete":
		return parseDelete(fields)
	case "update":
		return parseUpdate(fields)
	default:
		return nil, fmt.Errorf("unrecognized statement: %s", fields[0])
	}
}

func parseCreate(fields []string) (engine.Statement, error) {
	if len(fields) < 2 {
		return nil, fmt.Errorf("usage: create database|table|index ...")
	}
	switch strings.ToLower(fields[1]) {
	case "database":
		if len(fields) != 3 {
			return nil, fmt.Errorf("usage: create database <name>")
		}
		return engine.CreateDatabase{Name: fields[2]}, nil
	case "table":
		return parseCreateTable(fields)
	case "index":
		return parseCreateIndex(fields)
	default:
		return nil, fmt.Errorf("usage: create database|table|index ...")
	}
}

// parseCreateTable expects: create table NAME ( col type[(len)], ... )
func parseCreateTable(fields []string) (engine.Statement, error) {
	if len(fields) < 4 {
		return nil, fmt.Errorf("usage: create table <name> ( col type, ... )")
	}
	name := fields[2]
	rest := strings.Join(fields[3:], " ")
	body := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(rest), "("), ")")
	var cols []record.Column
	for i, part := range splitTopLevel(body, ',') {
		def := strings.Fields(strings.TrimSpace(part))
		if len(def) < 2 {
			return nil, fmt.Errorf("bad column definition: %q", part)
		}
		typ, length, err := parseTypeTag(def[1])
		if err != nil {
			return nil, err
		}
		cols = append(cols, record.Column{
			Name:     def[0],
			Type:     typ,
			Length:   length,
			Position: uint32(i),
		})
	}
	return engine.CreateTable{Table: name, Schema: record.Schema{Columns: cols}}, nil
}

// parseTypeTag accepts int, bigint, float, bool, varchar(N), char(N).
func parseTypeTag(tok string) (record.TypeTag, uint32, error) {
	tok = strings.ToLower(tok)
	if idx := strings.Index(tok, "("); idx >= 0 && strings.HasSuffix(tok, ")") {
		base := tok[:idx]
		n, err := strconv.Atoi(tok[idx+1 : len(tok)-1])
		if err != nil {
			return 0, 0, fmt.Errorf("bad length in type %q: %w", tok, err)
		}
		switch base {
		case "varchar":
			return record.TypeVarchar, uint32(n), nil
		case "char":
			return record.TypeChar, uint32(n), nil
		}
		return 0, 0, fmt.Errorf("unknown sized type %q", tok)
	}
	switch tok {
	case "int":
		return record.TypeInt, 4, nil
	case "bigint":
		return record.TypeBigInt, 8, nil
	case "float":
		return record.TypeFloat, 8, nil
	case "bool":
		return record.TypeBool, 1, nil
	default:
		return 0, 0, fmt.Errorf("unknown type %q", tok)
	}
}

// parseCreateIndex expects: create index NAME on TABLE ( col, ... )
func parseCreateIndex(fields []string) (engine.Statement, error) {
	if len(fields) < 6 || strings.ToLower(fields[3]) != "on" {
		return nil, fmt.Errorf("usage: create index <name> on <table> ( col, ... )")
	}
	name := fields[2]
	table := fields[4]
	body := strings.TrimSuffix(strings.TrimPrefix(strings.Join(fields[5:], " "), "("), ")")
	var cols []string
	for _, c := range splitTopLevel(body, ',') {
		cols = append(cols, strings.TrimSpace(c))
	}
	return engine.CreateIndex{Table: table, Index: name, Columns: cols}, nil
}

func parseDrop(fields []string) (engine.Statement, error) {
	if len(fields) < 3 {
		return nil, fmt.Errorf("usage: drop database|table|index ...")
	}
	switch strings.ToLower(fields[1]) {
	case "database":
		return engine.DropDatabase{Name: fields[2]}, nil
	case "table":
		return engine.DropTable{Table: fields[2]}, nil
	case "index":
		if len(fields) < 5 || strings.ToLower(fields[3]) != "on" {
			return nil, fmt.Errorf("usage: drop index <name> on <table>")
		}
		return engine.DropIndex{Table: fields[4], Index: fields[2]}, nil
	default:
		return nil, fmt.Errorf("usage: drop database|table|index ...")
	}
}

func parseShow(fields []string) (engine.Statement, error) {
	if len(fields) < 2 {
		return nil, fmt.Errorf("usage: show databases|tables|indexes ...")
	}
	switch strings.ToLower(fields[1]) {
	case "databases":
		return engine.ShowDatabases{}, nil
	case "tables":
		return engine.ShowTables{}, nil
	case "indexes":
		if len(fields) < 4 || strings.ToLower(fields[2]) != "on" {
			return nil, fmt.Errorf("usage: show indexes on <table>")
		}
		return engine.ShowIndexes{Table: fields[3]}, nil
	default:
		return nil, fmt.Errorf("usage: show databases|tables|indexes ...")
	}
}

// parseInsert expects: insert into TABLE values ( v1, v2, ... )
func parseInsert(fields []string) (engine.Statement, error) {
	if len(fields) < 5 || strings.ToLower(fields[1]) != "into" || strings.ToLower(fields[3]) != "values" {
		return nil, fmt.Errorf("usage: insert into <table> values ( v1, v2, ... )")
	}
	table := fields[2]
	body := strings.TrimSuffix(strings.TrimPrefix(strings.Join(fields[4:], " "), "("), ")")
	var values []record.Field
	for _, v := range splitTopLevel(body, ',') {
		values = append(values, parseLiteral(strings.TrimSpace(v)))
	}
	return engine.Insert{Table: table, Values: values}, nil
}

// parseSelect expects: select * from TABLE [where col op val [and|or col op val]...]
func parseSelect(fields []string) (engine.Statement, error) {
	if len(fields) < 4 || strings.ToLower(fields[2]) != "from" {
		return nil, fmt.Errorf("usage: select * from <table> [where ...]")
	}
	table := fields[3]
	where, err := parseWhere(fields[4:])
	if err != nil {
		return nil, err
	}
	return engine.Select{Table: table, Where: where}, nil
}

// parseDelete expects: delete from TABLE [where ...]
func parseDelete(fields []string) (engine.Statement, error) {
	if len(fields) < 3 || strings.ToLower(fields[1]) != "from" {
		return nil, fmt.Errorf("usage: delete from <table> [where ...]")
	}
	table := fields[2]
	where, err := parseWhere(fields[3:])
	if err != nil {
		return nil, err
	}
	return engine.Delete{Table: table, Where: where}, nil
}

// parseUpdate expects: update TABLE set col = val [, col = val ...] [where ...]
func parseUpdate(fields []string) (engine.Statement, error) {
	if len(fields) < 5 || strings.ToLower(fields[2]) != "set" {
		return nil, fmt.Errorf("usage: update <table> set col = val [where ...]")
	}
	table := fields[1]

	rest := fields[3:]
	whereAt := -1
	for i, f := range rest {
		if strings.ToLower(f) == "where" {
			whereAt = i
			break
		}
	}
	assignTokens := rest
	var whereTokens []string
	if whereAt >= 0 {
		assignTokens = rest[:whereAt]
		whereTokens = rest[whereAt:]
	}

	set := make(map[string]record.Field)
	for _, clause := range splitTopLevel(strings.Join(assignTokens, " "), ',') {
		parts := strings.SplitN(clause, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("bad assignment: %q", clause)
		}
		set[strings.TrimSpace(parts[0])] = parseLiteral(strings.TrimSpace(parts[1]))
	}

	where, err := parseWhere(whereTokens)
	if err != nil {
		return nil, err
	}
	return engine.Update{Table: table, Set: set, Where: where}, nil
}

// parseWhere accepts a (possibly empty) ["where", col, op, val, ["and"|"or", col, op, val]...] token run.
func parseWhere(tokens []string) (engine.Predicate, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	if strings.ToLower(tokens[0]) != "where" {
		return nil, fmt.Errorf("expected 'where', got %q", tokens[0])
	}
	tokens = tokens[1:]
	if len(tokens) < 3 {
		return nil, fmt.Errorf("usage: where col op val")
	}

	var pred engine.Predicate
	connector := ""
	for len(tokens) >= 3 {
		op, err := parseCompareOp(tokens[1])
		if err != nil {
			return nil, err
		}
		cmp := engine.Comparison{Column: tokens[0], Op: op, Value: parseLiteral(tokens[2])}
		switch {
		case pred == nil:
			pred = cmp
		case strings.EqualFold(connector, "or"):
			pred = engine.Or{Left: pred, Right: cmp}
		default:
			pred = engine.And{Left: pred, Right: cmp}
		}

		if len(tokens) == 3 {
			break
		}
		connector = tokens[3]
		tokens = tokens[4:]
	}
	return pred, nil
}

func parseCompareOp(tok string) (engine.CompareOp, error) {
	switch tok {
	case "=":
		return engine.OpEQ, nil
	case "!=", "<>":
		return engine.OpNE, nil
	case "<":
		return engine.OpLT, nil
	case "<=":
		return engine.OpLE, nil
	case ">":
		return engine.OpGT, nil
	case ">=":
		return engine.OpGE, nil
	default:
		return 0, fmt.Errorf("unknown operator %q", tok)
	}
}

// parseLiteral guesses a value's type from its shell spelling: a
// quoted string is Char, "true"/"false" is Bool, a token containing
// '.' that parses as a float is Float, an integer within int32 range
// is Int and a wider one BigInt; anything else is taken as an
// unquoted Char.
func parseLiteral(tok string) record.Field {
	if len(tok) >= 2 && tok[0] == '\'' && tok[len(tok)-1] == '\'' {
		return record.NewChar(tok[1 : len(tok)-1])
	}
	if tok == "true" || tok == "false" {
		return record.NewBool(tok == "true")
	}
	if strings.Contains(tok, ".") {
		if f, err := strconv.ParseFloat(tok, 64); err == nil {
			return record.NewFloat(f)
		}
	}
	if n, err := strconv.ParseInt(tok, 10, 32); err == nil {
		return record.NewInt(int32(n))
	}
	if n, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return record.NewBigInt(n)
	}
	return record.NewChar(tok)
}

// tokenize splits a line on whitespace, keeping parenthesized groups
// and single-quoted strings as part of adjacent tokens untouched —
// callers that need to split on commas inside a group use
// splitTopLevel instead.
func tokenize(line string) []string {
	return strings.Fields(line)
}

// splitTopLevel splits s on sep, ignoring occurrences inside a
// single-quoted string.
func splitTopLevel(s string, sep rune) []string {
	var parts []string
	var cur strings.Builder
	inQuote := false
	for _, r := range s {
		switch {
		case r == '\'':
			inQuote = !inQuote
			cur.WriteRune(r)
		case r == sep && !inQuote:
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 || len(parts) > 0 {
		parts = append(parts, cur.String())
	}
	return parts
}
