// Package filter provides AIP-160 filter expression parsing and SQL translation.
package filter

import (
	"fmt"
	"strings"
	"time"

	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// FieldKind is the declared type of a filterable field.
type FieldKind int

const (
	// KindString fields compare against quoted string literals.
	KindString FieldKind = iota
	// KindTimestamp fields compare against timestamp("...") literals and are
	// stored as Unix microseconds.
	KindTimestamp
)

// Field declares one filterable field and the SQL column it maps to.
type Field struct {
	Name   string
	Kind   FieldKind
	Column string
}

// Schema is the set of fields a filter expression may reference.
type Schema struct {
	fields []Field
	byName map[string]Field
}

// NewSchema builds a schema from field declarations.
func NewSchema(fields ...Field) Schema {
	byName := make(map[string]Field, len(fields))
	for _, field := range fields {
		byName[field.Name] = field
	}
	return Schema{fields: fields, byName: byName}
}

// SQLCondition represents a SQL WHERE clause fragment with parameters.
type SQLCondition struct {
	// Clause is the SQL WHERE clause (e.g., "username = ?").
	Clause string
	// Params are the positional parameters for the clause.
	Params []any
}

func (s Schema) declarations() (*filtering.Declarations, error) {
	opts := []filtering.DeclarationOption{filtering.DeclareStandardFunctions()}
	for _, field := range s.fields {
		switch field.Kind {
		case KindTimestamp:
			opts = append(opts, filtering.DeclareIdent(field.Name, filtering.TypeTimestamp))
		default:
			opts = append(opts, filtering.DeclareIdent(field.Name, filtering.TypeString))
		}
	}
	return filtering.NewDeclarations(opts...)
}

// Parse parses an AIP-160 filter expression and returns a SQL condition.
// Returns an empty condition for an empty filter string.
func (s Schema) Parse(filterStr string) (SQLCondition, error) {
	if strings.TrimSpace(filterStr) == "" {
		return SQLCondition{}, nil
	}

	decls, err := s.declarations()
	if err != nil {
		return SQLCondition{}, fmt.Errorf("create declarations: %w", err)
	}

	filter, err := filtering.ParseFilterString(filterStr, decls)
	if err != nil {
		return SQLCondition{}, fmt.Errorf("parse filter: %w", err)
	}

	return s.translateExpr(filter.CheckedExpr.GetExpr())
}

func (s Schema) translateExpr(e *expr.Expr) (SQLCondition, error) {
	if e == nil {
		return SQLCondition{}, nil
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_CallExpr:
		return s.translateCall(kind.CallExpr)
	default:
		return SQLCondition{}, fmt.Errorf("unsupported expression type: %T", kind)
	}
}

func (s Schema) translateCall(call *expr.Expr_Call) (SQLCondition, error) {
	switch call.Function {
	case "_&&_", "AND":
		return s.translateJunction(call.Args, "AND")
	case "_||_", "OR":
		return s.translateJunction(call.Args, "OR")
	case "_==_", "=":
		return s.translateComparison(call.Args, "=")
	case "_!=_", "!=":
		return s.translateComparison(call.Args, "!=")
	case "_<_", "<":
		return s.translateComparison(call.Args, "<")
	case "_<=_", "<=":
		return s.translateComparison(call.Args, "<=")
	case "_>_", ">":
		return s.translateComparison(call.Args, ">")
	case "_>=_", ">=":
		return s.translateComparison(call.Args, ">=")
	default:
		return SQLCondition{}, fmt.Errorf("unsupported function: %s", call.Function)
	}
}

func (s Schema) translateJunction(args []*expr.Expr, op string) (SQLCondition, error) {
	if len(args) < 2 {
		return SQLCondition{}, fmt.Errorf("%s requires at least 2 arguments", op)
	}

	clauses := make([]string, 0, len(args))
	var params []any
	for _, arg := range args {
		cond, err := s.translateExpr(arg)
		if err != nil {
			return SQLCondition{}, err
		}
		clauses = append(clauses, cond.Clause)
		params = append(params, cond.Params...)
	}

	return SQLCondition{
		Clause: "(" + strings.Join(clauses, " "+op+" ") + ")",
		Params: params,
	}, nil
}

func (s Schema) translateComparison(args []*expr.Expr, op string) (SQLCondition, error) {
	if len(args) != 2 {
		return SQLCondition{}, fmt.Errorf("comparison requires 2 arguments")
	}

	name, err := extractFieldName(args[0])
	if err != nil {
		return SQLCondition{}, err
	}

	field, ok := s.byName[name]
	if !ok {
		return SQLCondition{}, fmt.Errorf("unknown field: %s", name)
	}

	value, err := extractValue(args[1], field.Kind)
	if err != nil {
		return SQLCondition{}, fmt.Errorf("field %s: %w", name, err)
	}

	return SQLCondition{
		Clause: fmt.Sprintf("%s %s ?", field.Column, op),
		Params: []any{value},
	}, nil
}

func extractFieldName(e *expr.Expr) (string, error) {
	if e == nil {
		return "", fmt.Errorf("nil expression")
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_IdentExpr:
		return kind.IdentExpr.Name, nil
	default:
		return "", fmt.Errorf("expected identifier, got %T", kind)
	}
}

func extractValue(e *expr.Expr, fieldKind FieldKind) (any, error) {
	if e == nil {
		return nil, fmt.Errorf("nil expression")
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_ConstExpr:
		if fieldKind != KindString {
			return nil, fmt.Errorf("expected timestamp value")
		}
		strVal, ok := kind.ConstExpr.ConstantKind.(*expr.Constant_StringValue)
		if !ok {
			return nil, fmt.Errorf("unsupported constant type: %T", kind.ConstExpr.ConstantKind)
		}
		return strVal.StringValue, nil
	case *expr.Expr_CallExpr:
		if fieldKind == KindTimestamp && kind.CallExpr.Function == "timestamp" && len(kind.CallExpr.Args) == 1 {
			return extractTimestampValue(kind.CallExpr.Args[0])
		}
		return nil, fmt.Errorf("unsupported function in value position: %s", kind.CallExpr.Function)
	default:
		return nil, fmt.Errorf("expected constant or timestamp, got %T", kind)
	}
}

func extractTimestampValue(e *expr.Expr) (int64, error) {
	constExpr, ok := e.GetExprKind().(*expr.Expr_ConstExpr)
	if !ok {
		return 0, fmt.Errorf("timestamp argument must be a constant string")
	}
	strVal, ok := constExpr.ConstExpr.ConstantKind.(*expr.Constant_StringValue)
	if !ok {
		return 0, fmt.Errorf("timestamp argument must be a string")
	}
	t, err := time.Parse(time.RFC3339Nano, strVal.StringValue)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp format: %s", strVal.StringValue)
	}
	return t.UnixMicro(), nil
}
