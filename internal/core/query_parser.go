package core

import (
	"fmt"
	"math"

	"github.com/alecthomas/participle/v2"
)

/*
Capture filter language:

Query       := Expr
Expr        := OrExpr ( "OR" OrExpr )*
OrExpr      := Condition ( "AND" Condition )*
Condition   := ["NOT"] ( Filter | "(" Expr ")" )
Filter      := Label Op Value
Label       := "COUNT" "(" <identifier> ")" | <identifier>
Op          := "CONTAINS" | "<" | ">" | "="
Value       := <string> | <int>

Example: camera = "Camera 0" AND (COUNT(markers) > 0 OR notes CONTAINS "scratch")
*/

var (
	parser = participle.MustBuild[QueryExpr](
		participle.Unquote("String"),
		participle.Union[Value](StringValue{}, IntValue{}),
		participle.UseLookahead(2),
	)
)

func ParseQuery(query string) (Filter, error) {
	q, err := parser.ParseString("", query)
	if err != nil {
		return nil, fmt.Errorf("error parsing query '%s': %w", query, err)
	}

	filter, err := q.ToFilter()
	if err != nil {
		return nil, fmt.Errorf("invalid query '%s': %w", query, err)
	}

	return filter, nil
}

type QueryExpr struct {
	Expr *Expr `@@`
}

func (q *QueryExpr) ToFilter() (Filter, error) {
	return q.Expr.ToFilter()
}

func (q *QueryExpr) String() string {
	return q.Expr.String()
}

type Expr struct {
	Ors []*OrExpr `@@ ( "OR" @@ )*`
}

func (e *Expr) ToFilter() (Filter, error) {
	if len(e.Ors) == 0 {
		return nil, fmt.Errorf("empty OR expression")
	}

	if len(e.Ors) == 1 {
		return e.Ors[0].ToFilter()
	}

	filters := make([]Filter, 0, len(e.Ors))
	for _, cond := range e.Ors {
		f, err := cond.ToFilter()
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}

	return &OrFilter{filters: filters}, nil
}

func (e *Expr) String() string {
	if len(e.Ors) == 0 {
		return ""
	}

	if len(e.Ors) == 1 {
		return e.Ors[0].String()
	}

	out := fmt.Sprintf("(%s)", e.Ors[0].String())
	for _, cond := range e.Ors[1:] {
		out += fmt.Sprintf(" OR (%s)", cond.String())
	}

	return out
}

type OrExpr struct {
	Ands []*Condition `@@ ( "AND" @@ )*`
}

func (o *OrExpr) ToFilter() (Filter, error) {
	if len(o.Ands) == 0 {
		return nil, fmt.Errorf("empty AND expression")
	}

	if len(o.Ands) == 1 {
		return o.Ands[0].ToFilter()
	}

	filters := make([]Filter, 0, len(o.Ands))
	for _, cond := range o.Ands {
		f, err := cond.ToFilter()
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}

	return &AndFilter{filters: filters}, nil
}

func (o *OrExpr) String() string {
	if len(o.Ands) == 0 {
		return ""
	}

	if len(o.Ands) == 1 {
		return o.Ands[0].String()
	}

	out := fmt.Sprintf("(%s)", o.Ands[0].String())
	for _, cond := range o.Ands[1:] {
		out += fmt.Sprintf(" AND (%s)", cond.String())
	}

	return out
}

type Condition struct {
	Not     bool        `@"NOT"?`
	Filter  *FilterExpr `( @@`
	SubExpr *Expr       `| "(" @@ ")" )`
}

func (c *Condition) ToFilter() (Filter, error) {
	var filter Filter
	var err error
	if c.Filter != nil {
		filter, err = c.Filter.ToFilter()
	} else if c.SubExpr != nil {
		filter, err = c.SubExpr.ToFilter()
	} else {
		return nil, fmt.Errorf("empty condition")
	}

	if err != nil {
		return nil, err
	}

	if c.Not {
		filter = &NotFilter{filter: filter}
	}

	return filter, nil
}

func (c *Condition) String() string {
	var out string
	if c.SubExpr != nil {
		out = c.SubExpr.String()
	} else {
		out = c.Filter.String()
	}
	if c.Not {
		return fmt.Sprintf("NOT (%s)", out)
	}
	return out
}

type FilterExpr struct {
	Label Label  `@@`
	Op    string `@("CONTAINS" | "<" | ">" | "=" )`
	Value Value  `@@`
}

func (f *FilterExpr) ToFilter() (Filter, error) {
	field := f.Label.Field()
	kind, ok := captureFields[field]
	if !ok {
		return nil, fmt.Errorf("unknown field '%s'", field)
	}

	if f.Label.Count != nil {
		if kind != listField {
			return nil, fmt.Errorf("COUNT is only supported for markers and barcodes, not '%s'", field)
		}
		i, ok := f.Value.(IntValue)
		if !ok {
			return nil, fmt.Errorf("COUNT expr requires an int value to compare to")
		}

		switch f.Op {
		case "<":
			return &CountFilter{field: field, min: -1, max: i.Value}, nil
		case ">":
			return &CountFilter{field: field, min: i.Value, max: math.MaxInt}, nil
		case "=":
			return &CountFilter{field: field, min: i.Value - 1, max: i.Value + 1}, nil
		default:
			return nil, fmt.Errorf("invalid operator %s used with COUNT", f.Op)
		}
	}

	if i, ok := f.Value.(IntValue); ok {
		if kind != intField {
			return nil, fmt.Errorf("field '%s' must be compared to a string", field)
		}
		switch f.Op {
		case "<", ">", "=":
			return &IntCompareFilter{field: field, op: f.Op, value: i.Value}, nil
		default:
			return nil, fmt.Errorf("invalid operator %s used with int value", f.Op)
		}
	}

	s := f.Value.(StringValue)
	switch f.Op {
	case "CONTAINS":
		return &SubstringFilter{field: field, substr: s.Value}, nil
	case "<":
		return &StringLtFilter{field: field, value: s.Value}, nil
	case ">":
		return &StringGtFilter{field: field, value: s.Value}, nil
	case "=":
		return &StringEqFilter{field: field, value: s.Value}, nil
	default:
		return nil, fmt.Errorf("invalid operator %s used with string value", f.Op)
	}
}

func (f *FilterExpr) String() string {
	return fmt.Sprintf("%v %s %v", f.Label.String(), f.Op, f.Value)
}

type CountLabel struct {
	Name string `"COUNT" "(" @Ident ")"`
}

type Label struct {
	Count *CountLabel `  @@`
	Name  string      `| @Ident`
}

func (l *Label) Field() string {
	if l.Count != nil {
		return l.Count.Name
	}
	return l.Name
}

func (l *Label) String() string {
	if l.Count != nil {
		return fmt.Sprintf("COUNT(%s)", l.Count.Name)
	}
	return l.Name
}

type Value interface{ value() }

type StringValue struct {
	Value string `@String`
}

func (s StringValue) value() {}

type IntValue struct {
	Value int `@Int`
}

func (i IntValue) value() {}
