// Package census implements a client for the Daybreak Census REST API:
// a structured query builder that renders the census query-string syntax,
// and an HTTP client with the service's error-shape detection and an
// optional response cache.
package census

import (
	"fmt"
	"net/url"
	"strings"
)

// SearchModifier prefixes a term's value to change how it is matched.
type SearchModifier string

const (
	ModEquals         SearchModifier = ""
	ModNot            SearchModifier = "!"
	ModLess           SearchModifier = "<"
	ModLessOrEqual    SearchModifier = "["
	ModGreater        SearchModifier = ">"
	ModGreaterOrEqual SearchModifier = "]"
	ModStartsWith     SearchModifier = "^"
	ModContains       SearchModifier = "*"
)

// Term is one field condition of a query.
type Term struct {
	Field    string
	Modifier SearchModifier
	Value    string
}

func (t Term) encode() string {
	return url.QueryEscape(t.Field) + "=" + string(t.Modifier) + url.QueryEscape(t.Value)
}

// Query describes one census request against a collection. Build it fluently
// and pass it to Client.Get; Encode renders the collection path and
// query-string without hand-built URLs at call sites.
type Query struct {
	collection      string
	terms           []Term
	limit           int
	start           int
	show            []string
	hide            []string
	sort            []string
	lang            string
	exactMatchFirst bool
	caseSensitive   bool
	timing          bool
	includeNull     bool
	joins           []*Join
	tree            *Tree
}

// NewQuery starts a query against the named collection.
func NewQuery(collection string) *Query {
	return &Query{collection: collection, limit: -1, start: -1}
}

// Where adds an equality term.
func (q *Query) Where(field, value string) *Query {
	return q.WhereOp(field, ModEquals, value)
}

// WhereOp adds a term with an explicit search modifier.
func (q *Query) WhereOp(field string, mod SearchModifier, value string) *Query {
	q.terms = append(q.terms, Term{Field: field, Modifier: mod, Value: value})
	return q
}

// Limit caps the number of returned records (c:limit).
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// Start skips the first n records (c:start).
func (q *Query) Start(n int) *Query {
	q.start = n
	return q
}

// Show restricts the response to the named fields (c:show).
func (q *Query) Show(fields ...string) *Query {
	q.show = append(q.show, fields...)
	return q
}

// Hide drops the named fields from the response (c:hide).
func (q *Query) Hide(fields ...string) *Query {
	q.hide = append(q.hide, fields...)
	return q
}

// SortAsc sorts ascending by field (c:sort).
func (q *Query) SortAsc(field string) *Query {
	q.sort = append(q.sort, field+":1")
	return q
}

// SortDesc sorts descending by field (c:sort).
func (q *Query) SortDesc(field string) *Query {
	q.sort = append(q.sort, field+":-1")
	return q
}

// Lang restricts localized strings to one locale (c:lang).
func (q *Query) Lang(lang string) *Query {
	q.lang = lang
	return q
}

// ExactMatchFirst floats exact matches of a ^ or * term to the top
// (c:exactMatchFirst).
func (q *Query) ExactMatchFirst() *Query {
	q.exactMatchFirst = true
	return q
}

// CaseSensitive makes term matching case-sensitive (c:case, the service
// defaults to insensitive).
func (q *Query) CaseSensitive() *Query {
	q.caseSensitive = true
	return q
}

// Timing includes server-side timing information (c:timing).
func (q *Query) Timing() *Query {
	q.timing = true
	return q
}

// IncludeNull includes fields with null values (c:includeNull).
func (q *Query) IncludeNull() *Query {
	q.includeNull = true
	return q
}

// WithJoin attaches a join (c:join). Repeated calls add sibling joins.
func (q *Query) WithJoin(joins ...*Join) *Query {
	q.joins = append(q.joins, joins...)
	return q
}

// WithTree reshapes the flat result list into a tree (c:tree).
func (q *Query) WithTree(tree *Tree) *Query {
	q.tree = tree
	return q
}

// Collection returns the queried collection name.
func (q *Query) Collection() string {
	return q.collection
}

// Encode renders "collection?terms&c:modifiers" in census syntax.
func (q *Query) Encode() string {
	var parts []string
	for _, t := range q.terms {
		parts = append(parts, t.encode())
	}
	if q.limit >= 0 {
		parts = append(parts, fmt.Sprintf("c:limit=%d", q.limit))
	}
	if q.start >= 0 {
		parts = append(parts, fmt.Sprintf("c:start=%d", q.start))
	}
	if len(q.show) > 0 {
		parts = append(parts, "c:show="+strings.Join(q.show, ","))
	}
	if len(q.hide) > 0 {
		parts = append(parts, "c:hide="+strings.Join(q.hide, ","))
	}
	if len(q.sort) > 0 {
		parts = append(parts, "c:sort="+strings.Join(q.sort, ","))
	}
	if q.lang != "" {
		parts = append(parts, "c:lang="+q.lang)
	}
	if q.exactMatchFirst {
		parts = append(parts, "c:exactMatchFirst=true")
	}
	if q.caseSensitive {
		parts = append(parts, "c:case=true")
	}
	if q.timing {
		parts = append(parts, "c:timing=true")
	}
	if q.includeNull {
		parts = append(parts, "c:includeNull=true")
	}
	if len(q.joins) > 0 {
		encoded := make([]string, 0, len(q.joins))
		for _, j := range q.joins {
			encoded = append(encoded, j.encode())
		}
		parts = append(parts, "c:join="+strings.Join(encoded, ","))
	}
	if q.tree != nil {
		parts = append(parts, "c:tree="+q.tree.encode())
	}

	if len(parts) == 0 {
		return q.collection
	}
	return q.collection + "?" + strings.Join(parts, "&")
}
