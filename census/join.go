package census

import "strings"

// Join describes one c:join clause: a related collection resolved into each
// record of the parent result. Joins nest recursively.
type Join struct {
	collection string
	on         string
	to         string
	injectAt   string
	list       bool
	outer      bool
	show       []string
	hide       []string
	terms      []Term
	joins      []*Join
}

// NewJoin starts a join on the named collection. Joins are outer by default,
// matching the service.
func NewJoin(collection string) *Join {
	return &Join{collection: collection, outer: true}
}

// On sets the parent-side join field.
func (j *Join) On(field string) *Join {
	j.on = field
	return j
}

// To sets the child-side join field.
func (j *Join) To(field string) *Join {
	j.to = field
	return j
}

// InjectAt names the field the joined data is placed under.
func (j *Join) InjectAt(field string) *Join {
	j.injectAt = field
	return j
}

// List marks the join as one-to-many.
func (j *Join) List() *Join {
	j.list = true
	return j
}

// Inner makes the join inner: parent records without a match are dropped.
func (j *Join) Inner() *Join {
	j.outer = false
	return j
}

// Show restricts the joined record to the named fields.
func (j *Join) Show(fields ...string) *Join {
	j.show = append(j.show, fields...)
	return j
}

// Hide drops the named fields from the joined record.
func (j *Join) Hide(fields ...string) *Join {
	j.hide = append(j.hide, fields...)
	return j
}

// Where adds a term filtering the joined collection.
func (j *Join) Where(field, value string) *Join {
	j.terms = append(j.terms, Term{Field: field, Value: value})
	return j
}

// WithJoin nests a child join.
func (j *Join) WithJoin(children ...*Join) *Join {
	j.joins = append(j.joins, children...)
	return j
}

// encode renders the join in `collection^key:value^...(children)` syntax.
// Lists inside a join value use ' as the separator.
func (j *Join) encode() string {
	var b strings.Builder
	b.WriteString(j.collection)
	if j.on != "" {
		b.WriteString("^on:" + j.on)
	}
	if j.to != "" {
		b.WriteString("^to:" + j.to)
	}
	if j.list {
		b.WriteString("^list:1")
	}
	if !j.outer {
		b.WriteString("^outer:0")
	}
	if j.injectAt != "" {
		b.WriteString("^inject_at:" + j.injectAt)
	}
	if len(j.show) > 0 {
		b.WriteString("^show:" + strings.Join(j.show, "'"))
	}
	if len(j.hide) > 0 {
		b.WriteString("^hide:" + strings.Join(j.hide, "'"))
	}
	if len(j.terms) > 0 {
		encoded := make([]string, 0, len(j.terms))
		for _, t := range j.terms {
			encoded = append(encoded, t.Field+"="+string(t.Modifier)+t.Value)
		}
		b.WriteString("^terms:" + strings.Join(encoded, "'"))
	}
	if len(j.joins) > 0 {
		children := make([]string, 0, len(j.joins))
		for _, child := range j.joins {
			children = append(children, child.encode())
		}
		b.WriteString("(" + strings.Join(children, ",") + ")")
	}
	return b.String()
}

// Tree describes a c:tree clause reshaping the flat result list.
type Tree struct {
	field  string
	list   bool
	prefix string
	start  string
}

// NewTree groups results by the named field.
func NewTree(field string) *Tree {
	return &Tree{field: field}
}

// List groups multiple records under each key.
func (t *Tree) List() *Tree {
	t.list = true
	return t
}

// Prefix prepends a string to each group key.
func (t *Tree) Prefix(prefix string) *Tree {
	t.prefix = prefix
	return t
}

// Start descends to the named field before grouping.
func (t *Tree) Start(field string) *Tree {
	t.start = field
	return t
}

func (t *Tree) encode() string {
	var b strings.Builder
	b.WriteString(t.field)
	if t.list {
		b.WriteString("^list:1")
	}
	if t.prefix != "" {
		b.WriteString("^prefix:" + t.prefix)
	}
	if t.start != "" {
		b.WriteString("^start:" + t.start)
	}
	return b.String()
}
