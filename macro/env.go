package macro

import (
	"strconv"

	"github.com/iancoleman/strcase"

	"github.com/ridoystarlord/tplgen/schema"
)

// Scalars are the project-level bindings shared by every expansion of a
// run, e.g. projectname and projecturl.
type Scalars map[string]string

// Value is a resolved binding. Counters are integers; everything else is
// text that may still parse as an integer.
type Value struct {
	text  string
	num   int
	isInt bool
}

func IntValue(n int) Value {
	return Value{text: strconv.Itoa(n), num: n, isInt: true}
}

func TextValue(s string) Value {
	return Value{text: s}
}

func (v Value) String() string {
	return v.text
}

// Int returns the value as an integer if it is one.
func (v Value) Int() (int, bool) {
	if v.isInt {
		return v.num, true
	}
	n, err := strconv.Atoi(v.text)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (v Value) truthy() bool {
	if n, ok := v.Int(); ok {
		return n != 0
	}
	return v.text != ""
}

// Env is the binding environment of one expansion: the current table (nil
// in project scope), its field views and the scalar bindings. An Env is
// read-only during expansion; loop state lives in the expander.
type Env struct {
	table   *schema.Table
	tables  []schema.Table
	views   map[BoundKind][]schema.Field
	scalars map[string]Value
}

// NewTableEnv binds one table plus the project scalars.
func NewTableEnv(table schema.Table, project Scalars) *Env {
	env := &Env{
		table: &table,
		views: map[BoundKind][]schema.Field{
			BoundAll:        table.Fields,
			BoundNonKey:     table.NonKeyFields(),
			BoundSearchable: table.SearchableFields(),
		},
		scalars: projectValues(project),
	}

	env.scalars["filename"] = TextValue(table.Name)
	env.scalars["filecaption"] = TextValue(table.DisplayName())
	env.scalars["filedescription"] = TextValue(table.Description)
	env.scalars["fileclass"] = TextValue(strcase.ToCamel(table.Name))
	if pk, ok := table.PrimaryKey(); ok {
		env.scalars["fileprimarykey"] = TextValue(pk.Name)
		env.scalars["filekeyname"] = TextValue(pk.Label())
	}

	env.scalars["nmaxitems"] = IntValue(len(env.views[BoundAll]))
	env.scalars["nmaxitemsnokey"] = IntValue(len(env.views[BoundNonKey]))
	env.scalars["nmaxitemsnokeyall"] = IntValue(len(env.views[BoundNonKey]))
	env.scalars["nmaxsearchkeys"] = IntValue(len(env.views[BoundSearchable]))
	return env
}

// NewProjectEnv binds the project scope: no current table, the full table
// list as the tables view.
func NewProjectEnv(tables []schema.Table, project Scalars) *Env {
	env := &Env{
		tables:  tables,
		views:   map[BoundKind][]schema.Field{},
		scalars: projectValues(project),
	}
	env.scalars["nmaxtables"] = IntValue(len(tables))
	return env
}

func projectValues(project Scalars) map[string]Value {
	values := make(map[string]Value, len(project)+12)
	for k, v := range project {
		values[k] = TextValue(v)
	}
	return values
}

// Table returns the bound table, or nil in project scope.
func (e *Env) Table() *schema.Table {
	return e.table
}

// Scalar looks up a scalar binding.
func (e *Env) Scalar(name string) (Value, bool) {
	v, ok := e.scalars[name]
	return v, ok
}

// viewLen returns the number of elements a loop of kind can visit.
func (e *Env) viewLen(kind BoundKind) int {
	if kind == BoundTables {
		return len(e.tables)
	}
	return len(e.views[kind])
}
