package compile

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/wewlang/wewc/pkg/ast"
	"github.com/wewlang/wewc/pkg/ir"
	"github.com/wewlang/wewc/pkg/types"
)

// DataItem is one entry in the program's data section: either raw bytes
// or a list of variable references that become pointers when packaged.
type DataItem struct {
	Bytes []byte
	Refs  []*ir.Variable
}

// Size returns the packaged size of the item in bytes.
func (d DataItem) Size() int {
	if d.Refs != nil {
		return len(d.Refs) * types.PointerSize
	}
	return len(d.Bytes)
}

// Object is a compiled unit of IR: a function body or a run of toplevel
// statements.
type Object struct {
	Name string

	// Fn is nil for toplevel code.
	Fn *Function

	Code []ir.Instr
}

// globalDecl tracks a toplevel variable whose type may need inferring
// from its initialiser.
type globalDecl struct {
	decl      *ast.VarDecl
	typ       types.Type
	resolving bool
}

// Compiler accumulates globals, the data section and compiled objects for
// a single program.
type Compiler struct {
	source *Source

	globals map[string]*ir.Variable

	data        []DataItem
	identifiers map[string]int
	identOrder  []string

	// toplevel declarations whose types resolve on demand
	pending map[string]*globalDecl

	spillSize int
	unique    int

	objects []*Object
}

// NewCompiler creates a compiler for one source unit.
func NewCompiler(src *Source) *Compiler {
	return &Compiler{
		source:      src,
		globals:     make(map[string]*ir.Variable),
		identifiers: make(map[string]int),
		pending:     make(map[string]*globalDecl),
	}
}

// Source returns the source unit being compiled.
func (c *Compiler) Source() *Source { return c.source }

// Objects returns the compiled objects in compilation order.
func (c *Compiler) Objects() []*Object { return c.objects }

// Data returns the data section items.
func (c *Compiler) Data() []DataItem { return c.data }

// DataNames returns the identifiers of data items in insertion order.
func (c *Compiler) DataNames() []string { return c.identOrder }

// DataItemFor returns the data item for an identifier.
func (c *Compiler) DataItemFor(name string) (DataItem, bool) {
	idx, ok := c.identifiers[name]
	if !ok {
		return DataItem{}, false
	}
	return c.data[idx], true
}

// SpillSize returns the bytes reserved for toplevel register spills.
func (c *Compiler) SpillSize() int { return c.spillSize }

func (c *Compiler) addData(name string, item DataItem) {
	c.identifiers[name] = len(c.data)
	c.data = append(c.data, item)
	c.identOrder = append(c.identOrder, name)
}

func (c *Compiler) hasPending(name string) bool {
	_, ok := c.pending[name]
	return ok
}

// LookupGlobal finds a declared global variable, or nil.
func (c *Compiler) LookupGlobal(name string) *ir.Variable {
	return c.globals[name]
}

// DeclareGlobal adds a zero-initialised variable to the data section.
// Redeclaring with an identical type returns the existing variable.
func (c *Compiler) DeclareGlobal(name string, typ types.Type) (*ir.Variable, error) {
	if existing := c.globals[name]; existing != nil {
		if !existing.Type.Equal(typ) {
			return nil, fmt.Errorf(
				"variable %s of type '%s' is already declared as type '%s'",
				name, typ, existing.Type)
		}
		return existing, nil
	}

	size, err := typ.Size()
	if err != nil {
		return nil, err
	}

	v := &ir.Variable{
		Name:      name,
		Type:      typ,
		GlobalRef: &ir.DataRef{Name: name},
	}
	if _, isArr := typ.(types.Array); isArr {
		v.LValueIsRValue = true
	}
	c.globals[name] = v
	c.addData(name, DataItem{Bytes: make([]byte, size)})
	return v, nil
}

// declareFunction registers a function's address as a const global.
func (c *Compiler) declareFunction(name string, typ types.Func) (*ir.Variable, error) {
	if existing := c.globals[name]; existing != nil {
		return nil, fmt.Errorf("function %s is already declared", name)
	}
	v := &ir.Variable{
		Name:           name,
		Type:           typ,
		GlobalRef:      &ir.DataRef{Name: name},
		LValueIsRValue: true,
	}
	c.globals[name] = v
	return v, nil
}

// AddString interns a NUL-terminated string in the data section and
// returns a variable referencing its start.
func (c *Compiler) AddString(s string) *ir.Variable {
	key := "string-lit-" + s
	v := &ir.Variable{
		Name:      key,
		Type:      types.StringLit,
		GlobalRef: &ir.DataRef{Name: key},
	}
	if _, ok := c.identifiers[key]; !ok {
		c.addData(key, DataItem{Bytes: append([]byte(s), 0)})
	}
	return v
}

// AddBytes places raw bytes in the data section.
func (c *Compiler) AddBytes(data []byte) *ir.Variable {
	key := fmt.Sprintf("raw-data-%d", len(c.data))
	v := &ir.Variable{
		Name:      key,
		Type:      types.StringLit,
		GlobalRef: &ir.DataRef{Name: key},
	}
	c.addData(key, DataItem{Bytes: data})
	return v
}

// AddInt places a little-endian integer of the given width in the data
// section.
func (c *Compiler) AddInt(val int64, size int) *ir.Variable {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(val))
	return c.AddBytes(buf[:size])
}

// AddArray places an array of variable references in the data section.
// Each element becomes a pointer once packaged.
func (c *Compiler) AddArray(elems []*ir.Variable) *ir.Variable {
	key := fmt.Sprintf("var-array-%d", len(c.data))
	v := &ir.Variable{
		Name:      key,
		Type:      types.Pointer{To: elems[0].Type},
		GlobalRef: &ir.DataRef{Name: key},
	}
	c.addData(key, DataItem{Refs: elems})
	return v
}

// AddSpillVars reserves 8-byte globals for toplevel register spills.
func (c *Compiler) AddSpillVars(n int) {
	c.spillSize = 8 * n
	for i := 0; i < n; i++ {
		_, _ = c.DeclareGlobal(globalSpillName(i), types.IntOfSize(8, false))
	}
}

func globalSpillName(i int) string { return fmt.Sprintf("global-spill-%d", i) }

// FrameSize implements ir.ScopeInfo. Toplevel code has no stack frame;
// its spill space is reserved separately around the init run.
func (c *Compiler) FrameSize() int { return 0 }

// SavedRegs implements ir.ScopeInfo.
func (c *Compiler) SavedRegs() []int { return nil }

// SpillVar implements ir.ScopeInfo.
func (c *Compiler) SpillVar(index int) *ir.Variable {
	return c.globals[globalSpillName(index)]
}

func (c *Compiler) uniqueName() string {
	c.unique++
	return fmt.Sprintf("unique-var-%d", c.unique)
}

// CompileProgram lowers a parsed program into IR objects. Toplevel names
// are declared in a pre-pass so that functions and globals may reference
// each other regardless of declaration order.
func (c *Compiler) CompileProgram(prog *ast.Program) error {
	if err := c.declareToplevel(prog); err != nil {
		return err
	}

	for _, stmt := range prog.Stmts {
		switch s := stmt.(type) {
		case *ast.FuncDecl:
			if err := c.compileFunction(s); err != nil {
				return err
			}
		default:
			ctx := newCtx(c, nil)
			if err := ctx.compileStmt(stmt); err != nil {
				return err
			}
			c.objects = append(c.objects, &Object{
				Name: fmt.Sprintf("toplevel-%d", len(c.objects)),
				Code: ctx.Code,
			})
		}
	}
	return nil
}

// declareToplevel registers every toplevel name before compilation.
// Globals without a declared type resolve lazily from their initialisers,
// failing on reference cycles.
func (c *Compiler) declareToplevel(prog *ast.Program) error {
	var inferred []*globalDecl

	for _, stmt := range prog.Stmts {
		switch s := stmt.(type) {
		case *ast.FuncDecl:
			typ := funcType(s)
			if _, err := c.declareFunction(s.Name, typ); err != nil {
				return c.source.errAt(s, "%s", err)
			}
		case *ast.VarDecl:
			g := &globalDecl{decl: s}
			if s.Type != nil {
				g.typ = s.Type
			} else if s.Value == nil {
				return c.source.errAt(s, "variable %s has no initialiser or type", s.Name)
			}
			if _, dup := c.pending[s.Name]; dup {
				prev := c.pending[s.Name]
				if prev.typ == nil || g.typ == nil || !prev.typ.Equal(g.typ) {
					return c.source.errAt(s, "variable %s is already declared", s.Name)
				}
				continue
			}
			c.pending[s.Name] = g
			inferred = append(inferred, g)
		}
	}

	// resolve and declare in source order
	for _, g := range inferred {
		typ, err := c.resolveGlobalType(g)
		if err != nil {
			return err
		}
		if _, err := c.DeclareGlobal(g.decl.Name, typ); err != nil {
			return c.source.errAt(g.decl, "%s", err)
		}
	}
	return nil
}

// resolveGlobalType computes a toplevel variable's type, inferring it from
// the initialiser if necessary.
func (c *Compiler) resolveGlobalType(g *globalDecl) (types.Type, error) {
	if g.typ != nil {
		return g.typ, nil
	}
	if g.resolving {
		return nil, c.source.errAt(g.decl,
			"type of variable %s depends on itself", g.decl.Name)
	}
	g.resolving = true
	defer func() { g.resolving = false }()

	ctx := newCtx(c, nil)
	typ, err := ctx.typeOf(g.decl.Value)
	if err != nil {
		return nil, err
	}
	g.typ = typ
	return typ, nil
}

// lookupPending resolves a toplevel name that has not been declared yet,
// used while inferring global types.
func (c *Compiler) lookupPending(name string) (types.Type, error) {
	g, ok := c.pending[name]
	if !ok {
		return nil, nil
	}
	return c.resolveGlobalType(g)
}

func funcType(decl *ast.FuncDecl) types.Func {
	params := make([]types.Type, len(decl.Params))
	for i, p := range decl.Params {
		params[i] = p.Type
	}
	returns := decl.Returns
	if returns == nil {
		returns = types.Void{}
	}
	return types.Func{Returns: returns, Params: params, IsConst: true}
}

// compileFunction lowers one function declaration.
func (c *Compiler) compileFunction(decl *ast.FuncDecl) error {
	names := make([]string, len(decl.Params))
	seen := make(map[string]bool, len(decl.Params))
	for i, p := range decl.Params {
		if seen[p.Name] {
			return c.source.errAt(decl, "duplicate parameter %s", p.Name)
		}
		seen[p.Name] = true
		names[i] = p.Name
	}

	fn := NewFunction(decl.Name, names, funcType(decl))
	ctx := newCtx(c, fn)
	ctx.pushScope(fn.Scope)

	ctx.Emit(&ir.Prelude{Scope: fn})

	for _, stmt := range decl.Body.Stmts {
		if err := ctx.compileStmt(stmt); err != nil {
			return err
		}
	}

	// void functions return implicitly at the end of the body
	if _, void := fn.Type.Returns.(types.Void); void {
		ctx.Emit(&ir.Return{Scope: fn, ArgSize: fn.ArgSize(), Val: ir.Imm(0, 1)})
	}

	ctx.popScope()
	c.objects = append(c.objects, &Object{Name: decl.Name, Fn: fn, Code: ctx.Code})
	return nil
}

// Functions returns the compiled function objects sorted into source
// order, paired with the toplevel objects in order.
func (c *Compiler) Functions() (fns, toplevel []*Object) {
	for _, o := range c.objects {
		if o.Fn != nil {
			fns = append(fns, o)
		} else {
			toplevel = append(toplevel, o)
		}
	}
	return fns, toplevel
}

// GlobalNames returns declared global names in sorted order, for
// diagnostics and the offsets listing.
func (c *Compiler) GlobalNames() []string {
	names := make([]string, 0, len(c.globals))
	for name := range c.globals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
