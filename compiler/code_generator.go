package compiler

import "fmt"

// CodeGenerator walks one class's syntax tree and emits its VM code. All
// state is per class: the symbol tables, the field count a constructor
// allocates, and the label counters, which restart in every subroutine so
// the output of a subroutine does not depend on what preceded it.
type CodeGenerator struct {
	className  string
	table      *SymbolTable
	w          vmWriter
	fieldCount int

	whileID int
	ifID    int
}

// GenerateClass compiles class to VM code. The first semantic error
// aborts; nothing of the partial output is returned.
func GenerateClass(class *Class) ([]byte, error) {
	gen := &CodeGenerator{className: class.Name, table: NewSymbolTable()}
	if err := gen.declareClassVars(class); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(class.Subroutines))
	for i := range class.Subroutines {
		sub := &class.Subroutines[i]
		if seen[sub.Name] {
			return nil, gen.errAt(sub.Line, "duplicate subroutine %s.%s", class.Name, sub.Name)
		}
		seen[sub.Name] = true
		if err := gen.generateSubroutine(sub); err != nil {
			return nil, err
		}
	}
	return gen.w.Bytes(), nil
}

func (gen *CodeGenerator) declareClassVars(class *Class) error {
	for _, dec := range class.VarDecs {
		kind := StaticVar
		if dec.Kind == "field" {
			kind = FieldVar
		}
		for _, name := range dec.Names {
			if _, err := gen.table.Define(name, dec.Type, kind); err != nil {
				return gen.errAt(dec.Line, "%v", err)
			}
		}
	}
	gen.fieldCount = gen.table.Count(FieldVar)
	return nil
}

// generateSubroutine emits the function command and the kind-specific
// prologue: a constructor allocates the object and takes its address as
// this, a method unpacks this from the hidden first argument, a function
// runs with no receiver at all.
func (gen *CodeGenerator) generateSubroutine(sub *SubroutineDec) error {
	gen.table.StartSubroutine()
	gen.whileID = 0
	gen.ifID = 0
	if sub.Kind == "method" {
		// this occupies argument 0, explicit parameters start at 1.
		if _, err := gen.table.Define("this", gen.className, ArgVar); err != nil {
			return gen.errAt(sub.Line, "%v", err)
		}
	}
	for _, param := range sub.Params {
		if _, err := gen.table.Define(param.Name, param.Type, ArgVar); err != nil {
			return gen.errAt(param.Line, "%v", err)
		}
	}
	for _, dec := range sub.Body.VarDecs {
		for _, name := range dec.Names {
			if _, err := gen.table.Define(name, dec.Type, LocalVar); err != nil {
				return gen.errAt(dec.Line, "%v", err)
			}
		}
	}
	gen.w.writeFunction(gen.className+"."+sub.Name, gen.table.Count(LocalVar))
	switch sub.Kind {
	case "constructor":
		gen.w.writePush("constant", gen.fieldCount)
		gen.w.writeCall("Memory.alloc", 1)
		gen.w.writePop("pointer", 0)
	case "method":
		gen.w.writePush("argument", 0)
		gen.w.writePop("pointer", 0)
	}
	return gen.generateStatements(sub.Body.Statements)
}

func (gen *CodeGenerator) generateStatements(statements []Statement) error {
	for _, statement := range statements {
		var err error
		switch s := statement.(type) {
		case *LetStatement:
			err = gen.generateLet(s)
		case *IfStatement:
			err = gen.generateIf(s)
		case *WhileStatement:
			err = gen.generateWhile(s)
		case *DoStatement:
			err = gen.generateDo(s)
		case *ReturnStatement:
			err = gen.generateReturn(s)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (gen *CodeGenerator) generateLet(let *LetStatement) error {
	entry, ok := gen.table.Resolve(let.Name)
	if !ok {
		return gen.errAt(let.Line, "undefined variable %q", let.Name)
	}
	if let.Index == nil {
		if err := gen.generateExpression(&let.Value); err != nil {
			return err
		}
		gen.w.writePop(entry.Kind.Segment(), entry.Index)
		return nil
	}
	// Array write: the cell address is computed first, then the value.
	// temp 0 parks the value while pointer 1 takes the address.
	if err := gen.generateExpression(let.Index); err != nil {
		return err
	}
	gen.w.writePush(entry.Kind.Segment(), entry.Index)
	gen.w.writeArithmetic("add")
	if err := gen.generateExpression(&let.Value); err != nil {
		return err
	}
	gen.w.writePop("temp", 0)
	gen.w.writePop("pointer", 1)
	gen.w.writePush("temp", 0)
	gen.w.writePop("that", 0)
	return nil
}

// generateIf branches to IF_TRUE on a true condition, IF_FALSE otherwise.
// Without an else clause IF_FALSE is the fallthrough point and no IF_END
// is emitted.
func (gen *CodeGenerator) generateIf(ifStmt *IfStatement) error {
	id := gen.ifID
	gen.ifID++
	trueLabel := fmt.Sprintf("IF_TRUE%d", id)
	falseLabel := fmt.Sprintf("IF_FALSE%d", id)
	endLabel := fmt.Sprintf("IF_END%d", id)
	if err := gen.generateExpression(&ifStmt.Cond); err != nil {
		return err
	}
	gen.w.writeIf(trueLabel)
	gen.w.writeGoto(falseLabel)
	gen.w.writeLabel(trueLabel)
	if err := gen.generateStatements(ifStmt.Then); err != nil {
		return err
	}
	if !ifStmt.HasElse {
		gen.w.writeLabel(falseLabel)
		return nil
	}
	gen.w.writeGoto(endLabel)
	gen.w.writeLabel(falseLabel)
	if err := gen.generateStatements(ifStmt.Else); err != nil {
		return err
	}
	gen.w.writeLabel(endLabel)
	return nil
}

func (gen *CodeGenerator) generateWhile(while *WhileStatement) error {
	id := gen.whileID
	gen.whileID++
	expLabel := fmt.Sprintf("WHILE_EXP%d", id)
	endLabel := fmt.Sprintf("WHILE_END%d", id)
	gen.w.writeLabel(expLabel)
	if err := gen.generateExpression(&while.Cond); err != nil {
		return err
	}
	// The exit test negates the condition so the body follows directly.
	gen.w.writeArithmetic("not")
	gen.w.writeIf(endLabel)
	if err := gen.generateStatements(while.Body); err != nil {
		return err
	}
	gen.w.writeGoto(expLabel)
	gen.w.writeLabel(endLabel)
	return nil
}

// generateDo discards the callee's result, every call leaves exactly one
// value on the stack.
func (gen *CodeGenerator) generateDo(do *DoStatement) error {
	if err := gen.generateCall(&do.Call); err != nil {
		return err
	}
	gen.w.writePop("temp", 0)
	return nil
}

// generateReturn pushes constant 0 for a bare return, so every subroutine
// leaves a value for its caller to pop or use.
func (gen *CodeGenerator) generateReturn(ret *ReturnStatement) error {
	if ret.Value != nil {
		if err := gen.generateExpression(ret.Value); err != nil {
			return err
		}
	} else {
		gen.w.writePush("constant", 0)
	}
	gen.w.writeReturn()
	return nil
}

var binaryOpCommands = map[string]string{
	"+": "add",
	"-": "sub",
	"&": "and",
	"|": "or",
	"<": "lt",
	">": "gt",
	"=": "eq",
}

// generateExpression folds the operator-term pairs strictly left to
// right: each pair's term is pushed and the operator applied to the two
// topmost values, so a+b*c computes (a+b)*c.
func (gen *CodeGenerator) generateExpression(expr *Expression) error {
	if err := gen.generateTerm(&expr.Head); err != nil {
		return err
	}
	for i := range expr.Tail {
		pair := &expr.Tail[i]
		if err := gen.generateTerm(&pair.Term); err != nil {
			return err
		}
		switch pair.Op {
		case "*":
			gen.w.writeCall("Math.multiply", 2)
		case "/":
			gen.w.writeCall("Math.divide", 2)
		default:
			gen.w.writeArithmetic(binaryOpCommands[pair.Op])
		}
	}
	return nil
}

func (gen *CodeGenerator) generateTerm(term *Term) error {
	switch term.Kind {
	case IntTerm:
		gen.w.writePush("constant", term.Int)
	case StringTerm:
		gen.generateString(term.Str)
	case KeywordTerm:
		gen.generateKeywordConstant(term.Keyword)
	case VarTerm:
		entry, ok := gen.table.Resolve(term.Var)
		if !ok {
			return gen.errAt(term.Line, "undefined variable %q", term.Var)
		}
		gen.w.writePush(entry.Kind.Segment(), entry.Index)
	case IndexTerm:
		return gen.generateArrayRead(term)
	case CallTerm:
		return gen.generateCall(term.Call)
	case ParenTerm:
		return gen.generateExpression(term.Paren)
	case UnaryTerm:
		if err := gen.generateTerm(term.Operand); err != nil {
			return err
		}
		if term.UnaryOp == "-" {
			gen.w.writeArithmetic("neg")
		} else {
			gen.w.writeArithmetic("not")
		}
	}
	return nil
}

// generateString builds the constant at runtime: String.new takes the
// length, then one appendChar call per character.
func (gen *CodeGenerator) generateString(s string) {
	gen.w.writePush("constant", len(s))
	gen.w.writeCall("String.new", 1)
	for i := 0; i < len(s); i++ {
		gen.w.writePush("constant", int(s[i]))
		gen.w.writeCall("String.appendChar", 2)
	}
}

// generateKeywordConstant maps true to all ones, false and null to zero
// and this to the current object's base address.
func (gen *CodeGenerator) generateKeywordConstant(keyword string) {
	switch keyword {
	case "true":
		gen.w.writePush("constant", 0)
		gen.w.writeArithmetic("not")
	case "false", "null":
		gen.w.writePush("constant", 0)
	case "this":
		gen.w.writePush("pointer", 0)
	}
}

func (gen *CodeGenerator) generateArrayRead(term *Term) error {
	entry, ok := gen.table.Resolve(term.Var)
	if !ok {
		return gen.errAt(term.Line, "undefined variable %q", term.Var)
	}
	if err := gen.generateExpression(term.Index); err != nil {
		return err
	}
	gen.w.writePush(entry.Kind.Segment(), entry.Index)
	gen.w.writeArithmetic("add")
	gen.w.writePop("pointer", 1)
	gen.w.writePush("that", 0)
	return nil
}

// generateCall resolves the callee. An unqualified name is a method of
// the current class, called on this. A qualifier that resolves to a
// variable makes a method call on that object, with its class taken from
// the variable's declared type; otherwise the qualifier is a class name
// and the call carries no receiver.
func (gen *CodeGenerator) generateCall(call *SubroutineCall) error {
	callee := call.Qualifier + "." + call.Name
	argCount := len(call.Args)
	if call.Qualifier == "" {
		callee = gen.className + "." + call.Name
		gen.w.writePush("pointer", 0)
		argCount++
	} else if entry, ok := gen.table.Resolve(call.Qualifier); ok {
		callee = entry.Type + "." + call.Name
		gen.w.writePush(entry.Kind.Segment(), entry.Index)
		argCount++
	}
	for i := range call.Args {
		if err := gen.generateExpression(&call.Args[i]); err != nil {
			return err
		}
	}
	gen.w.writeCall(callee, argCount)
	return nil
}

func (gen *CodeGenerator) errAt(line int, format string, args ...interface{}) error {
	return fmt.Errorf("compiler: semantic error at line %d: %s", line, fmt.Sprintf(format, args...))
}
