package compiler

import "fmt"

// parser is a token cursor plus one recursive-descent function per grammar
// production. Every production consumes exactly the tokens of its
// construct, so the cursor position is the single piece of shared state.
type parser struct {
	tokens []Token
	pos    int
}

// Parse builds the syntax tree of one class file from its token stream.
// Tokens after the class's closing brace are rejected, a file holds
// exactly one class.
func Parse(tokens []Token) (*Class, error) {
	p := &parser{tokens: tokens}
	class, err := p.parseClass()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.tokens) {
		return nil, p.errAt(p.tokens[p.pos], "trailing tokens after class body")
	}
	return class, nil
}

func (p *parser) peek() (Token, bool) {
	if p.pos >= len(p.tokens) {
		return Token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *parser) next() (Token, error) {
	token, ok := p.peek()
	if !ok {
		return Token{}, fmt.Errorf("compiler: syntax error: unexpected end of input")
	}
	p.pos++
	return token, nil
}

// expectSymbol consumes the given symbol or fails with an expected-vs-got
// diagnostic.
func (p *parser) expectSymbol(sym string) error {
	token, err := p.next()
	if err != nil {
		return err
	}
	if token.Kind != Symbol || token.Text != sym {
		return p.errAt(token, "expected %q, got %q", sym, token.Text)
	}
	return nil
}

func (p *parser) expectKeyword(word string) (Token, error) {
	token, err := p.next()
	if err != nil {
		return Token{}, err
	}
	if token.Kind != Keyword || token.Text != word {
		return Token{}, p.errAt(token, "expected %q, got %q", word, token.Text)
	}
	return token, nil
}

func (p *parser) expectIdentifier() (Token, error) {
	token, err := p.next()
	if err != nil {
		return Token{}, err
	}
	if token.Kind != Identifier {
		return Token{}, p.errAt(token, "expected an identifier, got %q", token.Text)
	}
	return token, nil
}

// atSymbol reports whether the next token is the given symbol without
// consuming it.
func (p *parser) atSymbol(sym string) bool {
	token, ok := p.peek()
	return ok && token.Kind == Symbol && token.Text == sym
}

func (p *parser) atKeyword(word string) bool {
	token, ok := p.peek()
	return ok && token.Kind == Keyword && token.Text == word
}

// parseClass handles: class NAME { classVarDec* subroutineDec* }
func (p *parser) parseClass() (*Class, error) {
	open, err := p.expectKeyword("class")
	if err != nil {
		return nil, err
	}
	name, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol("{"); err != nil {
		return nil, err
	}
	class := &Class{Name: name.Text, Line: open.Line}
	for p.atKeyword("static") || p.atKeyword("field") {
		dec, err := p.parseClassVarDec()
		if err != nil {
			return nil, err
		}
		class.VarDecs = append(class.VarDecs, dec)
	}
	for p.atKeyword("constructor") || p.atKeyword("function") || p.atKeyword("method") {
		dec, err := p.parseSubroutineDec()
		if err != nil {
			return nil, err
		}
		class.Subroutines = append(class.Subroutines, dec)
	}
	if err := p.expectSymbol("}"); err != nil {
		return nil, err
	}
	return class, nil
}

// parseClassVarDec handles: (static|field) type NAME (, NAME)* ;
func (p *parser) parseClassVarDec() (ClassVarDec, error) {
	kind, err := p.next()
	if err != nil {
		return ClassVarDec{}, err
	}
	typ, err := p.parseType()
	if err != nil {
		return ClassVarDec{}, err
	}
	names, err := p.parseNameList()
	if err != nil {
		return ClassVarDec{}, err
	}
	return ClassVarDec{Kind: kind.Text, Type: typ, Names: names, Line: kind.Line}, nil
}

// parseType accepts int, char, boolean or a class name.
func (p *parser) parseType() (string, error) {
	token, err := p.next()
	if err != nil {
		return "", err
	}
	switch {
	case token.Kind == Identifier:
		return token.Text, nil
	case token.Kind == Keyword && (token.Text == "int" || token.Text == "char" || token.Text == "boolean"):
		return token.Text, nil
	default:
		return "", p.errAt(token, "expected a type, got %q", token.Text)
	}
}

// parseNameList consumes NAME (, NAME)* ; and returns the names.
func (p *parser) parseNameList() ([]string, error) {
	first, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	names := []string{first.Text}
	for p.atSymbol(",") {
		p.pos++
		name, err := p.expectIdentifier()
		if err != nil {
			return nil, err
		}
		names = append(names, name.Text)
	}
	if err := p.expectSymbol(";"); err != nil {
		return nil, err
	}
	return names, nil
}

// parseSubroutineDec handles:
// (constructor|function|method) (void|type) NAME ( paramList ) body
func (p *parser) parseSubroutineDec() (SubroutineDec, error) {
	kind, err := p.next()
	if err != nil {
		return SubroutineDec{}, err
	}
	var returnType string
	if p.atKeyword("void") {
		p.pos++
		returnType = "void"
	} else {
		returnType, err = p.parseType()
		if err != nil {
			return SubroutineDec{}, err
		}
	}
	name, err := p.expectIdentifier()
	if err != nil {
		return SubroutineDec{}, err
	}
	if err := p.expectSymbol("("); err != nil {
		return SubroutineDec{}, err
	}
	params, err := p.parseParamList()
	if err != nil {
		return SubroutineDec{}, err
	}
	body, err := p.parseSubroutineBody()
	if err != nil {
		return SubroutineDec{}, err
	}
	return SubroutineDec{
		Kind:       kind.Text,
		ReturnType: returnType,
		Name:       name.Text,
		Params:     params,
		Body:       body,
		Line:       kind.Line,
	}, nil
}

// parseParamList handles the possibly empty (type NAME (, type NAME)*)
// list, consuming the closing parenthesis.
func (p *parser) parseParamList() ([]Param, error) {
	if p.atSymbol(")") {
		p.pos++
		return nil, nil
	}
	var params []Param
	for {
		typ, err := p.parseType()
		if err != nil {
			return nil, err
		}
		name, err := p.expectIdentifier()
		if err != nil {
			return nil, err
		}
		params = append(params, Param{Type: typ, Name: name.Text, Line: name.Line})
		if !p.atSymbol(",") {
			break
		}
		p.pos++
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return params, nil
}

// parseSubroutineBody handles: { varDec* statements }. All variable
// declarations come before the first statement.
func (p *parser) parseSubroutineBody() (SubroutineBody, error) {
	if err := p.expectSymbol("{"); err != nil {
		return SubroutineBody{}, err
	}
	var body SubroutineBody
	for p.atKeyword("var") {
		keyword, err := p.next()
		if err != nil {
			return SubroutineBody{}, err
		}
		typ, err := p.parseType()
		if err != nil {
			return SubroutineBody{}, err
		}
		names, err := p.parseNameList()
		if err != nil {
			return SubroutineBody{}, err
		}
		body.VarDecs = append(body.VarDecs, VarDec{Type: typ, Names: names, Line: keyword.Line})
	}
	statements, err := p.parseStatements()
	if err != nil {
		return SubroutineBody{}, err
	}
	body.Statements = statements
	if err := p.expectSymbol("}"); err != nil {
		return SubroutineBody{}, err
	}
	return body, nil
}

// parseStatements collects statements until a token that starts none,
// which the caller then checks is the closing brace.
func (p *parser) parseStatements() ([]Statement, error) {
	var statements []Statement
	for {
		token, ok := p.peek()
		if !ok || token.Kind != Keyword {
			return statements, nil
		}
		var statement Statement
		var err error
		switch token.Text {
		case "let":
			statement, err = p.parseLet()
		case "if":
			statement, err = p.parseIf()
		case "while":
			statement, err = p.parseWhile()
		case "do":
			statement, err = p.parseDo()
		case "return":
			statement, err = p.parseReturn()
		default:
			return statements, nil
		}
		if err != nil {
			return nil, err
		}
		statements = append(statements, statement)
	}
}

// parseLet handles: let NAME ([ expr ])? = expr ;
func (p *parser) parseLet() (*LetStatement, error) {
	keyword, err := p.next()
	if err != nil {
		return nil, err
	}
	name, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	let := &LetStatement{Name: name.Text, Line: keyword.Line}
	if p.atSymbol("[") {
		p.pos++
		index, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol("]"); err != nil {
			return nil, err
		}
		let.Index = &index
	}
	if err := p.expectSymbol("="); err != nil {
		return nil, err
	}
	let.Value, err = p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol(";"); err != nil {
		return nil, err
	}
	return let, nil
}

// parseIf handles: if ( expr ) { statements } (else { statements })?
func (p *parser) parseIf() (*IfStatement, error) {
	keyword, err := p.next()
	if err != nil {
		return nil, err
	}
	cond, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	ifStmt := &IfStatement{Cond: cond, Then: then, Line: keyword.Line}
	if p.atKeyword("else") {
		p.pos++
		ifStmt.Else, err = p.parseBlock()
		if err != nil {
			return nil, err
		}
		ifStmt.HasElse = true
	}
	return ifStmt, nil
}

func (p *parser) parseWhile() (*WhileStatement, error) {
	keyword, err := p.next()
	if err != nil {
		return nil, err
	}
	cond, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &WhileStatement{Cond: cond, Body: body, Line: keyword.Line}, nil
}

func (p *parser) parseCondition() (Expression, error) {
	if err := p.expectSymbol("("); err != nil {
		return Expression{}, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return Expression{}, err
	}
	if err := p.expectSymbol(")"); err != nil {
		return Expression{}, err
	}
	return cond, nil
}

func (p *parser) parseBlock() ([]Statement, error) {
	if err := p.expectSymbol("{"); err != nil {
		return nil, err
	}
	statements, err := p.parseStatements()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol("}"); err != nil {
		return nil, err
	}
	return statements, nil
}

// parseDo handles: do subroutineCall ;
func (p *parser) parseDo() (*DoStatement, error) {
	keyword, err := p.next()
	if err != nil {
		return nil, err
	}
	name, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	call, err := p.parseCall(name)
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol(";"); err != nil {
		return nil, err
	}
	return &DoStatement{Call: *call, Line: keyword.Line}, nil
}

// parseReturn handles: return expr? ;
func (p *parser) parseReturn() (*ReturnStatement, error) {
	keyword, err := p.next()
	if err != nil {
		return nil, err
	}
	ret := &ReturnStatement{Line: keyword.Line}
	if !p.atSymbol(";") {
		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		ret.Value = &value
	}
	if err := p.expectSymbol(";"); err != nil {
		return nil, err
	}
	return ret, nil
}

var binaryOps = map[string]bool{
	"+": true, "-": true, "*": true, "/": true,
	"&": true, "|": true, "<": true, ">": true, "=": true,
}

// parseExpression handles: term (op term)*. The pairs are kept flat, the
// code generator folds them left to right.
func (p *parser) parseExpression() (Expression, error) {
	head, err := p.parseTerm()
	if err != nil {
		return Expression{}, err
	}
	expr := Expression{Head: head}
	for {
		token, ok := p.peek()
		if !ok || token.Kind != Symbol || !binaryOps[token.Text] {
			return expr, nil
		}
		p.pos++
		term, err := p.parseTerm()
		if err != nil {
			return Expression{}, err
		}
		expr.Tail = append(expr.Tail, OpTerm{Op: token.Text, Term: term})
	}
}

func (p *parser) parseTerm() (Term, error) {
	token, err := p.next()
	if err != nil {
		return Term{}, err
	}
	switch token.Kind {
	case IntConst:
		return Term{Kind: IntTerm, Int: token.Value, Line: token.Line}, nil
	case StringConst:
		return Term{Kind: StringTerm, Str: token.Text, Line: token.Line}, nil
	case Keyword:
		switch token.Text {
		case "true", "false", "null", "this":
			return Term{Kind: KeywordTerm, Keyword: token.Text, Line: token.Line}, nil
		}
		return Term{}, p.errAt(token, "keyword %q cannot start a term", token.Text)
	case Symbol:
		switch token.Text {
		case "(":
			inner, err := p.parseExpression()
			if err != nil {
				return Term{}, err
			}
			if err := p.expectSymbol(")"); err != nil {
				return Term{}, err
			}
			return Term{Kind: ParenTerm, Paren: &inner, Line: token.Line}, nil
		case "-", "~":
			operand, err := p.parseTerm()
			if err != nil {
				return Term{}, err
			}
			return Term{Kind: UnaryTerm, UnaryOp: token.Text, Operand: &operand, Line: token.Line}, nil
		}
		return Term{}, p.errAt(token, "symbol %q cannot start a term", token.Text)
	default:
		return p.parseIdentifierTerm(token)
	}
}

// parseIdentifierTerm disambiguates the three identifier-led term forms by
// the following symbol: [ starts an array access, ( and . start a call,
// anything else leaves a plain variable reference.
func (p *parser) parseIdentifierTerm(name Token) (Term, error) {
	switch {
	case p.atSymbol("["):
		p.pos++
		index, err := p.parseExpression()
		if err != nil {
			return Term{}, err
		}
		if err := p.expectSymbol("]"); err != nil {
			return Term{}, err
		}
		return Term{Kind: IndexTerm, Var: name.Text, Index: &index, Line: name.Line}, nil
	case p.atSymbol("(") || p.atSymbol("."):
		call, err := p.parseCall(name)
		if err != nil {
			return Term{}, err
		}
		return Term{Kind: CallTerm, Call: call, Line: name.Line}, nil
	default:
		return Term{Kind: VarTerm, Var: name.Text, Line: name.Line}, nil
	}
}

// parseCall handles NAME ( exprList ) and QUALIFIER . NAME ( exprList ),
// with the leading identifier already consumed by the caller.
func (p *parser) parseCall(name Token) (*SubroutineCall, error) {
	call := &SubroutineCall{Name: name.Text, Line: name.Line}
	if p.atSymbol(".") {
		p.pos++
		callee, err := p.expectIdentifier()
		if err != nil {
			return nil, err
		}
		call.Qualifier = name.Text
		call.Name = callee.Text
	}
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	if p.atSymbol(")") {
		p.pos++
		return call, nil
	}
	for {
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
		if !p.atSymbol(",") {
			break
		}
		p.pos++
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return call, nil
}

func (p *parser) errAt(token Token, format string, args ...interface{}) error {
	return fmt.Errorf("compiler: syntax error at line %d: %s", token.Line, fmt.Sprintf(format, args...))
}
