// Package parser implements CCIL's Pratt parser: it consumes the reversed
// token stack the lexer produces and builds a tree of ast.Expr nodes.
package parser

import (
	"fmt"

	"ccil/ast"
	"ccil/token"
)

// Precedence is a total ordering over binding power. Higher values bind
// tighter.
type Precedence int

const (
	Lowest Precedence = iota
	Assignment
	BooleanOr
	BooleanAnd
	BitwiseOr
	BitwiseXor
	BitwiseAnd
	Equality
	Comparison
	BitShift
	Term
	Factor
	Unary
	Call
	LiteralPrec
	GroupingPrec
	Highest
)

// Parser holds the remaining token stack (last element is next to
// consume) and the current line counter used for diagnostics.
type Parser struct {
	tokens []token.Token // stack; top is last element
	line   int
}

// New creates a Parser over the reversed token stack produced by
// lexer.Scan.
func New(tokens []token.Token) *Parser {
	return &Parser{tokens: tokens, line: 1}
}

func (p *Parser) peek() token.Token {
	if len(p.tokens) == 0 {
		return token.Token{Type: token.EOF}
	}
	return p.tokens[len(p.tokens)-1]
}

// pop removes and returns the top (next) token.
func (p *Parser) pop() token.Token {
	if len(p.tokens) == 0 {
		return token.Token{Type: token.EOF}
	}
	tok := p.tokens[len(p.tokens)-1]
	p.tokens = p.tokens[:len(p.tokens)-1]
	return tok
}

// skipNewlines consumes NEWLINE tokens, advancing the line counter used
// for diagnostics.
func (p *Parser) skipNewlines() {
	for p.peek().Type == token.NEWLINE {
		p.pop()
		p.line++
	}
}

func (p *Parser) expect(typ token.Type) (token.Token, error) {
	p.skipNewlines()
	tok := p.peek()
	if tok.Type != typ {
		return tok, newSyntaxError(p.line, tok.Column, fmt.Sprintf("expected %s, found %s", typ, tok.Type))
	}
	return p.pop(), nil
}

// precedenceOf returns the binding power of tok. `-` is ambiguous: Term
// when a prefix expression already sits on the left (infix subtraction),
// else Unary (prefix negation).
func precedenceOf(typ token.Type, hasPrefix bool) Precedence {
	switch typ {
	case token.ASSIGN:
		return Assignment
	case token.PIPEPIPE:
		return BooleanOr
	case token.AMPAMP:
		return BooleanAnd
	case token.PIPE:
		return BitwiseOr
	case token.CARET:
		return BitwiseXor
	case token.AMP:
		return BitwiseAnd
	case token.EQEQ, token.NOTEQ:
		return Equality
	case token.LT, token.LE, token.GT, token.GE:
		return Comparison
	case token.SHL, token.SHR:
		return BitShift
	case token.PLUS:
		return Term
	case token.SLASH, token.STAR, token.PERCENT:
		return Factor
	case token.MINUS:
		if hasPrefix {
			return Term
		}
		return Unary
	case token.LPAREN:
		return Call
	default:
		return Lowest
	}
}

// isPrefixLike reports whether expr is a Variable or Literal, the two
// node kinds that make `-` ambiguous per the grammar.
func isPrefixLike(expr ast.Expr) bool {
	switch expr.(type) {
	case ast.Variable, ast.Literal:
		return true
	default:
		return false
	}
}

// FullParse loops until EOF, producing one top-level expression per
// statement. It returns a parse error from the first malformed
// statement.
func (p *Parser) FullParse() ([]ast.Expr, error) {
	var exprs []ast.Expr
	p.skipNewlines()
	for p.peek().Type != token.EOF {
		expr, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expr)
		p.skipNewlines()
	}
	return exprs, nil
}

// parseStatement produces one statement-level expression terminated by
// `;`, except for the block-bodied forms (func/for/while/if) which are
// self-terminating.
func (p *Parser) parseStatement() (ast.Expr, error) {
	p.skipNewlines()
	switch p.peek().Type {
	case token.VAR:
		return p.parseVariableDeclaration()
	case token.FUNC:
		return p.parseFunctionDeclaration()
	case token.FOR:
		return p.parseForLoop()
	case token.WHILE:
		return p.parseWhileLoop()
	case token.PRINT:
		return p.parsePrintStatement()
	case token.RETURN:
		return p.parseReturnStatement()
	case token.IF:
		return p.parseIfStatement()
	default:
		expr, err := p.generateUntilToken(token.SEMICOLON)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.SEMICOLON); err != nil {
			return nil, err
		}
		return expr, nil
	}
}

// generateUntilToken parses a single floating expression, stopping when
// `end` or EOF is peeked. It does not consume `end`.
func (p *Parser) generateUntilToken(end token.Type) (ast.Expr, error) {
	p.skipNewlines()
	if p.peek().Type == end || p.peek().Type == token.EOF {
		return ast.Empty{}, nil
	}
	return p.parseExpr(Lowest)
}

// parseExpr is the Pratt climbing loop: parse one prefix expression, then
// repeatedly fold in infix operators whose precedence is at least
// minPrec.
func (p *Parser) parseExpr(minPrec Precedence) (ast.Expr, error) {
	left, err := p.parsePrefix()
	if err != nil {
		return nil, err
	}
	hasPrefix := isPrefixLike(left)

	for {
		p.skipNewlines()
		tok := p.peek()
		if tok.Type == token.EOF {
			break
		}
		prec := precedenceOf(tok.Type, hasPrefix)
		if prec < minPrec || prec == Lowest {
			break
		}
		p.pop()
		left, err = p.parseInfix(tok, left)
		if err != nil {
			return nil, err
		}
		hasPrefix = isPrefixLike(left)
	}
	return left, nil
}

// parsePrefix consumes one token and dispatches to its prefix handler.
func (p *Parser) parsePrefix() (ast.Expr, error) {
	p.skipNewlines()
	tok := p.pop()
	switch tok.Type {
	case token.LPAREN:
		child, err := p.parseExpr(Lowest)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return ast.Grouping{Child: child}, nil
	case token.LBRACE:
		child, err := p.parseExpr(Lowest)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RBRACE); err != nil {
			return nil, err
		}
		return ast.CurlyGrouping{Child: child}, nil
	case token.LBRACKET:
		child, err := p.parseExpr(Lowest)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RBRACKET); err != nil {
			return nil, err
		}
		return ast.SquareGrouping{Child: child}, nil
	case token.MINUS, token.TILDE, token.BANG:
		child, err := p.parseExpr(Unary)
		if err != nil {
			return nil, err
		}
		return ast.Unary{Op: tok, Child: child}, nil
	case token.IDENT:
		if p.peek().Type == token.LPAREN {
			p.pop()
			args, err := p.parseArgList()
			if err != nil {
				return nil, err
			}
			return ast.FunctionCall{Name: ast.Variable{Name: tok}, Args: args}, nil
		}
		return ast.Variable{Name: tok}, nil
	case token.STRING, token.NUMBER, token.FLOAT, token.BOOLEAN, token.NULL:
		return ast.Literal{Tok: tok}, nil
	default:
		return nil, newSyntaxError(p.line, tok.Column, fmt.Sprintf("unexpected token %s", tok.Type))
	}
}

// parseInfix consumes the already-popped operator token tok and combines
// it with the already-parsed left-hand expression.
func (p *Parser) parseInfix(tok token.Token, left ast.Expr) (ast.Expr, error) {
	switch tok.Type {
	case token.ASSIGN:
		if _, ok := left.(ast.Variable); !ok {
			return nil, newSyntaxError(p.line, tok.Column, "left-hand side of '=' must be a variable")
		}
		right, err := p.parseExpr(Assignment)
		if err != nil {
			return nil, err
		}
		return ast.Binary{Op: tok, Left: left, Right: right}, nil
	case token.PLUS, token.MINUS, token.STAR, token.SLASH, token.PERCENT,
		token.AMP, token.PIPE, token.CARET, token.SHL, token.SHR,
		token.AMPAMP, token.PIPEPIPE,
		token.EQEQ, token.NOTEQ, token.LT, token.LE, token.GT, token.GE:
		prec := precedenceOf(tok.Type, true)
		right, err := p.parseExpr(prec + 1)
		if err != nil {
			return nil, err
		}
		return ast.Binary{Op: tok, Left: left, Right: right}, nil
	default:
		return nil, newSyntaxError(p.line, tok.Column, fmt.Sprintf("unexpected infix token %s", tok.Type))
	}
}

// parseConditionExpr parses the expression between an `if`/`while`'s
// parentheses. A bare comma there is legal grammar: this function folds
// the comma-separated expressions into a CommaSeparatedList, so the
// caller can reject it by type — matching the rule that if/while take a
// single expression, not a list.
func (p *Parser) parseConditionExpr() (ast.Expr, error) {
	first, err := p.parseExpr(Lowest)
	if err != nil {
		return nil, err
	}
	p.skipNewlines()
	if p.peek().Type != token.COMMA {
		return first, nil
	}
	items := []ast.Expr{first}
	for p.peek().Type == token.COMMA {
		p.pop()
		item, err := p.parseExpr(Lowest)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		p.skipNewlines()
	}
	return ast.CommaSeparatedList{Items: items}, nil
}

// parseArgList parses a comma-separated list of expressions up to a
// closing `)`, which it consumes. Used by function calls.
func (p *Parser) parseArgList() ([]ast.Expr, error) {
	var items []ast.Expr
	p.skipNewlines()
	if p.peek().Type == token.RPAREN {
		p.pop()
		return items, nil
	}
	for {
		item, err := p.parseExpr(Lowest)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		p.skipNewlines()
		if p.peek().Type == token.COMMA {
			p.pop()
			continue
		}
		break
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	return items, nil
}

// parseSubexprs parses statements until the next `}`, which it consumes.
func (p *Parser) parseSubexprs() (ast.Subexprs, error) {
	if _, err := p.expect(token.LBRACE); err != nil {
		return ast.Subexprs{}, err
	}
	var stmts []ast.Expr
	p.skipNewlines()
	for p.peek().Type != token.RBRACE {
		if p.peek().Type == token.EOF {
			return ast.Subexprs{}, newSyntaxError(p.line, p.peek().Column, "unclosed block, expected '}'")
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return ast.Subexprs{}, err
		}
		stmts = append(stmts, stmt)
		p.skipNewlines()
	}
	p.pop() // consume '}'
	return ast.Subexprs{Statements: stmts}, nil
}

func (p *Parser) parseVariableDeclaration() (ast.Expr, error) {
	p.pop() // 'var'
	nameTok, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	assignTok, err := p.expect(token.ASSIGN)
	if err != nil {
		return nil, err
	}
	value, err := p.generateUntilToken(token.SEMICOLON)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.SEMICOLON); err != nil {
		return nil, err
	}
	binary := ast.Binary{Op: assignTok, Left: ast.Variable{Name: nameTok}, Right: value}
	return ast.VariableDeclaration{Assignment: binary}, nil
}

func (p *Parser) parseFunctionDeclaration() (ast.Expr, error) {
	p.pop() // 'func'
	nameTok, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	var params []ast.Expr
	p.skipNewlines()
	if p.peek().Type != token.RPAREN {
		for {
			paramTok, err := p.expect(token.IDENT)
			if err != nil {
				return nil, err
			}
			params = append(params, ast.Variable{Name: paramTok})
			p.skipNewlines()
			if p.peek().Type == token.COMMA {
				p.pop()
				continue
			}
			break
		}
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	body, err := p.parseSubexprs()
	if err != nil {
		return nil, err
	}
	return ast.FunctionDeclaration{Name: ast.Variable{Name: nameTok}, Params: params, Body: body}, nil
}

func (p *Parser) parseForLoop() (ast.Expr, error) {
	p.pop() // 'for'
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	init, err := p.parseVariableDeclaration()
	if err != nil {
		return nil, err
	}
	if _, ok := init.(ast.VariableDeclaration); !ok {
		return nil, newSyntaxError(p.line, p.peek().Column, "for-loop initializer must be a variable declaration")
	}
	cond, err := p.generateUntilToken(token.SEMICOLON)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.SEMICOLON); err != nil {
		return nil, err
	}
	post, err := p.generateUntilToken(token.RPAREN)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	body, err := p.parseSubexprs()
	if err != nil {
		return nil, err
	}
	return ast.ForLoop{Init: init, Cond: cond, Post: post, Body: body}, nil
}

func (p *Parser) parseWhileLoop() (ast.Expr, error) {
	p.pop() // 'while'
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseConditionExpr()
	if err != nil {
		return nil, err
	}
	if _, ok := cond.(ast.CommaSeparatedList); ok {
		return nil, newSyntaxError(p.line, p.peek().Column, "while condition must be a single expression")
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	body, err := p.parseSubexprs()
	if err != nil {
		return nil, err
	}
	return ast.WhileLoop{Cond: cond, Body: body}, nil
}

func (p *Parser) parsePrintStatement() (ast.Expr, error) {
	p.pop() // 'print'
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	arg, err := p.parseExpr(Lowest)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.SEMICOLON); err != nil {
		return nil, err
	}
	return ast.PrintStatement{Arg: arg}, nil
}

func (p *Parser) parseReturnStatement() (ast.Expr, error) {
	p.pop() // 'return'
	var value ast.Expr
	if p.peek().Type != token.SEMICOLON {
		v, err := p.parseExpr(Lowest)
		if err != nil {
			return nil, err
		}
		value = v
	}
	if _, err := p.expect(token.SEMICOLON); err != nil {
		return nil, err
	}
	return ast.ReturnStatement{Value: value}, nil
}

func (p *Parser) parseIfStatement() (ast.Expr, error) {
	p.pop() // 'if'
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseConditionExpr()
	if err != nil {
		return nil, err
	}
	if _, ok := cond.(ast.CommaSeparatedList); ok {
		return nil, newSyntaxError(p.line, p.peek().Column, "if condition must be a single expression")
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	body, err := p.parseSubexprs()
	if err != nil {
		return nil, err
	}
	return ast.IfStatement{Cond: cond, Body: body}, nil
}
