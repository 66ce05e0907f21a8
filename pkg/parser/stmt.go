package parser

import (
	"fmt"

	"github.com/raymyers/ralph-translate-c/pkg/cabs"
	"github.com/raymyers/ralph-translate-c/pkg/ctypes"
	"github.com/raymyers/ralph-translate-c/pkg/lexer"
)

// parseBlockItem parses a declaration or a statement inside a block.
func (p *Parser) parseBlockItem() cabs.Stmt {
	if p.startsDeclaration() {
		defs := p.parseDeclaration(false)
		if len(defs) == 0 {
			return nil
		}
		return cabs.DeclStmt{Decls: defs}
	}
	return p.parseStatement()
}

// parseBlock parses a compound statement in a new scope.
func (p *Parser) parseBlock() *cabs.Block {
	block := &cabs.Block{Items: []cabs.Stmt{}}
	if !p.expect(lexer.TokenLBrace) {
		return block
	}
	p.sema.PushScope()
	defer p.sema.PopScope()
	for !p.curTokenIs(lexer.TokenRBrace) && !p.AtEOF() {
		start := p.pos
		if stmt := p.parseBlockItem(); stmt != nil {
			block.Items = append(block.Items, p.withImplied(stmt)...)
		}
		if p.pos == start {
			p.nextToken()
		}
	}
	p.expect(lexer.TokenRBrace)
	return block
}

// withImplied puts the function declarations implied while parsing stmt
// in front of it.
func (p *Parser) withImplied(stmt cabs.Stmt) []cabs.Stmt {
	implied := p.sema.TakeImplied()
	if len(implied) == 0 {
		return []cabs.Stmt{stmt}
	}
	decls := make([]cabs.Definition, 0, len(implied))
	for _, sym := range implied {
		fn, _ := ctypes.FunctionOf(sym.Type)
		decls = append(decls, cabs.FunDef{Name: sym.Name, Typ: fn, Storage: cabs.StorageExtern, Implicit: true, Pos: p.position()})
	}
	return []cabs.Stmt{cabs.DeclStmt{Decls: decls}, stmt}
}

// condition parses a parenthesized, typed controlling expression.
func (p *Parser) condition() cabs.Expr {
	p.expect(lexer.TokenLParen)
	cond := p.typeExpr(p.parseExpression())
	p.expect(lexer.TokenRParen)
	return cond
}

func (p *Parser) parseStatement() cabs.Stmt {
	switch p.curToken.Type {
	case lexer.TokenLBrace:
		return p.parseBlock()
	case lexer.TokenSemicolon:
		p.nextToken()
		return cabs.Empty{}
	case lexer.TokenReturn:
		return p.parseReturn()
	case lexer.TokenIf:
		return p.parseIf()
	case lexer.TokenWhile:
		p.nextToken()
		cond := p.condition()
		return cabs.While{Cond: cond, Body: p.parseSubStatement()}
	case lexer.TokenDo:
		return p.parseDoWhile()
	case lexer.TokenFor:
		return p.parseFor()
	case lexer.TokenSwitch:
		p.nextToken()
		expr := p.condition()
		return cabs.Switch{Expr: expr, Body: p.parseSubStatement()}
	case lexer.TokenCase:
		return p.parseCase()
	case lexer.TokenDefault:
		p.nextToken()
		p.expect(lexer.TokenColon)
		return cabs.Default{Body: p.parseLabeledBody()}
	case lexer.TokenBreak:
		p.nextToken()
		p.expect(lexer.TokenSemicolon)
		return cabs.Break{}
	case lexer.TokenContinue:
		p.nextToken()
		p.expect(lexer.TokenSemicolon)
		return cabs.Continue{}
	case lexer.TokenGoto:
		p.nextToken()
		label := p.curToken.Literal
		if p.curTokenIs(lexer.TokenStar) {
			p.addError("indirect goto is not supported")
		}
		p.expect(lexer.TokenIdent)
		p.expect(lexer.TokenSemicolon)
		return cabs.Goto{Label: label}
	case lexer.TokenIdent:
		if p.peekTokenIs(lexer.TokenColon) {
			label := p.curToken.Literal
			p.nextToken()
			p.nextToken()
			return cabs.Labeled{Label: label, Body: p.parseLabeledBody()}
		}
	}
	expr := p.typeExpr(p.parseExpression())
	p.expect(lexer.TokenSemicolon)
	return cabs.ExprStmt{Expr: expr}
}

// parseSubStatement parses the body of a selection or iteration statement,
// which is a scope of its own.
func (p *Parser) parseSubStatement() cabs.Stmt {
	p.sema.PushScope()
	defer p.sema.PopScope()
	return p.parseStatement()
}

// parseLabeledBody parses the statement after a label. A label directly
// before a closing brace labels an empty statement.
func (p *Parser) parseLabeledBody() cabs.Stmt {
	if p.curTokenIs(lexer.TokenRBrace) {
		return cabs.Empty{}
	}
	if p.startsDeclaration() {
		defs := p.parseDeclaration(false)
		return cabs.DeclStmt{Decls: defs}
	}
	return p.parseStatement()
}

func (p *Parser) parseReturn() cabs.Stmt {
	p.nextToken()
	if p.curTokenIs(lexer.TokenSemicolon) {
		p.nextToken()
		return cabs.Return{}
	}
	expr := p.typeExpr(p.parseExpression())
	p.expect(lexer.TokenSemicolon)
	return cabs.Return{Expr: expr}
}

func (p *Parser) parseIf() cabs.Stmt {
	p.nextToken()
	stmt := cabs.If{Cond: p.condition()}
	stmt.Then = p.parseSubStatement()
	if p.curTokenIs(lexer.TokenElse) {
		p.nextToken()
		stmt.Else = p.parseSubStatement()
	}
	return stmt
}

func (p *Parser) parseDoWhile() cabs.Stmt {
	p.nextToken()
	body := p.parseSubStatement()
	if !p.expect(lexer.TokenWhile) {
		return cabs.DoWhile{Body: body}
	}
	cond := p.condition()
	p.expect(lexer.TokenSemicolon)
	return cabs.DoWhile{Body: body, Cond: cond}
}

func (p *Parser) parseFor() cabs.Stmt {
	p.nextToken()
	p.expect(lexer.TokenLParen)
	p.sema.PushScope()
	defer p.sema.PopScope()
	stmt := cabs.For{}
	switch {
	case p.curTokenIs(lexer.TokenSemicolon):
		p.nextToken()
	case p.startsDeclaration():
		stmt.Init = cabs.DeclStmt{Decls: p.parseDeclaration(false)}
	default:
		stmt.Init = cabs.ExprStmt{Expr: p.typeExpr(p.parseExpression())}
		p.expect(lexer.TokenSemicolon)
	}
	if !p.curTokenIs(lexer.TokenSemicolon) {
		stmt.Cond = p.typeExpr(p.parseExpression())
	}
	p.expect(lexer.TokenSemicolon)
	if !p.curTokenIs(lexer.TokenRParen) {
		stmt.Step = p.typeExpr(p.parseExpression())
	}
	p.expect(lexer.TokenRParen)
	stmt.Body = p.parseSubStatement()
	return stmt
}

func (p *Parser) parseCase() cabs.Stmt {
	p.nextToken()
	c := cabs.Case{Expr: p.typeExpr(p.parseConditional())}
	if p.typed {
		if _, ok := p.sema.ConstInt(c.Expr); !ok {
			p.addError("case value is not a constant expression")
		}
	}
	if p.curTokenIs(lexer.TokenEllipsis) {
		p.nextToken()
		c.Hi = p.typeExpr(p.parseConditional())
		if p.typed {
			lo, _ := p.sema.ConstInt(c.Expr)
			if hi, ok := p.sema.ConstInt(c.Hi); ok && hi < lo {
				p.addError(fmt.Sprintf("empty case range specified (%d ... %d)", lo, hi))
			}
		}
	}
	p.expect(lexer.TokenColon)
	c.Body = p.parseLabeledBody()
	return c
}
