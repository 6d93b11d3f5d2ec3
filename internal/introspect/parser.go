package introspect

import (
	"fmt"
	"strings"

	"github.com/mydiff/mydiff/internal/schema"
)

// Minimal DDL-subset parser: just enough of the create/alter/drop grammar
// to describe table, column, key and constraint structure. DML statements
// are skipped since they cannot change structure. DDL with no model
// representation (views, triggers, procedures) is rejected.

type tokKind int

const (
	tokWord tokKind = iota
	tokString
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokKind
	text string
}

func lex(stmt string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(stmt) {
		c := stmt[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ","})
			i++
		case c == '\'' || c == '"':
			quote := c
			j := i + 1
			var sb strings.Builder
			for j < len(stmt) {
				if stmt[j] == quote {
					if j+1 < len(stmt) && stmt[j+1] == quote {
						sb.WriteByte(quote)
						j += 2
						continue
					}
					break
				}
				sb.WriteByte(stmt[j])
				j++
			}
			if j >= len(stmt) {
				return nil, fmt.Errorf("unterminated string literal")
			}
			toks = append(toks, token{tokString, sb.String()})
			i = j + 1
		case c == '`':
			j := strings.IndexByte(stmt[i+1:], '`')
			if j < 0 {
				return nil, fmt.Errorf("unterminated quoted identifier")
			}
			toks = append(toks, token{tokWord, stmt[i+1 : i+1+j]})
			i = i + j + 2
		default:
			j := i
			for j < len(stmt) && !strings.ContainsRune(" \t\n\r(),'\"`", rune(stmt[j])) {
				j++
			}
			toks = append(toks, token{tokWord, stmt[i:j]})
			i = j
		}
	}
	return toks, nil
}

type parser struct {
	toks []token
	pos  int
	stmt string
	line int
}

func (p *parser) fail(reason string) error {
	return &ParseError{Line: p.line, Stmt: p.stmt, Reason: reason}
}

func (p *parser) done() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() (token, bool) {
	if p.done() {
		return token{}, false
	}
	return p.toks[p.pos], true
}

// peekWord returns the lower-cased next token if it is a word.
func (p *parser) peekWord() string {
	if t, ok := p.peek(); ok && t.kind == tokWord {
		return strings.ToLower(t.text)
	}
	return ""
}

// accept consumes the next token when it is the given keyword.
func (p *parser) accept(kw string) bool {
	if p.peekWord() == kw {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expect(kw string) error {
	if !p.accept(kw) {
		return p.fail(fmt.Sprintf("expected %q", kw))
	}
	return nil
}

// ident consumes a word token as an identifier, keeping its case.
func (p *parser) ident() (string, error) {
	t, ok := p.peek()
	if !ok || t.kind != tokWord {
		return "", p.fail("expected identifier")
	}
	p.pos++
	return t.text, nil
}

// parenList parses "( ident [, ident]... )".
func (p *parser) parenList() ([]string, error) {
	if t, ok := p.peek(); !ok || t.kind != tokLParen {
		return nil, p.fail("expected (")
	}
	p.pos++
	var list []string
	for {
		name, err := p.ident()
		if err != nil {
			return nil, err
		}
		list = append(list, name)
		t, ok := p.peek()
		if !ok {
			return nil, p.fail("unterminated column list")
		}
		if t.kind == tokComma {
			p.pos++
			continue
		}
		if t.kind == tokRParen {
			p.pos++
			return list, nil
		}
		return nil, p.fail("expected , or ) in column list")
	}
}

// typeDescriptor parses a column type: name, optional parenthesized
// arguments, optional unsigned. Returned raw, e.g. "decimal(10,2) unsigned".
func (p *parser) typeDescriptor() (string, error) {
	name, err := p.ident()
	if err != nil {
		return "", p.fail("expected column type")
	}
	typ := strings.ToLower(name)
	if t, ok := p.peek(); ok && t.kind == tokLParen {
		p.pos++
		var args []string
		for {
			t, ok := p.peek()
			if !ok {
				return "", p.fail("unterminated type arguments")
			}
			p.pos++
			if t.kind == tokRParen {
				break
			}
			if t.kind == tokComma {
				continue
			}
			if t.kind == tokString {
				args = append(args, "'"+t.text+"'")
				continue
			}
			args = append(args, t.text)
		}
		typ += "(" + strings.Join(args, ",") + ")"
	}
	if p.accept("unsigned") {
		typ += " unsigned"
	}
	return typ, nil
}

// defaultValue parses the token(s) after "default": a quoted string, a
// bare literal, or a call like now().
func (p *parser) defaultValue() (string, error) {
	t, ok := p.peek()
	if !ok {
		return "", p.fail("expected default value")
	}
	p.pos++
	if t.kind == tokString {
		return t.text, nil
	}
	if t.kind != tokWord {
		return "", p.fail("expected default value")
	}
	val := t.text
	if nt, ok := p.peek(); ok && nt.kind == tokLParen {
		// Function default, e.g. now().
		p.pos++
		depth := 1
		inner := ""
		for depth > 0 {
			t, ok := p.peek()
			if !ok {
				return "", p.fail("unterminated default expression")
			}
			p.pos++
			switch t.kind {
			case tokLParen:
				depth++
				inner += "("
			case tokRParen:
				depth--
				if depth > 0 {
					inner += ")"
				}
			default:
				inner += t.text
			}
		}
		val += "(" + inner + ")"
	}
	return val, nil
}

// columnDef parses "name type [constraints...]" inside create or alter.
// Inline primary key / unique constraints are surfaced through the
// returned key, if any.
func (p *parser) columnDef() (schema.Column, *schema.Key, error) {
	name, err := p.ident()
	if err != nil {
		return schema.Column{}, nil, err
	}
	typ, err := p.typeDescriptor()
	if err != nil {
		return schema.Column{}, nil, err
	}

	col := schema.Column{Name: name, Type: typ, Nullable: true}
	var inlineKey *schema.Key

	for {
		switch p.peekWord() {
		case "not":
			p.pos++
			if err := p.expect("null"); err != nil {
				return col, nil, err
			}
			col.Nullable = false
		case "null":
			p.pos++
			col.Nullable = true
		case "default":
			p.pos++
			v, err := p.defaultValue()
			if err != nil {
				return col, nil, err
			}
			col.Default = &v
		case "auto_increment":
			p.pos++
			col.AutoIncrement = true
		case "primary":
			p.pos++
			if err := p.expect("key"); err != nil {
				return col, nil, err
			}
			inlineKey = &schema.Key{Kind: schema.KeyPrimary, Columns: []string{name}}
		case "unique":
			p.pos++
			p.accept("key")
			inlineKey = &schema.Key{Kind: schema.KeyUnique, Name: name, Columns: []string{name}}
		default:
			return col, inlineKey, nil
		}
	}
}

// foreignKeyDef parses "[constraint NAME] foreign key [NAME] (cols)
// references TABLE (cols)", with any trailing referential actions
// consumed and ignored. The leading "constraint" keyword, when present,
// has already been handled by the caller.
func (p *parser) foreignKeyDef(name string) (schema.ForeignKey, error) {
	if err := p.expect("foreign"); err != nil {
		return schema.ForeignKey{}, err
	}
	if err := p.expect("key"); err != nil {
		return schema.ForeignKey{}, err
	}
	if t, ok := p.peek(); ok && t.kind == tokWord {
		// Index name between "foreign key" and the column list.
		if name == "" {
			name = t.text
		}
		p.pos++
	}
	cols, err := p.parenList()
	if err != nil {
		return schema.ForeignKey{}, err
	}
	if err := p.expect("references"); err != nil {
		return schema.ForeignKey{}, err
	}
	refTable, err := p.ident()
	if err != nil {
		return schema.ForeignKey{}, err
	}
	refCols, err := p.parenList()
	if err != nil {
		return schema.ForeignKey{}, err
	}
	// Consume "on delete ..." / "on update ..." actions.
	for p.accept("on") {
		p.pos++ // delete or update
		for {
			w := p.peekWord()
			if w == "cascade" || w == "restrict" || w == "set" || w == "no" || w == "null" || w == "action" || w == "default" {
				p.pos++
				continue
			}
			break
		}
	}
	return schema.ForeignKey{
		Name:              name,
		Columns:           cols,
		ReferencedTable:   refTable,
		ReferencedColumns: refCols,
	}, nil
}
