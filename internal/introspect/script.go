package introspect

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mydiff/mydiff/internal/schema"
)

// Script reads a schema from a file of DDL statements.
type Script struct {
	path string
	text string
}

// NewScriptFile returns a Script backed by the file at path.
func NewScriptFile(path string) *Script {
	return &Script{path: path}
}

func (s *Script) Connect(_ context.Context) error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("reading DDL script: %w", err)
	}
	s.text = string(data)
	return nil
}

func (s *Script) Read(_ context.Context) (*schema.Schema, error) {
	sch, err := ParseScript(s.text)
	if err != nil {
		return nil, err
	}
	sch.Name = s.path
	return sch, nil
}

func (s *Script) Close() error { return nil }

// rawStatement is one semicolon-terminated statement with the line it
// starts on, for error reporting.
type rawStatement struct {
	text string
	line int
}

// splitStatements cuts the script on semicolons outside string literals
// and quoted identifiers. Line comments (-- and #) are stripped first.
func splitStatements(text string) []rawStatement {
	var stmts []rawStatement
	var sb strings.Builder
	line := 1
	start := 1
	var quote byte
	i := 0
	for i < len(text) {
		c := text[i]
		if quote != 0 {
			sb.WriteByte(c)
			if c == quote {
				quote = 0
			} else if c == '\n' {
				line++
			}
			i++
			continue
		}
		switch {
		case c == '\'' || c == '"' || c == '`':
			quote = c
			sb.WriteByte(c)
			i++
		case c == '-' && i+1 < len(text) && text[i+1] == '-',
			c == '#':
			for i < len(text) && text[i] != '\n' {
				i++
			}
		case c == ';':
			if s := strings.TrimSpace(sb.String()); s != "" {
				stmts = append(stmts, rawStatement{text: s, line: start})
			}
			sb.Reset()
			start = line
			i++
		case c == '\n':
			line++
			if strings.TrimSpace(sb.String()) == "" {
				sb.Reset()
				start = line
			} else {
				sb.WriteByte(c)
			}
			i++
		default:
			if strings.TrimSpace(sb.String()) == "" && c != ' ' && c != '\t' && c != '\r' {
				start = line
			}
			sb.WriteByte(c)
			i++
		}
	}
	if s := strings.TrimSpace(sb.String()); s != "" {
		stmts = append(stmts, rawStatement{text: s, line: start})
	}
	return stmts
}

// dmlVerbs are statement leads that cannot affect structure and are
// skipped without parsing.
var dmlVerbs = map[string]bool{
	"insert": true, "update": true, "delete": true, "replace": true,
	"select": true, "set": true, "use": true, "begin": true,
	"commit": true, "rollback": true, "start": true, "lock": true,
	"unlock": true, "grant": true, "revoke": true,
}

// ParseScript builds a schema model from DDL text by applying each
// statement to an in-memory catalog, then validating the result.
func ParseScript(text string) (*schema.Schema, error) {
	sch := &schema.Schema{}
	for _, raw := range splitStatements(text) {
		if err := applyStatement(sch, raw); err != nil {
			return nil, err
		}
	}
	if err := sch.Validate(); err != nil {
		return nil, err
	}
	return sch, nil
}

func applyStatement(sch *schema.Schema, raw rawStatement) error {
	toks, err := lex(raw.text)
	if err != nil {
		return &ParseError{Line: raw.line, Stmt: raw.text, Reason: err.Error()}
	}
	p := &parser{toks: toks, stmt: raw.text, line: raw.line}
	verb := p.peekWord()
	if dmlVerbs[verb] {
		return nil
	}
	switch verb {
	case "create":
		p.pos++
		return parseCreate(p, sch)
	case "alter":
		p.pos++
		return parseAlter(p, sch)
	case "drop":
		p.pos++
		return parseDrop(p, sch)
	case "":
		return nil
	default:
		return &UnsupportedConstructError{Construct: verb, Stmt: raw.text}
	}
}

func parseCreate(p *parser, sch *schema.Schema) error {
	switch p.peekWord() {
	case "table":
		p.pos++
	case "view", "trigger", "procedure", "function", "index", "event":
		return &UnsupportedConstructError{Construct: "create " + p.peekWord(), Stmt: p.stmt}
	default:
		return p.fail("expected object kind after create")
	}
	if p.accept("if") {
		if err := p.expect("not"); err != nil {
			return err
		}
		if err := p.expect("exists"); err != nil {
			return err
		}
	}
	name, err := p.ident()
	if err != nil {
		return err
	}
	if sch.Table(name) != nil {
		return p.fail(fmt.Sprintf("table %s created twice", name))
	}
	t := schema.Table{Name: name}
	if err := parseTableBody(p, &t); err != nil {
		return err
	}
	sch.Tables = append(sch.Tables, t)
	return nil
}

// parseTableBody parses the parenthesized member list of a create table:
// column definitions, key definitions and foreign key constraints.
func parseTableBody(p *parser, t *schema.Table) error {
	if tok, ok := p.peek(); !ok || tok.kind != tokLParen {
		return p.fail("expected ( after table name")
	}
	p.pos++
	for {
		if err := parseTableMember(p, t); err != nil {
			return err
		}
		tok, ok := p.peek()
		if !ok {
			return p.fail("unterminated table definition")
		}
		if tok.kind == tokComma {
			p.pos++
			continue
		}
		if tok.kind == tokRParen {
			p.pos++
			// Trailing table options (engine=..., charset) are ignored.
			return nil
		}
		return p.fail("expected , or ) in table definition")
	}
}

func parseTableMember(p *parser, t *schema.Table) error {
	switch p.peekWord() {
	case "primary":
		p.pos++
		if err := p.expect("key"); err != nil {
			return err
		}
		cols, err := p.parenList()
		if err != nil {
			return err
		}
		t.Keys = append(t.Keys, schema.Key{Kind: schema.KeyPrimary, Columns: cols})
		return nil
	case "unique":
		p.pos++
		p.accept("key")
		p.accept("index")
		name, err := p.ident()
		if err != nil {
			return p.fail("unique key needs a name")
		}
		cols, err := p.parenList()
		if err != nil {
			return err
		}
		t.Keys = append(t.Keys, schema.Key{Kind: schema.KeyUnique, Name: name, Columns: cols})
		return nil
	case "key", "index":
		p.pos++
		name, err := p.ident()
		if err != nil {
			return p.fail("index needs a name")
		}
		cols, err := p.parenList()
		if err != nil {
			return err
		}
		t.Keys = append(t.Keys, schema.Key{Kind: schema.KeyIndex, Name: name, Columns: cols})
		return nil
	case "constraint":
		p.pos++
		name, err := p.ident()
		if err != nil {
			return err
		}
		fk, err := p.foreignKeyDef(name)
		if err != nil {
			return err
		}
		t.ForeignKeys = append(t.ForeignKeys, fk)
		return nil
	case "foreign":
		fk, err := p.foreignKeyDef("")
		if err != nil {
			return err
		}
		if fk.Name == "" {
			fk.Name = fmt.Sprintf("%s_ibfk_%d", t.Name, len(t.ForeignKeys)+1)
		}
		t.ForeignKeys = append(t.ForeignKeys, fk)
		return nil
	default:
		col, inlineKey, err := p.columnDef()
		if err != nil {
			return err
		}
		t.Columns = append(t.Columns, col)
		if inlineKey != nil {
			t.Keys = append(t.Keys, *inlineKey)
		}
		return nil
	}
}

func parseAlter(p *parser, sch *schema.Schema) error {
	if p.peekWord() != "table" {
		return &UnsupportedConstructError{Construct: "alter " + p.peekWord(), Stmt: p.stmt}
	}
	p.pos++
	name, err := p.ident()
	if err != nil {
		return err
	}
	t := sch.Table(name)
	if t == nil {
		return p.fail(fmt.Sprintf("alter of unknown table %s", name))
	}
	for {
		if err := parseAlterClause(p, t); err != nil {
			return err
		}
		tok, ok := p.peek()
		if !ok {
			return nil
		}
		if tok.kind == tokComma {
			p.pos++
			continue
		}
		return p.fail("expected , between alter clauses")
	}
}

func parseAlterClause(p *parser, t *schema.Table) error {
	switch p.peekWord() {
	case "add":
		p.pos++
		return parseAlterAdd(p, t)
	case "drop":
		p.pos++
		return parseAlterDrop(p, t)
	case "change":
		p.pos++
		// change OLD NEW type...; the model keeps only the new definition.
		old, err := p.ident()
		if err != nil {
			return err
		}
		col, inlineKey, err := p.columnDef()
		if err != nil {
			return err
		}
		if t.Column(old) == nil {
			return p.fail(fmt.Sprintf("change of unknown column %s", old))
		}
		for i := range t.Columns {
			if t.Columns[i].Name == old {
				t.Columns[i] = col
			}
		}
		if inlineKey != nil {
			t.Keys = append(t.Keys, *inlineKey)
		}
		return nil
	case "modify":
		p.pos++
		p.accept("column")
		col, inlineKey, err := p.columnDef()
		if err != nil {
			return err
		}
		if t.Column(col.Name) == nil {
			return p.fail(fmt.Sprintf("modify of unknown column %s", col.Name))
		}
		for i := range t.Columns {
			if t.Columns[i].Name == col.Name {
				t.Columns[i] = col
			}
		}
		if inlineKey != nil {
			t.Keys = append(t.Keys, *inlineKey)
		}
		return nil
	default:
		return p.fail(fmt.Sprintf("unsupported alter clause %q", p.peekWord()))
	}
}

func parseAlterAdd(p *parser, t *schema.Table) error {
	switch p.peekWord() {
	case "column":
		p.pos++
		col, inlineKey, err := p.columnDef()
		if err != nil {
			return err
		}
		t.Columns = append(t.Columns, col)
		if inlineKey != nil {
			t.Keys = append(t.Keys, *inlineKey)
		}
		return nil
	case "primary":
		p.pos++
		if err := p.expect("key"); err != nil {
			return err
		}
		cols, err := p.parenList()
		if err != nil {
			return err
		}
		t.Keys = append(t.Keys, schema.Key{Kind: schema.KeyPrimary, Columns: cols})
		return nil
	case "unique":
		p.pos++
		p.accept("key")
		p.accept("index")
		name, err := p.ident()
		if err != nil {
			return err
		}
		cols, err := p.parenList()
		if err != nil {
			return err
		}
		t.Keys = append(t.Keys, schema.Key{Kind: schema.KeyUnique, Name: name, Columns: cols})
		return nil
	case "key", "index":
		p.pos++
		name, err := p.ident()
		if err != nil {
			return err
		}
		cols, err := p.parenList()
		if err != nil {
			return err
		}
		t.Keys = append(t.Keys, schema.Key{Kind: schema.KeyIndex, Name: name, Columns: cols})
		return nil
	case "constraint":
		p.pos++
		name, err := p.ident()
		if err != nil {
			return err
		}
		fk, err := p.foreignKeyDef(name)
		if err != nil {
			return err
		}
		t.ForeignKeys = append(t.ForeignKeys, fk)
		return nil
	case "foreign":
		fk, err := p.foreignKeyDef("")
		if err != nil {
			return err
		}
		if fk.Name == "" {
			fk.Name = fmt.Sprintf("%s_ibfk_%d", t.Name, len(t.ForeignKeys)+1)
		}
		t.ForeignKeys = append(t.ForeignKeys, fk)
		return nil
	default:
		// Bare "add name type..." defaults to a column.
		col, inlineKey, err := p.columnDef()
		if err != nil {
			return err
		}
		t.Columns = append(t.Columns, col)
		if inlineKey != nil {
			t.Keys = append(t.Keys, *inlineKey)
		}
		return nil
	}
}

func parseAlterDrop(p *parser, t *schema.Table) error {
	switch p.peekWord() {
	case "column":
		p.pos++
		name, err := p.ident()
		if err != nil {
			return err
		}
		return dropColumn(p, t, name)
	case "primary":
		p.pos++
		if err := p.expect("key"); err != nil {
			return err
		}
		for i := range t.Keys {
			if t.Keys[i].Kind == schema.KeyPrimary {
				t.Keys = append(t.Keys[:i], t.Keys[i+1:]...)
				return nil
			}
		}
		return p.fail("drop primary key: table has none")
	case "key", "index":
		p.pos++
		name, err := p.ident()
		if err != nil {
			return err
		}
		for i := range t.Keys {
			if t.Keys[i].Name == name {
				t.Keys = append(t.Keys[:i], t.Keys[i+1:]...)
				return nil
			}
		}
		return p.fail(fmt.Sprintf("drop of unknown key %s", name))
	case "foreign":
		p.pos++
		if err := p.expect("key"); err != nil {
			return err
		}
		name, err := p.ident()
		if err != nil {
			return err
		}
		for i := range t.ForeignKeys {
			if t.ForeignKeys[i].Name == name {
				t.ForeignKeys = append(t.ForeignKeys[:i], t.ForeignKeys[i+1:]...)
				return nil
			}
		}
		return p.fail(fmt.Sprintf("drop of unknown foreign key %s", name))
	case "constraint":
		p.pos++
		name, err := p.ident()
		if err != nil {
			return err
		}
		for i := range t.ForeignKeys {
			if t.ForeignKeys[i].Name == name {
				t.ForeignKeys = append(t.ForeignKeys[:i], t.ForeignKeys[i+1:]...)
				return nil
			}
		}
		return p.fail(fmt.Sprintf("drop of unknown constraint %s", name))
	default:
		// Bare "drop name" defaults to a column.
		name, err := p.ident()
		if err != nil {
			return err
		}
		return dropColumn(p, t, name)
	}
}

func dropColumn(p *parser, t *schema.Table, name string) error {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			t.Columns = append(t.Columns[:i], t.Columns[i+1:]...)
			return nil
		}
	}
	return p.fail(fmt.Sprintf("drop of unknown column %s", name))
}

func parseDrop(p *parser, sch *schema.Schema) error {
	switch p.peekWord() {
	case "table":
		p.pos++
	case "view", "trigger", "procedure", "function", "index", "event":
		return &UnsupportedConstructError{Construct: "drop " + p.peekWord(), Stmt: p.stmt}
	default:
		return p.fail("expected object kind after drop")
	}
	if p.accept("if") {
		if err := p.expect("exists"); err != nil {
			return err
		}
	}
	name, err := p.ident()
	if err != nil {
		return err
	}
	for i := range sch.Tables {
		if sch.Tables[i].Name == name {
			sch.Tables = append(sch.Tables[:i], sch.Tables[i+1:]...)
			return nil
		}
	}
	return p.fail(fmt.Sprintf("drop of unknown table %s", name))
}
