// Package resources reads Android string-resource files and writes
// translated copies of them.
//
// The parser walks the encoding/xml token stream and records the byte range
// of each translatable element's leading text. Rendering splices new text
// into those ranges, so everything else in the file (comments, attributes,
// formatting, untranslatable elements) is carried over unchanged.
//
// Translatable elements, matched by local name ignoring case and namespace:
//   - <string>
//   - <item> directly inside <plurals>
package resources

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"

	"github.com/valpere/stringtran/internal"
)

var (
	ErrNoTranslatable = errors.New("no translatable nodes found")
	ErrInvalidUTF8    = errors.New("input is not valid UTF-8")
	ErrTextCount      = errors.New("text count does not match node count")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Kind identifies which element a Node came from.
type Kind int

const (
	KindString Kind = iota
	KindPluralItem
)

func (k Kind) String() string {
	if k == KindPluralItem {
		return "plurals/item"
	}
	return "string"
}

type span struct {
	start, end int
}

// Node is one translatable element.
type Node struct {
	Kind Kind
	// Name is the resource name; for plural items, the name of the plurals.
	Name     string
	Quantity string
	// Text is the decoded leading text: character data before the first
	// child element, with comments left out.
	Text         string
	Translatable bool

	raw         span
	cdata       bool
	selfClosing bool
}

// Document is a parsed resource file.
type Document struct {
	Nodes []Node

	content string
	decl    *span
}

type Options struct {
	// SkipNonTranslatable leaves elements marked translatable="false" (and
	// the items of such plurals) out of Nodes.
	SkipNonTranslatable bool
}

// Decode converts raw file bytes to a UTF-8 string. Input starting with a
// UTF-16 byte order mark is decoded as UTF-16 in the marked byte order;
// anything else must be UTF-8, with an optional BOM that is dropped.
func Decode(raw []byte) (string, error) {
	if bytes.HasPrefix(raw, []byte{0xFF, 0xFE}) || bytes.HasPrefix(raw, []byte{0xFE, 0xFF}) {
		dec := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()
		out, err := dec.Bytes(raw)
		if err != nil {
			return "", fmt.Errorf("decoding UTF-16: %w", err)
		}
		return string(out), nil
	}

	raw = bytes.TrimPrefix(raw, utf8BOM)
	if !utf8.Valid(raw) {
		return "", ErrInvalidUTF8
	}
	return string(raw), nil
}

// ReadFile reads, decodes and parses the file at path.
func ReadFile(path string, opts Options) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	content, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	doc, err := Parse(content, opts)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return doc, nil
}

type frame struct {
	local        string
	name         string
	translatable bool
}

// Parse scans content for translatable elements. It fails with
// ErrNoTranslatable when none are found.
func Parse(content string, opts Options) (*Document, error) {
	doc := &Document{content: content}

	dec := xml.NewDecoder(strings.NewReader(content))
	// Content is already UTF-8 whatever the declaration says.
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	var stack []frame
	var pending *Node

	flush := func() {
		if pending != nil {
			doc.Nodes = append(doc.Nodes, *pending)
			pending = nil
		}
	}

	for {
		start := int(dec.InputOffset())
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("at offset %d: %w", start, err)
		}
		end := int(dec.InputOffset())

		switch t := tok.(type) {
		case xml.CharData:
			if pending != nil {
				pending.Text += string(t)
				pending.raw.end = end
			}
			continue
		case xml.Comment:
			// Comments inside the text are skipped; replacing the text drops them.
			if pending != nil {
				pending.raw.end = end
			}
			continue
		}
		flush()

		switch t := tok.(type) {
		case xml.ProcInst:
			if t.Target == "xml" && doc.decl == nil {
				doc.decl = &span{start, end}
			}

		case xml.StartElement:
			f := frame{
				local:        strings.ToLower(t.Name.Local),
				name:         attr(t, "name"),
				translatable: attr(t, "translatable") != "false",
			}
			var parent frame
			if len(stack) > 0 {
				parent = stack[len(stack)-1]
			}
			stack = append(stack, f)

			node := Node{Name: f.name, Translatable: f.translatable}
			switch {
			case f.local == "string":
				node.Kind = KindString
			case f.local == "item" && parent.local == "plurals":
				node.Kind = KindPluralItem
				node.Name = parent.name
				node.Quantity = attr(t, "quantity")
				node.Translatable = parent.translatable && f.translatable
			default:
				continue
			}
			if opts.SkipNonTranslatable && !node.Translatable {
				continue
			}
			node.raw = span{end, end}
			node.selfClosing = strings.HasSuffix(content[start:end], "/>")
			pending = &node

		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	flush()

	for i := range doc.Nodes {
		n := &doc.Nodes[i]
		n.cdata = isSingleCDATA(content[n.raw.start:n.raw.end])
	}

	if len(doc.Nodes) == 0 {
		return nil, ErrNoTranslatable
	}
	return doc, nil
}

func attr(t xml.StartElement, local string) string {
	for _, a := range t.Attr {
		if strings.EqualFold(a.Name.Local, local) {
			return a.Value
		}
	}
	return ""
}

func isSingleCDATA(raw string) bool {
	return strings.HasPrefix(raw, "<![CDATA[") &&
		strings.HasSuffix(raw, "]]>") &&
		strings.Count(raw, "<![CDATA[") == 1
}

// Texts returns the leading text of every node in document order.
func (d *Document) Texts() []string {
	return internal.Texts(d.Units())
}

// Units returns the nodes as pipeline units.
func (d *Document) Units() []internal.Unit {
	out := make([]internal.Unit, len(d.Nodes))
	for i, n := range d.Nodes {
		out[i] = internal.Unit{Index: i, Text: n.Text}
	}
	return out
}

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func (n Node) encode(text string) string {
	if n.cdata {
		return "<![CDATA[" + strings.ReplaceAll(text, "]]>", "]]]]><![CDATA[>") + "]]>"
	}
	return textEscaper.Replace(text)
}

// Render returns the document with the leading text of node i replaced by
// texts[i]. Output is UTF-8 and always starts with a UTF-8 XML declaration.
// Nodes whose text is unchanged keep their original bytes.
func (d *Document) Render(texts []string) ([]byte, error) {
	if len(texts) != len(d.Nodes) {
		return nil, fmt.Errorf("%w: %d texts for %d nodes", ErrTextCount, len(texts), len(d.Nodes))
	}

	var b bytes.Buffer
	b.Grow(len(d.content) + len(xml.Header))

	pos := 0
	if d.decl != nil {
		b.WriteString(d.content[:d.decl.start])
		b.WriteString(strings.TrimSuffix(xml.Header, "\n"))
		pos = d.decl.end
	} else {
		b.WriteString(xml.Header)
	}

	for i, n := range d.Nodes {
		if texts[i] == n.Text {
			continue
		}
		if n.selfClosing {
			return nil, fmt.Errorf("node %d (%s %q) is an empty element and cannot take text", i, n.Kind, n.Name)
		}
		b.WriteString(d.content[pos:n.raw.start])
		b.WriteString(n.encode(texts[i]))
		pos = n.raw.end
	}
	b.WriteString(d.content[pos:])

	return b.Bytes(), nil
}

// WriteFile renders the document with texts and writes it to path, creating
// the parent directory if needed.
func (d *Document) WriteFile(path string, texts []string) error {
	out, err := d.Render(texts)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
