package source

import (
	"context"
	"encoding/xml"
	"io"
	"iter"
	"strings"

	"go-migrate-pipeline/internal/errors"
	"go-migrate-pipeline/internal/plugin"
	"go-migrate-pipeline/pkg/utils"
)

// xmlSource streams the elements matched by item_selector and extracts the
// declared fields from each.
type xmlSource struct {
	base
	path         string
	itemSelector []string
	raw          bool
}

func newXML(cfg plugin.Config, env plugin.Env) (Source, error) {
	b, err := newBase("xml", cfg)
	if err != nil {
		return nil, err
	}
	if len(b.fields) == 0 {
		return nil, errors.InvalidConfig("xml source needs a %q list", "fields")
	}
	path, err := cfg.RequiredString("path")
	if err != nil {
		return nil, err
	}
	sel, err := cfg.RequiredString("item_selector")
	if err != nil {
		return nil, err
	}
	parts := strings.Split(strings.Trim(sel, "/"), "/")
	for _, p := range parts {
		if p == "" || strings.ContainsAny(p, "[]*") {
			return nil, errors.InvalidConfig("unsupported item_selector %q: use a plain /a/b/c element path", sel)
		}
	}
	raw, err := cfg.Bool("keep_strings", true)
	if err != nil {
		return nil, err
	}
	return &xmlSource{base: b, path: resolvePath(env, path), itemSelector: parts, raw: raw}, nil
}

// xmlNode is a generic element tree.
type xmlNode struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Content string     `xml:",chardata"`
	Nodes   []xmlNode  `xml:",any"`
}

// text returns the element's own trimmed character data.
func (n *xmlNode) text() string { return strings.TrimSpace(n.Content) }

func (n *xmlNode) attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// query evaluates a relative selector: child element names separated by "/",
// optionally ending in "@attr". "." is the item itself. Several matches
// produce a list.
func (n *xmlNode) query(selector string) interface{} {
	selector = strings.Trim(selector, "/")
	current := []*xmlNode{n}
	for _, step := range strings.Split(selector, "/") {
		switch {
		case step == "" || step == ".":
			continue
		case strings.HasPrefix(step, "@"):
			var vals []interface{}
			for _, c := range current {
				if v, ok := c.attr(step[1:]); ok {
					vals = append(vals, v)
				}
			}
			return collapse(vals)
		default:
			var next []*xmlNode
			for _, c := range current {
				for i := range c.Nodes {
					if c.Nodes[i].XMLName.Local == step {
						next = append(next, &c.Nodes[i])
					}
				}
			}
			current = next
		}
	}
	vals := make([]interface{}, 0, len(current))
	for _, c := range current {
		vals = append(vals, c.text())
	}
	return collapse(vals)
}

func collapse(vals []interface{}) interface{} {
	switch len(vals) {
	case 0:
		return nil
	case 1:
		return vals[0]
	}
	return vals
}

func (s *xmlSource) Rows(ctx context.Context) iter.Seq2[map[string]interface{}, error] {
	return func(yield func(map[string]interface{}, error) bool) {
		rc, err := openResource(ctx, s.path)
		if err != nil {
			yield(nil, err)
			return
		}
		defer rc.Close()

		dec := xml.NewDecoder(rc)
		var stack []string
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			tok, err := dec.Token()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(nil, errors.Wrapf(err, "parse XML %s", s.path))
				return
			}

			switch t := tok.(type) {
			case xml.StartElement:
				stack = append(stack, t.Name.Local)
				if !s.matches(stack) {
					continue
				}
				var node xmlNode
				if err := dec.DecodeElement(&node, &t); err != nil {
					yield(nil, errors.Wrapf(err, "decode <%s> in %s", t.Name.Local, s.path))
					return
				}
				// DecodeElement consumed the end tag.
				stack = stack[:len(stack)-1]
				if !yield(s.extract(&node), nil) {
					return
				}
			case xml.EndElement:
				if len(stack) > 0 {
					stack = stack[:len(stack)-1]
				}
			}
		}
	}
}

func (s *xmlSource) matches(stack []string) bool {
	if len(stack) != len(s.itemSelector) {
		return false
	}
	for i := range stack {
		if stack[i] != s.itemSelector[i] {
			return false
		}
	}
	return true
}

func (s *xmlSource) extract(n *xmlNode) map[string]interface{} {
	out := make(map[string]interface{}, len(s.fields))
	for _, f := range s.fields {
		v := n.query(f.Selector)
		if str, ok := v.(string); ok && !s.raw {
			v = utils.ParseValue(str)
		}
		out[f.Name] = v
	}
	return out
}

func (s *xmlSource) Count(ctx context.Context) (int, error) { return countRows(ctx, s) }

func (s *xmlSource) String() string {
	return s.path + " /" + strings.Join(s.itemSelector, "/")
}
