package card

import (
	"bytes"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// TimeLayout is the ISO-8601 form written into frontmatter: UTC with
// millisecond precision, e.g. 2024-03-01T09:30:00.000Z.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

const fence = "---"

// Leniency selects how Parse treats individual malformed fields.
type Leniency int

const (
	// Lenient replaces malformed created/updated with the parse time, drops
	// a malformed dueDate and ignores non-string tags. Only structurally
	// unreadable documents fail.
	Lenient Leniency = iota

	// Strict turns every malformed field into a ParseError. Useful in tests
	// and for `mdk status --strict` style checks.
	Strict
)

// String returns the policy name.
func (l Leniency) String() string {
	switch l {
	case Lenient:
		return "lenient"
	case Strict:
		return "strict"
	default:
		return "unknown"
	}
}

type parseConfig struct {
	leniency Leniency
	now      func() time.Time
}

// ParseOption configures Parse.
type ParseOption func(*parseConfig)

// WithLeniency sets the field-level leniency policy.
func WithLeniency(l Leniency) ParseOption {
	return func(c *parseConfig) { c.leniency = l }
}

// WithNow overrides the clock used for defaulted timestamps.
func WithNow(now func() time.Time) ParseOption {
	return func(c *parseConfig) { c.now = now }
}

// Parse decodes a card file. The card's Column is columnID and its ID is
// derived from filePath.
//
// A document is rejected with *ParseError when it is not valid UTF-8,
// contains NUL bytes, opens a frontmatter fence that never closes, or has a
// frontmatter block that is not a YAML mapping. Everything below that line
// is a field-level problem handled by the Leniency policy.
func Parse(data []byte, filePath, columnID string, opts ...ParseOption) (Card, error) {
	cfg := parseConfig{leniency: Lenient, now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	now := cfg.now()

	if !utf8.Valid(data) {
		return Card{}, &ParseError{Path: filePath, Reason: "file is not valid UTF-8"}
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return Card{}, &ParseError{Path: filePath, Reason: "file contains NUL bytes"}
	}

	text := strings.TrimPrefix(string(data), "\ufeff")
	front, body, err := splitFrontmatter(text)
	if err != nil {
		return Card{}, &ParseError{Path: filePath, Reason: err.Error()}
	}

	fields, err := decodeFields(front)
	if err != nil {
		return Card{}, &ParseError{Path: filePath, Reason: err.Error()}
	}

	c := Card{
		ID:       IDFromPath(filePath),
		Content:  strings.TrimSpace(body),
		Column:   columnID,
		FilePath: filePath,
	}

	strict := cfg.leniency == Strict
	fail := func(field, reason string) error {
		return &ParseError{Path: filePath, Field: field, Reason: reason}
	}

	if title, ok := fields.scalar("title"); ok && strings.TrimSpace(title) != "" {
		c.Title = title
	} else if heading := FirstHeading(c.Content); heading != "" {
		c.Title = heading
	} else {
		c.Title = UntitledTitle
	}

	for _, key := range []string{"created", "updated"} {
		t := now
		if raw, ok := fields.scalar(key); ok {
			parsed, perr := parseTime(raw)
			if perr != nil {
				if strict {
					return Card{}, fail(key, perr.Error())
				}
			} else {
				t = parsed
			}
		} else if strict && fields.has(key) {
			return Card{}, fail(key, "expected a timestamp")
		}
		if key == "created" {
			c.Metadata.Created = t
		} else {
			c.Metadata.Updated = t
		}
	}

	tags, terr := fields.stringList("tags")
	if terr != nil && strict {
		return Card{}, fail("tags", terr.Error())
	}
	c.Metadata.Tags = tags

	if assignee, ok := fields.scalar("assignee"); ok && assignee != "" {
		c.Metadata.Assignee = &assignee
	}

	if raw, ok := fields.scalar("dueDate"); ok && strings.TrimSpace(raw) != "" {
		due, derr := parseTime(raw)
		switch {
		case derr == nil:
			c.Metadata.DueDate = &due
		case strict:
			return Card{}, fail("dueDate", derr.Error())
		}
	}

	return c, nil
}

// ValidMarkdown reports whether data would be accepted by Parse under the
// lenient policy.
func ValidMarkdown(data []byte) bool {
	_, err := Parse(data, "check"+Extension, "check")
	return err == nil
}

// Serialize renders c as a Markdown document with a freshly stamped updated
// time. It returns the bytes and the card exactly as written so callers can
// commit the same value to memory.
func Serialize(c Card, now time.Time) ([]byte, Card) {
	now = now.UTC().Truncate(time.Millisecond)
	out := c.Clone()
	out.SetDefaults(now)
	out.Metadata.Created = out.Metadata.Created.UTC().Truncate(time.Millisecond)
	out.Metadata.Updated = now
	if out.Metadata.DueDate != nil {
		due := out.Metadata.DueDate.UTC().Truncate(time.Millisecond)
		out.Metadata.DueDate = &due
	}
	// An empty assignee is written as no assignee.
	if out.Metadata.Assignee != nil && *out.Metadata.Assignee == "" {
		out.Metadata.Assignee = nil
	}

	doc := &yaml.Node{Kind: yaml.MappingNode}
	add := func(key string, value *yaml.Node) {
		doc.Content = append(doc.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, value)
	}
	str := func(s string) *yaml.Node {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
	}
	stamp := func(t time.Time) *yaml.Node {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!timestamp", Value: FormatTime(t)}
	}

	add("title", str(out.Title))
	add("created", stamp(out.Metadata.Created))
	add("updated", stamp(out.Metadata.Updated))
	if len(out.Metadata.Tags) > 0 {
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Style: yaml.FlowStyle}
		for _, tag := range out.Metadata.Tags {
			seq.Content = append(seq.Content, str(tag))
		}
		add("tags", seq)
	}
	if out.Metadata.Assignee != nil {
		add("assignee", str(*out.Metadata.Assignee))
	}
	if out.Metadata.DueDate != nil {
		add("dueDate", stamp(*out.Metadata.DueDate))
	}

	var buf bytes.Buffer
	buf.WriteString(fence + "\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	// Encoding a hand-built node tree of scalars cannot fail.
	_ = enc.Encode(doc)
	_ = enc.Close()
	buf.WriteString(fence + "\n\n")
	buf.WriteString(out.Content)
	if out.Content != "" && !strings.HasSuffix(out.Content, "\n") {
		buf.WriteString("\n")
	}

	return buf.Bytes(), out
}

// FormatTime renders t in TimeLayout (UTC).
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// parseTime accepts the timestamp shapes people actually type into
// frontmatter.
func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

// splitFrontmatter separates a leading ---/--- block from the body. A
// document without an opening fence is all body.
func splitFrontmatter(text string) (front, body string, err error) {
	first, rest, found := strings.Cut(text, "\n")
	if strings.TrimRight(first, " \t\r") != fence {
		return "", text, nil
	}
	if !found {
		return "", "", fmt.Errorf("frontmatter is not terminated")
	}

	offset := 0
	for offset <= len(rest) {
		line, after, more := strings.Cut(rest[offset:], "\n")
		if strings.TrimRight(line, " \t\r") == fence {
			front = rest[:offset]
			if more {
				body = after
			}
			return front, body, nil
		}
		if !more {
			break
		}
		offset += len(line) + 1
	}
	return "", "", fmt.Errorf("frontmatter is not terminated")
}

// frontFields is the decoded top-level frontmatter mapping.
type frontFields map[string]*yaml.Node

func decodeFields(front string) (frontFields, error) {
	fields := frontFields{}
	if strings.TrimSpace(front) == "" {
		return fields, nil
	}

	var root yaml.Node
	if err := yaml.Unmarshal([]byte(front), &root); err != nil {
		return nil, fmt.Errorf("frontmatter is not valid YAML: %w", err)
	}
	if root.Kind == 0 || (root.Kind == yaml.DocumentNode && len(root.Content) == 0) {
		return fields, nil
	}
	if root.Kind != yaml.DocumentNode || root.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("frontmatter must be a mapping")
	}

	mapping := root.Content[0]
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		fields[mapping.Content[i].Value] = mapping.Content[i+1]
	}
	return fields, nil
}

func (f frontFields) has(key string) bool {
	_, ok := f[key]
	return ok
}

// scalar returns the raw text of a scalar field. Null values count as absent.
func (f frontFields) scalar(key string) (string, bool) {
	n, ok := f[key]
	if !ok || n.Kind != yaml.ScalarNode || n.Tag == "!!null" {
		return "", false
	}
	return n.Value, true
}

// stringList reads tags written either as a sequence or as a comma separated
// scalar. Sequence items are kept verbatim; the scalar form is split and
// trimmed. It always returns a non-nil slice; the error reports entries
// that had to be dropped.
func (f frontFields) stringList(key string) ([]string, error) {
	out := []string{}
	n, ok := f[key]
	if !ok {
		return out, nil
	}

	switch n.Kind {
	case yaml.SequenceNode:
		var dropped int
		for _, item := range n.Content {
			if item.Kind != yaml.ScalarNode || item.Tag == "!!null" {
				dropped++
				continue
			}
			out = append(out, item.Value)
		}
		if dropped > 0 {
			return out, fmt.Errorf("%d non-string entries", dropped)
		}
		return out, nil
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return out, nil
		}
		for _, part := range strings.Split(n.Value, ",") {
			if v := strings.TrimSpace(part); v != "" {
				out = append(out, v)
			}
		}
		return out, nil
	default:
		return out, fmt.Errorf("expected a list of strings")
	}
}
