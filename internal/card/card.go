// Package card defines the Card model and the Markdown codec that maps a card
// to and from its on-disk file.
package card

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// Extension is the file extension every card file carries.
const Extension = ".md"

// UntitledTitle is used when neither frontmatter nor body provide a title.
const UntitledTitle = "Untitled"

// Card is a single unit of work backed by exactly one Markdown file.
type Card struct {
	// ID is the filename without extension. It is fixed at creation and does
	// not change when the card is edited or moved between columns.
	ID string `json:"id"`

	Title   string `json:"title"`
	Content string `json:"content"`

	// Column is the directory the backing file currently lives in.
	Column string `json:"column"`

	// FilePath is {root}/{column}/{filename}.
	FilePath string `json:"filePath"`

	Metadata Metadata `json:"metadata"`
}

// Metadata holds the frontmatter fields other than the title.
type Metadata struct {
	Created  time.Time  `json:"created"`
	Updated  time.Time  `json:"updated"`
	Tags     []string   `json:"tags"`
	Assignee *string    `json:"assignee,omitempty"`
	DueDate  *time.Time `json:"dueDate,omitempty"`
}

// Filename returns the base name of the backing file: {id}.md
func (c Card) Filename() string {
	return c.ID + Extension
}

// Clone returns a deep copy so callers can mutate it without touching the
// original's tag slice or optional fields.
func (c Card) Clone() Card {
	out := c
	out.Metadata.Tags = append([]string{}, c.Metadata.Tags...)
	if c.Metadata.Assignee != nil {
		a := *c.Metadata.Assignee
		out.Metadata.Assignee = &a
	}
	if c.Metadata.DueDate != nil {
		d := *c.Metadata.DueDate
		out.Metadata.DueDate = &d
	}
	return out
}

// Validate checks the invariants a card must satisfy before it is written.
func (c Card) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("id is required")
	}
	if strings.ContainsAny(c.ID, `/\`) {
		return fmt.Errorf("id must not contain path separators (got %q)", c.ID)
	}
	if c.Title == "" {
		return fmt.Errorf("title is required")
	}
	if c.Column == "" {
		return fmt.Errorf("column is required")
	}
	if c.Metadata.Created.IsZero() {
		return fmt.Errorf("created is required")
	}
	return nil
}

// SetDefaults fills optional fields so freshly built cards behave the same
// as parsed ones.
func (c *Card) SetDefaults(now time.Time) {
	if c.Title == "" {
		c.Title = UntitledTitle
	}
	if c.Metadata.Tags == nil {
		c.Metadata.Tags = []string{}
	}
	if c.Metadata.Created.IsZero() {
		c.Metadata.Created = now
	}
	if c.Metadata.Updated.IsZero() {
		c.Metadata.Updated = now
	}
}

// PathFor builds the logical path of a card file: {root}/{column}/{filename}.
// path.Join is avoided because it would strip the leading "./" of the
// default root.
func PathFor(root, column, filename string) string {
	return strings.TrimSuffix(root, "/") + "/" + column + "/" + filename
}

// ColumnPath returns the logical directory for a column.
func ColumnPath(root, column string) string {
	return strings.TrimSuffix(root, "/") + "/" + column
}

// IDFromPath derives a card id from a file path by dropping the directory
// and the .md extension.
func IDFromPath(filePath string) string {
	return strings.TrimSuffix(path.Base(filePath), Extension)
}

// Patch is a partial update applied by Store.UpdateCard. Nil fields are left
// unchanged.
type Patch struct {
	Title   *string
	Content *string

	// Tags replaces the whole tag list when non-nil. An empty non-nil slice
	// clears the tags.
	Tags []string

	// Assignee sets the assignee; a pointer to "" removes it.
	Assignee *string

	DueDate      *time.Time
	ClearDueDate bool
}

// Apply merges p into a copy of c and returns the copy.
func (p Patch) Apply(c Card) Card {
	out := c.Clone()
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Content != nil {
		out.Content = strings.TrimSpace(*p.Content)
	}
	if p.Tags != nil {
		out.Metadata.Tags = append([]string{}, p.Tags...)
	}
	if p.Assignee != nil {
		if *p.Assignee == "" {
			out.Metadata.Assignee = nil
		} else {
			a := *p.Assignee
			out.Metadata.Assignee = &a
		}
	}
	if p.ClearDueDate {
		out.Metadata.DueDate = nil
	} else if p.DueDate != nil {
		d := *p.DueDate
		out.Metadata.DueDate = &d
	}
	return out
}

// IsEmpty reports whether the patch would change nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Content == nil && p.Tags == nil &&
		p.Assignee == nil && p.DueDate == nil && !p.ClearDueDate
}
