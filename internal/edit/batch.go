package edit

import "fmt"

// Kind identifies an edit operation.
type Kind string

const (
	KindInsertText  Kind = "insertText"
	KindDeleteRange Kind = "deleteContentRange"
	KindUpdateStyle Kind = "updateTextStyle"
)

// Operation is one edit in a batch. Text is set for inserts, Style for
// style updates.
type Operation struct {
	Kind  Kind
	Range Range
	Text  string
	Style TextStyle
}

func (op Operation) String() string {
	switch op.Kind {
	case KindInsertText:
		return fmt.Sprintf("insertText%s %q", op.Range, op.Text)
	case KindUpdateStyle:
		return fmt.Sprintf("updateTextStyle%s italic=%t color=%v", op.Range, op.Style.Italic, op.Style.Color)
	default:
		return fmt.Sprintf("%s%s", op.Kind, op.Range)
	}
}

// Batch accumulates operations in the order the remote service will apply
// them. Every operation keeps the offsets it was built with; the batch
// never shifts later operations to account for earlier inserts or deletes,
// so callers compute those offsets before appending.
type Batch struct {
	ops []Operation
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{}
}

// InsertText appends an insert of text at the insertion point r.
func (b *Batch) InsertText(r Range, text string) error {
	if _, bounded := r.End(); bounded {
		return fmt.Errorf("%w: insert needs an insertion point, got %s", ErrInvalidRange, r)
	}
	b.ops = append(b.ops, Operation{Kind: KindInsertText, Range: r, Text: text})
	return nil
}

// DeleteContentRange appends a delete of the span r.
func (b *Batch) DeleteContentRange(r Range) error {
	if _, bounded := r.End(); !bounded {
		return fmt.Errorf("%w: delete needs start and end, got %s", ErrInvalidRange, r)
	}
	b.ops = append(b.ops, Operation{Kind: KindDeleteRange, Range: r})
	return nil
}

// UpdateTextStyle appends a style update of the span r. Only the fields in
// StyleFields are written.
func (b *Batch) UpdateTextStyle(r Range, style TextStyle) error {
	if _, bounded := r.End(); !bounded {
		return fmt.Errorf("%w: style update needs start and end, got %s", ErrInvalidRange, r)
	}
	b.ops = append(b.ops, Operation{Kind: KindUpdateStyle, Range: r, Style: style})
	return nil
}

// Operations returns a copy of the accumulated operations.
func (b *Batch) Operations() []Operation {
	out := make([]Operation, len(b.ops))
	copy(out, b.ops)
	return out
}

// Len is the number of operations in the batch.
func (b *Batch) Len() int {
	return len(b.ops)
}
