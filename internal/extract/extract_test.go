package extract

import (
	"testing"
)

func testPattern(t *testing.T) *Pattern {
	t.Helper()
	pat, err := NewPattern(DefaultTags)
	if err != nil {
		t.Fatalf("compile default pattern: %v", err)
	}
	return pat
}

func TestExtract_CommentForms(t *testing.T) {
	pat := testPattern(t)
	cases := []string{
		"// TODO: x",
		"# TODO: x",
		"/* TODO: x */",
		"<!-- TODO: x -->",
		" * TODO: x",
	}
	for _, line := range cases {
		items := Extract(line, "f.go", pat)
		if len(items) != 1 {
			t.Errorf("%q: got %d items, want 1", line, len(items))
			continue
		}
		if items[0].Tag != "TODO" {
			t.Errorf("%q: tag = %q, want TODO", line, items[0].Tag)
		}
		if items[0].Message != "x" {
			t.Errorf("%q: message = %q, want %q", line, items[0].Message, "x")
		}
	}
}

func TestExtract_FalsePositivesRejected(t *testing.T) {
	pat := testPattern(t)
	cases := []string{
		"let s = TodoService::new();",
		"isTodoCompleted()",
		`let s = "TODO: not real";`,
		"let todo_count = 1;",
		"enum State { Todo }",
	}
	for _, line := range cases {
		if items := Extract(line, "f.rs", pat); len(items) != 0 {
			t.Errorf("%q: got %d items, want 0", line, len(items))
		}
	}
}

func TestExtract_LineNumbersOneBased(t *testing.T) {
	pat := testPattern(t)
	text := "first\n// TODO: a\nthird\n// FIXME: b\n"
	items := Extract(text, "f.go", pat)
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].Line != 2 || items[1].Line != 4 {
		t.Errorf("lines = %d,%d, want 2,4", items[0].Line, items[1].Line)
	}
}

func TestExtract_TagCaseNormalized(t *testing.T) {
	pat := testPattern(t)
	items := Extract("// fixme: lower case tag", "f.go", pat)
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if items[0].Tag != "FIXME" {
		t.Errorf("tag = %q, want FIXME", items[0].Tag)
	}
}

func TestExtract_AuthorAndPriority(t *testing.T) {
	pat := testPattern(t)

	items := Extract("// TODO(alice): check this", "f.go", pat)
	if len(items) != 1 || items[0].Author != "alice" {
		t.Fatalf("author not extracted: %+v", items)
	}
	if items[0].Priority != PriorityNone {
		t.Errorf("priority = %q, want none", items[0].Priority)
	}

	items = Extract("// FIXME!: urgentish", "f.go", pat)
	if len(items) != 1 || items[0].Priority != PriorityHigh {
		t.Fatalf("single bang should be high: %+v", items)
	}

	items = Extract("// BUG(bob)!!: broken", "f.go", pat)
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if items[0].Author != "bob" || items[0].Priority != PriorityUrgent {
		t.Errorf("author = %q priority = %q, want bob/urgent", items[0].Author, items[0].Priority)
	}
}

func TestExtract_IssueReferences(t *testing.T) {
	pat := testPattern(t)

	items := Extract("// TODO: fix before #123 ships", "f.go", pat)
	if len(items) != 1 || items[0].Issue != "#123" {
		t.Fatalf("numeric issue ref: %+v", items)
	}

	items = Extract("// TODO: tracked in JIRA-456 and #789", "f.go", pat)
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if items[0].Issue != "JIRA-456" {
		t.Errorf("issue = %q, want first match JIRA-456", items[0].Issue)
	}

	items = Extract("// TODO: no reference here", "f.go", pat)
	if items[0].Issue != "" {
		t.Errorf("issue = %q, want empty", items[0].Issue)
	}
}

func TestExtract_OneItemPerLine(t *testing.T) {
	pat := testPattern(t)
	items := Extract("// TODO: first FIXME: second", "f.go", pat)
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
}

func TestExtract_StringLiteralBeforeComment(t *testing.T) {
	pat := testPattern(t)
	// The literal occurrence is rejected; the comment one may be swallowed by
	// the greedy message of the first regex match. Either zero or one item is
	// fine, but never an item for the literal text.
	items := Extract(`s := "x" // TODO: real`, "f.go", pat)
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if items[0].Message != "real" {
		t.Errorf("message = %q, want %q", items[0].Message, "real")
	}
}

func TestMatchKey_ExcludesLine(t *testing.T) {
	a := Item{File: "f.go", Line: 3, Tag: "TODO", Message: "fix it"}
	b := Item{File: "f.go", Line: 42, Tag: "TODO", Message: "  Fix It "}
	if a.MatchKey() != b.MatchKey() {
		t.Errorf("match keys differ: %q vs %q", a.MatchKey(), b.MatchKey())
	}
	c := Item{File: "g.go", Line: 3, Tag: "TODO", Message: "fix it"}
	if a.MatchKey() == c.MatchKey() {
		t.Error("match key should include file")
	}
}

func TestNewPattern_EmptyVocabulary(t *testing.T) {
	if _, err := NewPattern(nil); err == nil {
		t.Fatal("expected error for empty vocabulary")
	}
}
