package distill

import (
	"strings"
	"testing"
)

func TestSummarize_Truncates(t *testing.T) {
	d := New()

	got, err := d.Summarize("one two three four five", 3)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != "one two three" {
		t.Errorf("got %q, want %q", got, "one two three")
	}
}

func TestSummarize_ShortInputUnchanged(t *testing.T) {
	d := New()

	// Within budget the text passes through byte for byte, original
	// whitespace included.
	input := "  one\ttwo\nthree  "
	got, err := d.Summarize(input, 5)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != input {
		t.Errorf("got %q, want input unchanged %q", got, input)
	}
}

func TestSummarize_ExactBudgetUnchanged(t *testing.T) {
	d := New()

	got, err := d.Summarize("one two three", 3)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != "one two three" {
		t.Errorf("got %q, want %q", got, "one two three")
	}
}

func TestSummarize_TruncationNormalizesWhitespace(t *testing.T) {
	d := New()

	got, err := d.Summarize("one\t\ttwo\n three  four", 3)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != "one two three" {
		t.Errorf("got %q, want %q", got, "one two three")
	}
}

func TestSummarize_EmptyText(t *testing.T) {
	d := New()

	got, err := d.Summarize("", 10)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestSummarize_WhitespaceOnlyText(t *testing.T) {
	d := New()

	input := " \t\n "
	got, err := d.Summarize(input, 10)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != input {
		t.Errorf("got %q, want %q", got, input)
	}
}

func TestSummarize_NonPositiveBudget(t *testing.T) {
	d := New()

	for _, budget := range []int{0, -1, -100} {
		if _, err := d.Summarize("one two three", budget); err == nil {
			t.Errorf("budget %d: expected error, got nil", budget)
		}
	}
}

func TestSummarize_BudgetBound(t *testing.T) {
	d := New()
	text := "a b c d e f g h i j k l m n o p"

	for budget := 1; budget <= 20; budget++ {
		got, err := d.Summarize(text, budget)
		if err != nil {
			t.Fatalf("budget %d: %v", budget, err)
		}
		if n := len(strings.Fields(got)); n > budget {
			t.Errorf("budget %d: summary has %d tokens", budget, n)
		}
	}
}
