package scam

import (
	"reflect"
	"testing"
)

func TestSegmenterCompletedSentences(t *testing.T) {
	var seg SentenceSegmenter
	got := seg.Push("Hello there. How are you? Fine!")
	want := []string{"Hello there.", "How are you?", "Fine!"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Push = %v, want %v", got, want)
	}
	if seg.HasPending() {
		t.Error("no fragment should be pending")
	}
}

func TestSegmenterHoldsFragment(t *testing.T) {
	var seg SentenceSegmenter

	got := seg.Push("Hello there. How are")
	if !reflect.DeepEqual(got, []string{"Hello there."}) {
		t.Fatalf("first push = %v, want [Hello there.]", got)
	}
	if !seg.HasPending() {
		t.Fatal("trailing fragment should be pending")
	}

	got = seg.Push("you today? Good.")
	want := []string{"How are you today?", "Good."}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("second push = %v, want %v", got, want)
	}
	if seg.HasPending() {
		t.Error("no fragment should remain")
	}
}

func TestSegmenterCJKTerminals(t *testing.T) {
	var seg SentenceSegmenter
	got := seg.Push("你好。再见！")
	want := []string{"你好。", "再见！"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Push = %v, want %v", got, want)
	}
}

func TestSegmenterDrain(t *testing.T) {
	var seg SentenceSegmenter
	seg.Push("unterminated fragment")

	if got := seg.Drain(); got != "unterminated fragment" {
		t.Errorf("Drain = %q, want the held fragment", got)
	}
	if seg.HasPending() {
		t.Error("Drain should clear the pending fragment")
	}
	if got := seg.Drain(); got != "" {
		t.Errorf("second Drain = %q, want empty", got)
	}
}

func TestSegmenterEmptyPush(t *testing.T) {
	var seg SentenceSegmenter
	if got := seg.Push(""); len(got) != 0 {
		t.Errorf("Push(\"\") = %v, want none", got)
	}
	if seg.HasPending() {
		t.Error("empty push should leave nothing pending")
	}
}
