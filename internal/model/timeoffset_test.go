package model

import (
	"testing"
	"time"
)

func TestTimeOffsetDisplayed(t *testing.T) {
	var to TimeOffset
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	if !to.Displayed(now).Equal(now) {
		t.Fatalf("zero offset should not shift time, got %v", to.Displayed(now))
	}

	to.Offset = time.Hour
	want := now.Add(time.Hour)
	if !to.Displayed(now).Equal(want) {
		t.Fatalf("expected %v, got %v", want, to.Displayed(now))
	}
}

func TestTimeOffsetEditCommit(t *testing.T) {
	var to TimeOffset
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	to.BeginEdit(now)
	to.SetField("hour", 15)
	to.SetField("minute", 30)
	if !to.Commit(now) {
		t.Fatal("Commit should succeed after BeginEdit")
	}

	want := time.Date(2026, 1, 1, 15, 30, 0, 0, time.UTC)
	got := to.Displayed(now)
	if !got.Equal(want) {
		t.Fatalf("expected displayed time %v, got %v", want, got)
	}
}

func TestTimeOffsetDiscard(t *testing.T) {
	var to TimeOffset
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	to.BeginEdit(now)
	to.SetField("hour", 3)
	to.Discard()

	if to.Commit(now) {
		t.Fatal("Commit after Discard should report false")
	}
	if to.Offset != 0 {
		t.Fatalf("Discard should leave Offset unchanged, got %v", to.Offset)
	}
}

func TestTimeOffsetCommitWithoutEdit(t *testing.T) {
	var to TimeOffset
	if to.Commit(time.Now()) {
		t.Fatal("Commit without BeginEdit should report false")
	}
}

func TestTimeOffsetSetFieldWithoutEdit(t *testing.T) {
	var to TimeOffset
	to.SetField("hour", 5)
	if to.editing {
		t.Fatal("SetField without BeginEdit should be a no-op")
	}
}
