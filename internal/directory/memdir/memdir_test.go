package memdir_test

import (
	"context"
	"testing"

	"github.com/tekisho/mailtriage/internal/directory"
	"github.com/tekisho/mailtriage/internal/directory/memdir"
)

func testDir() *memdir.Dir {
	return memdir.New(
		directory.Department{ID: "sales", Name: "Sales", HeadEmail: "sales-head@corp.test"},
		directory.Department{ID: "sales-ops", Name: "sales", HeadEmail: "sales-ops-head@corp.test"},
		directory.Department{ID: "other", Name: "Other"},
	)
}

func TestFind_ExactBeforeCaseInsensitive(t *testing.T) {
	t.Parallel()

	d := testDir()
	ctx := context.Background()

	// exact match wins even when an earlier entry matches case-insensitively
	got, ok, err := d.Find(ctx, "sales")
	if err != nil || !ok {
		t.Fatalf("Find = %v, %v", ok, err)
	}
	if got.ID != "sales-ops" {
		t.Errorf("ID = %q, want exact-name match sales-ops", got.ID)
	}

	// case-insensitive fallback in insertion order
	got, ok, err = d.Find(ctx, "SALES")
	if err != nil || !ok {
		t.Fatalf("Find = %v, %v", ok, err)
	}
	if got.ID != "sales" {
		t.Errorf("ID = %q, want first insertion-order match", got.ID)
	}

	if _, ok, _ := d.Find(ctx, "Engineering"); ok {
		t.Error("unknown name should return ok=false")
	}
}

func TestGet(t *testing.T) {
	t.Parallel()

	d := testDir()
	ctx := context.Background()

	got, ok, err := d.Get(ctx, "other")
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if got.Name != "Other" {
		t.Errorf("Name = %q", got.Name)
	}

	if _, ok, _ := d.Get(ctx, "nope"); ok {
		t.Error("unknown id should return ok=false")
	}
}

func TestReturnsCopies(t *testing.T) {
	t.Parallel()

	d := testDir()
	ctx := context.Background()

	got, _, _ := d.Get(ctx, "sales")
	got.HeadEmail = "mutated@corp.test"

	again, _, _ := d.Get(ctx, "sales")
	if again.HeadEmail != "sales-head@corp.test" {
		t.Error("directory shares memory with caller")
	}
}
