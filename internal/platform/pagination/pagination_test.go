package pagination

import (
	"errors"
	"net/url"
	"testing"
)

func TestParse(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		params, err := Parse(nil, Options{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if params.PageSize != DefaultPageSize {
			t.Fatalf("expected default page size %d, got %d", DefaultPageSize, params.PageSize)
		}
	})

	t.Run("caps page size", func(t *testing.T) {
		params, err := Parse(url.Values{"pageSize": {"500"}}, Options{MaxPageSize: 20})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if params.PageSize != 20 {
			t.Fatalf("expected capped page size 20, got %d", params.PageSize)
		}
	})

	t.Run("rejects invalid values", func(t *testing.T) {
		for _, raw := range []string{"abc", "0", "-3"} {
			if _, err := Parse(url.Values{"pageSize": {raw}}, Options{}); !errors.Is(err, ErrInvalidPageSize) {
				t.Fatalf("pageSize=%q: expected ErrInvalidPageSize, got %v", raw, err)
			}
		}
		for _, raw := range []string{"%%%", "bm90LWpzb24", "e30"} {
			if _, err := Parse(url.Values{"pageToken": {raw}}, Options{}); !errors.Is(err, ErrInvalidPageToken) {
				t.Fatalf("pageToken=%q: expected ErrInvalidPageToken, got %v", raw, err)
			}
		}
	})

	t.Run("round trips token", func(t *testing.T) {
		token, err := EncodeToken(Cursor{StartAfter: "prod-7"})
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		params, err := Parse(url.Values{"pageToken": {token}}, Options{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if params.Cursor.StartAfter != "prod-7" || params.PageToken != token {
			t.Fatalf("unexpected params %+v", params)
		}
	})
}

func TestPageWalksSortedItems(t *testing.T) {
	items := []string{"d", "a", "c", "e", "b"}
	identity := func(s string) string { return s }

	var seen []string
	params := Params{PageSize: 2}
	for i := 0; i < 5; i++ {
		page, next, err := Page(items, identity, params)
		if err != nil {
			t.Fatalf("page: %v", err)
		}
		seen = append(seen, page...)
		if next == "" {
			break
		}
		cursor, err := DecodeToken(next)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		params.Cursor = cursor
	}

	want := []string{"a", "b", "c", "d", "e"}
	if len(seen) != len(want) {
		t.Fatalf("expected %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, seen)
		}
	}
	if items[0] != "d" {
		t.Fatal("input slice must not be reordered")
	}
}

func TestPageExactMultipleHasNoTrailingToken(t *testing.T) {
	page, next, err := Page([]string{"a", "b"}, func(s string) string { return s }, Params{PageSize: 2})
	if err != nil || len(page) != 2 || next != "" {
		t.Fatalf("expected full page without token, got %v %q %v", page, next, err)
	}
}

func TestPageRejectsEmptyBoundaryKey(t *testing.T) {
	page, next, err := Page([]string{"", "", "a"}, func(s string) string { return s }, Params{PageSize: 1})
	if err == nil {
		t.Fatalf("expected error for an empty cursor key, got %v %q", page, next)
	}
	if page != nil || next != "" {
		t.Fatalf("expected no page on error, got %v %q", page, next)
	}
}
