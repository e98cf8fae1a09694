package tui

import (
	"slices"
	"strings"
	"testing"
)

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}

	tests := []struct {
		name     string
		page     int
		size     int
		want     []int
		wantInfo PageInfo
	}{
		{"first page", 1, 3, []int{1, 2, 3}, PageInfo{Page: 1, Pages: 3, Size: 3, Total: 7}},
		{"last partial page", 3, 3, []int{7}, PageInfo{Page: 3, Pages: 3, Size: 3, Total: 7}},
		{"page past the end is clamped", 9, 3, []int{7}, PageInfo{Page: 3, Pages: 3, Size: 3, Total: 7}},
		{"page zero is clamped", 0, 3, []int{1, 2, 3}, PageInfo{Page: 1, Pages: 3, Size: 3, Total: 7}},
		{"default size", 1, 0, items, PageInfo{Page: 1, Pages: 1, Size: DefaultPageSize, Total: 7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, info := Paginate(items, tt.page, tt.size)
			if !slices.Equal(got, tt.want) {
				t.Errorf("items = %v, want %v", got, tt.want)
			}
			if info != tt.wantInfo {
				t.Errorf("info = %+v, want %+v", info, tt.wantInfo)
			}
		})
	}
}

func TestPaginate_Empty(t *testing.T) {
	got, info := Paginate([]string(nil), 2, 5)
	if len(got) != 0 {
		t.Errorf("items = %v, want none", got)
	}
	if info.Page != 1 || info.Pages != 1 || info.Total != 0 {
		t.Errorf("info = %+v", info)
	}
}

func TestRenderTable(t *testing.T) {
	out := RenderTable(
		[]string{"ID", "Nombre"},
		[][]string{{"1", "Ana"}, {"2", "Luis"}},
		PageInfo{Page: 1, Pages: 2, Size: 2, Total: 3},
	)

	for _, want := range []string{"ID", "Nombre", "Ana", "Luis", "Page 1 of 2 (3 total)"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered table missing %q:\n%s", want, out)
		}
	}
}
