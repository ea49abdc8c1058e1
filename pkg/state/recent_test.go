package state

import (
	"fmt"
	"testing"
	"time"
)

func TestRecent_Add(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		values []string
		want   []string
	}{
		{"single", []string{"a"}, []string{"a"}},
		{"most recent first", []string{"a", "b", "c"}, []string{"c", "b", "a"}},
		{"reuse moves to front", []string{"a", "b", "c", "a"}, []string{"a", "c", "b"}},
		{"reuse of front", []string{"a", "b", "b"}, []string{"b", "a"}},
		{"empty ignored", []string{"a", ""}, []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRecent()
			for _, v := range tt.values {
				r.Add("titles", v, now)
			}
			got := r.Get("titles")
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("Get() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecent_UseCount(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewRecent()
	r.Add("books", "b1", now)
	r.Add("books", "b1", now.Add(time.Minute))

	item := r.Lists["books"].Entries[0]
	if item.UseCount != 2 {
		t.Errorf("UseCount = %d, want 2", item.UseCount)
	}
	if !item.LastUsed.Equal(now.Add(time.Minute)) {
		t.Errorf("LastUsed = %v", item.LastUsed)
	}
}

func TestRecent_Trim(t *testing.T) {
	r := NewRecent()
	r.MaxPerList = 3
	for i := 0; i < 5; i++ {
		r.Add("titles", fmt.Sprintf("t%d", i), time.Now())
	}

	got := r.Get("titles")
	if fmt.Sprint(got) != "[t4 t3 t2]" {
		t.Errorf("Get() = %v, want [t4 t3 t2]", got)
	}
}
