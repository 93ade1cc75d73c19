package util

import (
	"reflect"
	"testing"
)

func TestSplitList(t *testing.T) {
	got := SplitList(" a, b,,c ,")
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("unexpected %v", got)
	}
	if len(SplitList("")) != 0 {
		t.Fatalf("expected empty")
	}
}

func TestJoinFloats(t *testing.T) {
	if got := JoinFloats([]float64{1, 2.5, -0.125}, ";"); got != "1;2.5;-0.125" {
		t.Fatalf("unexpected %q", got)
	}
	if got := JoinFloats(nil, ";"); got != "" {
		t.Fatalf("unexpected %q", got)
	}
}
