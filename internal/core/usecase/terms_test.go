package usecase

import (
	"reflect"
	"testing"
)

func TestRegexTermExtractorFindsTechnicalTokensInOrder(t *testing.T) {
	got := NewRegexTermExtractor().Extract("Error E-104 on the XR-2040 board: check J3 pin 4 at 24V and 3.3 VDC, then E-104 again")
	want := []string{"E-104", "XR-2040", "J3", "pin 4", "24V", "3.3 VDC"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Extract() = %v, want %v", got, want)
	}
}

func TestRegexTermExtractorIgnoresPlainProse(t *testing.T) {
	e := NewRegexTermExtractor()
	if got := e.Extract("how do I clean the water filter"); len(got) != 0 {
		t.Fatalf("expected no tokens, got %v", got)
	}
	if e.Contains("how do I clean the water filter") {
		t.Fatalf("Contains() should be false for prose")
	}
	if !e.Contains("connector CN4 is loose") {
		t.Fatalf("Contains() should detect connector label")
	}
}
