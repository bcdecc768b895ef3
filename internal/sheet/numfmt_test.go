package sheet

import "testing"

func TestIsDateFormatID(t *testing.T) {
	dates := []int{14, 15, 22, 27, 36, 45, 46, 47, 50, 58}
	for _, id := range dates {
		if !IsDateFormatID(id) {
			t.Errorf("format %d should render as a date", id)
		}
	}
	others := []int{0, 1, 4, 9, 13, 23, 26, 37, 44, 48, 49, 59, 164}
	for _, id := range others {
		if IsDateFormatID(id) {
			t.Errorf("format %d should not render as a date", id)
		}
	}
}

func TestIsDateFormatCode(t *testing.T) {
	cases := []struct {
		code string
		want bool
	}{
		{"yyyy-mm-dd", true},
		{"d-mmm-yy", true},
		{"hh:mm:ss", true},
		{"[h]:mm", true},
		{"[$-409]m/d/yyyy", true},
		{"General", false},
		{"#,##0.00", false},
		{"0.00E+00", false},
		{"[$€-x-euro2] #,##0.00", false},
		{`"year total" 0.0`, false},
		{`\y0`, false},
		{"@", false},
	}
	for _, tc := range cases {
		if got := IsDateFormatCode(tc.code); got != tc.want {
			t.Errorf("IsDateFormatCode(%q) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestCheckIndex(t *testing.T) {
	if err := CheckIndex(1, 3); err != nil {
		t.Fatalf("index 1 of 3: %v", err)
	}
	if err := CheckIndex(3, 3); err != nil {
		t.Fatalf("index 3 of 3: %v", err)
	}
	err := CheckIndex(4, 3)
	if err == nil {
		t.Fatal("index 4 of 3 should fail")
	}
	if got, want := err.Error(), "sheet index 4 out of range (1..3)"; got != want {
		t.Errorf("error = %q, want %q", got, want)
	}
	if CheckIndex(0, 3) == nil {
		t.Error("index 0 should fail")
	}
	if CheckIndex(1, 0) == nil {
		t.Error("empty workbook should fail")
	}
}
