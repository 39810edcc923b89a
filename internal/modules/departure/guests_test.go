package departure

import "testing"

func intp(v int) *int { return &v }

func TestCountGuests(t *testing.T) {
	cases := []struct {
		name                     string
		adults, children, infant *int
		want                     int
	}{
		{"all nil", nil, nil, nil, 0},
		{"adults only", intp(2), nil, nil, 2},
		{"mixed", intp(2), intp(1), intp(1), 4},
		{"zeros", intp(0), intp(0), intp(0), 0},
		{"children and infants", nil, intp(3), intp(2), 5},
	}
	for _, tc := range cases {
		if got := CountGuests(tc.adults, tc.children, tc.infant); got != tc.want {
			t.Errorf("%s: CountGuests = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestCountGuestsMatchesSum(t *testing.T) {
	for a := 0; a <= 6; a++ {
		for c := 0; c <= 6; c++ {
			for i := 0; i <= 6; i++ {
				if got := CountGuests(intp(a), intp(c), intp(i)); got != a+c+i {
					t.Fatalf("CountGuests(%d,%d,%d) = %d", a, c, i, got)
				}
			}
		}
	}
}
