package query

import "strings"

// GLN is a 13 digit GS1 Global Location Number identifying a grid company
// or the transmission system operator.
type GLN string

const EnerginetGLN GLN = "5790000432752"

func (g GLN) IsEmpty() bool {
	return strings.TrimSpace(string(g)) == ""
}

// IsValid checks length, digits and the GS1 check digit.
func (g GLN) IsValid() bool {
	s := string(g)
	if len(s) != 13 {
		return false
	}
	sum := 0
	for i := 0; i < 12; i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return false
		}
		weight := 1
		if i%2 == 1 {
			weight = 3
		}
		sum += int(c-'0') * weight
	}
	last := s[12]
	if last < '0' || last > '9' {
		return false
	}
	return int(last-'0') == (10-sum%10)%10
}

func (g GLN) String() string {
	return string(g)
}
