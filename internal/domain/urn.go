package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/raminkhorsandi/framework/internal/shared"
)

// urnDigits maps URN characters to the digit strings of the DNB check digit algorithm.
var urnDigits = map[rune]string{
	'0': "1", '1': "2", '2': "3", '3': "4", '4': "5", '5': "6", '6': "7", '7': "8", '8': "9", '9': "41",
	'a': "18", 'b': "14", 'c': "19", 'd': "15", 'e': "16", 'f': "21", 'g': "22", 'h': "23", 'i': "24",
	'j': "25", 'k': "42", 'l': "26", 'm': "27", 'n': "13", 'o': "28", 'p': "29", 'q': "31", 'r': "12",
	's': "32", 't': "33", 'u': "11", 'v': "34", 'w': "35", 'x': "36", 'y': "37", 'z': "38",
	'-': "39", ':': "17", '_': "43", '/': "45", '.': "47", '+': "49",
}

// URN mints uniform resource names in the urn:nbn:de namespace.
type URN struct {
	SNID1 string
	SNID2 string
	NISS  string
}

// NewURN reads the namespace parts from configuration.
func NewURN(c shared.URNConfig) (*URN, error) {
	if c.SNID1 == "" || c.SNID2 == "" || c.NISS == "" {
		return nil, fmt.Errorf("%w: urn namespace needs snid1, snid2 and niss", shared.ErrInvalidConfig)
	}
	return &URN{SNID1: c.SNID1, SNID2: c.SNID2, NISS: c.NISS}, nil
}

// Base returns the URN of a document id without its check digit.
func (u *URN) Base(id int64) string {
	return fmt.Sprintf("urn:nbn:de:%s:%s-%s-%d", u.SNID1, u.SNID2, u.NISS, id)
}

// Generate returns the complete URN of a document id.
func (u *URN) Generate(id int64) (string, error) {
	base := u.Base(id)
	check, err := URNCheckDigit(base)
	if err != nil {
		return "", err
	}
	return base + strconv.Itoa(check), nil
}

// URNCheckDigit computes the check digit of a URN without its last digit.
func URNCheckDigit(urn string) (int, error) {
	var digits strings.Builder
	for _, r := range strings.ToLower(urn) {
		d, ok := urnDigits[r]
		if !ok {
			return 0, fmt.Errorf("%w: urn contains %q", shared.ErrInvalidInput, r)
		}
		digits.WriteString(d)
	}
	s := digits.String()
	if s == "" {
		return 0, fmt.Errorf("%w: empty urn", shared.ErrInvalidInput)
	}

	sum := 0
	for i, r := range s {
		sum += int(r-'0') * (i + 1)
	}
	last := int(s[len(s)-1] - '0')
	if last == 0 {
		return sum % 10, nil
	}
	return (sum / last) % 10, nil
}
