package numbering

import (
	"fmt"
	"strconv"
	"strings"
)

// Document numbers are a fixed prefix followed by a zero-padded decimal
// suffix, e.g. "PO-0005". Increment keeps the prefix and pad width of the
// series, so ranges stay lexically and numerically ordered.

type numberParts struct {
	prefix string
	value  int64
	width  int
}

func splitNumber(no string) (numberParts, error) {
	if no == "" {
		return numberParts{}, fmt.Errorf("numbering: empty number")
	}
	i := len(no)
	for i > 0 && no[i-1] >= '0' && no[i-1] <= '9' {
		i--
	}
	digits := no[i:]
	if digits == "" {
		return numberParts{}, fmt.Errorf("numbering: number %q has no numeric suffix", no)
	}
	value, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return numberParts{}, fmt.Errorf("numbering: number %q: %w", no, err)
	}
	return numberParts{prefix: no[:i], value: value, width: len(digits)}, nil
}

func (p numberParts) format() string {
	digits := strconv.FormatInt(p.value, 10)
	if len(digits) < p.width {
		digits = strings.Repeat("0", p.width-len(digits)) + digits
	}
	return p.prefix + digits
}

// incrementNumber returns no advanced by step.
func incrementNumber(no string, step int) (string, error) {
	parts, err := splitNumber(no)
	if err != nil {
		return "", err
	}
	parts.value += int64(step)
	return parts.format(), nil
}

// compareNumbers orders two numbers of the same series. An error is returned
// when either number is malformed or the prefixes differ.
func compareNumbers(a, b string) (int, error) {
	pa, err := splitNumber(a)
	if err != nil {
		return 0, err
	}
	pb, err := splitNumber(b)
	if err != nil {
		return 0, err
	}
	if pa.prefix != pb.prefix {
		return 0, fmt.Errorf("numbering: %q and %q belong to different series", a, b)
	}
	switch {
	case pa.value < pb.value:
		return -1, nil
	case pa.value > pb.value:
		return 1, nil
	}
	return 0, nil
}

// Remaining reports how many numbers are left between current and end,
// inclusive of nothing already issued. Used by the series exhaustion scan.
func Remaining(current, end string) (int64, error) {
	pc, err := splitNumber(current)
	if err != nil {
		return 0, err
	}
	pe, err := splitNumber(end)
	if err != nil {
		return 0, err
	}
	if pc.prefix != pe.prefix {
		return 0, fmt.Errorf("numbering: %q and %q belong to different series", current, end)
	}
	left := pe.value - pc.value
	if left < 0 {
		return 0, nil
	}
	return left, nil
}

// numberInRange reports whether no falls inside [start, end] of a line.
func numberInRange(no, start, end string) (bool, error) {
	cmpStart, err := compareNumbers(no, start)
	if err != nil {
		return false, err
	}
	if cmpStart < 0 {
		return false, nil
	}
	if end == "" {
		return true, nil
	}
	cmpEnd, err := compareNumbers(no, end)
	if err != nil {
		return false, err
	}
	return cmpEnd <= 0, nil
}
