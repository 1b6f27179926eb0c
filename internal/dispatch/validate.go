package dispatch

import (
	"gonum.org/v1/gonum/floats/scalar"
)

// Tolerance bounds the accepted error of a pass.
type Tolerance struct {
	// Element is the relative error allowed per element.
	Element float64
	// Sum is the relative error allowed on the reduction.
	Sum float64
}

// ToleranceFor returns the tolerance matching the precision of T.
func ToleranceFor[T Element]() Tolerance {
	if ElementSize[T]() == 8 {
		return Tolerance{Element: 1e-12, Sum: 1e-8}
	}
	return Tolerance{Element: 1e-6, Sum: 1e-5}
}

// Validate checks c[i] == a[i] + b[i] for every element and compares the sum
// of c against expectedSum. It returns the sum and a *ValidationError on the
// first violation.
func Validate[T Element](a, b, c []T, expectedSum float64, tol Tolerance) (float64, error) {
	sum := 0.0
	for i := range c {
		got := float64(c[i])
		want := float64(a[i] + b[i])
		if !scalar.EqualWithinAbsOrRel(got, want, tol.Element, tol.Element) {
			return 0, &ValidationError{Index: i, Got: got, Want: want}
		}
		sum += got
	}

	if !scalar.EqualWithinAbsOrRel(sum, expectedSum, tol.Sum, tol.Sum) {
		return sum, &ValidationError{Index: -1, Sum: sum, ExpectedSum: expectedSum}
	}
	return sum, nil
}
