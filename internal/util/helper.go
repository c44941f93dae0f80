package util

// CloneSlice clones slice with cloneSize.
// This function will use src length as the clone size if cloneSize is 0.
func CloneSlice[T any](src []T, cloneSize int) []T {
	if cloneSize == 0 {
		cloneSize = len(src)
	}
	clone := make([]T, cloneSize)
	copy(clone, src)

	return clone
}

// Reshape splits a flat row-major slice into rows of cols elements.
//
// The rows share the backing array of flat. flat must hold at least rows*cols elements.
func Reshape[T any](flat []T, rows, cols int) [][]T {
	matrix := make([][]T, rows)
	for r := range matrix {
		matrix[r] = flat[r*cols : (r+1)*cols : (r+1)*cols]
	}

	return matrix
}

// Flatten concatenates the rows of a matrix in row-major order.
func Flatten[T any](matrix [][]T) []T {
	n := 0
	for _, row := range matrix {
		n += len(row)
	}
	flat := make([]T, 0, n)
	for _, row := range matrix {
		flat = append(flat, row...)
	}

	return flat
}
