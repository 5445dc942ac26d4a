package dsp

// ZigZag returns the flat row-major indices of a rows×cols grid in zig-zag
// (diagonal) order, from the DC term to the highest frequency corner.
func ZigZag(rows, cols int) []int {
	if rows <= 0 || cols <= 0 {
		return nil
	}
	order := make([]int, 0, rows*cols)
	r, c := 0, 0
	up := true
	for len(order) < rows*cols {
		order = append(order, r*cols+c)
		if up {
			if r > 0 && c < cols-1 {
				r--
				c++
			} else {
				up = false
				if c < cols-1 {
					c++
				} else {
					r++
				}
			}
		} else {
			if c > 0 && r < rows-1 {
				c--
				r++
			} else {
				up = true
				if r < rows-1 {
					r++
				} else {
					c++
				}
			}
		}
	}
	return order
}
