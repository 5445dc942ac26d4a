package watermark

// Vote combines equally long bitstreams position by position. A bit is 1
// when at least half of the streams read 1, so ties resolve to 1. Shorter
// streams count as 0 where they run out.
func Vote(streams [][]uint8) []uint8 {
	n := 0
	for _, s := range streams {
		n = max(n, len(s))
	}
	out := make([]uint8, n)
	if len(streams) == 0 {
		return out
	}
	for i := range out {
		ones := 0
		for _, s := range streams {
			if i < len(s) && s[i] != 0 {
				ones++
			}
		}
		if 2*ones >= len(streams) {
			out[i] = 1
		}
	}
	return out
}
