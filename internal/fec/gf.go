package fec

// field is GF(2^8) built from a primitive polynomial, with α = x.
type field struct {
	exp [512]byte
	log [256]int
}

func newField(poly int) *field {
	f := &field{}
	x := 1
	for i := 0; i < 255; i++ {
		f.exp[i] = byte(x)
		f.log[x] = i
		x <<= 1
		if x&0x100 != 0 {
			x ^= poly
		}
	}
	for i := 255; i < len(f.exp); i++ {
		f.exp[i] = f.exp[i-255]
	}
	return f
}

func (f *field) mul(a, b byte) byte {
	if a == 0 || b == 0 {
		return 0
	}
	return f.exp[f.log[a]+f.log[b]]
}

func (f *field) div(a, b byte) byte {
	if a == 0 {
		return 0
	}
	if b == 0 {
		panic("fec: division by zero in GF(2^8)")
	}
	return f.exp[f.log[a]+255-f.log[b]]
}

// pow returns α^e for any integer e.
func (f *field) pow(e int) byte {
	e %= 255
	if e < 0 {
		e += 255
	}
	return f.exp[e]
}

// evalHigh evaluates a polynomial stored highest degree first.
func (f *field) evalHigh(p []byte, x byte) byte {
	var y byte
	for _, c := range p {
		y = f.mul(y, x) ^ c
	}
	return y
}

// evalLow evaluates a polynomial stored lowest degree first.
func (f *field) evalLow(p []byte, x byte) byte {
	var y byte
	for i := len(p) - 1; i >= 0; i-- {
		y = f.mul(y, x) ^ p[i]
	}
	return y
}
