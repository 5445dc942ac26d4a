// Package fec provides the forward error correction layer of the payload
// frame. The frame codec only depends on the Code interface; ReedSolomon is
// the systematic RS(255,223) implementation used by default.
package fec

import (
	"errors"
	"fmt"
)

// ErrUncorrectable is returned when a codeword carries more errors than the
// code can repair.
var ErrUncorrectable = errors.New("codeword is uncorrectable")

// Code is a systematic block code over bytes.
type Code interface {
	// N is the codeword length and K the message length.
	N() int
	K() int
	// Encode pads msg with zeros to K bytes and returns the N-byte codeword,
	// message first and parity last.
	Encode(msg []byte) ([]byte, error)
	// Decode repairs codeword and returns the K message bytes together with
	// the number of corrected symbols.
	Decode(codeword []byte) ([]byte, int, error)
}

// Default parameters: x^8+x^7+x^2+x+1, first consecutive root α^120,
// 32 parity symbols.
const (
	DefaultPoly      = 0x187
	DefaultFirstRoot = 120
	DefaultParity    = 32
)

// ReedSolomon is a systematic Reed-Solomon code over GF(2^8) with
// codeword length 255. Codeword byte i is the coefficient of x^(254-i).
type ReedSolomon struct {
	gf        *field
	parity    int
	firstRoot int
	gen       []byte // monic generator, highest degree first
}

var _ Code = (*ReedSolomon)(nil)

// NewReedSolomon builds a code with the given primitive polynomial, first
// consecutive root exponent and parity symbol count.
func NewReedSolomon(poly, firstRoot, parity int) (*ReedSolomon, error) {
	if poly < 0x100 || poly > 0x1ff {
		return nil, fmt.Errorf("primitive polynomial 0x%x is not of degree 8", poly)
	}
	if parity <= 0 || parity >= 255 {
		return nil, fmt.Errorf("parity symbol count must be in [1,254], got %d", parity)
	}
	gf := newField(poly)
	// A primitive polynomial generates all 255 non-zero elements.
	seen := make(map[byte]bool, 255)
	for i := 0; i < 255; i++ {
		seen[gf.exp[i]] = true
	}
	if len(seen) != 255 {
		return nil, fmt.Errorf("polynomial 0x%x is not primitive", poly)
	}

	gen := []byte{1}
	for i := 0; i < parity; i++ {
		root := gf.pow(firstRoot + i)
		next := make([]byte, len(gen)+1)
		for j := range next {
			if j < len(gen) {
				next[j] = gen[j]
			}
			if j > 0 {
				next[j] ^= gf.mul(root, gen[j-1])
			}
		}
		gen = next
	}
	return &ReedSolomon{gf: gf, parity: parity, firstRoot: firstRoot, gen: gen}, nil
}

// NewDefault returns the RS(255,223) code used by the payload frame.
func NewDefault() (*ReedSolomon, error) {
	return NewReedSolomon(DefaultPoly, DefaultFirstRoot, DefaultParity)
}

func (rs *ReedSolomon) N() int { return 255 }
func (rs *ReedSolomon) K() int { return 255 - rs.parity }

// Encode implements Code.
func (rs *ReedSolomon) Encode(msg []byte) ([]byte, error) {
	k := rs.K()
	if len(msg) > k {
		return nil, fmt.Errorf("message of %d bytes exceeds %d", len(msg), k)
	}
	cw := make([]byte, 255)
	copy(cw, msg)

	par := make([]byte, rs.parity)
	for _, d := range cw[:k] {
		fb := d ^ par[0]
		copy(par, par[1:])
		par[len(par)-1] = 0
		if fb != 0 {
			for j := range par {
				par[j] ^= rs.gf.mul(fb, rs.gen[j+1])
			}
		}
	}
	copy(cw[k:], par)
	return cw, nil
}

// Syndromes returns S_j = c(α^(firstRoot+j)) for each parity root.
func (rs *ReedSolomon) Syndromes(cw []byte) []byte {
	s := make([]byte, rs.parity)
	for j := range s {
		s[j] = rs.gf.evalHigh(cw, rs.gf.pow(rs.firstRoot+j))
	}
	return s
}

// Decode implements Code. It corrects up to parity/2 symbol errors. The
// input slice is not modified.
func (rs *ReedSolomon) Decode(codeword []byte) ([]byte, int, error) {
	if len(codeword) != 255 {
		return nil, 0, fmt.Errorf("codeword has %d bytes, want 255", len(codeword))
	}
	cw := append([]byte(nil), codeword...)
	synd := rs.Syndromes(cw)
	if allZero(synd) {
		return cw[:rs.K()], 0, nil
	}

	lambda := rs.berlekampMassey(synd)
	nerr := len(lambda) - 1
	if nerr == 0 || nerr > rs.parity/2 {
		return nil, 0, ErrUncorrectable
	}

	// Chien search over every codeword position.
	var positions []int
	for i := 0; i < 255; i++ {
		xinv := rs.gf.pow(-(254 - i))
		if rs.gf.evalLow(lambda, xinv) == 0 {
			positions = append(positions, i)
		}
	}
	if len(positions) != nerr {
		return nil, 0, ErrUncorrectable
	}

	// Ω(x) = S(x)·Λ(x) mod x^parity, lowest degree first.
	omega := make([]byte, rs.parity)
	for i := 0; i < rs.parity; i++ {
		for j := 0; j <= i && j < len(lambda); j++ {
			omega[i] ^= rs.gf.mul(lambda[j], synd[i-j])
		}
	}
	// Formal derivative: only odd-degree terms survive in characteristic 2.
	deriv := make([]byte, len(lambda)-1)
	for i := 1; i < len(lambda); i += 2 {
		deriv[i-1] = lambda[i]
	}

	for _, i := range positions {
		p := 254 - i
		xinv := rs.gf.pow(-p)
		den := rs.gf.evalLow(deriv, xinv)
		if den == 0 {
			return nil, 0, ErrUncorrectable
		}
		mag := rs.gf.div(rs.gf.evalLow(omega, xinv), den)
		cw[i] ^= rs.gf.mul(rs.gf.pow(p*(1-rs.firstRoot)), mag)
	}

	if !allZero(rs.Syndromes(cw)) {
		return nil, 0, ErrUncorrectable
	}
	return cw[:rs.K()], nerr, nil
}

// berlekampMassey returns the error locator Λ, lowest degree first, trimmed
// to its degree.
func (rs *ReedSolomon) berlekampMassey(synd []byte) []byte {
	c := make([]byte, len(synd)+1)
	b := make([]byte, len(synd)+1)
	c[0], b[0] = 1, 1
	l, m := 0, 1
	bb := byte(1)

	for n := range synd {
		d := synd[n]
		for i := 1; i <= l; i++ {
			d ^= rs.gf.mul(c[i], synd[n-i])
		}
		if d == 0 {
			m++
			continue
		}
		coef := rs.gf.div(d, bb)
		if 2*l <= n {
			t := append([]byte(nil), c...)
			for i := 0; i+m < len(c); i++ {
				c[i+m] ^= rs.gf.mul(coef, b[i])
			}
			l = n + 1 - l
			b = t
			bb = d
			m = 1
		} else {
			for i := 0; i+m < len(c); i++ {
				c[i+m] ^= rs.gf.mul(coef, b[i])
			}
			m++
		}
	}
	return c[:l+1]
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
