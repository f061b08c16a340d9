package game

import "fmt"

// Square is a board index 0-63 (a1=0, b1=1, ..., h8=63).
type Square int8

// NoSquare marks an absent square.
const NoSquare Square = -1

// ParseSquare converts "e4" style names into a Square.
func ParseSquare(name string) (Square, error) {
	if len(name) != 2 {
		return NoSquare, fmt.Errorf("invalid square %q", name)
	}
	file := int(name[0]) - 'a'
	rank := int(name[1]) - '1'
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return NoSquare, fmt.Errorf("invalid square %q", name)
	}
	return Square(rank*8 + file), nil
}

// String returns the algebraic name, or "-" for NoSquare.
func (s Square) String() string {
	if s < 0 || s > 63 {
		return "-"
	}
	return string([]byte{byte('a' + s%8), byte('1' + s/8)})
}

// Move packs a coordinate move into a uint32: bits 0-5 hold the from square,
// bits 6-11 the to square and bits 12-14 the promotion piece
// (0=none, 1=Q, 2=R, 3=B, 4=N).
type Move uint32

const (
	moveFromMask   = 0x3F
	moveToMask     = 0xFC0
	movePromoMask  = 0x7000
	moveToShift    = 6
	movePromoShift = 12
)

const (
	PromoNone   byte = 0
	PromoQueen  byte = 1
	PromoRook   byte = 2
	PromoBishop byte = 3
	PromoKnight byte = 4
)

var promoLetters = []byte{'q', 'r', 'b', 'n'}

// EncodeMove packs a from/to pair and optional promotion.
func EncodeMove(from, to Square, promo byte) Move {
	return Move(uint32(from) | uint32(to)<<moveToShift | uint32(promo)<<movePromoShift)
}

func (m Move) From() Square {
	return Square(m & moveFromMask)
}

func (m Move) To() Square {
	return Square((m & moveToMask) >> moveToShift)
}

func (m Move) Promotion() byte {
	return byte((m & movePromoMask) >> movePromoShift)
}

// PromotionLetter returns "q", "r", "b", "n" or "".
func (m Move) PromotionLetter() string {
	p := m.Promotion()
	if p == PromoNone || int(p) > len(promoLetters) {
		return ""
	}
	return string(promoLetters[p-1])
}

// String renders coordinate notation, e.g. "e2e4" or "a7a8q".
func (m Move) String() string {
	return m.From().String() + m.To().String() + m.PromotionLetter()
}

// ParsePromotion maps a promotion letter to its code. Empty input is PromoNone.
func ParsePromotion(s string) (byte, error) {
	if s == "" {
		return PromoNone, nil
	}
	if len(s) != 1 {
		return PromoNone, fmt.Errorf("invalid promotion piece %q", s)
	}
	switch s[0] {
	case 'q', 'Q':
		return PromoQueen, nil
	case 'r', 'R':
		return PromoRook, nil
	case 'b', 'B':
		return PromoBishop, nil
	case 'n', 'N':
		return PromoKnight, nil
	}
	return PromoNone, fmt.Errorf("invalid promotion piece %q", s)
}

// ParseMove parses coordinate notation ("e2e4", "e7e8q").
func ParseMove(s string) (Move, error) {
	if len(s) != 4 && len(s) != 5 {
		return 0, fmt.Errorf("invalid coordinate move %q", s)
	}
	from, err := ParseSquare(s[0:2])
	if err != nil {
		return 0, fmt.Errorf("invalid from square in %q", s)
	}
	to, err := ParseSquare(s[2:4])
	if err != nil {
		return 0, fmt.Errorf("invalid to square in %q", s)
	}
	if from == to {
		return 0, fmt.Errorf("null move %q", s)
	}
	promo := PromoNone
	if len(s) == 5 {
		if promo, err = ParsePromotion(s[4:]); err != nil {
			return 0, err
		}
	}
	return EncodeMove(from, to, promo), nil
}

// IsCoordinateMove reports whether s is a well-formed coordinate move.
func IsCoordinateMove(s string) bool {
	_, err := ParseMove(s)
	return err == nil
}
