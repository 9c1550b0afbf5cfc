package deck

import (
	"errors"
	"fmt"
	"sort"
)

// Sentinel errors returned by design operations.
var (
	// ErrInvalidOrder is returned when the requested order is below 2 or
	// not prime.
	ErrInvalidOrder = errors.New("design order must be a prime >= 2")
	// ErrCardOutOfRange is returned for a card index outside [0, CardCount).
	ErrCardOutOfRange = errors.New("card index out of range")
	// ErrSameCard is returned when a common symbol is requested for a card
	// paired with itself.
	ErrSameCard = errors.New("cannot intersect a card with itself")
	// ErrIntegrity is returned when two cards do not share exactly one
	// symbol. It indicates a broken design and is not recoverable.
	ErrIntegrity = errors.New("design integrity violation")
)

// Design is the immutable card/symbol incidence structure of a projective
// plane of prime order n: n*n+n+1 cards over n*n+n+1 symbols, n+1 symbols
// per card, with any two distinct cards sharing exactly one symbol. Every
// round of every game references cards by their index in this structure.
type Design struct {
	order int
	cards [][]int
}

// Stats summarizes the dimensions of a design.
type Stats struct {
	Order          int `json:"order"`
	CardCount      int `json:"cardCount"`
	SymbolCount    int `json:"symbolCount"`
	SymbolsPerCard int `json:"symbolsPerCard"`
}

// NewDesign builds the canonical projective plane of the given prime order.
func NewDesign(order int) (*Design, error) {
	if order < 2 || !isPrime(order) {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidOrder, order)
	}

	n := order
	total := n*n + n + 1
	cards := make([][]int, 0, total)

	// Symbol id layout: affine point (x,y) -> x*n+y, slope-at-infinity m
	// -> n*n+m, vertical-infinity -> n*n+n.
	slopeInf := func(m int) int { return n*n + m }
	verticalInf := n*n + n

	// n*n affine lines: y = m*x + b, closed by the slope's infinity point.
	for m := 0; m < n; m++ {
		for b := 0; b < n; b++ {
			card := make([]int, 0, n+1)
			for x := 0; x < n; x++ {
				y := (m*x + b) % n
				card = append(card, x*n+y)
			}
			card = append(card, slopeInf(m))
			sort.Ints(card)
			cards = append(cards, card)
		}
	}

	// n vertical lines x = a, closed by the vertical infinity point.
	for a := 0; a < n; a++ {
		card := make([]int, 0, n+1)
		for y := 0; y < n; y++ {
			card = append(card, a*n+y)
		}
		card = append(card, verticalInf)
		sort.Ints(card)
		cards = append(cards, card)
	}

	// The line at infinity.
	card := make([]int, 0, n+1)
	for m := 0; m < n; m++ {
		card = append(card, slopeInf(m))
	}
	card = append(card, verticalInf)
	sort.Ints(card)
	cards = append(cards, card)

	return &Design{order: n, cards: cards}, nil
}

// Order returns the prime order the design was built with.
func (d *Design) Order() int {
	return d.order
}

// CardCount returns the number of cards (equal to the number of symbols).
func (d *Design) CardCount() int {
	return len(d.cards)
}

// SymbolCount returns the number of distinct symbol ids.
func (d *Design) SymbolCount() int {
	return len(d.cards)
}

// SymbolsPerCard returns the number of symbols on every card.
func (d *Design) SymbolsPerCard() int {
	return d.order + 1
}

// Card returns a copy of the symbol ids on the card at the given index.
func (d *Design) Card(i int) ([]int, error) {
	if i < 0 || i >= len(d.cards) {
		return nil, fmt.Errorf("%w: %d not in [0,%d)", ErrCardOutOfRange, i, len(d.cards))
	}
	out := make([]int, len(d.cards[i]))
	copy(out, d.cards[i])
	return out, nil
}

// CardHasSymbol reports whether the card at index i carries the symbol.
func (d *Design) CardHasSymbol(i, symbol int) (bool, error) {
	if i < 0 || i >= len(d.cards) {
		return false, fmt.Errorf("%w: %d not in [0,%d)", ErrCardOutOfRange, i, len(d.cards))
	}
	for _, s := range d.cards[i] {
		if s == symbol {
			return true, nil
		}
	}
	return false, nil
}

// CommonSymbol returns the unique symbol shared by the two distinct cards at
// indexes i and j. Exactly one such symbol exists in a valid design.
func (d *Design) CommonSymbol(i, j int) (int, error) {
	if i < 0 || i >= len(d.cards) || j < 0 || j >= len(d.cards) {
		return 0, fmt.Errorf("%w: (%d,%d) not in [0,%d)", ErrCardOutOfRange, i, j, len(d.cards))
	}
	if i == j {
		return 0, fmt.Errorf("%w: index %d", ErrSameCard, i)
	}

	common := -1
	for _, a := range d.cards[i] {
		for _, b := range d.cards[j] {
			if a == b {
				if common >= 0 {
					return 0, fmt.Errorf("%w: cards %d and %d share %d and %d",
						ErrIntegrity, i, j, common, a)
				}
				common = a
			}
		}
	}
	if common < 0 {
		return 0, fmt.Errorf("%w: cards %d and %d share no symbol", ErrIntegrity, i, j)
	}
	return common, nil
}

// Validate checks the unique-intersection property over every pair of cards.
// It is quadratic in the card count and intended for startup or tests.
func (d *Design) Validate() error {
	for i := 0; i < len(d.cards); i++ {
		for j := i + 1; j < len(d.cards); j++ {
			if _, err := d.CommonSymbol(i, j); err != nil {
				return err
			}
		}
	}
	return nil
}

// Stats returns the dimensions of the design.
func (d *Design) Stats() Stats {
	return Stats{
		Order:          d.order,
		CardCount:      len(d.cards),
		SymbolCount:    len(d.cards),
		SymbolsPerCard: d.order + 1,
	}
}

// isPrime uses trial division; design orders are small.
func isPrime(n int) bool {
	if n < 2 {
		return false
	}
	for f := 2; f*f <= n; f++ {
		if n%f == 0 {
			return false
		}
	}
	return true
}
