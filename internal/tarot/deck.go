// Package tarot holds the 78-card deck and server-side draws.
package tarot

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/DukeRupert/arcana/internal/domain"
)

const (
	ArcanaMajor = "major"
	ArcanaMinor = "minor"

	DefaultSpread = 3
	MaxSpread     = 10
)

var majors = []string{
	"The Fool", "The Magician", "The High Priestess", "The Empress",
	"The Emperor", "The Hierophant", "The Lovers", "The Chariot",
	"Strength", "The Hermit", "Wheel of Fortune", "Justice",
	"The Hanged Man", "Death", "Temperance", "The Devil",
	"The Tower", "The Star", "The Moon", "The Sun",
	"Judgement", "The World",
}

var suits = []string{"Wands", "Cups", "Swords", "Pentacles"}

var ranks = []string{
	"Ace", "Two", "Three", "Four", "Five", "Six", "Seven",
	"Eight", "Nine", "Ten", "Page", "Knight", "Queen", "King",
}

// Positions of the common spreads, keyed by size.
var positions = map[int][]string{
	1: {"Answer"},
	3: {"Past", "Present", "Future"},
	5: {"Situation", "Challenge", "Root", "Advice", "Outcome"},
}

// Deck returns the full deck in canonical order, all upright.
func Deck() []domain.Card {
	deck := make([]domain.Card, 0, len(majors)+len(suits)*len(ranks))
	for _, name := range majors {
		deck = append(deck, domain.Card{Name: name, Arcana: ArcanaMajor})
	}
	for _, suit := range suits {
		for _, rank := range ranks {
			deck = append(deck, domain.Card{
				Name:   fmt.Sprintf("%s of %s", rank, suit),
				Arcana: ArcanaMinor,
			})
		}
	}
	return deck
}

// Drawer draws distinct cards from a shuffled deck. It is safe for
// concurrent use.
type Drawer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewDrawer uses a randomly seeded source.
func NewDrawer() *Drawer {
	return &Drawer{rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

// NewSeededDrawer is deterministic for tests.
func NewSeededDrawer(seed uint64) *Drawer {
	return &Drawer{rng: rand.New(rand.NewPCG(seed, seed))}
}

// Draw returns n distinct cards, each upright or reversed with equal odds,
// labelled with spread positions when n matches a known spread.
func (d *Drawer) Draw(n int) ([]domain.Card, error) {
	if n < 1 || n > MaxSpread {
		return nil, fmt.Errorf("spread size must be between 1 and %d, got %d", MaxSpread, n)
	}
	deck := Deck()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.rng.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })

	cards := deck[:n]
	labels := positions[n]
	for i := range cards {
		cards[i].Reversed = d.rng.IntN(2) == 1
		if labels != nil {
			cards[i].Position = labels[i]
		}
	}
	return cards, nil
}
