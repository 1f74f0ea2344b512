package phrase

import (
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/elaichix/NubaGuard-AI/pkg/types"
)

// Option configures a Picker.
type Option func(*Picker)

// WithRand makes phrase selection use r. Tests pass a seeded source.
func WithRand(r *rand.Rand) Option {
	return func(p *Picker) { p.rng = r }
}

// WithMatcher replaces the keyword matcher.
func WithMatcher(m *Matcher) Option {
	return func(p *Picker) { p.matcher = m }
}

// Picker chooses phrases from a Book. It is safe for concurrent use and its
// book can be swapped at runtime.
type Picker struct {
	mu      sync.Mutex
	book    Book
	rng     *rand.Rand
	matcher *Matcher
}

// NewPicker returns a Picker over book.
func NewPicker(book Book, opts ...Option) *Picker {
	p := &Picker{
		book:    book,
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		matcher: NewMatcher(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// SetBook replaces the catalogue.
func (p *Picker) SetBook(b Book) {
	p.mu.Lock()
	p.book = b
	p.mu.Unlock()
}

// Book returns the current catalogue.
func (p *Picker) Book() Book {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.book
}

// Play returns a random play phrase, or an empty utterance if there are
// none.
func (p *Picker) Play() types.Utterance {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pickLocked(p.book.Play)
}

// Greeting returns a random greeting for identity and whether the identity
// has any greetings.
func (p *Picker) Greeting(identity string) (types.Utterance, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	list := p.book.Identities[strings.ToLower(identity)]
	if len(list) == 0 {
		return types.Utterance{}, false
	}
	return p.pickLocked(list), true
}

// Cry returns the cry alert line.
func (p *Picker) Cry() types.Utterance {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.book.Cry
}

// Goodnight returns the goodnight line.
func (p *Picker) Goodnight() types.Utterance {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.book.Goodnight
}

// Canned returns the conversational fallbacks.
func (p *Picker) Canned() Canned {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.book.Canned
}

// Keyword returns the reply for the keyword heard in text, if any.
func (p *Picker) Keyword(text string) (types.Utterance, bool) {
	p.mu.Lock()
	kws := p.book.Keywords
	p.mu.Unlock()

	keys := make([]string, 0, len(kws))
	for k := range kws {
		keys = append(keys, k)
	}
	kw, ok := p.matcher.Find(text, keys)
	if !ok {
		return types.Utterance{}, false
	}
	return kws[kw], true
}

func (p *Picker) pickLocked(list []types.Utterance) types.Utterance {
	if len(list) == 0 {
		return types.Utterance{}
	}
	return list[p.rng.IntN(len(list))]
}
