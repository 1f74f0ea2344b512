// Package phrase holds everything NubaGuard can say without asking a
// language model: play phrases, per-person greetings, the cry and goodnight
// lines, keyword replies and the canned conversational fallbacks.
package phrase

import (
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/elaichix/NubaGuard-AI/pkg/types"
)

// Canned holds the fixed replies used when the conversational backend cannot
// answer.
type Canned struct {
	// Resting is said while the backend is cooling down.
	Resting types.Utterance `yaml:"resting"`

	// Empty is said when the backend answered with nothing.
	Empty types.Utterance `yaml:"empty"`

	// Failed is said when the backend call failed.
	Failed types.Utterance `yaml:"failed"`
}

// Book is the full phrase catalogue.
type Book struct {
	Play       []types.Utterance            `yaml:"play"`
	Identities map[string][]types.Utterance `yaml:"identities"`
	Cry        types.Utterance              `yaml:"cry"`
	Goodnight  types.Utterance              `yaml:"goodnight"`
	Keywords   map[string]types.Utterance   `yaml:"keywords"`
	Canned     Canned                       `yaml:"canned"`
}

func en(s string) types.Utterance { return types.Utterance{Text: s, Lang: "en"} }
func bn(s string) types.Utterance { return types.Utterance{Text: s, Lang: "bn"} }

// Default returns the built-in catalogue.
func Default() Book {
	return Book{
		Play: []types.Utterance{
			en("Hello Nuba. Are you awake now?"),
			en("Peek-a-boo! I see you!"),
			en("Are you happy, little one?"),
			en("Let's play!"),
			en("What are you looking at?"),
			en("I'm here with you, Nuba."),
			en("Such a smart girl!"),
			en("Coochie coo!"),
			en("Time to explore!"),
			en("Are you feeling playful?"),
			bn("কেমন আছো নূবা?"),
			bn("নূবা, কান্না করছো কেন?"),
			bn("তোমার বাবা আসছে এখন।"),
			bn("তোমার মাকে ডাকো। আম্মা।"),
			bn("মা বাবা ডাকো তো।"),
		},
		Identities: map[string][]types.Utterance{
			"nuba":   {en("Hello, Nuba!"), en("Is that Nuba?"), en("Hi, sweet Nuba!")},
			"anmona": {en("Hello, Anmona!"), en("Welcome, Anmona!"), en("Hi there, Anmona!")},
			"dada":   {en("Hello, Dada!"), en("Good to see you, Dada!"), en("Hi, Dada!")},
		},
		Cry:       en("Oh, Nuba is crying! Mama is coming!"),
		Goodnight: en("Good night, Nuba. Sweet dreams."),
		Keywords: map[string]types.Utterance{
			"play":  en("Let's have some fun, Nuba!"),
			"mama":  en("Mama loves you very much, Nuba!"),
			"dada":  en("Dada is thinking of you, Nuba!"),
			"yes":   en("That's great! Tell me more."),
			"no":    en("It's okay, Nuba. What do you like?"),
			"love":  en("I love you too, Nuba!"),
			"baby":  en("Yes, you are my sweet little baby!"),
			"smile": en("I hope you are smiling, Nuba!"),
			"মা":    bn("হ্যাঁ নূবা, মা তোমার পাশেই আছে।"),
		},
		Canned: Canned{
			Resting: en("I need a little rest, Nuba! Let's talk soon."),
			Empty:   en("Hmm, I'm not sure what to say, Nuba."),
			Failed:  en("Oops, something went wrong, Nuba."),
		},
	}
}

// Merge returns b with every non-empty field of over replacing b's. Map
// entries are merged key by key.
func (b Book) Merge(over Book) Book {
	out := b
	if len(over.Play) > 0 {
		out.Play = over.Play
	}
	if len(over.Identities) > 0 {
		out.Identities = maps.Clone(b.Identities)
		if out.Identities == nil {
			out.Identities = make(map[string][]types.Utterance)
		}
		for k, v := range over.Identities {
			out.Identities[strings.ToLower(k)] = v
		}
	}
	if !over.Cry.Empty() {
		out.Cry = over.Cry
	}
	if !over.Goodnight.Empty() {
		out.Goodnight = over.Goodnight
	}
	if len(over.Keywords) > 0 {
		out.Keywords = maps.Clone(b.Keywords)
		if out.Keywords == nil {
			out.Keywords = make(map[string]types.Utterance)
		}
		maps.Copy(out.Keywords, over.Keywords)
	}
	if !over.Canned.Resting.Empty() {
		out.Canned.Resting = over.Canned.Resting
	}
	if !over.Canned.Empty.Empty() {
		out.Canned.Empty = over.Canned.Empty
	}
	if !over.Canned.Failed.Empty() {
		out.Canned.Failed = over.Canned.Failed
	}
	return out
}

// Validate reports every missing or blank entry.
func (b Book) Validate() error {
	var errs []error
	if len(b.Play) == 0 {
		errs = append(errs, errors.New("phrase: play list is empty"))
	}
	for i, u := range b.Play {
		if u.Empty() {
			errs = append(errs, fmt.Errorf("phrase: play[%d] is blank", i))
		}
	}
	for id, list := range b.Identities {
		if len(list) == 0 {
			errs = append(errs, fmt.Errorf("phrase: identity %q has no greetings", id))
		}
	}
	if b.Cry.Empty() {
		errs = append(errs, errors.New("phrase: cry phrase is blank"))
	}
	if b.Goodnight.Empty() {
		errs = append(errs, errors.New("phrase: goodnight phrase is blank"))
	}
	for kw, u := range b.Keywords {
		if strings.TrimSpace(kw) == "" || u.Empty() {
			errs = append(errs, fmt.Errorf("phrase: keyword %q has a blank key or reply", kw))
		}
	}
	return errors.Join(errs...)
}
