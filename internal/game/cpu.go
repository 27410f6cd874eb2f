package game

import (
	"math/rand"
)

// Policy supplies moves for automated seats. Decisions are deliberately
// simple; the requirement is that every variant stays able to reach its
// terminal condition with automated seats present.
type Policy struct {
	rng *rand.Rand
}

// NewPolicy creates a CPU stand-in policy.
func NewPolicy(rng *rand.Rand) *Policy {
	return &Policy{rng: rng}
}

// Pending returns one automated move the current state is waiting for, if
// any. The dispatcher applies it and calls Pending again until nothing is
// owed.
func (p *Policy) Pending(e Engine) (string, Action, bool) {
	if e.Finished() {
		return "", nil, false
	}

	switch g := e.(type) {
	case *daifugo:
		cur := g.order.Current()
		if !isAutomated(g.seats, cur) {
			return "", nil, false
		}
		if c, ok := lowestBeating(g.hands[cur], g.field); ok {
			return cur, PlayCard{Card: c}, true
		}
		return cur, PassTurn{}, true

	case *babanuki:
		cur := g.order.Current()
		if !isAutomated(g.seats, cur) {
			return "", nil, false
		}
		// Draw from the next seat around the circle still holding cards.
		ids := g.order.IDs()
		start := 0
		for i, id := range ids {
			if id == cur {
				start = i
				break
			}
		}
		for i := 1; i <= len(ids); i++ {
			id := ids[(start+i)%len(ids)]
			if id != cur && len(g.hands[id]) > 0 {
				return cur, DrawCard{TargetID: id}, true
			}
		}
		return "", nil, false

	case *shiritori:
		cur := g.order.Current()
		if !isAutomated(g.seats, cur) {
			return "", nil, false
		}
		return cur, SubmitWord{Word: p.chainWord(g)}, true

	case *janken:
		for _, s := range g.seats {
			if !s.Automated {
				continue
			}
			if _, done := g.choices[s.ID]; !done {
				hands := []Choice{ChoiceRock, ChoiceScissors, ChoicePaper}
				return s.ID, SubmitChoice{Choice: string(hands[p.rng.Intn(len(hands))])}, true
			}
		}
		return "", nil, false

	default:
		// Quiz and amidakuji rounds never wait on automated seats.
		return "", nil, false
	}
}

func isAutomated(seats []Seat, id string) bool {
	for _, s := range seats {
		if s.ID == id {
			return s.Automated
		}
	}
	return false
}

// lowestBeating picks the weakest card that still beats the field, keeping
// strong cards for later tricks.
func lowestBeating(hand []Card, field *Card) (Card, bool) {
	var best Card
	found := false
	for _, c := range hand {
		if field != nil && c.Value() <= field.Value() {
			continue
		}
		if !found || c.Value() < best.Value() {
			best = c
			found = true
		}
	}
	return best, found
}

// chainWord answers from the built-in word list; when nothing fits it plays a
// losing word ending in ん so the game terminates instead of stalling.
func (p *Policy) chainWord(g *shiritori) string {
	sound := g.required
	if sound == 0 {
		sound = 'し'
	}

	candidates := cpuWords[sound]
	for _, w := range candidates {
		if !g.usedSet[w] {
			return w
		}
	}

	losing := string(sound) + "ん"
	for g.usedSet[losing] {
		losing += "ん"
	}
	return losing
}

// cpuWords is a minimal hiragana dictionary keyed by leading sound. No entry
// ends in ん.
var cpuWords = map[rune][]string{
	'あ': {"あめ", "あさひ", "あくび"},
	'い': {"いす", "いちご", "いるか"},
	'う': {"うみ", "うちわ", "うさぎ"},
	'え': {"えき", "えのぐ", "えだまめ"},
	'か': {"かさ", "かもめ", "かがみ"},
	'き': {"きつね", "きもの", "きって"},
	'く': {"くつした", "くじら", "くるま"},
	'ご': {"ごま", "ごりら", "ごましお"},
	'さ': {"さくら", "さかな", "さいふ"},
	'し': {"しりとり", "しまうま", "しいたけ"},
	'す': {"すいか", "すずめ", "すみれ"},
	'た': {"たいこ", "たぬき", "たまご"},
	'つ': {"つくえ", "つばめ", "つり"},
	'と': {"とけい", "とまと", "とら"},
	'な': {"なす", "なわとび", "なつ"},
	'ね': {"ねこ", "ねぎ", "ねつ"},
	'は': {"はさみ", "はと", "はがき"},
	'ふ': {"ふで", "ふくろう", "ふろしき"},
	'ま': {"まくら", "まつり", "まど"},
	'み': {"みかづき", "みどり", "みそしる"},
	'め': {"めがね", "めだか", "めいろ"},
	'も': {"もみじ", "もち", "もぐら"},
	'や': {"やま", "やかた", "やさい"},
	'ら': {"らくだ", "らっぱ", "らくご"},
	'り': {"りす", "りょこう", "りったい"},
	'る': {"るびー", "るーれっと", "るつぼ"},
	'れ': {"れたす", "れきし", "れいぞうこ"},
	'ろ': {"ろうそく", "ろば", "ろぼっと"},
	'わ': {"わに", "わたあめ", "わかめ"},
}
