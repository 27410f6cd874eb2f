package game

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/tmhk-chat/game-server-go/internal/turn"
)

// shiritori is the word-chain variant: each word must start with the previous
// word's terminal sound, duplicates are rejected, and a word ending in ん
// loses immediately.
type shiritori struct {
	seats    []Seat
	used     []string
	usedSet  map[string]bool
	required rune // 0 before the first word
	order    *turn.Order
	finished bool
	loser    string
}

// forbiddenEnding ends the game for the submitter.
const forbiddenEnding = 'ん'

func newShiritori(seats []Seat) *shiritori {
	ids := make([]string, len(seats))
	for i, s := range seats {
		ids[i] = s.ID
	}
	return &shiritori{
		seats:   append([]Seat(nil), seats...),
		usedSet: make(map[string]bool),
		order:   turn.New(ids),
	}
}

func (g *shiritori) Kind() Kind     { return KindShiritori }
func (g *shiritori) Finished() bool { return g.finished }

func (g *shiritori) Snapshot() map[string]any {
	data := map[string]any{
		"used":    append([]string(nil), g.used...),
		"current": g.order.Current(),
	}
	if g.required != 0 {
		data["required"] = string(g.required)
	}
	return data
}

func (g *shiritori) Apply(actorID string, act Action) (*Delta, error) {
	if g.finished {
		return nil, ErrRoomFinished
	}

	switch a := act.(type) {
	case SubmitWord:
		if actorID != g.order.Current() {
			return nil, ErrNotYourTurn
		}
		return g.submit(actorID, a.Word)
	case SkipTurn:
		current := g.order.Current()
		next := g.order.Advance()
		return &Delta{
			Event: "state_updated",
			Data: map[string]any{
				"actor":   current,
				"skipped": true,
				"current": next,
			},
		}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported shiritori action %T", ErrInvalidAction, act)
	}
}

func (g *shiritori) submit(actorID, word string) (*Delta, error) {
	w := NormalizeWord(word)
	runes := []rune(w)
	if len(runes) < 2 {
		return nil, fmt.Errorf("%w: word too short", ErrInvalidAction)
	}
	if g.usedSet[w] {
		return nil, fmt.Errorf("%w: word already used", ErrInvalidAction)
	}
	if g.required != 0 && runes[0] != g.required {
		return nil, fmt.Errorf("%w: word must start with %s", ErrInvalidAction, string(g.required))
	}

	g.used = append(g.used, w)
	g.usedSet[w] = true

	last := terminalSound(runes)
	if last == forbiddenEnding {
		g.finished = true
		g.loser = actorID
		return &Delta{
			Event: "game_over",
			Data: map[string]any{
				"loser": actorID,
				"word":  w,
				"used":  append([]string(nil), g.used...),
			},
			Terminal: true,
			Results:  g.results(),
		}, nil
	}

	g.required = last
	current := g.order.Advance()
	return &Delta{
		Event: "state_updated",
		Data: map[string]any{
			"actor":    actorID,
			"word":     w,
			"required": string(last),
			"current":  current,
		},
	}, nil
}

func (g *shiritori) results() []Result {
	results := make([]Result, 0, len(g.seats))
	for _, s := range g.seats {
		results = append(results, Result{
			ParticipantID: s.ID,
			Score:         len(g.used),
			Winner:        s.ID != g.loser,
		})
	}
	return results
}

// NormalizeWord canonicalizes a word for duplicate and sound checks: NFKC
// fold, lowercase, and katakana mapped to hiragana so サクラ and さくら are
// the same word.
func NormalizeWord(word string) string {
	w := norm.NFKC.String(strings.TrimSpace(word))
	w = strings.ToLower(w)

	var b strings.Builder
	for _, r := range w {
		if r >= 'ァ' && r <= 'ヶ' {
			r -= 0x60
		}
		b.WriteRune(r)
	}
	return b.String()
}

// smallKana maps small kana to their full-size continuation sound.
var smallKana = map[rune]rune{
	'ぁ': 'あ', 'ぃ': 'い', 'ぅ': 'う', 'ぇ': 'え', 'ぉ': 'お',
	'ゃ': 'や', 'ゅ': 'ゆ', 'ょ': 'よ', 'っ': 'つ', 'ゎ': 'わ',
}

// terminalSound is the continuation sound for the next word: the last rune,
// skipping the long-vowel mark and widening small kana.
func terminalSound(runes []rune) rune {
	for i := len(runes) - 1; i >= 0; i-- {
		r := runes[i]
		if r == 'ー' {
			continue
		}
		if full, ok := smallKana[r]; ok {
			return full
		}
		return r
	}
	return runes[len(runes)-1]
}
