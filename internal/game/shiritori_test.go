package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testShiritori(ids ...string) *shiritori {
	seats := make([]Seat, len(ids))
	for i, id := range ids {
		seats[i] = Seat{ID: id, Name: id}
	}
	return newShiritori(seats)
}

func TestNormalizeWord(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"さくら", "さくら"},
		{"サクラ", "さくら"},
		{"  りんご ", "りんご"},
		{"ｻｸﾗ", "さくら"}, // halfwidth katakana folds via NFKC
		{"APPLE", "apple"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeWord(tt.in), "input %q", tt.in)
	}
}

func TestShiritoriChainRule(t *testing.T) {
	g := testShiritori("a", "b")

	delta, err := g.Apply("a", SubmitWord{Word: "さくら"})
	require.NoError(t, err)
	assert.Equal(t, "ら", delta.Data["required"])
	assert.Equal(t, "b", g.order.Current())

	// Wrong opening sound.
	_, err = g.Apply("b", SubmitWord{Word: "たぬき"})
	require.ErrorIs(t, err, ErrInvalidAction)
	assert.Equal(t, "b", g.order.Current(), "rejection must not advance the turn")

	_, err = g.Apply("b", SubmitWord{Word: "らっぱ"})
	assert.NoError(t, err)
}

func TestShiritoriDuplicateRejectedRegardlessOfSound(t *testing.T) {
	g := testShiritori("a", "b")

	_, err := g.Apply("a", SubmitWord{Word: "さくら"})
	require.NoError(t, err)
	_, err = g.Apply("b", SubmitWord{Word: "らくだ"})
	require.NoError(t, err)

	// さくら does not start with だ either; the duplicate check fires first.
	_, err = g.Apply("a", SubmitWord{Word: "さくら"})
	require.ErrorIs(t, err, ErrInvalidAction)
	assert.ErrorContains(t, err, "already used")

	// Katakana spelling of a used word is still a duplicate.
	_, err = g.Apply("a", SubmitWord{Word: "ダチョウ"})
	require.NoError(t, err)
	_, err = g.Apply("b", SubmitWord{Word: "うさぎ"})
	require.NoError(t, err)
	_, err = g.Apply("a", SubmitWord{Word: "ぎんこう"})
	require.NoError(t, err)
	_, err = g.Apply("b", SubmitWord{Word: "ウサギ"})
	assert.ErrorContains(t, err, "already used")
}

func TestShiritoriForbiddenEndingLoses(t *testing.T) {
	g := testShiritori("a", "b", "c")

	_, err := g.Apply("a", SubmitWord{Word: "みかん"})
	require.NoError(t, err)

	assert.True(t, g.Finished())
	require.Len(t, g.results(), 3)
	for _, res := range g.results() {
		assert.Equal(t, res.ParticipantID != "a", res.Winner)
	}

	_, err = g.Apply("b", SubmitWord{Word: "かもめ"})
	assert.ErrorIs(t, err, ErrRoomFinished)
}

func TestShiritoriTooShort(t *testing.T) {
	g := testShiritori("a", "b")
	_, err := g.Apply("a", SubmitWord{Word: "あ"})
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestTerminalSound(t *testing.T) {
	tests := []struct {
		word string
		want rune
	}{
		{"らっぱ", 'ぱ'},
		{"きしゃ", 'や'},   // small kana widens
		{"たくしー", 'し'},  // long vowel mark is skipped
		{"こんぴゅーたー", 'た'},
		{"さくら", 'ら'},
	}
	for _, tt := range tests {
		got := terminalSound([]rune(tt.word))
		assert.Equal(t, string(tt.want), string(got), "word %q", tt.word)
	}
}

func TestShiritoriSkipTurnAdvances(t *testing.T) {
	g := testShiritori("a", "b")

	delta, err := g.Apply("host", SkipTurn{})
	require.NoError(t, err)
	assert.Equal(t, "a", delta.Data["actor"])
	assert.Equal(t, "b", g.order.Current())
}
