package game

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	for _, s := range []string{"daifugo", "babanuki", "shiritori", "janken", "quiz", "amidakuji"} {
		k, err := ParseKind(s)
		require.NoError(t, err)
		assert.Equal(t, Kind(s), k)
	}

	_, err := ParseKind("poker")
	assert.Error(t, err)
}

func TestNewValidatesSeatCount(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	two := []Seat{{ID: "a"}, {ID: "b"}}

	tests := []struct {
		kind  Kind
		seats int
		ok    bool
	}{
		{KindDaifugo, 2, true},
		{KindDaifugo, 6, true},
		{KindDaifugo, 7, false},
		{KindDaifugo, 1, false},
		{KindJanken, 2, true},
		{KindJanken, 3, false},
		{KindQuiz, 1, true},
		{KindQuiz, 10, true},
		{KindAmidakuji, 10, true},
		{KindAmidakuji, 11, false},
	}
	for _, tt := range tests {
		seats := make([]Seat, tt.seats)
		for i := range seats {
			seats[i] = Seat{ID: string(rune('a' + i))}
		}
		eng, err := New(tt.kind, seats, seats[0].ID, rng)
		if tt.ok {
			require.NoError(t, err, "%s with %d seats", tt.kind, tt.seats)
			assert.Equal(t, tt.kind, eng.Kind())
		} else {
			assert.ErrorIs(t, err, ErrInvalidAction, "%s with %d seats", tt.kind, tt.seats)
		}
	}

	_, err := New(Kind("poker"), two, "a", rng)
	assert.Error(t, err)
}

func TestEnginesRejectForeignActions(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	seats := []Seat{{ID: "a"}, {ID: "b"}}

	for _, kind := range []Kind{KindDaifugo, KindBabanuki, KindShiritori, KindJanken, KindQuiz, KindAmidakuji} {
		eng, err := New(kind, seats, "a", rng)
		require.NoError(t, err)
		if eng.Finished() {
			continue
		}

		var foreign Action = TriggerLottery{}
		if kind == KindAmidakuji {
			foreign = PlayCard{Card: Card{SuitSpades, 3}}
		}
		_, err = eng.Apply("a", foreign)
		assert.Error(t, err, "kind %s", kind)
	}
}
