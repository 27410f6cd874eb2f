package content

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmhk-chat/game-server-go/internal/game"
)

// ErrGenerationFailed is returned when the question source cannot produce a
// usable list. The caller must leave room state untouched.
var ErrGenerationFailed = errors.New("content generation failed")

// Provider produces a fixed-shape question list for a quiz theme. The
// AI-backed generator lives outside this core; StaticProvider is the built-in
// fallback implementation of the same boundary.
type Provider interface {
	Generate(ctx context.Context, theme string, count int) ([]game.Question, error)
}

// StaticProvider serves questions from built-in themed banks.
type StaticProvider struct {
	banks map[string][]game.Question
}

// NewStaticProvider creates a provider with the default question banks.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{banks: defaultBanks}
}

// Generate returns up to count questions for the theme, falling back to the
// general bank for unknown themes.
func (p *StaticProvider) Generate(_ context.Context, theme string, count int) ([]game.Question, error) {
	bank, ok := p.banks[theme]
	if !ok {
		bank = p.banks["general"]
	}
	if len(bank) == 0 {
		return nil, fmt.Errorf("%w: no questions for theme %q", ErrGenerationFailed, theme)
	}
	if count <= 0 || count > len(bank) {
		count = len(bank)
	}
	return append([]game.Question(nil), bank[:count]...), nil
}

var defaultBanks = map[string][]game.Question{
	"general": {
		{Prompt: "日本の首都はどこ？", Options: []string{"大阪", "東京", "京都", "名古屋"}, Answer: 1},
		{Prompt: "一年は何日？（平年）", Options: []string{"364日", "365日", "366日", "360日"}, Answer: 1},
		{Prompt: "信号機の「進め」は何色？", Options: []string{"赤", "黄", "青", "白"}, Answer: 2},
		{Prompt: "富士山の高さに最も近いのは？", Options: []string{"2,776m", "3,776m", "4,776m", "1,776m"}, Answer: 1},
		{Prompt: "トランプのジョーカーを除いた枚数は？", Options: []string{"50枚", "52枚", "54枚", "48枚"}, Answer: 1},
	},
	"science": {
		{Prompt: "水の化学式は？", Options: []string{"CO2", "H2O", "O2", "NaCl"}, Answer: 1},
		{Prompt: "光の速さに最も近いのは？", Options: []string{"秒速30万km", "秒速3万km", "秒速300km", "秒速3000km"}, Answer: 0},
		{Prompt: "太陽系で一番大きい惑星は？", Options: []string{"土星", "木星", "地球", "海王星"}, Answer: 1},
	},
}
