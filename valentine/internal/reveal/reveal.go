// CLAUDE:SUMMARY Pure helpers behind the page extras: "No" button escalation, love timer, phrase cycle, photo layouts.
package reveal

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/hazyhaar/valentine/valentine/internal/photos"
)

// DefaultNoMessages is the escalation shown under the card as "No" is
// clicked. Index 0 is the initial subtitle.
var DefaultNoMessages = []string{
	"Choose wisely 😼",
	"Are you sure?",
	"Really?",
	"Pleeease?",
	"Think again 💜",
	"Last chance…",
	"Pretty please?",
	"Just click Yes already!",
	"Yes is this way 👉",
}

// DefaultPhrases are the rotating love translations.
var DefaultPhrases = []string{"I love you", "Kocham cię", "Te iubesc", "Volim te"}

// NoButton tracks refusals. The zero value is unusable; use NewNoButton.
type NoButton struct {
	messages  []string
	exhausted string
	max       int
	clicks    int
}

// NoButtonState is what the browser needs to restyle both buttons.
type NoButtonState struct {
	Clicks   int     `json:"clicks"`
	Message  string  `json:"message"`
	YesScale float64 `json:"yes_scale"`
	NoScale  float64 `json:"no_scale"`
	OffsetX  float64 `json:"offset_x"`
	OffsetY  float64 `json:"offset_y"`
	Hidden   bool    `json:"hidden"`
}

// NewNoButton returns a tracker that hides the button after maxClicks clicks.
func NewNoButton(messages []string, exhausted string, maxClicks int) *NoButton {
	if len(messages) == 0 {
		messages = DefaultNoMessages
	}
	if exhausted == "" {
		exhausted = "You left me no choice"
	}
	if maxClicks <= 0 {
		maxClicks = 8
	}
	return &NoButton{messages: messages, exhausted: exhausted, max: maxClicks}
}

// Click records one refusal and returns the new state.
func (b *NoButton) Click() NoButtonState {
	b.clicks++
	return b.State()
}

// State returns the current state without recording a click.
func (b *NoButton) State() NoButtonState {
	n := b.clicks
	st := NoButtonState{Clicks: n, Message: b.messages[min(n, len(b.messages)-1)], YesScale: 1, NoScale: 1}
	if n == 0 {
		return st
	}

	t := math.Min(float64(n)/float64(b.max), 1)
	st.YesScale = 1 + 0.45*t
	st.NoScale = 1 - 0.65*t

	const maxMove = 40.0
	rad := float64((n*73)%360) * math.Pi / 180
	st.OffsetX = math.Cos(rad) * maxMove * t
	st.OffsetY = math.Sin(rad) * maxMove * t

	if n >= b.max {
		st.Hidden = true
		st.Message = b.exhausted
	}
	return st
}

// Elapsed is the love timer reading.
type Elapsed struct {
	Before  bool `json:"before"`
	Days    int  `json:"days"`
	Hours   int  `json:"hours"`
	Minutes int  `json:"minutes"`
	Seconds int  `json:"seconds"`
}

// Since splits the whole seconds between start and now.
func Since(start, now time.Time) Elapsed {
	if now.Before(start) {
		return Elapsed{Before: true}
	}
	secs := int(now.Sub(start) / time.Second)
	return Elapsed{
		Days:    secs / 86400,
		Hours:   secs / 3600 % 24,
		Minutes: secs / 60 % 60,
		Seconds: secs % 60,
	}
}

func (e Elapsed) String() string {
	if e.Before {
		return "-"
	}
	return fmt.Sprintf("%d days %02d hours %02d minutes %02d seconds ago", e.Days, e.Hours, e.Minutes, e.Seconds)
}

// Phrase returns the phrase shown at the given tick of the cycle.
func Phrase(phrases []string, tick int) string {
	if len(phrases) == 0 {
		return ""
	}
	i := tick % len(phrases)
	if i < 0 {
		i += len(phrases)
	}
	return phrases[i]
}

// Placement is a photo pinned at a percentage position.
type Placement struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Photo string  `json:"photo"`
}

// heartOutline approximates a heart in a 100x100 box.
var heartOutline = [][2]float64{
	{50, 4}, {32, 12}, {68, 12},
	{22, 26}, {50, 22}, {78, 26},
	{14, 42}, {36, 38}, {64, 38}, {86, 42},
	{26, 56}, {50, 54}, {74, 56},
	{50, 76},
}

// HeartLayout fills the heart outline with kids photos, reusing photos when
// there are fewer than positions. An empty pool yields nil.
func HeartLayout(r *rand.Rand, kids photos.Pool) []Placement {
	if kids.Len() == 0 {
		return nil
	}
	shuffled := photos.Shuffle(r, kids.IDs())
	positions := photos.Shuffle(r, heartOutline)
	out := make([]Placement, len(positions))
	for i, p := range positions {
		out[i] = Placement{X: p[0], Y: p[1], Photo: shuffled[i%len(shuffled)]}
	}
	return out
}

// RewardPicks returns n photos for the reward boxes: distinct when the pool
// is large enough, otherwise the pool cycled and reshuffled.
func RewardPicks(r *rand.Rand, kids photos.Pool, n int) []string {
	if kids.Len() == 0 || n <= 0 {
		return nil
	}
	shuffled := photos.Shuffle(r, kids.IDs())
	if len(shuffled) >= n {
		return shuffled[:n]
	}
	out := make([]string, n)
	for i := range out {
		out[i] = shuffled[i%len(shuffled)]
	}
	return photos.Shuffle(r, out)
}

// CollageTrack returns the couples strip: a shuffled pass over the pool
// followed by the same pass again, so a CSS marquee can loop seamlessly.
func CollageTrack(r *rand.Rand, couples photos.Pool) []string {
	if couples.Len() == 0 {
		return nil
	}
	once := photos.Shuffle(r, couples.IDs())
	return append(once, once...)
}
