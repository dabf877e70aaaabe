package mentions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var roster = []Member{
	{ID: 1, Name: "José García"},
	{ID: 2, Name: "María López"},
	{ID: 3, Name: "Ramón José"},
	{ID: 4, Name: "Andrés Ruiz"},
	{ID: 5, Name: "Josefa Marín"},
	{ID: 6, Name: "Joselito Pérez"},
	{ID: 7, Name: "Pepe Josende"},
}

func TestFragment(t *testing.T) {
	frag, start, ok := Fragment("hola @jos", 9)
	require.True(t, ok)
	assert.Equal(t, "jos", frag)
	assert.Equal(t, 5, start)

	// @ at the start of the input
	frag, start, ok = Fragment("@ma", 3)
	require.True(t, ok)
	assert.Equal(t, "ma", frag)
	assert.Equal(t, 0, start)
}

func TestFragmentRejectsMidWordAt(t *testing.T) {
	_, _, ok := Fragment("correo@empresa", 14)
	assert.False(t, ok)

	_, _, ok = Fragment("sin arroba", 10)
	assert.False(t, ok)

	// a space after the @ ends the fragment
	_, _, ok = Fragment("@jose garcia ", 13)
	assert.False(t, ok)
}

func TestCandidatesDiacriticAndCaseInsensitive(t *testing.T) {
	got := Candidates(roster, "jose")
	require.NotEmpty(t, got)
	// prefix matches first, ordered by folded name
	assert.Equal(t, "José García", got[0].Name)
	assert.Equal(t, "Josefa Marín", got[1].Name)
	assert.Equal(t, "Joselito Pérez", got[2].Name)
	// then substring matches
	assert.Contains(t, got, Member{ID: 7, Name: "Pepe Josende"})

	// accented input matches too
	got = Candidates(roster, "JOSÉ")
	assert.Equal(t, "José García", got[0].Name)
}

func TestCandidatesCapped(t *testing.T) {
	got := Candidates(roster, "")
	assert.Len(t, got, 5)
}

func TestCandidatesNoMatch(t *testing.T) {
	assert.Empty(t, Candidates(roster, "zzz"))
}

func TestApplyRewritesFragmentAndCaret(t *testing.T) {
	text := "hola @jos y adiós"
	caret := 9 // right after "@jos"
	rewritten, newCaret := Apply(text, caret, Member{ID: 1, Name: "José García"})
	assert.Equal(t, "hola @José García  y adiós", rewritten)
	assert.Equal(t, len("hola @José García "), newCaret)
}

func TestApplyOutsideFragmentIsNoop(t *testing.T) {
	text := "sin mencion"
	rewritten, caret := Apply(text, 5, Member{ID: 1, Name: "José García"})
	assert.Equal(t, text, rewritten)
	assert.Equal(t, 5, caret)
}

func TestTokensHighlightAnything(t *testing.T) {
	tokens := Tokens("aviso @José y @nadie, revisad @turnos.")
	assert.Equal(t, []string{"José", "nadie", "turnos"}, tokens)
}
