package deck

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeave(t *testing.T) {
	palette := DefaultPalette()

	t.Run("empty and whitespace notes are dropped", func(t *testing.T) {
		s := Weave([]string{"", "  \x0b ", "《仲條》本編"}, palette)
		assert.Equal(t, 1, s.NoteCount)
		assert.Len(t, s.Slides, 1)
	})

	t.Run("runs carry speaker prefix and color", func(t *testing.T) {
		s := Weave([]string{"《仲條》こんにちは\n《三村》どうも"}, palette)
		require.Len(t, s.Slides, 1)
		runs := s.Slides[0].Runs
		require.Len(t, runs, 2)
		assert.Equal(t, "《仲條》こんにちは", runs[0].Text)
		assert.Equal(t, Color{0x00, 0xFD, 0xFF}, runs[0].Color)
		assert.Equal(t, "《三村》どうも", runs[1].Text)
		assert.Equal(t, []string{"仲條", "三村"}, s.Speakers)
	})

	t.Run("anonymous text has no prefix", func(t *testing.T) {
		s := Weave([]string{"ナレーション"}, palette)
		require.Len(t, s.Slides, 1)
		assert.Equal(t, "ナレーション", s.Slides[0].Runs[0].Text)
		assert.Equal(t, White, s.Slides[0].Runs[0].Color)
		assert.Empty(t, s.Speakers)
	})

	t.Run("long note splits with page numbers", func(t *testing.T) {
		s := Weave([]string{"《仲條》" + strings.Repeat("あ", 200)}, palette)
		require.Len(t, s.Slides, 2)
		assert.Equal(t, 1, s.Slides[0].Page)
		assert.Equal(t, 2, s.Slides[0].Pages)
		assert.Equal(t, 2, s.Slides[1].Page)
		assert.Equal(t, 2, s.Slides[1].Pages)
		// the continuation run keeps the speaker prefix
		assert.True(t, strings.HasPrefix(s.Slides[1].Runs[0].Text, "《仲條》"))
	})

	t.Run("short note has single page", func(t *testing.T) {
		s := Weave([]string{"《星野》短い"}, palette)
		require.Len(t, s.Slides, 1)
		assert.Equal(t, 1, s.Slides[0].Pages)
	})

	t.Run("auto colors are stable across notes in one call", func(t *testing.T) {
		s := Weave([]string{"《田中》一", "《鈴木》二", "《田中》三"}, palette)
		require.Len(t, s.Slides, 3)
		assert.Equal(t, s.Slides[0].Runs[0].Color, s.Slides[2].Runs[0].Color)
		assert.NotEqual(t, s.Slides[0].Runs[0].Color, s.Slides[1].Runs[0].Color)
	})

	t.Run("auto colors reset between calls", func(t *testing.T) {
		a := Weave([]string{"《田中》一"}, palette)
		b := Weave([]string{"《山田》一"}, palette)
		assert.Equal(t, a.Slides[0].Runs[0].Color, b.Slides[0].Runs[0].Color)
	})
}
