package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		tipo    string
		mensaje string
		want    MessageKind
	}{
		{
			name:    "single emoji with no declared tipo",
			tipo:    "",
			mensaje: "😀",
			want:    KindEmoji,
		},
		{
			name:    "short alphanumeric body is text",
			tipo:    TipoTexto,
			mensaje: "hello123",
			want:    KindText,
		},
		{
			name:    "nine non-alphanumeric runes is emoji",
			tipo:    TipoTexto,
			mensaje: ":-) :-) :",
			want:    KindEmoji,
		},
		{
			name:    "ten non-alphanumeric runes is text",
			tipo:    TipoTexto,
			mensaje: "!!!!!!!!!!",
			want:    KindText,
		},
		{
			name:    "declared imagen always wins",
			tipo:    TipoImagen,
			mensaje: "hi",
			want:    KindImage,
		},
		{
			name:    "declared imagen with long body",
			tipo:    TipoImagen,
			mensaje: "data:image/png;base64,iVBORw0KGgoAAAANSUhEUg",
			want:    KindImage,
		},
		{
			name:    "long text stays text",
			tipo:    TipoTexto,
			mensaje: "this is a normal chat message",
			want:    KindText,
		},
		{
			name:    "short punctuation counts as emoji",
			tipo:    "",
			mensaje: "?!",
			want:    KindEmoji,
		},
		{
			name:    "multi-rune emoji under the boundary",
			tipo:    "",
			mensaje: "😀😀😀",
			want:    KindEmoji,
		},
		{
			name:    "empty body counts as emoji",
			tipo:    TipoTexto,
			mensaje: "",
			want:    KindEmoji,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.tipo, tt.mensaje))
		})
	}
}

func TestMessageKindWireTipo(t *testing.T) {
	// Emoji is a display hint only; it travels as texto.
	assert.Equal(t, TipoTexto, KindText.WireTipo())
	assert.Equal(t, TipoTexto, KindEmoji.WireTipo())
	assert.Equal(t, TipoImagen, KindImage.WireTipo())
}

func TestIsAlphanumeric(t *testing.T) {
	assert.True(t, isAlphanumeric("abc123"))
	assert.True(t, isAlphanumeric("ñandú"))
	assert.False(t, isAlphanumeric(""))
	assert.False(t, isAlphanumeric("hi there"))
	assert.False(t, isAlphanumeric("😀"))
}
