// Package server assigns a content kind to inbound messages using the
// original protocol's heuristic.
package server

import (
	"unicode"
	"unicode/utf8"
)

// MessageKind is the classified content kind of an inbound message.
type MessageKind int

const (
	// KindText is the default kind for ordinary messages.
	KindText MessageKind = iota
	// KindEmoji marks short non-alphanumeric bodies. It is a display hint
	// only; emoji messages go out on the wire as texto.
	KindEmoji
	// KindImage marks messages the sender declared as imagen.
	KindImage
)

// emojiMaxRunes is the exclusive upper bound for the emoji heuristic: bodies
// of 10 or more runes are never classified as emoji.
const emojiMaxRunes = 10

// Classify determines the kind of a message from its declared tipo and body.
// A declared imagen always wins regardless of body. Otherwise a body shorter
// than ten runes that is not entirely alphanumeric counts as emoji. Any short
// punctuation therefore classifies as emoji too; that imprecision is part of
// the protocol.
func Classify(tipo, mensaje string) MessageKind {
	if tipo == TipoImagen {
		return KindImage
	}
	if utf8.RuneCountInString(mensaje) < emojiMaxRunes && !isAlphanumeric(mensaje) {
		return KindEmoji
	}
	return KindText
}

// WireTipo returns the tipo value delivered to clients for this kind.
func (k MessageKind) WireTipo() string {
	if k == KindImage {
		return TipoImagen
	}
	return TipoTexto
}

// isAlphanumeric reports whether s is non-empty and every rune is a letter
// or digit. The empty string is not alphanumeric.
func isAlphanumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
