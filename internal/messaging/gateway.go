// Package messaging formats text for the host's server-command channel.
package messaging

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"qlbridge/internal/engine"
	"qlbridge/internal/log"
)

// substitute is what charmap writes for runes Latin-1 cannot represent
const substitute = "\x1a"

// Gateway sends text to clients. Sends are fire-and-forget and pass text
// through unchanged apart from quote escaping in the print family.
type Gateway struct {
	host   engine.Host
	latin1 bool
}

func New(host engine.Host) *Gateway {
	return &Gateway{host: host}
}

// Raw sends text to every client as a server command, unchanged apart from
// encoding and the trailing newline.
func (g *Gateway) Raw(text string) {
	g.send(engine.AllClients, text+"\n")
}

// RawTo is Raw for a single client, or every client when client is
// engine.AllClients
func (g *Gateway) RawTo(client int, text string) {
	g.send(client, text+"\n")
}

// Broadcast prints text in every client's message area
func (g *Gateway) Broadcast(text string) {
	g.send(engine.AllClients, fmt.Sprintf("print \"%s\n\"\n", Escape(text)))
}

// BroadcastCentered prints text in the centre of every client's screen
func (g *Gateway) BroadcastCentered(text string) {
	g.send(engine.AllClients, fmt.Sprintf("cp \"%s\"\n", Escape(text)))
}

// Tell prints text in one client's message area
func (g *Gateway) Tell(client int, text string) {
	g.send(client, fmt.Sprintf("print \"%s\n\"\n", Escape(text)))
}

// CenterTell prints text in the centre of one client's screen
func (g *Gateway) CenterTell(client int, text string) {
	g.send(client, fmt.Sprintf("cp \"%s\"\n", Escape(text)))
}

// SetLatin1 makes every send re-encode text as ISO-8859-1 for hosts whose
// clients expect it. Off by default.
func (g *Gateway) SetLatin1(enabled bool) {
	g.latin1 = enabled
}

func (g *Gateway) send(target int, text string) {
	if g.latin1 {
		text = Encode(text)
	}
	g.host.SendServerCommand(target, text)
}

// Escape makes text safe to embed in a quoted server command argument. The
// client tokenizer has no escape character, so double quotes become single
// quotes.
func Escape(text string) string {
	text = strings.ReplaceAll(text, "\x00", "")
	return strings.ReplaceAll(text, `"`, "'")
}

// Encode converts text to the Latin-1 byte string clients expect. Runes
// outside Latin-1 become '?'.
func Encode(text string) string {
	enc := encoding.ReplaceUnsupported(charmap.ISO8859_1.NewEncoder())
	out, err := enc.String(text)
	if err != nil {
		log.Warn("Failed to encode server command text", "error", err)
		return text
	}
	return strings.ReplaceAll(out, substitute, "?")
}
