package syncuc

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
)

// ReadLoop drains length-prefixed ClipboardMessages from r and hands each
// to in.Handle until the stream closes or errors.
func ReadLoop(r io.Reader, in *Inbound, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	br := bufio.NewReaderSize(r, 4096)
	for {
		msg, err := ReadMessage(br)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debug("syncuc: business stream read ended", "err", err)
			}
			return
		}
		if err := in.Handle(msg); err != nil {
			log.Warn("syncuc: inbound handling failed", "err", err)
		}
	}
}
