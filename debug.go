package ffrdp

import (
	"log/slog"

	"github.com/asdlei99/ffrdp/internal"
)

type logger struct {
	log *slog.Logger
}

func (l logger) logenabled(lvl slog.Level) bool {
	return internal.LogEnabled(l.log, lvl)
}

func (l logger) logattrs(lvl slog.Level, msg string, attrs ...slog.Attr) {
	internal.LogAttrs(l.log, lvl, msg, attrs...)
}

func (l logger) debug(msg string, attrs ...slog.Attr) {
	l.logattrs(slog.LevelDebug, msg, attrs...)
}

func (l logger) trace(msg string, attrs ...slog.Attr) {
	l.logattrs(internal.LevelTrace, msg, attrs...)
}

func (l logger) logerr(msg string, attrs ...slog.Attr) {
	l.logattrs(slog.LevelError, msg, attrs...)
}

func (h *Handler) traceSnd(msg string) {
	h.trace(msg,
		slog.Uint64("snd.seq", uint64(h.sendSeq)),
		slog.Uint64("snd.wait", uint64(h.sendList.len)),
		slog.Uint64("rwin", uint64(h.recvWin)),
		slog.Uint64("rto", uint64(h.rtt.rto)),
	)
}

func (h *Handler) traceRcv(msg string) {
	h.trace(msg,
		slog.Uint64("rcv.seq", uint64(h.recvSeq)),
		slog.Int("rcv.held", h.recvList.len),
		slog.Int("rcv.buffered", h.bufRx.Buffered()),
	)
}

func (h *Handler) traceFrame(msg string, frm Frame) {
	if h.logenabled(internal.LevelTrace) {
		h.trace(msg, slog.String("frame", frm.String()))
	}
}
