package app

import (
	"os"

	"github.com/inconshreveable/log15"
	"github.com/mattn/go-isatty"
)

func newLogger(w *os.File, debug bool) log15.Logger {
	format := log15.LogfmtFormat()
	if isatty.IsTerminal(w.Fd()) {
		format = log15.TerminalFormat()
	}
	lvl := log15.LvlInfo
	if debug {
		lvl = log15.LvlDebug
	}

	l := log15.New()
	l.SetHandler(log15.LvlFilterHandler(lvl, log15.StreamHandler(w, format)))
	return l
}
