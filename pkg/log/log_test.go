package log_test

import (
	"errors"
	"testing"

	l "github.com/Hubmakerlabs/relaybridge/pkg/log"
)

var log = l.GetLogger()

func TestGetLogger(t *testing.T) {
	l.SetLogLevel(l.Trace)
	log.T.Ln("testing log level", l.LvlStr[l.Trace])
	log.D.Ln("testing log level", l.LvlStr[l.Debug])
	log.I.Ln("testing log level", l.LvlStr[l.Info])
	log.W.Ln("testing log level", l.LvlStr[l.Warn])
	log.E.Ln("testing log level", l.LvlStr[l.Error])
	if log.E.Chk(errors.New("dummy information check")) == false {
		t.Fatal("Chk should report true for a non-nil error")
	}
	if log.E.Chk(nil) == true {
		t.Fatal("Chk should report false for a nil error")
	}
	log.I.S("spew of a value", t)
}
