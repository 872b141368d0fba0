package main

import (
	"os"

	"github.com/btcsuite/btclog/v2"

	"github.com/blockberries/stf/executive"
	"github.com/blockberries/stf/ledger"
	"github.com/blockberries/stf/runtime"
	"github.com/blockberries/stf/server"
	"github.com/blockberries/stf/system"
)

// log is the daemon's own logger.
var log = btclog.Disabled

// setupLoggers builds a console backend and hands a tagged sub-logger
// to every subsystem.
func setupLoggers(level string) {
	lvl, _ := btclog.LevelFromString(level)
	root := btclog.NewSLogger(btclog.NewDefaultHandler(os.Stdout))

	sub := func(tag string) btclog.Logger {
		l := root.SubSystem(tag)
		l.SetLevel(lvl)
		return l
	}

	log = sub("STFD")
	executive.UseLogger(sub(executive.Subsystem))
	ledger.UseLogger(sub(ledger.Subsystem))
	runtime.UseLogger(sub(runtime.Subsystem))
	server.UseLogger(sub(server.Subsystem))
	system.UseLogger(sub(system.Subsystem))
}
