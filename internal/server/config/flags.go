package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/eardogger/internal/flagx"
	"github.com/dmitrijs2005/eardogger/internal/timex"
)

// ValueFlags lists the value-taking flags owned by this package; the admin
// CLI uses it to find its positional arguments.
var ValueFlags = []string{"-c", "-config", "-a", "-m", "-d", "-r", "-q", "-w", "-t", "-n", "-l", "-s", "-u", "-g"}

var boolFlags = []string{"-p", "-v"}

type durationValue struct{ d *time.Duration }

func (v durationValue) String() string {
	if v.d == nil {
		return ""
	}
	return v.d.String()
}

func (v durationValue) Set(s string) error {
	d, err := timex.ParseDuration(s)
	if err != nil {
		return err
	}
	*v.d = d
	return nil
}

// parseFlags populates server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   listen address (e.g., ":8000")
//	-m string   serving mode, http or fcgi
//	-d string   SQLite database file
//	-r int      reader pool size
//	-q int      writer queue depth
//	-w int      async worker budget
//	-t int      GOMAXPROCS override
//	-n int      max in-flight requests
//	-l dur      session lifetime ("2160h", "90d")
//	-s string   login guard HMAC secret key
//	-u string   public URL
//	-g string   log level
//	-p          production mode
//	-v          validate migrations instead of applying them
//
// The function filters os.Args down to the flags it recognizes first, so
// other flag sets can share the command line.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], ValueFlags[2:], boolFlags...)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.ListenAddr, "a", config.ListenAddr, "address and port to listen on")
	fs.StringVar(&config.Mode, "m", config.Mode, "serving mode: http or fcgi")
	fs.StringVar(&config.DatabaseFile, "d", config.DatabaseFile, "database file")
	fs.IntVar(&config.ReaderPoolSize, "r", config.ReaderPoolSize, "reader pool size")
	fs.IntVar(&config.WriterQueueDepth, "q", config.WriterQueueDepth, "writer queue depth")
	fs.IntVar(&config.WorkerBudget, "w", config.WorkerBudget, "async worker budget")
	fs.IntVar(&config.Threads, "t", config.Threads, "GOMAXPROCS override (0 = default)")
	fs.IntVar(&config.MaxInFlight, "n", config.MaxInFlight, "max in-flight requests (0 = unlimited)")
	fs.Var(durationValue{&config.SessionLifetime}, "l", "session lifetime")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.PublicURL, "u", config.PublicURL, "public URL")
	fs.StringVar(&config.LogLevel, "g", config.LogLevel, "log level")
	fs.BoolVar(&config.Production, "p", config.Production, "production mode")
	fs.BoolVar(&config.ValidateMigrations, "v", config.ValidateMigrations, "validate migrations only")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
