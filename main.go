package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/jpillora/ssh-relay/proxy"
)

var version string = "0.0.0-src" //set via ldflags

var help = `
  Usage: ssh-relay [options] <mode>

  Version: ` + version + `

  Options:
    --host, listening interface (defaults to all)
    --port -p, listening port (defaults to 2222)
    --target, static outbound target ([user@]host[:port]) for relay mode
    --shell, the shell used to run commands in exec mode (defaults to $SHELL, then bash/powershell)
    --keyfile, a filepath to the host private key (for example, an 'id_rsa' file)
    --keyseed, a string to use to seed key generation
    --identity, a filepath to the private key used for outbound logins (defaults to the host key)
    --known-hosts, host key verification file for outbound connections (accept any host key when unset)
    --command-timeout, seconds to wait for the caller's command (defaults to 10)
    --keepalive, session keep alive interval seconds (defaults to 0, disabled)
    --noenv, ignore non-routing environment variables provided by the caller
    --sftp -s, enable the SFTP subsystem in exec mode (disabled by default)
    --stdio, serve a single session over stdin/stdout instead of listening
    --config, path to a YAML config file
    --version, display version
    --verbose -v, verbose logs
    --quiet -q, no logs

  <mode> must be set to one of:
    1. "exec" to run each caller's command as a local child process
    2. "relay" to run it on an outbound host, logging in with this
       proxy's own identity; the caller picks the host by setting the
       __HOST__ environment variable to user@host[:port] before exec
    3. "direct" to mirror the session onto this process's own terminal

  Notes:
    * callers are NOT authenticated: any username with the "none" method
      is accepted :WARNING: only deploy behind a trusted network boundary
    * if no keyfile and no keyseed are set, a random RSA2048 key is used
    * exactly one command is honored per connection; further exec
      requests on the same connection are ignored

  Read more: https://github.com/jpillora/ssh-relay

`

func main() {

	flag.Usage = func() {
		fmt.Print(help)
		os.Exit(1)
	}

	//init config from flags
	c := proxy.Config{}
	flag.StringVar(&c.Host, "host", "0.0.0.0", "")
	flag.StringVar(&c.Port, "p", "", "")
	flag.StringVar(&c.Port, "port", "", "")
	flag.StringVar(&c.Target, "target", "", "")
	flag.StringVar(&c.Shell, "shell", os.Getenv("SHELL"), "")
	flag.StringVar(&c.KeyFile, "keyfile", "", "")
	flag.StringVar(&c.KeySeed, "keyseed", "", "")
	flag.StringVar(&c.IdentityFile, "identity", "", "")
	flag.StringVar(&c.KnownHosts, "known-hosts", "", "")
	flag.IntVar(&c.CommandTimeout, "command-timeout", 0, "")
	flag.IntVar(&c.KeepAlive, "keepalive", 0, "")
	flag.BoolVar(&c.IgnoreEnv, "noenv", false, "")
	flag.BoolVar(&c.SFTP, "s", false, "")
	flag.BoolVar(&c.SFTP, "sftp", false, "")
	flag.BoolVar(&c.Stdio, "stdio", false, "")
	flag.StringVar(&c.ConfigFile, "config", "", "")

	//help/version
	h1f := flag.Bool("h", false, "")
	h2f := flag.Bool("help", false, "")
	v1f := flag.Bool("verbose", false, "")
	v2f := flag.Bool("v", false, "")
	q1f := flag.Bool("quiet", false, "")
	q2f := flag.Bool("q", false, "")
	vf := flag.Bool("version", false, "")
	flag.Parse()

	if *vf {
		fmt.Print(version)
		os.Exit(0)
	}
	if *h1f || *h2f {
		flag.Usage()
	}

	c.LogVerbose = *v1f || *v2f
	c.LogQuiet = *q1f || *q2f

	args := flag.Args()
	if len(args) != 1 {
		flag.Usage()
	}
	c.Mode = args[0]

	if c.ConfigFile != "" {
		if err := proxy.LoadFile(c.ConfigFile, &c); err != nil {
			log.Fatal(err)
		}
	}

	s, err := proxy.NewServer(c)
	if err != nil {
		log.Fatal(err)
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if c.Stdio {
		err = s.ServeStdio(ctx)
	} else {
		err = s.StartContext(ctx)
	}
	if err != nil {
		log.Fatal(err)
	}
}
