package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/jpillora/opts"
	"github.com/jpillora/ssh-relay/proxy"
)

var version string = "0.0.0-src" //set via ldflags

func main() {
	c := proxy.Config{}
	opts.New(&c).Name("ssh-relay").Version(version).Parse()
	if c.ConfigFile != "" {
		if err := proxy.LoadFile(c.ConfigFile, &c); err != nil {
			log.Fatal(err)
		}
	}
	s, err := proxy.NewServer(c)
	if err != nil {
		log.Fatal(err)
	}
	// an interrupt stops the accept loop; in-flight sessions are not
	// waited for
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
