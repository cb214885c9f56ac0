// Command eigrpd runs a single EIGRP instance bound to one YAML
// configuration file.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	flag "github.com/spf13/pflag"

	"github.com/diivious/eigrpd/internal/config"
	"github.com/diivious/eigrpd/internal/instance"
	"github.com/diivious/eigrpd/internal/metrics"
)

// Exit codes per §6: 0 clean shutdown, 1 fatal init failure, 2 config
// error.
const (
	exitOK          = 0
	exitFatalInit   = 1
	exitConfigError = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "/etc/eigrpd/eigrpd.yaml", "path to the YAML configuration file")
	flag.Parse()

	log.Println("Loading configuration from", *configPath)
	f, err := config.Load(*configPath)
	if err != nil {
		log.Println(err)
		return exitConfigError
	}

	reg := metrics.New(prometheus.DefaultRegisterer)

	sock, err := instance.NewRawSocket()
	if err != nil {
		log.Println(err)
		return exitFatalInit
	}

	built, err := config.Build(f, sock, nil, reg)
	if err != nil {
		sock.Close()
		log.Println(err)
		return exitConfigError
	}

	log.Printf("Configured EIGRP AS %d, %d interfaces", f.AS, len(built.Interfaces))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- built.Instance.ListenAndServe(ctx)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGTERM, syscall.SIGINT)

	select {
	case <-sig:
		log.Println("Received shutdown signal, sending graceful Hello")
		built.Instance.Shutdown()
		time.Sleep(2 * time.Second)
		cancel()
		<-done
		log.Println("Exiting eigrpd")
		return exitOK
	case err := <-done:
		if err != nil && err != context.Canceled {
			log.Println(err)
			return exitFatalInit
		}
		return exitOK
	}
}
