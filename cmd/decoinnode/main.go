// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"decoin/pkg/config"
	applog "decoin/pkg/log"
	"decoin/pkg/node"
)

func main() {
	defer handlePanic()

	configPath := flag.String("config", "", "path to a node TOML config file")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatal(err)
		}
		cfg = loaded
	}

	logFile := ""
	if cfg.DBPath != "" {
		logFile = cfg.DBPath + "/node.log"
	}
	applog.Setup(applog.Options{FilePath: logFile})

	n, err := node.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	n.DialPeers()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	n.Start(ctx)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	go func() {
		if err := http.ListenAndServe(addr, n.Server().Handler()); err != nil {
			log.Fatal(err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	n.Stop()
}

func handlePanic() {
	if r := recover(); r != nil {
		log.WithField("panic", r).Error("decoinnode: fatal panic")
	}
}
