package main

import (
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"
	"go.vocdoni.io/dvote/log"

	"github.com/shieldpool/shieldpool/api"
	"github.com/shieldpool/shieldpool/blocklist"
	"github.com/shieldpool/shieldpool/events"
	"github.com/shieldpool/shieldpool/governance"
	"github.com/shieldpool/shieldpool/merkletree"
	"github.com/shieldpool/shieldpool/nullifiers"
	"github.com/shieldpool/shieldpool/processor"
	"github.com/shieldpool/shieldpool/tokens"
	"github.com/shieldpool/shieldpool/verifier"
)

func main() {
	var (
		dataDir       = flag.String("dataDir", filepath.Join(os.TempDir(), "shieldpool"), "data directory")
		host          = flag.String("host", "0.0.0.0", "API listen host")
		port          = flag.Int("port", 8080, "API listen port")
		logLevel      = flag.String("logLevel", "info", "log level (debug, info, warn, error)")
		admin         = flag.String("admin", "", "governance admin address (hex)")
		feeCollector  = flag.String("feeCollector", "", "fee collection address (hex)")
		shieldFeeBP   = flag.Uint64("shieldFeeBP", 25, "shield fee in basis points")
		unshieldFeeBP = flag.Uint64("unshieldFeeBP", 25, "unshield fee in basis points")
	)
	flag.Parse()
	log.Init(*logLevel, "stdout", nil)

	if *admin == "" || *feeCollector == "" {
		log.Fatal("missing -admin or -feeCollector address")
	}

	database, err := metadb.New(db.TypePebble, filepath.Join(*dataDir, "shieldpool"))
	if err != nil {
		log.Fatalf("cannot open database: %v", err)
	}
	defer database.Close()

	auth := governance.StaticAuth{Admin: common.HexToAddress(*admin)}
	sink := events.NewMemorySink()

	tree, err := merkletree.New(merkletree.Config{Database: database})
	if err != nil {
		log.Fatalf("cannot open commitment tree: %v", err)
	}
	nulls := nullifiers.New(database)
	verif, err := verifier.New(database, auth, sink)
	if err != nil {
		log.Fatalf("cannot open verifier: %v", err)
	}
	blist := blocklist.New(database, auth)

	proc, err := processor.New(processor.Config{
		Database:      database,
		Tree:          tree,
		Nullifiers:    nulls,
		Verifier:      verif,
		Blocklist:     blist,
		Vault:         tokens.NewMemoryVault(),
		Auth:          auth,
		Sink:          sink,
		FeeCollector:  common.HexToAddress(*feeCollector),
		ShieldFeeBP:   *shieldFeeBP,
		UnshieldFeeBP: *unshieldFeeBP,
	})
	if err != nil {
		log.Fatalf("cannot create processor: %v", err)
	}

	if _, err := api.New(&api.APIConfig{
		Host:       *host,
		Port:       *port,
		Processor:  proc,
		Tree:       tree,
		Nullifiers: nulls,
		Verifier:   verif,
		Events:     sink,
	}); err != nil {
		log.Fatalf("cannot start API: %v", err)
	}
	log.Infow("shielded pool ready", "tree", tree.TreeNumber(),
		"nextLeafIndex", tree.NextLeafIndex())

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	<-c
	log.Info("shutting down")
}
