// Copyright 2025 Arbor Chain Ltd
// SPDX-License-Identifier: LGPL-3.0-only

package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli"

	"github.com/arborchain/arbor/dot"
	"github.com/arborchain/arbor/dot/types"
	"github.com/arborchain/arbor/internal/log"
	"github.com/arborchain/arbor/lib/crypto/sr25519"
)

var logger = log.NewFromGlobal(log.AddContext("pkg", "cmd"))

var (
	basePathFlag = cli.StringFlag{
		Name:  "basepath",
		Usage: "data directory of the node",
		Value: "./arbor-data",
	}
	logLevelFlag = cli.StringFlag{
		Name:  "log",
		Usage: "log level: trace|debug|info|warn|error|critical",
		Value: "info",
	}
	slotDurationFlag = cli.Uint64Flag{
		Name:  "slot-duration",
		Usage: "slot duration in milliseconds",
		Value: 6000,
	}
	epochLengthFlag = cli.Uint64Flag{
		Name:  "epoch-length",
		Usage: "epoch length in slots",
		Value: 600,
	}
	seedFlag = cli.StringFlag{
		Name:  "seed",
		Usage: "hex-encoded sr25519 seed of the authority key; a fresh key is generated if unset",
	}
	notAuthorityFlag = cli.BoolFlag{
		Name:  "no-author",
		Usage: "disable block production",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "arbor"
	app.Usage = "slot-based VRF block production node"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		basePathFlag,
		logLevelFlag,
		slotDurationFlag,
		epochLengthFlag,
		seedFlag,
		notAuthorityFlag,
	}
	app.Action = runNode

	if err := app.Run(os.Args); err != nil {
		logger.Criticalf("node error: %s", err)
		os.Exit(1)
	}
}

func runNode(ctx *cli.Context) error {
	logLevel, err := log.ParseLevel(ctx.String(logLevelFlag.Name))
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}
	log.Patch(log.SetLevel(logLevel))

	keypair, err := loadKeypair(ctx.String(seedFlag.Name))
	if err != nil {
		return fmt.Errorf("loading keypair: %w", err)
	}
	logger.Infof("authority key %s", keypair.Public().Hex())

	authority := types.NewAuthority(keypair.Public().(*sr25519.PublicKey), 1)

	node, err := dot.NewNode(&dot.Config{
		LogLvl:    logLevel,
		DataDir:   ctx.String(basePathFlag.Name),
		Authority: !ctx.Bool(notAuthorityFlag.Name),
		Keypair:   keypair,
		GenesisConfig: &types.BabeConfiguration{
			SlotDuration:       ctx.Uint64(slotDurationFlag.Name),
			EpochLength:        ctx.Uint64(epochLengthFlag.Name),
			C1:                 1,
			C2:                 4,
			GenesisAuthorities: types.AuthoritiesToRaw([]types.Authority{authority}),
			SecondarySlots:     types.SecondarySlotsPlain,
		},
	})
	if err != nil {
		return fmt.Errorf("creating node: %w", err)
	}

	if err := node.Start(); err != nil {
		return fmt.Errorf("starting node: %w", err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info("signal received, shutting down")

	return node.Stop()
}

func loadKeypair(seedHex string) (*sr25519.Keypair, error) {
	if seedHex == "" {
		return sr25519.GenerateKeypair()
	}

	seed, err := hex.DecodeString(strings.TrimPrefix(seedHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("decoding seed: %w", err)
	}

	return sr25519.NewKeypairFromSeed(seed)
}
