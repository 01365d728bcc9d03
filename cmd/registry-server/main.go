package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pluggable-systems/plugin-registry-backend/cmd/flags"
	"github.com/pluggable-systems/plugin-registry-backend/httpserver"
	"github.com/pluggable-systems/plugin-registry-backend/instanceutils/upgradeproxy"
	"github.com/pluggable-systems/plugin-registry-backend/interfaces"
	"github.com/pluggable-systems/plugin-registry-backend/oracle"
	"github.com/pluggable-systems/plugin-registry-backend/registry"
	"github.com/pluggable-systems/plugin-registry-backend/storage"
)

var serverFlags []cli.Flag = append([]cli.Flag{
	&cli.StringFlag{
		Name:  "listen-addr",
		Value: "127.0.0.1:8080",
		Usage: "address to listen on for API",
	},
	&cli.StringFlag{
		Name:     "authority-addr",
		Required: true,
		Usage:    "identity allowed to publish, edit and set bounds. 40-char hex string",
	},
	&cli.StringFlag{
		Name:     "genesis-label",
		Required: true,
		Usage:    "version label of ledger ordinal 0",
	},
	&cli.StringFlag{
		Name:     "genesis-logic-ref",
		Required: true,
		Usage:    "logic reference of ledger ordinal 0. 40-char hex string",
	},
	&cli.StringFlag{
		Name:  "genesis-payload",
		Value: "",
		Usage: "hex-encoded migration payload of ledger ordinal 0",
	},
	&cli.Int64Flag{
		Name:  "setup-cost",
		Value: 0,
		Usage: "nominal instance setup cost, converted through the oracle at registration. 0 disables fee conversion",
	},
	&cli.StringFlag{
		Name:  "oracle-url",
		Value: "",
		Usage: "HTTP exchange rate endpoint. Empty uses a fixed rate",
	},
	&cli.Int64Flag{
		Name:  "fixed-rate",
		Value: 1,
		Usage: "fixed exchange rate used when no oracle-url is set",
	},
	&cli.StringFlag{
		Name:  "proxy-mode",
		Value: "loopback",
		Usage: "upgrade delivery mode: 'loopback' or 'srv'",
	},
	&cli.StringFlag{
		Name:  "srv-zone",
		Value: "",
		Usage: "DNS zone instances register under (required for proxy-mode srv)",
	},
	&cli.StringFlag{
		Name:  "dns-server",
		Value: "",
		Usage: "DNS resolver address for SRV lookups, defaults to the local stub resolver",
	},
	&cli.StringSliceFlag{
		Name:  "storage-uri",
		Usage: "snapshot storage backend URI (file://, s3://, ipfs://, vault://). May be repeated",
	},
	&cli.Int64Flag{
		Name:  "snapshot-seconds",
		Value: 300,
		Usage: "seconds between periodic state snapshots",
	},
	&cli.StringFlag{
		Name:  "snapshot-ref",
		Value: "",
		Usage: "hex content ID of a snapshot to restore at startup",
	},
}, flags.CommonFlags...)

func decodePayload(s string) (interfaces.UpgradePayload, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid payload hex: %w", err)
	}
	return interfaces.UpgradePayload(raw), nil
}

func main() {
	app := &cli.App{
		Name:  "registry-server",
		Usage: "Serve the versioned plugin-module registry API",
		Flags: serverFlags,
		Action: func(cCtx *cli.Context) error {
			listenAddr := cCtx.String("listen-addr")
			logger := flags.SetupLogger(cCtx)

			authorityAddr, err := interfaces.NewAddressFromHex(cCtx.String("authority-addr"))
			if err != nil {
				logger.Error("Invalid authority address", "err", err)
				return err
			}

			genesisRef, err := interfaces.NewAddressFromHex(cCtx.String("genesis-logic-ref"))
			if err != nil {
				logger.Error("Invalid genesis logic reference", "err", err)
				return err
			}

			genesisPayload, err := decodePayload(cCtx.String("genesis-payload"))
			if err != nil {
				logger.Error("Invalid genesis payload", "err", err)
				return err
			}

			var rateSource interfaces.ExchangeOracle
			if oracleURL := cCtx.String("oracle-url"); oracleURL != "" {
				logger.Info("Using HTTP exchange oracle", "endpoint", oracleURL)
				rateSource = oracle.NewHTTPOracle(oracleURL, logger)
			} else {
				rateSource = &oracle.FixedOracle{Rate: big.NewInt(cCtx.Int64("fixed-rate"))}
			}

			var setupCost *big.Int
			if cost := cCtx.Int64("setup-cost"); cost > 0 {
				setupCost = big.NewInt(cost)
			}

			var proxy interfaces.UpgradeProxy
			switch mode := cCtx.String("proxy-mode"); mode {
			case "loopback":
				proxy = &upgradeproxy.LoopbackProxy{Log: logger}
			case "srv":
				zone := cCtx.String("srv-zone")
				if zone == "" {
					return fmt.Errorf("srv-zone is required for proxy-mode srv")
				}
				proxy = upgradeproxy.NewHTTPProxy(&upgradeproxy.SRVResolver{
					Zone:      zone,
					DNSServer: cCtx.String("dns-server"),
				}, logger)
			default:
				return fmt.Errorf("invalid proxy-mode: %s", mode)
			}

			service, err := registry.NewService(&registry.ServiceConfig{
				Owner:           authorityAddr,
				GenesisLabel:    cCtx.String("genesis-label"),
				GenesisLogicRef: genesisRef,
				GenesisPayload:  genesisPayload,
				SetupCost:       setupCost,
				Proxy:           proxy,
				Oracle:          rateSource,
				Sink:            registry.NewSlogSink(logger),
				Log:             logger,
			})
			if err != nil {
				logger.Error("Failed to assemble registry service", "err", err)
				return err
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			var snapshotBackend interfaces.StorageBackend
			if uris := cCtx.StringSlice("storage-uri"); len(uris) > 0 {
				locations := make([]interfaces.StorageBackendLocation, len(uris))
				for i, uri := range uris {
					locations[i] = interfaces.StorageBackendLocation(uri)
				}

				factory := storage.NewFactory(logger)
				snapshotBackend, err = factory.CreateMultiBackend(locations)
				if err != nil {
					logger.Error("Failed to create snapshot storage", "err", err)
					return err
				}

				if ref := cCtx.String("snapshot-ref"); ref != "" {
					id, err := interfaces.NewContentIDFromHex(ref)
					if err != nil {
						logger.Error("Invalid snapshot reference", "err", err)
						return err
					}
					if err := service.LoadSnapshot(ctx, snapshotBackend, id); err != nil {
						logger.Error("Failed to restore snapshot", "err", err)
						return err
					}
					logger.Info("Restored state from snapshot", "ref", ref,
						"frontier", service.Ledger.HighestOrdinal(),
						"instances", len(service.Instances.Records()))
				}

				interval := time.Duration(cCtx.Int64("snapshot-seconds")) * time.Second
				go service.RunSnapshotLoop(ctx, snapshotBackend, interval, logger)
			}

			handler := httpserver.NewHandler(service, logger)
			srv, err := httpserver.New(flags.ConfigureServer(cCtx, logger, listenAddr), handler)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			logger.Info("Starting server",
				"authority", authorityAddr.String(),
				"genesisLabel", cCtx.String("genesis-label"))
			srv.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
			<-exit
			logger.Info("Shutdown signal received")

			cancel()
			if snapshotBackend != nil {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer shutdownCancel()
				if id, err := service.StoreSnapshot(shutdownCtx, snapshotBackend); err != nil {
					logger.Error("Final snapshot failed", "err", err)
				} else {
					logger.Info("Final snapshot stored", "ref", id.String())
				}
			}

			srv.Shutdown()
			logger.Info("Server shutdown complete")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
