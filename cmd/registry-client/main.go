package main

import (
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/urfave/cli/v2"

	"github.com/pluggable-systems/plugin-registry-backend/api"
	"github.com/pluggable-systems/plugin-registry-backend/api/clients"
	"github.com/pluggable-systems/plugin-registry-backend/cmd/flags"
	"github.com/pluggable-systems/plugin-registry-backend/interfaces"
)

func loadKey(cCtx *cli.Context) (*ecdsa.PrivateKey, error) {
	return ethcrypto.LoadECDSA(cCtx.String(flags.KeyFileFlag.Name))
}

func newClient(cCtx *cli.Context, key *ecdsa.PrivateKey) *clients.RegistryClient {
	return &clients.RegistryClient{
		ServerAddr: cCtx.String(flags.RegistryServerFlag.Name),
		Key:        key,
	}
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func parsePayload(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}

var flagLabel = &cli.StringFlag{
	Name:     "label",
	Required: true,
	Usage:    "version label, e.g. '1.1'",
}
var flagLogicRef = &cli.StringFlag{
	Name:     "logic-ref",
	Required: true,
	Usage:    "logic code reference. 40-char hex string",
}
var flagPayload = &cli.StringFlag{
	Name:  "payload",
	Value: "",
	Usage: "hex-encoded migration call data",
}
var flagInstance = &cli.StringFlag{
	Name:     "instance",
	Required: true,
	Usage:    "instance ID. 40-char hex string",
}

func main() {
	app := &cli.App{
		Name:           "registry-client",
		Usage:          "Operate against a plugin registry server",
		DefaultCommand: "status",
		Commands: []*cli.Command{
			{
				Name:  "status",
				Usage: "Show ledger frontier, window bounds and instance count",
				Flags: []cli.Flag{flags.RegistryServerFlag},
				Action: func(cCtx *cli.Context) error {
					status, err := newClient(cCtx, nil).Status(cCtx.Context)
					if err != nil {
						return err
					}
					return printJSON(status)
				},
			},
			{
				Name:      "version",
				Usage:     "Show the frontier entry, or the entry at a given ordinal",
				ArgsUsage: "[ordinal]",
				Flags:     []cli.Flag{flags.RegistryServerFlag},
				Action: func(cCtx *cli.Context) error {
					client := newClient(cCtx, nil)
					if cCtx.Args().Present() {
						ordinal, err := strconv.ParseUint(cCtx.Args().First(), 10, 64)
						if err != nil {
							return fmt.Errorf("invalid ordinal %q: %w", cCtx.Args().First(), err)
						}
						entry, err := client.Entry(cCtx.Context, ordinal)
						if err != nil {
							return err
						}
						return printJSON(entry)
					}

					entry, err := client.Version(cCtx.Context)
					if err != nil {
						return err
					}
					return printJSON(entry)
				},
			},
			{
				Name:  "generate-key",
				Usage: "Generate a new signing key and print its identity",
				Flags: []cli.Flag{flags.KeyFileFlag},
				Action: func(cCtx *cli.Context) error {
					key, err := ethcrypto.GenerateKey()
					if err != nil {
						return err
					}
					keyFile := cCtx.String(flags.KeyFileFlag.Name)
					if err := ethcrypto.SaveECDSA(keyFile, key); err != nil {
						return err
					}
					fmt.Printf("key written to %s\nidentity: %s\n", keyFile, api.IdentityForKey(key).String())
					return nil
				},
			},
			{
				Name:  "publish",
				Usage: "Publish a new version at the ledger frontier (authority only)",
				Flags: []cli.Flag{flags.RegistryServerFlag, flags.KeyFileFlag, flagLabel, flagLogicRef, flagPayload},
				Action: func(cCtx *cli.Context) error {
					key, err := loadKey(cCtx)
					if err != nil {
						return err
					}
					payload, err := parsePayload(cCtx.String(flagPayload.Name))
					if err != nil {
						return err
					}

					ordinal, err := newClient(cCtx, key).Publish(cCtx.Context, &api.PublishRequest{
						Label:    cCtx.String(flagLabel.Name),
						LogicRef: cCtx.String(flagLogicRef.Name),
						Payload:  payload,
					})
					if err != nil {
						return err
					}
					fmt.Printf("published at ordinal %d\n", ordinal)
					return nil
				},
			},
			{
				Name:      "edit",
				Usage:     "Rewrite a published ledger entry in place (authority only)",
				ArgsUsage: "<ordinal>",
				Flags:     []cli.Flag{flags.RegistryServerFlag, flags.KeyFileFlag, flagLabel, flagLogicRef, flagPayload},
				Action: func(cCtx *cli.Context) error {
					ordinal, err := strconv.ParseUint(cCtx.Args().First(), 10, 64)
					if err != nil {
						return fmt.Errorf("invalid ordinal %q: %w", cCtx.Args().First(), err)
					}
					key, err := loadKey(cCtx)
					if err != nil {
						return err
					}
					payload, err := parsePayload(cCtx.String(flagPayload.Name))
					if err != nil {
						return err
					}

					return newClient(cCtx, key).Edit(cCtx.Context, ordinal, &api.EditRequest{
						Label:    cCtx.String(flagLabel.Name),
						LogicRef: cCtx.String(flagLogicRef.Name),
						Payload:  payload,
					})
				},
			},
			{
				Name:      "set-bound",
				Usage:     "Widen a compatibility window bound (authority only)",
				ArgsUsage: "<lower|upper> <major.minor.patch>",
				Flags:     []cli.Flag{flags.RegistryServerFlag, flags.KeyFileFlag},
				Action: func(cCtx *cli.Context) error {
					kind, err := interfaces.ParseBoundKind(cCtx.Args().Get(0))
					if err != nil {
						return err
					}
					key, err := loadKey(cCtx)
					if err != nil {
						return err
					}
					return newClient(cCtx, key).SetBound(cCtx.Context, kind, cCtx.Args().Get(1))
				},
			},
			{
				Name:  "register",
				Usage: "Register an instance owned by the signing key",
				Flags: []cli.Flag{flags.RegistryServerFlag, flags.KeyFileFlag, flagInstance},
				Action: func(cCtx *cli.Context) error {
					instance, err := interfaces.NewAddressFromHex(cCtx.String(flagInstance.Name))
					if err != nil {
						return err
					}
					key, err := loadKey(cCtx)
					if err != nil {
						return err
					}

					record, err := newClient(cCtx, key).Register(cCtx.Context, instance)
					if err != nil {
						return err
					}
					return printJSON(record)
				},
			},
			{
				Name:  "upgrade",
				Usage: "Step an owned instance one version toward the frontier",
				Flags: []cli.Flag{flags.RegistryServerFlag, flags.KeyFileFlag, flagInstance},
				Action: func(cCtx *cli.Context) error {
					instance, err := interfaces.NewAddressFromHex(cCtx.String(flagInstance.Name))
					if err != nil {
						return err
					}
					key, err := loadKey(cCtx)
					if err != nil {
						return err
					}

					result, err := newClient(cCtx, key).Upgrade(cCtx.Context, instance)
					if err != nil {
						return err
					}
					return printJSON(result)
				},
			},
			{
				Name:      "instance",
				Usage:     "Show the record of a registered instance",
				ArgsUsage: "<instance>",
				Flags:     []cli.Flag{flags.RegistryServerFlag},
				Action: func(cCtx *cli.Context) error {
					instance, err := interfaces.NewAddressFromHex(cCtx.Args().First())
					if err != nil {
						return err
					}
					record, err := newClient(cCtx, nil).Instance(cCtx.Context, instance)
					if err != nil {
						return err
					}
					return printJSON(record)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
