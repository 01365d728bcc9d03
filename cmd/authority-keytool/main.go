package main

import (
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/urfave/cli/v2"

	"github.com/pluggable-systems/plugin-registry-backend/api"
	"github.com/pluggable-systems/plugin-registry-backend/kms"
)

var flagKeyFile = &cli.StringFlag{
	Name:  "key-file",
	Value: "authority-key.hex",
	Usage: "Path to the hex-encoded authority key",
}
var flagShareDir = &cli.StringFlag{
	Name:  "share-dir",
	Value: ".",
	Usage: "Directory to read and write sealed share files",
}
var flagThreshold = &cli.IntFlag{
	Name:  "threshold",
	Value: 2,
	Usage: "number of custodians required to reconstruct the key",
}
var flagPassphrase = &cli.StringSliceFlag{
	Name:     "passphrase",
	Required: true,
	Usage:    "custodian passphrase, one per share, in share order",
}
var flagShareFile = &cli.StringSliceFlag{
	Name:     "share-file",
	Required: true,
	Usage:    "sealed share file, repeated, matching the passphrase order",
}

func main() {
	app := &cli.App{
		Name:  "authority-keytool",
		Usage: "Split the registry authority key into custodian shares and reassemble it",
		Commands: []*cli.Command{
			{
				Name:  "generate",
				Usage: "Generate a fresh authority key",
				Flags: []cli.Flag{flagKeyFile},
				Action: func(cCtx *cli.Context) error {
					key, err := ethcrypto.GenerateKey()
					if err != nil {
						return err
					}
					keyFile := cCtx.String(flagKeyFile.Name)
					if err := ethcrypto.SaveECDSA(keyFile, key); err != nil {
						return err
					}
					fmt.Printf("key written to %s\nauthority identity: %s\n", keyFile, api.IdentityForKey(key).String())
					return nil
				},
			},
			{
				Name:  "split",
				Usage: "Split the authority key into passphrase-sealed shares",
				Flags: []cli.Flag{flagKeyFile, flagShareDir, flagThreshold, flagPassphrase},
				Action: func(cCtx *cli.Context) error {
					key, err := ethcrypto.LoadECDSA(cCtx.String(flagKeyFile.Name))
					if err != nil {
						return err
					}

					passphrases := cCtx.StringSlice(flagPassphrase.Name)
					sealed, err := kms.SplitAuthorityKey(key, cCtx.Int(flagThreshold.Name), passphrases)
					if err != nil {
						return err
					}

					shareDir := cCtx.String(flagShareDir.Name)
					for i, share := range sealed {
						path := filepath.Join(shareDir, fmt.Sprintf("authority-share-%d.hex", i))
						if err := os.WriteFile(path, []byte(hex.EncodeToString(share)), 0o600); err != nil {
							return fmt.Errorf("failed to write share %d: %w", i, err)
						}
						fmt.Printf("share %d written to %s\n", i, path)
					}

					fmt.Printf("any %d of %d custodians can reconstruct the key\n",
						cCtx.Int(flagThreshold.Name), len(sealed))
					fmt.Println("delete the plaintext key file once shares are distributed")
					return nil
				},
			},
			{
				Name:  "combine",
				Usage: "Reassemble the authority key from sealed shares",
				Flags: []cli.Flag{flagKeyFile, flagShareFile, flagPassphrase},
				Action: func(cCtx *cli.Context) error {
					shareFiles := cCtx.StringSlice(flagShareFile.Name)
					passphrases := cCtx.StringSlice(flagPassphrase.Name)
					if len(shareFiles) != len(passphrases) {
						return fmt.Errorf("got %d share files but %d passphrases", len(shareFiles), len(passphrases))
					}

					sealed := make([][]byte, len(shareFiles))
					for i, path := range shareFiles {
						raw, err := os.ReadFile(path)
						if err != nil {
							return fmt.Errorf("failed to read share %s: %w", path, err)
						}
						sealed[i], err = hex.DecodeString(string(raw))
						if err != nil {
							return fmt.Errorf("share %s is not valid hex: %w", path, err)
						}
					}

					key, err := kms.CombineAuthorityKey(sealed, passphrases)
					if err != nil {
						return err
					}

					keyFile := cCtx.String(flagKeyFile.Name)
					if err := ethcrypto.SaveECDSA(keyFile, key); err != nil {
						return err
					}
					fmt.Printf("key written to %s\nauthority identity: %s\n", keyFile, api.IdentityForKey(key).String())
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
