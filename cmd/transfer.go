package cmd

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"rosettagw/client"
	"rosettagw/logx"
	"rosettagw/rosetta"
	"rosettagw/types"
)

var transferFlags struct {
	gatewayURL     string
	blockchain     string
	network        string
	symbol         string
	decimals       int32
	privateKey     string
	privateKeyFile string
	to             string
	amount         string
	wait           bool
}

var transferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Transfer tokens through the gateway's construction flow",
	Long: `Drives a full construction session against a running gateway: the
transaction is built server-side, signed locally with the provided ed25519
key, and submitted to the ledger.

Examples:
  rosettagw transfer -t 5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY -a 1_000 -f key.hex
  rosettagw transfer -t 5Grwva...KutQY -a 500 -p <hex seed> --wait`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := transferToken(); err != nil {
			logx.Error("TRANSFER", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(transferCmd)
	transferCmd.Flags().StringVarP(&transferFlags.gatewayURL, "gateway-url", "u", "http://127.0.0.1:8080", "gateway base URL")
	transferCmd.Flags().StringVar(&transferFlags.blockchain, "blockchain", "tokenledger", "blockchain name of the served network")
	transferCmd.Flags().StringVar(&transferFlags.network, "network", "mainnet", "network name of the served network")
	transferCmd.Flags().StringVar(&transferFlags.symbol, "symbol", "TKN", "currency symbol")
	transferCmd.Flags().Int32Var(&transferFlags.decimals, "decimals", 8, "currency decimals")
	transferCmd.Flags().StringVarP(&transferFlags.privateKey, "private-key", "p", "", "sender private key in hex")
	transferCmd.Flags().StringVarP(&transferFlags.privateKeyFile, "private-key-file", "f", "", "sender private key file")
	transferCmd.Flags().StringVarP(&transferFlags.to, "to", "t", "", "address of recipient")
	transferCmd.Flags().StringVarP(&transferFlags.amount, "amount", "a", "", "amount")
	transferCmd.Flags().BoolVar(&transferFlags.wait, "wait", false, "wait until the transfer shows up in a committed block")
}

func transferToken() error {
	amount, err := uint256.FromDecimal(strings.ReplaceAll(transferFlags.amount, "_", ""))
	if err != nil {
		return fmt.Errorf("could not parse amount: %w", err)
	}
	to, err := types.ParseAccount(transferFlags.to)
	if err != nil {
		return fmt.Errorf("could not parse recipient: %w", err)
	}
	priv, err := loadSenderKey()
	if err != nil {
		return err
	}
	signer := client.NewSigner(priv)

	gw := client.New(transferFlags.gatewayURL, rosetta.NetworkIdentifier{
		Blockchain: transferFlags.blockchain,
		Network:    transferFlags.network,
	})
	currency := rosetta.Currency{Symbol: transferFlags.symbol, Decimals: transferFlags.decimals}

	ctx := context.Background()
	hash, err := gw.Transfer(ctx, signer, to, amount, currency)
	if err != nil {
		return fmt.Errorf("transfer failed: %w", err)
	}
	logx.Info("TRANSFER", "submitted ", amount.Dec(), " from ", signer.Account().String(),
		" to ", to.String(), " as ", hash)

	if transferFlags.wait {
		waitCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		bt, err := gw.WaitForTransaction(waitCtx, signer.Account(), hash, 500*time.Millisecond)
		if err != nil {
			return err
		}
		logx.Info("TRANSFER", "confirmed in block ", bt.BlockIdentifier.Index)
	}
	return nil
}

// loadSenderKey accepts a 32-byte ed25519 seed or a full 64-byte private key,
// hex encoded, from a flag or a file.
func loadSenderKey() (ed25519.PrivateKey, error) {
	raw := transferFlags.privateKey
	if raw == "" {
		if transferFlags.privateKeyFile == "" {
			return nil, fmt.Errorf("either --private-key or --private-key-file is required")
		}
		data, err := os.ReadFile(transferFlags.privateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read private key file: %w", err)
		}
		raw = strings.TrimSpace(string(data))
	}
	key, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("private key is not hex: %w", err)
	}
	switch len(key) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(key), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(key), nil
	default:
		return nil, fmt.Errorf("private key must be %d or %d bytes, got %d",
			ed25519.SeedSize, ed25519.PrivateKeySize, len(key))
	}
}
