package cmd

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"rosettagw/ledgersim"
	"rosettagw/logx"
	"rosettagw/types"
)

var devledgerFlags struct {
	listen   string
	symbol   string
	decimals uint32
	fee      string
	mints    []string
}

var devledgerCmd = &cobra.Command{
	Use:   "devledger",
	Short: "Run an in-process ledger simulator",
	Long: `Runs the ledger simulator behind the same JSON-RPC surface the real
ledger exposes, for local development of the gateway.

Initial balances are seeded with --mint, e.g.:

  rosettagw devledger --mint 5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY=1_000_000`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runDevLedger(); err != nil {
			logx.Error("DEVLEDGER", "simulator failed: ", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(devledgerCmd)
	devledgerCmd.Flags().StringVarP(&devledgerFlags.listen, "listen", "l", ":8745", "listen address")
	devledgerCmd.Flags().StringVar(&devledgerFlags.symbol, "symbol", "TKN", "currency symbol")
	devledgerCmd.Flags().Uint32Var(&devledgerFlags.decimals, "decimals", 8, "currency decimals")
	devledgerCmd.Flags().StringVar(&devledgerFlags.fee, "fee", "10", "flat fee charged per submitted transaction")
	devledgerCmd.Flags().StringArrayVar(&devledgerFlags.mints, "mint", nil, "initial mint as account=amount, repeatable")
}

func runDevLedger() error {
	fee, err := uint256.FromDecimal(devledgerFlags.fee)
	if err != nil {
		return fmt.Errorf("could not parse fee: %w", err)
	}
	led := ledgersim.New(ledgersim.Options{
		Symbol:   devledgerFlags.symbol,
		Decimals: devledgerFlags.decimals,
		Fee:      fee,
	})
	for _, m := range devledgerFlags.mints {
		acctRaw, amountRaw, ok := strings.Cut(m, "=")
		if !ok {
			return fmt.Errorf("mint %q must be account=amount", m)
		}
		acct, err := types.ParseAccount(acctRaw)
		if err != nil {
			return fmt.Errorf("mint account %q: %w", acctRaw, err)
		}
		amount, err := uint256.FromDecimal(strings.ReplaceAll(amountRaw, "_", ""))
		if err != nil {
			return fmt.Errorf("mint amount %q: %w", amountRaw, err)
		}
		led.Mint(acct, amount)
	}
	logx.Info("DEVLEDGER", "serving ledger simulator on ", devledgerFlags.listen,
		" (", devledgerFlags.symbol, ", fee ", fee.Dec(), ")")
	return http.ListenAndServe(devledgerFlags.listen, led.Handler())
}
