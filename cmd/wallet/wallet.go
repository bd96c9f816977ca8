package wallet

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/defisafe/hotwallet/internal/config"
	"github.com/defisafe/hotwallet/internal/errs"
	"github.com/defisafe/hotwallet/internal/storage"
	"github.com/defisafe/hotwallet/internal/util/command"
	"github.com/defisafe/hotwallet/internal/wallet"
)

const (
	passwordFlag    = "password"
	networkFlag     = "network"
	quantumSafeFlag = "quantum-safe"
	wordsFlag       = "words"
	mnemonicFlag    = "mnemonic"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("wallet",
		newCreate(),
		newRestore(),
		newDelete(),
		newList(),
		newAddress(),
		newBalance(),
		newSend(),
		newRotate(),
		newHistory(),
	)
}

// newService wires the wallet service from ENV configuration. A configured
// database URL selects the Postgres backend; otherwise state is in-memory
// and lives only for this invocation.
//
//nolint:ireturn
func newService() (wallet.Service, func(), error) {
	cfg := config.DefaultServiceConfigFromEnv()

	var (
		backend storage.Storage
		cleanup = func() {}
	)

	if cfg.DatabaseURL != "" {
		pg, err := storage.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		backend = pg
		cleanup = func() { _ = pg.Close() }
	} else {
		backend = storage.NewMemory()
	}

	svc, err := wallet.NewService(cfg, backend)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return svc, cleanup, nil
}

func fail(err error) {
	log.Error().Msg(errs.Public(err))
	os.Exit(1)
}

func newCreate() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a wallet and print its recovery phrase once",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			password, _ := cmd.Flags().GetString(passwordFlag)
			quantumSafe, _ := cmd.Flags().GetBool(quantumSafeFlag)
			words, _ := cmd.Flags().GetInt(wordsFlag)

			svc, cleanup, err := newService()
			if err != nil {
				fail(err)
			}
			defer cleanup()

			mnemonic, rec, err := svc.CreateWallet(cmd.Context(), args[0], password, wallet.CreateOptions{
				QuantumSafe: quantumSafe,
				Words:       words,
			})
			if err != nil {
				fail(err)
			}

			// The phrase goes to stdout only. It is not logged and cannot
			// be retrieved again.
			fmt.Printf("wallet %s created (id %s)\n", rec.Name, rec.ID)
			fmt.Println("recovery phrase (write it down, it will not be shown again):")
			fmt.Println(mnemonic)
		},
	}

	cmd.Flags().String(passwordFlag, "", "wallet password")
	cmd.Flags().Bool(quantumSafeFlag, false, "use the quantum-safe envelope variant")
	cmd.Flags().Int(wordsFlag, wallet.DefaultMnemonicWords, "mnemonic word count (12, 15, 18, 21 or 24)")

	return cmd
}

func newRestore() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <name>",
		Short: "Restore a wallet from its recovery phrase",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			password, _ := cmd.Flags().GetString(passwordFlag)
			mnemonic, _ := cmd.Flags().GetString(mnemonicFlag)
			quantumSafe, _ := cmd.Flags().GetBool(quantumSafeFlag)

			svc, cleanup, err := newService()
			if err != nil {
				fail(err)
			}
			defer cleanup()

			rec, err := svc.RestoreWallet(cmd.Context(), args[0], password, mnemonic, wallet.CreateOptions{
				QuantumSafe: quantumSafe,
			})
			if err != nil {
				fail(err)
			}

			fmt.Printf("wallet %s restored (id %s)\n", rec.Name, rec.ID)
		},
	}

	cmd.Flags().String(passwordFlag, "", "wallet password")
	cmd.Flags().String(mnemonicFlag, "", "recovery phrase")
	cmd.Flags().Bool(quantumSafeFlag, false, "use the quantum-safe envelope variant")

	return cmd
}

func newDelete() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a wallet and purge its nonce state",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			svc, cleanup, err := newService()
			if err != nil {
				fail(err)
			}
			defer cleanup()

			if err := svc.DeleteWallet(cmd.Context(), args[0]); err != nil {
				fail(err)
			}

			fmt.Printf("wallet %s deleted\n", args[0])
		},
	}

	return cmd
}

func newList() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List wallets",
		Run: func(cmd *cobra.Command, _ []string) {
			svc, cleanup, err := newService()
			if err != nil {
				fail(err)
			}
			defer cleanup()

			records, err := svc.ListWallets(cmd.Context())
			if err != nil {
				fail(err)
			}

			for _, rec := range records {
				fmt.Printf("%s\t%s\tquantum_safe=%t\n", rec.ID, rec.Name, rec.QuantumSafe)
			}
		},
	}
}

func newAddress() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "address <name>",
		Short: "Show the wallet address on a network",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			password, _ := cmd.Flags().GetString(passwordFlag)
			network, _ := cmd.Flags().GetString(networkFlag)

			svc, cleanup, err := newService()
			if err != nil {
				fail(err)
			}
			defer cleanup()

			addr, err := svc.GetAddress(cmd.Context(), args[0], password, network)
			if err != nil {
				fail(err)
			}

			fmt.Println(addr)
		},
	}

	cmd.Flags().String(passwordFlag, "", "wallet password")
	cmd.Flags().String(networkFlag, "eth", "network tag")

	return cmd
}

func newBalance() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance <name>",
		Short: "Show the wallet balance on a network in base units",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			password, _ := cmd.Flags().GetString(passwordFlag)
			network, _ := cmd.Flags().GetString(networkFlag)

			svc, cleanup, err := newService()
			if err != nil {
				fail(err)
			}
			defer cleanup()

			balance, err := svc.GetBalance(cmd.Context(), args[0], password, network)
			if err != nil {
				fail(err)
			}

			fmt.Println(balance)
		},
	}

	cmd.Flags().String(passwordFlag, "", "wallet password")
	cmd.Flags().String(networkFlag, "eth", "network tag")

	return cmd
}

func newSend() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <name> <to> <amount>",
		Short: "Sign and broadcast a transfer",
		Args:  cobra.ExactArgs(3),
		Run: func(cmd *cobra.Command, args []string) {
			password, _ := cmd.Flags().GetString(passwordFlag)
			network, _ := cmd.Flags().GetString(networkFlag)

			svc, cleanup, err := newService()
			if err != nil {
				fail(err)
			}
			defer cleanup()

			hash, err := svc.SendTransaction(cmd.Context(), args[0], password, network, args[1], args[2])
			if err != nil {
				fail(err)
			}

			fmt.Println(hash)
		},
	}

	cmd.Flags().String(passwordFlag, "", "wallet password")
	cmd.Flags().String(networkFlag, "eth", "network tag")

	return cmd
}

func newRotate() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rotate <name>",
		Short: "Re-encrypt the wallet and rotate its signing key version",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			password, _ := cmd.Flags().GetString(passwordFlag)

			svc, cleanup, err := newService()
			if err != nil {
				fail(err)
			}
			defer cleanup()

			retired, current, err := svc.RotateSigningKey(cmd.Context(), args[0], password)
			if err != nil {
				fail(err)
			}

			fmt.Printf("rotated v%d -> v%d (key id %s)\n", retired.Version, current.Version, current.KeyID)
		},
	}

	cmd.Flags().String(passwordFlag, "", "wallet password")

	return cmd
}

func newHistory() *cobra.Command {
	return &cobra.Command{
		Use:   "history <name>",
		Short: "Show the wallet's signing key versions",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			svc, cleanup, err := newService()
			if err != nil {
				fail(err)
			}
			defer cleanup()

			versions, err := svc.KeyHistory(cmd.Context(), args[0])
			if err != nil {
				fail(err)
			}

			for _, v := range versions {
				status := "active"
				if v.Retired {
					status = "retired"
				}
				fmt.Printf("v%d\t%s\t%s\tused=%d\n", v.Version, v.KeyID, status, v.UsageCount)
			}
		},
	}
}
