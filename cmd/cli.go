package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/catalyst-network/catalyst-wallet/config"
	"github.com/catalyst-network/catalyst-wallet/keys"
	"github.com/catalyst-network/catalyst-wallet/manager"
	"github.com/catalyst-network/catalyst-wallet/store"
	"github.com/catalyst-network/catalyst-wallet/tracker"
)

var (
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "path to config file",
		EnvVars: []string{"CATALYST_WALLET_CONFIG"},
	}
	PasswordFlag = &cli.StringFlag{
		Name:    "password",
		Usage:   "vault password",
		EnvVars: []string{"CATALYST_WALLET_PASSWORD"},
	}
	MnemonicFlag = &cli.StringFlag{
		Name:    "mnemonic",
		Usage:   "BIP-39 recovery phrase; generated when omitted",
		EnvVars: []string{"CATALYST_WALLET_MNEMONIC"},
	}
	PassphraseFlag = &cli.StringFlag{
		Name:    "passphrase",
		Usage:   "optional BIP-39 passphrase",
		EnvVars: []string{"CATALYST_WALLET_PASSPHRASE"},
	}
	PrivateKeyFlag = &cli.StringFlag{
		Name:    "private-key",
		Usage:   "import a Hex-32 private key instead of a mnemonic",
		EnvVars: []string{"CATALYST_WALLET_PRIVATE_KEY"},
	}
	ToFlag = &cli.StringFlag{
		Name:     "to",
		Usage:    "recipient address",
		Required: true,
	}
	AmountFlag = &cli.Int64Flag{
		Name:     "amount",
		Usage:    "transfer amount in base units",
		Required: true,
	}
	AccountFlag = &cli.StringFlag{
		Name:  "account",
		Usage: "account id to select",
	}
)

func newCli(GitCommit string, GitDate string) *cli.App {
	walletFlags := []cli.Flag{ConfigFlag, PasswordFlag}
	return &cli.App{
		Version:              VersionWithCommit(GitCommit, GitDate),
		Description:          "A non-custodial wallet for the Catalyst network",
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			{
				Name:        "init",
				Flags:       append([]cli.Flag{MnemonicFlag, PassphraseFlag, PrivateKeyFlag}, walletFlags...),
				Description: "Create or import a wallet and write the encrypted vault",
				Action:      runInit,
			},
			{
				Name:        "accounts",
				Flags:       walletFlags,
				Description: "List the wallet accounts",
				Action:      runAccounts,
			},
			{
				Name:        "add-account",
				Flags:       walletFlags,
				Description: "Derive the next account of a mnemonic wallet",
				Action:      runAddAccount,
			},
			{
				Name:        "select",
				Flags:       append([]cli.Flag{AccountFlag}, walletFlags...),
				Description: "Select the active account",
				Action:      runSelect,
			},
			{
				Name:        "address",
				Flags:       walletFlags,
				Description: "Print the address of the active account",
				Action:      runAddress,
			},
			{
				Name:        "balance",
				Flags:       walletFlags,
				Description: "Show balance and committed nonce of the active account",
				Action:      runBalance,
			},
			{
				Name:        "history",
				Flags:       walletFlags,
				Description: "Refresh and print the transaction history of the active account",
				Action:      runHistory,
			},
			{
				Name:        "send",
				Flags:       append([]cli.Flag{ToFlag, AmountFlag}, walletFlags...),
				Description: "Send a transfer from the active account",
				Action:      runSend,
			},
			{
				Name:        "version",
				Description: "print version",
				Action: func(ctx *cli.Context) error {
					cli.ShowVersion(ctx)
					return nil
				},
			},
		},
	}
}

func setup(ctx *cli.Context) (*manager.Manager, *store.Storage, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, nil, err
	}

	cfg := config.Default()
	if path := ctx.String(ConfigFlag.Name); path != "" {
		cfg, err = config.NewConfig(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	db, err := store.NewStorage(cfg.LevelDbPath, logger)
	if err != nil {
		return nil, nil, err
	}

	m, err := manager.New(logger, db, cfg.Network)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return m, db, nil
}

func unlock(ctx *cli.Context, m *manager.Manager) error {
	password := ctx.String(PasswordFlag.Name)
	if password == "" {
		return errors.New("need to config vault password")
	}
	return m.Unlock(ctx.Context, password)
}

func runInit(ctx *cli.Context) error {
	m, db, err := setup(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	defer m.Lock()

	password := ctx.String(PasswordFlag.Name)
	if password == "" {
		return errors.New("need to config vault password")
	}
	if ok, err := m.HasVault(); err != nil {
		return err
	} else if ok {
		return errors.New("a vault already exists in storage")
	}

	if priv := ctx.String(PrivateKeyFlag.Name); priv != "" {
		if err := m.InitFromPrivateKey(ctx.Context, password, "Imported wallet", priv); err != nil {
			return err
		}
	} else {
		mnemonic := ctx.String(MnemonicFlag.Name)
		if mnemonic == "" {
			mnemonic, err = keys.NewMnemonic(128)
			if err != nil {
				return err
			}
			fmt.Println("recovery phrase (write it down):")
			fmt.Println("  " + mnemonic)
		}
		err = m.InitFromMnemonic(ctx.Context, password, "Main wallet", mnemonic, ctx.String(PassphraseFlag.Name), 1)
		if err != nil {
			return err
		}
	}

	w, err := m.Wallet()
	if err != nil {
		return err
	}
	fmt.Printf("wallet created, address %s\n", w.Accounts[0].Address)
	return nil
}

func runAccounts(ctx *cli.Context) error {
	m, db, err := setup(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	defer m.Lock()

	if err := unlock(ctx, m); err != nil {
		return err
	}
	w, err := m.Wallet()
	if err != nil {
		return err
	}
	for _, acct := range w.Accounts {
		marker := " "
		if acct.ID == w.SelectedID {
			marker = "*"
		}
		fmt.Printf("%s %s  %s  %s\n", marker, acct.ID, acct.Address, acct.Label)
	}
	return nil
}

func runAddAccount(ctx *cli.Context) error {
	m, db, err := setup(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	defer m.Lock()

	if err := unlock(ctx, m); err != nil {
		return err
	}
	acct, err := m.AddAccount(ctx.Context)
	if err != nil {
		return err
	}
	fmt.Printf("added %s %s\n", acct.ID, acct.Address)
	return nil
}

func runSelect(ctx *cli.Context) error {
	m, db, err := setup(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	defer m.Lock()

	if err := unlock(ctx, m); err != nil {
		return err
	}
	id := ctx.String(AccountFlag.Name)
	if id == "" {
		return errors.New("need to pass --account")
	}
	return m.SelectAccount(ctx.Context, id)
}

func runAddress(ctx *cli.Context) error {
	m, db, err := setup(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	defer m.Lock()

	if err := unlock(ctx, m); err != nil {
		return err
	}
	w, err := m.Wallet()
	if err != nil {
		return err
	}
	selected, err := w.Selected()
	if err != nil {
		return err
	}
	fmt.Println(selected.Address)
	return nil
}

func runHistory(ctx *cli.Context) error {
	m, db, err := setup(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	defer m.Lock()

	if err := unlock(ctx, m); err != nil {
		return err
	}
	if err := m.RefreshHistory(ctx.Context); err != nil {
		return err
	}
	page, err := m.History()
	if err != nil {
		return err
	}
	if len(page) == 0 {
		fmt.Println("no transactions")
		return nil
	}
	for _, entry := range page {
		fmt.Printf("%s  cycle %d  %s\n", entry.ID, entry.Cycle, entry.Status)
	}
	return nil
}

func runBalance(ctx *cli.Context) error {
	m, db, err := setup(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	defer m.Lock()

	if err := unlock(ctx, m); err != nil {
		return err
	}
	balance, committed, err := m.Refresh(ctx.Context)
	if err != nil {
		return err
	}
	w, err := m.Wallet()
	if err != nil {
		return err
	}
	selected, err := w.Selected()
	if err != nil {
		return err
	}
	fmt.Printf("%s  balance %s  nonce %d\n", selected.Address, balance, committed)
	return nil
}

func runSend(ctx *cli.Context) error {
	m, db, err := setup(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	defer m.Lock()

	if err := unlock(ctx, m); err != nil {
		return err
	}
	to := strings.TrimSpace(ctx.String(ToFlag.Name))
	result, err := m.Send(ctx.Context, to, ctx.Int64(AmountFlag.Name))
	if err != nil {
		return err
	}
	fmt.Printf("broadcast %s (nonce %d, fees %d)\n", result.LocalID, result.Nonce, result.Fees)

	// One polling pass so a fast receipt shows up before exit.
	time.Sleep(tracker.PollInterval)
	m.Tracker().Tick(ctx.Context)
	for _, rec := range m.Tracker().Records() {
		if rec.LocalID == result.LocalID {
			fmt.Printf("status %s\n", rec.Status)
		}
	}
	return nil
}
