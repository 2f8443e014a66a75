package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/joho/godotenv"
	"github.com/tyler-smith/go-bip39"
	"github.com/urfave/cli/v2"

	"github.com/bitcr-wallet/pocket/pocket/store"
	"github.com/bitcr-wallet/pocket/wallet"
)

var nutw *wallet.Wallet

const (
	debitUnit  = "sat"
	creditUnit = "usd-credit"
)

func walletPath() string {
	homedir, err := os.UserHomeDir()
	if err != nil {
		log.Fatal(err)
	}
	path := filepath.Join(homedir, ".bitcr", "wallet")
	if err := os.MkdirAll(path, 0700); err != nil {
		log.Fatal(err)
	}
	return path
}

func mintURL() string {
	if loaded := os.Getenv("MINT_URL"); len(loaded) > 0 {
		return loaded
	}
	host, port := os.Getenv("MINT_HOST"), os.Getenv("MINT_PORT")
	if len(host) == 0 || len(port) == 0 {
		return "http://127.0.0.1:3338"
	}
	u := &url.URL{Scheme: "http", Host: host + ":" + port}
	return u.String()
}

func loadEnv(path string) {
	envPath := filepath.Join(path, ".env")
	if _, err := os.Stat(envPath); err != nil {
		if wd, err := os.Getwd(); err == nil {
			envPath = filepath.Join(wd, ".env")
		}
	}
	godotenv.Load(envPath)
}

func mnemonicPath(path string) string { return filepath.Join(path, "mnemonic") }

func loadOrCreateMnemonic(path string) (string, error) {
	mp := mnemonicPath(path)
	raw, err := os.ReadFile(mp)
	if err == nil {
		return string(raw), nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return "", err
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(mp, []byte(mnemonic), 0600); err != nil {
		return "", err
	}
	return mnemonic, nil
}

func deriveMaster(mnemonic string) (*hdkeychain.ExtendedKey, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.New("invalid mnemonic")
	}
	seed := bip39.NewSeed(mnemonic, "")
	return hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
}

func setupWallet(ctx *cli.Context) error {
	path := walletPath()
	loadEnv(path)

	mnemonic, err := loadOrCreateMnemonic(path)
	if err != nil {
		printErr(err)
	}
	master, err := deriveMaster(mnemonic)
	if err != nil {
		printErr(err)
	}

	debitRepo, err := store.OpenBolt(filepath.Join(path, "debit.db"))
	if err != nil {
		printErr(err)
	}
	creditRepo, err := store.OpenBolt(filepath.Join(path, "credit.db"))
	if err != nil {
		printErr(err)
	}

	cfg := wallet.Config{MintURL: mintURL(), DebitUnit: debitUnit, CreditUnit: creditUnit}
	client := wallet.NewClient(cfg.MintURL)
	nutw = wallet.New(cfg, debitRepo, creditRepo, wallet.NewMemoryTransactions(), client, master, slog.Default())
	return nil
}

func main() {
	app := &cli.App{
		Name:  "nutw",
		Usage: "cashu pocket wallet",
		Commands: []*cli.Command{
			balanceCmd,
			sendCmd,
			receiveCmd,
			mnemonicCmd,
			restoreCmd,
			decodeCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

var balanceCmd = &cli.Command{
	Name:   "balance",
	Usage:  "Wallet balance",
	Before: setupWallet,
	Action: getBalance,
}

func getBalance(ctx *cli.Context) error {
	balance, err := nutw.Balance(context.Background())
	if err != nil {
		printErr(err)
	}
	fmt.Printf("debit (%s): %v\ncredit (%s): %v\n", debitUnit, balance.Debit, creditUnit, balance.Credit)
	return nil
}

const unitFlag = "unit"

var sendCmd = &cli.Command{
	Name:      "send",
	Usage:     "Generates a token for the specified amount",
	ArgsUsage: "[AMOUNT]",
	Before:    setupWallet,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  unitFlag,
			Usage: "unit to send from: sat or usd-credit (defaults to whichever pocket can cover it, credit first)",
		},
	},
	Action: send,
}

func send(ctx *cli.Context) error {
	args := ctx.Args()
	if args.Len() < 1 {
		printErr(errors.New("specify an amount to send"))
	}
	amount, err := strconv.ParseUint(args.First(), 10, 64)
	if err != nil {
		printErr(errors.New("invalid amount"))
	}

	c := context.Background()
	ref, err := nutw.PrepareSend(c, amount, ctx.String(unitFlag))
	if err != nil {
		printErr(err)
	}

	token, _, err := nutw.Send(c, ref.RequestId, "", uint64(time.Now().Unix()))
	if err != nil {
		printErr(err)
	}

	fmt.Println(token)
	return nil
}

var receiveCmd = &cli.Command{
	Name:      "receive",
	Usage:     "Receive token",
	ArgsUsage: "[TOKEN]",
	Before:    setupWallet,
	Action:    receive,
}

func receive(ctx *cli.Context) error {
	args := ctx.Args()
	if args.Len() < 1 {
		printErr(errors.New("token not provided"))
	}

	amount, _, err := nutw.ReceiveToken(context.Background(), args.First(), uint64(time.Now().Unix()))
	if err != nil {
		printErr(err)
	}

	fmt.Printf("%v received\n", amount)
	return nil
}

var mnemonicCmd = &cli.Command{
	Name:   "mnemonic",
	Usage:  "Mnemonic to restore wallet",
	Action: showMnemonic,
}

func showMnemonic(ctx *cli.Context) error {
	path := walletPath()
	loadEnv(path)
	mnemonic, err := loadOrCreateMnemonic(path)
	if err != nil {
		printErr(err)
	}
	fmt.Printf("mnemonic: %v\n", mnemonic)
	return nil
}

var restoreCmd = &cli.Command{
	Name:   "restore",
	Usage:  "Restore wallet proofs from the mint using the local mnemonic",
	Before: setupWallet,
	Action: restore,
}

func restore(ctx *cli.Context) error {
	c := context.Background()

	infos, err := nutw.KeysetInfos(c)
	if err != nil {
		printErr(err)
	}

	debitCount, err := nutw.Debit().RestoreLocalProofs(c, infos)
	if err != nil {
		printErr(err)
	}
	creditCount, err := nutw.Credit().RestoreLocalProofs(c, infos)
	if err != nil {
		printErr(err)
	}

	fmt.Printf("restored %v debit proofs, %v credit proofs\n", debitCount, creditCount)
	return nil
}

var decodeCmd = &cli.Command{
	Name:      "decode",
	ArgsUsage: "[TOKEN]",
	Usage:     "Decode token",
	Action:    decode,
}

func decode(ctx *cli.Context) error {
	args := ctx.Args()
	if args.Len() < 1 {
		printErr(errors.New("token not provided"))
	}

	decoded, err := wallet.DecodeToken(args.First())
	if err != nil {
		printErr(err)
	}

	jsonToken, err := json.MarshalIndent(decoded.Token, "", "  ")
	if err != nil {
		printErr(err)
	}

	fmt.Println(string(jsonToken))
	return nil
}

func printErr(msg error) {
	fmt.Println(msg.Error())
	os.Exit(1)
}
