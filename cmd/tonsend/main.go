package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/term"

	"github.com/opencove/tonsend/address"
	"github.com/opencove/tonsend/keystore"
	"github.com/opencove/tonsend/tlb"
	"github.com/opencove/tonsend/ton/sender"
	"github.com/opencove/tonsend/ton/wallet"
	"github.com/opencove/tonsend/toncenter"
)

// Config contains all configuration parameters for the application.
// The keystore passphrase is prompted at runtime, never configured.
type Config struct {
	APIBaseURL   string `envconfig:"TONSEND_API_URL" default:"https://toncenter.com/api/v2"`
	APIKey       string `envconfig:"TONSEND_API_KEY"`
	KeystorePath string `envconfig:"TONSEND_KEYSTORE" required:"true"`
	WalletAddr   string `envconfig:"TONSEND_WALLET" required:"true"`
	Subwallet    uint32 `envconfig:"TONSEND_SUBWALLET" default:"698983191"`
	Timeout      int    `envconfig:"TONSEND_TIMEOUT_SECONDS" default:"30"`
	Debug        bool   `envconfig:"TONSEND_DEBUG"`
}

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if err := run(log); err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}

func run(log zerolog.Logger) error {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return fmt.Errorf("failed to process config: %w", err)
	}

	if cfg.Debug {
		log = log.Level(zerolog.DebugLevel)
	} else {
		log = log.Level(zerolog.InfoLevel)
	}

	if len(os.Args) < 2 {
		usage()
		return errors.New("no command given")
	}

	walletAddr, err := address.ParseAddr(cfg.WalletAddr)
	if err != nil {
		return fmt.Errorf("bad wallet address %q: %w", cfg.WalletAddr, err)
	}

	store := keystore.NewStore(cfg.KeystorePath)

	pub, err := store.PublicKey()
	if err != nil {
		return fmt.Errorf("failed to load keystore: %w", err)
	}

	api := toncenter.NewClient(cfg.APIBaseURL,
		toncenter.WithAPIKey(cfg.APIKey),
		toncenter.WithTimeout(time.Duration(cfg.Timeout)*time.Second),
		toncenter.WithLogger(log),
	)

	snd := sender.New(api, api, api, store, wallet.State{
		PublicKey: pub,
		Address:   walletAddr,
		Subwallet: cfg.Subwallet,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	switch os.Args[1] {
	case "nft":
		return runNFT(ctx, log, snd, os.Args[2:])
	case "renew":
		return runRenew(ctx, log, snd, os.Args[2:])
	case "link":
		return runLink(ctx, log, snd, os.Args[2:])
	case "receive":
		return runReceive(walletAddr)
	default:
		usage()
		return fmt.Errorf("unknown command %q", os.Args[1])
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: tonsend <command> [flags]

commands:
  nft     -item <addr> -to <addr> [-comment <text>] [-send]
  renew   -domain <addr> [-send]
  link    -domain <addr> [-target <addr>] [-send]
  receive print the wallet address as a QR code`)
}

func runNFT(ctx context.Context, log zerolog.Logger, snd *sender.Sender, args []string) error {
	fs := flag.NewFlagSet("nft", flag.ExitOnError)
	item := fs.String("item", "", "NFT item contract address")
	to := fs.String("to", "", "new owner address")
	comment := fs.String("comment", "", "text comment forwarded to the new owner")
	send := fs.Bool("send", false, "broadcast instead of estimating")
	fs.Parse(args)

	itemAddr, err := address.ParseAddr(*item)
	if err != nil {
		return fmt.Errorf("bad -item address: %w", err)
	}
	toAddr, err := address.ParseAddr(*to)
	if err != nil {
		return fmt.Errorf("bad -to address: %w", err)
	}

	params := sender.NFTTransferParams{
		Item:     itemAddr,
		NewOwner: toAddr,
		Comment:  *comment,
	}

	fee, err := snd.EstimateNFTTransfer(ctx, params)
	if err != nil {
		return err
	}
	printFee(fee.TotalExtra())

	if !*send {
		return nil
	}

	passphrase, err := promptPassphrase()
	if err != nil {
		return err
	}
	defer clear(passphrase)

	if err = snd.SendNFTTransfer(ctx, params, passphrase, fee); err != nil {
		return err
	}
	log.Info().Str("item", itemAddr.String()).Str("to", toAddr.String()).Msg("nft transfer sent")
	return nil
}

func runRenew(ctx context.Context, log zerolog.Logger, snd *sender.Sender, args []string) error {
	fs := flag.NewFlagSet("renew", flag.ExitOnError)
	domain := fs.String("domain", "", "DNS item contract address")
	send := fs.Bool("send", false, "broadcast instead of estimating")
	fs.Parse(args)

	domainAddr, err := address.ParseAddr(*domain)
	if err != nil {
		return fmt.Errorf("bad -domain address: %w", err)
	}

	params := sender.DNSRenewParams{Domain: domainAddr}

	fee, err := snd.EstimateDNSRenew(ctx, params)
	if err != nil {
		return err
	}
	printFee(fee.TotalExtra())

	if !*send {
		return nil
	}

	passphrase, err := promptPassphrase()
	if err != nil {
		return err
	}
	defer clear(passphrase)

	if err = snd.SendDNSRenew(ctx, params, passphrase, fee); err != nil {
		return err
	}
	log.Info().Str("domain", domainAddr.String()).Msg("dns renewal sent")
	return nil
}

func runLink(ctx context.Context, log zerolog.Logger, snd *sender.Sender, args []string) error {
	fs := flag.NewFlagSet("link", flag.ExitOnError)
	domain := fs.String("domain", "", "DNS item contract address")
	target := fs.String("target", "", "wallet to link the domain to, empty to unlink")
	send := fs.Bool("send", false, "broadcast instead of estimating")
	fs.Parse(args)

	domainAddr, err := address.ParseAddr(*domain)
	if err != nil {
		return fmt.Errorf("bad -domain address: %w", err)
	}

	params := sender.DNSLinkParams{Domain: domainAddr}
	if *target != "" {
		targetAddr, err := address.ParseAddr(*target)
		if err != nil {
			return fmt.Errorf("bad -target address: %w", err)
		}
		params.Target = targetAddr
	}

	fee, err := snd.EstimateDNSLink(ctx, params)
	if err != nil {
		return err
	}
	printFee(fee.TotalExtra())

	if !*send {
		return nil
	}

	passphrase, err := promptPassphrase()
	if err != nil {
		return err
	}
	defer clear(passphrase)

	if err = snd.SendDNSLink(ctx, params, passphrase, fee); err != nil {
		return err
	}
	log.Info().Str("domain", domainAddr.String()).Msg("dns link sent")
	return nil
}

func runReceive(addr *address.Address) error {
	qr, err := qrcode.New("ton://transfer/"+addr.String(), qrcode.Medium)
	if err != nil {
		return fmt.Errorf("failed to build qr code: %w", err)
	}
	fmt.Println(qr.ToSmallString(false))
	fmt.Println(addr.String())
	return nil
}

func printFee(extra *big.Int) {
	v := new(big.Int).Set(extra)
	sign := ""
	if v.Sign() < 0 {
		sign = "-"
		v.Neg(v)
	}
	fmt.Printf("estimated network fee: %s%s TON\n", sign, tlb.MustFromNano(v, 9).String())
}

func promptPassphrase() ([]byte, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, errors.New("stdin is not a terminal: run interactively to enter the passphrase")
	}
	fmt.Fprint(os.Stderr, "Keystore passphrase: ")
	defer fmt.Fprintln(os.Stderr)

	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return nil, fmt.Errorf("failed to read passphrase: %w", err)
	}
	if len(raw) == 0 {
		return nil, errors.New("passphrase cannot be empty")
	}
	return raw, nil
}
