// imprint-cli is a command-line client for imprintd: key management and
// signed token-type registration.
package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/imprintworks/imprintd/config"
	"github.com/imprintworks/imprintd/internal/rpc"
	"github.com/imprintworks/imprintd/internal/rpcclient"
	"github.com/imprintworks/imprintd/internal/wallet"
	"github.com/imprintworks/imprintd/pkg/types"
)

var (
	flagRPC     string
	flagDataDir string
	flagNetwork string
)

func main() {
	root := &cobra.Command{
		Use:           "imprint-cli",
		Short:         "Client for imprintd: wallets, signing, registration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagRPC, "rpc", "http://127.0.0.1:8640", "imprintd RPC endpoint")
	root.PersistentFlags().StringVar(&flagDataDir, "datadir", "", "data directory (default ~/.imprintd)")
	root.PersistentFlags().StringVar(&flagNetwork, "network", "mainnet", "mainnet or testnet")

	root.AddCommand(walletCmd())
	root.AddCommand(addressCmd())
	root.AddCommand(signRegistrationCmd())
	root.AddCommand(registerCmd())
	root.AddCommand(statusCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// cliConfig resolves datadir/network into a node config so the CLI shares
// imprintd's directory layout.
func cliConfig() (*config.Config, error) {
	network := config.Mainnet
	switch flagNetwork {
	case "mainnet":
	case "testnet":
		network = config.Testnet
	default:
		return nil, fmt.Errorf("unknown network %q", flagNetwork)
	}
	cfg := config.Default(network)
	if flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}
	types.SetAddressHRP(cfg.AddressHRP())
	return cfg, nil
}

func openKeystore() (*wallet.Keystore, error) {
	cfg, err := cliConfig()
	if err != nil {
		return nil, err
	}
	return wallet.NewKeystore(cfg.KeystoreDir())
}

// promptPassphrase reads a passphrase without echo.
func promptPassphrase(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	pass, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("read passphrase: %w", err)
	}
	return pass, nil
}

func promptNewPassphrase() ([]byte, error) {
	pass, err := promptPassphrase("Passphrase: ")
	if err != nil {
		return nil, err
	}
	confirm, err := promptPassphrase("Confirm passphrase: ")
	if err != nil {
		return nil, err
	}
	if string(pass) != string(confirm) {
		return nil, fmt.Errorf("passphrases do not match")
	}
	if len(pass) == 0 {
		return nil, fmt.Errorf("passphrase must not be empty")
	}
	return pass, nil
}

// ── wallet ──────────────────────────────────────────────────────────────

func walletCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Manage encrypted key wallets",
	}
	cmd.AddCommand(walletCreateCmd())
	cmd.AddCommand(walletImportCmd())
	cmd.AddCommand(walletListCmd())
	cmd.AddCommand(walletNewKeyCmd())
	return cmd
}

func walletCreateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new wallet with a fresh mnemonic",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mnemonic, err := wallet.GenerateMnemonic()
			if err != nil {
				return err
			}
			addr, err := createWallet(name, mnemonic)
			if err != nil {
				return err
			}
			fmt.Println("Wallet created. Write down the recovery mnemonic:")
			fmt.Println()
			fmt.Printf("  %s\n", mnemonic)
			fmt.Println()
			fmt.Printf("Address: %s\n", addr)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "wallet name (required)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func walletImportCmd() *cobra.Command {
	var name, mnemonic string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a wallet from a BIP-39 mnemonic",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !wallet.ValidateMnemonic(mnemonic) {
				return fmt.Errorf("invalid mnemonic")
			}
			addr, err := createWallet(name, mnemonic)
			if err != nil {
				return err
			}
			fmt.Printf("Wallet imported.\nAddress: %s\n", addr)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "wallet name (required)")
	cmd.Flags().StringVar(&mnemonic, "mnemonic", "", "24-word recovery mnemonic (required)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("mnemonic")
	return cmd
}

// createWallet encrypts the seed, stores it, and records key 0.
func createWallet(name, mnemonic string) (types.Address, error) {
	ks, err := openKeystore()
	if err != nil {
		return types.Address{}, err
	}
	pass, err := promptNewPassphrase()
	if err != nil {
		return types.Address{}, err
	}
	seed, err := wallet.SeedFromMnemonic(mnemonic, "")
	if err != nil {
		return types.Address{}, err
	}
	if err := ks.Create(name, seed, pass, wallet.DefaultParams()); err != nil {
		return types.Address{}, err
	}

	master, err := wallet.NewMasterKey(seed)
	if err != nil {
		return types.Address{}, err
	}
	key, err := master.DeriveSigningKey(0, 0)
	if err != nil {
		return types.Address{}, err
	}
	addr := key.Address()
	if err := ks.AddKey(name, wallet.KeyEntry{Index: 0, Name: "default", Address: addr.Hex()}); err != nil {
		return types.Address{}, err
	}
	if err := ks.SetKeyIndex(name, 1); err != nil {
		return types.Address{}, err
	}
	return addr, nil
}

func walletListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List wallets in the keystore",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ks, err := openKeystore()
			if err != nil {
				return err
			}
			names, err := ks.List()
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Println("No wallets.")
				return nil
			}
			for _, n := range names {
				fmt.Println(n)
			}
			return nil
		},
	}
}

func walletNewKeyCmd() *cobra.Command {
	var walletName, keyName string
	cmd := &cobra.Command{
		Use:   "new-key",
		Short: "Derive the next signing key in a wallet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ks, err := openKeystore()
			if err != nil {
				return err
			}
			key, idx, err := unlockKeyAt(ks, walletName, -1)
			if err != nil {
				return err
			}
			addr := key.Address()
			if keyName == "" {
				keyName = fmt.Sprintf("key-%d", idx)
			}
			if err := ks.AddKey(walletName, wallet.KeyEntry{Index: idx, Name: keyName, Address: addr.Hex()}); err != nil {
				return err
			}
			if err := ks.SetKeyIndex(walletName, idx+1); err != nil {
				return err
			}
			fmt.Printf("Key %d (%s): %s\n", idx, keyName, addr)
			return nil
		},
	}
	cmd.Flags().StringVar(&walletName, "wallet", "", "wallet name (required)")
	cmd.Flags().StringVar(&keyName, "key-name", "", "label for the new key")
	_ = cmd.MarkFlagRequired("wallet")
	return cmd
}

// unlockKeyAt decrypts the wallet seed and derives the key at the given
// index; index -1 means the wallet's next unused index. Account is fixed
// at 0.
func unlockKeyAt(ks *wallet.Keystore, name string, index int) (*wallet.HDKey, uint32, error) {
	pass, err := promptPassphrase("Passphrase: ")
	if err != nil {
		return nil, 0, err
	}
	seed, err := ks.Load(name, pass)
	if err != nil {
		return nil, 0, err
	}
	idx := uint32(index)
	if index < 0 {
		idx, err = ks.NextKeyIndex(name)
		if err != nil {
			return nil, 0, err
		}
	}
	master, err := wallet.NewMasterKey(seed)
	if err != nil {
		return nil, 0, err
	}
	key, err := master.DeriveSigningKey(0, idx)
	if err != nil {
		return nil, 0, err
	}
	return key, idx, nil
}

// ── address ─────────────────────────────────────────────────────────────

func addressCmd() *cobra.Command {
	var walletName string
	cmd := &cobra.Command{
		Use:   "address",
		Short: "Show the addresses recorded in a wallet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ks, err := openKeystore()
			if err != nil {
				return err
			}
			keys, err := ks.ListKeys(walletName)
			if err != nil {
				return err
			}
			for _, k := range keys {
				addr, err := types.ParseAddress(k.Address)
				if err != nil {
					return fmt.Errorf("corrupt key entry %d: %w", k.Index, err)
				}
				fmt.Printf("%-3d %-12s %s\n", k.Index, k.Name, addr)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&walletName, "wallet", "", "wallet name (required)")
	_ = cmd.MarkFlagRequired("wallet")
	return cmd
}

// ── registration ────────────────────────────────────────────────────────

type registrationFlags struct {
	walletName   string
	keyIndex     int
	metadataURI  string
	maxSupply    uint64
	primaryPrice uint64
	royaltyBps   uint32
	contentHash  string
	deadlineSecs uint64
}

func (f *registrationFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.walletName, "wallet", "", "wallet name (required)")
	cmd.Flags().IntVar(&f.keyIndex, "key", 0, "key index within the wallet")
	cmd.Flags().StringVar(&f.metadataURI, "metadata-uri", "", "token metadata URI (required)")
	cmd.Flags().Uint64Var(&f.maxSupply, "max-supply", 0, "maximum supply (required)")
	cmd.Flags().Uint64Var(&f.primaryPrice, "price", 0, "primary sale unit price")
	cmd.Flags().Uint32Var(&f.royaltyBps, "royalty-bps", 0, "creator royalty in basis points")
	cmd.Flags().StringVar(&f.contentHash, "content-hash", "", "32-byte content hash, hex (required)")
	cmd.Flags().Uint64Var(&f.deadlineSecs, "deadline-secs", 3600, "signature validity window in seconds")
	_ = cmd.MarkFlagRequired("wallet")
	_ = cmd.MarkFlagRequired("metadata-uri")
	_ = cmd.MarkFlagRequired("max-supply")
	_ = cmd.MarkFlagRequired("content-hash")
}

// signRegistration fetches the creator's current digest from the node and
// signs it locally. The seed never leaves the machine.
func signRegistration(f *registrationFlags) (rpc.RegisterSignedParam, rpc.DigestResult, error) {
	var (
		params rpc.RegisterSignedParam
		digest rpc.DigestResult
	)
	ks, err := openKeystore()
	if err != nil {
		return params, digest, err
	}
	key, _, err := unlockKeyAt(ks, f.walletName, f.keyIndex)
	if err != nil {
		return params, digest, err
	}
	creator := key.Address()
	deadline := uint64(time.Now().Unix()) + f.deadlineSecs

	client := rpcclient.New(flagRPC)
	err = client.Call("registrar_digest", rpc.NonceParam{
		Creator:      creator.Hex(),
		MetadataURI:  f.metadataURI,
		MaxSupply:    f.maxSupply,
		PrimaryPrice: f.primaryPrice,
		RoyaltyBps:   f.royaltyBps,
		ContentHash:  f.contentHash,
		Deadline:     deadline,
	}, &digest)
	if err != nil {
		return params, digest, fmt.Errorf("fetch digest: %w", err)
	}

	signer, err := key.Signer()
	if err != nil {
		return params, digest, err
	}
	sig, err := signer.Sign(digest.Digest[:])
	if err != nil {
		return params, digest, fmt.Errorf("sign digest: %w", err)
	}

	params = rpc.RegisterSignedParam{
		Creator:      creator.Hex(),
		MetadataURI:  f.metadataURI,
		MaxSupply:    f.maxSupply,
		PrimaryPrice: f.primaryPrice,
		RoyaltyBps:   f.royaltyBps,
		ContentHash:  f.contentHash,
		Deadline:     deadline,
		Signature:    hex.EncodeToString(sig),
	}
	return params, digest, nil
}

func signRegistrationCmd() *cobra.Command {
	var f registrationFlags
	cmd := &cobra.Command{
		Use:   "sign-registration",
		Short: "Sign a token-type registration without submitting it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			params, digest, err := signRegistration(&f)
			if err != nil {
				return err
			}
			fmt.Printf("Creator:   %s\n", params.Creator)
			fmt.Printf("Nonce:     %d\n", digest.Nonce)
			fmt.Printf("Deadline:  %d\n", params.Deadline)
			fmt.Printf("Digest:    %s\n", digest.Digest)
			fmt.Printf("Signature: %s\n", params.Signature)
			return nil
		},
	}
	f.bind(cmd)
	return cmd
}

func registerCmd() *cobra.Command {
	var f registrationFlags
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Sign and submit a token-type registration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			params, _, err := signRegistration(&f)
			if err != nil {
				return err
			}
			client := rpcclient.New(flagRPC)
			var res rpc.IDResult
			if err := client.Call("token_registerSigned", params, &res); err != nil {
				return fmt.Errorf("submit registration: %w", err)
			}
			fmt.Printf("Registered token type %d\n", res.ID)
			return nil
		},
	}
	f.bind(cmd)
	return cmd
}

// ── status ──────────────────────────────────────────────────────────────

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the node's deployment config",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := cliConfig(); err != nil {
				return err
			}
			client := rpcclient.New(flagRPC)
			var cfg json.RawMessage
			if err := client.Call("state_getConfig", nil, &cfg); err != nil {
				return err
			}
			var pretty map[string]interface{}
			if err := json.Unmarshal(cfg, &pretty); err != nil {
				return err
			}
			out, err := json.MarshalIndent(pretty, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}
