package cmd

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/Mohsinsiddi/w3tx/internal/ui"
	"github.com/Mohsinsiddi/w3tx/internal/wallet"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
)

var (
	verifySig     string
	verifyAddress string
	verifyTyped   bool

	permitToken    string
	permitFrom     string
	permitTo       string
	permitAmount   string
	permitNonce    uint64
	permitDeadline int64
	permitChainID  int64
)

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Sign and verify messages and EIP-712 permits",
}

var signMessageCmd = &cobra.Command{
	Use:   "message <message>",
	Short: "Sign a message with EIP-191 (personal_sign)",
	Long: `Sign a plaintext message using EIP-191 personal_sign.

The message is prefixed with "\x19Ethereum Signed Message:\n<len>"
before being hashed and signed.

Examples:
  w3tx sign message "hello world"
  w3tx sign message "login nonce: 12345" --wallet myWallet`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		message := args[0]

		w, err := selectedWallet()
		if err != nil {
			return err
		}
		if w.Type != wallet.TypeSigning {
			return fmt.Errorf("%w: %q", wallet.ErrWatchOnly, w.Name)
		}

		sig, err := wallet.SignMessage(w, newWalletManager().Keystore(), []byte(message))
		if err != nil {
			return fmt.Errorf("signing failed: %w", err)
		}
		sigHex := hexutil.Encode(sig)

		fmt.Println(ui.KeyValueBlock("Message Signed", [][2]string{
			{"Signer", ui.Addr(w.Address)},
			{"Message", message},
			{"Signature", sigHex},
		}))
		fmt.Println(ui.Hint("Verify: w3tx sign verify \"" + message + "\" --sig " + sigHex + " --address " + w.Address))
		return nil
	},
}

var signTypedCmd = &cobra.Command{
	Use:   "typed",
	Short: "Sign an EIP-712 Permit",
	Long: `Sign a Permit typed-data message (domain "ERC20Permit", version "1")
for the token contract. --amount is in the token's base units. Without
--deadline the permit expires in one hour.

Example:
  w3tx sign typed --token tt --to 0x7099...79C8 --amount 1000000000000000000`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tokenAddr, err := cfg.ResolveToken(permitToken)
		if err != nil {
			return err
		}
		amount, ok := new(big.Int).SetString(permitAmount, 10)
		if !ok {
			return fmt.Errorf("invalid --amount %q: expected an integer in base units", permitAmount)
		}

		a, err := newApp(cmd.Context(), appOptions{needSigner: true})
		if err != nil {
			return err
		}
		chainID := a.chainID
		if permitChainID > 0 {
			chainID = big.NewInt(permitChainID)
		}

		p, err := wallet.NewPermit(tokenAddr, chainID, a.account(), permitTo, amount, permitNonce, permitDeadline, time.Now())
		if err != nil {
			return err
		}
		sig, err := wallet.SignPermit(a.signer, p)
		if err != nil {
			return fmt.Errorf("signing failed: %w", err)
		}
		hash, err := p.Hash()
		if err != nil {
			return err
		}
		sigHex := hexutil.Encode(sig)

		fmt.Println(ui.KeyValueBlock("Permit Signed", [][2]string{
			{"Token", ui.Addr(p.Token)},
			{"Chain ID", p.ChainID.String()},
			{"From", ui.Addr(p.From)},
			{"To", ui.Addr(p.To)},
			{"Amount", p.Amount.String()},
			{"Nonce", fmt.Sprintf("%d", p.Nonce)},
			{"Deadline", time.Unix(p.Deadline, 0).UTC().Format(time.RFC3339)},
			{"Digest", hexutil.Encode(hash)},
			{"Signature", sigHex},
		}))
		fmt.Println(ui.Hint(fmt.Sprintf(
			"Verify: w3tx sign verify --typed --token %s --from %s --to %s --amount %s --nonce %d --deadline %d --chain-id %s --sig %s",
			p.Token, p.From, p.To, p.Amount, p.Nonce, p.Deadline, p.ChainID, sigHex)))
		return nil
	},
}

var signVerifyCmd = &cobra.Command{
	Use:   "verify [message]",
	Short: "Verify an EIP-191 message or an EIP-712 Permit signature",
	Long: `Recover the signer of a signature and compare it to the expected
address.

Examples:
  w3tx sign verify "hello world" --sig 0x... --address 0x...
  w3tx sign verify --typed --token 0x... --from 0x... --to 0x... \
      --amount 1000 --nonce 0 --deadline 1767225600 --chain-id 31337 --sig 0x...`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if verifySig == "" {
			return fmt.Errorf("--sig is required: provide the hex signature")
		}
		sigBytes, err := hexutil.Decode(verifySig)
		if err != nil {
			return fmt.Errorf("invalid signature hex: %w", err)
		}

		if verifyTyped {
			return verifyPermit(sigBytes)
		}
		if len(args) != 1 {
			return fmt.Errorf("message required (or --typed for a permit)")
		}
		message := args[0]

		recovered, err := wallet.VerifyMessage([]byte(message), sigBytes)
		if err != nil {
			return fmt.Errorf("verification failed: %w", err)
		}
		recoveredAddr := recovered.Hex()

		pairs := [][2]string{
			{"Message", message},
			{"Recovered Signer", ui.Addr(recoveredAddr)},
		}
		if verifyAddress != "" {
			if strings.EqualFold(recoveredAddr, verifyAddress) {
				pairs = append(pairs, [2]string{"Match", ui.Success("signature is valid, signer matches")})
			} else {
				pairs = append(pairs, [2]string{"Expected", ui.Addr(verifyAddress)})
				pairs = append(pairs, [2]string{"Match", ui.Err("signature does NOT match expected address")})
			}
		}
		fmt.Println(ui.KeyValueBlock("Signature Verification", pairs))
		return nil
	},
}

func verifyPermit(sig []byte) error {
	tokenAddr, err := cfg.ResolveToken(permitToken)
	if err != nil {
		return err
	}
	amount, ok := new(big.Int).SetString(permitAmount, 10)
	if !ok {
		return fmt.Errorf("invalid --amount %q: expected an integer in base units", permitAmount)
	}
	if permitDeadline == 0 {
		return fmt.Errorf("--deadline is required to rebuild the permit")
	}
	chainID := permitChainID
	if chainID == 0 {
		chainID = cfg.ChainID
	}
	if chainID == 0 {
		return fmt.Errorf("--chain-id is required")
	}

	p, err := wallet.NewPermit(tokenAddr, big.NewInt(chainID), permitFrom, permitTo, amount, permitNonce, permitDeadline, time.Now())
	if err != nil {
		return err
	}
	recovered, err := wallet.VerifyPermit(p, sig)
	pairs := [][2]string{
		{"Token", ui.Addr(p.Token)},
		{"Expected Signer", ui.Addr(p.From)},
		{"Recovered Signer", ui.Addr(recovered.Hex())},
	}
	switch {
	case err == nil:
		pairs = append(pairs, [2]string{"Match", ui.Success("permit signature is valid")})
	case errors.Is(err, wallet.ErrSignerMismatch):
		pairs = append(pairs, [2]string{"Match", ui.Err("permit was signed by someone else")})
	default:
		return fmt.Errorf("verification failed: %w", err)
	}
	if time.Now().Unix() > p.Deadline {
		pairs = append(pairs, [2]string{"Deadline", ui.Warn("expired")})
	}
	fmt.Println(ui.KeyValueBlock("Permit Verification", pairs))
	return nil
}

func init() {
	signVerifyCmd.Flags().StringVar(&verifySig, "sig", "", "hex signature to verify (required)")
	signVerifyCmd.Flags().StringVar(&verifyAddress, "address", "", "expected signer address (message mode)")
	signVerifyCmd.Flags().BoolVar(&verifyTyped, "typed", false, "verify an EIP-712 Permit")
	signVerifyCmd.Flags().StringVar(&permitFrom, "from", "", "permit owner (typed mode)")

	for _, c := range []*cobra.Command{signTypedCmd, signVerifyCmd} {
		c.Flags().StringVar(&permitToken, "token", "", "token address or alias")
		c.Flags().StringVar(&permitTo, "to", "", "permit spender")
		c.Flags().StringVar(&permitAmount, "amount", "0", "amount in base units")
		c.Flags().Uint64Var(&permitNonce, "nonce", 0, "permit nonce")
		c.Flags().Int64Var(&permitDeadline, "deadline", 0, "unix deadline (sign default: now + 1h)")
		c.Flags().Int64Var(&permitChainID, "chain-id", 0, "chain ID (default: config or node)")
	}

	signCmd.AddCommand(signMessageCmd, signTypedCmd, signVerifyCmd)
}
