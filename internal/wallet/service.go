package wallet

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/defisafe/hotwallet/internal/config"
	"github.com/defisafe/hotwallet/internal/errs"
	"github.com/defisafe/hotwallet/internal/secret"
	"github.com/defisafe/hotwallet/internal/storage"
	"github.com/defisafe/hotwallet/internal/util"
	"github.com/defisafe/hotwallet/internal/wallet/address"
	"github.com/defisafe/hotwallet/internal/wallet/bitcoin"
	"github.com/defisafe/hotwallet/internal/wallet/keystore"
	"github.com/defisafe/hotwallet/internal/wallet/multisig"
	"github.com/defisafe/hotwallet/internal/wallet/nonces"
	"github.com/defisafe/hotwallet/internal/wallet/rotation"
	"github.com/defisafe/hotwallet/internal/wallet/signer"
)

const passwordSaltLen = 16

// CreateOptions tune wallet creation and restore.
type CreateOptions struct {
	// QuantumSafe selects the XChaCha20-Poly1305 envelope variant.
	QuantumSafe bool

	// Words is the mnemonic length for new wallets; zero means 24.
	Words int

	// MultisigThreshold, when positive, requires that many approvals on
	// SendMultiSig for this wallet.
	MultisigThreshold int

	// Networks restricts the wallet to the listed network tags. Empty
	// means unrestricted.
	Networks []string
}

// Service is the wallet custody boundary.
type Service interface {
	// CreateWallet generates a wallet and returns its recovery phrase.
	// The phrase is shown exactly once and never persisted.
	CreateWallet(ctx context.Context, name, password string, opts CreateOptions) (string, *Record, error)

	// RestoreWallet recreates a wallet from its recovery phrase.
	RestoreWallet(ctx context.Context, name, password, mnemonic string, opts CreateOptions) (*Record, error)

	// DeleteWallet removes a wallet and purges its nonce state. Needs no
	// password; fails only when the wallet does not exist.
	DeleteWallet(ctx context.Context, name string) error

	// ListWallets returns all wallet records.
	ListWallets(ctx context.Context) ([]*Record, error)

	// GetAddress derives the wallet's address on the given network.
	GetAddress(ctx context.Context, name, password, network string) (string, error)

	// GetBalance returns the wallet's balance on the given network as a
	// base-unit decimal string (wei or satoshis).
	GetBalance(ctx context.Context, name, password, network string) (string, error)

	// SendTransaction signs and broadcasts a transfer. Returns the
	// transaction hash or txid.
	SendTransaction(ctx context.Context, name, password, network, to, amount string) (string, error)

	// SendMultiSig validates the approval set, then signs and broadcasts.
	SendMultiSig(ctx context.Context, name, password string, req multisig.Request) (string, error)

	// RotateSigningKey re-encrypts the wallet envelope under a fresh data
	// key and advances the signing-key version. Returns the retired and
	// the new current version.
	RotateSigningKey(ctx context.Context, name, password string) (*rotation.Version, *rotation.Version, error)

	// MarkNonceUsed records an externally submitted transaction nonce so
	// local sequencing never reissues it.
	MarkNonceUsed(ctx context.Context, name, network string, nonce uint64) error

	// KeyHistory returns the wallet's signing-key versions, oldest first.
	KeyHistory(ctx context.Context, name string) ([]*rotation.Version, error)
}

type service struct {
	cfg       config.Service
	store     *Store
	keys      keystore.Service
	addresses address.Service
	eth       signer.Service
	btc       bitcoin.Signer
	btcChain  bitcoin.Client
	ledger    *nonces.Ledger
	rotations *rotation.Registry
	multi     *multisig.Coordinator
}

// NewService wires the wallet service over one storage backend.
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewService(cfg config.Service, backend storage.Storage) (Service, error) {
	keys, err := keystore.NewService(cfg)
	if err != nil {
		return nil, err
	}

	eth := signer.NewService(cfg)
	btcClient := bitcoin.NewClient(cfg.EsploraURL, cfg.FeeRateFallback, &http.Client{Timeout: cfg.RPCTimeout})

	return &service{
		cfg:       cfg,
		store:     NewStore(backend),
		keys:      keys,
		addresses: address.NewService(),
		eth:       eth,
		btc:       bitcoin.NewSigner(btcClient, cfg.BitcoinTestnet),
		btcChain:  btcClient,
		ledger:    nonces.NewLedger(backend),
		rotations: rotation.NewRegistry(backend),
		multi:     multisig.NewCoordinator(eth),
	}, nil
}

func (s *service) CreateWallet(ctx context.Context, name, password string, opts CreateOptions) (string, *Record, error) {
	words := opts.Words
	if words == 0 {
		words = DefaultMnemonicWords
	}

	mnemonic, err := newMnemonic(words)
	if err != nil {
		return "", nil, err
	}

	rec, err := s.createFromMnemonic(ctx, name, password, mnemonic, opts)
	if err != nil {
		return "", nil, err
	}

	return mnemonic, rec, nil
}

func (s *service) RestoreWallet(ctx context.Context, name, password, mnemonic string, opts CreateOptions) (*Record, error) {
	if err := validateMnemonic(mnemonic); err != nil {
		return nil, err
	}

	return s.createFromMnemonic(ctx, name, password, mnemonic, opts)
}

func (s *service) createFromMnemonic(ctx context.Context, name, password, mnemonic string, opts CreateOptions) (*Record, error) {
	if name == "" {
		return nil, errs.Validationf("wallet name must not be empty")
	}
	if err := keystore.ValidatePassword(password, keystore.DefaultPasswordPolicy()); err != nil {
		return nil, err
	}
	if opts.MultisigThreshold < 0 {
		return nil, errs.Validationf("multisig threshold must not be negative")
	}
	for _, network := range opts.Networks {
		if !address.IsEVM(network) && !address.IsBitcoin(network) {
			return nil, errs.Validationf("unsupported network: %s", network)
		}
	}

	masterKey := masterKeyFromMnemonic(mnemonic)
	defer masterKey.Wipe()

	rec := &Record{
		ID:                uuid.New(),
		Name:              name,
		QuantumSafe:       opts.QuantumSafe,
		MultisigThreshold: opts.MultisigThreshold,
		Networks:          opts.Networks,
		CreatedAt:         time.Now().UTC(),
	}

	// Derived addresses are public; recording them at creation lets later
	// operations (deletion, nonce bookkeeping) run without the password.
	rec.Addresses = make(map[string]string)
	for _, network := range []string{address.NetworkEthereum, address.NetworkBitcoin, address.NetworkBitcoinTest} {
		addr, derr := s.addresses.DeriveAddress(ctx, masterKey, network)
		if derr != nil {
			return nil, derr
		}
		rec.Addresses[network] = addr
	}

	env, err := s.keys.EncryptMasterKey(ctx, masterKey, rec.Identity(), rec.QuantumSafe)
	if err != nil {
		return nil, err
	}
	rec.Envelope = *env

	salt, err := secret.Random(passwordSaltLen)
	if err != nil {
		return nil, errs.Cryptof("failed to generate password salt")
	}
	rec.PasswordSalt = append([]byte(nil), salt.Bytes()...)
	salt.Wipe()

	verifier := keystore.PasswordVerifier(password, rec.PasswordSalt, s.cfg.PBKDF2Iterations)
	rec.PasswordHash = append([]byte(nil), verifier.Bytes()...)
	verifier.Wipe()

	if err := s.store.Save(ctx, rec); err != nil {
		return nil, err
	}

	// Key history survives delete and recreate under the same name; only
	// attach a fresh label when none exists yet.
	if _, err := s.rotations.Current(ctx, signingLabel(name)); errors.Is(err, errs.ErrNotFound) {
		if _, cerr := s.rotations.CreateLabel(ctx, signingLabel(name)); cerr != nil {
			return nil, cerr
		}
	} else if err != nil {
		return nil, err
	}

	log := util.LogFromContext(ctx)
	log.Info().Str("wallet", name).Bool("quantum_safe", rec.QuantumSafe).Msg("wallet created")

	return rec, nil
}

func (s *service) DeleteWallet(ctx context.Context, name string) error {
	rec, err := s.store.Get(ctx, name)
	if err != nil {
		return err
	}

	// Addresses were recorded at creation, so a lost password never makes
	// a wallet undeletable.
	addresses := make([]string, 0, len(rec.Addresses))
	for _, addr := range rec.Addresses {
		addresses = append(addresses, addr)
	}

	if err := s.store.Delete(ctx, name); err != nil {
		return err
	}

	if err := s.ledger.Purge(ctx, addresses); err != nil {
		return err
	}

	log := util.LogFromContext(ctx)
	log.Info().Str("wallet", name).Msg("wallet deleted")

	return nil
}

func (s *service) ListWallets(ctx context.Context) ([]*Record, error) {
	return s.store.List(ctx)
}

func (s *service) GetAddress(ctx context.Context, name, password, network string) (string, error) {
	rec, err := s.store.Get(ctx, name)
	if err != nil {
		return "", err
	}
	if err := rec.allowsNetwork(network); err != nil {
		return "", err
	}

	masterKey, err := s.unlock(ctx, rec, password)
	if err != nil {
		return "", err
	}
	defer masterKey.Wipe()

	return s.addresses.DeriveAddress(ctx, masterKey, network)
}

func (s *service) GetBalance(ctx context.Context, name, password, network string) (string, error) {
	addr, err := s.GetAddress(ctx, name, password, network)
	if err != nil {
		return "", err
	}

	if address.IsBitcoin(network) {
		sat, berr := s.btcChain.GetBalance(ctx, addr)
		if berr != nil {
			return "", berr
		}
		return fmt.Sprintf("%d", sat), nil
	}

	wei, err := s.eth.GetBalance(ctx, network, addr)
	if err != nil {
		return "", err
	}

	return wei.String(), nil
}

func (s *service) SendTransaction(ctx context.Context, name, password, network, to, amount string) (string, error) {
	rec, err := s.store.Get(ctx, name)
	if err != nil {
		return "", err
	}
	if err := rec.allowsNetwork(network); err != nil {
		return "", err
	}
	if rec.MultisigThreshold > 0 {
		return "", errs.Validationf("wallet %s requires multisig approval", name)
	}

	if address.IsBitcoin(network) {
		if _, err := bitcoin.ParseAmount(amount); err != nil {
			return "", err
		}
	} else if _, err := s.eth.ValidateTransfer(ctx, signer.TransferRequest{Network: network, To: to, Amount: amount}); err != nil {
		return "", err
	}

	masterKey, err := s.unlock(ctx, rec, password)
	if err != nil {
		return "", err
	}
	defer masterKey.Wipe()

	privateKey, err := s.addresses.DerivePrivateKey(ctx, masterKey, network)
	if err != nil {
		return "", err
	}
	defer privateKey.Wipe()

	var hash string
	if address.IsBitcoin(network) {
		hash, err = s.sendBitcoin(ctx, privateKey, to, amount)
	} else {
		hash, err = s.sendEthereum(ctx, masterKey, privateKey, network, to, amount)
	}
	if err != nil {
		return "", err
	}

	if err := s.rotations.RecordUsage(ctx, signingLabel(name)); err != nil {
		log := util.LogFromContext(ctx)
		log.Warn().Str("wallet", name).Msg("failed to record signing key usage")
	}

	return hash, nil
}

func (s *service) sendEthereum(ctx context.Context, masterKey, privateKey *secret.Buf, network, to, amount string) (string, error) {
	from, err := s.addresses.DeriveAddress(ctx, masterKey, network)
	if err != nil {
		return "", err
	}

	pending, err := s.eth.PendingNonce(ctx, network, from)
	if err != nil {
		return "", err
	}

	// The persisted ledger sequences send attempts; the transaction itself
	// is always signed with the chain's pending nonce, so a failed
	// broadcast never leaves a retry stranded one nonce ahead.
	if _, err := s.ledger.Reserve(ctx, signer.Canonical(network), from, pending); err != nil {
		return "", err
	}

	hash, err := s.eth.SendTransaction(ctx, privateKey, signer.TransferRequest{
		Network: network,
		To:      to,
		Amount:  amount,
		Nonce:   pending,
	})
	if err != nil {
		return "", err
	}

	if err := s.ledger.MarkUsed(ctx, signer.Canonical(network), from, pending); err != nil {
		log := util.LogFromContext(ctx)
		log.Warn().Str("address", from).Msg("failed to record used nonce")
	}

	return hash, nil
}

func (s *service) sendBitcoin(ctx context.Context, privateKey *secret.Buf, to, amount string) (string, error) {
	sat, err := bitcoin.ParseAmount(amount)
	if err != nil {
		return "", err
	}

	return s.btc.SendTransaction(ctx, privateKey, to, sat)
}

func (s *service) SendMultiSig(ctx context.Context, name, password string, req multisig.Request) (string, error) {
	rec, err := s.store.Get(ctx, name)
	if err != nil {
		return "", err
	}
	if err := rec.allowsNetwork(req.Network); err != nil {
		return "", err
	}
	if rec.MultisigThreshold > 0 && req.Threshold < rec.MultisigThreshold {
		return "", errs.Validationf("wallet %s requires at least %d approvals", name, rec.MultisigThreshold)
	}

	// Reject a bad approval set before unlocking anything.
	if err := s.multi.Validate(ctx, req); err != nil {
		return "", err
	}

	masterKey, err := s.unlock(ctx, rec, password)
	if err != nil {
		return "", err
	}
	defer masterKey.Wipe()

	privateKey, err := s.addresses.DerivePrivateKey(ctx, masterKey, req.Network)
	if err != nil {
		return "", err
	}
	defer privateKey.Wipe()

	from, err := s.addresses.DeriveAddress(ctx, masterKey, req.Network)
	if err != nil {
		return "", err
	}

	pending, err := s.eth.PendingNonce(ctx, req.Network, from)
	if err != nil {
		return "", err
	}

	if _, err := s.ledger.Reserve(ctx, signer.Canonical(req.Network), from, pending); err != nil {
		return "", err
	}

	hash, err := s.multi.Execute(ctx, privateKey, req, pending)
	if err != nil {
		return "", err
	}

	if err := s.ledger.MarkUsed(ctx, signer.Canonical(req.Network), from, pending); err != nil {
		log := util.LogFromContext(ctx)
		log.Warn().Str("address", from).Msg("failed to record used nonce")
	}

	if err := s.rotations.RecordUsage(ctx, signingLabel(name)); err != nil {
		log := util.LogFromContext(ctx)
		log.Warn().Str("wallet", name).Msg("failed to record signing key usage")
	}

	return hash, nil
}

func (s *service) RotateSigningKey(ctx context.Context, name, password string) (*rotation.Version, *rotation.Version, error) {
	rec, err := s.store.Get(ctx, name)
	if err != nil {
		return nil, nil, err
	}

	masterKey, err := s.unlock(ctx, rec, password)
	if err != nil {
		return nil, nil, err
	}
	defer masterKey.Wipe()

	// Rotation re-seals the envelope: a fresh salt derives a fresh data
	// key, so ciphertext encrypted under the retired version ages out.
	env, err := s.keys.EncryptMasterKey(ctx, masterKey, rec.Identity(), rec.QuantumSafe)
	if err != nil {
		return nil, nil, err
	}
	rec.Envelope = *env

	if err := s.store.Update(ctx, rec); err != nil {
		return nil, nil, err
	}

	return s.rotations.Rotate(ctx, signingLabel(name))
}

func (s *service) MarkNonceUsed(ctx context.Context, name, network string, nonce uint64) error {
	rec, err := s.store.Get(ctx, name)
	if err != nil {
		return err
	}
	if err := rec.allowsNetwork(network); err != nil {
		return err
	}

	tag := address.NetworkBitcoin
	if address.IsEVM(network) {
		tag = address.NetworkEthereum
	} else if signer.Canonical(network) == address.NetworkBitcoinTest {
		tag = address.NetworkBitcoinTest
	}

	addr, ok := rec.Addresses[tag]
	if !ok {
		return errs.NotFoundf("wallet %s has no recorded %s address", name, tag)
	}

	return s.ledger.MarkUsed(ctx, signer.Canonical(network), addr, nonce)
}

func (s *service) KeyHistory(ctx context.Context, name string) ([]*rotation.Version, error) {
	if _, err := s.store.Get(ctx, name); err != nil {
		return nil, err
	}

	return s.rotations.History(ctx, signingLabel(name))
}

// unlock verifies the password against the stored verifier and opens the
// envelope. Wrong password and corrupt record are indistinguishable to the
// caller.
func (s *service) unlock(ctx context.Context, rec *Record, password string) (*secret.Buf, error) {
	if err := keystore.ValidatePassword(password, keystore.DefaultPasswordPolicy()); err != nil {
		return nil, err
	}

	verifier := keystore.PasswordVerifier(password, rec.PasswordSalt, s.cfg.PBKDF2Iterations)
	defer verifier.Wipe()

	if subtle.ConstantTimeCompare(verifier.Bytes(), rec.PasswordHash) != 1 {
		return nil, errs.Cryptof("failed to decrypt wallet data")
	}

	return s.keys.DecryptMasterKey(ctx, &rec.Envelope, rec.Identity(), rec.QuantumSafe, password)
}

// allowsNetwork enforces the wallet's network restriction, if any.
func (r *Record) allowsNetwork(network string) error {
	if !address.IsEVM(network) && !address.IsBitcoin(network) {
		return errs.Validationf("unsupported network: %s", network)
	}
	if len(r.Networks) == 0 {
		return nil
	}

	for _, n := range r.Networks {
		if n == network {
			return nil
		}
	}

	return errs.Validationf("wallet %s is not enabled for network %s", r.Name, network)
}

func signingLabel(name string) string {
	return "wallet:" + name + ":signing"
}
