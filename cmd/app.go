package cmd

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/Mohsinsiddi/w3tx/internal/chain"
	"github.com/Mohsinsiddi/w3tx/internal/config"
	"github.com/Mohsinsiddi/w3tx/internal/rpc"
	"github.com/Mohsinsiddi/w3tx/internal/sender"
	"github.com/Mohsinsiddi/w3tx/internal/token"
	"github.com/Mohsinsiddi/w3tx/internal/txqueue"
	"github.com/Mohsinsiddi/w3tx/internal/wallet"
	"go.uber.org/zap"
)

// app wires the queue components for one command invocation. The registry
// is restored from queue.json and written back by save.
type app struct {
	client   *chain.Client
	network  chain.Network
	chainID  *big.Int
	wallet   *wallet.Wallet
	registry *txqueue.Registry
	alloc    *txqueue.Allocator
	monitor  *txqueue.Monitor
	tokens   *token.Reader

	// nil for watch-only wallets
	signer   *wallet.Signer
	dispatch *txqueue.Dispatcher
	replacer *txqueue.Replacer
	batch    *txqueue.BatchSender
	actions  *token.Actions

	saveMu sync.Mutex
}

type appOptions struct {
	needSigner bool
	batch      []txqueue.BatchOption
	onTick     func(txqueue.TickReport)
}

// newApp restores the queue and wires every component. With needSigner the
// selected wallet must be able to sign and the node is asked for its chain
// ID when the config does not pin one.
func newApp(ctx context.Context, opts appOptions) (*app, error) {
	url, err := selectEndpoint(ctx)
	if err != nil {
		return nil, err
	}
	a := &app{
		client:   chain.NewClient(url),
		registry: txqueue.NewRegistry(),
	}
	a.tokens = token.NewReader(a.client)

	saved, err := cfg.LoadQueue()
	if err != nil {
		return nil, err
	}
	if err := a.registry.Restore(saved); err != nil {
		return nil, fmt.Errorf("restoring queue: %w", err)
	}
	log.Debug("queue restored", zap.Int("entries", len(saved)), zap.String("path", cfg.QueuePath()))

	monitorOpts := []txqueue.MonitorOption{
		txqueue.WithInterval(cfg.Monitor()),
		txqueue.WithMonitorLogger(log.Named("monitor")),
	}
	if opts.onTick != nil {
		monitorOpts = append(monitorOpts, txqueue.OnTick(opts.onTick))
	}
	a.monitor = txqueue.NewMonitor(a.registry, a.client, monitorOpts...)

	a.chainID, err = resolveChainID(ctx, a.client, opts.needSigner)
	if err != nil {
		return nil, err
	}
	if a.chainID != nil {
		a.network = chain.DescribeNetwork(a.chainID.Int64())
	}

	w, err := selectedWallet()
	if err != nil {
		if opts.needSigner {
			return nil, err
		}
		log.Debug("no wallet selected", zap.Error(err))
		return a, nil
	}
	a.wallet = w
	if w.Type != wallet.TypeSigning {
		if opts.needSigner {
			return nil, fmt.Errorf("%w: %q\n  To add a signing wallet: w3tx wallet add <name> --key <private-key>", wallet.ErrWatchOnly, w.Name)
		}
		return a, nil
	}
	if a.chainID == nil {
		// Read-only commands skip the chain ID lookup; signing needs it.
		if a.chainID, err = resolveChainID(ctx, a.client, true); err != nil {
			return nil, err
		}
		a.network = chain.DescribeNetwork(a.chainID.Int64())
	}

	if a.signer, err = newWalletManager().Signer(w.Name); err != nil {
		return nil, err
	}
	submit := sender.New(a.signer, a.client, a.chainID, sender.WithLogger(log.Named("sender")))
	account := submit.Account()

	a.alloc = txqueue.NewAllocator(a.client)
	a.dispatch = txqueue.NewDispatcher(a.registry, a.alloc, submit, a.client, account,
		txqueue.WithDispatcherLogger(log.Named("dispatch")))
	a.replacer = txqueue.NewReplacer(a.registry, submit, a.client, account,
		txqueue.WithReplacerLogger(log.Named("replace")))
	batchOpts := append([]txqueue.BatchOption{
		txqueue.WithGrace(cfg.Grace()),
		txqueue.WithBatchLogger(log.Named("batch")),
	}, opts.batch...)
	a.batch = txqueue.NewBatchSender(a.registry, a.alloc, submit, a.client, account, batchOpts...)
	a.actions = token.NewActions(a.dispatch,
		token.WithEstimator(a.client),
		token.WithActionsLogger(log.Named("token")))
	return a, nil
}

// save writes the registry back to queue.json.
func (a *app) save() error {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()
	return cfg.SaveQueue(a.registry.List())
}

// saveOnExit is deferred by commands that mutate the queue; a save failure
// replaces a nil command error.
func (a *app) saveOnExit(errp *error) {
	if err := a.save(); err != nil && *errp == nil {
		*errp = err
	}
}

// account returns the selected wallet address, or "" without a wallet.
func (a *app) account() string {
	if a.wallet == nil {
		return ""
	}
	return a.wallet.Address
}

// selectEndpoint picks the node for this invocation from the primary RPC
// URL and its fallbacks.
func selectEndpoint(ctx context.Context) (string, error) {
	strategy, err := rpc.ParseStrategy(cfg.RPCStrategy)
	if err != nil {
		return "", err
	}
	url, probed, err := rpc.Select(ctx, cfg.RPCEndpoints(), strategy, rpc.DefaultProbeTimeout)
	for _, e := range probed {
		log.Debug("rpc probe", zap.String("url", e.URL), zap.Duration("latency", e.Latency),
			zap.Uint64("block", e.BlockNumber), zap.Error(e.Err))
	}
	if err != nil {
		return "", fmt.Errorf("%w (tried %d endpoints)", err, len(probed))
	}
	return url, nil
}

// resolveChainID prefers the configured chain ID. Without one the node is
// asked only when required.
func resolveChainID(ctx context.Context, client *chain.Client, required bool) (*big.Int, error) {
	if cfg.ChainID > 0 {
		return big.NewInt(cfg.ChainID), nil
	}
	if !required {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, config.RPCTimeout)
	defer cancel()
	id, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading chain ID from %s: %w", client.URL(), err)
	}
	return id, nil
}

// queueActions adapts the app to the queue board's key bindings.
type queueActions struct{ a *app }

func (q queueActions) SpeedUp(ctx context.Context, hash string) (txqueue.QueuedTransaction, error) {
	if q.a.replacer == nil {
		return txqueue.QueuedTransaction{}, wallet.ErrWatchOnly
	}
	added, err := q.a.replacer.SpeedUp(ctx, hash, cfg.SpeedUpPercent)
	if err != nil {
		return added, err
	}
	return added, q.a.save()
}

func (q queueActions) Cancel(ctx context.Context, hash string) (txqueue.QueuedTransaction, error) {
	if q.a.replacer == nil {
		return txqueue.QueuedTransaction{}, wallet.ErrWatchOnly
	}
	added, err := q.a.replacer.Cancel(ctx, hash)
	if err != nil {
		return added, err
	}
	return added, q.a.save()
}

func (q queueActions) Remove(hash string) error {
	if err := q.a.registry.Remove(hash); err != nil {
		return err
	}
	return q.a.save()
}

// selectedWallet resolves --wallet, then W3TX_WALLET / the config default,
// then the wallet manager's implicit default.
func selectedWallet() (*wallet.Wallet, error) {
	// Lookups never touch the keychain.
	mgr := wallet.NewManager(wallet.WithStore(wallet.NewJSONStore(cfg.WalletsPath())))
	name := walletFlag
	if name == "" {
		name = cfg.Wallet()
	}
	if name == "" {
		if w := mgr.Default(); w != nil {
			return w, nil
		}
		return nil, errors.New("no wallet selected\n  Add one with: w3tx wallet add <name> --key <private-key>")
	}
	w, err := mgr.Get(name)
	if err != nil {
		return nil, fmt.Errorf(
			"wallet %q not found: run `w3tx wallet list` or set a default with `w3tx wallet use <name>`",
			name,
		)
	}
	return w, nil
}

// newWalletManager creates a Manager backed by the config-dir JSON store
// and the OS keychain.
func newWalletManager() *wallet.Manager {
	return wallet.NewManager(
		wallet.WithStore(wallet.NewJSONStore(cfg.WalletsPath())),
		wallet.WithKeystore(wallet.DefaultKeystore()),
	)
}
