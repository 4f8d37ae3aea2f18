// Command filler is the intent-filler process entrypoint: it wires every
// package in this module into the pipeline the root intentfiller package
// drives, the
// same panic-on-startup-error shape blackholedex's cmd/main.go used for
// a single chain, generalized here to every chain configs/config.yml
// names.
package main

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/ChoSanghyuk/intentfiller"
	"github.com/ChoSanghyuk/intentfiller/configs"
	"github.com/ChoSanghyuk/intentfiller/internal/cache"
	"github.com/ChoSanghyuk/intentfiller/internal/db"
	"github.com/ChoSanghyuk/intentfiller/internal/util"
	"github.com/ChoSanghyuk/intentfiller/pkg/chainclient"
	"github.com/ChoSanghyuk/intentfiller/pkg/contractclient"
	"github.com/ChoSanghyuk/intentfiller/pkg/contractinteraction"
	"github.com/ChoSanghyuk/intentfiller/pkg/monitor"
	"github.com/ChoSanghyuk/intentfiller/pkg/pricing"
	"github.com/ChoSanghyuk/intentfiller/pkg/strategy"
	"github.com/ChoSanghyuk/intentfiller/pkg/swapplanner"
	"github.com/ChoSanghyuk/intentfiller/pkg/txlistener"
	ftypes "github.com/ChoSanghyuk/intentfiller/pkg/types"
)

// rpcRateLimit bounds RPC calls per chain to a conservative default; a
// provider-specific override per chain isn't in the config surface yet.
const rpcRateLimit = 10.0

func main() {
	_ = godotenv.Load(".env.local") // dev convenience only; production sets real env vars

	encryptedPk := os.Getenv("ENC_PK")
	if encryptedPk == "" {
		panic("ENC_PK not set")
	}

	key := os.Getenv("KEY")
	if key == "" {
		panic("KEY not set")
	}

	pkHex, err := util.Decrypt([]byte(key), encryptedPk)
	if err != nil {
		panic(err)
	}

	signingKey, err := contractclient.ParsePrivateKeyHex(pkHex)
	if err != nil {
		panic(err)
	}
	filler := crypto.PubkeyToAddress(signingKey.PublicKey)

	conf, err := configs.LoadConfig("configs/config.yml")
	if err != nil {
		panic(err)
	}

	gatewayABI, err := util.LoadABI("abis/gateway.json")
	if err != nil {
		panic(err)
	}
	hostABI, err := util.LoadABI("abis/host.json")
	if err != nil {
		panic(err)
	}
	batchExecutorABI, err := util.LoadABI("abis/batch_executor.json")
	if err != nil {
		panic(err)
	}
	erc20ABI, err := util.LoadABI("abis/erc20.json")
	if err != nil {
		panic(err)
	}
	v2FactoryABI, err := util.LoadABI("abis/uniswap_v2_factory.json")
	if err != nil {
		panic(err)
	}
	v2RouterABI, err := util.LoadABI("abis/uniswap_v2_router.json")
	if err != nil {
		panic(err)
	}
	v3FactoryABI, err := util.LoadABI("abis/uniswap_v3_factory.json")
	if err != nil {
		panic(err)
	}
	v3PoolABI, err := util.LoadABI("abis/uniswap_v3_pool.json")
	if err != nil {
		panic(err)
	}
	v3QuoterABI, err := util.LoadABI("abis/uniswap_v3_quoter.json")
	if err != nil {
		panic(err)
	}
	v4QuoterABI, err := util.LoadABI("abis/uniswap_v4_quoter.json")
	if err != nil {
		panic(err)
	}

	registry := chainclient.NewRegistry()
	defer registry.Close()

	type chainRuntime struct {
		name     string
		cfg      configs.ChainConfig
		client   *ethclient.Client
		gateway  contractclient.ContractClient
		host     contractclient.ContractClient
		batch    contractclient.ContractClient
		tokens   map[common.Address]contractclient.ContractClient
		decimals map[common.Address]int32
		planner  *swapplanner.Planner
		gasPrice *big.Int
	}

	runtimes := make(map[string]*chainRuntime)

	for name, chainCfg := range conf.Chains {
		if err := registry.Register(name, chainCfg.RPCURL); err != nil {
			panic(err)
		}
		clients, err := registry.Get(name)
		if err != nil {
			panic(err)
		}

		gatewayAddr := common.HexToAddress(chainCfg.IntentGatewayAddress)
		gateway := contractclient.NewContractClient(clients.Write, gatewayAddr, gatewayABI)
		host := contractclient.NewContractClient(clients.Write, common.HexToAddress(chainCfg.ISMPHostAddress), hostABI)
		batch := contractclient.NewContractClient(clients.Write, common.HexToAddress(chainCfg.BatchExecutorAddress), batchExecutorABI)

		quoter := &contractinteraction.AMMQuoter{
			Eth:       clients.Read,
			V2Factory: contractclient.NewContractClient(clients.Read, common.HexToAddress(chainCfg.UniswapV2Factory), v2FactoryABI),
			V2Router:  contractclient.NewContractClient(clients.Read, common.HexToAddress(chainCfg.UniswapV2Router), v2RouterABI),
			V3Factory: contractclient.NewContractClient(clients.Read, common.HexToAddress(chainCfg.UniswapV3Factory), v3FactoryABI),
			V3Quoter:  contractclient.NewContractClient(clients.Read, common.HexToAddress(chainCfg.UniswapV3Quoter), v3QuoterABI),
			V3PoolABI: v3PoolABI,
			V4Quoter:  contractclient.NewContractClient(clients.Read, common.HexToAddress(chainCfg.UniswapV4Quoter), v4QuoterABI),
		}

		stableAddrs := map[common.Address]bool{
			common.HexToAddress(chainCfg.DAIAsset):  true,
			common.HexToAddress(chainCfg.USDTAsset): true,
			common.HexToAddress(chainCfg.USDCAsset): true,
		}
		tokens := make(map[common.Address]contractclient.ContractClient, len(stableAddrs))
		decimalsByAddr := make(map[common.Address]int32, len(stableAddrs)+1)
		for addr := range stableAddrs {
			tokens[addr] = contractclient.NewContractClient(clients.Write, addr, erc20ABI)
			decimalsByAddr[addr] = fetchDecimals(tokens[addr], addr, chainCfg.NativeDecimals)
		}
		decimalsByAddr[common.Address{}] = chainCfg.NativeDecimals

		gasPrice, err := clients.Read.SuggestGasPrice(context.Background())
		if err != nil {
			gasPrice = big.NewInt(1_000_000_000) // 1 gwei fallback when the node's suggestion RPC is unavailable
		}

		planner := &swapplanner.Planner{
			Quoter:    quoter,
			Simulator: &contractinteraction.CallSimulator{Eth: clients.Read, From: filler},
			Router:    common.HexToAddress(chainCfg.UniversalRouterAddress),
			WETH:      common.HexToAddress(chainCfg.WrappedNativeAsset),
			Tokens: swapplanner.TokenAddresses{
				Addr: [4]common.Address{
					common.HexToAddress(chainCfg.DAIAsset),
					common.HexToAddress(chainCfg.USDTAsset),
					common.HexToAddress(chainCfg.USDCAsset),
					{},
				},
				Decimals: [4]int32{
					decimalsByAddr[common.HexToAddress(chainCfg.DAIAsset)],
					decimalsByAddr[common.HexToAddress(chainCfg.USDTAsset)],
					decimalsByAddr[common.HexToAddress(chainCfg.USDCAsset)],
					chainCfg.NativeDecimals,
				},
			},
		}

		runtimes[name] = &chainRuntime{
			name:     name,
			cfg:      chainCfg,
			client:   clients.Read,
			gateway:  gateway,
			host:     host,
			batch:    batch,
			tokens:   tokens,
			decimals: decimalsByAddr,
			planner:  planner,
			gasPrice: gasPrice,
		}
	}

	prices := map[string]decimal.Decimal{}
	for name, rt := range runtimes {
		prices[name+"/"+common.Address{}.Hex()] = decimal.NewFromInt(1) // native pricing needs a live feed; pinned here as a placeholder seam
		prices[name+"/"+common.HexToAddress(rt.cfg.DAIAsset).Hex()] = decimal.NewFromInt(1)
		prices[name+"/"+common.HexToAddress(rt.cfg.USDTAsset).Hex()] = decimal.NewFromInt(1)
		prices[name+"/"+common.HexToAddress(rt.cfg.USDCAsset).Hex()] = decimal.NewFromInt(1)
	}
	oracle := pricing.NewStaticOracle(prices)

	decimalsOf := func(chain string, token common.Address) int32 {
		rt, ok := runtimes[chain]
		if !ok {
			return 18
		}
		if d, ok := rt.decimals[token]; ok {
			return d
		}
		return 18
	}

	var mirror cache.Mirror
	if dsn := os.Getenv("FILLER_DB_DSN"); dsn != "" {
		recorder, err := db.NewSnapshotRecorder(dsn)
		if err != nil {
			panic(err)
		}
		mirror = recorder
	}
	orderCache := cache.New(mirror)

	decoder := &contractinteraction.OrderDecoder{GatewayABI: gatewayABI}
	mon := monitor.New(decoder, orderCache.Seen)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for name, rt := range runtimes {
		limiter := util.NewRateLimiter(rpcRateLimit, int(rpcRateLimit)*2)
		gatewayAddr := common.HexToAddress(rt.cfg.IntentGatewayAddress)
		if err := mon.RegisterChain(ctx, name, rt.client, gatewayABI, gatewayAddr, limiter); err != nil {
			panic(err)
		}
	}

	confirmationPolicy := make(map[string]ftypes.ConfirmationPolicyEntry, len(conf.ConfirmationPolicy))
	for chain, entry := range conf.ConfirmationPolicy {
		confirmationPolicy[chain] = ftypes.ConfirmationPolicyEntry{
			MinUSD:   big.NewInt(entry.MinUSD),
			MaxUSD:   big.NewInt(entry.MaxUSD),
			MinConfs: entry.MinConfs,
			MaxConfs: entry.MaxConfs,
		}
	}

	confirmationsOf := func(ctx context.Context, chain string, txHash common.Hash) (int, error) {
		rt, ok := runtimes[chain]
		if !ok {
			return 0, fmt.Errorf("no client for chain %s", chain)
		}
		receipt, err := rt.client.TransactionReceipt(ctx, txHash)
		if err != nil {
			return 0, err
		}
		head, err := rt.client.BlockNumber(ctx)
		if err != nil {
			return 0, err
		}
		if head < receipt.BlockNumber.Uint64() {
			return 0, nil
		}
		return int(head-receipt.BlockNumber.Uint64()) + 1, nil
	}

	feeTokenDecimals := conf.FeeToken.Decimals
	allowBlockLists := convertAllowBlockLists(conf.AllowBlockLists)

	var strategies []strategy.Strategy
	for srcName, srcRt := range runtimes {
		for destName, destRt := range runtimes {
			if srcName == destName {
				continue
			}

			feeTokenAddr := common.HexToAddress(destRt.cfg.USDCAsset)

			listener := txlistener.NewTxListener(
				destRt.client,
				txlistener.WithPollInterval(3*time.Second),
				txlistener.WithTimeout(5*time.Minute),
			)

			estimator := &contractinteraction.GasEstimator{
				SourceHost:       srcRt.host,
				DestGateway:      destRt.gateway,
				Oracle:           oracle,
				SourceChain:      srcName,
				DestChain:        destName,
				FeeToken:         feeTokenAddr,
				FeeTokenDecimals: feeTokenDecimals,
				GasPrice:         destRt.gasPrice,
			}

			destGatewayAddr := common.HexToAddress(destRt.cfg.IntentGatewayAddress)
			destClient := destRt.client
			filledProbe := func(ctx context.Context, commitment [32]byte) (bool, error) {
				return contractinteraction.IsFilled(ctx, destClient, destGatewayAddr, commitment)
			}

			destHeight := func(ctx context.Context) (uint64, error) {
				return destRt.client.BlockNumber(ctx)
			}

			basic := &strategy.BasicFiller{
				Gateway:         destRt.gateway,
				TokenClients:    destRt.tokens,
				Oracle:          oracle,
				Cache:           orderCache,
				TxListener:      listener,
				SourceChain:     srcName,
				DestChain:       destName,
				FeeToken:        feeTokenAddr,
				FeeDecimals:     feeTokenDecimals,
				Filler:          filler,
				Key:             signingKey,
				GasPrice:        destRt.gasPrice,
				DecimalsOf:      decimalsOf,
				DestHeight:      destHeight,
				Estimator:       estimator,
				FilledProbe:     filledProbe,
				AllowBlockLists: allowBlockLists,
			}
			strategies = append(strategies, basic)

			balancesOf := func(ctx context.Context) (ftypes.TokenBalances, error) {
				var bal ftypes.TokenBalances
				for _, t := range ftypes.AllStableTokens {
					if t == ftypes.Native {
						v, err := destRt.client.BalanceAt(ctx, filler, nil)
						if err != nil {
							return ftypes.TokenBalances{}, err
						}
						bal.Native = v
						continue
					}
					addr := destRt.planner.Tokens.Addr[t]
					client, ok := destRt.tokens[addr]
					if !ok {
						continue
					}
					out, err := client.Call(&filler, "balanceOf", filler)
					if err != nil || len(out) == 0 {
						return ftypes.TokenBalances{}, fmt.Errorf("read balance for %s: %w", addr.Hex(), err)
					}
					v, _ := out[0].(*big.Int)
					bal.Set(t, v)
				}
				return bal, nil
			}

			outputTokenOf := func(token ftypes.TokenID) (ftypes.StableToken, bool) {
				addr := token.Address()
				for _, t := range ftypes.AllStableTokens {
					if t == ftypes.Native && token.IsNative() {
						return t, true
					}
					if destRt.planner.Tokens.Addr[t] == addr {
						return t, true
					}
				}
				return 0, false
			}

			stable := &strategy.StableSwapFiller{
				Gateway:         destRt.gateway,
				BatchExecutor:   destRt.batch,
				Planner:         destRt.planner,
				Oracle:          oracle,
				Cache:           orderCache,
				TxListener:      listener,
				SourceChain:     srcName,
				DestChain:       destName,
				FeeToken:        feeTokenAddr,
				FeeDecimals:     feeTokenDecimals,
				Filler:          filler,
				Key:             signingKey,
				GasPrice:        destRt.gasPrice,
				DestHeight:      destHeight,
				Balances:        balancesOf,
				OutputTokenOf:   outputTokenOf,
				Estimator:       estimator,
				FilledProbe:     filledProbe,
				AllowBlockLists: allowBlockLists,
			}
			strategies = append(strategies, stable)
		}
	}

	orchestrator := &intentfiller.Filler{
		Monitor:             mon,
		Oracle:              oracle,
		Cache:               orderCache,
		Strategies:          strategies,
		ConfirmationPolicy:  confirmationPolicy,
		Confirmations:       confirmationsOf,
		DecimalsOf:          decimalsOf,
		MaxConcurrentOrders: conf.MaxConcurrentOrders,
	}

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		_ = http.ListenAndServe(":2112", nil)
	}()

	reportChan := make(chan ftypes.Report, 64)
	go func() {
		if err := orchestrator.Run(ctx, reportChan); err != nil {
			fmt.Printf("intentfiller: Run exited: %v\n", err)
		}
		close(reportChan)
	}()

	for update := range reportChan {
		fmt.Printf("[%s] %s: %s %s\n", update.Timestamp.Format(time.RFC3339), update.OrderID, update.Phase, update.Message)
	}
}

// convertAllowBlockLists turns the YAML hex-string config into
// ftypes.AllowBlockLists; an empty field in an item stays the zero address,
// which AllowBlockListItem.matches treats as a wildcard.
func convertAllowBlockLists(cfg configs.AllowBlockListsConfig) ftypes.AllowBlockLists {
	convert := func(items []configs.AllowBlockListItemConfig) []ftypes.AllowBlockListItem {
		out := make([]ftypes.AllowBlockListItem, 0, len(items))
		for _, item := range items {
			out = append(out, ftypes.AllowBlockListItem{
				Sender:      hexToAddressOrZero(item.Sender),
				InputToken:  hexToAddressOrZero(item.InputToken),
				OutputToken: hexToAddressOrZero(item.OutputToken),
			})
		}
		return out
	}

	return ftypes.AllowBlockLists{
		AllowList: convert(cfg.AllowList),
		BlockList: convert(cfg.BlockList),
	}
}

func hexToAddressOrZero(hex string) common.Address {
	if hex == "" {
		return common.Address{}
	}
	return common.HexToAddress(hex)
}

// fetchDecimals calls a token's decimals() method, falling back to
// fallback (typically the chain's nativeDecimals config value) when the
// call fails — some test/mock tokens don't implement the optional method.
func fetchDecimals(client contractclient.ContractClient, addr common.Address, fallback int32) int32 {
	out, err := client.Call(nil, "decimals")
	if err != nil || len(out) == 0 {
		return fallback
	}
	d, ok := out[0].(uint8)
	if !ok {
		return fallback
	}
	return int32(d)
}
