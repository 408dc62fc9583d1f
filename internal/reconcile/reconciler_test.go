package reconcile

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"testing"

	"marketbot/internal/exchange"
	"marketbot/internal/models"
	"marketbot/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	logger.InfoLogger = zap.NewNop()
	logger.FatalLogger = zap.NewNop()
	os.Exit(m.Run())
}

type fakeExchange struct {
	balances   []exchange.Balance
	balanceErr error
	prices     map[string]float64
	trades     map[string][]exchange.TradeRow

	tradeCalls  int
	pageForCall func(call int) []exchange.TradeRow
}

func (f *fakeExchange) Balances(_ context.Context, _ models.Credentials) ([]exchange.Balance, error) {
	return f.balances, f.balanceErr
}

func (f *fakeExchange) Price(_ context.Context, pair string) (float64, error) {
	p, ok := f.prices[pair]
	if !ok {
		return 0, fmt.Errorf("unsupported pair %s", pair)
	}
	return p, nil
}

func (f *fakeExchange) MyTrades(_ context.Context, _ models.Credentials, symbol string, limit int, fromID int64) ([]exchange.TradeRow, error) {
	f.tradeCalls++
	if f.pageForCall != nil {
		return f.pageForCall(f.tradeCalls), nil
	}

	all := f.trades[symbol]
	out := make([]exchange.TradeRow, 0, limit)
	for _, row := range all {
		if fromID > 0 && row.ID < fromID {
			continue
		}
		out = append(out, row)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type memLedger struct {
	mu   sync.Mutex
	rows map[string]map[int64]models.Trade // userKey+symbol -> tradeID -> row
}

func newMemLedger() *memLedger {
	return &memLedger{rows: make(map[string]map[int64]models.Trade)}
}

func key(userID int64, symbol string) string {
	return fmt.Sprintf("%d/%s", userID, symbol)
}

func (m *memLedger) InsertIfAbsent(_ context.Context, tr *models.Trade) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(tr.UserID, tr.Symbol)
	if m.rows[k] == nil {
		m.rows[k] = make(map[int64]models.Trade)
	}
	if _, exists := m.rows[k][tr.TradeID]; exists {
		return false, nil
	}
	m.rows[k][tr.TradeID] = *tr
	return true, nil
}

func (m *memLedger) ListBySymbol(_ context.Context, userID int64, symbol string) ([]models.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Trade, 0)
	for _, tr := range m.rows[key(userID, symbol)] {
		out = append(out, tr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TradeID < out[j].TradeID })
	return out, nil
}

func (m *memLedger) MaxTradeID(_ context.Context, userID int64, symbol string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var max int64
	for id := range m.rows[key(userID, symbol)] {
		if id > max {
			max = id
		}
	}
	return max, nil
}

type memSnapshots struct {
	last    *models.PnLSnapshot
	upserts int
}

func (m *memSnapshots) Upsert(_ context.Context, snap *models.PnLSnapshot) error {
	m.last = snap
	m.upserts++
	return nil
}

type plainDecrypter struct{}

func (plainDecrypter) Decrypt(blob string) (string, error) {
	if blob == "" {
		return "", fmt.Errorf("empty blob")
	}
	return blob, nil
}

func testUser() *models.UserAccount {
	return &models.UserAccount{ID: 1, APIKeyBlob: "key", APISecretBlob: "secret"}
}

func newReconciler(ex *fakeExchange, ledger *memLedger, snaps *memSnapshots) *Reconciler {
	return New(ex, ledger, snaps, plainDecrypter{}, Config{
		AllowedAssets:  []string{"BTC"},
		TrackedSymbols: []string{"BTCUSDT"},
		PageSize:       500,
		PageCap:        10,
	})
}

func TestReconcilePnLExample(t *testing.T) {
	ex := &fakeExchange{
		balances: []exchange.Balance{{Asset: "BTC", Total: 1}},
		prices:   map[string]float64{"BTCUSDT": 150},
		trades: map[string][]exchange.TradeRow{
			"BTCUSDT": {
				{ID: 1, Price: "100", Qty: "1", QuoteQty: "100", Commission: "1", CommissionAsset: "USDT", IsBuyer: true, Time: 1000},
			},
		},
	}
	ledger := newMemLedger()
	snaps := &memSnapshots{}

	require.NoError(t, newReconciler(ex, ledger, snaps).Reconcile(context.Background(), testUser()))

	require.NotNil(t, snaps.last)
	// averageBuyPrice = (1*100 + 1)/1 = 101
	assert.InDelta(t, 49.0, snaps.last.TotalProfit, 1e-9)
	assert.InDelta(t, 101.0, snaps.last.TotalEffectiveCost, 1e-9)
	assert.InDelta(t, 100*49.0/101.0, snaps.last.PnLPercent, 1e-9)
	assert.InDelta(t, 150.0, snaps.last.TotalBalanceUSD, 1e-9)

	// realized gain/loss on the ingested buy: (150-100)*1*+1
	rows, err := ledger.ListBySymbol(context.Background(), 1, "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.InDelta(t, 50.0, rows[0].RealizedGainLoss, 1e-9)
}

func TestReconcileIdempotent(t *testing.T) {
	ex := &fakeExchange{
		balances: []exchange.Balance{{Asset: "BTC", Total: 2}},
		prices:   map[string]float64{"BTCUSDT": 120},
		trades: map[string][]exchange.TradeRow{
			"BTCUSDT": {
				{ID: 1, Price: "100", Qty: "1", QuoteQty: "100", IsBuyer: true, Time: 1000},
				{ID: 2, Price: "110", Qty: "1", QuoteQty: "110", IsBuyer: true, Time: 2000},
			},
		},
	}
	ledger := newMemLedger()
	snaps := &memSnapshots{}
	r := newReconciler(ex, ledger, snaps)

	require.NoError(t, r.Reconcile(context.Background(), testUser()))
	first, err := ledger.ListBySymbol(context.Background(), 1, "BTCUSDT")
	require.NoError(t, err)
	firstSnap := *snaps.last

	require.NoError(t, r.Reconcile(context.Background(), testUser()))
	second, err := ledger.ListBySymbol(context.Background(), 1, "BTCUSDT")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, firstSnap.TotalProfit, snaps.last.TotalProfit)
	assert.Equal(t, firstSnap.TotalEffectiveCost, snaps.last.TotalEffectiveCost)
	assert.Equal(t, 2, snaps.upserts)
}

func TestReconcileSkipsFailingAsset(t *testing.T) {
	ex := &fakeExchange{
		balances: []exchange.Balance{
			{Asset: "BTC", Total: 1},
			{Asset: "DOGE", Total: 1000}, // not allow-listed
		},
		prices: map[string]float64{}, // every price lookup fails
		trades: map[string][]exchange.TradeRow{},
	}
	ledger := newMemLedger()
	snaps := &memSnapshots{}

	require.NoError(t, newReconciler(ex, ledger, snaps).Reconcile(context.Background(), testUser()))

	require.NotNil(t, snaps.last)
	assert.Empty(t, snaps.last.Balances)
	assert.Equal(t, 0.0, snaps.last.TotalBalanceUSD)
	assert.Equal(t, 0.0, snaps.last.PnLPercent)
}

func TestReconcileCredentialFailureAborts(t *testing.T) {
	ex := &fakeExchange{}
	r := newReconciler(ex, newMemLedger(), &memSnapshots{})

	err := r.Reconcile(context.Background(), &models.UserAccount{ID: 1})
	assert.Error(t, err)
	assert.Equal(t, 0, ex.tradeCalls)
}

func TestPaginationShortPageTerminates(t *testing.T) {
	// 1200 trades: two full pages of 500 and a short page of 200
	all := make([]exchange.TradeRow, 0, 1200)
	for i := 1; i <= 1200; i++ {
		all = append(all, exchange.TradeRow{
			ID: int64(i), Price: "100", Qty: "0.001", IsBuyer: true, Time: int64(i),
		})
	}
	ex := &fakeExchange{
		balances: []exchange.Balance{{Asset: "BTC", Total: 1.2}},
		prices:   map[string]float64{"BTCUSDT": 100},
		trades:   map[string][]exchange.TradeRow{"BTCUSDT": all},
	}
	ledger := newMemLedger()

	require.NoError(t, newReconciler(ex, ledger, &memSnapshots{}).Reconcile(context.Background(), testUser()))

	rows, err := ledger.ListBySymbol(context.Background(), 1, "BTCUSDT")
	require.NoError(t, err)
	assert.Len(t, rows, 1200)
	assert.Equal(t, 3, ex.tradeCalls)
}

func TestPaginationCapTerminates(t *testing.T) {
	// exchange that never returns a short page
	full := make([]exchange.TradeRow, 500)
	for i := range full {
		full[i] = exchange.TradeRow{ID: int64(i + 1), Price: "100", Qty: "1", IsBuyer: true}
	}
	ex := &fakeExchange{
		balances:    []exchange.Balance{{Asset: "BTC", Total: 1}},
		prices:      map[string]float64{"BTCUSDT": 100},
		pageForCall: func(int) []exchange.TradeRow { return full },
	}
	ledger := newMemLedger()

	require.NoError(t, newReconciler(ex, ledger, &memSnapshots{}).Reconcile(context.Background(), testUser()))

	// the cap bounds the loop even though every page comes back full
	assert.Equal(t, 10, ex.tradeCalls)
}

func TestComputePnLFullyExitedAssetContributesNothing(t *testing.T) {
	ledger := newMemLedger()
	_, _ = ledger.InsertIfAbsent(context.Background(), &models.Trade{
		TradeID: 1, UserID: 1, Symbol: "BTCUSDT", Price: 100, Quantity: 1, IsBuyer: true,
	})
	_, _ = ledger.InsertIfAbsent(context.Background(), &models.Trade{
		TradeID: 2, UserID: 1, Symbol: "BTCUSDT", Price: 120, Quantity: 1, IsBuyer: false,
	})

	r := newReconciler(&fakeExchange{}, ledger, &memSnapshots{})
	snap := r.computePnL(context.Background(), 1, []models.AssetBalance{
		{Asset: "BTC", Amount: 0.0001, PriceUSD: 130},
	})

	assert.Equal(t, 0.0, snap.TotalProfit)
	assert.Equal(t, 0.0, snap.TotalEffectiveCost)
	assert.Equal(t, 0.0, snap.PnLPercent)
}

type recordingNotifier struct {
	chatIDs  []int64
	messages []string
}

func (r *recordingNotifier) Notifyf(chatID int64, format string, args ...any) {
	r.chatIDs = append(r.chatIDs, chatID)
	r.messages = append(r.messages, fmt.Sprintf(format, args...))
}

func TestReconcileNotifiesSummary(t *testing.T) {
	ex := &fakeExchange{
		balances: []exchange.Balance{{Asset: "BTC", Total: 1}},
		prices:   map[string]float64{"BTCUSDT": 150},
		trades:   map[string][]exchange.TradeRow{},
	}
	n := &recordingNotifier{}
	r := New(ex, newMemLedger(), &memSnapshots{}, plainDecrypter{}, Config{
		AllowedAssets:  []string{"BTC"},
		TrackedSymbols: []string{"BTCUSDT"},
		Notifier:       n,
	})

	user := testUser()
	user.TelegramChatID = 77
	require.NoError(t, r.Reconcile(context.Background(), user))

	require.Len(t, n.messages, 1)
	assert.Equal(t, int64(77), n.chatIDs[0])
	assert.Contains(t, n.messages[0], "150.00")

	// no chat configured, no message
	require.NoError(t, r.Reconcile(context.Background(), testUser()))
	assert.Len(t, n.messages, 1)
}
