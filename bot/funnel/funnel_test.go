package funnel

import (
	"context"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/romnatson3/pharmacy/bot/format"
	"github.com/romnatson3/pharmacy/bot/texts"
	"github.com/romnatson3/pharmacy/catalog"
	"github.com/romnatson3/pharmacy/core/cache"
)

// syncQueue runs enqueued jobs inline so tests observe their effects.
type syncQueue struct {
	names []string
}

func (q *syncQueue) Enqueue(ctx context.Context, name string, run func(ctx context.Context) error) error {
	q.names = append(q.names, name)
	return run(ctx)
}

// recorder captures which task ran and with what arguments.
type recorder struct {
	called  string
	user    catalog.User
	userID  int64
	chatID  int64
	query   string
	choice  string
	chainID int64
}

func (r *recorder) Welcome(_ context.Context, user catalog.User, chatID int64) error {
	r.called, r.user, r.chatID = TaskWelcome, user, chatID
	return nil
}

func (r *recorder) Districts(_ context.Context, chatID int64) error {
	r.called, r.chatID = TaskDistricts, chatID
	return nil
}

func (r *recorder) SearchPrompt(_ context.Context, chatID int64) error {
	r.called, r.chatID = TaskSearchPrompt, chatID
	return nil
}

func (r *recorder) TypeMore(_ context.Context, chatID int64) error {
	r.called, r.chatID = TaskTypeMore, chatID
	return nil
}

func (r *recorder) StartOver(_ context.Context, chatID int64) error {
	r.called, r.chatID = TaskStartOver, chatID
	return nil
}

func (r *recorder) MedicationChoices(_ context.Context, userID, chatID int64, query string) error {
	r.called, r.userID, r.chatID, r.query = TaskMedicationChoices, userID, chatID, query
	return nil
}

func (r *recorder) SearchResult(_ context.Context, userID, chatID int64, choice string) error {
	r.called, r.userID, r.chatID, r.choice = TaskSearchResult, userID, chatID, choice
	return nil
}

func (r *recorder) ChainStocks(_ context.Context, userID, chatID, chainID int64) error {
	r.called, r.userID, r.chatID, r.chainID = TaskChainStocks, userID, chatID, chainID
	return nil
}

func (r *recorder) ProductOfTheDay(_ context.Context, chatID int64) error {
	r.called, r.chatID = TaskProductOfTheDay, chatID
	return nil
}

func newFunnel() (*Funnel, *recorder, *cache.MemoryStore) {
	store := cache.NewMemoryStore()
	rec := &recorder{}
	return New(NewState(store), &syncQueue{}, rec), rec, store
}

func message(userID, chatID int64, text string) *tele.Message {
	return &tele.Message{
		Sender: &tele.User{ID: userID, Username: "petro", FirstName: "Петро"},
		Chat:   &tele.Chat{ID: chatID},
		Text:   text,
	}
}

func TestStartCommandRunsWelcome(t *testing.T) {
	f, rec, _ := newFunnel()
	if err := f.HandleMessage(context.Background(), message(7, 70, "/start")); err != nil {
		t.Fatalf("handle message: %v", err)
	}
	if rec.called != TaskWelcome {
		t.Fatalf("task = %q, want welcome", rec.called)
	}
	if rec.user.ID != 7 || rec.user.Username != "petro" || rec.chatID != 70 {
		t.Fatalf("welcome args = %+v chat %d", rec.user, rec.chatID)
	}
}

func TestSearchButtonClearsStateAndListsDistricts(t *testing.T) {
	f, rec, store := newFunnel()
	ctx := context.Background()
	state := NewState(store)
	if err := state.SetDistrict(ctx, 7, "3"); err != nil {
		t.Fatalf("seed district: %v", err)
	}
	if err := state.SetStockIDs(ctx, 7, []int64{1, 2}); err != nil {
		t.Fatalf("seed results: %v", err)
	}

	if err := f.HandleMessage(ctx, message(7, 70, texts.SearchByMedicationButton)); err != nil {
		t.Fatalf("handle message: %v", err)
	}
	if rec.called != TaskDistricts {
		t.Fatalf("task = %q, want districts", rec.called)
	}
	if _, err := state.District(ctx, 7); err != ErrStaleState {
		t.Fatalf("district should be cleared, got err %v", err)
	}
	if _, err := state.StockIDs(ctx, 7); err != ErrStaleState {
		t.Fatalf("results should be cleared, got err %v", err)
	}
}

func TestShortQueryAsksForMore(t *testing.T) {
	f, rec, _ := newFunnel()
	if err := f.HandleMessage(context.Background(), message(7, 70, "  аб ")); err != nil {
		t.Fatalf("handle message: %v", err)
	}
	if rec.called != TaskTypeMore {
		t.Fatalf("task = %q, want type_more", rec.called)
	}
}

func TestQueryWithoutDistrictStartsOver(t *testing.T) {
	f, rec, _ := newFunnel()
	if err := f.HandleMessage(context.Background(), message(7, 70, "анальгін")); err != nil {
		t.Fatalf("handle message: %v", err)
	}
	if rec.called != TaskStartOver {
		t.Fatalf("task = %q, want start_over", rec.called)
	}
}

func TestQueryWithDistrictListsChoices(t *testing.T) {
	f, rec, store := newFunnel()
	ctx := context.Background()
	if err := NewState(store).SetDistrict(ctx, 7, catalog.AllDistricts); err != nil {
		t.Fatalf("seed district: %v", err)
	}
	if err := f.HandleMessage(ctx, message(7, 70, " анальгін ")); err != nil {
		t.Fatalf("handle message: %v", err)
	}
	if rec.called != TaskMedicationChoices {
		t.Fatalf("task = %q, want medication_choices", rec.called)
	}
	if rec.query != "анальгін" {
		t.Fatalf("query = %q", rec.query)
	}
}

func TestMarkedChoiceRunsSearchResult(t *testing.T) {
	f, rec, _ := newFunnel()
	label := "Анальгін, 500 мг" + format.EncodeChoiceID(42)
	if err := f.HandleMessage(context.Background(), message(7, 70, label)); err != nil {
		t.Fatalf("handle message: %v", err)
	}
	if rec.called != TaskSearchResult {
		t.Fatalf("task = %q, want search_result", rec.called)
	}
	if rec.choice != label {
		t.Fatalf("choice text not passed through")
	}
}

func TestIncompleteMessageIgnored(t *testing.T) {
	f, rec, _ := newFunnel()
	if err := f.HandleMessage(context.Background(), &tele.Message{Text: "hi"}); err != nil {
		t.Fatalf("handle message: %v", err)
	}
	if rec.called != "" {
		t.Fatalf("task %q ran for incomplete update", rec.called)
	}
}

func callback(userID, chatID int64, data string) *tele.Callback {
	return &tele.Callback{
		Sender:  &tele.User{ID: userID},
		Message: &tele.Message{Chat: &tele.Chat{ID: chatID}},
		Data:    data,
	}
}

func TestDistrictCallbackCachesChoice(t *testing.T) {
	f, rec, store := newFunnel()
	now := time.Now()
	store.SetClock(func() time.Time { return now })
	ctx := context.Background()
	if err := f.HandleCallback(ctx, callback(7, 70, "\fdistrict|5")); err != nil {
		t.Fatalf("handle callback: %v", err)
	}
	if rec.called != TaskSearchPrompt {
		t.Fatalf("task = %q, want search_prompt", rec.called)
	}
	district, err := NewState(store).District(ctx, 7)
	if err != nil {
		t.Fatalf("district state: %v", err)
	}
	if district != "5" {
		t.Fatalf("district = %q, want 5", district)
	}
	ttl, ok := store.TTL(districtKey(7))
	if !ok || ttl != time.Hour {
		t.Fatalf("district ttl = %v ok=%v, want 1h", ttl, ok)
	}
}

func TestAllDistrictsCallback(t *testing.T) {
	f, _, store := newFunnel()
	ctx := context.Background()
	if err := f.HandleCallback(ctx, callback(7, 70, "\fdistrict|all")); err != nil {
		t.Fatalf("handle callback: %v", err)
	}
	district, err := NewState(store).District(ctx, 7)
	if err != nil {
		t.Fatalf("district state: %v", err)
	}
	if district != catalog.AllDistricts {
		t.Fatalf("district = %q, want all", district)
	}
}

func TestChainCallback(t *testing.T) {
	f, rec, _ := newFunnel()
	if err := f.HandleCallback(context.Background(), callback(7, 70, "\fchain|12")); err != nil {
		t.Fatalf("handle callback: %v", err)
	}
	if rec.called != TaskChainStocks {
		t.Fatalf("task = %q, want chain_stocks", rec.called)
	}
	if rec.chainID != 12 {
		t.Fatalf("chain id = %d, want 12", rec.chainID)
	}
}

func TestUnknownCallbackIgnored(t *testing.T) {
	f, rec, _ := newFunnel()
	if err := f.HandleCallback(context.Background(), callback(7, 70, "\fother|1")); err != nil {
		t.Fatalf("handle callback: %v", err)
	}
	if rec.called != "" {
		t.Fatalf("task %q ran for unknown callback", rec.called)
	}
}

func TestStateExpiry(t *testing.T) {
	store := cache.NewMemoryStore()
	now := time.Now()
	store.SetClock(func() time.Time { return now })
	state := NewState(store)
	ctx := context.Background()

	if err := state.SetDistrict(ctx, 7, "3"); err != nil {
		t.Fatalf("set district: %v", err)
	}
	now = now.Add(StateTTL + time.Second)
	if _, err := state.District(ctx, 7); err != ErrStaleState {
		t.Fatalf("expired district err = %v, want stale", err)
	}
}

func TestStockIDsRoundTrip(t *testing.T) {
	state := NewState(cache.NewMemoryStore())
	ctx := context.Background()
	if err := state.SetStockIDs(ctx, 7, []int64{3, 1, 2}); err != nil {
		t.Fatalf("set stock ids: %v", err)
	}
	ids, err := state.StockIDs(ctx, 7)
	if err != nil {
		t.Fatalf("stock ids: %v", err)
	}
	if len(ids) != 3 || ids[0] != 3 || ids[1] != 1 || ids[2] != 2 {
		t.Fatalf("ids = %v", ids)
	}
}
