package itemstats

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"

	"tft-analyzer/internal/db"
	"tft-analyzer/internal/loadout"
)

func ptr[T any](v T) *T { return &v }

type sliceSource []db.LoadoutObservation

func (s sliceSource) ForEachLoadout(ctx context.Context, fn func(db.LoadoutObservation) error) error {
	for _, obs := range s {
		if err := fn(obs); err != nil {
			return err
		}
	}
	return nil
}

type memWriter map[int][]db.CombinationStat

func (w memWriter) ReplaceCombinationStats(ctx context.Context, k int, stats []db.CombinationStat) error {
	w[k] = stats
	return nil
}

func obs(match, puuid, champ, key string, placement int) db.LoadoutObservation {
	return db.LoadoutObservation{PatchBucket: "P1", ChampionID: champ, MatchID: match, PUUID: puuid, ItemsKey: key, Placement: ptr(placement)}
}

var noComponents = loadout.NewComponentSet(nil)

func comboCounts(t *testing.T, k int, observations ...db.LoadoutObservation) map[string]int {
	t.Helper()
	agg, err := NewAggregator(k, noComponents, 4)
	if err != nil {
		t.Fatal(err)
	}
	for _, o := range observations {
		agg.Add(o)
	}
	out := make(map[string]int)
	for key, totals := range agg.Totals() {
		out[key.Combo.String()] = totals.Games
	}
	return out
}

func TestAggregator_DuplicateItems(t *testing.T) {
	unit := obs("m1", "p1", "Jinx", "A|A|B", 3)

	tests := []struct {
		k    int
		want map[string]int
	}{
		{1, map[string]int{"A": 1, "B": 1}},
		{2, map[string]int{"A|A": 1, "A|B": 1}},
		{3, map[string]int{"A|A|B": 1}},
	}

	for _, tt := range tests {
		got := comboCounts(t, tt.k, unit)
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("k=%d counts mismatch (-want +got):\n%s", tt.k, diff)
		}
	}
}

func TestAggregator_CountsOncePerGame(t *testing.T) {
	// two Jinx units on one board sharing a pair
	got := comboCounts(t, 2,
		obs("m1", "p1", "Jinx", "A|B", 2),
		obs("m1", "p1", "Jinx", "A|B|C", 2),
		obs("m2", "p1", "Jinx", "A|B", 5),
	)
	want := map[string]int{"A|B": 2, "A|C": 1, "B|C": 1}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregator_SkipsIneligible(t *testing.T) {
	components := loadout.NewComponentSet([]string{"TFT_Item_BFSword", "TFT_Item_TearOfTheGoddess"})
	agg, err := NewAggregator(2, components, 4)
	if err != nil {
		t.Fatal(err)
	}

	agg.Add(obs("m1", "p1", "Jinx", "", 1))
	agg.Add(obs("m1", "p2", "Jinx", "TFT_Item_BFSword|TFT_Item_Deathblade", 1))
	agg.Add(obs("m1", "p3", "Jinx", "TFT_Item_Deathblade|TFT_Item_TearOftheGoddess", 1))
	agg.Add(db.LoadoutObservation{PatchBucket: "P1", ChampionID: "Jinx", MatchID: "m1", PUUID: "p4", ItemsKey: "X|Y"})

	if got := agg.Totals(); len(got) != 0 {
		t.Errorf("expected no combinations, got %v", got)
	}

	if _, err := NewAggregator(4, components, 4); err == nil {
		t.Error("expected error for k=4")
	}
}

func TestAggregator_TopHalf(t *testing.T) {
	agg, _ := NewAggregator(1, noComponents, 4)
	for i, place := range []int{1, 4, 5, 8} {
		agg.Add(obs(string(rune('a'+i)), "p1", "Jinx", "X", place))
	}
	got := agg.Totals()[ComboKey{ChampionKey{"P1", "Jinx"}, loadout.Combos([]string{"X"}, 1)[0]}]
	want := ComboTotals{Games: 4, PlacementSum: 18, TopHalf: 2}
	if got != want {
		t.Errorf("totals = %+v, want %+v", got, want)
	}
	if got.AvgPlace() != 4.5 || got.TopHalfRate() != 0.5 {
		t.Errorf("avg = %v, rate = %v", got.AvgPlace(), got.TopHalfRate())
	}
}

func TestBaseline_DistinctGames(t *testing.T) {
	calc := NewBaselineCalculator()
	calc.Add(obs("m1", "p1", "Jinx", "A", 2))
	calc.Add(obs("m1", "p1", "Jinx", "B|C", 2))
	calc.Add(obs("m1", "p1", "Jinx", "", 2))
	calc.Add(obs("m2", "p1", "Jinx", "", 6))
	calc.Add(db.LoadoutObservation{PatchBucket: "P1", ChampionID: "Jinx", MatchID: "m3", PUUID: "p1"})
	calc.Add(obs("m1", "p2", "Ahri", "", 7))

	want := map[ChampionKey]Baseline{
		{"P1", "Jinx"}: {Games: 2, PlacementSum: 8},
		{"P1", "Ahri"}: {Games: 1, PlacementSum: 7},
	}
	if diff := cmp.Diff(want, calc.Baselines()); diff != "" {
		t.Errorf("baselines mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeDeltas_Sign(t *testing.T) {
	jinx := ChampionKey{"P1", "Jinx"}
	combos := map[string]loadout.Combo{}
	for _, id := range []string{"Good", "Even", "Bad"} {
		combos[id] = loadout.Combos([]string{id}, 1)[0]
	}
	totals := map[ComboKey]ComboTotals{
		{jinx, combos["Good"]}: {Games: 2, PlacementSum: 4, TopHalf: 2},
		{jinx, combos["Even"]}: {Games: 2, PlacementSum: 8, TopHalf: 1},
		{jinx, combos["Bad"]}:  {Games: 1, PlacementSum: 7},
		{ChampionKey{"P1", "Orphan"}, combos["Good"]}: {Games: 1, PlacementSum: 1, TopHalf: 1},
	}
	baselines := map[ChampionKey]Baseline{jinx: {Games: 4, PlacementSum: 16}}

	got := ComputeDeltas(totals, baselines)
	want := []db.CombinationStat{
		{PatchBucket: "P1", ChampionID: "Jinx", Items: []string{"Bad"}, Games: 1, AvgPlace: 7, Top4Rate: 0, BaselineAvgPlace: 4, Delta: 3},
		{PatchBucket: "P1", ChampionID: "Jinx", Items: []string{"Even"}, Games: 2, AvgPlace: 4, Top4Rate: 0.5, BaselineAvgPlace: 4, Delta: 0},
		{PatchBucket: "P1", ChampionID: "Jinx", Items: []string{"Good"}, Games: 2, AvgPlace: 2, Top4Rate: 1, BaselineAvgPlace: 4, Delta: -2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("deltas mismatch (-want +got):\n%s", diff)
	}
}

func TestReducer_Run(t *testing.T) {
	source := sliceSource{
		obs("m1", "p1", "Jinx", "X|Y", 2),
		obs("m2", "p1", "Jinx", "X|Y", 6),
		obs("m3", "p2", "Jinx", "", 4),
	}
	writer := memWriter{}

	res, err := NewReducer(source, writer, noComponents, 4, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if res.Observations != 3 {
		t.Errorf("observations = %d, want 3", res.Observations)
	}
	if b := res.Baselines[ChampionKey{"P1", "Jinx"}]; b.Games != 3 || b.AvgPlace() != 4 {
		t.Errorf("baseline = %+v", b)
	}

	wantK2 := []db.CombinationStat{
		{PatchBucket: "P1", ChampionID: "Jinx", Items: []string{"X", "Y"}, Games: 2, AvgPlace: 4, Top4Rate: 0.5, BaselineAvgPlace: 4, Delta: 0},
	}
	if diff := cmp.Diff(wantK2, writer[2]); diff != "" {
		t.Errorf("k=2 mismatch (-want +got):\n%s", diff)
	}
	if len(writer[1]) != 2 || len(writer[3]) != 0 {
		t.Errorf("k=1 rows = %d, k=3 rows = %d", len(writer[1]), len(writer[3]))
	}
	if _, ok := writer[3]; !ok {
		t.Error("k=3 table should still be rebuilt when empty")
	}
}

type failingSource struct{}

func (failingSource) ForEachLoadout(ctx context.Context, fn func(db.LoadoutObservation) error) error {
	return errors.New("disk gone")
}

func TestReducer_SourceError(t *testing.T) {
	writer := memWriter{}
	if _, err := NewReducer(failingSource{}, writer, noComponents, 4, nil).Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(writer) != 0 {
		t.Error("tables must not be touched when aggregation fails")
	}
}

type recordingSink struct {
	memWriter
	name    string
	created bool
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) CreateTables(ctx context.Context) error {
	s.created = true
	return nil
}

func TestPublish(t *testing.T) {
	res := &Result{}
	res.Stats[0] = []db.CombinationStat{{PatchBucket: "P1", ChampionID: "Jinx", Items: []string{"X"}, Games: 1}}

	a := &recordingSink{memWriter: memWriter{}, name: "a"}
	b := &recordingSink{memWriter: memWriter{}, name: "b"}
	if err := Publish(context.Background(), res, []Sink{a, b}, nil); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	for _, s := range []*recordingSink{a, b} {
		if !s.created || len(s.memWriter) != loadout.MaxK || len(s.memWriter[1]) != 1 {
			t.Errorf("sink %s: created=%v tables=%v", s.name, s.created, s.memWriter)
		}
	}
}

// Rebuilding against the real store clears combinations that no longer
// exist in the corpus.
func TestReducer_RebuildsStore(t *testing.T) {
	ctx := context.Background()
	store, err := db.Open(ctx, filepath.Join(t.TempDir(), "tft.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	stale := []db.CombinationStat{{PatchBucket: "P0", ChampionID: "Old", Items: []string{"Z", "Z"}, Games: 9}}
	if err := store.ReplaceCombinationStats(ctx, 2, stale); err != nil {
		t.Fatal(err)
	}

	rows := &db.MatchRows{
		Match:        db.MatchRow{MatchID: "m1", PatchBucket: ptr("P1")},
		Participants: []db.ParticipantRow{{MatchID: "m1", PUUID: "p1", Placement: ptr(3)}},
		Loadouts:     []db.UnitLoadoutRow{{MatchID: "m1", PUUID: "p1", ChampionID: "Jinx", UnitTier: 2, ItemsKey: "A|B"}},
	}
	if err := store.InsertMatch(ctx, rows); err != nil {
		t.Fatal(err)
	}

	if _, err := NewReducer(store, store, noComponents, 4, nil).Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got, err := store.CombinationStats(ctx, 2, db.StatsFilter{})
	if err != nil {
		t.Fatal(err)
	}
	want := []db.CombinationStat{
		{PatchBucket: "P1", ChampionID: "Jinx", Items: []string{"A", "B"}, Games: 1, AvgPlace: 3, Top4Rate: 1, BaselineAvgPlace: 3, Delta: 0},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("k=2 table mismatch (-want +got):\n%s", diff)
	}
}
