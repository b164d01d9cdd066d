package core

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"carboniq/internal/metrics"
	"carboniq/pkg/models"
)

// rankedBefore is the leaderboard order: score descending, then the
// earlier achievement time, then the lower user id. No two distinct users
// compare equal, so positions are dense and deterministic.
func rankedBefore(a, b models.LeaderboardEntry) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if !a.AchievedAt.Equal(b.AchievedAt) {
		return a.AchievedAt.Before(b.AchievedAt)
	}
	return a.UserID < b.UserID
}

// rankBoard is one scope's entries kept in rank order
type rankBoard struct {
	entries []models.LeaderboardEntry
	index   map[string]models.LeaderboardEntry
}

func newRankBoard() *rankBoard {
	return &rankBoard{index: make(map[string]models.LeaderboardEntry)}
}

func (b *rankBoard) search(e models.LeaderboardEntry) int {
	return sort.Search(len(b.entries), func(i int) bool { return !rankedBefore(b.entries[i], e) })
}

func (b *rankBoard) upsert(e models.LeaderboardEntry) {
	b.remove(e.UserID)
	i := b.search(e)
	b.entries = append(b.entries, models.LeaderboardEntry{})
	copy(b.entries[i+1:], b.entries[i:])
	b.entries[i] = e
	b.index[e.UserID] = e
}

func (b *rankBoard) remove(userID string) {
	old, ok := b.index[userID]
	if !ok {
		return
	}
	i := b.search(old)
	b.entries = append(b.entries[:i], b.entries[i+1:]...)
	delete(b.index, userID)
}

// position is the 1-based rank of userID, 0 when absent
func (b *rankBoard) position(userID string) int {
	e, ok := b.index[userID]
	if !ok {
		return 0
	}
	return b.search(e) + 1
}

func boardFrom(entries []models.LeaderboardEntry) *rankBoard {
	b := &rankBoard{
		entries: append([]models.LeaderboardEntry(nil), entries...),
		index:   make(map[string]models.LeaderboardEntry, len(entries)),
	}
	sort.Slice(b.entries, func(i, j int) bool { return rankedBefore(b.entries[i], b.entries[j]) })
	for _, e := range b.entries {
		b.index[e.UserID] = e
	}
	return b
}

type windowBoard struct {
	board      *rankBoard
	computedAt time.Time
}

// Ranker serves every leaderboard from memory. Global, institution and
// category boards are updated per user as stats change; time window boards
// are replaced wholesale by periodic recomputation from the ledger. Reads
// take one read lock, so a response never mixes two snapshots.
type Ranker struct {
	mu        sync.RWMutex
	boards    map[string]*rankBoard
	members   map[string]models.UserStats
	windows   map[models.Period]*windowBoard
	updatedAt time.Time
	staleness time.Duration
	now       func() time.Time
}

// NewRanker creates an empty ranker. Window boards older than staleness are
// served with a warning; 0 disables the check.
func NewRanker(staleness time.Duration, now func() time.Time) *Ranker {
	if now == nil {
		now = time.Now
	}
	return &Ranker{
		boards:    make(map[string]*rankBoard),
		members:   make(map[string]models.UserStats),
		windows:   make(map[models.Period]*windowBoard),
		staleness: staleness,
		now:       now,
	}
}

var categoryScores = map[string]func(models.UserStats) int{
	models.CategoryPoints:  func(s models.UserStats) int { return s.TotalPoints },
	models.CategoryReports: func(s models.UserStats) int { return s.TotalReports },
	models.CategoryStreak:  func(s models.UserStats) int { return s.CurrentStreak },
	models.CategoryBadges:  func(s models.UserStats) int { return len(s.BadgesEarned) },
}

// liveEntries maps a user's stats to their entry on every incremental board
func liveEntries(s models.UserStats) map[string]models.LeaderboardEntry {
	var achievedAt time.Time
	if s.LastReportAt != nil {
		achievedAt = *s.LastReportAt
	}
	entry := func(scope models.Scope, score int) models.LeaderboardEntry {
		return models.LeaderboardEntry{
			Scope:         scope.Key(),
			UserID:        s.UserID,
			Score:         score,
			AchievedAt:    achievedAt,
			InstitutionID: s.InstitutionID,
		}
	}

	out := map[string]models.LeaderboardEntry{}
	global := models.GlobalScope()
	out[global.Key()] = entry(global, s.TotalPoints)
	if s.InstitutionID != nil {
		inst := models.InstitutionScope(*s.InstitutionID)
		out[inst.Key()] = entry(inst, s.TotalPoints)
	}
	for category, score := range categoryScores {
		scope := models.CategoryScope(category)
		out[scope.Key()] = entry(scope, score(s))
	}
	return out
}

// Update re-inserts one user on the incremental boards
func (r *Ranker) Update(s models.UserStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateLocked(s)
	r.updatedAt = r.now()
}

func (r *Ranker) updateLocked(s models.UserStats) {
	if prev, ok := r.members[s.UserID]; ok {
		for key := range liveEntries(prev) {
			if b, ok := r.boards[key]; ok {
				b.remove(s.UserID)
				if len(b.entries) == 0 {
					delete(r.boards, key)
				}
			}
		}
	}

	r.members[s.UserID] = s.Clone()
	for key, e := range liveEntries(s) {
		b, ok := r.boards[key]
		if !ok {
			b = newRankBoard()
			r.boards[key] = b
		}
		b.upsert(e)
	}
}

// Rebuild replaces every incremental board from a full stats snapshot.
// A member already updated past its snapshot version keeps its newer stats.
func (r *Ranker) Rebuild(all []models.UserStats) {
	r.mu.Lock()
	members := make(map[string]models.UserStats, len(all))
	for _, s := range all {
		members[s.UserID] = s.Clone()
	}
	for id, cur := range r.members {
		if snap, ok := members[id]; !ok || cur.Version > snap.Version {
			members[id] = cur
		}
	}

	grouped := map[string][]models.LeaderboardEntry{}
	for _, s := range members {
		for key, e := range liveEntries(s) {
			grouped[key] = append(grouped[key], e)
		}
	}
	boards := make(map[string]*rankBoard, len(grouped))
	for key, entries := range grouped {
		boards[key] = boardFrom(entries)
	}

	r.boards = boards
	r.members = members
	r.updatedAt = r.now()
	r.mu.Unlock()

	for key, b := range boards {
		metrics.RankedUsers.WithLabelValues(key).Set(float64(len(b.entries)))
	}
}

// ReplaceWindow installs a recomputed time window board
func (r *Ranker) ReplaceWindow(period models.Period, scores []models.WindowScore, computedAt time.Time) {
	scope := models.TimeWindowScope(period)
	entries := make([]models.LeaderboardEntry, 0, len(scores))
	for _, ws := range scores {
		entries = append(entries, models.LeaderboardEntry{
			Scope:      scope.Key(),
			UserID:     ws.UserID,
			Score:      ws.Points,
			AchievedAt: ws.LastEarnedAt,
		})
	}
	b := boardFrom(entries)

	r.mu.Lock()
	r.windows[period] = &windowBoard{board: b, computedAt: computedAt}
	r.mu.Unlock()

	metrics.RankedUsers.WithLabelValues(scope.Key()).Set(float64(len(entries)))
}

// WindowComputedAt is when a window board was last recomputed, zero if never
func (r *Ranker) WindowComputedAt(period models.Period) time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if w, ok := r.windows[period]; ok {
		return w.computedAt
	}
	return time.Time{}
}

// view is a resolved board for one query
type view struct {
	scope      string
	period     models.Period
	board      *rankBoard
	computedAt time.Time
	warning    string
}

// resolve maps a scope and period onto a board. Callers hold r.mu.
func (r *Ranker) resolve(scope models.Scope, period models.Period) (view, error) {
	if err := scope.Validate(); err != nil {
		return view{}, err
	}
	if period == "" {
		period = models.PeriodAllTime
	}

	if scope.Kind == models.ScopeTimeWindow {
		p, _ := models.ParsePeriod(scope.Value)
		return r.windowView(scope.Key(), p, ""), nil
	}

	if period == models.PeriodAllTime {
		b, ok := r.boards[scope.Key()]
		if !ok {
			b = newRankBoard()
		}
		return view{scope: scope.Key(), period: period, board: b, computedAt: r.updatedAt}, nil
	}

	switch scope.Kind {
	case models.ScopeGlobal:
		return r.windowView(scope.Key(), period, ""), nil
	case models.ScopeInstitution:
		return r.windowView(scope.Key(), period, scope.Value), nil
	case models.ScopeCategory:
		if scope.Value == models.CategoryPoints {
			return r.windowView(scope.Key(), period, ""), nil
		}
	}
	return view{}, fmt.Errorf("%w: %s has no %s period", models.ErrInvalidInput, scope.Key(), period)
}

// windowView reads a window board, optionally filtered to one institution
func (r *Ranker) windowView(scopeKey string, period models.Period, institutionID string) view {
	v := view{scope: scopeKey, period: period, board: newRankBoard()}

	w, ok := r.windows[period]
	if !ok {
		v.warning = fmt.Sprintf("%s: %s board not computed yet", models.ErrStaleRankSnapshot, period)
		return v
	}
	v.computedAt = w.computedAt
	if r.staleness > 0 && r.now().Sub(w.computedAt) > r.staleness {
		v.warning = fmt.Sprintf("%s: computed at %s", models.ErrStaleRankSnapshot, w.computedAt.UTC().Format(time.RFC3339))
	}

	if institutionID == "" {
		v.board = w.board
		return v
	}
	var filtered []models.LeaderboardEntry
	for _, e := range w.board.entries {
		if m, ok := r.members[e.UserID]; ok && m.InstitutionID != nil && *m.InstitutionID == institutionID {
			filtered = append(filtered, e)
		}
	}
	v.board = boardFrom(filtered)
	return v
}

func (r *Ranker) entryFor(v view, e models.LeaderboardEntry, rank int) models.LeaderboardEntry {
	e.Scope = v.scope
	e.Rank = rank
	if m, ok := r.members[e.UserID]; ok {
		e.InstitutionID = m.InstitutionID
	}
	return e
}

// Top lists the first limit entries of a board
func (r *Ranker) Top(scope models.Scope, period models.Period, limit int) (models.LeaderboardResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, err := r.resolve(scope, period)
	if err != nil {
		return models.LeaderboardResult{}, err
	}

	n := len(v.board.entries)
	if limit <= 0 || limit > n {
		limit = n
	}
	entries := make([]models.LeaderboardEntry, 0, limit)
	for i := 0; i < limit; i++ {
		entries = append(entries, r.entryFor(v, v.board.entries[i], i+1))
	}

	return models.LeaderboardResult{
		Scope:      v.scope,
		Period:     v.period,
		Entries:    entries,
		Total:      n,
		ComputedAt: v.computedAt,
		Warning:    v.warning,
	}, nil
}

// Rank answers where userID stands on a board. Position is 0 when the user
// is not ranked there.
func (r *Ranker) Rank(userID string, scope models.Scope, period models.Period) (models.UserRank, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, err := r.resolve(scope, period)
	if err != nil {
		return models.UserRank{}, err
	}

	rank := models.UserRank{
		UserID:  userID,
		Scope:   v.scope,
		Period:  v.period,
		Total:   len(v.board.entries),
		Warning: v.warning,
	}
	if pos := v.board.position(userID); pos > 0 {
		rank.Position = pos
		rank.Score = v.board.index[userID].Score
		rank.Percentile = float64(rank.Total-pos+1) / float64(rank.Total) * 100
	}
	return rank, nil
}

// Position is the user's rank on the global board, 0 when unranked
func (r *Ranker) Position(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if b, ok := r.boards[models.GlobalScope().Key()]; ok {
		return b.position(userID)
	}
	return 0
}

// Members returns the stats snapshot the incremental boards were built from
func (r *Ranker) Members() []models.UserStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.UserStats, 0, len(r.members))
	for _, s := range r.members {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// InstitutionRankings aggregates members per institution, ordered by total
// points and then institution id
func (r *Ranker) InstitutionRankings() []models.InstitutionRanking {
	r.mu.RLock()
	byID := map[string]*models.InstitutionRanking{}
	for _, s := range r.members {
		if s.InstitutionID == nil {
			continue
		}
		ir, ok := byID[*s.InstitutionID]
		if !ok {
			ir = &models.InstitutionRanking{InstitutionID: *s.InstitutionID}
			byID[*s.InstitutionID] = ir
		}
		ir.Members++
		ir.TotalPoints += s.TotalPoints
		ir.TotalReports += s.TotalReports
		if s.CurrentStreak > ir.TopStreak {
			ir.TopStreak = s.CurrentStreak
		}
	}
	r.mu.RUnlock()

	out := make([]models.InstitutionRanking, 0, len(byID))
	for _, ir := range byID {
		ir.AveragePoints = float64(ir.TotalPoints) / float64(ir.Members)
		out = append(out, *ir)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalPoints != out[j].TotalPoints {
			return out[i].TotalPoints > out[j].TotalPoints
		}
		return out[i].InstitutionID < out[j].InstitutionID
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// Snapshot returns every board in full, for publishing to the mirror
func (r *Ranker) Snapshot() []models.LeaderboardResult {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.LeaderboardResult
	emit := func(v view) {
		entries := make([]models.LeaderboardEntry, len(v.board.entries))
		for i, e := range v.board.entries {
			entries[i] = r.entryFor(v, e, i+1)
		}
		out = append(out, models.LeaderboardResult{
			Scope:      v.scope,
			Period:     v.period,
			Entries:    entries,
			Total:      len(entries),
			ComputedAt: v.computedAt,
		})
	}

	keys := make([]string, 0, len(r.boards))
	for key := range r.boards {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		emit(view{scope: key, period: models.PeriodAllTime, board: r.boards[key], computedAt: r.updatedAt})
	}
	for _, p := range []models.Period{models.PeriodWeekly, models.PeriodMonthly, models.PeriodAllTime} {
		if w, ok := r.windows[p]; ok {
			emit(view{scope: models.TimeWindowScope(p).Key(), period: p, board: w.board, computedAt: w.computedAt})
		}
	}
	return out
}
