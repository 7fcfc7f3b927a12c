package ledger

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	apperrors "dice-drop-bot/internal/common/errors"
	"dice-drop-bot/internal/common/logger"
	dd "dice-drop-bot/internal/domain/dice"
)

// Ledger owns the in-memory Document. Mutations are applied to a copy, saved,
// and only then made visible, so a failed save leaves state untouched.
type Ledger struct {
	mu    sync.RWMutex
	store dd.Store
	doc   *dd.Document
	log   zerolog.Logger
}

// Award is one grant inside a batch.
type Award struct {
	MemberID    string
	Collectible dd.Collectible
	Coins       int64
	Points      int64
}

// Target is a community with a drop channel and a non-empty catalog.
type Target struct {
	CommunityID string
	ChannelID   string
}

// New loads the document from st.
func New(ctx context.Context, st dd.Store) (*Ledger, error) {
	doc, err := st.Load(ctx)
	if err != nil {
		return nil, apperrors.NewPersistenceError("load document", err)
	}
	return &Ledger{store: st, doc: doc, log: logger.Component("ledger")}, nil
}

func (l *Ledger) mutate(ctx context.Context, op string, fn func(doc *dd.Document) (bool, error)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.doc.Clone()
	changed, err := fn(next)
	if err != nil || !changed {
		return err
	}
	if err := l.store.Save(ctx, next); err != nil {
		l.log.Error().Err(err).Str("operation", op).Msg("Failed to save document")
		return apperrors.NewPersistenceError(op, err)
	}
	l.doc = next
	return nil
}

// EnsureAccount creates a zero account when absent.
func (l *Ledger) EnsureAccount(ctx context.Context, community, member string) error {
	return l.mutate(ctx, "ensure account", func(doc *dd.Document) (bool, error) {
		if _, ok := doc.LookupAccount(community, member); ok {
			return false, nil
		}
		doc.Account(community, member)
		return true, nil
	})
}

// Grant adds the collectible and rewards unless the member already owns it.
func (l *Ledger) Grant(ctx context.Context, community, member string, c dd.Collectible, coins, points int64) (bool, error) {
	results, err := l.GrantBatch(ctx, community, []Award{{MemberID: member, Collectible: c, Coins: coins, Points: points}})
	if err != nil {
		return false, err
	}
	return results[0], nil
}

// GrantBatch applies awards in order with a single save. results[i] reports
// whether awards[i] was new; duplicates within the batch count as already owned.
func (l *Ledger) GrantBatch(ctx context.Context, community string, awards []Award) ([]bool, error) {
	results := make([]bool, len(awards))
	if len(awards) == 0 {
		return results, nil
	}
	err := l.mutate(ctx, "grant", func(doc *dd.Document) (bool, error) {
		changed := false
		for i, a := range awards {
			acc := doc.Account(community, a.MemberID)
			if acc.Owns(a.Collectible.Number) {
				continue
			}
			acc.Images = append(acc.Images, a.Collectible.Number)
			acc.Coins += a.Coins
			acc.Points += a.Points
			results[i] = true
			changed = true
		}
		return changed, nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Debit subtracts amount when the balance covers it. Returns false without change otherwise.
func (l *Ledger) Debit(ctx context.Context, community, member string, amount int64) (bool, error) {
	if amount < 0 {
		return false, apperrors.NewValidationError("amount", "amount must not be negative")
	}
	ok := false
	err := l.mutate(ctx, "debit", func(doc *dd.Document) (bool, error) {
		acc, found := doc.LookupAccount(community, member)
		if !found || acc.Coins < amount {
			return false, nil
		}
		acc.Coins -= amount
		ok = true
		return true, nil
	})
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Credit adds coins and returns the new balance.
func (l *Ledger) Credit(ctx context.Context, community, member string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, apperrors.NewValidationError("amount", "amount must be positive")
	}
	var balance int64
	err := l.mutate(ctx, "credit", func(doc *dd.Document) (bool, error) {
		acc := doc.Account(community, member)
		acc.Coins += amount
		balance = acc.Coins
		return true, nil
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// AppendImages adds collectibles numbered from len(catalog)+1 and returns the first and last number.
func (l *Ledger) AppendImages(ctx context.Context, community string, urls []string) (first, last int, err error) {
	if len(urls) == 0 {
		return 0, 0, apperrors.NewValidationError("attachments", "at least one image is required")
	}
	err = l.mutate(ctx, "append images", func(doc *dd.Document) (bool, error) {
		catalog := doc.Images[community]
		first = len(catalog) + 1
		for i, url := range urls {
			catalog = append(catalog, dd.NewCollectible(first+i, url))
		}
		doc.Images[community] = catalog
		last = len(catalog)
		return true, nil
	})
	if err != nil {
		return 0, 0, err
	}
	return first, last, nil
}

func (l *Ledger) SetDropChannel(ctx context.Context, community, channel string) error {
	if channel == "" {
		return apperrors.NewValidationError("channel", "channel is required")
	}
	return l.mutate(ctx, "set drop channel", func(doc *dd.Document) (bool, error) {
		if doc.DropChannel[community] == dd.Ref(channel) {
			return false, nil
		}
		doc.DropChannel[community] = dd.Ref(channel)
		return true, nil
	})
}

// SetDropRole sets the ping role; an empty role clears it.
func (l *Ledger) SetDropRole(ctx context.Context, community, role string) error {
	return l.mutate(ctx, "set drop role", func(doc *dd.Document) (bool, error) {
		current, ok := doc.DropRole[community]
		if role == "" {
			if !ok {
				return false, nil
			}
			delete(doc.DropRole, community)
			return true, nil
		}
		if ok && current == dd.Ref(role) {
			return false, nil
		}
		doc.DropRole[community] = dd.Ref(role)
		return true, nil
	})
}

// Catalog returns a copy of the community catalog.
func (l *Ledger) Catalog(community string) []dd.Collectible {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]dd.Collectible(nil), l.doc.Images[community]...)
}

// Collectible looks up sequence number n.
func (l *Ledger) Collectible(community string, n int) (dd.Collectible, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	catalog := l.doc.Images[community]
	if n >= 1 && n <= len(catalog) && catalog[n-1].Number == n {
		return catalog[n-1], true
	}
	for _, c := range catalog {
		if c.Number == n {
			return c, true
		}
	}
	return dd.Collectible{}, false
}

// Account returns a copy of the account; the zero account when absent.
func (l *Ledger) Account(community, member string) (dd.Account, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc, ok := l.doc.LookupAccount(community, member)
	if !ok {
		return dd.Account{Images: []int{}}, false
	}
	cp := *acc
	cp.Images = append([]int{}, acc.Images...)
	return cp, true
}

func (l *Ledger) Owns(community, member string, n int) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc, ok := l.doc.LookupAccount(community, member)
	return ok && acc.Owns(n)
}

func (l *Ledger) DropChannel(community string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return string(l.doc.DropChannel[community])
}

func (l *Ledger) DropRole(community string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return string(l.doc.DropRole[community])
}

// Communities lists every community mentioned in the document, sorted.
func (l *Ledger) Communities() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	seen := map[string]struct{}{}
	for c := range l.doc.Images {
		seen[c] = struct{}{}
	}
	for c := range l.doc.Users {
		seen[c] = struct{}{}
	}
	for c := range l.doc.DropChannel {
		seen[c] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// DropTargets lists communities that can receive a scheduled drop.
func (l *Ledger) DropTargets() []Target {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Target
	for c, ch := range l.doc.DropChannel {
		if ch == "" || len(l.doc.Images[c]) == 0 {
			continue
		}
		out = append(out, Target{CommunityID: c, ChannelID: string(ch)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CommunityID < out[j].CommunityID })
	return out
}

// Leaderboard ranks a community by points, ties by member id.
func (l *Ledger) Leaderboard(community string, topN int) []dd.Standing {
	l.mu.RLock()
	members := l.doc.Users[community]
	out := make([]dd.Standing, 0, len(members))
	for id, acc := range members {
		out = append(out, dd.Standing{MemberID: id, Points: acc.Points, Coins: acc.Coins, Collected: len(acc.Images)})
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return lessID(out[i].MemberID, out[j].MemberID)
	})
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// GlobalRanking ranks members by collection size summed over all communities.
func (l *Ledger) GlobalRanking(topN int) []dd.CollectorStanding {
	l.mu.RLock()
	totals := map[string]int{}
	for _, members := range l.doc.Users {
		for id, acc := range members {
			totals[id] += len(acc.Images)
		}
	}
	l.mu.RUnlock()

	out := make([]dd.CollectorStanding, 0, len(totals))
	for id, n := range totals {
		out = append(out, dd.CollectorStanding{MemberID: id, Collected: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Collected != out[j].Collected {
			return out[i].Collected > out[j].Collected
		}
		return lessID(out[i].MemberID, out[j].MemberID)
	})
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// Snapshot returns a deep copy of the current document.
func (l *Ledger) Snapshot() *dd.Document {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.doc.Clone()
}

// lessID orders decimal snowflakes numerically and anything else lexically.
func lessID(a, b string) bool {
	if len(a) != len(b) && isDigits(a) && isDigits(b) {
		return len(a) < len(b)
	}
	return strings.Compare(a, b) < 0
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
