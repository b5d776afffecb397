package roster

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/mvl-at/openkeg/internal/config"
	"github.com/mvl-at/openkeg/internal/directory"
	"github.com/mvl-at/openkeg/internal/domain"
)

// Syncer fetches all principal and group subsets from the directory and,
// if and only if every fetch succeeds, replaces the cache atomically.
type Syncer struct {
	client *directory.Client
	cfg    config.DirectoryConfig
	cache  *Cache
	logger *slog.Logger
}

// NewSyncer creates a synchronization task over the given client and cache.
func NewSyncer(client *directory.Client, cfg config.DirectoryConfig, cache *Cache, logger *slog.Logger) *Syncer {
	return &Syncer{client: client, cfg: cfg, cache: cache, logger: logger}
}

// fetchSet is the result of one full directory fetch cycle. It only exists
// when all five fetches succeeded, which makes the all-or-nothing cache
// update structurally guaranteed.
type fetchSet struct {
	members    []domain.Member
	sutlers    []domain.Member
	honorary   []domain.Member
	registers  []domain.Group
	executives []domain.Group
}

// RunOnce performs one synchronization cycle. On any fetch failure the
// cycle aborts with a warning and the cache is left untouched; partial
// directory outages never corrupt or blank the live cache.
func (s *Syncer) RunOnce(ctx context.Context) error {
	set, err := s.fetchAll(ctx)
	if err != nil {
		s.logger.Warn("unable to fetch all data from the directory server, stop synchronizing", "error", err)
		return err
	}

	sortTitles(set.members, s.cfg.TitleOrder)
	sortTitles(set.sutlers, s.cfg.TitleOrder)
	sortTitles(set.honorary, s.cfg.TitleOrder)

	s.cache.ReplaceAll(set.members, set.sutlers, set.honorary, set.registers, set.executives)
	s.logger.Info("member synchronization done",
		"members", len(set.members),
		"sutlers", len(set.sutlers),
		"honorary", len(set.honorary),
		"registers", len(set.registers),
		"executives", len(set.executives),
	)
	return nil
}

// fetchAll retrieves the five collections concurrently. All five fetches
// complete before any cache mutation is attempted; the first error cancels
// the remaining fetches and fails the cycle.
func (s *Syncer) fetchAll(ctx context.Context) (*fetchSet, error) {
	var set fetchSet
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		set.members, err = s.fetchMembers(ctx, "members", s.cfg.MemberBase, s.cfg.MemberFilter)
		return err
	})
	g.Go(func() error {
		var err error
		set.sutlers, err = s.fetchMembers(ctx, "sutlers", s.cfg.SutlerBase, s.cfg.SutlerFilter)
		return err
	})
	g.Go(func() error {
		var err error
		set.honorary, err = s.fetchMembers(ctx, "honorary members", s.cfg.HonoraryBase, s.cfg.HonoraryFilter)
		return err
	})
	g.Go(func() error {
		var err error
		set.registers, err = s.fetchGroups(ctx, "registers", s.cfg.RegisterBase, s.cfg.RegisterFilter)
		return err
	})
	g.Go(func() error {
		var err error
		set.executives, err = s.fetchGroups(ctx, "executive roles", s.cfg.ExecutiveBase, s.cfg.ExecutiveFilter)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &set, nil
}

func (s *Syncer) fetchMembers(ctx context.Context, kind, base, filter string) ([]domain.Member, error) {
	members, err := directory.Search(ctx, s.client, base, filter, func(e directory.Entry) domain.Member {
		return MemberFromEntry(e, s.cfg.MemberMapping, s.cfg.AddressMapping)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", kind, err)
	}
	s.logger.Debug("fetched directory entries", "kind", kind, "count", len(members))
	return members, nil
}

func (s *Syncer) fetchGroups(ctx context.Context, kind, base, filter string) ([]domain.Group, error) {
	groups, err := directory.Search(ctx, s.client, base, filter, func(e directory.Entry) domain.Group {
		return GroupFromEntry(e, s.cfg.GroupMapping)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", kind, err)
	}
	s.logger.Debug("fetched directory entries", "kind", kind, "count", len(groups))
	return groups, nil
}

// sortTitles reorders every member's titles by the configured precedence
// list. Titles missing from the list keep rank 0 and therefore sort first.
func sortTitles(members []domain.Member, order []string) {
	if len(order) == 0 {
		return
	}
	for i := range members {
		titles := members[i].Titles
		sort.SliceStable(titles, func(a, b int) bool {
			return titleRank(order, titles[a]) < titleRank(order, titles[b])
		})
	}
}

func titleRank(order []string, title string) int {
	for i, t := range order {
		if t == title {
			return i
		}
	}
	return 0
}

// Scheduler runs the synchronization task on a fixed interval.
type Scheduler struct {
	cron   *cron.Cron
	syncer *Syncer
	logger *slog.Logger
}

// NewScheduler creates a scheduler that invokes the syncer every interval.
func NewScheduler(syncer *Syncer, logger *slog.Logger) *Scheduler {
	return &Scheduler{cron: cron.New(), syncer: syncer, logger: logger}
}

// Start runs one synchronization immediately in the background and then
// schedules recurring cycles. A failed cycle is retried only by virtue of
// the next scheduled one.
func (s *Scheduler) Start() error {
	interval := s.syncer.cfg.SyncInterval
	_, err := s.cron.AddFunc(fmt.Sprintf("@every %ds", int(interval.Seconds())), func() {
		s.logger.Info("running scheduled member synchronization")
		_ = s.syncer.RunOnce(context.Background())
	})
	if err != nil {
		return fmt.Errorf("schedule synchronization: %w", err)
	}
	go func() {
		_ = s.syncer.RunOnce(context.Background())
	}()
	s.cron.Start()
	s.logger.Info("member synchronization scheduled", "interval", interval)
	return nil
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("member synchronization stopped")
}
