package progress

import (
	"context"

	"go.uber.org/zap"

	"github.com/example/drillbot/internal/config"
	"github.com/example/drillbot/internal/database"
	"github.com/example/drillbot/pkg/models"
)

// BadgeRule is an externally supplied badge predicate. The aggregator only
// guarantees idempotent application; the content of the rules is opaque.
type BadgeRule struct {
	Code     string
	Name     string
	Criteria func(p *models.AgentProgress, batch []models.ActivityResult) bool
}

// DefaultBadges returns the stock badge set. passThreshold is the grade at
// which a review counts as passing.
func DefaultBadges(passThreshold int) []BadgeRule {
	return []BadgeRule{
		{
			Code: "first_review",
			Name: "First Review",
			Criteria: func(p *models.AgentProgress, _ []models.ActivityResult) bool {
				return p.TotalReviews >= 1
			},
		},
		{
			Code: "centurion",
			Name: "Centurion",
			Criteria: func(p *models.AgentProgress, _ []models.ActivityResult) bool {
				return p.TotalReviews >= 100
			},
		},
		{
			Code: "xp_1000",
			Name: "Grinder",
			Criteria: func(p *models.AgentProgress, _ []models.ActivityResult) bool {
				return p.TotalXP >= 1000
			},
		},
		{
			Code: "perfect_batch",
			Name: "Flawless",
			Criteria: func(_ *models.AgentProgress, batch []models.ActivityResult) bool {
				if len(batch) < 5 {
					return false
				}
				for _, r := range batch {
					if r.Grade < 5 {
						return false
					}
				}
				return true
			},
		},
		{
			Code: "comeback",
			Name: "Comeback",
			Criteria: func(_ *models.AgentProgress, batch []models.ActivityResult) bool {
				// A pass immediately after a fail within the same batch.
				failed := false
				for _, r := range batch {
					if r.Grade >= passThreshold && failed {
						return true
					}
					failed = r.Grade < passThreshold
				}
				return false
			},
		},
	}
}

// Aggregator folds committed review batches into per-agent progress: total
// XP, level, badges and rolling per-topic accuracy. It only ever runs after
// a successful session commit, so a rolled-back batch never moves progress.
type Aggregator struct {
	store         database.Store
	cfg           config.ProgressConfig
	passThreshold int
	badges        []BadgeRule
	log           *zap.Logger
}

// NewAggregator wires an aggregator. Level thresholds and badge rules come
// from the caller; nil badges means the default set.
func NewAggregator(store database.Store, cfg config.ProgressConfig, passThreshold int, badges []BadgeRule, log *zap.Logger) *Aggregator {
	if badges == nil {
		badges = DefaultBadges(passThreshold)
	}
	return &Aggregator{
		store:         store,
		cfg:           cfg,
		passThreshold: passThreshold,
		badges:        badges,
		log:           log,
	}
}

// ApplyResults folds one committed batch into the agent's progress and
// persists it. Total XP is strictly non-decreasing; badge awarding is
// idempotent; the rolling topic window is deterministic for identical
// committed history.
func (a *Aggregator) ApplyResults(ctx context.Context, agentID string, results []models.ActivityResult) (*models.AgentProgress, error) {
	p, err := a.store.GetProgress(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return p, nil
	}

	for _, r := range results {
		if r.XPAwarded > 0 {
			p.TotalXP += r.XPAwarded
		}
		p.TotalReviews++
		a.recordOutcome(p, r)
		if r.Timestamp.After(p.UpdatedAt) {
			p.UpdatedAt = r.Timestamp
		}
	}
	p.Level = a.levelFor(p.TotalXP)

	for _, rule := range a.badges {
		if p.HasBadge(rule.Code) {
			continue
		}
		if rule.Criteria(p, results) {
			p.AwardBadge(rule.Code)
			a.log.Info("badge awarded",
				zap.String("agent_id", agentID),
				zap.String("badge", rule.Code))
		}
	}

	if err := a.store.SaveProgress(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// recordOutcome updates the rolling per-topic accuracy window.
func (a *Aggregator) recordOutcome(p *models.AgentProgress, r models.ActivityResult) {
	topic := r.Topic
	if topic == "" {
		topic = "general"
	}
	if p.TopicStats == nil {
		p.TopicStats = map[string]*models.TopicStat{}
	}
	stat, ok := p.TopicStats[topic]
	if !ok {
		stat = &models.TopicStat{}
		p.TopicStats[topic] = stat
	}
	passed := r.Grade >= a.passThreshold
	stat.Attempts++
	if passed {
		stat.Correct++
	}
	stat.Recent = append(stat.Recent, passed)
	if over := len(stat.Recent) - a.cfg.WindowSize; over > 0 {
		stat.Recent = stat.Recent[over:]
	}
}

// levelFor looks the level up in the threshold table: the highest index
// whose threshold is at or below the XP total, one-based.
func (a *Aggregator) levelFor(xp int) int {
	level := 1
	for i, threshold := range a.cfg.LevelThresholds {
		if xp >= threshold {
			level = i + 1
		}
	}
	return level
}

// Weaknesses returns the agent's weak topics per the configured thresholds.
func (a *Aggregator) Weaknesses(p *models.AgentProgress) []string {
	return p.Weaknesses(a.cfg.WeaknessBelow, a.cfg.MinAttempts)
}

// Strengths returns the agent's strong topics per the configured thresholds.
func (a *Aggregator) Strengths(p *models.AgentProgress) []string {
	return p.Strengths(a.cfg.StrengthAtLeast, a.cfg.MinAttempts)
}
