package models

import "time"

// TopicStat is the rolling accuracy record for one topic. Recent holds the
// outcomes of the most recent reviews, oldest first, bounded by the
// aggregator's window size so recomputation is deterministic.
type TopicStat struct {
	Attempts int    `json:"attempts"`
	Correct  int    `json:"correct"`
	Recent   []bool `json:"recent"`
}

// Accuracy returns the pass rate over the rolling window, or 0 with no data.
func (s TopicStat) Accuracy() float64 {
	if len(s.Recent) == 0 {
		return 0
	}
	correct := 0
	for _, ok := range s.Recent {
		if ok {
			correct++
		}
	}
	return float64(correct) / float64(len(s.Recent))
}

// AgentProgress is the per-agent progress record. Only the aggregator
// mutates it, and only on a successful session commit.
type AgentProgress struct {
	AgentID      string                `json:"agent_id" db:"agent_id"`
	TotalXP      int                   `json:"total_xp" db:"total_xp"` // monotonic non-decreasing
	Level        int                   `json:"level" db:"level"`
	TotalReviews int                   `json:"total_reviews" db:"total_reviews"`
	Badges       []string              `json:"badges" db:"-"` // set, each code awarded at most once
	TopicStats   map[string]*TopicStat `json:"topic_stats" db:"-"`
	UpdatedAt    time.Time             `json:"updated_at" db:"updated_at"`
}

// NewAgentProgress returns an empty progress record for the agent.
func NewAgentProgress(agentID string) *AgentProgress {
	return &AgentProgress{
		AgentID:    agentID,
		Level:      1,
		Badges:     []string{},
		TopicStats: map[string]*TopicStat{},
	}
}

// HasBadge reports whether the badge code has already been awarded.
func (p *AgentProgress) HasBadge(code string) bool {
	for _, b := range p.Badges {
		if b == code {
			return true
		}
	}
	return false
}

// AwardBadge adds the badge code if not already present. Returns true when
// the badge was newly awarded.
func (p *AgentProgress) AwardBadge(code string) bool {
	if p.HasBadge(code) {
		return false
	}
	p.Badges = append(p.Badges, code)
	return true
}

// topicsWhere returns topic names whose rolling accuracy satisfies keep,
// requiring at least minAttempts recorded outcomes.
func (p *AgentProgress) topicsWhere(minAttempts int, keep func(acc float64) bool) []string {
	var topics []string
	for topic, stat := range p.TopicStats {
		if len(stat.Recent) >= minAttempts && keep(stat.Accuracy()) {
			topics = append(topics, topic)
		}
	}
	return topics
}

// Weaknesses returns topics with rolling accuracy below the threshold.
func (p *AgentProgress) Weaknesses(below float64, minAttempts int) []string {
	return p.topicsWhere(minAttempts, func(acc float64) bool { return acc < below })
}

// Strengths returns topics with rolling accuracy at or above the threshold.
func (p *AgentProgress) Strengths(atLeast float64, minAttempts int) []string {
	return p.topicsWhere(minAttempts, func(acc float64) bool { return acc >= atLeast })
}
