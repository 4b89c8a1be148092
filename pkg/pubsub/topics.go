package pubsub

import (
	"context"
	"time"
)

// SkillEvent is published to a skill's followers channel.
type SkillEvent struct {
	Type      string    `json:"type"`
	SkillID   string    `json:"skill_id"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// GlobalStats is the payload of the global stats channel.
type GlobalStats struct {
	TotalSkills    int64 `json:"total_skills"`
	TotalDownloads int64 `json:"total_downloads"`
	TotalUsers     int64 `json:"total_users"`
}

// TopicPublisher publishes typed events onto the well-known topic channels.
type TopicPublisher struct {
	bridge *Bridge
	now    func() time.Time
}

// NewTopicPublisher creates a TopicPublisher over bridge.
func NewTopicPublisher(bridge *Bridge) *TopicPublisher {
	return &TopicPublisher{bridge: bridge, now: time.Now}
}

// SkillEvent publishes an event of the given kind to the followers of skillID.
func (p *TopicPublisher) SkillEvent(ctx context.Context, skillID, kind string, data any) {
	p.bridge.PublishJSON(ctx, SkillFollowersChannel(skillID), SkillEvent{
		Type:      kind,
		SkillID:   skillID,
		Data:      data,
		Timestamp: p.now().UTC(),
	})
}

// GlobalStats publishes a stats snapshot.
func (p *TopicPublisher) GlobalStats(ctx context.Context, stats GlobalStats) {
	p.bridge.PublishJSON(ctx, GlobalStatsChannel, stats)
}
