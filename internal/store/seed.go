// ABOUTME: First-run sample stories for empty vaults
// ABOUTME: Seeding is a no-op unless the store holds zero stories

package store

import (
	"context"
	"fmt"
)

var sampleStories = []struct {
	text     string
	category string
	topic    string
	tags     []string
}{
	{
		text:     "Once there was a fox named Pip who wanted to see the other side of the mountain. He packed three blackberries and a very small map, and off he went before the sun was up.",
		category: "adventure",
		topic:    "fox",
		tags:     []string{"fox", "mountain"},
	},
	{
		text:     "Luna the owl could not sleep during the day like the other owls. So she opened a tiny library in her tree, and all the daytime animals came to borrow stories.",
		category: "animals",
		topic:    "owl",
		tags:     []string{"owl", "library"},
	},
	{
		text:     "The moon was tired of being round, so it asked the clouds to dress it up. On Monday it wore a hat, on Tuesday a scarf, and by Friday nobody could find the moon at all.",
		category: "bedtime",
		topic:    "moon",
		tags:     []string{"moon", "clouds"},
	},
	{
		text:     "Captain Zib's rocket ran on giggles. Whenever the fuel gauge dropped, the crew told knock-knock jokes until the tank was full again, and that is how they reached the purple planet.",
		category: "space",
		topic:    "rocket",
		tags:     []string{"rocket", "jokes"},
	},
	{
		text:     "A snail and a raindrop raced down the garden wall. The raindrop was faster, but it waited at every leaf so they could finish together.",
		category: "friendship",
		topic:    "snail",
		tags:     []string{"snail", "garden"},
	},
	{
		text:     "The sock drawer held a meeting at midnight. The left socks accused the right socks of hiding, the right socks blamed the dryer, and the lone striped sock just wanted a friend.",
		category: "silly",
		topic:    "socks",
		tags:     []string{"socks"},
	},
}

// SeedSampleStories inserts a small fixed set of stories into an empty vault.
// A vault with any stories at all is left untouched. Returns the number of
// stories inserted.
func (s *SQLiteStore) SeedSampleStories(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM stories`).Scan(&count); err != nil {
		return 0, fmt.Errorf("checking for existing stories: %w", err)
	}
	if count > 0 {
		s.logger.Debug("skipping seed, store not empty", "stories", count)
		return 0, nil
	}

	inserted := 0
	for _, sample := range sampleStories {
		_, duplicate, err := s.CreateStory(ctx, sample.text, sample.category, sample.topic, sample.tags)
		if err != nil {
			return inserted, fmt.Errorf("seeding sample story: %w", err)
		}
		if !duplicate {
			inserted++
		}
	}

	s.logger.Info("seeded sample stories", "count", inserted)
	return inserted, nil
}
