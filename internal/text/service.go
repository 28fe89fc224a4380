package text

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Harsha2k4/typing-racer-prod-bots/internal/constants"
	"github.com/Harsha2k4/typing-racer-prod-bots/internal/db"
)

// Service hands out passages. Curated passages win when a database is
// configured and the requested length roughly fits; otherwise words are
// generated. Service never fails: callers always get text.
type Service struct {
	generator *Generator
	passages  *db.Passages
}

// NewService returns a Service. passages may be nil.
func NewService(passages *db.Passages) *Service {
	return &Service{
		generator: NewGenerator(),
		passages:  passages,
	}
}

// Passage returns roughly words words of typing text, clamped to the
// supported range.
func (s *Service) Passage(ctx context.Context, words int) string {
	if words < constants.MinPassageWords {
		words = constants.MinPassageWords
	}
	if words > constants.MaxPassageWords {
		words = constants.MaxPassageWords
	}

	if s.passages != nil {
		passage, err := s.passages.Random(ctx)
		if err == nil && passage.Story != "" {
			return trimToWords(passage.Story, words)
		}
		log.Warn().Err(err).Msg("curated passage fetch failed, generating words")
	}

	return s.generator.Words(words)
}

// trimToWords cuts story down to at most n words.
func trimToWords(story string, n int) string {
	fields := strings.Fields(story)
	if len(fields) >= n {
		return strings.Join(fields[:n], " ")
	}
	return strings.Join(fields, " ")
}
