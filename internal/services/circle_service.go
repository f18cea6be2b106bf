// Package services – CircleService
//
// This file implements CircleService, which manages circle lifecycle and
// membership. Circles are invite-by-slug: creating a circle mints a short
// URL-safe slug (folded from the name plus a random suffix) that members
// share out-of-band; anyone holding the slug may join. Leaving deactivates
// the membership row rather than deleting it, so rejoining restores the
// original membership and its history.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/circleshare/go-share-backend/internal/domain"
	"github.com/circleshare/go-share-backend/internal/events"
	"github.com/circleshare/go-share-backend/internal/repo"
)

// slugAlphabet is the character set for slug suffixes. Lowercase alphanumeric
// keeps slugs case-insensitive in URLs.
const slugAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// slugSuffixLen is the random suffix length. Six characters over a 36-symbol
// alphabet gives collision room well beyond any plausible circle count.
const slugSuffixLen = 6

// CircleService provides circle-level operations such as creating circles,
// resolving invite slugs, and managing membership.
type CircleService struct {
	DB  *gorm.DB
	Bus *events.Bus

	// NameMaxLen caps stored circle names by rune length.
	NameMaxLen int
}

// NewCircleService constructs a CircleService with sane defaults.
func NewCircleService(db *gorm.DB, bus *events.Bus) *CircleService {
	return &CircleService{DB: db, Bus: bus, NameMaxLen: 80}
}

// Create inserts a new circle named by creatorID and enrolls the creator as
// its first member. The invite slug is derived from the name; on the rare
// suffix collision the insert is retried with a fresh suffix.
func (s *CircleService) Create(ctx context.Context, creatorID, name, description string) (*domain.Circle, error) {
	name = normalizeName(name)
	if name == "" {
		return nil, ErrInvalidCircleName
	}
	name = clipRunes(name, s.NameMaxLen)

	var circle *domain.Circle
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for attempt := 0; ; attempt++ {
			slug, err := Slugify(name)
			if err != nil {
				return err
			}
			c, err := repo.CreateCircle(ctx, tx, name, slug, strings.TrimSpace(description))
			if err != nil {
				if repo.IsUniqueViolation(err) && attempt < 3 {
					continue
				}
				return err
			}
			circle = c
			break
		}
		_, err := repo.UpsertMembership(ctx, tx, circle.ID, creatorID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return circle, nil
}

// Get returns a circle by ID.
func (s *CircleService) Get(ctx context.Context, circleID string) (*domain.Circle, error) {
	c, err := repo.GetCircle(ctx, s.DB, circleID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrCircleNotFound
		}
		return nil, err
	}
	return c, nil
}

// GetBySlug resolves an invite slug to its circle.
func (s *CircleService) GetBySlug(ctx context.Context, slug string) (*domain.Circle, error) {
	c, err := repo.GetCircleBySlug(ctx, s.DB, strings.ToLower(strings.TrimSpace(slug)))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrCircleNotFound
		}
		return nil, err
	}
	return c, nil
}

// Join enrolls userID into circleID. Invitees resolve the shared slug to a
// circle first (GetBySlug) and then join by ID. Joining twice is idempotent,
// and rejoining after a leave re-activates the original membership.
func (s *CircleService) Join(ctx context.Context, userID, circleID string) (*domain.Circle, *domain.Membership, error) {
	circle, err := s.Get(ctx, circleID)
	if err != nil {
		return nil, nil, err
	}

	wasMember, err := repo.IsActiveMember(ctx, s.DB, circle.ID, userID)
	if err != nil {
		return nil, nil, err
	}
	m, err := repo.UpsertMembership(ctx, s.DB, circle.ID, userID)
	if err != nil {
		return nil, nil, err
	}

	if !wasMember && s.Bus != nil {
		s.Bus.Publish(events.Event{Type: events.TypeMemberJoined, CircleID: circle.ID, Payload: m})
	}
	return circle, m, nil
}

// Leave deactivates userID's membership in circleID. Leaving a circle the
// user never joined (or already left) yields ErrNotMember. Existing claims
// are untouched; they remain owned by the departed user.
func (s *CircleService) Leave(ctx context.Context, userID, circleID string) error {
	if _, err := s.Get(ctx, circleID); err != nil {
		return err
	}
	if err := repo.DeactivateMembership(ctx, s.DB, circleID, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotMember
		}
		return err
	}
	return nil
}

// Members lists the active memberships of a circle, visible to members only.
func (s *CircleService) Members(ctx context.Context, userID, circleID string) ([]domain.Membership, error) {
	if _, err := s.Get(ctx, circleID); err != nil {
		return nil, err
	}
	ok, err := repo.IsActiveMember(ctx, s.DB, circleID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotMember
	}
	return repo.ListMembers(ctx, s.DB, circleID)
}

// IsMember reports whether userID is an active member of circleID.
func (s *CircleService) IsMember(ctx context.Context, userID, circleID string) (bool, error) {
	return repo.IsActiveMember(ctx, s.DB, circleID, userID)
}

// Slugify folds a circle name into a URL-safe slug with a random suffix:
// diacritics are stripped, runs of non-alphanumerics collapse to hyphens, and
// the folded stem is clipped before the suffix is appended.
func Slugify(name string) (string, error) {
	folded, _, err := transform.String(foldTransformer(), name)
	if err != nil {
		folded = name
	}
	stem := nonSlugRE.ReplaceAllString(strings.ToLower(folded), "-")
	stem = strings.Trim(stem, "-")
	stem = clipRunes(stem, 40)
	stem = strings.TrimSuffix(stem, "-")

	suffix, err := gonanoid.Generate(slugAlphabet, slugSuffixLen)
	if err != nil {
		return "", err
	}
	if stem == "" {
		return suffix, nil
	}
	return stem + "-" + suffix, nil
}

// foldTransformer decomposes, drops combining marks, and recomposes, turning
// e.g. "Café" into "Cafe".
func foldTransformer() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// nonSlugRE matches runs of characters not allowed in slugs.
var nonSlugRE = regexp.MustCompile(`[^a-z0-9]+`)

// normalizeName trims whitespace and collapses internal runs to one space.
func normalizeName(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)

// clipRunes truncates s to at most max runes.
func clipRunes(s string, max int) string {
	if max > 0 && utf8.RuneCountInString(s) > max {
		return string([]rune(s)[:max])
	}
	return s
}
