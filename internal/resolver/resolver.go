// Package resolver turns a fetched detail page into a catalog.Record by
// layering structured data, meta and link tags, and page headings.
package resolver

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/gamecatalog/internal/catalog"
	"github.com/JakeFAU/gamecatalog/internal/metrics"
)

// ImagePrecedence selects which source wins for the cover image.
type ImagePrecedence string

const (
	// ImageStructuredFirst consults JSON-LD before Open Graph tags.
	ImageStructuredFirst ImagePrecedence = "structured"
	// ImageOpenGraphFirst consults og:image before JSON-LD.
	ImageOpenGraphFirst ImagePrecedence = "opengraph"
)

// DefaultEmbedHost is the host fragment that marks the playable iframe.
const DefaultEmbedHost = "html5.gamedistribution.com"

// DefaultSiteSuffixes are stripped from titles and headings.
var DefaultSiteSuffixes = []string{
	" - Play Free Online Games on GameDistribution.com",
	" - Play Free Online Games | GameDistribution.com",
	" - Play Free Online Games",
	" | GameDistribution.com",
	" - GameDistribution.com",
}

// ParseImagePrecedence validates a configured precedence name.
func ParseImagePrecedence(s string) (ImagePrecedence, error) {
	switch ImagePrecedence(strings.ToLower(strings.TrimSpace(s))) {
	case "", ImageStructuredFirst:
		return ImageStructuredFirst, nil
	case ImageOpenGraphFirst:
		return ImageOpenGraphFirst, nil
	default:
		return "", fmt.Errorf("unknown image precedence %q", s)
	}
}

// Options tunes field resolution.
type Options struct {
	EmbedHost       string
	ImagePrecedence ImagePrecedence
	SiteSuffixes    []string
}

// Resolver extracts records from page HTML. It never fails; missing signals
// leave fields nil.
type Resolver struct {
	opts   Options
	clock  catalog.Clock
	logger *zap.Logger
}

// New constructs a Resolver, filling unset options with defaults.
func New(opts Options, clock catalog.Clock, logger *zap.Logger) *Resolver {
	if opts.EmbedHost == "" {
		opts.EmbedHost = DefaultEmbedHost
	}
	if opts.ImagePrecedence == "" {
		opts.ImagePrecedence = ImageStructuredFirst
	}
	if opts.SiteSuffixes == nil {
		opts.SiteSuffixes = DefaultSiteSuffixes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{opts: opts, clock: clock, logger: logger}
}

// Resolve builds a record for html fetched from pageURL, deriving the slug
// from the URL and stamping the current time.
func (r *Resolver) Resolve(html, pageURL string) catalog.Record {
	slug, err := catalog.Slug(pageURL)
	if err != nil {
		slug = strings.Trim(pageURL, "/")
	}
	return r.ResolveTarget(slug, html, pageURL, r.now())
}

// ResolveTarget builds a record for a known slug.
func (r *Resolver) ResolveTarget(slug, html, pageURL string, fetchedAt time.Time) catalog.Record {
	sources := ParseSources(html)
	canonical := resolveCanonical(sources, pageURL)
	in := &input{
		sources:    sources,
		game:       r.structuredNode(sources.JSONLD, pageURL),
		canonical:  canonical,
		embedHost:  r.opts.EmbedHost,
		suffixes:   r.opts.SiteSuffixes,
		precedence: r.opts.ImagePrecedence,
	}

	return catalog.Record{
		Slug:          slug,
		CanonicalURL:  canonical,
		Name:          catalog.OptionalString(resolveName(in)),
		Description:   catalog.OptionalString(resolveDescription(in)),
		Publisher:     catalog.OptionalString(resolvePublisher(in)),
		CoverImageURL: catalog.OptionalString(resolveCoverImage(in)),
		PlayURL:       catalog.OptionalString(resolvePlayURL(in)),
		Tags:          resolveTags(in),
		FetchedAt:     fetchedAt.UTC(),
	}
}

// structuredNode returns the first game node across blocks in order.
// Malformed blocks are logged and skipped.
func (r *Resolver) structuredNode(blocks []string, pageURL string) *node {
	for i, block := range blocks {
		root, err := parseJSON(block)
		if err != nil {
			perr := &catalog.ParseError{Block: i, Err: err}
			metrics.ObserveStructuredDataError()
			r.logger.Debug("skipping malformed structured data",
				zap.String("url", pageURL),
				zap.Error(perr),
			)
			continue
		}
		if found := findGameNode(root); found != nil {
			return found
		}
	}
	return nil
}

func (r *Resolver) now() time.Time {
	if r.clock == nil {
		return time.Now().UTC()
	}
	return r.clock.Now().UTC()
}
