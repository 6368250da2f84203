package boundary

import (
	"unicode/utf8"

	"github.com/beyondbrewing/brewery-nostrdb/ndb"
	"github.com/beyondbrewing/brewery-nostrdb/pkg/handle"
)

// FilterNew starts a filter builder.
func (b *Bridge) FilterNew(env Env) int64 {
	return call(b, env, "filter new", 0, func() (int64, error) {
		return int64(b.builders.Insert(ndb.NewFilterBuilder())), nil
	})
}

// advance applies step to the builder behind h. On success h is consumed
// and the handle of the next state is returned; on failure h stays live.
func (b *Bridge) advance(h int64, step func(ndb.FilterBuilder) ndb.FilterBuilder) (int64, error) {
	fb, err := b.builder(h)
	if err != nil {
		return 0, err
	}
	next := step(fb)
	if err := next.Err(); err != nil {
		return 0, wrapError(FilterBuildFailure, err, "filter builder %#x", h)
	}
	if _, err := b.builders.Take(handle.Handle(h)); err != nil {
		return 0, wrapError(InvalidState, err, "filter builder handle %#x", h)
	}
	nh := b.builders.Insert(next)
	b.logger.Debug("filter builder advanced", "from", h, "to", int64(nh))
	return int64(nh), nil
}

// FilterKinds adds kinds given as consecutive 4-byte little-endian values.
func (b *Bridge) FilterKinds(env Env, builderh int64, kinds []byte) int64 {
	return call(b, env, "filter kinds", 0, func() (int64, error) {
		ks, rest := chunkKinds(kinds)
		if rest != 0 {
			b.logger.Debug("ignoring partial kind", "bytes", rest)
		}
		return b.advance(builderh, func(fb ndb.FilterBuilder) ndb.FilterBuilder {
			return fb.Kinds(ks...)
		})
	})
}

// FilterAuthors adds authors given as consecutive 32-byte pubkeys.
func (b *Bridge) FilterAuthors(env Env, builderh int64, authors []byte) int64 {
	return call(b, env, "filter authors", 0, func() (int64, error) {
		pks, rest := chunkPubkeys(authors)
		if rest != 0 {
			b.logger.Debug("ignoring partial author", "bytes", rest)
		}
		return b.advance(builderh, func(fb ndb.FilterBuilder) ndb.FilterBuilder {
			return fb.Authors(pks...)
		})
	})
}

// FilterTag adds a tag constraint. The first character of name is the tag
// key.
func (b *Bridge) FilterTag(env Env, builderh int64, name []byte, values [][]byte) int64 {
	return call(b, env, "filter tag", 0, func() (int64, error) {
		n, err := decodeText("tag name", name)
		if err != nil {
			return 0, err
		}
		if n == "" {
			return 0, newError(FilterBuildFailure, "tag name must not be empty")
		}
		key, _ := utf8.DecodeRuneInString(n)
		vs, err := decodeTexts("tag value", values)
		if err != nil {
			return 0, err
		}
		return b.advance(builderh, func(fb ndb.FilterBuilder) ndb.FilterBuilder {
			return fb.Tags(key, vs...)
		})
	})
}

// FilterSince sets the inclusive lower created_at bound.
func (b *Bridge) FilterSince(env Env, builderh int64, since int64) int64 {
	return call(b, env, "filter since", 0, func() (int64, error) {
		return b.advance(builderh, func(fb ndb.FilterBuilder) ndb.FilterBuilder {
			return fb.Since(since)
		})
	})
}

// FilterUntil sets the inclusive upper created_at bound.
func (b *Bridge) FilterUntil(env Env, builderh int64, until int64) int64 {
	return call(b, env, "filter until", 0, func() (int64, error) {
		return b.advance(builderh, func(fb ndb.FilterBuilder) ndb.FilterBuilder {
			return fb.Until(until)
		})
	})
}

// FilterLimit caps the results of the filter.
func (b *Bridge) FilterLimit(env Env, builderh int64, limit int64) int64 {
	return call(b, env, "filter limit", 0, func() (int64, error) {
		return b.advance(builderh, func(fb ndb.FilterBuilder) ndb.FilterBuilder {
			return fb.Limit(limit)
		})
	})
}

// FilterSearch sets a full-text search term.
func (b *Bridge) FilterSearch(env Env, builderh int64, term []byte) int64 {
	return call(b, env, "filter search", 0, func() (int64, error) {
		s, err := decodeText("search term", term)
		if err != nil {
			return 0, err
		}
		return b.advance(builderh, func(fb ndb.FilterBuilder) ndb.FilterBuilder {
			return fb.Search(s)
		})
	})
}

// FilterBuild consumes the builder and returns a filter handle.
func (b *Bridge) FilterBuild(env Env, builderh int64) int64 {
	return call(b, env, "filter build", 0, func() (int64, error) {
		fb, err := b.builder(builderh)
		if err != nil {
			return 0, err
		}
		f, err := fb.Build()
		if err != nil {
			return 0, wrapError(FilterBuildFailure, err, "filter builder %#x", builderh)
		}
		if _, err := b.builders.Take(handle.Handle(builderh)); err != nil {
			return 0, wrapError(InvalidState, err, "filter builder handle %#x", builderh)
		}
		return int64(b.filters.Insert(f)), nil
	})
}

// FilterDestroy releases a filter, or a builder that was abandoned before
// FilterBuild. A zero or already released handle is a no-op.
func (b *Bridge) FilterDestroy(h int64) {
	if h == 0 {
		return
	}
	b.quiet("filter destroy", func() error {
		hh := handle.Handle(h)
		var err error
		switch {
		case b.builders.Owns(hh):
			_, err = b.builders.Take(hh)
		default:
			_, err = b.filters.Take(hh)
		}
		return err
	})
}
