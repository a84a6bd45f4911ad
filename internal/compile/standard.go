package compile

import (
	"bytes"
	"context"
	"encoding/json"
	"path"
	"strings"

	kerrors "github.com/conneroisu/kiln/internal/errors"
	"github.com/conneroisu/kiln/internal/expand"
	"github.com/conneroisu/kiln/internal/lang"
	"github.com/conneroisu/kiln/internal/resource"
)

// standard expands the references of a text resource into directive tags
// and replaces every tag, in document order, with its resolved output.
func (s *session) standard(ctx context.Context, res *resource.Resource) error {
	if !res.IsText() {
		return nil
	}
	s.logger.Debug(ctx, "standard start", "file", res.RealPath)

	content := expand.Expand(res.Kind, res.Text())
	out, err := lang.Replace(content, func(m lang.Match) (string, error) {
		return s.resolveTag(ctx, res, m)
	})
	if err != nil {
		s.guard.Reset()
		return kerrors.InResource(err, res.SubPath)
	}

	res.SetText(out)
	s.logger.Debug(ctx, "standard end", "file", res.RealPath)
	return nil
}

func (s *session) resolveTag(ctx context.Context, res *resource.Resource, m lang.Match) (string, error) {
	switch m.Keyword {
	case lang.Require:
		ref := s.compiler.resolver.ModuleID(m.Payload, res.Dirname)
		res.AddRequire(ref.ID)
		return ref.Quote + ref.ID + ref.Quote, nil
	case lang.URI:
		return s.resolveURI(ctx, res, m.Payload)
	case lang.Dep:
		s.resolveDep(ctx, res, m.Payload)
		return "", nil
	case lang.Embed, lang.JSEmbed:
		return s.resolveEmbed(ctx, res, m.Keyword, m.Payload)
	default:
		return "", kerrors.UnsupportedDirective(string(m.Keyword))
	}
}

// resolveURI renders the public URL of the referenced file. Unresolved
// literals pass through unchanged. With hashing on, the target is compiled
// first so its fingerprint is final.
func (s *session) resolveURI(ctx context.Context, res *resource.Resource, payload string) (string, error) {
	ref := s.compiler.resolver.Reference(payload, res.Dirname)
	target := ref.Resource
	if target == nil || !target.IsFile() {
		return payload, nil
	}

	if target.UseHash && s.settings.Hash {
		if err := s.guard.Claim(res.RealPath, target.RealPath); err != nil {
			return "", err
		}
		if err := s.compile(ctx, target); err != nil {
			return "", err
		}
		addDeps(res, target)
	}

	query := ref.Query
	if target.Query != "" && query != "" {
		query = "&" + query[1:]
	}
	url := target.URL(s.settings.Hash, s.settings.Domain)
	return ref.Quote + url + query + ref.Fragment + ref.Quote, nil
}

// resolveDep records the referenced file as a cache dependency of res.
func (s *session) resolveDep(ctx context.Context, res *resource.Resource, payload string) {
	if res.Cache == nil {
		s.compiler.errs.Handle(ctx, kerrors.MissingCacheRecord(res.RealPath), "file", res.SubPath)
		return
	}
	ref := s.compiler.resolver.Reference(payload, res.Dirname)
	if ref.Resource != nil {
		addDeps(res, ref.Resource)
	}
}

// resolveEmbed compiles the referenced file and returns its content: text
// verbatim, or quoted as a string literal for jsEmbed of anything but
// scripts and JSON; binary content as a quoted data URI.
func (s *session) resolveEmbed(ctx context.Context, res *resource.Resource, kw lang.Keyword, payload string) (string, error) {
	ref := s.compiler.resolver.Reference(payload, res.Dirname)
	target := ref.Resource
	if target == nil && path.IsAbs(ref.Rest) {
		target = s.compiler.resolver.FileAt(ref.Rest)
	}
	if target == nil || !target.IsFile() {
		return "", kerrors.EmbedNotFound(payload)
	}

	if err := s.guard.Claim(res.RealPath, target.RealPath); err != nil {
		return "", err
	}
	if err := s.compile(ctx, target); err != nil {
		return "", err
	}
	addDeps(res, target)
	for _, id := range target.Requires {
		res.AddRequire(id)
	}

	if !target.IsText() {
		return ref.Quote + target.DataURI() + ref.Quote, nil
	}
	text := target.Text()
	if kw == lang.JSEmbed && target.Kind != resource.KindScript && !target.IsJSONLike() {
		return jsString(text)
	}
	return text, nil
}

// addDeps makes b, and everything b depends on, a cache dependency of a.
func addDeps(a, b *resource.Resource) {
	if a == nil || a.Cache == nil || b == nil {
		return
	}
	if b.Cache != nil {
		a.Cache.MergeDependencies(b.Cache)
	}
	a.Cache.AddDependency(b.RealPath)
}

// jsString quotes s as a JSON string literal without HTML escaping.
func jsString(s string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
